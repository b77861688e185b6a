package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agencydesk/internal/config"
	"agencydesk/internal/domain"
)

// fakeContactRepo хранит контакты в памяти в том порядке, в котором
// их вернула бы выборка created_at DESC, id ASC.
type fakeContactRepo struct {
	mu       sync.Mutex
	contacts []domain.Contact
}

func (f *fakeContactRepo) CountAll(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.contacts)), nil
}

func (f *fakeContactRepo) GetPage(ctx context.Context, offset, limit int) ([]domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if limit <= 0 || offset >= len(f.contacts) {
		return []domain.Contact{}, nil
	}

	end := offset + limit
	if end > len(f.contacts) {
		end = len(f.contacts)
	}

	page := make([]domain.Contact, end-offset)
	copy(page, f.contacts[offset:end])
	return page, nil
}

func (f *fakeContactRepo) BulkInsert(ctx context.Context, contacts []domain.Contact) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing := make(map[string]bool, len(f.contacts))
	for _, c := range f.contacts {
		existing[c.ID] = true
	}

	var inserted int64
	for _, c := range contacts {
		if existing[c.ID] {
			continue
		}
		f.contacts = append(f.contacts, c)
		existing[c.ID] = true
		inserted++
	}
	return inserted, nil
}

// fakeQuotaRepo повторяет семантику хранилища: upsert по составному
// ключу, не больше одной сессии на пользователя, атомарная очистка.
type fakeQuotaRepo struct {
	mu       sync.Mutex
	views    map[string]map[string]time.Time
	sessions map[string]time.Time

	recordErr error
}

func newFakeQuotaRepo() *fakeQuotaRepo {
	return &fakeQuotaRepo{
		views:    make(map[string]map[string]time.Time),
		sessions: make(map[string]time.Time),
	}
}

func (f *fakeQuotaRepo) CountViews(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.views[userID]), nil
}

func (f *fakeQuotaRepo) RecordViews(ctx context.Context, userID string, contactIDs []string, viewedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recordErr != nil {
		return f.recordErr
	}

	if f.views[userID] == nil {
		f.views[userID] = make(map[string]time.Time)
	}
	for _, id := range contactIDs {
		f.views[userID][id] = viewedAt
	}
	return nil
}

func (f *fakeQuotaRepo) GetActiveSession(ctx context.Context, userID string) (*domain.QuotaSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start, ok := f.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &domain.QuotaSession{UserID: userID, WindowStart: start}, nil
}

func (f *fakeQuotaRepo) StartSession(ctx context.Context, userID string, windowStart time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.sessions[userID]; !ok {
		f.sessions[userID] = windowStart
	}
	return nil
}

func (f *fakeQuotaRepo) PurgeIdentity(ctx context.Context, userID string) (*domain.ResetResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := &domain.ResetResult{Views: int64(len(f.views[userID]))}
	if _, ok := f.sessions[userID]; ok {
		result.Sessions = 1
	}

	delete(f.views, userID)
	delete(f.sessions, userID)
	return result, nil
}

func makeContacts(n int) []domain.Contact {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	contacts := make([]domain.Contact, 0, n)
	for i := 0; i < n; i++ {
		contacts = append(contacts, domain.Contact{
			ID:        fmt.Sprintf("c%02d", i+1),
			FirstName: fmt.Sprintf("Contact%d", i+1),
			Email:     fmt.Sprintf("contact%d@example.com", i+1),
			AgencyID:  "a01",
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return contacts
}

func newTestService(limit, pageSize, totalContacts int) (*QuotaService, *fakeQuotaRepo, *fakeContactRepo) {
	quotaRepo := newFakeQuotaRepo()
	contactRepo := &fakeContactRepo{contacts: makeContacts(totalContacts)}
	svc := NewQuotaService(quotaRepo, contactRepo, config.QuotaConfig{
		ContactViewLimit: limit,
		WindowHours:      24,
		DefaultPageSize:  pageSize,
	})
	return svc, quotaRepo, contactRepo
}

func contactIDs(contacts []domain.Contact) []string {
	ids := make([]string, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestFetchContactsPage_Walkthrough(t *testing.T) {
	// limit=50, pageSize=5, 10 контактов, свежий пользователь
	svc, _, _ := newTestService(50, 5, 10)
	ctx := context.Background()

	page1, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)
	assert.Len(t, page1.Contacts, 5)
	assert.Equal(t, 5, page1.ViewCount)
	assert.Equal(t, 45, page1.Remaining)
	assert.Equal(t, int64(10), page1.Total)
	assert.Equal(t, 2, page1.TotalPages)

	// Повтор той же страницы идемпотентен: те же записи, used не растёт
	again, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, contactIDs(page1.Contacts), contactIDs(again.Contacts))
	assert.Equal(t, 5, again.ViewCount)

	page2, err := svc.FetchContactsPage(ctx, "user-1", 2, 5)
	require.NoError(t, err)
	assert.Len(t, page2.Contacts, 5)
	assert.Equal(t, 10, page2.ViewCount)
	assert.Equal(t, 40, page2.Remaining)

	// Страница за пределами данных — не ошибка, числа квоты точные
	page3, err := svc.FetchContactsPage(ctx, "user-1", 3, 5)
	require.NoError(t, err)
	assert.Empty(t, page3.Contacts)
	assert.Equal(t, 10, page3.ViewCount)
	assert.Equal(t, 40, page3.Remaining)
}

func TestFetchContactsPage_QuotaExceeded(t *testing.T) {
	svc, quotaRepo, _ := newTestService(3, 5, 100)
	ctx := context.Background()

	require.NoError(t, quotaRepo.RecordViews(ctx, "user-1", []string{"c01", "c02", "c03"}, time.Now()))

	_, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	var quotaErr *domain.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 3, quotaErr.Used)
	assert.Equal(t, 3, quotaErr.Limit)

	// Отказ одинаков для любой запрошенной страницы
	_, err = svc.FetchContactsPage(ctx, "user-1", 7, 5)
	require.ErrorAs(t, err, &quotaErr)
}

func TestFetchContactsPage_TruncatesToRemaining(t *testing.T) {
	svc, quotaRepo, _ := newTestService(7, 5, 20)
	ctx := context.Background()

	page1, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)
	assert.Len(t, page1.Contacts, 5)
	assert.Equal(t, 2, page1.Remaining)

	// Остаток меньше размера страницы: выдаётся только остаток
	page2, err := svc.FetchContactsPage(ctx, "user-1", 2, 5)
	require.NoError(t, err)
	assert.Len(t, page2.Contacts, 2)
	assert.Equal(t, 7, page2.ViewCount)
	assert.Equal(t, 0, page2.Remaining)

	// Достижение лимита лениво открывает окно
	session, err := quotaRepo.GetActiveSession(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, session)

	_, err = svc.FetchContactsPage(ctx, "user-1", 3, 5)
	var quotaErr *domain.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
}

func TestFetchContactsPage_SessionStartsOnlyAtExhaustion(t *testing.T) {
	svc, quotaRepo, _ := newTestService(50, 5, 10)
	ctx := context.Background()

	_, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)

	// Лимит не достигнут — маркер окна не создаётся
	session, err := quotaRepo.GetActiveSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestFetchContactsPage_WindowExpiry(t *testing.T) {
	svc, quotaRepo, _ := newTestService(2, 5, 10)
	ctx := context.Background()

	windowStart := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return windowStart }

	page1, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)
	assert.Len(t, page1.Contacts, 2)
	assert.Equal(t, 0, page1.Remaining)

	session, err := quotaRepo.GetActiveSession(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, windowStart, session.WindowStart)

	// За мгновение до истечения окна доступ всё ещё закрыт
	svc.now = func() time.Time { return windowStart.Add(24*time.Hour - time.Second) }
	_, err = svc.FetchContactsPage(ctx, "user-1", 1, 5)
	var quotaErr *domain.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)

	// На границе окно истекает: журнал очищен, квота восстановлена
	svc.now = func() time.Time { return windowStart.Add(24 * time.Hour) }
	page, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)
	assert.Len(t, page.Contacts, 2)
	assert.Equal(t, 2, page.ViewCount)

	// Новое окно стартует от момента повторного исчерпания
	session, err = quotaRepo.GetActiveSession(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, windowStart.Add(24*time.Hour), session.WindowStart)
}

func TestReset(t *testing.T) {
	svc, _, _ := newTestService(5, 5, 10)
	ctx := context.Background()

	_, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)

	_, err = svc.FetchContactsPage(ctx, "user-1", 2, 5)
	var quotaErr *domain.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)

	result, err := svc.Reset(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Views)
	assert.Equal(t, int64(1), result.Sessions)

	// Сразу после сброса страница выдаётся заново и просмотры записываются
	page, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)
	assert.Len(t, page.Contacts, 5)
	assert.Equal(t, 5, page.ViewCount)

	// Повторный сброс уже очищенного пользователя — no-op
	result, err = svc.Reset(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Views)
	assert.Equal(t, int64(0), result.Sessions)
}

func TestConcurrentFetchesDoNotExceedLimit(t *testing.T) {
	svc, quotaRepo, _ := newTestService(3, 5, 10)
	ctx := context.Background()

	// Два конкурентных запроса при remaining=3 и pageSize=5 не должны
	// вместе выдать больше трёх записей
	var wg sync.WaitGroup
	granted := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			page, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
			if err == nil {
				granted[i] = len(page.Contacts)
			}
		}(i)
	}
	wg.Wait()

	distinct, err := quotaRepo.CountViews(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, distinct)
	assert.LessOrEqual(t, granted[0], 3)
	assert.LessOrEqual(t, granted[1], 3)
}

func TestFetchContactsPage_RecordFailureReturnsNoRecords(t *testing.T) {
	svc, quotaRepo, _ := newTestService(50, 5, 10)
	ctx := context.Background()

	quotaRepo.recordErr = errors.New("store unavailable")

	page, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.Error(t, err)
	assert.Nil(t, page)

	// Просмотры не записаны — выборка без фиксации не выдаётся
	quotaRepo.recordErr = nil
	used, err := quotaRepo.CountViews(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestStatus(t *testing.T) {
	svc, _, _ := newTestService(50, 5, 10)
	ctx := context.Background()

	status, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, status.ViewCount)
	assert.Equal(t, 50, status.Remaining)
	assert.True(t, status.CanView)
	assert.Equal(t, 50, status.Limit)
	assert.Equal(t, int64(10), status.Total)

	_, err = svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)

	status, err = svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, status.ViewCount)
	assert.Equal(t, 45, status.Remaining)
	assert.True(t, status.CanView)
}

func TestStatus_SelfHealsMissingSession(t *testing.T) {
	svc, quotaRepo, _ := newTestService(3, 5, 10)
	ctx := context.Background()

	// Исчерпанный пользователь без маркера окна: застрявшее состояние,
	// которое могло остаться после сбоя записи сессии
	require.NoError(t, quotaRepo.RecordViews(ctx, "user-1", []string{"c01", "c02", "c03"}, time.Now()))

	status, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, status.CanView)

	session, err := quotaRepo.GetActiveSession(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, session, "status check should start the missing session so the window can expire")
}

func TestStatus_ExpiryRestoresQuota(t *testing.T) {
	svc, quotaRepo, _ := newTestService(2, 5, 10)
	ctx := context.Background()

	windowStart := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return windowStart }

	_, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)

	svc.now = func() time.Time { return windowStart.Add(25 * time.Hour) }
	status, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, status.ViewCount)
	assert.Equal(t, 2, status.Remaining)
	assert.True(t, status.CanView)

	session, err := quotaRepo.GetActiveSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestFetchContactsPage_IsolatedPerIdentity(t *testing.T) {
	svc, _, _ := newTestService(3, 5, 10)
	ctx := context.Background()

	_, err := svc.FetchContactsPage(ctx, "user-1", 1, 5)
	require.NoError(t, err)

	// Квота одного пользователя не влияет на другого
	page, err := svc.FetchContactsPage(ctx, "user-2", 1, 5)
	require.NoError(t, err)
	assert.Len(t, page.Contacts, 3)
	assert.Equal(t, 3, page.ViewCount)
}
