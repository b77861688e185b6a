package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"agencydesk/internal/config"
	"agencydesk/internal/domain"
	"agencydesk/internal/repository"
)

// QuotaService реализует лимит просмотров контактов: скользящее окно
// на пользователя, ленивое истечение, идемпотентная запись просмотров.
//
// Последовательность "посчитать использование, сравнить с лимитом,
// записать просмотры" небезопасна при конкурентных запросах одного
// пользователя (префетч страниц, повторные клики), поэтому весь блок
// выполняется под замком конкретного пользователя. Этого достаточно
// для развёртывания в один экземпляр; само хранилище дубликатов
// создать не может из-за составного ключа.
type QuotaService struct {
	quotaRepo   repository.QuotaRepository
	contactRepo repository.ContactRepository

	limit           int
	window          time.Duration
	defaultPageSize int

	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewQuotaService(quotaRepo repository.QuotaRepository, contactRepo repository.ContactRepository, cfg config.QuotaConfig) *QuotaService {
	return &QuotaService{
		quotaRepo:       quotaRepo,
		contactRepo:     contactRepo,
		limit:           cfg.ContactViewLimit,
		window:          cfg.WindowDuration(),
		defaultPageSize: cfg.DefaultPageSize,
		now:             time.Now,
		locks:           make(map[string]*sync.Mutex),
	}
}

func (s *QuotaService) Limit() int           { return s.limit }
func (s *QuotaService) DefaultPageSize() int { return s.defaultPageSize }

// identityLock возвращает замок конкретного пользователя.
// Замки не освобождаются: количество активных пользователей на
// экземпляр ограничено, а переиспользование обязано быть стабильным.
func (s *QuotaService) identityLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// isExpired проверяет, истекло ли окно: now >= windowStart + window
func (s *QuotaService) isExpired(windowStart, now time.Time) bool {
	return !now.Before(windowStart.Add(s.window))
}

// expireIfNeeded лениво очищает истёкшее окно. Фоновых задач нет:
// окно спящего пользователя живёт до его следующего запроса.
func (s *QuotaService) expireIfNeeded(ctx context.Context, userID string, now time.Time) (bool, error) {
	session, err := s.quotaRepo.GetActiveSession(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get quota session: %w", err)
	}

	if session == nil || !s.isExpired(session.WindowStart, now) {
		return false, nil
	}

	if _, err := s.quotaRepo.PurgeIdentity(ctx, userID); err != nil {
		return false, fmt.Errorf("failed to purge expired quota window: %w", err)
	}

	log.Printf("[QuotaService] Окно квоты пользователя %s истекло, просмотры очищены", userID)
	return true, nil
}

// ensureSession отмечает начало окна, когда использование достигло
// лимита. Заодно чинит застрявшее состояние "лимит исчерпан, сессии
// нет": без сессии окну не от чего истекать.
func (s *QuotaService) ensureSession(ctx context.Context, userID string, used int, now time.Time) error {
	if used < s.limit {
		return nil
	}

	session, err := s.quotaRepo.GetActiveSession(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get quota session: %w", err)
	}
	if session != nil {
		return nil
	}

	if err := s.quotaRepo.StartSession(ctx, userID, now); err != nil {
		return fmt.Errorf("failed to start quota session: %w", err)
	}

	return nil
}

// Status возвращает текущий снимок квоты пользователя.
// Снимок считается после ленивой очистки, поэтому повторные чтения
// согласованы между собой и с ближайшим запросом страницы.
func (s *QuotaService) Status(ctx context.Context, userID string) (*domain.QuotaStatus, error) {
	lock := s.identityLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	if _, err := s.expireIfNeeded(ctx, userID, now); err != nil {
		return nil, err
	}

	used, err := s.quotaRepo.CountViews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count views: %w", err)
	}

	if err := s.ensureSession(ctx, userID, used, now); err != nil {
		return nil, err
	}

	total, err := s.contactRepo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count contacts: %w", err)
	}

	remaining := s.limit - used
	if remaining < 0 {
		remaining = 0
	}

	return &domain.QuotaStatus{
		ViewCount: used,
		Remaining: remaining,
		CanView:   used < s.limit,
		Limit:     s.limit,
		Total:     total,
	}, nil
}

// FetchContactsPage выдаёт страницу контактов в пределах остатка квоты
// и фиксирует просмотры выданных записей.
//
// Порядок шагов: ленивая очистка окна -> подсчёт использования ->
// отказ при исчерпанном лимите -> выборка не больше min(pageSize,
// remaining) записей -> идемпотентная запись просмотров -> ленивый
// старт окна при достижении лимита -> пересчёт снимка.
func (s *QuotaService) FetchContactsPage(ctx context.Context, userID string, page, pageSize int) (*domain.ContactPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}

	lock := s.identityLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	if _, err := s.expireIfNeeded(ctx, userID, now); err != nil {
		return nil, err
	}

	used, err := s.quotaRepo.CountViews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count views: %w", err)
	}

	remaining := s.limit - used
	if remaining <= 0 {
		// Чиним сессию до отказа, иначе исчерпанный пользователь без
		// сессии никогда не дождётся истечения окна
		if err := s.ensureSession(ctx, userID, used, now); err != nil {
			return nil, err
		}
		return nil, &domain.QuotaExceededError{Used: used, Limit: s.limit}
	}

	total, err := s.contactRepo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count contacts: %w", err)
	}

	fetchLimit := pageSize
	if remaining < fetchLimit {
		fetchLimit = remaining
	}

	offset := (page - 1) * pageSize
	contacts, err := s.contactRepo.GetPage(ctx, offset, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get contacts page: %w", err)
	}

	// Просмотры записываются до отдачи записей: при ошибке записи
	// пользователь не получает контакты, частичного состояния нет
	if len(contacts) > 0 {
		contactIDs := make([]string, 0, len(contacts))
		for _, c := range contacts {
			contactIDs = append(contactIDs, c.ID)
		}

		if err := s.quotaRepo.RecordViews(ctx, userID, contactIDs, now); err != nil {
			return nil, fmt.Errorf("failed to record contact views: %w", err)
		}
	}

	usedAfter, err := s.quotaRepo.CountViews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to recount views: %w", err)
	}

	if err := s.ensureSession(ctx, userID, usedAfter, now); err != nil {
		return nil, err
	}

	remainingAfter := s.limit - usedAfter
	if remainingAfter < 0 {
		remainingAfter = 0
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return &domain.ContactPage{
		Contacts:   contacts,
		Total:      total,
		ViewCount:  usedAfter,
		Remaining:  remainingAfter,
		Limit:      s.limit,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// Reset полностью сбрасывает квоту пользователя: просмотры и сессия
// удаляются одной транзакцией. Безопасен при параллельных запросах
// того же пользователя — после возврата следующий запрос страницы
// видит нулевое использование.
func (s *QuotaService) Reset(ctx context.Context, userID string) (*domain.ResetResult, error) {
	lock := s.identityLock(userID)
	lock.Lock()
	defer lock.Unlock()

	result, err := s.quotaRepo.PurgeIdentity(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reset quota: %w", err)
	}

	log.Printf("[QuotaService] Квота пользователя %s сброшена: удалено %d просмотров, %d сессий",
		userID, result.Views, result.Sessions)

	return result, nil
}
