package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"agencydesk/internal/domain"
)

// QuotaRepository хранит факты просмотров контактов и сессии окон квоты.
// Обе таблицы принадлежат одному репозиторию, потому что очистка окна
// обязана удалять их строки одной транзакцией.
type QuotaRepository interface {
	CountViews(ctx context.Context, userID string) (int, error)
	RecordViews(ctx context.Context, userID string, contactIDs []string, viewedAt time.Time) error
	GetActiveSession(ctx context.Context, userID string) (*domain.QuotaSession, error)
	StartSession(ctx context.Context, userID string, windowStart time.Time) error
	PurgeIdentity(ctx context.Context, userID string) (*domain.ResetResult, error)
}

type quotaRepository struct {
	db *sqlx.DB
}

func NewQuotaRepository(db *sqlx.DB) QuotaRepository {
	return &quotaRepository{db: db}
}

func (r *quotaRepository) CountViews(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM contact_views WHERE user_id = $1`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count contact views: %w", err)
	}
	return count, nil
}

// RecordViews идемпотентно фиксирует просмотры: вставка по составному
// ключу (user_id, contact_id), повтор только обновляет viewed_at.
// Один оператор — конкурентные вызовы не могут создать дубликаты,
// побеждает последняя зафиксированная viewed_at.
func (r *quotaRepository) RecordViews(ctx context.Context, userID string, contactIDs []string, viewedAt time.Time) error {
	if len(contactIDs) == 0 {
		return nil
	}

	query := `
        INSERT INTO contact_views (user_id, contact_id, viewed_at)
        SELECT $1, unnest($2::text[]), $3
        ON CONFLICT (user_id, contact_id) DO UPDATE SET viewed_at = EXCLUDED.viewed_at`

	if _, err := r.db.ExecContext(ctx, query, userID, pq.Array(contactIDs), viewedAt); err != nil {
		return fmt.Errorf("failed to record contact views: %w", err)
	}

	return nil
}

// GetActiveSession возвращает актуальную сессию окна квоты или nil.
// Первичный ключ по user_id гарантирует не больше одной строки; если
// ограничение когда-нибудь сломается, берём самую свежую и удаляем
// остальные вместо отказа.
func (r *quotaRepository) GetActiveSession(ctx context.Context, userID string) (*domain.QuotaSession, error) {
	sessions := []domain.QuotaSession{}
	err := r.db.SelectContext(ctx, &sessions,
		`SELECT user_id, window_start FROM quota_sessions WHERE user_id = $1 ORDER BY window_start DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota session: %w", err)
	}

	if len(sessions) == 0 {
		return nil, nil
	}

	if len(sessions) > 1 {
		log.Printf("[QuotaRepository] Обнаружено %d сессий квоты для пользователя %s, оставляем самую свежую", len(sessions), userID)
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM quota_sessions WHERE user_id = $1 AND window_start < $2`,
			userID, sessions[0].WindowStart)
		if err != nil {
			return nil, fmt.Errorf("failed to collapse duplicate quota sessions: %w", err)
		}
	}

	return &sessions[0], nil
}

// StartSession отмечает начало окна. Если сессия уже есть, оставляем её:
// начало окна фиксируется один раз и не сдвигается повторными запросами.
func (r *quotaRepository) StartSession(ctx context.Context, userID string, windowStart time.Time) error {
	query := `
        INSERT INTO quota_sessions (user_id, window_start)
        VALUES ($1, $2)
        ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID, windowStart); err != nil {
		return fmt.Errorf("failed to start quota session: %w", err)
	}

	return nil
}

// PurgeIdentity удаляет все просмотры и сессию пользователя одной
// транзакцией. Используется и ленивой очисткой истёкшего окна, и явным
// сбросом. Повторный вызов для уже очищенного пользователя — no-op.
func (r *quotaRepository) PurgeIdentity(ctx context.Context, userID string) (*domain.ResetResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	viewsResult, err := tx.ExecContext(ctx,
		`DELETE FROM contact_views WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete contact views: %w", err)
	}

	sessionsResult, err := tx.ExecContext(ctx,
		`DELETE FROM quota_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete quota session: %w", err)
	}

	views, err := viewsResult.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	sessions, err := sessionsResult.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &domain.ResetResult{Views: views, Sessions: sessions}, nil
}
