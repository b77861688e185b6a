package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"agencydesk/internal/domain"
)

// ContactRepository определяет доступ к данным контактов.
type ContactRepository interface {
	CountAll(ctx context.Context) (int64, error)
	GetPage(ctx context.Context, offset, limit int) ([]domain.Contact, error)
	BulkInsert(ctx context.Context, contacts []domain.Contact) (int64, error)
}

type contactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) CountAll(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM contacts`); err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return total, nil
}

// GetPage возвращает страницу контактов в стабильном порядке.
// Вторичная сортировка по id нужна, чтобы пагинация была детерминированной
// при совпадающих created_at (массовый импорт пишет строки одной меткой).
func (r *contactRepository) GetPage(ctx context.Context, offset, limit int) ([]domain.Contact, error) {
	if limit <= 0 {
		return []domain.Contact{}, nil
	}

	query := `
        SELECT c.id, c.first_name, c.last_name, c.email, c.phone, c.title,
               c.email_type, c.contact_form_url, c.department, c.firm_id,
               c.agency_id, c.created_at, c.updated_at,
               a.name AS agency_name
        FROM contacts c
        LEFT JOIN agencies a ON a.id = c.agency_id
        ORDER BY c.created_at DESC, c.id ASC
        LIMIT $1 OFFSET $2`

	contacts := []domain.Contact{}
	if err := r.db.SelectContext(ctx, &contacts, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to get contacts page: %w", err)
	}

	return contacts, nil
}

func (r *contactRepository) BulkInsert(ctx context.Context, contacts []domain.Contact) (int64, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO contacts (id, first_name, last_name, email, phone, title,
                              email_type, contact_form_url, department, firm_id, agency_id)
        VALUES (:id, :first_name, :last_name, :email, :phone, :title,
                :email_type, :contact_form_url, :department, :firm_id, :agency_id)
        ON CONFLICT (id) DO NOTHING`

	result, err := tx.NamedExecContext(ctx, query, contacts)
	if err != nil {
		return 0, fmt.Errorf("failed to insert contacts: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}
