package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"agencydesk/internal/domain"
)

// AgencyRepository определяет доступ к данным агентств.
type AgencyRepository interface {
	CountAll(ctx context.Context) (int64, error)
	GetPage(ctx context.Context, offset, limit int) ([]domain.Agency, error)
	BulkInsert(ctx context.Context, agencies []domain.Agency) (int64, error)
}

type agencyRepository struct {
	db *sqlx.DB
}

func NewAgencyRepository(db *sqlx.DB) AgencyRepository {
	return &agencyRepository{db: db}
}

func (r *agencyRepository) CountAll(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM agencies`); err != nil {
		return 0, fmt.Errorf("failed to count agencies: %w", err)
	}
	return total, nil
}

func (r *agencyRepository) GetPage(ctx context.Context, offset, limit int) ([]domain.Agency, error) {
	query := `
        SELECT a.id, a.name, a.state, a.state_code, a.type, a.population,
               a.website, a.phone, a.county, a.created_at, a.updated_at,
               COUNT(c.id) AS contact_count
        FROM agencies a
        LEFT JOIN contacts c ON c.agency_id = a.id
        GROUP BY a.id
        ORDER BY a.created_at DESC, a.id ASC
        LIMIT $1 OFFSET $2`

	agencies := []domain.Agency{}
	if err := r.db.SelectContext(ctx, &agencies, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to get agencies page: %w", err)
	}

	return agencies, nil
}

func (r *agencyRepository) BulkInsert(ctx context.Context, agencies []domain.Agency) (int64, error) {
	if len(agencies) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO agencies (id, name, state, state_code, type, population, website, phone, county)
        VALUES (:id, :name, :state, :state_code, :type, :population, :website, :phone, :county)
        ON CONFLICT (id) DO NOTHING`

	result, err := tx.NamedExecContext(ctx, query, agencies)
	if err != nil {
		return 0, fmt.Errorf("failed to insert agencies: %w", err)
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
