package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/model"
)

// BusinessRepo defines the interface for business (tenant) lookups.
type BusinessRepo interface {
	GetByCode(ctx context.Context, code string) (model.Business, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (model.Business, error)
	Create(ctx context.Context, code, name string, ownerID uuid.UUID) (model.Business, error)
}

type businessRepo struct {
	db *sql.DB
}

// NewBusinessRepo creates a new BusinessRepo instance.
func NewBusinessRepo(db *sql.DB) BusinessRepo {
	return &businessRepo{db: db}
}

func scanBusiness(row *sql.Row) (model.Business, error) {
	var b model.Business
	err := row.Scan(&b.Code, &b.Name, &b.OwnerID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Business{}, ErrNotFound
		}
		return model.Business{}, fmt.Errorf("scan business: %w", err)
	}
	return b, nil
}

func (r *businessRepo) GetByCode(ctx context.Context, code string) (model.Business, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT code, name, owner_id, created_at FROM businesses WHERE code = $1
	`, code)
	return scanBusiness(row)
}

// GetByOwner returns the business owned by the user. Owners manage a single
// business; web-realm tokens are scoped to it.
func (r *businessRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) (model.Business, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT code, name, owner_id, created_at FROM businesses WHERE owner_id = $1
		ORDER BY created_at LIMIT 1
	`, ownerID)
	return scanBusiness(row)
}

func (r *businessRepo) Create(ctx context.Context, code, name string, ownerID uuid.UUID) (model.Business, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO businesses (code, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING code, name, owner_id, created_at
	`, code, name, ownerID)
	return scanBusiness(row)
}
