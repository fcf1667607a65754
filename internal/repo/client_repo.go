package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/model"
)

// ClientRepo defines the interface for loyalty-profile operations.
type ClientRepo interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, businessCode, qrCode string) (model.Client, error)
	GetByUserAndBusiness(ctx context.Context, userID uuid.UUID, businessCode string) (model.Client, error)
	ListByBusiness(ctx context.Context, businessCode string) ([]model.Client, error)
	UpdateNames(ctx context.Context, id uuid.UUID, firstName string, lastName *string) (model.Client, error)
	AdjustBonuses(ctx context.Context, id uuid.UUID, businessCode string, amount float64, reason *string) (model.Client, error)
}

type clientRepo struct {
	db *sql.DB
}

// NewClientRepo creates a new ClientRepo instance.
func NewClientRepo(db *sql.DB) ClientRepo {
	return &clientRepo{db: db}
}

const clientColumns = `id, user_id, business_code, first_name, last_name, bonuses, qr_code, is_staff, created_at`

func scanClientRow(s interface {
	Scan(dest ...any) error
}) (model.Client, error) {
	var c model.Client
	err := s.Scan(&c.ID, &c.UserID, &c.BusinessCode, &c.FirstName, &c.LastName,
		&c.Bonuses, &c.QRCode, &c.IsStaff, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Client{}, ErrNotFound
		}
		return model.Client{}, fmt.Errorf("scan client: %w", err)
	}
	return c, nil
}

// GetOrCreate inserts the client profile if missing. The qrCode is only used
// on first creation; an existing profile keeps its code.
func (r *clientRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, businessCode, qrCode string) (model.Client, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (user_id, business_code, qr_code)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, business_code) DO NOTHING
	`, userID, businessCode, qrCode)
	if err != nil {
		return model.Client{}, fmt.Errorf("insert client: %w", err)
	}
	return r.GetByUserAndBusiness(ctx, userID, businessCode)
}

func (r *clientRepo) GetByUserAndBusiness(ctx context.Context, userID uuid.UUID, businessCode string) (model.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE user_id = $1 AND business_code = $2
	`, userID, businessCode)
	return scanClientRow(row)
}

func (r *clientRepo) ListByBusiness(ctx context.Context, businessCode string) ([]model.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE business_code = $1
		ORDER BY created_at
	`, businessCode)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanClientRow(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientRepo) UpdateNames(ctx context.Context, id uuid.UUID, firstName string, lastName *string) (model.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE clients SET first_name = $2, last_name = $3
		WHERE id = $1
		RETURNING `+clientColumns+`
	`, id, firstName, lastName)
	return scanClientRow(row)
}

// AdjustBonuses applies a loyalty-point delta and appends a bonus_logs row in
// one transaction so the balance and the audit trail cannot diverge.
func (r *clientRepo) AdjustBonuses(ctx context.Context, id uuid.UUID, businessCode string, amount float64, reason *string) (model.Client, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Client{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE clients SET bonuses = bonuses + $3
		WHERE id = $1 AND business_code = $2
		RETURNING `+clientColumns+`
	`, id, businessCode, amount)
	client, err := scanClientRow(row)
	if err != nil {
		return model.Client{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bonus_logs (client_id, business_code, amount, reason)
		VALUES ($1, $2, $3, $4)
	`, id, businessCode, amount, reason)
	if err != nil {
		return model.Client{}, fmt.Errorf("insert bonus log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Client{}, fmt.Errorf("commit: %w", err)
	}
	return client, nil
}
