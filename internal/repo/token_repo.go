package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/model"
)

// TokenRepo defines the interface for token-record persistence.
type TokenRepo interface {
	CreatePair(ctx context.Context, access, refresh *model.TokenRecord) error
	Get(ctx context.Context, jti uuid.UUID) (model.TokenRecord, error)
	Revoke(ctx context.Context, jti uuid.UUID) error
	RevokePair(ctx context.Context, jti uuid.UUID) ([]model.TokenRecord, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, businessCode string, except uuid.UUID) ([]model.TokenRecord, error)
	ListActiveAccess(ctx context.Context, userID uuid.UUID, businessCode string) ([]model.TokenRecord, error)
}

type tokenRepo struct {
	db *sql.DB
}

// NewTokenRepo creates a new TokenRepo instance.
func NewTokenRepo(db *sql.DB) TokenRepo {
	return &tokenRepo{db: db}
}

const tokenColumns = `jti, kind, user_id, business_code, realm, ip_addr, user_agent, refresh_jti, issued_at, expires_at, revoked`

func scanToken(s interface {
	Scan(dest ...any) error
}) (model.TokenRecord, error) {
	var t model.TokenRecord
	err := s.Scan(&t.JTI, &t.Kind, &t.UserID, &t.BusinessCode, &t.Realm,
		&t.IPAddr, &t.UserAgent, &t.RefreshJTI, &t.IssuedAt, &t.ExpiresAt, &t.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TokenRecord{}, ErrNotFound
		}
		return model.TokenRecord{}, fmt.Errorf("scan token: %w", err)
	}
	return t, nil
}

// CreatePair inserts the refresh row first so the access row can reference it.
func (r *tokenRepo) CreatePair(ctx context.Context, access, refresh *model.TokenRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO tokens (jti, kind, user_id, business_code, realm, ip_addr, user_agent, refresh_jti, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(ctx, insert,
		refresh.JTI, refresh.Kind, refresh.UserID, refresh.BusinessCode, refresh.Realm,
		refresh.IPAddr, refresh.UserAgent, nil, refresh.IssuedAt, refresh.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	_, err = tx.ExecContext(ctx, insert,
		access.JTI, access.Kind, access.UserID, access.BusinessCode, access.Realm,
		access.IPAddr, access.UserAgent, access.RefreshJTI, access.IssuedAt, access.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert access token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *tokenRepo) Get(ctx context.Context, jti uuid.UUID) (model.TokenRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE jti = $1`, jti)
	return scanToken(row)
}

func (r *tokenRepo) Revoke(ctx context.Context, jti uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tokens SET revoked = TRUE WHERE jti = $1`, jti)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// collectRevoked drains the RETURNING set of a revocation statement. The
// (jti, kind) pairs let callers evict the matching cache entries.
func collectRevoked(rows *sql.Rows) ([]model.TokenRecord, error) {
	defer rows.Close()
	var revoked []model.TokenRecord
	for rows.Next() {
		var t model.TokenRecord
		if err := rows.Scan(&t.JTI, &t.Kind); err != nil {
			return nil, fmt.Errorf("scan revoked token: %w", err)
		}
		revoked = append(revoked, t)
	}
	return revoked, rows.Err()
}

// RevokePair revokes the whole pair a token belongs to: given either half,
// the linked refresh row and every access token minted from it go down
// together. Returns the revoked records.
func (r *tokenRepo) RevokePair(ctx context.Context, jti uuid.UUID) ([]model.TokenRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE tokens SET revoked = TRUE
		WHERE jti = $1
		   OR refresh_jti = $1
		   OR jti = (SELECT refresh_jti FROM tokens WHERE jti = $1)
		   OR refresh_jti = (SELECT refresh_jti FROM tokens WHERE jti = $1)
		RETURNING jti, kind
	`, jti)
	if err != nil {
		return nil, fmt.Errorf("revoke token pair: %w", err)
	}
	revoked, err := collectRevoked(rows)
	if err != nil {
		return nil, err
	}
	if len(revoked) == 0 {
		return nil, ErrNotFound
	}
	return revoked, nil
}

// RevokeAllForUser revokes every live token of the user in the business,
// keeping the excepted access token and its refresh row. Returns the revoked
// records.
func (r *tokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID, businessCode string, except uuid.UUID) ([]model.TokenRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE tokens SET revoked = TRUE
		WHERE user_id = $1 AND business_code = $2 AND NOT revoked
		  AND jti <> $3
		  AND jti <> COALESCE((SELECT refresh_jti FROM tokens WHERE jti = $3), '00000000-0000-0000-0000-000000000000'::uuid)
		RETURNING jti, kind
	`, userID, businessCode, except)
	if err != nil {
		return nil, fmt.Errorf("revoke all tokens: %w", err)
	}
	return collectRevoked(rows)
}

func (r *tokenRepo) ListActiveAccess(ctx context.Context, userID uuid.UUID, businessCode string) ([]model.TokenRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tokenColumns+` FROM tokens
		WHERE user_id = $1 AND business_code = $2 AND kind = 'access'
		  AND NOT revoked AND expires_at > now()
		ORDER BY issued_at DESC
	`, userID, businessCode)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.TokenRecord
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
