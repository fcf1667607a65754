package repo

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/model"
)

// OTPRepo defines the interface for OTP persistence. Create supersedes any
// previous active code for the same scope; Consume is the atomic
// issued -> consumed transition.
type OTPRepo interface {
	Create(ctx context.Context, phone, businessCode string, realm model.Realm, codeHashHex string, sentAt, expiresAt time.Time) (uuid.UUID, error)
	GetActive(ctx context.Context, phone, businessCode string) (model.OTP, error)
	Consume(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountSince(ctx context.Context, phone, businessCode string, since time.Time) (int, error)
}

type otpRepo struct {
	db *sql.DB
}

// NewOTPRepo creates a new OTPRepo instance.
func NewOTPRepo(db *sql.DB) OTPRepo {
	return &otpRepo{db: db}
}

// Create revokes any existing active code for (phone, business) and inserts
// the new one atomically. An advisory lock serializes concurrent requests for
// the same scope so the partial unique index never trips.
func (r *otpRepo) Create(ctx context.Context, phone, businessCode string, realm model.Realm, codeHashHex string, sentAt, expiresAt time.Time) (uuid.UUID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Held until COMMIT/ROLLBACK.
	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(1, hashtext($1 || ':' || $2))`, phone, businessCode)
	if err != nil {
		return uuid.Nil, fmt.Errorf("advisory lock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE otps SET revoked = TRUE
		WHERE phone = $1 AND business_code = $2 AND NOT used AND NOT revoked
	`, phone, businessCode)
	if err != nil {
		return uuid.Nil, fmt.Errorf("revoke existing codes: %w", err)
	}

	var id uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO otps (phone, business_code, realm, code_hash, sent_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, phone, businessCode, realm, codeHashHex, sentAt, expiresAt).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert otp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// GetActive returns the current unused, unrevoked, unexpired code for the scope.
func (r *otpRepo) GetActive(ctx context.Context, phone, businessCode string) (model.OTP, error) {
	var o model.OTP
	var hashHex string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone, business_code, realm, code_hash, sent_at, expires_at, used, revoked
		FROM otps
		WHERE phone = $1 AND business_code = $2
		  AND NOT used AND NOT revoked AND expires_at > now()
		ORDER BY sent_at DESC
		LIMIT 1
	`, phone, businessCode).Scan(
		&o.ID, &o.Phone, &o.BusinessCode, &o.Realm, &hashHex,
		&o.SentAt, &o.ExpiresAt, &o.Used, &o.Revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OTP{}, ErrNotFound
		}
		return model.OTP{}, fmt.Errorf("query otp: %w", err)
	}

	o.CodeHash, err = hex.DecodeString(hashHex)
	if err != nil {
		return model.OTP{}, fmt.Errorf("decode code_hash: %w", err)
	}
	return o, nil
}

// Consume marks the code used. The conditional WHERE makes the transition
// atomic: of two concurrent confirms, only one sees true.
func (r *otpRepo) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE otps SET used = TRUE
		WHERE id = $1 AND NOT used AND NOT revoked AND expires_at > now()
	`, id)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Delete removes a code outright. Used when SMS dispatch fails, so the row
// does not count against the cooldown or quota.
func (r *otpRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM otps WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// CountSince counts codes issued for the scope since the given time. Used for
// the cooldown check and the SMS quota.
func (r *otpRepo) CountSince(ctx context.Context, phone, businessCode string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM otps
		WHERE phone = $1 AND business_code = $2 AND sent_at >= $3
	`, phone, businessCode, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count otps: %w", err)
	}
	return count, nil
}
