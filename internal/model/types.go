package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Realm partitions the API surface a token may access. A token carries
// exactly one realm; mobile tokens are additionally scoped to one business.
type Realm string

const (
	RealmMobile Realm = "mobile"
	RealmWeb    Realm = "web"
)

// ParseRealm validates a realm selector from a request body. An empty
// selector defaults to mobile.
func ParseRealm(s string) (Realm, error) {
	switch Realm(s) {
	case RealmMobile, "":
		return RealmMobile, nil
	case RealmWeb:
		return RealmWeb, nil
	}
	return "", fmt.Errorf("unknown realm %q", s)
}

// TokenKind distinguishes the two halves of an issued token pair.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// User is the phone-identified account shared across businesses.
// PasswordHash is set only for business owners who log in to the web realm.
type User struct {
	ID           uuid.UUID
	Phone        string
	PasswordHash *string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Business is a tenant. Code is the short identifier clients enter and the
// value carried in mobile-realm tokens.
type Business struct {
	Code      string
	Name      string
	OwnerID   uuid.UUID
	CreatedAt time.Time
}

// Client is a user's loyalty profile within one business.
type Client struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	BusinessCode string
	FirstName    string
	LastName     *string
	Bonuses      float64
	QRCode       string
	IsStaff      bool
	CreatedAt    time.Time
}

// OTP is one issued verification code. Codes are stored hashed. At most one
// active (unused, unrevoked, unexpired) code exists per (phone, business);
// issuing a new code revokes the previous one.
type OTP struct {
	ID           uuid.UUID
	Phone        string
	BusinessCode string
	Realm        Realm
	CodeHash     []byte
	SentAt       time.Time
	ExpiresAt    time.Time
	Used         bool
	Revoked      bool
}

// Active reports whether the code can still be consumed at the given time.
func (o OTP) Active(now time.Time) bool {
	return !o.Used && !o.Revoked && o.ExpiresAt.After(now)
}

// TokenRecord is the server-side row behind an issued JWT. Access rows link
// to their refresh row via RefreshJTI so both can be revoked together.
type TokenRecord struct {
	JTI          uuid.UUID
	Kind         TokenKind
	UserID       uuid.UUID
	BusinessCode string
	Realm        Realm
	IPAddr       string
	UserAgent    string
	RefreshJTI   *uuid.UUID
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Revoked      bool
}

// BonusLog records one loyalty-point adjustment for a client.
type BonusLog struct {
	ID           uuid.UUID
	ClientID     uuid.UUID
	BusinessCode string
	Amount       float64
	Reason       *string
	CreatedAt    time.Time
}

// News is a promotional post published by a business to its mobile clients.
type News struct {
	ID           uuid.UUID
	BusinessCode string
	Title        string
	Content      string
	ContentType  string
	Views        int
	CreatedAt    time.Time
}
