package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/cache"
	"github.com/loyaltix/server/internal/metrics"
	"github.com/loyaltix/server/internal/model"
	"github.com/loyaltix/server/internal/repo"
	"golang.org/x/crypto/bcrypt"
)

const qrCodeLength = 10

// TokenCache is consulted before the DB on every authenticated request and
// kept in sync on revocation.
type TokenCache interface {
	StoreToken(ctx context.Context, rec *model.TokenRecord) error
	GetToken(ctx context.Context, kind model.TokenKind, jti uuid.UUID) (*model.TokenRecord, error)
	DropToken(ctx context.Context, kind model.TokenKind, jti uuid.UUID) error
}

// TokenPair is the signed result of a successful authentication.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RequestMeta carries per-request attribution stored on token records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Service verifies one-time codes and manages the token lifecycle.
type Service struct {
	users      repo.UserRepo
	businesses repo.BusinessRepo
	clients    repo.ClientRepo
	otps       repo.OTPRepo
	tokens     repo.TokenRepo
	jwt        *JWTService
	cache      TokenCache
	salt       string

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates the authenticator.
func NewService(
	users repo.UserRepo,
	businesses repo.BusinessRepo,
	clients repo.ClientRepo,
	otps repo.OTPRepo,
	tokens repo.TokenRepo,
	jwtService *JWTService,
	tokenCache TokenCache,
	salt string,
	accessTTL, refreshTTL time.Duration,
) *Service {
	return &Service{
		users:      users,
		businesses: businesses,
		clients:    clients,
		otps:       otps,
		tokens:     tokens,
		jwt:        jwtService,
		cache:      tokenCache,
		salt:       salt,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Confirm validates a submitted code and, on success, consumes it, resolves
// the user (and for mobile the client profile) and issues a realm-scoped
// token pair. Consumption is atomic: of two concurrent confirms with the same
// code exactly one succeeds.
func (s *Service) Confirm(ctx context.Context, number, code, businessCode string, realm model.Realm, meta RequestMeta) (*TokenPair, error) {
	if realm == model.RealmMobile && businessCode == "" {
		return nil, ErrBusinessRequired
	}

	otp, err := s.otps.GetActive(ctx, number, businessCode)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			metrics.OTPConfirmed("rejected")
			return nil, ErrOTPExpired
		}
		return nil, fmt.Errorf("lookup otp: %w", err)
	}

	if !CodeEqual(otp.CodeHash, number, businessCode, code, s.salt) {
		metrics.OTPConfirmed("rejected")
		return nil, ErrOTPExpired
	}

	ok, err := s.otps.Consume(ctx, otp.ID)
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	if !ok {
		// Lost the race, or the code expired between lookup and consume.
		metrics.OTPConfirmed("rejected")
		return nil, ErrOTPExpired
	}

	user, err := s.users.GetOrCreateByPhone(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	if realm == model.RealmMobile {
		qr, err := GenerateCode(qrCodeLength)
		if err != nil {
			return nil, err
		}
		if _, err := s.clients.GetOrCreate(ctx, user.ID, businessCode, qr); err != nil {
			return nil, fmt.Errorf("resolve client: %w", err)
		}
	}

	pair, err := s.issuePair(ctx, user.ID, businessCode, realm, meta)
	if err != nil {
		return nil, err
	}
	metrics.OTPConfirmed("ok")
	return pair, nil
}

// PasswordLogin authenticates a business owner for the web realm. The user
// must have a password set and own a business; the issued pair is scoped to
// that business.
func (s *Service) PasswordLogin(ctx context.Context, number, password string, meta RequestMeta) (model.User, model.Business, *TokenPair, error) {
	user, err := s.users.GetByPhone(ctx, number)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, model.Business{}, nil, ErrInvalidCredentials
		}
		return model.User{}, model.Business{}, nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == nil {
		return model.User{}, model.Business{}, nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return model.User{}, model.Business{}, nil, ErrInvalidCredentials
	}

	business, err := s.businesses.GetByOwner(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, model.Business{}, nil, ErrInvalidCredentials
		}
		return model.User{}, model.Business{}, nil, fmt.Errorf("lookup business: %w", err)
	}

	pair, err := s.issuePair(ctx, user.ID, business.Code, model.RealmWeb, meta)
	if err != nil {
		return model.User{}, model.Business{}, nil, err
	}
	return user, business, pair, nil
}

// Refresh rotates a token pair: the presented refresh token and every access
// token minted from it are revoked, then a fresh pair is issued with the same
// scope.
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*TokenPair, error) {
	claims, err := s.jwt.Verify(refreshToken, model.TokenRefresh)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	rec, err := s.liveRecord(ctx, model.TokenRefresh, claims.JTI)
	if err != nil {
		return nil, err
	}

	revoked, err := s.tokens.RevokePair(ctx, rec.JTI)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("revoke rotated pair: %w", err)
	}
	s.dropRevoked(ctx, revoked)

	return s.issuePair(ctx, rec.UserID, rec.BusinessCode, rec.Realm, meta)
}

// Logout revokes the presented access token and its linked refresh token.
func (s *Service) Logout(ctx context.Context, accessJTI uuid.UUID) error {
	revoked, err := s.tokens.RevokePair(ctx, accessJTI)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("revoke pair: %w", err)
	}
	s.dropRevoked(ctx, revoked)
	return nil
}

// RevokeAll revokes every token of the user in the business except the
// current access token and its refresh row. Returns the revoked count.
func (s *Service) RevokeAll(ctx context.Context, userID uuid.UUID, businessCode string, keep uuid.UUID) (int, error) {
	revoked, err := s.tokens.RevokeAllForUser(ctx, userID, businessCode, keep)
	if err != nil {
		return 0, fmt.Errorf("revoke all: %w", err)
	}
	s.dropRevoked(ctx, revoked)
	return len(revoked), nil
}

// IssuedTokens lists the user's live access tokens in the business.
func (s *Service) IssuedTokens(ctx context.Context, userID uuid.UUID, businessCode string) ([]model.TokenRecord, error) {
	return s.tokens.ListActiveAccess(ctx, userID, businessCode)
}

// Authenticate verifies a bearer access token: signature, expiry, server-side
// revocation state (cache first, then DB) and the backing user.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (model.User, *Claims, error) {
	claims, err := s.jwt.Verify(tokenString, model.TokenAccess)
	if err != nil {
		return model.User{}, nil, ErrTokenInvalid
	}

	if _, err := s.liveRecord(ctx, model.TokenAccess, claims.JTI); err != nil {
		return model.User{}, nil, ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return model.User{}, nil, ErrTokenInvalid
	}
	return user, claims, nil
}

// liveRecord loads a token record and rejects revoked or expired ones.
func (s *Service) liveRecord(ctx context.Context, kind model.TokenKind, jti uuid.UUID) (*model.TokenRecord, error) {
	if s.cache != nil {
		if rec, err := s.cache.GetToken(ctx, kind, jti); err == nil {
			if rec.Revoked || rec.ExpiresAt.Before(time.Now()) {
				return nil, ErrTokenInvalid
			}
			return rec, nil
		}
	}

	rec, err := s.tokens.Get(ctx, jti)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if rec.Kind != kind || rec.Revoked || rec.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenInvalid
	}

	if s.cache != nil {
		_ = s.cache.StoreToken(ctx, &rec)
	}
	return &rec, nil
}

// issuePair creates and signs a linked access/refresh pair.
func (s *Service) issuePair(ctx context.Context, userID uuid.UUID, businessCode string, realm model.Realm, meta RequestMeta) (*TokenPair, error) {
	now := time.Now()

	refresh := &model.TokenRecord{
		JTI:          uuid.New(),
		Kind:         model.TokenRefresh,
		UserID:       userID,
		BusinessCode: businessCode,
		Realm:        realm,
		IPAddr:       meta.IP,
		UserAgent:    meta.UserAgent,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.refreshTTL),
	}
	access := &model.TokenRecord{
		JTI:          uuid.New(),
		Kind:         model.TokenAccess,
		UserID:       userID,
		BusinessCode: businessCode,
		Realm:        realm,
		IPAddr:       meta.IP,
		UserAgent:    meta.UserAgent,
		RefreshJTI:   &refresh.JTI,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.accessTTL),
	}

	if err := s.tokens.CreatePair(ctx, access, refresh); err != nil {
		return nil, fmt.Errorf("persist token pair: %w", err)
	}

	accessToken, err := s.jwt.Sign(access)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwt.Sign(refresh)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.StoreToken(ctx, access)
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// dropRevoked evicts revoked records so revocation takes effect before the
// cached entries would expire on their own.
func (s *Service) dropRevoked(ctx context.Context, revoked []model.TokenRecord) {
	if s.cache == nil {
		return
	}
	for _, rec := range revoked {
		_ = s.cache.DropToken(ctx, rec.Kind, rec.JTI)
	}
}

// ensure the concrete cache satisfies the interface
var _ TokenCache = (*cache.Cache)(nil)
