// Package memory provides in-memory implementations of the repo interfaces.
// They back unit tests that exercise services and handlers without Postgres
// and mirror the SQL implementations' semantics, including atomic OTP
// consumption.
package memory

import (
	"context"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/model"
	"github.com/loyaltix/server/internal/repo"
)

// Store holds all tables behind one mutex.
type Store struct {
	mu         sync.Mutex
	users      map[uuid.UUID]model.User
	businesses map[string]model.Business
	clients    map[uuid.UUID]model.Client
	otps       map[uuid.UUID]model.OTP
	tokens     map[uuid.UUID]model.TokenRecord
	news       []model.News
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:      make(map[uuid.UUID]model.User),
		businesses: make(map[string]model.Business),
		clients:    make(map[uuid.UUID]model.Client),
		otps:       make(map[uuid.UUID]model.OTP),
		tokens:     make(map[uuid.UUID]model.TokenRecord),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() repo.UserRepo { return (*userRepo)(s) }

// Businesses returns the business repository view of the store.
func (s *Store) Businesses() repo.BusinessRepo { return (*businessRepo)(s) }

// Clients returns the client repository view of the store.
func (s *Store) Clients() repo.ClientRepo { return (*clientRepo)(s) }

// OTPs returns the OTP repository view of the store.
func (s *Store) OTPs() repo.OTPRepo { return (*otpRepo)(s) }

// Tokens returns the token repository view of the store.
func (s *Store) Tokens() repo.TokenRepo { return (*tokenRepo)(s) }

// News returns the news repository view of the store.
func (s *Store) News() repo.NewsRepo { return (*newsRepo)(s) }

// SeedUser inserts a user and returns it.
func (s *Store) SeedUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = u
	return u
}

// SeedBusiness inserts a business.
func (s *Store) SeedBusiness(b model.Business) model.Business {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	s.businesses[b.Code] = b
	return b
}

// SeedClient inserts a client profile.
func (s *Store) SeedClient(c model.Client) model.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.clients[c.ID] = c
	return c
}

// SeedNews appends a news post.
func (s *Store) SeedNews(n model.News) model.News {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.news = append(s.news, n)
	return n
}

type userRepo Store

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r *userRepo) GetByPhone(_ context.Context, phone string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (r *userRepo) GetOrCreateByPhone(ctx context.Context, phone string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	u := model.User{ID: uuid.New(), Phone: phone, CreatedAt: time.Now()}
	r.users[u.ID] = u
	return u, nil
}

type businessRepo Store

func (r *businessRepo) GetByCode(_ context.Context, code string) (model.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.businesses[code]
	if !ok {
		return model.Business{}, repo.ErrNotFound
	}
	return b, nil
}

func (r *businessRepo) GetByOwner(_ context.Context, ownerID uuid.UUID) (model.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Business
	for _, b := range r.businesses {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return model.Business{}, repo.ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out[0], nil
}

func (r *businessRepo) Create(_ context.Context, code, name string, ownerID uuid.UUID) (model.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := model.Business{Code: code, Name: name, OwnerID: ownerID, CreatedAt: time.Now()}
	r.businesses[code] = b
	return b, nil
}

type clientRepo Store

func (r *clientRepo) GetOrCreate(_ context.Context, userID uuid.UUID, businessCode, qrCode string) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.UserID == userID && c.BusinessCode == businessCode {
			return c, nil
		}
	}
	c := model.Client{
		ID:           uuid.New(),
		UserID:       userID,
		BusinessCode: businessCode,
		QRCode:       qrCode,
		CreatedAt:    time.Now(),
	}
	r.clients[c.ID] = c
	return c, nil
}

func (r *clientRepo) GetByUserAndBusiness(_ context.Context, userID uuid.UUID, businessCode string) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.UserID == userID && c.BusinessCode == businessCode {
			return c, nil
		}
	}
	return model.Client{}, repo.ErrNotFound
}

func (r *clientRepo) ListByBusiness(_ context.Context, businessCode string) ([]model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Client
	for _, c := range r.clients {
		if c.BusinessCode == businessCode {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *clientRepo) UpdateNames(_ context.Context, id uuid.UUID, firstName string, lastName *string) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return model.Client{}, repo.ErrNotFound
	}
	c.FirstName = firstName
	c.LastName = lastName
	r.clients[id] = c
	return c, nil
}

func (r *clientRepo) AdjustBonuses(_ context.Context, id uuid.UUID, businessCode string, amount float64, _ *string) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok || c.BusinessCode != businessCode {
		return model.Client{}, repo.ErrNotFound
	}
	c.Bonuses += amount
	r.clients[id] = c
	return c, nil
}

type otpRepo Store

func (r *otpRepo) Create(_ context.Context, phone, businessCode string, realm model.Realm, codeHashHex string, sentAt, expiresAt time.Time) (uuid.UUID, error) {
	hash, err := hex.DecodeString(codeHashHex)
	if err != nil {
		return uuid.Nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range r.otps {
		if o.Phone == phone && o.BusinessCode == businessCode && !o.Used && !o.Revoked {
			o.Revoked = true
			r.otps[id] = o
		}
	}
	o := model.OTP{
		ID:           uuid.New(),
		Phone:        phone,
		BusinessCode: businessCode,
		Realm:        realm,
		CodeHash:     hash,
		SentAt:       sentAt,
		ExpiresAt:    expiresAt,
	}
	r.otps[o.ID] = o
	return o.ID, nil
}

func (r *otpRepo) GetActive(_ context.Context, phone, businessCode string) (model.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, o := range r.otps {
		if o.Phone == phone && o.BusinessCode == businessCode && o.Active(now) {
			return o, nil
		}
	}
	return model.OTP{}, repo.ErrNotFound
}

func (r *otpRepo) Consume(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.otps[id]
	if !ok || !o.Active(time.Now()) {
		return false, nil
	}
	o.Used = true
	r.otps[id] = o
	return true, nil
}

func (r *otpRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.otps, id)
	return nil
}

func (r *otpRepo) CountSince(_ context.Context, phone, businessCode string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.otps {
		if o.Phone == phone && o.BusinessCode == businessCode && o.SentAt.After(since) {
			n++
		}
	}
	return n, nil
}

type tokenRepo Store

func (r *tokenRepo) CreatePair(_ context.Context, access, refresh *model.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[refresh.JTI] = *refresh
	r.tokens[access.JTI] = *access
	return nil
}

func (r *tokenRepo) Get(_ context.Context, jti uuid.UUID) (model.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tokens[jti]
	if !ok {
		return model.TokenRecord{}, repo.ErrNotFound
	}
	return rec, nil
}

func (r *tokenRepo) Revoke(_ context.Context, jti uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tokens[jti]
	if !ok {
		return repo.ErrNotFound
	}
	rec.Revoked = true
	r.tokens[jti] = rec
	return nil
}

func (r *tokenRepo) RevokePair(_ context.Context, jti uuid.UUID) ([]model.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tokens[jti]
	if !ok {
		return nil, repo.ErrNotFound
	}

	refreshJTI := rec.JTI
	if rec.Kind == model.TokenAccess && rec.RefreshJTI != nil {
		refreshJTI = *rec.RefreshJTI
	}

	var revoked []model.TokenRecord
	for id, t := range r.tokens {
		linked := t.JTI == refreshJTI || (t.RefreshJTI != nil && *t.RefreshJTI == refreshJTI)
		if t.JTI == rec.JTI || linked {
			t.Revoked = true
			r.tokens[id] = t
			revoked = append(revoked, t)
		}
	}
	return revoked, nil
}

func (r *tokenRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID, businessCode string, except uuid.UUID) ([]model.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keep := map[uuid.UUID]bool{except: true}
	if rec, ok := r.tokens[except]; ok && rec.RefreshJTI != nil {
		keep[*rec.RefreshJTI] = true
	}

	var revoked []model.TokenRecord
	for id, t := range r.tokens {
		if t.UserID != userID || t.BusinessCode != businessCode || t.Revoked || keep[t.JTI] {
			continue
		}
		t.Revoked = true
		r.tokens[id] = t
		revoked = append(revoked, t)
	}
	return revoked, nil
}

func (r *tokenRepo) ListActiveAccess(_ context.Context, userID uuid.UUID, businessCode string) ([]model.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []model.TokenRecord
	for _, t := range r.tokens {
		if t.Kind != model.TokenAccess || t.UserID != userID || t.BusinessCode != businessCode {
			continue
		}
		if t.Revoked || t.ExpiresAt.Before(now) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

type newsRepo Store

func (r *newsRepo) ListByBusiness(_ context.Context, businessCode string, limit int) ([]model.News, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.News
	for _, n := range r.news {
		if n.BusinessCode == businessCode {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
