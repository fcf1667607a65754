package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/loyaltix/server/internal/model"
	"github.com/loyaltix/server/internal/repo"
	"github.com/loyaltix/server/internal/repo/memory"
	"github.com/rs/zerolog"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []string
	fail     error
}

func (s *fakeSender) Send(_ context.Context, _, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.messages = append(s.messages, message)
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type fakeCooldown struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeCooldown() *fakeCooldown {
	return &fakeCooldown{held: make(map[string]bool)}
}

func (c *fakeCooldown) AcquireCooldown(_ context.Context, scope string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held[scope] {
		return false, nil
	}
	c.held[scope] = true
	return true, nil
}

func (c *fakeCooldown) ReleaseCooldown(_ context.Context, scope string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, scope)
	return nil
}

func testIssuerConfig() IssuerConfig {
	return IssuerConfig{
		TTL:         5 * time.Minute,
		Cooldown:    30 * time.Second,
		Quota:       10,
		QuotaWindow: 3 * time.Hour,
	}
}

func TestIssuer_sendStoresAndDispatches(t *testing.T) {
	store := memory.NewStore()
	sender := &fakeSender{}
	issuer := NewIssuer(store.OTPs(), nil, sender, testSalt, testIssuerConfig(), zerolog.Nop())

	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("sent %d messages, want 1", sender.count())
	}

	otp, err := store.OTPs().GetActive(context.Background(), testPhone, testBiz)
	if err != nil {
		t.Fatalf("no active code stored: %v", err)
	}
	if len(otp.CodeHash) != 32 {
		t.Errorf("stored hash is %d bytes, want 32", len(otp.CodeHash))
	}
	if !otp.ExpiresAt.After(time.Now()) {
		t.Error("stored code should not be expired")
	}
}

func TestIssuer_cooldownBlocksSecondSend(t *testing.T) {
	store := memory.NewStore()
	sender := &fakeSender{}
	issuer := NewIssuer(store.OTPs(), nil, sender, testSalt, testIssuerConfig(), zerolog.Nop())

	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); !errors.Is(err, ErrSMSCooldown) {
		t.Fatalf("second Send: got %v, want ErrSMSCooldown", err)
	}
	if sender.count() != 1 {
		t.Errorf("sent %d messages, want 1", sender.count())
	}
}

func TestIssuer_cooldownScopedPerBusiness(t *testing.T) {
	store := memory.NewStore()
	sender := &fakeSender{}
	issuer := NewIssuer(store.OTPs(), nil, sender, testSalt, testIssuerConfig(), zerolog.Nop())

	if err := issuer.Send(context.Background(), testPhone, "ACME", model.RealmMobile); err != nil {
		t.Fatalf("Send to ACME: %v", err)
	}
	if err := issuer.Send(context.Background(), testPhone, "OTHER", model.RealmMobile); err != nil {
		t.Fatalf("Send to OTHER should not hit ACME's cooldown: %v", err)
	}
}

func TestIssuer_quotaExhausted(t *testing.T) {
	store := memory.NewStore()
	sender := &fakeSender{}
	cfg := testIssuerConfig()
	cfg.Cooldown = 0 // isolate the window quota
	cfg.Quota = 3
	issuer := NewIssuer(store.OTPs(), nil, sender, testSalt, cfg, zerolog.Nop())

	for i := 0; i < cfg.Quota; i++ {
		if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); !errors.Is(err, ErrSMSCooldown) {
		t.Fatalf("over-quota Send: got %v, want ErrSMSCooldown", err)
	}
}

func TestIssuer_newCodeSupersedesOld(t *testing.T) {
	store := memory.NewStore()
	sender := &fakeSender{}
	cfg := testIssuerConfig()
	cfg.Cooldown = 0
	issuer := NewIssuer(store.OTPs(), nil, sender, testSalt, cfg, zerolog.Nop())

	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	first, err := store.OTPs().GetActive(context.Background(), testPhone, testBiz)
	if err != nil {
		t.Fatalf("first code: %v", err)
	}

	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); err != nil {
		t.Fatalf("second Send: %v", err)
	}
	second, err := store.OTPs().GetActive(context.Background(), testPhone, testBiz)
	if err != nil {
		t.Fatalf("second code: %v", err)
	}
	if first.ID == second.ID {
		t.Error("a new code should supersede the previous one")
	}
}

func TestIssuer_redisFastPathBlocks(t *testing.T) {
	store := memory.NewStore()
	sender := &fakeSender{}
	cooldown := newFakeCooldown()
	issuer := NewIssuer(store.OTPs(), cooldown, sender, testSalt, testIssuerConfig(), zerolog.Nop())

	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); !errors.Is(err, ErrSMSCooldown) {
		t.Fatalf("second Send: got %v, want ErrSMSCooldown", err)
	}
}

func TestIssuer_senderFailureReleasesCooldown(t *testing.T) {
	store := memory.NewStore()
	sender := &fakeSender{fail: errors.New("gateway down")}
	cooldown := newFakeCooldown()
	issuer := NewIssuer(store.OTPs(), cooldown, sender, testSalt, testIssuerConfig(), zerolog.Nop())

	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); err == nil {
		t.Fatal("Send should surface the gateway error")
	}
	// The undelivered code is gone, so neither the fast path nor the DB
	// cooldown count blocks an immediate retry.
	if _, err := store.OTPs().GetActive(context.Background(), testPhone, testBiz); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("failed dispatch should not leave a code behind: %v", err)
	}

	sender.fail = nil
	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); err != nil {
		t.Fatalf("retry after gateway recovery: %v", err)
	}
	if sender.count() != 1 {
		t.Errorf("sent %d messages, want 1", sender.count())
	}
}

func TestIssuer_devModeUsesFixedCode(t *testing.T) {
	store := memory.NewStore()
	sender := &fakeSender{}
	cfg := testIssuerConfig()
	cfg.DevMode = true
	issuer := NewIssuer(store.OTPs(), nil, sender, testSalt, cfg, zerolog.Nop())

	if err := issuer.Send(context.Background(), testPhone, testBiz, model.RealmMobile); err != nil {
		t.Fatalf("Send: %v", err)
	}
	otp, err := store.OTPs().GetActive(context.Background(), testPhone, testBiz)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if !CodeEqual(otp.CodeHash, testPhone, testBiz, devCode, testSalt) {
		t.Error("dev mode should issue the fixed code")
	}
}
