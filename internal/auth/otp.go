package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/loyaltix/server/internal/metrics"
	"github.com/loyaltix/server/internal/model"
	"github.com/loyaltix/server/internal/phone"
	"github.com/loyaltix/server/internal/repo"
	"github.com/loyaltix/server/internal/sms"
	"github.com/rs/zerolog"
)

const codeLength = 6

// devCode is issued instead of a random code when dev mode is on, so local
// and CI flows can complete without a gateway.
const devCode = "123456"

// CooldownStore is the fast-path gate in front of the DB quota check.
type CooldownStore interface {
	AcquireCooldown(ctx context.Context, scope string, ttl time.Duration) (bool, error)
	ReleaseCooldown(ctx context.Context, scope string) error
}

// IssuerConfig is the OTP issuance policy.
type IssuerConfig struct {
	TTL         time.Duration
	Cooldown    time.Duration
	Quota       int
	QuotaWindow time.Duration
	DevMode     bool
}

// Issuer generates, stores and dispatches one-time codes.
type Issuer struct {
	otps     repo.OTPRepo
	cooldown CooldownStore
	sender   sms.Sender
	salt     string
	cfg      IssuerConfig
	log      zerolog.Logger
}

// NewIssuer creates a new OTP issuer.
func NewIssuer(otps repo.OTPRepo, cooldown CooldownStore, sender sms.Sender, salt string, cfg IssuerConfig, log zerolog.Logger) *Issuer {
	return &Issuer{
		otps:     otps,
		cooldown: cooldown,
		sender:   sender,
		salt:     salt,
		cfg:      cfg,
		log:      log,
	}
}

// Send issues a code for (phone, business) and dispatches it by SMS.
// A new code supersedes any previous active one. Returns ErrSMSCooldown when
// the cooldown or the window quota is exhausted.
func (i *Issuer) Send(ctx context.Context, number, businessCode string, realm model.Realm) error {
	now := time.Now()
	scope := number + ":" + businessCode

	if i.cooldown != nil {
		ok, err := i.cooldown.AcquireCooldown(ctx, scope, i.cfg.Cooldown)
		if err != nil {
			// Redis being down must not take auth down; the DB check below
			// still enforces the cooldown.
			i.log.Warn().Err(err).Msg("cooldown fast path unavailable")
		} else if !ok {
			metrics.SMSRejected("cooldown")
			return ErrSMSCooldown
		}
	}

	// Authoritative checks against the DB.
	recent, err := i.otps.CountSince(ctx, number, businessCode, now.Add(-i.cfg.Cooldown))
	if err != nil {
		return fmt.Errorf("cooldown check: %w", err)
	}
	if recent > 0 {
		metrics.SMSRejected("cooldown")
		return ErrSMSCooldown
	}
	windowed, err := i.otps.CountSince(ctx, number, businessCode, now.Add(-i.cfg.QuotaWindow))
	if err != nil {
		return fmt.Errorf("quota check: %w", err)
	}
	if windowed >= i.cfg.Quota {
		metrics.SMSRejected("quota")
		return ErrSMSCooldown
	}

	code := devCode
	if !i.cfg.DevMode {
		if code, err = GenerateCode(codeLength); err != nil {
			return err
		}
	}

	hashHex := HashCodeHex(number, businessCode, code, i.salt)
	id, err := i.otps.Create(ctx, number, businessCode, realm, hashHex, now, now.Add(i.cfg.TTL))
	if err != nil {
		i.releaseCooldown(scope)
		return fmt.Errorf("store otp: %w", err)
	}

	if err := i.sender.Send(ctx, number, "Your verification code: "+code); err != nil {
		// The code never reached the user. Remove the row so the cooldown
		// and quota counts don't charge for a failed dispatch.
		if derr := i.otps.Delete(ctx, id); derr != nil {
			i.log.Warn().Err(derr).Msg("failed otp cleanup")
		}
		i.releaseCooldown(scope)
		return fmt.Errorf("dispatch sms: %w", err)
	}

	metrics.OTPIssued()
	i.log.Info().
		Str("phone", phone.Mask(number)).
		Str("business", businessCode).
		Str("realm", string(realm)).
		Msg("otp issued")
	return nil
}

func (i *Issuer) releaseCooldown(scope string) {
	if i.cooldown == nil {
		return
	}
	if err := i.cooldown.ReleaseCooldown(context.Background(), scope); err != nil {
		i.log.Warn().Err(err).Msg("release cooldown failed")
	}
}
