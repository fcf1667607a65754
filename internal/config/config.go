package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	JWTSecret   string
	OTPSalt     string
	DevMode     bool

	// SMS gateway. When the URL is empty codes are written to the log
	// instead, which is how local development runs.
	SMSGatewayURL string
	SMSAPIKey     string

	// OTP issuance policy. Defaults match the documented contract:
	// codes live 5 minutes, one SMS per 30s cooldown, at most 10 SMS
	// per 3-hour window per (phone, business).
	OTPTTL         time.Duration
	OTPCooldown    time.Duration
	OTPQuota       int
	OTPQuotaWindow time.Duration

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            "8080",
		OTPTTL:          5 * time.Minute,
		OTPCooldown:     30 * time.Second,
		OTPQuota:        10,
		OTPQuotaWindow:  3 * time.Hour,
		AccessTokenTTL:  24 * time.Hour,
		RefreshTokenTTL: 14 * 24 * time.Hour,
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is required")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg.OTPSalt = os.Getenv("OTP_SALT")
	if cfg.OTPSalt == "" {
		return nil, fmt.Errorf("OTP_SALT environment variable is required")
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	cfg.DevMode = os.Getenv("DEV_MODE") == "true"
	cfg.SMSGatewayURL = os.Getenv("SMS_GATEWAY_URL")
	cfg.SMSAPIKey = os.Getenv("SMS_API_KEY")

	var err error
	if cfg.OTPTTL, err = durationEnv("OTP_TTL", cfg.OTPTTL); err != nil {
		return nil, err
	}
	if cfg.OTPCooldown, err = durationEnv("OTP_COOLDOWN", cfg.OTPCooldown); err != nil {
		return nil, err
	}
	if cfg.OTPQuota, err = intEnv("OTP_QUOTA", cfg.OTPQuota); err != nil {
		return nil, err
	}
	if cfg.OTPQuotaWindow, err = durationEnv("OTP_QUOTA_WINDOW", cfg.OTPQuotaWindow); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = durationEnv("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}
