package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltix/server/internal/auth"
	"github.com/loyaltix/server/internal/db"
	httpserver "github.com/loyaltix/server/internal/http"
	"github.com/loyaltix/server/internal/http/handlers"
	"github.com/loyaltix/server/internal/repo"
	_ "github.com/lib/pq"
)

const (
	testSecret = "test-jwt-secret-at-least-32-characters-long"
	testSalt   = "test-otp-salt"
	testPhone  = "+15551234567"
	testBiz    = "ACME"
	devCode    = "123456"
)

type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
}

type logSink struct{}

func (logSink) Send(context.Context, string, string) error { return nil }

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, os.Getenv("DATABASE_URL"))
	require.NoError(t, err, "database open must succeed; check DATABASE_URL")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, RunMigrations(database))
	require.NoError(t, TruncateAll(ctx, database))

	userRepo := repo.NewUserRepo(database)
	businessRepo := repo.NewBusinessRepo(database)
	clientRepo := repo.NewClientRepo(database)
	otpRepo := repo.NewOTPRepo(database)
	tokenRepo := repo.NewTokenRepo(database)
	newsRepo := repo.NewNewsRepo(database)

	log := zerolog.Nop()

	// Dev mode issues a fixed code so the flow completes without a gateway.
	issuer := auth.NewIssuer(otpRepo, nil, logSink{}, testSalt, auth.IssuerConfig{
		TTL:         5 * time.Minute,
		Cooldown:    30 * time.Second,
		Quota:       10,
		QuotaWindow: 3 * time.Hour,
		DevMode:     true,
	}, log)

	svc := auth.NewService(
		userRepo, businessRepo, clientRepo, otpRepo, tokenRepo,
		auth.NewJWTService(testSecret), nil, testSalt,
		time.Hour, 24*time.Hour,
	)

	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:     &handlers.AuthHandler{Issuer: issuer, Svc: svc, Log: log},
		Token:    &handlers.TokenHandler{Svc: svc, Log: log},
		Client:   &handlers.ClientHandler{Clients: clientRepo, Businesses: businessRepo, News: newsRepo, Log: log},
		Business: &handlers.BusinessHandler{Businesses: businessRepo, Clients: clientRepo, Log: log},
	}, svc, log)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// The flow needs a tenant to scope codes and tokens to.
	var ownerID string
	err = database.QueryRowContext(ctx,
		"INSERT INTO users (phone) VALUES ($1) RETURNING id", "+15550009999").Scan(&ownerID)
	require.NoError(t, err)
	_, err = database.ExecContext(ctx,
		"INSERT INTO businesses (code, name, owner_id) VALUES ($1, $2, $3)", testBiz, "Acme Coffee", ownerID)
	require.NoError(t, err)

	return &testServer{Server: server, DB: database}
}

func (s *testServer) postJSON(t *testing.T, path string, body any, header map[string]string) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.Server.URL+path, bytes.NewReader(buf))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := s.Server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) getJSON(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.Server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type tokenPairBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func TestAuthFlowIntegration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ts := newTestServer(t)
	var pair tokenPairBody

	t.Run("health", func(t *testing.T) {
		resp := ts.getJSON(t, "/health", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("request otp", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/v1/auth",
			map[string]string{"phone": testPhone, "business": testBiz}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("cooldown enforced", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/v1/auth",
			map[string]string{"phone": testPhone, "business": testBiz}, nil)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var out struct {
			Message string `json:"message"`
			Status  int    `json:"status"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "Too many SMS", out.Message)
	})

	t.Run("confirm otp", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/v1/auth/confirm",
			map[string]string{"phone": testPhone, "otp": devCode, "business": testBiz}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("code is single use", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/v1/auth/confirm",
			map[string]string{"phone": testPhone, "otp": devCode, "business": testBiz}, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var out struct {
			Message string `json:"message"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "OTP code is expired", out.Message)
	})

	t.Run("mobile profile", func(t *testing.T) {
		resp := ts.getJSON(t, "/api/mobile/v1/user", pair.AccessToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Phone  string `json:"phone"`
			QRCode string `json:"qr_code"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, testPhone, out.Phone)
		assert.NotEmpty(t, out.QRCode)
	})

	t.Run("web realm rejects mobile token", func(t *testing.T) {
		resp := ts.getJSON(t, "/api/web/v1/user", pair.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("refresh rotates pair", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/v1/token/refresh",
			map[string]string{"refresh_token": pair.RefreshToken}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var fresh tokenPairBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&fresh))
		require.NotEmpty(t, fresh.AccessToken)

		old := ts.getJSON(t, "/api/mobile/v1/user", pair.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, old.StatusCode)

		current := ts.getJSON(t, "/api/mobile/v1/user", fresh.AccessToken)
		assert.Equal(t, http.StatusOK, current.StatusCode)

		pair = fresh
	})

	t.Run("logout", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/v1/token/logout", map[string]string{},
			map[string]string{"Authorization": "Bearer " + pair.AccessToken})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		after := ts.getJSON(t, "/api/mobile/v1/user", pair.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, after.StatusCode)
	})
}

func TestConcurrentConfirmIntegration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ts := newTestServer(t)

	resp := ts.postJSON(t, "/api/v1/auth",
		map[string]string{"phone": testPhone, "business": testBiz}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := json.Marshal(map[string]string{"phone": testPhone, "otp": devCode, "business": testBiz})
	require.NoError(t, err)

	const n = 8
	statuses := make(chan int, n)
	for i := 0; i < n; i++ {
		go func() {
			resp, err := ts.Server.Client().Post(
				ts.Server.URL+"/api/v1/auth/confirm", "application/json", bytes.NewReader(body))
			if err != nil {
				statuses <- 0
				return
			}
			defer resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}

	succeeded := 0
	for i := 0; i < n; i++ {
		if <-statuses == http.StatusOK {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent confirm should win")
}
