package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/auth"
	"github.com/loyaltix/server/internal/model"
)

type stubAuthenticator struct {
	user   model.User
	claims *auth.Claims
	err    error
}

func (s *stubAuthenticator) Authenticate(context.Context, string) (model.User, *auth.Claims, error) {
	return s.user, s.claims, s.err
}

func runChain(t *testing.T, mw func(http.Handler) http.Handler, header string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, reached
}

func TestAuth_missingHeader(t *testing.T) {
	mw := Auth(&stubAuthenticator{})
	rec, reached := runChain(t, mw, "")
	if reached {
		t.Error("handler should not run without a token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_wrongScheme(t *testing.T) {
	mw := Auth(&stubAuthenticator{})
	if _, reached := runChain(t, mw, "Basic dXNlcjpwYXNz"); reached {
		t.Error("non-bearer credentials should be rejected")
	}
}

func TestAuth_invalidToken(t *testing.T) {
	mw := Auth(&stubAuthenticator{err: errors.New("bad token")})
	rec, reached := runChain(t, mw, "Bearer whatever")
	if reached {
		t.Error("handler should not run with an invalid token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_populatesContext(t *testing.T) {
	user := model.User{ID: uuid.New(), Phone: "+15551234567"}
	claims := &auth.Claims{JTI: uuid.New(), UserID: user.ID, Realm: model.RealmMobile, Business: "ACME"}
	mw := Auth(&stubAuthenticator{user: user, claims: claims})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, ok := UserFromContext(r.Context())
		if !ok || gotUser.ID != user.ID {
			t.Error("user should be on the context")
		}
		gotClaims, ok := ClaimsFromContext(r.Context())
		if !ok || gotClaims.JTI != claims.JTI {
			t.Error("claims should be on the context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequireRealm(t *testing.T) {
	user := model.User{ID: uuid.New()}
	claims := &auth.Claims{UserID: user.ID, Realm: model.RealmMobile}
	authMW := Auth(&stubAuthenticator{user: user, claims: claims})

	chain := func(realm model.Realm) http.Handler {
		return authMW(RequireRealm(realm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")

	rec := httptest.NewRecorder()
	chain(model.RealmMobile).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("matching realm: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	chain(model.RealmWeb).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("cross realm: status = %d, want 401", rec.Code)
	}
}

func TestBusinessHeader(t *testing.T) {
	handler := Business(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code, ok := BusinessFromContext(r.Context())
		if !ok || code != "ACME" {
			t.Errorf("business = %q, want ACME", code)
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Business-ID", "ACME")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// Without the header nothing is set.
	Business(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := BusinessFromContext(r.Context()); ok {
			t.Error("business should be absent without the header")
		}
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
}
