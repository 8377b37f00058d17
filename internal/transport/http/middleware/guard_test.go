package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ErlanBelekov/storefront/internal/auth"
	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

const testKey = "middleware-test-secret-32-chars!!"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers struct {
	findByID func(ctx context.Context, id string) (*domain.User, error)
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return f.findByID(ctx, id)
}

var (
	customer = &domain.User{ID: "user-1", Role: domain.RoleCustomer}
	admin    = &domain.User{ID: "admin-1", Role: domain.RoleAdministrator}
)

func usersByID(users ...*domain.User) *fakeUsers {
	return &fakeUsers{findByID: func(_ context.Context, id string) (*domain.User, error) {
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		return nil, domain.ErrUserNotFound
	}}
}

func newTokens(t *testing.T, opts ...auth.TokenOption) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService([]byte(testKey), opts...)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	return tokens
}

func issue(t *testing.T, tokens *auth.TokenService, userID string) string {
	t.Helper()
	tok, err := tokens.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

// newEngine protects GET /protected with req. The handler echoes the
// resolved user id so tests can assert it was attached.
func newEngine(tokens middleware.TokenVerifier, users middleware.UserFinder, req middleware.Requirement) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := middleware.NewGuard(tokens, users, 50*time.Millisecond, logger)

	r := gin.New()
	r.GET("/protected", guard.Require(req), func(c *gin.Context) {
		if u := middleware.CurrentUser(c); u != nil {
			c.String(http.StatusOK, u.ID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	return r
}

func do(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestGuard_NoneRequirement_SkipsEverything(t *testing.T) {
	users := &fakeUsers{findByID: func(context.Context, string) (*domain.User, error) {
		t.Fatal("credential store must not be consulted")
		return nil, nil
	}}
	w := do(newEngine(newTokens(t), users, middleware.RequireNone), "Bearer garbage")

	if w.Code != http.StatusOK || w.Body.String() != "anonymous" {
		t.Errorf("got %d %q, want 200 anonymous", w.Code, w.Body.String())
	}
}

func TestGuard_Authenticated(t *testing.T) {
	tokens := newTokens(t)
	past := time.Now().Add(-8 * 24 * time.Hour)
	expired := issue(t, newTokens(t, auth.WithClock(func() time.Time { return past })), customer.ID)
	otherKey, _ := auth.NewTokenService([]byte("another-secret-that-is-32-chars!!"))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + issue(t, tokens, customer.ID), http.StatusOK, customer.ID},
		{"lowercase scheme", "bearer " + issue(t, tokens, customer.ID), http.StatusOK, customer.ID},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, ""},
		{"malformed token", "Bearer not.a.jwt", http.StatusUnauthorized, ""},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"foreign signature", "Bearer " + issue(t, otherKey, customer.ID), http.StatusUnauthorized, ""},
		{"deleted user", "Bearer " + issue(t, tokens, "gone"), http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newEngine(tokens, usersByID(customer), middleware.RequireAuthenticated), tt.header)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusUnauthorized && w.Body.String() != `{"error":"Unauthorized"}` {
				t.Errorf("body = %s, want uniform 401 body", w.Body.String())
			}
		})
	}
}

func TestGuard_Admin(t *testing.T) {
	tokens := newTokens(t)
	users := usersByID(customer, admin)

	w := do(newEngine(tokens, users, middleware.RequireAdmin), "Bearer "+issue(t, tokens, customer.ID))
	if w.Code != http.StatusForbidden {
		t.Errorf("customer: status = %d, want 403", w.Code)
	}

	w = do(newEngine(tokens, users, middleware.RequireAdmin), "Bearer "+issue(t, tokens, admin.ID))
	if w.Code != http.StatusOK || w.Body.String() != admin.ID {
		t.Errorf("admin: got %d %q", w.Code, w.Body.String())
	}
}

func TestGuard_SlowLookup_Returns503(t *testing.T) {
	tokens := newTokens(t)
	users := &fakeUsers{findByID: func(ctx context.Context, _ string) (*domain.User, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	w := do(newEngine(tokens, users, middleware.RequireAuthenticated), "Bearer "+issue(t, tokens, customer.ID))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestGuard_StoreUnavailable_Returns503(t *testing.T) {
	tokens := newTokens(t)
	users := &fakeUsers{findByID: func(context.Context, string) (*domain.User, error) {
		return nil, errors.Join(domain.ErrServiceUnavailable, errors.New("connection refused"))
	}}

	w := do(newEngine(tokens, users, middleware.RequireAdmin), "Bearer "+issue(t, tokens, admin.ID))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
