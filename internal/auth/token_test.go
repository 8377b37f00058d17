package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/storefront/internal/auth"
	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "token-test-secret-at-least-32-chars!"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newService(t *testing.T, secret string, clock *fakeClock) *auth.TokenService {
	t.Helper()
	svc, err := auth.NewTokenService([]byte(secret), auth.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return svc
}

func TestNewTokenService_EmptySecret_Fails(t *testing.T) {
	if _, err := auth.NewTokenService(nil); !errors.Is(err, auth.ErrMissingSecret) {
		t.Fatalf("want ErrMissingSecret, got %v", err)
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newService(t, testSecret, clock)

	tok, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	sub, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "user-1" {
		t.Errorf("subject = %q, want user-1", sub)
	}
}

func TestVerify_ValidUntilSevenDays(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: issued}
	svc := newService(t, testSecret, clock)

	tok, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.t = issued.Add(auth.TokenTTL - time.Minute)
	if _, err := svc.Verify(tok); err != nil {
		t.Fatalf("verify just before expiry: %v", err)
	}

	clock.t = issued.Add(auth.TokenTTL + time.Second)
	if _, err := svc.Verify(tok); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestVerify_DifferentSecret_Invalid(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	other := newService(t, "another-secret-that-is-32-chars-long", clock)
	svc := newService(t, testSecret, clock)

	tok, err := other.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.Verify(tok); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_Malformed_Invalid(t *testing.T) {
	svc := newService(t, testSecret, &fakeClock{t: time.Now()})

	if _, err := svc.Verify("not.a.jwt"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_MissingSubject_Invalid(t *testing.T) {
	now := time.Now()
	svc := newService(t, testSecret, &fakeClock{t: now})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Verify(tok); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_MissingExpiry_Invalid(t *testing.T) {
	svc := newService(t, testSecret, &fakeClock{t: time.Now()})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-1",
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Verify(tok); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_NoneAlgorithm_Invalid(t *testing.T) {
	svc := newService(t, testSecret, &fakeClock{t: time.Now()})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Verify(tok); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}
