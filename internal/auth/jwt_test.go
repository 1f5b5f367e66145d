package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/atinyakov/CipherStudio/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("super-secret", time.Hour)
	tok, err := m.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	got, err := m.UserIDFromToken(tok)
	if err != nil {
		t.Fatalf("UserIDFromToken error: %v", err)
	}
	if got != "user-123" {
		t.Fatalf("userID mismatch: got %q want %q", got, "user-123")
	}
}

func TestUserIDFromToken_Expired(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }
	tok, err := m.GenerateToken("u1")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	m.now = time.Now
	if _, err := m.UserIDFromToken(tok); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestUserIDFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenManager("one", time.Hour).GenerateToken("u1")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := NewTokenManager("two", time.Hour).UserIDFromToken(tok); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestUserIDFromToken_Malformed(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", time.Hour)
	for _, in := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := m.UserIDFromToken(in); !errors.Is(err, common.ErrInvalidToken) {
			t.Errorf("UserIDFromToken(%q) = %v; want ErrInvalidToken", in, err)
		}
	}
}

func TestUserIDFromToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := NewTokenManager("secret", time.Hour).UserIDFromToken(s); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg none, got %v", err)
	}
}

func TestNewTokenManager_DefaultTTL(t *testing.T) {
	m := NewTokenManager("s", 0)
	if m.ttl != DefaultTokenTTL {
		t.Errorf("ttl = %v; want %v", m.ttl, DefaultTokenTTL)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter22", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if string(hash) == "hunter22" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("CheckPassword accepted a wrong password")
	}
}

func TestDummyHash_UsesCost(t *testing.T) {
	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 2} {
		hash, err := DummyHash(cost)
		if err != nil {
			t.Fatalf("DummyHash(%d) error: %v", cost, err)
		}
		got, err := bcrypt.Cost(hash)
		if err != nil {
			t.Fatalf("bcrypt.Cost error: %v", err)
		}
		if got != cost {
			t.Errorf("DummyHash cost = %d; want %d", got, cost)
		}
		if CheckPassword(hash, "anything") {
			t.Error("dummy hash matched an arbitrary password")
		}
	}
}
