package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAccessToken_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateAccessToken("user-1", "admin")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	userID, role, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("expected user-1, got %s", userID)
	}
	if role != "admin" {
		t.Errorf("expected admin, got %s", role)
	}
}

func TestGenerateAccessToken_EmptyUserID(t *testing.T) {
	svc := NewJWTService("test-secret")

	if _, err := svc.GenerateAccessToken("", "admin"); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestValidateAccessToken_RejectsRefreshToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateRefreshToken("user-1")
	if err != nil {
		t.Fatalf("failed to generate refresh token: %v", err)
	}

	if _, _, err := svc.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for refresh token, got %v", err)
	}
}

func TestValidateRefreshToken_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateRefreshToken("user-2")
	if err != nil {
		t.Fatalf("failed to generate refresh token: %v", err)
	}

	userID, err := svc.ValidateRefreshToken(token)
	if err != nil {
		t.Fatalf("failed to validate refresh token: %v", err)
	}
	if userID != "user-2" {
		t.Errorf("expected user-2, got %s", userID)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc := NewJWTService("secret-a")
	other := NewJWTService("secret-b")

	token, err := svc.GenerateAccessToken("user-1", "staff")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateToken_RotationAcceptsPreviousSecret(t *testing.T) {
	oldSvc := NewJWTService("old-secret")
	token, err := oldSvc.GenerateAccessToken("user-1", "teacher")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	rotated := NewJWTServiceWithRotation("new-secret", "old-secret")
	claims, err := rotated.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected previous-secret token to validate: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %s", claims.Subject)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewJWTService("test-secret").WithLeeway(0)

	now := time.Now().Add(-2 * time.Hour)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Type: TokenTypeAccess,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := svc.ValidateToken(signed); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateToken_RejectsWrongAlgorithm(t *testing.T) {
	svc := NewJWTService("test-secret")

	// Token signed with "none" must never validate.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Type:             TokenTypeAccess,
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := svc.ValidateToken(signed); err == nil {
		t.Error("expected unsigned token to be rejected")
	}
}
