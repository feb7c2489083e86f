package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidateToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateToken("u1", "ana@studio.example", "Ana Petrovic")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "ana@studio.example" || claims.FullName != "Ana Petrovic" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestValidateTokenRejectsForeignSigningMethod(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	// A token must not get to pick its own algorithm; even one signed with
	// the correct secret under a different HMAC variant is rejected.
	claims := &Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(jwtSecret())
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := ValidateToken(signed); err == nil {
		t.Error("token signed with HS384 accepted")
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := ValidateToken(unsigned); err == nil {
		t.Error("unsigned token accepted")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	claims := &Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret())
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := ValidateToken(signed); err == nil {
		t.Error("expired token accepted")
	}
}
