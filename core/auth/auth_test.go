package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "s3cret" {
		t.Fatal("password stored in clear")
	}
	if !CheckPasswordHash("s3cret", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestIssueAndParse(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, Claims{UserID: 7, Email: "dj@example.com", ArtistName: "DJ"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != 7 || claims.Subject != "7" || claims.ArtistName != "DJ" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := Parse([]byte("other"), token); err == nil {
		t.Fatal("token accepted with the wrong secret")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, Claims{UserID: 1}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(secret, token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestParseRejectsUnexpectedAlgorithm(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()
	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(secret, tokenStr); err == nil {
		t.Fatal("expected parse to reject non-HS256 token")
	}
}
