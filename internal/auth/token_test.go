package auth

import (
	"errors"
	"testing"
	"time"
)

func TestRegisterInstanceRoundTrip(t *testing.T) {
	secret := []byte("secret")
	claims, token, err := RegisterInstance(secret, "https://chat.example.com", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("RegisterInstance() error = %v", err)
	}
	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if parsed != claims {
		t.Fatalf("claims mismatch: got %+v want %+v", parsed, claims)
	}
	if parsed.Origin != "https://chat.example.com" {
		t.Fatalf("unexpected origin %q", parsed.Origin)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Instance: "instance-1",
		JTI:      "jti-1",
		Exp:      time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, issued); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("ParseToken() error = %v, want ErrExpiredToken", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	_, token, err := RegisterInstance([]byte("secret"), "", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("RegisterInstance() error = %v", err)
	}
	cases := map[string]string{
		"other secret": token,
		"no signature": token[:len(token)-1],
		"extra part":   token + ".x",
		"empty":        "",
	}
	for name, value := range cases {
		secret := []byte("secret")
		if name == "other secret" {
			secret = []byte("other")
		}
		if _, err := ParseToken(secret, value); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: ParseToken() error = %v, want ErrInvalidToken", name, err)
		}
	}
}
