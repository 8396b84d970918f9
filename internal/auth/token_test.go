package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(strings.Repeat("k", 32)))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	return signToken(t, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
}

func TestValidate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	cases := []struct {
		name  string
		token string
		want  Result
	}{
		{"futuro", tokenExpiringAt(t, now.Add(time.Hour)), Valid},
		{"exp igual ao agora", tokenExpiringAt(t, now), Valid},
		{"expirado", tokenExpiringAt(t, now.Add(-10*time.Second)), Expired},
		{"vazio", "", Malformed},
		{"lixo", "isto-nao-e-um-jwt", Malformed},
		{"segmentos corrompidos", "a.b.c", Malformed},
		{"sem exp", signToken(t, jwt.RegisteredClaims{Subject: "42"}), Malformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Validate(tc.token, now); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDecodeReturnsClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	claims, err := Decode(tokenExpiringAt(t, exp))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Role != "admin" || claims.Subject != "42" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(exp) {
		t.Fatalf("expected exp %v, got %v", exp, claims.ExpiresAt.Time)
	}
}

func TestDecodeWrapsErrDecode(t *testing.T) {
	_, err := Decode("x.y")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestValidatorUsesClock(t *testing.T) {
	exp := time.Unix(2_000, 0)
	token := tokenExpiringAt(t, exp)

	before := NewValidatorWithClock(func() time.Time { return exp.Add(-time.Second) })
	after := NewValidatorWithClock(func() time.Time { return exp.Add(time.Second) })

	if got := before.Check(token); got != Valid {
		t.Fatalf("expected valid before exp, got %s", got)
	}
	if got := after.Check(token); got != Expired {
		t.Fatalf("expected expired after exp, got %s", got)
	}
	if !errors.Is(after.Check(token).Err(), ErrExpired) {
		t.Fatalf("expected ErrExpired")
	}
}
