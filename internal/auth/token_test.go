package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/opsconsole/dispatch/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestParseRoundTrip(t *testing.T) {
	parser := NewParser(testSecret)
	userID := uuid.New()
	providerID := uuid.New()

	token := signToken(t, Claims{
		UserID:     userID.String(),
		Role:       "PROVIDER",
		ProviderID: providerID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	principal, err := parser.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if principal.UserID != userID {
		t.Fatal("user id mismatch")
	}
	if principal.Role != model.RoleProvider || !principal.IsProvider() {
		t.Fatalf("expected PROVIDER role, got %s", principal.Role)
	}
	if principal.ProviderID != providerID {
		t.Fatal("provider id mismatch")
	}
}

func TestParseRejects(t *testing.T) {
	parser := NewParser(testSecret)
	valid := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"wrong secret", signToken(t, Claims{
			UserID: uuid.NewString(), Role: "DRIVER", RegisteredClaims: valid,
		}, "other-secret")},
		{"expired", signToken(t, Claims{
			UserID: uuid.NewString(), Role: "DRIVER",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
		}, testSecret)},
		{"unknown role", signToken(t, Claims{
			UserID: uuid.NewString(), Role: "ADMIN", RegisteredClaims: valid,
		}, testSecret)},
		{"bad user id", signToken(t, Claims{
			UserID: "not-a-uuid", Role: "DRIVER", RegisteredClaims: valid,
		}, testSecret)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parser.Parse(tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
