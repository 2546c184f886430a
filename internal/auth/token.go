package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/opsconsole/dispatch/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	ProviderID string `json:"provider_id,omitempty"`
	jwt.RegisteredClaims
}

// Parser validates access tokens and extracts the Principal.
type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(tokenString string) (model.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return model.Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return model.Principal{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return model.Principal{}, ErrInvalidToken
	}

	principal := model.Principal{
		UserID: userID,
		Role:   model.Role(claims.Role),
	}
	switch principal.Role {
	case model.RoleDispatcher, model.RoleDriver, model.RoleProvider:
	default:
		return model.Principal{}, ErrInvalidToken
	}

	if claims.ProviderID != "" {
		providerID, err := uuid.Parse(claims.ProviderID)
		if err != nil {
			return model.Principal{}, ErrInvalidToken
		}
		principal.ProviderID = providerID
	}
	return principal, nil
}
