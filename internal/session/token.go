// ABOUTME: Access-token claim inspection for stored sessions
// ABOUTME: Unverified JWT parse extracting subject, email, role metadata, and expiry

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrMalformedToken = errors.New("malformed access token")
	ErrMissingSubject = errors.New("token has no subject claim")
)

// Claims are the access-token attributes this client cares about.
type Claims struct {
	UserID      string
	Email       string
	TipoUsuario string
	ExpiresAt   time.Time
}

// ParseClaims extracts claims from an access token without verifying the
// signature. Verification is the backend's job; locally the token only
// identifies the user and dates the session.
func ParseClaims(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMalformedToken
	}

	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrMissingSubject
	}

	claims := &Claims{UserID: sub}

	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if meta, ok := mapClaims["user_metadata"].(map[string]any); ok {
		if tipo, ok := meta["tipo_usuario"].(string); ok {
			claims.TipoUsuario = tipo
		}
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}
