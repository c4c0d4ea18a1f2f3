package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller as asserted by the identity platform.
type Identity struct {
	UserID string
	Email  string
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 access tokens issued by the identity
// platform with the shared JWT secret.
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func (v *TokenVerifier) keyFunc(*jwt.Token) (interface{}, error) {
	return v.secret, nil
}

func (v *TokenVerifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	var claims Claims
	if _, err := v.parser.ParseWithClaims(tokenString, &claims, v.keyFunc); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

func NewTokenVerifier(secret string, audience string) *TokenVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &TokenVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}
}
