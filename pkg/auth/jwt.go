package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredentials is returned when a request carries no usable credentials
var ErrNoCredentials = errors.New("no credentials provided")

// JWT authenticates requests by a bearer token in the Authorization header
// and issues tokens for identities. Tokens are signed with HS256.
type JWT struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWT creates a JWT authenticator with the given secret key and token TTL.
func NewJWT(secretKey string, tokenTTL time.Duration) *JWT {
	return &JWT{
		secretKey: secretKey,
		tokenTTL:  tokenTTL,
	}
}

// IssueToken generates a signed token for the identity.
func (j *JWT) IssueToken(identity Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   identity.Subject,
		"name":  identity.Name,
		"roles": identity.Roles,
		"exp":   now.Add(j.tokenTTL).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// Authenticate validates the bearer token on the request.
func (j *JWT) Authenticate(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrNoCredentials
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fmt.Errorf("malformed authorization header")
	}

	return j.ValidateToken(parts[1])
}

// ValidateToken parses and verifies a token string and returns the identity
// it carries.
func (j *JWT) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Verify exact signing method to prevent algorithm confusion attacks
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	identity := &Identity{}
	if sub, ok := claims["sub"].(string); ok {
		identity.Subject = sub
	}
	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	if raw, ok := claims["roles"].([]interface{}); ok {
		for _, role := range raw {
			if s, ok := role.(string); ok {
				identity.Roles = append(identity.Roles, s)
			}
		}
	}

	if identity.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return identity, nil
}
