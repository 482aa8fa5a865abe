// Package auth provides the authentication capability injected into
// resources: an Authenticator interface with JWT bearer-token and HTTP
// Basic implementations, plus bcrypt password helpers and context
// carriers for the authenticated identity.
package auth

import "net/http"

// Identity is an authenticated principal.
type Identity struct {
	// Subject is the stable principal identifier
	Subject string
	// Name is the display name or username
	Name string
	// Roles holds the principal's role names
	Roles []string
}

// HasRole reports whether the identity carries the given role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authenticator establishes the identity of a request. A nil identity with
// a nil error means the request proceeds anonymously; an error rejects the
// request as unauthenticated.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// Anonymous accepts every request without establishing an identity.
type Anonymous struct{}

// Authenticate allows the request with no identity.
func (Anonymous) Authenticate(r *http.Request) (*Identity, error) {
	return nil, nil
}
