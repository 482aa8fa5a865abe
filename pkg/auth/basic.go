package auth

import (
	"fmt"
	"net/http"
)

// UserLookup resolves a username to its stored bcrypt password hash and
// identity. Implementations return an error for unknown usernames.
type UserLookup func(r *http.Request, username string) (hash string, identity *Identity, err error)

// Basic authenticates requests with HTTP Basic credentials checked against
// bcrypt hashes supplied by a lookup function.
type Basic struct {
	lookup UserLookup
}

// NewBasic creates a Basic authenticator over the given lookup.
func NewBasic(lookup UserLookup) *Basic {
	return &Basic{lookup: lookup}
}

// Authenticate verifies the request's Basic credentials.
func (b *Basic) Authenticate(r *http.Request) (*Identity, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrNoCredentials
	}

	hash, identity, err := b.lookup(r, username)
	if err != nil {
		return nil, fmt.Errorf("unknown user %q: %w", username, err)
	}
	if !CheckPassword(password, hash) {
		return nil, fmt.Errorf("invalid credentials for %q", username)
	}

	if identity == nil {
		identity = &Identity{Subject: username, Name: username}
	}
	return identity, nil
}
