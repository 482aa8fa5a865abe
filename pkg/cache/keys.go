package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyGenerator builds cache keys for object lookups. Filter keys are
// sorted and escaped so logically equal lookups always produce the same
// key regardless of map iteration order.
type KeyGenerator struct {
	// Prefix is prepended to all generated keys.
	Prefix string
	// MaxKeyLength caps the key size; longer keys are replaced by a
	// hashed form to stay within backend key-size limits.
	MaxKeyLength int
}

// DefaultKeyGenerator returns a key generator suitable for most backends.
func DefaultKeyGenerator() *KeyGenerator {
	return &KeyGenerator{
		Prefix:       "lookup:",
		MaxKeyLength: 200,
	}
}

// LookupKey generates a key for a single-object lookup on the named
// resource. The shape distinguishes detail lookups from other request
// shapes sharing the same filter set.
func (kg *KeyGenerator) LookupKey(resource, shape string, filters map[string]interface{}) string {
	parts := make([]string, 0, len(filters))
	for key, value := range filters {
		parts = append(parts, fmt.Sprintf("%s=%s",
			url.QueryEscape(key),
			url.QueryEscape(fmt.Sprintf("%v", value))))
	}
	sort.Strings(parts)

	key := kg.Prefix + resource + ":" + shape + ":" + strings.Join(parts, "&")
	if kg.MaxKeyLength > 0 && len(key) > kg.MaxKeyLength {
		hash := sha256.Sum256([]byte(key))
		// Truncated to 16 bytes; collisions remain negligible at 128 bits.
		return kg.Prefix + resource + ":" + shape + ":" + hex.EncodeToString(hash[:16])
	}
	return key
}
