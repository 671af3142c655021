// Package auth holds the user identity model and API-key hashing used to
// authenticate catalog requests.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// User is an authenticated principal. Products record the ID of the user who
// created or last modified them.
type User struct {
	ID       uuid.UUID
	Email    string
	FullName string
	KeyHash  string
	Roles    []string
	Active   bool
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HashKey derives the stored lookup hash for a raw API key. The pepper is a
// server-side secret so leaked hashes cannot be brute-forced offline against
// the key space alone.
func HashKey(key, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Repository provides lookup of users by the hash of their API key.
// Implementations return an error for unknown hashes and inactive users.
type Repository interface {
	FindByKeyHash(ctx context.Context, hash string) (*User, error)
}
