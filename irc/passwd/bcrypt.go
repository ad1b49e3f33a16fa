// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package passwd

import (
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"
)

const (
	MinCost     = bcrypt.MinCost
	DefaultCost = 12
)

// bcrypt has a 72-byte input limit, so the password is prehashed with a
// fast 512-bit hash first, allowing passphrases of any length.

// GenerateFromPassword returns a strong hash of password.
func GenerateFromPassword(password []byte, cost int) (result []byte, err error) {
	sum := sha3.Sum512(password)
	return bcrypt.GenerateFromPassword(sum[:], cost)
}

// CompareHashAndPassword checks password against a GenerateFromPassword hash.
func CompareHashAndPassword(hashedPassword, password []byte) error {
	sum := sha3.Sum512(password)
	return bcrypt.CompareHashAndPassword(hashedPassword, sum[:])
}
