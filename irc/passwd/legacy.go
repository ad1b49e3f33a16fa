// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package passwd

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// Account rows store a digest plus the algorithm tag it was produced under.
// The scheme is unsalted; the tag-without-salt shape is preserved for
// compatibility with rows written by older deployments.

var (
	ErrUnknownAlgorithm = errors.New("unknown password algorithm")

	digests = map[string]func([]byte) []byte{
		"md5": func(b []byte) []byte {
			sum := md5.Sum(b)
			return sum[:]
		},
		"sha1": func(b []byte) []byte {
			sum := sha1.Sum(b)
			return sum[:]
		},
		"sha256": func(b []byte) []byte {
			sum := sha256.Sum256(b)
			return sum[:]
		},
		"sha512": func(b []byte) []byte {
			sum := sha512.Sum512(b)
			return sum[:]
		},
	}
)

// SupportedAlgorithm reports whether EncodeLegacy understands the tag.
func SupportedAlgorithm(algorithm string) bool {
	if algorithm == "bcrypt" {
		return true
	}
	_, ok := digests[algorithm]
	return ok
}

// EncodeLegacy encodes password under the tagged algorithm, yielding the
// string form stored in an account row.
func EncodeLegacy(algorithm, password string) (string, error) {
	if algorithm == "bcrypt" {
		hashed, err := GenerateFromPassword([]byte(password), DefaultCost)
		return string(hashed), err
	}
	digest, ok := digests[algorithm]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
	return hex.EncodeToString(digest([]byte(password))), nil
}

// VerifyLegacy checks password against a stored encoding in constant time.
func VerifyLegacy(algorithm, stored, password string) bool {
	if algorithm == "bcrypt" {
		return CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	encoded, err := EncodeLegacy(algorithm, password)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(encoded), []byte(stored)) == 1
}
