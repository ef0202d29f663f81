// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Hasher names accepted by NewHasher.
const (
	HasherHMACSHA512 = "hmac-sha512"
	HasherArgon2id   = "argon2id"
)

// hmacKeyLen is the HMAC-SHA512 key (salt) size in bytes, the block size
// of SHA-512.
const hmacKeyLen = 128

// argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher derives and checks password hashes. Hash and salt are
// returned Base64 (standard alphabet) encoded and stored side by side.
type PasswordHasher interface {
	// Hash derives a hash of password under a fresh random salt.
	Hash(password string) (hash, salt string, err error)

	// Verify returns (true, nil) on match and (false, nil) on mismatch.
	// Undecodable hash or salt yields AUTH_INVALID_CREDENTIAL_DATA.
	Verify(password, hash, salt string) (bool, error)
}

// NewHasher returns the hasher registered under name.
func NewHasher(name string) (PasswordHasher, error) {
	switch name {
	case "", HasherHMACSHA512:
		return NewHMACSHA512Hasher(), nil
	case HasherArgon2id:
		return NewArgon2idHasher(), nil
	default:
		return nil, oops.Code("AUTH_UNKNOWN_HASHER").With("hasher", name).Errorf("unknown password hasher %q", name)
	}
}

// HMACSHA512Hasher keys HMAC-SHA512 with a random 128-byte salt.
type HMACSHA512Hasher struct{}

// NewHMACSHA512Hasher creates an HMACSHA512Hasher.
func NewHMACSHA512Hasher() *HMACSHA512Hasher {
	return &HMACSHA512Hasher{}
}

// Hash implements PasswordHasher.
func (h *HMACSHA512Hasher) Hash(password string) (hash, salt string, err error) {
	if password == "" {
		return "", "", ErrEmptyPassword
	}
	key, err := randomBytes(hmacKeyLen)
	if err != nil {
		return "", "", err
	}
	sum := hmacSHA512(key, password)
	return base64.StdEncoding.EncodeToString(sum), base64.StdEncoding.EncodeToString(key), nil
}

// Verify implements PasswordHasher.
func (h *HMACSHA512Hasher) Verify(password, hash, salt string) (bool, error) {
	expected, key, err := decodeCredential(hash, salt)
	if err != nil {
		return false, err
	}
	return hmac.Equal(hmacSHA512(key, password), expected), nil
}

func hmacSHA512(key []byte, password string) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

// Argon2idHasher derives hashes with argon2id.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash implements PasswordHasher.
func (h *Argon2idHasher) Hash(password string) (hash, salt string, err error) {
	if password == "" {
		return "", "", ErrEmptyPassword
	}
	raw, err := randomBytes(argon2SaltLen)
	if err != nil {
		return "", "", err
	}
	key := argon2.IDKey([]byte(password), raw, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(raw), nil
}

// Verify implements PasswordHasher.
func (h *Argon2idHasher) Verify(password, hash, salt string) (bool, error) {
	expected, raw, err := decodeCredential(hash, salt)
	if err != nil {
		return false, err
	}
	if len(expected) != argon2KeyLen {
		return false, oops.Code("AUTH_INVALID_CREDENTIAL_DATA").
			With("key_length", len(expected)).
			Errorf("stored hash has unexpected length")
	}
	computed := argon2.IDKey([]byte(password), raw, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func decodeCredential(hash, salt string) (hashBytes, saltBytes []byte, err error) {
	hashBytes, err = base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return nil, nil, oops.Code("AUTH_INVALID_CREDENTIAL_DATA").With("field", "hash").Wrap(err)
	}
	saltBytes, err = base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, nil, oops.Code("AUTH_INVALID_CREDENTIAL_DATA").With("field", "salt").Wrap(err)
	}
	if len(hashBytes) == 0 || len(saltBytes) == 0 {
		return nil, nil, oops.Code("AUTH_INVALID_CREDENTIAL_DATA").Errorf("stored hash or salt is empty")
	}
	return hashBytes, saltBytes, nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, oops.Code("AUTH_RANDOM_FAILED").With("requested_bytes", n).Wrap(err)
	}
	return b, nil
}
