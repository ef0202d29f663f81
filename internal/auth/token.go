// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// OpaqueTokenBytes is the entropy of refresh, reset and verification tokens.
const OpaqueTokenBytes = 64

// GenerateOpaqueToken returns OpaqueTokenBytes random bytes, Base64 encoded.
// The token carries no structure; it is a pure bearer secret.
func GenerateOpaqueToken() (string, error) {
	b, err := randomBytes(OpaqueTokenBytes)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// newOpaqueToken returns a token and the hash under which it is stored.
func newOpaqueToken() (token, hash string, err error) {
	token, err = GenerateOpaqueToken()
	if err != nil {
		return "", "", err
	}
	return token, HashToken(token), nil
}

// HashToken computes the hex SHA-256 digest under which a token is stored.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyToken checks a plaintext token against a stored hash in
// constant time.
func VerifyToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hash)) == 1
}
