// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package functions

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
)

// Sha256Sum returns the hex encoded SHA-256 digest of the string form of input.
func Sha256Sum(input any) string {
	hash := sha256.Sum256([]byte(ToString(input)))
	return hex.EncodeToString(hash[:])
}

// Sha512Sum returns the hex encoded SHA-512 digest of the string form of input.
func Sha512Sum(input any) string {
	hash := sha512.Sum512([]byte(ToString(input)))
	return hex.EncodeToString(hash[:])
}
