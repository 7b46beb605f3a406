// Package webhook verifies and decodes provider completion callbacks.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Verify checks an inbound webhook body against its signature header.
// The header format is "sha256=<hex>" where <hex> is HMAC-SHA256 of the raw
// body keyed with the shared secret. Comparison is constant time. Any
// malformation returns false; callers must treat every false identically
// (reject with 401) and must not decode the payload as trusted data first.
func Verify(rawBody []byte, signatureHeader, secret string) bool {
	if secret == "" {
		return false
	}
	if !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return false
	}
	provided, err := hex.DecodeString(signatureHeader[len(signaturePrefix):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	return hmac.Equal(provided, expected)
}

// Sign computes the signature header value for a body, for tests and
// outbound verification tooling.
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
