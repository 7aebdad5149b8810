// Package cryptox holds the keyed-hash helpers used to sign values handed to
// clients, such as token cookies.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Sign appends an HMAC-SHA256 tag to value.
//
// The tag covers both label and value, so a signed value is only accepted
// back under the same label. The result has the form
//
//	value + "." + base64url(HMAC-SHA256(secret, label + "=" + value))
//
// Example:
//
//	signed := Sign(secret, "accessToken", token)
//	token, ok := Verify(secret, "accessToken", signed)
func Sign(secret []byte, label, value string) string {
	return value + "." + base64.RawURLEncoding.EncodeToString(mac(secret, label, value))
}

// Verify checks a value produced by Sign and returns the original value. It
// reports false for a missing, malformed or non-matching tag.
func Verify(secret []byte, label, signed string) (string, bool) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 {
		return "", false
	}
	value, tag := signed[:i], signed[i+1:]
	got, err := base64.RawURLEncoding.DecodeString(tag)
	if err != nil || !hmac.Equal(got, mac(secret, label, value)) {
		return "", false
	}
	return value, true
}

func mac(secret []byte, label, value string) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(label))
	m.Write([]byte{'='})
	m.Write([]byte(value))
	return m.Sum(nil)
}
