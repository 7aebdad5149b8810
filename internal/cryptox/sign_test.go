package cryptox

import (
	"strings"
	"testing"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	secret := []byte("secret")
	signed := Sign(secret, "accessToken", "a.b.c")

	if !strings.HasPrefix(signed, "a.b.c.") {
		t.Fatalf("signed value must keep the original as prefix, got %q", signed)
	}
	got, ok := Verify(secret, "accessToken", signed)
	if !ok || got != "a.b.c" {
		t.Fatalf("Verify = %q, %v", got, ok)
	}
}

func TestVerify_Rejects(t *testing.T) {
	secret := []byte("secret")
	signed := Sign(secret, "accessToken", "value")

	tests := []struct {
		name   string
		secret []byte
		label  string
		signed string
	}{
		{"wrong secret", []byte("other"), "accessToken", signed},
		{"moved to another label", secret, "refreshToken", signed},
		{"tampered value", secret, "accessToken", "x" + signed},
		{"no tag", secret, "accessToken", "value"},
		{"empty value", secret, "accessToken", "." + strings.SplitN(signed, ".", 2)[1]},
		{"bad base64", secret, "accessToken", "value.!!!"},
		{"empty", secret, "accessToken", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Verify(tt.secret, tt.label, tt.signed); ok {
				t.Fatalf("expected rejection of %q", tt.signed)
			}
		})
	}
}
