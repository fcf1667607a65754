package auth

import (
	"encoding/hex"
	"testing"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode(6)
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q should be 6 characters", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q should be numeric", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("50 generated codes should not all collide")
	}
}

func TestHashCodeHex_deterministic(t *testing.T) {
	h1 := HashCodeHex("+15551234567", "ACME", "123456", "salt")
	h2 := HashCodeHex("+15551234567", "ACME", "123456", "salt")
	if h1 != h2 {
		t.Errorf("hash should be deterministic: %q != %q", h1, h2)
	}
	decoded, err := hex.DecodeString(h1)
	if err != nil {
		t.Fatalf("hash should be valid hex: %v", err)
	}
	if len(decoded) != 32 {
		t.Errorf("SHA-256 hash should be 32 bytes, got %d", len(decoded))
	}
}

func TestHashCode_inputsBound(t *testing.T) {
	base := HashCodeHex("+15551234567", "ACME", "123456", "salt")
	variants := []string{
		HashCodeHex("+15551234568", "ACME", "123456", "salt"),
		HashCodeHex("+15551234567", "OTHER", "123456", "salt"),
		HashCodeHex("+15551234567", "ACME", "654321", "salt"),
		HashCodeHex("+15551234567", "ACME", "123456", "pepper"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d should hash differently", i)
		}
	}
}

func TestCodeEqual(t *testing.T) {
	stored := HashCode("+15551234567", "ACME", "123456", "salt")
	if !CodeEqual(stored, "+15551234567", "ACME", "123456", "salt") {
		t.Error("matching code should compare equal")
	}
	if CodeEqual(stored, "+15551234567", "ACME", "654321", "salt") {
		t.Error("wrong code should not compare equal")
	}
	if CodeEqual(stored, "+15551234567", "OTHER", "123456", "salt") {
		t.Error("wrong business should not compare equal")
	}
	if CodeEqual(nil, "+15551234567", "ACME", "123456", "salt") {
		t.Error("empty stored hash should not compare equal")
	}
}
