package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateCode returns a random numeric code of the given length, left-padded
// with zeros.
func GenerateCode(length int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// HashCodeHex returns SHA-256(phone:business:code:salt) as hex for storage.
func HashCodeHex(phone, business, code, salt string) string {
	return hex.EncodeToString(HashCode(phone, business, code, salt))
}

// HashCode returns the raw SHA-256 digest of phone:business:code:salt.
func HashCode(phone, business, code, salt string) []byte {
	sum := sha256.Sum256([]byte(phone + ":" + business + ":" + code + ":" + salt))
	return sum[:]
}

// CodeEqual compares a submitted code's hash against the stored one in
// constant time.
func CodeEqual(stored []byte, phone, business, code, salt string) bool {
	return subtle.ConstantTimeCompare(stored, HashCode(phone, business, code, salt)) == 1
}
