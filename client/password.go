package client

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// PasswordType is the only password_type the device is expected to
// advertise that HashPassword can satisfy.
const PasswordType = "4"

// HashPassword computes the password_type=4 login credential:
//
//	base64(sha256hex(username + base64(sha256hex(password)) + token))
//
// base64 is applied to the hex string, not to the raw digest.
func HashPassword(username, password, token string) string {
	hashed := base64Hex(sha256Hex(password))
	return base64Hex(sha256Hex(username + hashed + token))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func base64Hex(h string) string {
	return base64.StdEncoding.EncodeToString([]byte(h))
}
