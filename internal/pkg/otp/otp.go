package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// CodeLength is the number of decimal digits in a one-time code.
const CodeLength = 6

// Codec hashes one-time codes for at-rest storage and compares submissions in
// constant time. Construct once at startup and inject; the secret peppers the
// digest so a leaked cache dump alone cannot be brute-forced offline cheaply.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("otp: empty hashing secret")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Hash returns the lowercase-hex HMAC-SHA256 digest of code.
func (c *Codec) Hash(code string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Compare reports whether code hashes to storedHash. Length mismatch returns
// false without error; the byte comparison is constant-time.
func (c *Codec) Compare(code, storedHash string) bool {
	computed := c.Hash(code)
	if len(computed) != len(storedHash) {
		return false
	}
	return hmac.Equal([]byte(computed), []byte(storedHash))
}

// Generate returns a 6-digit numeric code from a cryptographically strong
// source. Leading zeros are permitted.
func Generate() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("otp: generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}
