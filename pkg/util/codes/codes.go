package codes

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrInvalidLength = errors.New("invalid code length")
)

const (
	// ReferralCodeLength is the number of random characters after the prefix.
	ReferralCodeLength = 10

	// Upper case alphanumeric excluding ambiguous characters (0/O, 1/I/L).
	charsetReferral = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// GenerateReferralCode returns prefix followed by ReferralCodeLength random
// characters, e.g. "INF7KQ2MZP4XD". Codes are upper case so that
// NormalizeCode(userInput) matches them.
func GenerateReferralCode(prefix string) (string, error) {
	body, err := GenerateCode(ReferralCodeLength, charsetReferral)
	if err != nil {
		return "", err
	}
	return NormalizeCode(prefix) + body, nil
}

// GenerateCode creates a code of specified length from a given character set.
func GenerateCode(length int, charset string) (string, error) {
	if length < 1 {
		return "", ErrInvalidLength
	}
	if len(charset) == 0 {
		return "", errors.New("charset cannot be empty")
	}

	return generateFromCharset(length, charset)
}

// NormalizeCode normalizes a code for comparison (uppercase, trim whitespace,
// formatting dashes removed).
func NormalizeCode(code string) string {
	code = strings.ReplaceAll(code, "-", "")
	return strings.ToUpper(strings.TrimSpace(code))
}

func generateFromCharset(length int, charset string) (string, error) {
	result := make([]byte, length)
	max := big.NewInt(int64(len(charset)))

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random character: %w", err)
		}
		result[i] = charset[n.Int64()]
	}

	return string(result), nil
}
