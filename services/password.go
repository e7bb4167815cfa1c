package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

const (
	passwordLen  = 10
	symbols      = "!@#$%&*"
	upperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerLetters = "abcdefghijklmnopqrstuvwxyz"
	digits       = "0123456789"

	// idAlphabet is used for the random tail of menu item ids.
	idAlphabet = lowerLetters + digits
)

func pick(s string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(s))))
	if err != nil {
		return 0, err
	}
	return s[n.Int64()], nil
}

func randomString(alphabet string, n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		c, err := pick(alphabet)
		if err != nil {
			return "", err
		}
		b[i] = c
	}
	return string(b), nil
}

// GenerateOrderCode returns the 4-digit pickup code (1000-9999) shown to the customer.
func GenerateOrderCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("order code: %w", err)
	}
	return strconv.FormatInt(1000+n.Int64(), 10), nil
}

// GenerateSecurePassword returns a password with at least one uppercase, one lowercase, one digit, one symbol.
// Long enough for the admin minimum of 8. Uses crypto/rand. Do not log the returned string.
func GenerateSecurePassword() (string, error) {
	result := make([]byte, passwordLen)
	var err error
	result[0], err = pick(upperLetters)
	if err != nil {
		return "", err
	}
	result[1], err = pick(lowerLetters)
	if err != nil {
		return "", err
	}
	result[2], err = pick(digits)
	if err != nil {
		return "", err
	}
	result[3], err = pick(symbols)
	if err != nil {
		return "", err
	}
	all := upperLetters + lowerLetters + digits + symbols
	for i := 4; i < passwordLen; i++ {
		result[i], err = pick(all)
		if err != nil {
			return "", err
		}
	}
	// Shuffle Fisher-Yates with crypto/rand
	for i := passwordLen - 1; i >= 1; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("shuffle: %w", err)
		}
		j := int(n.Int64())
		result[i], result[j] = result[j], result[i]
	}
	return string(result), nil
}
