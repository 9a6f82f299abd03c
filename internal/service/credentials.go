package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/Payphone-Digital/account-service/internal/constants"
	"golang.org/x/crypto/bcrypt"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// generateCode returns length characters from the alphanumeric set,
// upper cased.
func generateCode(length int) (string, error) {
	max := big.NewInt(int64(len(constants.CodeCharset)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		b[i] = constants.CodeCharset[n.Int64()]
	}
	return strings.ToUpper(string(b)), nil
}
