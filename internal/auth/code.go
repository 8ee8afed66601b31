package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"neurochat/internal/constants"
)

var codePattern = regexp.MustCompile(fmt.Sprintf(`^[0-9A-F]{%d}$`, constants.AuthCodeLength))

// GenerateCode creates an 8-character uppercase hex code using crypto/rand.
func GenerateCode() (string, error) {
	b := make([]byte, constants.AuthCodeLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// NormalizeCode canonicalizes user input before lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsWellFormedCode reports whether a normalized code has the issued shape.
// Malformed input can be rejected without touching cache or store.
func IsWellFormedCode(code string) bool {
	return codePattern.MatchString(code)
}
