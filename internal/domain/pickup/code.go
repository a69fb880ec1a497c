// internal/domain/pickup/code.go
package pickup

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Letters and digits that cannot be confused with each other when read
// aloud or off a phone screen: no I, O, 0 or 1.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 8

func generateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(codeLength + 1)
	for i := 0; i < codeLength; i++ {
		if i == codeLength/2 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate pickup code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode accepts codes typed with or without the dash, in any case
// and with surrounding spaces, and returns the canonical XXXX-XXXX form.
func NormalizeCode(raw string) (string, bool) {
	cleaned := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(raw))
	if len(cleaned) != codeLength {
		return "", false
	}
	for _, r := range cleaned {
		if !strings.ContainsRune(codeAlphabet, r) {
			return "", false
		}
	}
	return cleaned[:codeLength/2] + "-" + cleaned[codeLength/2:], true
}
