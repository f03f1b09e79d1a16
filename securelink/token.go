// Package securelink issues and validates the bearer tokens that let a
// client act on exactly one RFI without an account.
package securelink

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var digitsRe = regexp.MustCompile(`\d+`)

// TokenContext carries the human-legible prefix material for a token:
// which project and which RFI the link belongs to. Purely cosmetic for
// support/debugging; unpredictability comes from the random suffix.
type TokenContext struct {
	ProjectName string
	RFINumber   string // display number, e.g. "RFI-012"
}

// GenerateToken produces a URL-safe bearer token. With context:
// <3-letter project code>-R<3-digit number>-<2-digit year>-<4 base62 chars>.
// Without context: 32 random bytes, hex encoded. The random part always
// comes from crypto/rand; the token is a credential, so a seeded PRNG is
// not an option here.
func GenerateToken(tc *TokenContext) (string, error) {
	if tc == nil {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		return hex.EncodeToString(b), nil
	}

	suffix, err := randBase62(4)
	if err != nil {
		return "", err
	}
	year := time.Now().Year() % 100
	return fmt.Sprintf("%s-R%03d-%02d-%s",
		projectCode(tc.ProjectName), rfiSequence(tc.RFINumber), year, suffix), nil
}

// projectCode reduces a project name to a 3-letter upper-case code:
// non-letters stripped, truncated or padded with 'X'.
func projectCode(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
		if b.Len() == 3 {
			break
		}
	}
	code := strings.ToUpper(b.String())
	for len(code) < 3 {
		code += "X"
	}
	return code
}

// rfiSequence pulls the numeric portion out of a display number like
// "RFI-012". Unparseable numbers collapse to 0.
func rfiSequence(display string) int {
	m := digitsRe.FindString(display)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func randBase62(n int) (string, error) {
	max := big.NewInt(int64(len(base62Alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = base62Alphabet[idx.Int64()]
	}
	return string(out), nil
}
