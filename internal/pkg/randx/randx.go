/*
Package randx provides functions for generating cryptographically secure random tokens and
unique identifiers.

It produces anonymous identity ids, generated fallback display names and UUID message ids.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 tokens (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base36Chars defines the lowercase character set used for identity tokens.
	Base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

	// IdentityIDPrefix is the prefix of every client-generated identity id.
	IdentityIDPrefix = "user_"

	// IdentityTokenLength is the length of the random tail of an identity id.
	IdentityTokenLength = 9

	// FallbackNamePrefix is the prefix of generated display names.
	FallbackNamePrefix = "Anonymous_"

	// FallbackNameTokenLength is the number of Base62 characters after FallbackNamePrefix.
	FallbackNameTokenLength = 6

	// MaxIdentityIDLength bounds the self-asserted ids accepted from viewers.
	MaxIdentityIDLength = 128
)

// token draws length characters uniformly from alphabet using crypto/rand.
func token(alphabet string, length int) (string, error) {
	result := make([]byte, length)
	limit := big.NewInt(int64(len(alphabet)))

	for i := range length {
		num, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}

	return string(result), nil
}

// IdentityID returns "user_<unix millis>_<9 base36 chars>".
func IdentityID(now time.Time) (string, error) {
	tail, err := token(Base36Chars, IdentityTokenLength)
	if err != nil {
		return "", err
	}

	return IdentityIDPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + tail, nil
}

// FallbackName returns "Anonymous_" followed by 6 random Base62 characters.
func FallbackName() (string, error) {
	tail, err := token(Base62Chars, FallbackNameTokenLength)
	if err != nil {
		return "", err
	}

	return FallbackNamePrefix + tail, nil
}

// MessageID generates a UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}

// IsAcceptableIdentityID reports whether a self-asserted id can be stored.
// Identities are client-generated, so only shape limits are enforced: non-empty, bounded,
// printable and free of whitespace.
func IsAcceptableIdentityID(id string) bool {
	if id == "" || len(id) > MaxIdentityIDLength {
		return false
	}

	return !strings.ContainsFunc(id, func(r rune) bool {
		return r <= ' ' || r == 0x7f
	})
}
