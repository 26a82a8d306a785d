package randx

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityIDShape(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	id, err := IdentityID(now)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^user_1700000000123_[0-9a-z]{9}$`), id)
}

func TestIdentityIDIsRandom(t *testing.T) {
	now := time.Now()
	a, err := IdentityID(now)
	require.NoError(t, err)
	b, err := IdentityID(now)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestFallbackNameShape(t *testing.T) {
	name, err := FallbackName()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(name, FallbackNamePrefix))
	tail := strings.TrimPrefix(name, FallbackNamePrefix)
	assert.Len(t, tail, FallbackNameTokenLength)
	for _, r := range tail {
		assert.True(t, strings.ContainsRune(Base62Chars, r), "unexpected rune %q", r)
	}
}

func TestMessageIDIsUUID(t *testing.T) {
	_, err := uuid.Parse(MessageID())
	assert.NoError(t, err)
}

func TestIsAcceptableIdentityID(t *testing.T) {
	assert.True(t, IsAcceptableIdentityID("user_1700000000123_abcdefghi"))
	assert.True(t, IsAcceptableIdentityID("legacy-id"))
	assert.False(t, IsAcceptableIdentityID(""))
	assert.False(t, IsAcceptableIdentityID("has space"))
	assert.False(t, IsAcceptableIdentityID("tab\there"))
	assert.False(t, IsAcceptableIdentityID(strings.Repeat("x", MaxIdentityIDLength+1)))
}
