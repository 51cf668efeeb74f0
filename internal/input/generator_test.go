package input

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomSourceShapeAndUniqueness(t *testing.T) {
	s, err := NewRandomSource(50, 6, "upperdigits", "ws-", "-24")
	require.NoError(t, err)
	assert.Equal(t, 50, s.Size())

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		c, ok := s.Next()
		require.True(t, ok)
		assert.Equal(t, OriginSynthetic, c.Origin)
		assert.True(t, strings.HasPrefix(c.Code, "WS-"), "prefix is upper-cased: %s", c.Code)
		assert.True(t, strings.HasSuffix(c.Code, "-24"))
		assert.Len(t, c.Code, 3+6+3)

		middle := c.Code[3 : len(c.Code)-3]
		for _, r := range middle {
			assert.Contains(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", string(r))
		}

		_, dup := seen[c.Code]
		assert.False(t, dup, "duplicate code %s", c.Code)
		seen[c.Code] = struct{}{}
	}

	_, ok := s.Next()
	assert.False(t, ok)
}

func TestRandomSourceSmallKeyspaceStopsEarly(t *testing.T) {
	// 10 possible codes but 100 requested: the source must terminate and
	// advertise only what it can yield.
	s, err := NewRandomSource(100, 1, "digits", "", "")
	require.NoError(t, err)
	assert.Equal(t, 10, s.Size())

	got := drain(s)
	assert.Len(t, got, 10)
}

func TestRandomSourceReset(t *testing.T) {
	s, err := NewRandomSource(5, 4, "upper", "", "")
	require.NoError(t, err)

	assert.Len(t, drain(s), 5)
	s.Reset()
	assert.Len(t, drain(s), 5)
}

func TestNewRandomSourceRejectsBadInput(t *testing.T) {
	_, err := NewRandomSource(10, 6, "hex", "", "")
	assert.Error(t, err)

	_, err = NewRandomSource(0, 6, "upper", "", "")
	assert.Error(t, err)

	_, err = NewRandomSource(10, 0, "upper", "", "")
	assert.Error(t, err)
}
