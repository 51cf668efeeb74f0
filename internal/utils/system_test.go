package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTargetURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tickets.example.com", "https://tickets.example.com"},
		{"tickets.example.com/", "https://tickets.example.com"},
		{"http://tickets.example.com", "http://tickets.example.com"},
		{"https://tickets.example.com///", "https://tickets.example.com"},
		{"  tickets.example.com  ", "https://tickets.example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTargetURL(tt.in), "input %q", tt.in)
	}
}

func TestEnsureFilepathExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "results.json")
	require.NoError(t, EnsureFilepathExists(path))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, EnsureFilepathExists("plainfile.json"), "bare filename needs no directory")
}

func TestCheckFileDescriptorLimit(t *testing.T) {
	limit, err := CheckFileDescriptorLimit(1)
	require.NoError(t, err)
	assert.Greater(t, limit, uint64(0))
}

func TestStringToLogLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, StringToLogLevel("debug"))
	assert.Equal(t, LevelWarn, StringToLogLevel("WARN"))
	assert.Equal(t, LevelInfo, StringToLogLevel("nonsense"))
}
