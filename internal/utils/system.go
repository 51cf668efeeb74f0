package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// CheckFileDescriptorLimit verifies the soft fd limit leaves headroom for the
// requested concurrency (each worker holds its own connection pool). Returns
// the current soft limit so the caller can log it.
func CheckFileDescriptorLimit(concurrency int) (uint64, error) {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, fmt.Errorf("failed to read RLIMIT_NOFILE: %w", err)
	}
	// Rough headroom: connections, report file, sqlite handle, stdio.
	needed := uint64(concurrency*4 + 16)
	if limit.Cur < needed {
		return limit.Cur, fmt.Errorf("soft fd limit %d too low for concurrency %d (need at least %d)", limit.Cur, concurrency, needed)
	}
	return limit.Cur, nil
}

// NormalizeTargetURL ensures a scheme is present and strips any trailing slash.
func NormalizeTargetURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

// EnsureFilepathExists creates the directory for a given file path if it does not exist.
func EnsureFilepathExists(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
