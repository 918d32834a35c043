package pipeline

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// FormatBytes formats bytes in a human-readable format
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// fileSize returns the human-readable size of path, or "?" when it cannot be read
func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return FormatBytes(info.Size())
}

// sample returns at most n leading items for log output
func sample[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
