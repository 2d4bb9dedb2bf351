// Package export writes reconciled captions in interchange formats and
// derives safe names and directories for rendered output.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeName replaces characters that are unsafe in file names with
// underscores, drops control characters and truncates to maxLen runes.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case isAllowedNameRune(r):
			return r
		default:
			return '_'
		}
	}, s)

	cleaned = strings.TrimSpace(cleaned)
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune(" -_.,()", r)
}

// Stem returns the client-supplied file name up to its first dot, sanitized
// and with spaces replaced by underscores. Directory components from either
// path separator are dropped. The result may be empty.
func Stem(filename string, maxLen int) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	stem, _, _ := strings.Cut(base, ".")
	return strings.ReplaceAll(SanitizeName(stem, maxLen), " ", "_")
}

// PrepareOutputDir rejects empty or traversing paths, creates dir if needed
// and returns its cleaned form.
func PrepareOutputDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("output directory is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return "", errors.New("output directory cannot contain path traversal")
		}
	}

	cleaned := filepath.Clean(dir)
	if err := os.MkdirAll(cleaned, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	info, err := os.Stat(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid output directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("output directory %s is not a directory", cleaned)
	}
	return cleaned, nil
}
