package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var ErrBadOutputDir = errors.New("invalid output directory")

// SanitizeName makes a project or short title safe to use as a file name.
// Control characters are dropped, anything else outside a small allowed set
// becomes '_', and the result is cut to maxLen runes when maxLen > 0.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case strings.ContainsRune(" -_.,()[]", r):
			return r
		default:
			return '_'
		}
	}, s))

	if runes := []rune(cleaned); maxLen > 0 && len(runes) > maxLen {
		cleaned = strings.TrimSpace(string(runes[:maxLen]))
	}
	return strings.Trim(cleaned, ".")
}

// ValidateOutputDir accepts only an existing, clean directory path.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: path is required", ErrBadOutputDir)
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%w: path traversal", ErrBadOutputDir)
		}
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: path must be clean", ErrBadOutputDir)
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %s does not exist", ErrBadOutputDir, dir)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrBadOutputDir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", ErrBadOutputDir, dir)
	}
	return nil
}
