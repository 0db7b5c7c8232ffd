package util

import (
	"errors"
	"path"
	"strings"
)

// SanitizeFileName reduces a store key to a safe base name: directories are
// dropped and anything outside [A-Za-z0-9._-] becomes an underscore.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	s = path.Base(s)
	if s == "" || s == "." || s == "/" || s == ".." {
		return "", errors.New("invalid file name")
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "", errors.New("invalid file name")
	}
	return out, nil
}
