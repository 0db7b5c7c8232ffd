package validate

import (
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"code-analyzer/internal/shared/errkind"
)

// DefaultMaxBytes is the payload ceiling applied when none is configured (1 MiB).
const DefaultMaxBytes int64 = 1 << 20

const sniffLen = 3072

// Validator enforces the supported-type and size constraints and detects the
// source language. It holds no mutable state.
type Validator struct {
	maxBytes int64
}

// New returns a Validator with the given size ceiling. A non-positive
// maxBytes selects DefaultMaxBytes.
func New(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{maxBytes: maxBytes}
}

// MaxBytes reports the configured ceiling.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// IsSupportedType reports whether filename has an allow-listed extension or
// is a known extensionless build file.
func IsSupportedType(filename string) bool {
	t := mustTable()
	base := baseName(filename)
	if _, ok := t.byFilename[strings.ToLower(base)]; ok {
		return true
	}
	ext := normalizeExt(path.Ext(base))
	if ext == "" || ext == "." {
		return false
	}
	if _, ok := t.byExt[ext]; ok {
		return true
	}
	_, ok := t.ambiguous[ext]
	return ok
}

// CheckSize reports whether sizeBytes is within the ceiling.
func (v *Validator) CheckSize(sizeBytes int64) bool {
	return sizeBytes >= 0 && sizeBytes <= v.maxBytes
}

// DetectLanguage identifies the language of content. The extension decides
// unless it is ambiguous or absent, in which case shebang and keyword
// heuristics are applied. It never fails.
func DetectLanguage(content []byte, filename string) Language {
	t := mustTable()
	base := baseName(filename)
	if lang, ok := t.byFilename[strings.ToLower(base)]; ok {
		return lang
	}

	ext := normalizeExt(path.Ext(base))
	if lang, ok := t.byExt[ext]; ok {
		return lang
	}

	sample := content
	if len(sample) > sniffLen {
		sample = sample[:sniffLen]
	}
	text := string(sample)

	if candidates, ok := t.ambiguous[ext]; ok {
		if lang, ok := t.fromShebang(text); ok && containsLanguage(candidates, lang) {
			return lang
		}
		if lang, ok := t.byKeywords(text, candidates); ok {
			return lang
		}
		return candidates[0]
	}

	if lang, ok := t.fromShebang(text); ok {
		return lang
	}
	if lang, ok := t.byKeywords(text, t.ordered); ok {
		return lang
	}
	return Unknown
}

// Check runs the type, size and binary-content checks in order and returns
// the detected language. sizeBytes is the object's full length, which may
// exceed len(content) when the store stopped reading at the ceiling.
func (v *Validator) Check(filename string, content []byte, sizeBytes int64) (Language, error) {
	const op = "validate"
	if !IsSupportedType(filename) {
		return "", errkind.New(errkind.UnsupportedType, op, fmt.Errorf("file type not supported: %s", baseName(filename)))
	}
	if int64(len(content)) > sizeBytes {
		sizeBytes = int64(len(content))
	}
	if !v.CheckSize(sizeBytes) {
		return "", errkind.New(errkind.PayloadTooLarge, op, fmt.Errorf("content is %d bytes, limit is %d", sizeBytes, v.maxBytes))
	}
	if IsBinary(content) {
		return "", errkind.New(errkind.UnsupportedType, op, fmt.Errorf("content of %s is not text", baseName(filename)))
	}
	return DetectLanguage(content, filename), nil
}

// IsBinary reports whether content does not sniff as text.
func IsBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	sample := content
	if len(sample) > sniffLen {
		sample = sample[:sniffLen]
	}
	for mt := mimetype.Detect(sample); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return false
		}
	}
	return true
}

func baseName(filename string) string {
	return path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
}
