package pipeline

import (
	"strings"
	"time"

	"code-analyzer/internal/validate"
)

// KeySuffix selects what follows the timestamp in output keys.
type KeySuffix string

const (
	KeySuffixNone KeySuffix = "none"
	KeySuffixHash KeySuffix = "hash"
)

// ParseKeySuffix accepts "", "none" or "hash".
func ParseKeySuffix(s string) KeySuffix {
	if strings.EqualFold(strings.TrimSpace(s), string(KeySuffixHash)) {
		return KeySuffixHash
	}
	return KeySuffixNone
}

// Config is fixed at construction. Now is injectable for tests.
type Config struct {
	OutputPrefix    string
	KeySuffix       KeySuffix
	MaxPayloadBytes int64
	Now             func() time.Time
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		OutputPrefix:    "analyses/",
		KeySuffix:       KeySuffixNone,
		MaxPayloadBytes: validate.DefaultMaxBytes,
		Now:             time.Now,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = validate.DefaultMaxBytes
	}
	if c.KeySuffix == "" {
		c.KeySuffix = KeySuffixNone
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
