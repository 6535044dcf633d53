package util

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var fallbackSeq atomic.Uint64

// GenerateShortID returns a 6-character alphanumeric string using cryptographic randomness.
func GenerateShortID() (string, error) {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	for i := range bytes {
		bytes[i] = alphanumeric[int(bytes[i])%len(alphanumeric)]
	}

	return string(bytes), nil
}

// GenerateTaskID returns a task identity in the format <kebab-name>-<short id>,
// e.g. "load-back-to-front-a1B2c3". When randomness is unavailable a
// process-local sequence number is used instead.
func GenerateTaskID(name string) string {
	suffix, err := GenerateShortID()
	if err != nil {
		suffix = fmt.Sprintf("%06d", fallbackSeq.Add(1))
	}

	prefix := toKebabCase(name)
	if prefix == "" {
		prefix = "task"
	}
	return prefix + "-" + suffix
}

// toKebabCase converts a string to kebab-case.
// It lowercases the string, replaces spaces and underscores with hyphens,
// removes non-alphanumeric characters (except hyphens), collapses multiple
// consecutive hyphens, and trims leading/trailing hyphens.
func toKebabCase(s string) string {
	var result strings.Builder

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(unicode.ToLower(r))
		} else if r == ' ' || r == '_' || r == '-' || r == '/' || r == '.' {
			result.WriteRune('-')
		}
	}

	str := result.String()
	for strings.Contains(str, "--") {
		str = strings.ReplaceAll(str, "--", "-")
	}

	return strings.Trim(str, "-")
}
