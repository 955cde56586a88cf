package registry

import (
	"errors"
	"fmt"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrMaxRetriesExceeded is returned when the maximum number of retries for generating a short code is exceeded.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

const (
	// shortCodeAlphabet is the character set short codes are drawn from.
	shortCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// MinShortCodeLength and MaxShortCodeLength bound acceptable short codes,
	// generated and custom alike.
	MinShortCodeLength = 3
	MaxShortCodeLength = 20

	// fallbackCodeLength is used after repeated collisions at the base length.
	fallbackCodeLength = 8

	// maxAttemptsPerLength caps collision retries at each code length.
	maxAttemptsPerLength = 100
)

var shortCodeRegexp = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// ValidShortCode reports whether code is a well-formed short code: non-empty,
// within length bounds and alphanumeric only.
func ValidShortCode(code string) bool {
	if len(code) < MinShortCodeLength || len(code) > MaxShortCodeLength {
		return false
	}

	return shortCodeRegexp.MatchString(code)
}

// Generator produces random short codes.
type Generator struct {
	length int
}

// NewGenerator creates a Generator producing codes of the given base length.
// Lengths outside the acceptable short code bounds fall back to 6.
func NewGenerator(length int) *Generator {
	if length < MinShortCodeLength || length > MaxShortCodeLength {
		length = 6
	}

	return &Generator{length: length}
}

// Generate produces a random alphanumeric code of the given length.
func (g *Generator) Generate(length int) (string, error) {
	const op = "registry.Generator.Generate"

	code, err := gonanoid.Generate(shortCodeAlphabet, length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}

// GenerateUnique produces a code for which exists returns false. It retries at
// the base length first and, if collisions persist, at the longer fallback
// length. The fallback is collision-checked the same way, so a returned code
// is always unique at the time of the check.
func (g *Generator) GenerateUnique(exists func(code string) bool) (string, error) {
	const op = "registry.Generator.GenerateUnique"

	for _, length := range []int{g.length, fallbackCodeLength} {
		for i := 0; i < maxAttemptsPerLength; i++ {
			code, err := g.Generate(length)
			if err != nil {
				return "", fmt.Errorf("%s: %w", op, err)
			}

			if !exists(code) {
				return code, nil
			}
		}
	}

	return "", fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}
