// Package service provides short-code generation and validation, the
// allocation policy for new records and the URL service used by the HTTP and
// gRPC layers.
package service

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"
)

// alphabet holds the 62 symbols a short code is made of.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// CodeOptions are the short-code length bounds read from configuration.
type CodeOptions struct {
	DefaultLength int
	MinLength     int
	MaxLength     int
}

// CodeGenerator produces random short codes and validates custom ones.
// It keeps no memory of issued codes: uniqueness is enforced by the caller.
type CodeGenerator struct {
	numCharsShortLink int    // default length of a generated code
	minChars          int    // shortest acceptable code
	maxChars          int    // longest acceptable code
	elements          string // Base62 encoding elements (0-9, a-z, A-Z).
	intN              func(n int) int
}

// NewCodeGenerator creates a CodeGenerator for the given bounds.
// It fails unless 0 < MinLength <= DefaultLength <= MaxLength.
func NewCodeGenerator(opts CodeOptions) (*CodeGenerator, error) {
	if opts.MinLength <= 0 || opts.MinLength > opts.DefaultLength || opts.DefaultLength > opts.MaxLength {
		return nil, fmt.Errorf("invalid short code bounds: min=%d default=%d max=%d",
			opts.MinLength, opts.DefaultLength, opts.MaxLength)
	}

	return &CodeGenerator{
		numCharsShortLink: opts.DefaultLength,
		minChars:          opts.MinLength,
		maxChars:          opts.MaxLength,
		elements:          alphabet,
		intN:              rand.IntN,
	}, nil
}

// Generate returns a random code of the configured default length.
func (g *CodeGenerator) Generate() string {
	return g.GenerateN(g.numCharsShortLink)
}

// GenerateN returns a random code of exactly n characters, each drawn
// independently and uniformly from the alphabet.
func (g *CodeGenerator) GenerateN(n int) string {
	var sb strings.Builder
	sb.Grow(n)

	for i := 0; i < n; i++ {
		sb.WriteByte(g.elements[g.intN(len(g.elements))])
	}

	return sb.String()
}

// Validate reports whether code is an acceptable short code.
func (g *CodeGenerator) Validate(code string) bool {
	if len(code) < g.minChars || len(code) > g.maxChars {
		return false
	}

	for i := 0; i < len(code); i++ {
		c := code[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}

	return true
}

// NormalizeURL trims surrounding whitespace and prepends https:// when the
// string has no http:// or https:// prefix.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return u
}

// ValidateURL reports whether a normalized URL is absolute with a host.
func ValidateURL(normalized string) bool {
	parsed, err := url.ParseRequestURI(normalized)
	if err != nil {
		return false
	}
	return parsed.Host != "" && !strings.ContainsAny(normalized, " \t\r\n")
}

// ShortURL joins the service base address and a short code.
func ShortURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/" + code
}

// layouts accepted for expiration timestamps. Layouts without a zone are read in local time.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseExpiry reads an ISO 8601 expiration timestamp. A date alone means
// midnight local time.
func ParseExpiry(expiresAt string) (time.Time, error) {
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, expiresAt, time.Local)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpiry, expiresAt)
}

// IsURLExpired parses an expiration timestamp and reports whether the current
// time is strictly later. Empty and malformed timestamps are never expired.
func IsURLExpired(expiresAt string) bool {
	if expiresAt == "" {
		return false
	}

	t, err := ParseExpiry(expiresAt)
	if err != nil {
		return false
	}
	return IsExpired(&t, time.Now())
}

// IsExpired reports whether now is strictly after expiresAt.
func IsExpired(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return now.After(*expiresAt)
}
