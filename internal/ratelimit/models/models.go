package models

import (
	"strings"
	"time"
)

// KeyPrefix namespaces rate limit keys by the identity they bucket.
type KeyPrefix string

const (
	KeyPrefixIP   KeyPrefix = "ip"
	KeyPrefixUser KeyPrefix = "user"
)

// RateLimitResult represents the outcome of an admission check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	// Degraded marks decisions taken by the configured fail mode because the
	// backing store could not be consulted.
	Degraded bool `json:"degraded,omitempty"`
}

// RateLimitExceededResponse is the 429 body returned at the admission boundary.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// NewRateLimitKey builds a namespaced storage key. Identifier segments are
// sanitized so user-controlled values cannot collide with adjacent buckets.
func NewRateLimitKey(prefix KeyPrefix, identifier string) string {
	return "ratelimit:" + string(prefix) + ":" + SanitizeKeySegment(identifier)
}

// SanitizeKeySegment escapes the delimiter in rate limit key segments to
// prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit buckets.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
