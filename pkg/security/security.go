package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/simple-recurring-jobs/pkg/core"
)

// Security limits and configuration
const (
	// MaxTypeIDLength is the maximum length for job type ids
	MaxTypeIDLength = 255

	// MaxPayloadSize is the maximum size in bytes for an encoded queue payload (1MB)
	MaxPayloadSize = 1 << 20

	// MaxQueueThreshold is the hard limit for failed attempts before a queue item is escalated
	MaxQueueThreshold = 100

	// DefaultQueueThreshold is used when no threshold is configured
	DefaultQueueThreshold = 3

	// MaxConcurrency is the hard limit for concurrently running jobs
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxGroupLength is the maximum length for extension group names
	MaxGroupLength = 255
)

// validTypeID matches alphanumeric, hyphens, underscores, and dots
var validTypeID = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateTypeID validates a job type id
func ValidateTypeID(id string) error {
	if id == "" {
		return core.ErrInvalidTypeID
	}
	if len(id) > MaxTypeIDLength {
		return core.ErrTypeIDTooLong
	}
	if !validTypeID.MatchString(id) {
		return core.ErrInvalidTypeID
	}
	return nil
}

// ValidateExtensionGroup validates an extension group name. The empty group
// is allowed and means the job is not part of an extension.
func ValidateExtensionGroup(group string) error {
	if group == "" {
		return nil
	}
	if len(group) > MaxGroupLength || !validTypeID.MatchString(group) {
		return core.ErrInvalidGroup
	}
	return nil
}

// ValidatePayload checks the encoded size of a queue payload
func ValidatePayload(encoded string) error {
	if len(encoded) > MaxPayloadSize {
		return core.ErrPayloadTooLarge
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Drop control characters except whitespace
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampThreshold keeps the queue escalation threshold within limits.
// Non-positive values fall back to DefaultQueueThreshold.
func ClampThreshold(n int) int {
	if n < 1 {
		return DefaultQueueThreshold
	}
	if n > MaxQueueThreshold {
		return MaxQueueThreshold
	}
	return n
}

// ClampConcurrency ensures concurrency is within limits
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
