// Package args provides Args, the ordered list of string tokens handed to a
// job invocation.
package args

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jdziat/simple-recurring-jobs/pkg/schedule"
)

// Separator joins tokens in the stored form. Decode splits on it without
// any escaping, so a token equal to Separator does not round-trip.
const Separator = "\x1f␞~jobs-arg~␞\x1f"

// EmptyToken is the stored form of a payload holding one empty token, which
// would otherwise encode to "" and decode as no tokens. A single token
// equal to EmptyToken does not round-trip.
const EmptyToken = "\x1f␞~jobs-empty~␞\x1f"

// SaveHook persists an Args value. It is attached by the scheduler when
// the payload belongs to a stored queue item.
type SaveHook func(ctx context.Context, a *Args) error

// Args is an ordered list of string tokens. A nil *Args means "no payload";
// an Args with no tokens is an empty payload.
type Args struct {
	tokens     []string
	recurrence *schedule.Rule
	lastError  string
	save       SaveHook
}

// New creates Args from the given tokens.
func New(tokens ...string) *Args {
	return FromSlice(tokens)
}

// FromString creates Args holding a single token.
func FromString(s string) *Args {
	return &Args{tokens: []string{s}}
}

// FromSlice creates Args from a slice. The slice is copied.
func FromSlice(tokens []string) *Args {
	cp := make([]string, len(tokens))
	copy(cp, tokens)
	return &Args{tokens: cp}
}

// Decode parses the stored form produced by Encode. The empty string
// decodes to an empty payload.
func Decode(encoded string) *Args {
	switch encoded {
	case "":
		return &Args{tokens: []string{}}
	case EmptyToken:
		return &Args{tokens: []string{""}}
	}
	return &Args{tokens: strings.Split(encoded, Separator)}
}

// Encode returns the stored form.
func (a *Args) Encode() string {
	if a == nil {
		return ""
	}
	if len(a.tokens) == 1 && a.tokens[0] == "" {
		return EmptyToken
	}
	return strings.Join(a.tokens, Separator)
}

// Len returns the number of tokens.
func (a *Args) Len() int {
	if a == nil {
		return 0
	}
	return len(a.tokens)
}

// At returns the token at index i.
func (a *Args) At(i int) (string, bool) {
	if a == nil || i < 0 || i >= len(a.tokens) {
		return "", false
	}
	return a.tokens[i], true
}

// Get returns the token at index i, or "" when out of range.
func (a *Args) Get(i int) string {
	s, _ := a.At(i)
	return s
}

// Tokens returns a copy of all tokens.
func (a *Args) Tokens() []string {
	if a == nil {
		return nil
	}
	cp := make([]string, len(a.tokens))
	copy(cp, a.tokens)
	return cp
}

// Append adds tokens to the end.
func (a *Args) Append(tokens ...string) {
	a.tokens = append(a.tokens, tokens...)
}

// Set replaces the token at index i, growing the list with empty tokens
// when i is past the end.
func (a *Args) Set(i int, v string) {
	if i < 0 {
		return
	}
	for len(a.tokens) <= i {
		a.tokens = append(a.tokens, "")
	}
	a.tokens[i] = v
}

// Int parses token i as an int, returning def when missing or malformed.
func (a *Args) Int(i int, def int) int {
	s, ok := a.At(i)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// Int64 parses token i as an int64, returning def when missing or malformed.
func (a *Args) Int64(i int, def int64) int64 {
	s, ok := a.At(i)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Float parses token i as a float64, returning def when missing or malformed.
func (a *Args) Float(i int, def float64) float64 {
	s, ok := a.At(i)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return f
}

// Bool parses token i with strconv.ParseBool, returning def when missing
// or malformed.
func (a *Args) Bool(i int, def bool) bool {
	s, ok := a.At(i)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}

// Duration parses token i with time.ParseDuration, returning def when
// missing or malformed.
func (a *Args) Duration(i int, def time.Duration) time.Duration {
	s, ok := a.At(i)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return d
}

// Time parses token i with layout, returning def when missing or malformed.
func (a *Args) Time(i int, layout string, def time.Time) time.Time {
	s, ok := a.At(i)
	if !ok {
		return def
	}
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return t
}

// SetRecurrence asks the scheduler to use r instead of the job's stored
// rule when computing the next run, and to persist it.
func (a *Args) SetRecurrence(r schedule.Rule) {
	a.recurrence = &r
}

// Recurrence returns the override set by SetRecurrence.
func (a *Args) Recurrence() (schedule.Rule, bool) {
	if a == nil || a.recurrence == nil {
		return schedule.Rule{}, false
	}
	return *a.recurrence, true
}

// SetLastError records a message the running job wants surfaced in logs
// and events without failing the run.
func (a *Args) SetLastError(msg string) {
	a.lastError = msg
}

// LastError returns the message set by SetLastError.
func (a *Args) LastError() string {
	if a == nil {
		return ""
	}
	return a.lastError
}

// WithSaveHook attaches the hook used by Save and returns a.
func (a *Args) WithSaveHook(h SaveHook) *Args {
	a.save = h
	return a
}

// Save persists the payload through the attached hook. Without a hook it
// does nothing.
func (a *Args) Save(ctx context.Context) error {
	if a == nil || a.save == nil {
		return nil
	}
	return a.save(ctx, a)
}

// String returns the tokens joined by spaces, for logging.
func (a *Args) String() string {
	if a == nil {
		return "<nil>"
	}
	return strings.Join(a.tokens, " ")
}
