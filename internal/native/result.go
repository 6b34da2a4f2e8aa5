package native

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Result is the outcome of one native tool call: either a value or the reason
// the call failed. The zero value is a failure with an empty reason.
type Result[T any] struct {
	value  T
	reason string
	ok     bool
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Err builds a failed result.
func Err[T any](reason string) Result[T] {
	if reason == "" {
		reason = "unknown error"
	}
	return Result[T]{reason: reason}
}

// IsOk reports whether the call succeeded.
func (r Result[T]) IsOk() bool {
	return r.ok
}

// Value returns the value; it is the zero value on failure.
func (r Result[T]) Value() T {
	return r.value
}

// Reason returns the failure reason; empty on success.
func (r Result[T]) Reason() string {
	return r.reason
}

// Unwrap returns the value and whether the call succeeded.
func (r Result[T]) Unwrap() (T, bool) {
	return r.value, r.ok
}

// envelope holds the fields every tool may set at the top level.
type envelope struct {
	Error   *string `json:"error"`
	Success *bool   `json:"success"`
}

// Decode parses tool stdout. Output that is not a JSON object, carries a
// non-empty top-level "error", or reports success:false is a failure.
func Decode[T any](stdout []byte) Result[T] {
	raw := bytes.TrimSpace(stdout)
	if len(raw) == 0 {
		return Err[T]("empty output")
	}
	// Tools print one line; ignore anything a helper wrote after it
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		raw = bytes.TrimSpace(raw[:i])
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Err[T]("invalid JSON output: " + truncate(string(raw), 120))
	}
	if env.Error != nil && strings.TrimSpace(*env.Error) != "" {
		return Err[T](*env.Error)
	}
	if env.Success != nil && !*env.Success {
		return Err[T]("tool reported failure")
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return Err[T]("unexpected output shape: " + err.Error())
	}
	return Ok(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
