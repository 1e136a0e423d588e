package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// FieldIssue is one rejected argument.
type FieldIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError lists every rejected argument of one invocation.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "invalid arguments"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Path == "" {
			parts = append(parts, issue.Message)
			continue
		}
		parts = append(parts, issue.Path+": "+issue.Message)
	}
	return "invalid arguments: " + strings.Join(parts, "; ")
}

// isEmptyArguments reports whether raw carries no arguments at all.
func isEmptyArguments(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// argReader decodes a JSON object field by field, collecting every problem
// instead of stopping at the first.
type argReader struct {
	fields map[string]json.RawMessage
	issues []FieldIssue
}

func newArgReader(raw json.RawMessage) (*argReader, error) {
	r := &argReader{fields: map[string]json.RawMessage{}}
	if isEmptyArguments(raw) {
		return r, nil
	}
	if err := json.Unmarshal(raw, &r.fields); err != nil {
		return nil, &ValidationError{Issues: []FieldIssue{{Message: "arguments must be a JSON object"}}}
	}
	return r, nil
}

func (r *argReader) fail(path, format string, args ...any) {
	r.issues = append(r.issues, FieldIssue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *argReader) present(name string) (json.RawMessage, bool) {
	raw, ok := r.fields[name]
	if !ok || isEmptyArguments(raw) {
		return nil, false
	}
	return raw, true
}

func (r *argReader) String(name string, required bool) string {
	raw, ok := r.present(name)
	if !ok {
		if required {
			r.fail(name, "required")
		}
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		r.fail(name, "expected string")
		return ""
	}
	if required && strings.TrimSpace(s) == "" {
		r.fail(name, "must not be empty")
	}
	return s
}

func (r *argReader) Enum(name string, allowed []string) string {
	s := r.String(name, false)
	if s == "" {
		return ""
	}
	if !slices.Contains(allowed, s) {
		r.fail(name, "invalid enum value %q, expected one of %s", s, strings.Join(allowed, ", "))
		return ""
	}
	return s
}

func (r *argReader) Date(name string) string {
	s := r.String(name, true)
	if s == "" {
		return ""
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		r.fail(name, "expected date in YYYY-MM-DD format, got %q", s)
		return ""
	}
	return s
}

// Int reads an integral number within [lo, hi], returning def when absent.
func (r *argReader) Int(name string, def, lo, hi int64) int64 {
	raw, ok := r.present(name)
	if !ok {
		return def
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		r.fail(name, "expected number")
		return def
	}
	if f != math.Trunc(f) {
		r.fail(name, "expected integer, got %v", f)
		return def
	}
	if f < float64(lo) || f > float64(hi) {
		r.fail(name, "must be between %d and %d", lo, hi)
		return def
	}
	return int64(f)
}

func (r *argReader) err() error {
	if len(r.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: r.issues}
}
