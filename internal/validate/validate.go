// Package validate holds the field validation shared by the public
// intake endpoints.
package validate

import (
	"regexp"
	"sort"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRe = regexp.MustCompile(`^\+?\d{10,15}$`)
)

// Error carries per-field validation messages, surfaced to clients as
// a 400 with the field map attached.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// Email reports whether s looks like an RFC-shaped email address.
// Callers are expected to lowercase before storing.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// Phone reports whether s is 10-15 digits with an optional leading +.
func Phone(s string) bool {
	return phoneRe.MatchString(s)
}
