package cqdata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// The requester may not see or act on the thing they asked about. Handlers
// map this to a 403.
var ErrForbidden = errors.New("forbidden")

// A write was rejected before touching the database. Carries field-level
// detail for the API response.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("validation failed")
	for _, name := range names {
		fmt.Fprintf(&b, "; %s: %s", name, e.Fields[name])
	}
	return b.String()
}

func NewValidationError(field, problem string) error {
	return &ValidationError{Fields: map[string]string{field: problem}}
}
