// Package errors provides categorized errors for the submission pipeline.
//
// Every terminal failure carries exactly one Category. Packages wrap with
// fmt.Errorf while the kind is unknown and categorize at the boundary where
// it becomes known; the command layer maps any error to an exit code.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Category classifies a terminal error.
type Category string

const (
	CategoryConfig     Category = "config"
	CategoryPreflight  Category = "preflight"
	CategoryCoherence  Category = "coherence"
	CategoryTaxonomy   Category = "taxonomy"
	CategoryNetwork    Category = "network"
	CategoryAuth       Category = "auth"
	CategorySubmission Category = "submission"
	CategoryIO         Category = "io"
	CategoryGeneric    Category = "generic"
)

// Error wraps an error with a category and context fields.
type Error struct {
	Err      error
	Category Category
	Context  map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports category equality when target is an *Error without a wrapped error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Category == e.Category
}

// ContextString renders the context fields sorted by key.
func (e *Error) ContextString() string {
	if len(e.Context) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(e.Context))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
	}
	return strings.Join(parts, " ")
}

// Builder assembles an *Error.
type Builder struct {
	err      error
	category Category
	context  map[string]any
}

// New starts building a categorized error around err.
func New(err error) *Builder {
	return &Builder{err: err, category: CategoryGeneric}
}

// Newf starts building a categorized error from a format string.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Category sets the error category.
func (b *Builder) Category(c Category) *Builder {
	b.category = c
	return b
}

// Context attaches a key/value pair.
func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build returns the assembled error.
func (b *Builder) Build() *Error {
	return &Error{Err: b.err, Category: b.category, Context: b.context}
}

// Sentinels usable with errors.Is to test a category.
var (
	ErrConfig     = &Error{Category: CategoryConfig}
	ErrPreflight  = &Error{Category: CategoryPreflight}
	ErrCoherence  = &Error{Category: CategoryCoherence}
	ErrTaxonomy   = &Error{Category: CategoryTaxonomy}
	ErrNetwork    = &Error{Category: CategoryNetwork}
	ErrAuth       = &Error{Category: CategoryAuth}
	ErrSubmission = &Error{Category: CategorySubmission}
	ErrIO         = &Error{Category: CategoryIO}
)

// Config returns a configuration error.
func Config(format string, args ...any) *Error {
	return Newf(format, args...).Category(CategoryConfig).Build()
}

// Preflight returns a preflight error.
func Preflight(format string, args ...any) *Error {
	return Newf(format, args...).Category(CategoryPreflight).Build()
}

// Coherence returns a coherence error.
func Coherence(format string, args ...any) *Error {
	return Newf(format, args...).Category(CategoryCoherence).Build()
}

// Submission returns a submission error.
func Submission(format string, args ...any) *Error {
	return Newf(format, args...).Category(CategorySubmission).Build()
}

// IO wraps a filesystem error.
func IO(err error, path string) *Error {
	return New(err).Category(CategoryIO).Context("path", path).Build()
}

// CategoryOf returns the category of the outermost categorized error in the chain.
func CategoryOf(err error) Category {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Category
	}
	return CategoryGeneric
}

// IsCategory reports whether err carries category c.
func IsCategory(err error, c Category) bool {
	return CategoryOf(err) == c
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Is forwards to the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

