package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEncode Phase = "encode" // value to bytes
	PhaseDecode Phase = "decode" // bytes to value
	PhaseScheme Phase = "scheme" // dynamic formula construction
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds         Kind = "out_of_bounds"
	KindInvalidDiscriminant Kind = "invalid_discriminant"
	KindInvalidUTF8         Kind = "invalid_utf8"
	KindSizeMismatch        Kind = "size_mismatch"
	KindBufferTooSmall      Kind = "buffer_too_small"
	KindOverflow            Kind = "overflow"
	KindInvalidData         Kind = "invalid_data"
	KindTypeMismatch        Kind = "type_mismatch"
	KindInvalidScheme       Kind = "invalid_scheme"
	KindCompression         Kind = "compression"
)

// Sentinels for errors.Is. Matching compares Phase and Kind only.
var (
	ErrOutOfBounds         = &Error{Phase: PhaseDecode, Kind: KindOutOfBounds}
	ErrInvalidDiscriminant = &Error{Phase: PhaseDecode, Kind: KindInvalidDiscriminant}
	ErrInvalidUTF8         = &Error{Phase: PhaseDecode, Kind: KindInvalidUTF8}
	ErrSizeMismatch        = &Error{Phase: PhaseDecode, Kind: KindSizeMismatch}
	ErrInvalidData         = &Error{Phase: PhaseDecode, Kind: KindInvalidData}
	ErrBufferTooSmall      = &Error{Phase: PhaseEncode, Kind: KindBufferTooSmall}
	ErrOverflow            = &Error{Phase: PhaseEncode, Kind: KindOverflow}
	ErrTypeMismatch        = &Error{Phase: PhaseEncode, Kind: KindTypeMismatch}
	ErrInvalidScheme       = &Error{Phase: PhaseScheme, Kind: KindInvalidScheme}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Formula string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Formula != "" {
		b.WriteString(": formula ")
		b.WriteString(e.Formula)
	}

	if e.Detail != "" {
		if e.Formula != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// WithPath returns a copy of e with segment prepended to its path.
// Composite formulas use it to report which field failed.
func (e *Error) WithPath(segment string) *Error {
	c := *e
	c.Path = append([]string{segment}, e.Path...)
	return &c
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// AtPath prefixes the path of a structured error with segment. Other errors
// are returned unchanged.
func AtPath(err error, segment string) error {
	if e, ok := err.(*Error); ok {
		return e.WithPath(segment)
	}
	return err
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Formula sets the formula description
func (b *Builder) Formula(f string) *Builder {
	b.err.Formula = f
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// OutOfBounds creates an out of bounds error: a read of end bytes
// against an input holding only length bytes.
func OutOfBounds(phase Phase, path []string, end, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("range end %d out of bounds (length %d)", end, length),
		Value:  end,
	}
}

// InvalidDiscriminant creates an invalid discriminant error for variants/enums
func InvalidDiscriminant(phase Phase, path []string, disc uint32, count int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidDiscriminant,
		Path:   path,
		Detail: fmt.Sprintf("discriminant %d out of range (%d variants)", disc, count),
		Value:  disc,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// SizeMismatch creates an error for a byte range whose length is not a
// whole number of fixed-size slots.
func SizeMismatch(phase Phase, path []string, length, slot int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSizeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("length %d is not a multiple of slot size %d", length, slot),
		Value:  length,
	}
}

// BufferTooSmall reports that the output needs extra more bytes.
func BufferTooSmall(extra int) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindBufferTooSmall,
		Detail: fmt.Sprintf("output buffer needs %d more bytes", extra),
		Value:  extra,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// TypeMismatch creates an error for a dynamic value of the wrong Go type.
func TypeMismatch(phase Phase, path []string, value any, formula string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		Formula: formula,
		Detail:  fmt.Sprintf("unexpected Go type %T", value),
		Value:   value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidScheme creates a scheme construction error
func InvalidScheme(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseScheme,
		Kind:   KindInvalidScheme,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
