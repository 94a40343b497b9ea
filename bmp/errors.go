package bmp

import "fmt"

// Kind classifies a FormatError.
type Kind int

const (
	// Truncated means the input ended before the header or pixel data was complete.
	Truncated Kind = iota + 1
	// BadSignature means the first two bytes are not "BM".
	BadSignature
	// UnsupportedVariant means a header field describes a BMP flavor this package does not implement.
	UnsupportedVariant
	// EmptyImage means Encode was given a grid with no rows or no columns.
	EmptyImage
	// RaggedRows means Encode was given rows of unequal length.
	RaggedRows
)

func (k Kind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case BadSignature:
		return "bad signature"
	case UnsupportedVariant:
		return "unsupported variant"
	case EmptyImage:
		return "empty image"
	case RaggedRows:
		return "ragged rows"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FormatError reports why a decode or encode call was rejected.
type FormatError struct {
	Kind   Kind
	Detail string
	Err    error // underlying I/O error, if any
}

func (e *FormatError) Error() string {
	msg := "bmp: " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is matches any FormatError of the same Kind, so errors.Is(err, ErrTruncated) works
// regardless of the detail text.
func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrTruncated          = &FormatError{Kind: Truncated}
	ErrBadSignature       = &FormatError{Kind: BadSignature}
	ErrUnsupportedVariant = &FormatError{Kind: UnsupportedVariant}
	ErrEmptyImage         = &FormatError{Kind: EmptyImage}
	ErrRaggedRows         = &FormatError{Kind: RaggedRows}
)

func formatErrorf(kind Kind, err error, format string, args ...any) *FormatError {
	return &FormatError{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}
