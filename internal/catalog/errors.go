package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors wrapped by FileError and FormatError.
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrFileTooLarge      = errors.New("file too large")
	ErrNoData            = errors.New("file has no data")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrMalformed         = errors.New("malformed file")
)

// FileError reports an input file that is missing, unreadable or empty.
// It is fatal to the whole batch.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

func (e *FileError) Unwrap() error { return e.Err }

// FormatError reports a file whose format is unsupported or structurally
// broken. It is fatal to the whole batch.
type FormatError struct {
	Format string // Extension or format name, e.g. ".pdf" or "xml"
	Err    error
}

func (e *FormatError) Error() string {
	if e.Format == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// NewUnsupportedFormat returns a FormatError naming the rejected extension.
func NewUnsupportedFormat(ext string) *FormatError {
	if ext == "" {
		ext = "(no extension)"
	}
	return &FormatError{Format: ext, Err: fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)}
}

// NewMalformed returns a FormatError wrapping a parser failure.
func NewMalformed(format string, cause error) *FormatError {
	return &FormatError{Format: format, Err: fmt.Errorf("%w: %v", ErrMalformed, cause)}
}

// RowReason classifies why a row was rejected.
type RowReason string

const (
	ReasonNameMissing     RowReason = "name missing"
	ReasonInvalidPrice    RowReason = "invalid price"
	ReasonInvalidQuantity RowReason = "invalid quantity"
	ReasonUnexpected      RowReason = "unexpected error"
)

// RowError is a validation failure scoped to a single input row.
type RowError struct {
	Row    int       `json:"row"`            // 1-based data row number
	Line   int       `json:"line,omitempty"` // Source line when known
	Field  Field     `json:"field,omitempty"`
	Value  string    `json:"value,omitempty"` // Offending raw value
	Reason RowReason `json:"reason"`
	Detail string    `json:"-"`
}

func (e *RowError) Error() string {
	msg := fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// MarshalJSON adds the rendered message next to the structured fields.
func (e *RowError) MarshalJSON() ([]byte, error) {
	type rowError RowError
	return json.Marshal(struct {
		*rowError
		Message string `json:"message"`
	}{(*rowError)(e), e.Error()})
}
