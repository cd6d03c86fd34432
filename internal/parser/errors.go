package parser

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat matches any *UnsupportedFormatError via errors.Is
var ErrUnsupportedFormat = errors.New("unsupported file format")

// UnsupportedFormatError is returned when detection cannot classify a file.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.Extension)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// MalformedRecordError describes one workout that could not be converted.
// Parsers log it and move on to the next workout.
type MalformedRecordError struct {
	Index int
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed workout #%d: %v", e.Index, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
