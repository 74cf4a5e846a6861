package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEntryName      = errors.New("entry name is empty or not a valid path")
	ErrEncoderNotImplemented = errors.New("entry encoder not implemented")
	ErrAlreadyFinalized      = errors.New("archive already finalized")
	ErrPrematureTermination  = errors.New("terminated before archive finished emitting data")
)

// EncoderError is reported when the encoder failed to write an entry.
type EncoderError struct {
	Entry string
	Err   error
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("failed to encode entry %q: %v", e.Entry, e.Err)
}

func (e *EncoderError) Unwrap() error {
	return e.Err
}
