package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned by Start while the ingestor is connecting or streaming.
	ErrAlreadyStarted = errors.New("edgetap: ingestor already started")
	// ErrStopped is returned when publishing into a stopped ingestor.
	ErrStopped = errors.New("edgetap: ingestor stopped")
	// ErrLineTooLong marks a serial line that exceeded the configured limit.
	ErrLineTooLong = errors.New("edgetap: line exceeds max length")

	errNotObject   = errors.New("not a JSON object")
	errInvalidUTF8 = errors.New("invalid UTF-8")
)

// ConnectionError reports that the serial device could not be opened.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("open serial port %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ParseError reports a line that was not a well-formed JSON object.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse record %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WriteError reports a failed append to the durable log.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("append to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// PlaybackFormatError reports a durable log line that could not be decoded
// during replay. LineNo is 1-based within the file.
type PlaybackFormatError struct {
	LineNo int64
	Err    error
}

func (e *PlaybackFormatError) Error() string {
	return fmt.Sprintf("log line %d: %v", e.LineNo, e.Err)
}

func (e *PlaybackFormatError) Unwrap() error { return e.Err }
