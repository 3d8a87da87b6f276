package ingest

import (
	"bytes"
	"io"

	"github.com/ghalamif/EdgeTap/internal/domain"
)

const DefaultMaxLineBytes = 64 << 10

// Framer splits a timeout-bounded byte stream into newline-terminated lines.
// Each ReadLine performs at most one Read on the underlying port, so a call
// returns within the port's read timeout.
type Framer struct {
	r        io.Reader
	buf      []byte
	pending  []byte
	maxLine  int
	overflow bool
}

func NewFramer(r io.Reader, maxLineBytes int) *Framer {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &Framer{
		r:       r,
		buf:     make([]byte, 4096),
		maxLine: maxLineBytes,
	}
}

// ReadLine returns the next complete line without its terminator. It returns
// (nil, nil) when no complete line is available yet. A line longer than the
// limit is dropped and reported once as ErrLineTooLong.
func (f *Framer) ReadLine() ([]byte, error) {
	if line, ok, err := f.next(); ok {
		return line, err
	}

	n, err := f.r.Read(f.buf)
	if n > 0 {
		f.pending = append(f.pending, f.buf[:n]...)
	}
	if line, ok, lerr := f.next(); ok {
		return line, lerr
	}
	if len(f.pending) > f.maxLine {
		f.pending = f.pending[:0]
		if !f.overflow {
			f.overflow = true
			return nil, domain.ErrLineTooLong
		}
	}
	return nil, err
}

func (f *Framer) next() ([]byte, bool, error) {
	idx := bytes.IndexByte(f.pending, '\n')
	if idx < 0 {
		return nil, false, nil
	}
	line := make([]byte, idx)
	copy(line, f.pending[:idx])
	rest := copy(f.pending, f.pending[idx+1:])
	f.pending = f.pending[:rest]

	if f.overflow {
		// tail end of an oversized line that was already reported
		f.overflow = false
		return nil, true, nil
	}
	if len(line) > f.maxLine {
		return nil, true, domain.ErrLineTooLong
	}
	return line, true, nil
}
