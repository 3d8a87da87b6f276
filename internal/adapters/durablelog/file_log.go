package durablelog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

// FileLog appends one JSON object per line to a file that is never
// truncated or rewritten. Every Append is a single unbuffered write so a
// concurrent reader never observes an interleaved partial line.
type FileLog struct {
	mu           sync.Mutex
	path         string
	file         *os.File
	lines        uint64
	sizeBytes    int64
	needsNewline bool
	closed       bool
}

func Open(path string) (*FileLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	l := &FileLog{path: path, file: f}
	if err := l.scanExisting(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

// scanExisting counts complete lines and notes a torn tail left by a crash.
// The tail is kept as-is; the next append starts on a fresh line instead.
func (l *FileLog) scanExisting() error {
	rf, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer rf.Close()

	var (
		reader = bufio.NewReaderSize(rf, 64<<10)
		buf    = make([]byte, 64<<10)
		last   byte
	)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			l.lines += uint64(bytes.Count(buf[:n], []byte{'\n'}))
			l.sizeBytes += int64(n)
			last = buf[n-1]
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("durablelog scan: %w", err)
		}
	}
	l.needsNewline = l.sizeBytes > 0 && last != '\n'
	return nil
}

func (l *FileLog) Append(r domain.Record) error {
	b, err := r.Encode()
	if err != nil {
		return &domain.WriteError{Path: l.path, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return &domain.WriteError{Path: l.path, Err: os.ErrClosed}
	}

	line := make([]byte, 0, len(b)+2)
	if l.needsNewline {
		line = append(line, '\n')
	}
	line = append(line, b...)
	line = append(line, '\n')

	n, err := l.file.Write(line)
	l.sizeBytes += int64(n)
	if err != nil {
		if n > 0 && line[n-1] != '\n' {
			l.needsNewline = true
		}
		return &domain.WriteError{Path: l.path, Err: err}
	}
	l.needsNewline = false
	l.lines++
	return nil
}

func (l *FileLog) Stats() ports.LogStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ports.LogStats{Lines: l.lines, SizeBytes: l.sizeBytes}
}

func (l *FileLog) Path() string { return l.path }

// Close syncs and closes the file. It is safe to call more than once.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return errors.Join(l.file.Sync(), l.file.Close())
}

var _ ports.DurableLog = (*FileLog)(nil)
