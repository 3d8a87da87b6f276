package ingest

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ghalamif/EdgeTap/internal/domain"
)

// chunkReader returns one chunk per Read; an empty chunk simulates a timeout.
type chunkReader struct {
	chunks []string
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := c.chunks[0]
	c.chunks = c.chunks[1:]
	return copy(p, chunk), nil
}

func readAll(t *testing.T, f *Framer, calls int) ([]string, []error) {
	t.Helper()
	var (
		lines []string
		errs  []error
	)
	for i := 0; i < calls; i++ {
		line, err := f.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			errs = append(errs, err)
			continue
		}
		if line != nil {
			lines = append(lines, string(line))
		}
	}
	return lines, errs
}

func TestFramerSplitsAcrossReads(t *testing.T) {
	r := &chunkReader{chunks: []string{`{"temp":`, "", `30}` + "\n" + `{"temp":31}` + "\n"}}
	f := NewFramer(r, 0)

	lines, errs := readAll(t, f, 10)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(lines) != 2 || lines[0] != `{"temp":30}` || lines[1] != `{"temp":31}` {
		t.Fatalf("unexpected lines: %q", lines)
	}
}

func TestFramerEmptyReadIsNoop(t *testing.T) {
	f := NewFramer(&chunkReader{chunks: []string{""}}, 0)
	line, err := f.ReadLine()
	if err != nil || line != nil {
		t.Fatalf("expected (nil, nil) on empty read, got (%q, %v)", line, err)
	}
}

func TestFramerDropsOversizedLine(t *testing.T) {
	long := strings.Repeat("x", 20)
	r := &chunkReader{chunks: []string{long[:12], long[12:] + "\n", `{"ok":1}` + "\n"}}
	f := NewFramer(r, 10)

	lines, errs := readAll(t, f, 10)
	if len(errs) != 1 || !errors.Is(errs[0], domain.ErrLineTooLong) {
		t.Fatalf("expected a single ErrLineTooLong, got %v", errs)
	}
	if len(lines) != 1 || lines[0] != `{"ok":1}` {
		t.Fatalf("expected following line to survive, got %q", lines)
	}
}
