package playback

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

const DefaultWindow = 200

// Result is one replay of the durable log tail.
type Result struct {
	Records []domain.Record
	Skipped []*domain.PlaybackFormatError
}

type entry struct {
	lineNo  int64
	raw     []byte
	rec     domain.Record
	err     *domain.PlaybackFormatError
	decoded bool
}

// Player replays the last lines of a durable log. It remembers how far it
// has read, so each Replay only scans bytes appended since the previous one,
// and it decodes a line at most once.
type Player struct {
	path   string
	window int
	obs    ports.Observability

	mu      sync.Mutex
	offset  int64
	lineNo  int64
	entries []*entry
}

func NewPlayer(path string, window int, obs ports.Observability) *Player {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Player{path: path, window: window, obs: obs}
}

// Replay returns the valid records among the last k lines of the log, oldest
// first, plus one PlaybackFormatError per line that could not be decoded.
// k is capped at the player's window; k <= 0 means the whole window.
func (p *Player) Replay(k int) (Result, error) {
	if k <= 0 || k > p.window {
		k = p.window
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.catchUp(); err != nil {
		return Result{}, err
	}

	tail := p.entries
	if len(tail) > k {
		tail = tail[len(tail)-k:]
	}

	res := Result{Records: make([]domain.Record, 0, len(tail))}
	for _, e := range tail {
		p.decode(e)
		if e.err != nil {
			res.Skipped = append(res.Skipped, e.err)
			continue
		}
		res.Records = append(res.Records, e.rec.Clone())
	}
	return res, nil
}

func (p *Player) catchUp() error {
	f, err := os.Open(p.path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < p.offset {
		// log was replaced underneath us
		p.offset, p.lineNo, p.entries = 0, 0, nil
	}
	if info.Size() == p.offset {
		return nil
	}
	if _, err := f.Seek(p.offset, io.SeekStart); err != nil {
		return err
	}

	r := bufio.NewReaderSize(f, 64<<10)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// an unterminated tail is picked up once its newline lands
				return nil
			}
			return fmt.Errorf("playback read: %w", err)
		}
		p.offset += int64(len(line))
		p.lineNo++

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		p.push(&entry{lineNo: p.lineNo, raw: line})
	}
}

func (p *Player) push(e *entry) {
	if len(p.entries) == p.window {
		copy(p.entries, p.entries[1:])
		p.entries[len(p.entries)-1] = e
		return
	}
	p.entries = append(p.entries, e)
}

func (p *Player) decode(e *entry) {
	if e.decoded {
		return
	}
	e.decoded = true
	rec, err := domain.ParseRecord(e.raw)
	e.raw = nil
	if err != nil {
		e.err = &domain.PlaybackFormatError{LineNo: e.lineNo, Err: err}
		if p.obs != nil {
			p.obs.IncCounter(ports.MetricPlaybackSkipped, 1)
			p.obs.LogError("playback_line_skipped", e.err, ports.Field{Key: "path", Value: p.path})
		}
		return
	}
	e.rec = rec
}
