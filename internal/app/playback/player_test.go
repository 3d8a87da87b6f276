package playback

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ghalamif/EdgeTap/internal/ports"
)

func TestReplaySkipsCorruptLine(t *testing.T) {
	path := writeLog(t, "{\"temp\":30,\"t\":1}\n{\"temp\":oops\n{\"temp\":31,\"t\":3}\n")
	obs := &countingObs{}

	res, err := NewPlayer(path, 0, obs).Replay(0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(res.Records) != 2 || res.Records[0]["t"] != 1.0 || res.Records[1]["t"] != 3.0 {
		t.Fatalf("unexpected records: %v", res.Records)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].LineNo != 2 {
		t.Fatalf("expected line 2 to be skipped, got %v", res.Skipped)
	}
	if obs.get(ports.MetricPlaybackSkipped) != 1 {
		t.Fatalf("expected 1 skipped metric, got %v", obs.get(ports.MetricPlaybackSkipped))
	}
}

func TestReplayIsIncremental(t *testing.T) {
	path := writeLog(t, "{\"t\":1}\nbroken\n")
	obs := &countingObs{}
	p := NewPlayer(path, 10, obs)

	if _, err := p.Replay(10); err != nil {
		t.Fatalf("first replay: %v", err)
	}
	appendLog(t, path, "{\"t\":2}\n")

	res, err := p.Replay(10)
	if err != nil {
		t.Fatalf("second replay: %v", err)
	}
	if len(res.Records) != 2 || res.Records[1]["t"] != 2.0 {
		t.Fatalf("expected appended record, got %v", res.Records)
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("expected the corrupt line to still be reported, got %v", res.Skipped)
	}
	if obs.get(ports.MetricPlaybackSkipped) != 1 {
		t.Fatalf("corrupt line must be decoded once, metric=%v", obs.get(ports.MetricPlaybackSkipped))
	}
}

func TestReplayWindowKeepsLastLines(t *testing.T) {
	path := writeLog(t, "{\"t\":1}\n{\"t\":2}\n{\"t\":3}\n{\"t\":4}\n{\"t\":5}\n")
	p := NewPlayer(path, 4, nil)

	res, err := p.Replay(3)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(res.Records) != 3 || res.Records[0]["t"] != 3.0 || res.Records[2]["t"] != 5.0 {
		t.Fatalf("unexpected tail: %v", res.Records)
	}

	all, _ := p.Replay(100)
	if len(all.Records) != 4 || all.Records[0]["t"] != 2.0 {
		t.Fatalf("expected window of 4, got %v", all.Records)
	}
}

func TestReplayWaitsForTerminatedLine(t *testing.T) {
	path := writeLog(t, "{\"t\":1}\n{\"t\":")
	p := NewPlayer(path, 10, nil)

	res, err := p.Replay(10)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(res.Records) != 1 || len(res.Skipped) != 0 {
		t.Fatalf("partial line must not be consumed yet: %+v", res)
	}

	appendLog(t, path, "2}\n")
	res, _ = p.Replay(10)
	if len(res.Records) != 2 || res.Records[1]["t"] != 2.0 {
		t.Fatalf("expected completed line, got %v", res.Records)
	}
}

func TestReplayResetsWhenLogReplaced(t *testing.T) {
	path := writeLog(t, "{\"t\":1}\n{\"t\":2}\n{\"t\":3}\n")
	p := NewPlayer(path, 10, nil)
	if _, err := p.Replay(10); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if err := os.WriteFile(path, []byte("{\"t\":9}\n"), 0o644); err != nil {
		t.Fatalf("replace: %v", err)
	}
	res, err := p.Replay(10)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0]["t"] != 9.0 {
		t.Fatalf("expected reset to new log, got %v", res.Records)
	}
}

func TestReplayMissingLog(t *testing.T) {
	_, err := NewPlayer(filepath.Join(t.TempDir(), "none.jsonl"), 10, nil).Replay(10)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestReplayReturnsCopies(t *testing.T) {
	path := writeLog(t, "{\"t\":1}\n")
	p := NewPlayer(path, 10, nil)

	res, _ := p.Replay(1)
	res.Records[0]["t"] = 42.0

	again, _ := p.Replay(1)
	if again.Records[0]["t"] != 1.0 {
		t.Fatalf("replay cache was mutated through a result: %v", again.Records[0])
	}
}

func writeLog(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensor_data.jsonl")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, contents string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(contents); err != nil {
		t.Fatalf("append: %v", err)
	}
}

type countingObs struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (c *countingObs) LogInfo(string, ...ports.Field)            {}
func (c *countingObs) LogError(string, error, ...ports.Field)    {}
func (c *countingObs) LogCritical(string, error, ...ports.Field) {}
func (c *countingObs) ObserveLatency(string, float64)            {}
func (c *countingObs) SetGauge(string, float64)                  {}

func (c *countingObs) IncCounter(name string, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counters == nil {
		c.counters = map[string]float64{}
	}
	c.counters[name] += v
}

func (c *countingObs) get(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}
