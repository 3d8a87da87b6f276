package domain

import "time"

// State is the ingestor lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets State render as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of the ingestor for consumers.
type Status struct {
	State        State     `json:"state"`
	StartError   string    `json:"start_error,omitempty"`
	Port         string    `json:"port,omitempty"`
	Records      uint64    `json:"records"`
	ParseErrors  uint64    `json:"parse_errors"`
	WriteErrors  uint64    `json:"write_errors"`
	ReadErrors   uint64    `json:"read_errors"`
	Buffered     int       `json:"buffered"`
	LastRecordAt time.Time `json:"last_record_at,omitzero"`
}

// Degraded reports whether the durable log has failed at least once.
func (s Status) Degraded() bool { return s.WriteErrors > 0 }
