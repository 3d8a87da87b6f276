package ingest

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

const defaultReadTimeout = time.Second

// Forwarder receives every published record after it reached the buffer and
// the durable log. Offer must not block indefinitely.
type Forwarder interface {
	Offer(seq uint64, r domain.Record)
}

// Option customizes an Ingestor.
type Option func(*Ingestor)

// WithForwarder hands published records to a downstream forwarder.
func WithForwarder(f Forwarder) Option {
	return func(i *Ingestor) { i.fwd = f }
}

// WithMaxLineBytes bounds how many bytes a single serial line may take.
func WithMaxLineBytes(n int) Option {
	return func(i *Ingestor) { i.maxLine = n }
}

// Ingestor owns one serial connection and publishes every decoded line to
// the record buffer and the durable log, in wire order.
type Ingestor struct {
	opener ports.PortOpener
	buf    ports.RecordBuffer
	log    ports.DurableLog
	obs    ports.Observability
	fwd    Forwarder

	maxLine int
	state   atomic.Int32

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex
	spec      ports.PortSpec
	port      ports.SerialPort
	stopCh    chan struct{}
	doneCh    chan struct{}

	// publishMu keeps buffer and log in the same order across producers.
	publishMu sync.Mutex
	seq       uint64

	statusMu     sync.Mutex
	portName     string
	startErr     error
	lastRecordAt time.Time

	records     atomic.Uint64
	parseErrors atomic.Uint64
	writeErrors atomic.Uint64
	readErrors  atomic.Uint64
}

func New(opener ports.PortOpener, buf ports.RecordBuffer, log ports.DurableLog, obs ports.Observability, opts ...Option) *Ingestor {
	i := &Ingestor{
		opener: opener,
		buf:    buf,
		log:    log,
		obs:    obs,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// Start opens the serial port and launches the read loop. An open failure
// moves the ingestor to Failed and is returned as *domain.ConnectionError;
// it is not retried.
func (i *Ingestor) Start(spec ports.PortSpec) error {
	i.lifecycle.Lock()
	defer i.lifecycle.Unlock()

	switch i.State() {
	case domain.StateConnecting, domain.StateStreaming:
		return domain.ErrAlreadyStarted
	}
	if spec.ReadTimeout <= 0 {
		spec.ReadTimeout = defaultReadTimeout
	}
	i.spec = spec
	i.statusMu.Lock()
	i.portName = spec.Name
	i.statusMu.Unlock()
	i.setState(domain.StateConnecting)

	port, err := i.opener.Open(spec)
	if err != nil {
		cerr := &domain.ConnectionError{Port: spec.Name, Err: err}
		i.statusMu.Lock()
		i.startErr = cerr
		i.statusMu.Unlock()
		i.setState(domain.StateFailed)
		i.obs.LogError("serial_connect_failed", cerr,
			ports.Field{Key: "port", Value: spec.Name},
			ports.Field{Key: "baud_rate", Value: spec.BaudRate})
		return cerr
	}

	i.statusMu.Lock()
	i.startErr = nil
	i.statusMu.Unlock()

	i.port = port
	i.stopCh = make(chan struct{})
	i.doneCh = make(chan struct{})
	i.publishMu.Lock()
	i.setState(domain.StateStreaming)
	i.publishMu.Unlock()

	i.obs.LogInfo("serial_connected",
		ports.Field{Key: "port", Value: spec.Name},
		ports.Field{Key: "baud_rate", Value: spec.BaudRate},
		ports.Field{Key: "read_timeout", Value: spec.ReadTimeout.String()})

	go i.readLoop(NewFramer(port, i.maxLine), spec.ReadTimeout, i.stopCh, i.doneCh)
	return nil
}

// Stop signals the read loop, waits for it to leave (at most one read
// timeout) and closes the port. Calling Stop again is a no-op. A Failed
// ingestor keeps its state so the start error stays observable.
func (i *Ingestor) Stop() error {
	i.lifecycle.Lock()
	defer i.lifecycle.Unlock()

	prev := i.State()
	if prev == domain.StateStopped || prev == domain.StateFailed {
		return nil
	}

	i.publishMu.Lock()
	i.setState(domain.StateStopped)
	i.publishMu.Unlock()

	if prev != domain.StateStreaming {
		return nil
	}

	close(i.stopCh)
	<-i.doneCh

	err := i.port.Close()
	i.port = nil
	i.obs.LogInfo("serial_stopped", ports.Field{Key: "port", Value: i.spec.Name})
	return err
}

func (i *Ingestor) readLoop(fr *Framer, timeout time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var consecutiveErrs int
	for {
		select {
		case <-stop:
			return
		default:
		}

		line, err := fr.ReadLine()
		if err != nil {
			if errors.Is(err, domain.ErrLineTooLong) {
				i.recordParseError(&domain.ParseError{Err: err})
				continue
			}
			consecutiveErrs++
			i.readErrors.Add(1)
			i.obs.IncCounter(ports.MetricSerialReadErrors, 1)
			if consecutiveErrs == 1 {
				i.obs.LogError("serial_read_failed", err, ports.Field{Key: "port", Value: i.spec.Name})
			}
			select {
			case <-stop:
				return
			case <-time.After(timeout):
			}
			continue
		}
		consecutiveErrs = 0
		if line == nil {
			continue
		}
		_ = i.HandleLine(line)
	}
}

// HandleLine decodes one raw line and publishes it. Blank lines are ignored;
// malformed lines are counted and returned as *domain.ParseError.
func (i *Ingestor) HandleLine(line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	rec, err := domain.ParseRecord(line)
	if err != nil {
		i.recordParseError(err)
		return err
	}
	return i.Publish(rec)
}

// Publish appends r to the buffer and then to the durable log. A log failure
// is counted and returned as *domain.WriteError but the buffer keeps the
// record. Publishing into a stopped ingestor returns domain.ErrStopped.
func (i *Ingestor) Publish(r domain.Record) error {
	r = r.Clone()

	i.publishMu.Lock()
	defer i.publishMu.Unlock()

	if i.State() == domain.StateStopped {
		return domain.ErrStopped
	}

	i.seq++
	i.buf.Push(r)
	i.records.Add(1)
	i.statusMu.Lock()
	i.lastRecordAt = time.Now()
	i.statusMu.Unlock()
	i.obs.IncCounter(ports.MetricRecordsIngested, 1)
	i.obs.SetGauge(ports.MetricBufferLength, float64(i.buf.Len()))

	var werr error
	if err := i.log.Append(r); err != nil {
		werr = err
		i.writeErrors.Add(1)
		i.obs.IncCounter(ports.MetricLogWriteErrors, 1)
		i.obs.LogError("log_append_failed", err, ports.Field{Key: "path", Value: i.log.Path()})
	} else {
		i.obs.SetGauge(ports.MetricLogSizeBytes, float64(i.log.Stats().SizeBytes))
	}

	if i.fwd != nil {
		i.fwd.Offer(i.seq, r)
	}
	return werr
}

// Snapshot returns copies of the last n records, oldest first.
func (i *Ingestor) Snapshot(n int) []domain.Record {
	return i.buf.Snapshot(n)
}

func (i *Ingestor) State() domain.State {
	return domain.State(i.state.Load())
}

func (i *Ingestor) Status() domain.Status {
	i.statusMu.Lock()
	startErr := i.startErr
	portName := i.portName
	last := i.lastRecordAt
	i.statusMu.Unlock()

	st := domain.Status{
		State:        i.State(),
		Port:         portName,
		Records:      i.records.Load(),
		ParseErrors:  i.parseErrors.Load(),
		WriteErrors:  i.writeErrors.Load(),
		ReadErrors:   i.readErrors.Load(),
		Buffered:     i.buf.Len(),
		LastRecordAt: last,
	}
	if startErr != nil {
		st.StartError = startErr.Error()
	}
	return st
}

func (i *Ingestor) setState(s domain.State) {
	i.state.Store(int32(s))
}

func (i *Ingestor) recordParseError(err error) {
	i.parseErrors.Add(1)
	i.obs.IncCounter(ports.MetricParseErrors, 1)
	i.obs.LogError("serial_parse_failed", err)
}
