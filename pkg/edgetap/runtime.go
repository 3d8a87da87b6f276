package edgetap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/ghalamif/EdgeTap/internal/adapters/buffer"
	"github.com/ghalamif/EdgeTap/internal/adapters/durablelog"
	"github.com/ghalamif/EdgeTap/internal/adapters/httpapi"
	"github.com/ghalamif/EdgeTap/internal/adapters/observability"
	"github.com/ghalamif/EdgeTap/internal/adapters/opcua"
	"github.com/ghalamif/EdgeTap/internal/adapters/queue"
	"github.com/ghalamif/EdgeTap/internal/adapters/serialport"
	"github.com/ghalamif/EdgeTap/internal/adapters/sink"
	"github.com/ghalamif/EdgeTap/internal/app/config"
	"github.com/ghalamif/EdgeTap/internal/app/ingest"
	"github.com/ghalamif/EdgeTap/internal/app/pipeline"
	"github.com/ghalamif/EdgeTap/internal/app/playback"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

const (
	collectorBuffer = 256
	gaugeInterval   = time.Second
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	opener    PortOpener
	obs       Observability
	sinks     []Sink
	log       DurableLog
	collector Collector
	logger    *zerolog.Logger
	registry  *prometheus.Registry
}

// WithPortOpener replaces the go.bug.st/serial opener, e.g. with a simulator.
func WithPortOpener(o PortOpener) RuntimeOption {
	return func(ov *runtimeOverrides) {
		ov.opener = o
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(ov *runtimeOverrides) {
		ov.obs = obs
	}
}

// WithSink adds a forward sink next to the ones enabled in the config.
func WithSink(s Sink) RuntimeOption {
	return func(ov *runtimeOverrides) {
		if s != nil {
			ov.sinks = append(ov.sinks, s)
		}
	}
}

// WithDurableLog uses an already-open log instead of opening log.path.
// The runtime does not close a log it did not open.
func WithDurableLog(l DurableLog) RuntimeOption {
	return func(ov *runtimeOverrides) {
		ov.log = l
	}
}

// WithCollector feeds records from col instead of the serial port.
func WithCollector(col Collector) RuntimeOption {
	return func(ov *runtimeOverrides) {
		ov.collector = col
	}
}

// WithLogger overrides the logger built from the logging section.
func WithLogger(l zerolog.Logger) RuntimeOption {
	return func(ov *runtimeOverrides) {
		ov.logger = &l
	}
}

// WithRegistry registers metrics on reg, which /metrics then serves.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(ov *runtimeOverrides) {
		ov.registry = reg
	}
}

// Runtime wires serial port → ingestor → buffer + durable log → forward
// queue → sinks, and serves the HTTP query surface.
type Runtime struct {
	id        string
	cfg       *Config
	logger    zerolog.Logger
	obs       ports.Observability
	registry  *prometheus.Registry
	log       ports.DurableLog
	ownsLog   bool
	ingestor  *ingest.Ingestor
	player    *playback.Player
	queue     ports.RecordQueue
	forwarder *pipeline.Forwarder
	sinks     []ports.Sink
	collector ports.Collector
	http      *httpapi.Server

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRuntime builds the default adapters (serial opener, ring buffer, file
// log, Prometheus observability, configured sinks). RuntimeOption values
// override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var ov runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	id := uuid.NewString()

	var logger zerolog.Logger
	if ov.logger != nil {
		logger = *ov.logger
	} else {
		l, err := observability.NewLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("logging config: %w", err)
		}
		logger = l
	}
	logger = logger.With().Str("instance", id).Logger()

	reg := ov.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	obs := ov.obs
	if obs == nil {
		obs = observability.NewPromObs(reg, logger)
	}

	rt := &Runtime{
		id:        id,
		cfg:       cfg,
		logger:    logger,
		obs:       obs,
		registry:  reg,
		log:       ov.log,
		collector: ov.collector,
	}

	if rt.log == nil {
		l, err := durablelog.Open(cfg.Log.Path)
		if err != nil {
			return nil, err
		}
		rt.log = l
		rt.ownsLog = true
	}

	sinks, err := buildSinks(cfg.Forward, id, logger)
	if err != nil {
		rt.closeLog()
		return nil, err
	}
	rt.sinks = append(sinks, ov.sinks...)

	var ingestOpts []ingest.Option
	if cfg.Serial.MaxLineBytes > 0 {
		ingestOpts = append(ingestOpts, ingest.WithMaxLineBytes(cfg.Serial.MaxLineBytes))
	}
	if len(rt.sinks) > 0 {
		rt.queue = queue.NewMemQueue(cfg.Forward.Policy.MaxQueueLen)
		rt.forwarder = pipeline.NewForwarder(rt.queue, cfg.Forward.Policy, obs)
		ingestOpts = append(ingestOpts, ingest.WithForwarder(rt.forwarder))
	}

	opener := ov.opener
	if opener == nil {
		opener = serialport.NewOpener()
	}
	rt.ingestor = ingest.New(opener, buffer.NewRing(cfg.Buffer.Capacity), rt.log, obs, ingestOpts...)

	if rt.collector == nil && cfg.Source.Kind == config.SourceOPCUA {
		col, err := opcua.NewCollector(cfg.OPCUA, logger)
		if err != nil {
			rt.closeSinks()
			rt.closeLog()
			return nil, err
		}
		rt.collector = col
	}

	rt.player = playback.NewPlayer(rt.log.Path(), cfg.Playback.Window, obs)
	rt.http = httpapi.NewServer(cfg.HTTP.Addr, rt, reg, cfg.Playback.AnomalyThreshold, logger)

	return rt, nil
}

func buildSinks(fc config.ForwardConfig, id string, logger zerolog.Logger) ([]ports.Sink, error) {
	var (
		out  []ports.Sink
		errs []error
	)
	if fc.Timescale.ConnString != "" {
		db, err := sql.Open("postgres", fc.Timescale.ConnString)
		if err != nil {
			errs = append(errs, fmt.Errorf("timescale: %w", err))
		} else {
			out = append(out, sink.NewTimescaleSink(db, fc.Timescale.Table, id))
		}
	}
	if fc.MQTT.Broker != "" {
		s, err := sink.NewMQTTSink(fc.MQTT.Broker, fc.MQTT.Topic, fc.MQTT.QoS, id, logger)
		if err != nil {
			errs = append(errs, err)
		} else {
			out = append(out, s)
		}
	}
	if fc.Redis.URL != "" {
		s, err := sink.NewRedisSink(fc.Redis.URL, fc.Redis.List, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		} else {
			out = append(out, s)
		}
	}
	if err := errors.Join(errs...); err != nil {
		for _, s := range out {
			if c, ok := s.(ports.Closer); ok {
				_ = c.Close()
			}
		}
		return nil, err
	}
	return out, nil
}

// ID is the random instance id stamped on logs and forwarded records.
func (r *Runtime) ID() string { return r.id }

// Start launches forwarding, the record source and the HTTP surface, then
// returns. A serial port that cannot be opened is logged and reported through
// Status rather than returned, so the query surface stays available.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrStopped
	}
	if r.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)

	if r.forwarder != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			pipeline.RunForwardPipeline(ctx, r.queue, r.sinks, r.cfg.Forward.Policy, r.obs)
		}()
	}

	if r.collector != nil {
		if err := pipeline.RunCollectorBridge(ctx, r.collector, r.ingestor, collectorBuffer, r.obs); err != nil {
			cancel()
			r.wg.Wait()
			return err
		}
	} else {
		spec := ports.PortSpec{
			Name:        r.cfg.Serial.Port,
			BaudRate:    r.cfg.Serial.BaudRate,
			ReadTimeout: r.cfg.Serial.ReadTimeout,
		}
		if err := r.ingestor.Start(spec); err != nil {
			r.logger.Warn().Err(err).Msg("serial source unavailable, serving stored data only")
		}
	}

	if r.cfg.HTTP.Addr != "" {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.http.Run(ctx); err != nil {
				r.obs.LogError("http_server_failed", err, ports.Field{Key: "addr", Value: r.cfg.HTTP.Addr})
			}
		}()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.recordGauges(ctx, gaugeInterval)
	}()

	r.cancel = cancel
	r.started = true
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled, then shuts down.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops the source, drains forwarding and closes sinks and the log.
// A Runtime cannot be started again afterwards.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error

	if r.collector != nil && r.started {
		if err := r.collector.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.forwarder != nil {
		r.forwarder.Close()
	}
	if err := r.ingestor.Stop(); err != nil {
		errs = append(errs, err)
	}
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for workers: %w", ctx.Err()))
	}

	if err := r.closeSinks(); err != nil {
		errs = append(errs, err)
	}
	if err := r.closeLog(); err != nil {
		errs = append(errs, err)
	}

	r.started = false
	r.closed = true
	return errors.Join(errs...)
}

// Publish feeds a record through the same path as a serial line.
func (r *Runtime) Publish(rec Record) error { return r.ingestor.Publish(rec) }

// Snapshot returns copies of the latest n buffered records, oldest first.
func (r *Runtime) Snapshot(n int) []Record { return r.ingestor.Snapshot(n) }

func (r *Runtime) Status() Status { return r.ingestor.Status() }

// Playback replays the last k lines of the durable log.
func (r *Runtime) Playback(k int) (PlaybackResult, error) { return r.player.Replay(k) }

// Summary replays the last k lines and derives the fault view.
func (r *Runtime) Summary(k int) (Summary, error) {
	res, err := r.player.Replay(k)
	if err != nil {
		return Summary{}, err
	}
	return playback.Summarize(res.Records, r.cfg.Playback.AnomalyThreshold), nil
}

// Handler exposes the HTTP query surface for embedding in another server.
func (r *Runtime) Handler() http.Handler { return r.http.Handler() }

func (r *Runtime) recordGauges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.obs.SetGauge(ports.MetricLogSizeBytes, float64(r.log.Stats().SizeBytes))
			r.obs.SetGauge(ports.MetricBufferLength, float64(r.ingestor.Status().Buffered))
			if r.queue != nil {
				r.obs.SetGauge(ports.MetricForwardQueueLen, float64(r.queue.Len()))
			}
		}
	}
}

func (r *Runtime) closeSinks() error {
	var errs []error
	for _, s := range r.sinks {
		if c, ok := s.(ports.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close sink %s: %w", s.Name(), err))
			}
		}
	}
	r.sinks = nil
	return errors.Join(errs...)
}

func (r *Runtime) closeLog() error {
	if !r.ownsLog {
		return nil
	}
	r.ownsLog = false
	return r.log.Close()
}
