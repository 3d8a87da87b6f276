package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ghalamif/EdgeTap/internal/ports"
)

type PromObs struct {
	logger   zerolog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the edgetap metrics on reg (the default registerer
// when nil) and logs through logger.
func NewPromObs(reg prometheus.Registerer, logger zerolog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	p := &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			ports.MetricRecordsIngested:  counter(ports.MetricRecordsIngested, "Records published to the buffer and durable log."),
			ports.MetricParseErrors:      counter(ports.MetricParseErrors, "Serial lines discarded because they were not a JSON object."),
			ports.MetricLogWriteErrors:   counter(ports.MetricLogWriteErrors, "Failed appends to the durable log."),
			ports.MetricSerialReadErrors: counter(ports.MetricSerialReadErrors, "Errors returned by the serial port read call."),
			ports.MetricPlaybackSkipped:  counter(ports.MetricPlaybackSkipped, "Durable log lines skipped during playback."),
			ports.MetricForwardDropped:   counter(ports.MetricForwardDropped, "Records lost due to forward queue backpressure."),
			ports.MetricSinkErrors:       counter(ports.MetricSinkErrors, "Failed forward batch writes."),
			ports.MetricRecordsForwarded: counter(ports.MetricRecordsForwarded, "Records written to forward sinks."),
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricBufferLength:    gauge(ports.MetricBufferLength, "Records currently held in the in-memory buffer."),
			ports.MetricLogSizeBytes:    gauge(ports.MetricLogSizeBytes, "Size of the durable log on disk."),
			ports.MetricForwardQueueLen: gauge(ports.MetricForwardQueueLen, "Records waiting in the forward queue."),
		},
	}
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricSinkLatency,
		Help:    "Forward sink batch write latency.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	p.histos = map[string]prometheus.Observer{ports.MetricSinkLatency: latency}

	collectors := []prometheus.Collector{latency}
	for _, c := range p.counters {
		collectors = append(collectors, c)
	}
	for _, g := range p.gauges {
		collectors = append(collectors, g)
	}
	reg.MustRegister(collectors...)

	return p
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	withFields(p.logger.Info(), fields).Msg(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	withFields(p.logger.Error().Err(err), fields).Msg(msg)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	withFields(p.logger.WithLevel(zerolog.FatalLevel).Err(err), fields).Msg(msg)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func withFields(e *zerolog.Event, fields []ports.Field) *zerolog.Event {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	return e
}

var _ ports.Observability = (*PromObs)(nil)
