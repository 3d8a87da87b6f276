package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// Metric names understood by Observability implementations.
const (
	MetricRecordsIngested  = "edgetap_records_ingested_total"
	MetricParseErrors      = "edgetap_parse_errors_total"
	MetricLogWriteErrors   = "edgetap_log_write_errors_total"
	MetricSerialReadErrors = "edgetap_serial_read_errors_total"
	MetricPlaybackSkipped  = "edgetap_playback_skipped_total"
	MetricForwardDropped   = "edgetap_forward_dropped_total"
	MetricSinkErrors       = "edgetap_sink_errors_total"
	MetricRecordsForwarded = "edgetap_records_forwarded_total"
	MetricBufferLength     = "edgetap_buffer_length"
	MetricLogSizeBytes     = "edgetap_log_size_bytes"
	MetricForwardQueueLen  = "edgetap_forward_queue_length"
	MetricSinkLatency      = "edgetap_sink_latency_seconds"
)
