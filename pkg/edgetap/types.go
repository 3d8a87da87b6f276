package edgetap

import (
	"github.com/ghalamif/EdgeTap/internal/app/playback"
	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

// Record is one decoded telemetry line.
type Record = domain.Record

// Status is a point-in-time view of the ingestor.
type Status = domain.Status

// State is the ingestor lifecycle state.
type State = domain.State

const (
	StateIdle       = domain.StateIdle
	StateConnecting = domain.StateConnecting
	StateStreaming  = domain.StateStreaming
	StateStopped    = domain.StateStopped
	StateFailed     = domain.StateFailed
)

type (
	ConnectionError     = domain.ConnectionError
	ParseError          = domain.ParseError
	WriteError          = domain.WriteError
	PlaybackFormatError = domain.PlaybackFormatError
)

var (
	ErrAlreadyStarted = domain.ErrAlreadyStarted
	ErrStopped        = domain.ErrStopped
	ErrLineTooLong    = domain.ErrLineTooLong
)

// PlaybackResult holds replayed records and the lines that were skipped.
type PlaybackResult = playback.Result

// Summary is the fault view derived from replayed records.
type Summary = playback.Summary

// QueuedRecord is a record waiting in the forward queue, tagged with its publish sequence.
type QueuedRecord = ports.QueuedRecord

// Collector streams records from a non-serial source (OPC UA, simulators) into the ingestor.
type Collector = ports.Collector

// Sink consumes forwarded batches and persists them to any downstream system.
type Sink = ports.Sink

// Observability emits metrics and structured logs.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// DurableLog is the append-only record log.
type DurableLog = ports.DurableLog

// PortOpener opens serial devices; swap it to read from simulators or files.
type PortOpener = ports.PortOpener

// PortOpenerFunc adapts a function to PortOpener.
type PortOpenerFunc = ports.PortOpenerFunc

type (
	PortSpec   = ports.PortSpec
	SerialPort = ports.SerialPort
)

// RecordBatchSink is the callback signature used by NewCallbackSink.
type RecordBatchSink func(batch []QueuedRecord) error

// LogStats reports durable log size.
type LogStats = ports.LogStats
