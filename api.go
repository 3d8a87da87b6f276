package edgetap

import (
	base "github.com/ghalamif/EdgeTap/pkg/edgetap"
)

// Re-exported errors for convenience.
var (
	ErrAlreadyStarted    = base.ErrAlreadyStarted
	ErrStopped           = base.ErrStopped
	ErrLineTooLong       = base.ErrLineTooLong
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/ghalamif/EdgeTap directly.
type (
	Config              = base.Config
	SerialConfig        = base.SerialConfig
	ForwardConfig       = base.ForwardConfig
	Policy              = base.Policy
	OPCUAConfig         = base.OPCUAConfig
	OPCUANodeConfig     = base.OPCUANodeConfig
	Flow                = base.Flow
	FlowOption          = base.FlowOption
	StreamInOption      = base.StreamInOption
	StreamOutOption     = base.StreamOutOption
	Runtime             = base.Runtime
	RuntimeOption       = base.RuntimeOption
	Record              = base.Record
	Status              = base.Status
	State               = base.State
	PlaybackResult      = base.PlaybackResult
	Summary             = base.Summary
	QueuedRecord        = base.QueuedRecord
	RecordBatchSink     = base.RecordBatchSink
	Collector           = base.Collector
	Sink                = base.Sink
	Observability       = base.Observability
	DurableLog          = base.DurableLog
	PortOpener          = base.PortOpener
	PortOpenerFunc      = base.PortOpenerFunc
	PortSpec            = base.PortSpec
	SerialPort          = base.SerialPort
	ConnectionError     = base.ConnectionError
	ParseError          = base.ParseError
	WriteError          = base.WriteError
	PlaybackFormatError = base.PlaybackFormatError
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInPort(o PortOpener) StreamInOption {
	return base.StreamInPort(o)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutCallback(name string, fn RecordBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithPortOpener(o PortOpener) RuntimeOption {
	return base.WithPortOpener(o)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithDurableLog(l DurableLog) RuntimeOption {
	return base.WithDurableLog(l)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

// Sink adapters.
func NewCallbackSink(name string, fn RecordBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []QueuedRecord, func()) {
	return base.NewChannelSink(name, buffer)
}
