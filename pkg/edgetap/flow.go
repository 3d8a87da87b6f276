package edgetap

import (
	"context"
	"fmt"
)

// Flow reads a config and collects overrides in two groups: where records
// come from (StreamIN) and where they go (StreamOUT). StreamOUT builds the
// Runtime.
//
//	flow, err := edgetap.Conf("config.yaml")
//	...
//	rt, err := flow.
//		StreamIN(edgetap.StreamInPort(simulator)).
//		StreamOUT(edgetap.StreamOutCallback("print", printBatch))
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

type (
	// FlowOption mutates the Flow right after configuration is loaded.
	FlowOption func(*Flow)
	// StreamInOption overrides the record source side.
	StreamInOption func(*Flow)
	// StreamOutOption overrides forwarding and observability.
	StreamOutOption func(*Flow)
)

// Conf loads YAML from disk and returns a Flow builder for it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run builds the runtime and blocks in Runtime.Run until ctx is done.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions passes raw RuntimeOption values through the builder.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) { f.add(opts...) }
}

// StreamInPort reads lines through o instead of real serial devices.
func StreamInPort(o PortOpener) StreamInOption {
	if o == nil {
		return nil
	}
	return func(f *Flow) { f.add(WithPortOpener(o)) }
}

// StreamInCollector publishes records from col instead of the serial port.
func StreamInCollector(col Collector) StreamInOption {
	if col == nil {
		return nil
	}
	return func(f *Flow) { f.add(WithCollector(col)) }
}

// StreamInLog appends to l instead of the log.path file.
func StreamInLog(l DurableLog) StreamInOption {
	if l == nil {
		return nil
	}
	return func(f *Flow) { f.add(WithDurableLog(l)) }
}

func StreamOutSink(s Sink) StreamOutOption {
	if s == nil {
		return nil
	}
	return func(f *Flow) { f.add(WithSink(s)) }
}

func StreamOutObservability(obs Observability) StreamOutOption {
	if obs == nil {
		return nil
	}
	return func(f *Flow) { f.add(WithObservability(obs)) }
}

// StreamOutCallback forwards batches to fn.
func StreamOutCallback(name string, fn RecordBatchSink) StreamOutOption {
	return func(f *Flow) { f.add(WithSink(NewCallbackSink(name, fn))) }
}

func (f *Flow) add(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
