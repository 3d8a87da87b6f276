package ports

import (
	"io"
	"time"
)

// PortSpec identifies the serial device and its line settings.
type PortSpec struct {
	Name        string
	BaudRate    int
	ReadTimeout time.Duration
}

// SerialPort is an open serial device. Read must return within the read
// timeout; (0, nil) means no data arrived.
type SerialPort interface {
	io.ReadCloser
}

// PortOpener opens a serial device. Implementations apply spec.ReadTimeout
// to the returned port.
type PortOpener interface {
	Open(spec PortSpec) (SerialPort, error)
}

// PortOpenerFunc adapts a function to PortOpener.
type PortOpenerFunc func(spec PortSpec) (SerialPort, error)

func (f PortOpenerFunc) Open(spec PortSpec) (SerialPort, error) { return f(spec) }
