package serialport

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/ghalamif/EdgeTap/internal/ports"
)

// Opener opens real serial devices as 8N1 with the configured baud rate and
// read timeout.
type Opener struct{}

func NewOpener() *Opener { return &Opener{} }

func (o *Opener) Open(spec ports.PortSpec) (ports.SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: spec.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(spec.Name, mode)
	if err != nil {
		return nil, err
	}
	if spec.ReadTimeout > 0 {
		if err := p.SetReadTimeout(spec.ReadTimeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	return p, nil
}

// ListPorts returns the serial devices visible to the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

var _ ports.PortOpener = (*Opener)(nil)
