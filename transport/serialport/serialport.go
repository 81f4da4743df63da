// Package serialport provides transport.Port on top of go.bug.st/serial,
// plus USB port discovery for boards that re-enumerate into a bootloader.
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/moffa90/go-avr109/transport"
)

// PollInterval bounds how long a Read blocks when no data arrives.
const PollInterval = 100 * time.Millisecond

// Port is a serial port opened with 8N1 framing.
type Port struct {
	name string
	port serial.Port
}

var _ transport.Port = (*Port)(nil)

func modeFor(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens the named port at baud with DTR and RTS asserted, which
// Caterina requires before it answers.
func Open(name string, baud int) (*Port, error) {
	p, err := serial.Open(name, modeFor(baud))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := p.SetReadTimeout(PollInterval); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	if err := p.SetDTR(true); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set DTR on %s: %w", name, err)
	}
	if err := p.SetRTS(true); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set RTS on %s: %w", name, err)
	}
	return &Port{name: name, port: p}, nil
}

// Opener returns a transport.Opener for the named port.
func Opener(name string) transport.Opener {
	return func(baud int) (transport.Port, error) {
		return Open(name, baud)
	}
}

// Name returns the OS name of the port.
func (p *Port) Name() string {
	return p.name
}

// Read returns (0, nil) when nothing arrives within PollInterval.
func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *Port) Close() error {
	return p.port.Close()
}

func (p *Port) SetBaudRate(baud int) error {
	return p.port.SetMode(modeFor(baud))
}

func (p *Port) ResetInputBuffer() error {
	return p.port.ResetInputBuffer()
}
