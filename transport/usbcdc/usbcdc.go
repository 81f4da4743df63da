// Package usbcdc talks to a CDC-ACM board directly over libusb using
// github.com/google/gousb, bypassing the OS serial driver. It is useful where
// no serial driver is bound, e.g. on hosts without cdc_acm.
package usbcdc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/moffa90/go-avr109/transport"
)

// USB identifiers of the Arduboy / Leonardo Caterina bootloader.
const (
	ArduinoVID    gousb.ID = 0x2341
	CaterinaPID   gousb.ID = 0x0036
	LeonardoPID   gousb.ID = 0x8036
	CommInterface          = 0
	DataInterface          = 1
	InEndpoint             = 3
	OutEndpoint            = 2
)

// CDC class requests.
const (
	requestType          = gousb.ControlOut | gousb.ControlClass | gousb.ControlInterface
	setLineCoding        = 0x20
	setControlLineState  = 0x22
	controlLineDTR       = 0x01
	controlLineRTS       = 0x02
	lineCodingLength     = 7
	lineCodingDataBits   = 8
	lineCodingOneStopBit = 0
	lineCodingParityNone = 0
)

// PollInterval bounds how long a Read blocks when no data arrives.
const PollInterval = 100 * time.Millisecond

// Port is a claimed CDC-ACM data interface.
type Port struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint
}

var _ transport.Port = (*Port)(nil)

// Open claims the CDC data interface of the first device matching vid/pid,
// sets the line coding to baud 8N1 and raises DTR and RTS.
func Open(vid, pid gousb.ID, baud int) (*Port, error) {
	ctx := gousb.NewContext()
	p := &Port{ctx: ctx}

	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("open device %s:%s: %w", vid, pid, err)
	}
	if dev == nil {
		p.Close()
		return nil, fmt.Errorf("device %s:%s not found", vid, pid)
	}
	p.dev = dev

	if err := dev.SetAutoDetach(true); err != nil {
		p.Close()
		return nil, fmt.Errorf("set auto detach: %w", err)
	}

	if p.cfg, err = dev.Config(1); err != nil {
		p.Close()
		return nil, fmt.Errorf("select config: %w", err)
	}
	if p.intf, err = p.cfg.Interface(DataInterface, 0); err != nil {
		p.Close()
		return nil, fmt.Errorf("claim data interface: %w", err)
	}
	if p.in, err = p.intf.InEndpoint(InEndpoint); err != nil {
		p.Close()
		return nil, fmt.Errorf("in endpoint: %w", err)
	}
	if p.out, err = p.intf.OutEndpoint(OutEndpoint); err != nil {
		p.Close()
		return nil, fmt.Errorf("out endpoint: %w", err)
	}

	if err := p.SetBaudRate(baud); err != nil {
		p.Close()
		return nil, err
	}
	if _, err := dev.Control(requestType, setControlLineState, controlLineDTR|controlLineRTS, CommInterface, nil); err != nil {
		p.Close()
		return nil, fmt.Errorf("set control line state: %w", err)
	}

	return p, nil
}

// Opener returns a transport.Opener for the given device.
func Opener(vid, pid gousb.ID) transport.Opener {
	return func(baud int) (transport.Port, error) {
		return Open(vid, pid, baud)
	}
}

// LineCoding returns the SET_LINE_CODING payload for baud, 8N1.
func LineCoding(baud int) []byte {
	data := make([]byte, lineCodingLength)
	binary.LittleEndian.PutUint32(data[0:4], uint32(baud))
	data[4] = lineCodingOneStopBit
	data[5] = lineCodingParityNone
	data[6] = lineCodingDataBits
	return data
}

// Read returns (0, nil) when nothing arrives within PollInterval.
func (p *Port) Read(b []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), PollInterval)
	defer cancel()

	n, err := p.in.ReadContext(ctx, b)
	if err != nil && (ctx.Err() != nil || errors.Is(err, gousb.ErrorTimeout)) {
		return n, nil
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) {
	return p.out.Write(b)
}

// SetBaudRate sends SET_LINE_CODING to the communication interface.
func (p *Port) SetBaudRate(baud int) error {
	if _, err := p.dev.Control(requestType, setLineCoding, 0, CommInterface, LineCoding(baud)); err != nil {
		return fmt.Errorf("set line coding %d: %w", baud, err)
	}
	return nil
}

// ResetInputBuffer is a no-op: the host keeps no buffer outside Conn.
func (p *Port) ResetInputBuffer() error {
	return nil
}

// Close releases the interface, the device and the libusb context.
func (p *Port) Close() error {
	var firstErr error
	if p.intf != nil {
		p.intf.Close()
	}
	if p.cfg != nil {
		if err := p.cfg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.dev != nil {
		if err := p.dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.ctx != nil {
		if err := p.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
