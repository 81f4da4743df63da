// Package simulator emulates a Caterina AVR109 bootloader in memory. A
// Device implements transport.Port, so the whole stack above the backends
// can run against it: tests, examples and the CLI's "sim" transport.
package simulator

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/moffa90/go-avr109/device"
	"github.com/moffa90/go-avr109/protocol"
	"github.com/moffa90/go-avr109/transport"
)

// Caterina identification replies.
const (
	SoftwareID      = "CATERIN"
	SoftwareVersion = "10"
	ProgrammerType  = 'S'
	DeviceCode      = 0x44
	BufferSize      = 128
)

// RspUnknown is the reply to commands the bootloader rejects.
const RspUnknown = '?'

// pollInterval bounds how long Read blocks without data.
const pollInterval = 10 * time.Millisecond

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("simulator: port closed")

// Device is an emulated ATmega32U4 running Caterina.
//
// Device is safe for concurrent use.
type Device struct {
	profile   *device.Profile
	latency   time.Duration
	codes     []byte
	signature [3]byte
	buffer    uint16

	mu       sync.Mutex
	flash    []byte
	eeprom   []byte
	address  int
	progMode bool
	exited   bool
	closed   bool
	baud     int
	bauds    []int
	pending  []byte
	out      []byte
	frames   [][]byte
	failures map[byte]fault
	notify   chan struct{}
}

type faultKind int

const (
	faultFail faultKind = iota + 1
	faultMute
	faultTruncate
)

type fault struct {
	kind faultKind
	keep int
}

var _ transport.Port = (*Device)(nil)

// Option configures a Device.
type Option func(*Device)

// WithLatency delays every reply by d.
func WithLatency(d time.Duration) Option {
	return func(dev *Device) {
		dev.latency = d
	}
}

// WithDeviceCodes sets the codes listed by the 't' command.
func WithDeviceCodes(codes ...byte) Option {
	return func(dev *Device) {
		dev.codes = append([]byte(nil), codes...)
	}
}

// WithSignature overrides the signature reported by 's'.
func WithSignature(sig [3]byte) Option {
	return func(dev *Device) {
		dev.signature = sig
	}
}

// WithBufferSize overrides the block buffer size reported by 'b'.
func WithBufferSize(n uint16) Option {
	return func(dev *Device) {
		dev.buffer = n
	}
}

// New returns an erased device described by profile.
//
// Example:
//
//	sim := simulator.New(device.ATmega32U4)
//	conn := transport.NewConn(sim.Opener())
func New(profile *device.Profile, opts ...Option) *Device {
	d := &Device{
		profile:   profile,
		codes:     []byte{DeviceCode},
		signature: profile.Signature,
		buffer:    BufferSize,
		flash:     erased(profile.Flash.Size),
		eeprom:    erased(profile.EEPROM.Size),
		closed:    true,
		failures:  make(map[byte]fault),
		notify:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func erased(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = device.ErasedByte
	}
	return b
}

// Opener returns a transport.Opener that (re)opens this device.
func (d *Device) Opener() transport.Opener {
	return func(baud int) (transport.Port, error) {
		d.Open(baud)
		return d, nil
	}
}

// Open resets the link state as if the port had just been opened.
func (d *Device) Open(baud int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = false
	d.exited = false
	d.pending = nil
	d.out = nil
	d.baud = baud
	d.bauds = append(d.bauds, baud)
}

// Fail makes the device answer cmd with '?'.
func (d *Device) Fail(cmd byte) {
	d.setFault(cmd, fault{kind: faultFail})
}

// Mute makes the device ignore cmd.
func (d *Device) Mute(cmd byte) {
	d.setFault(cmd, fault{kind: faultMute})
}

// Truncate makes the device send only the first n bytes of its reply to cmd.
func (d *Device) Truncate(cmd byte, n int) {
	d.setFault(cmd, fault{kind: faultTruncate, keep: n})
}

// ClearFaults removes all injected faults.
func (d *Device) ClearFaults() {
	d.mu.Lock()
	d.failures = make(map[byte]fault)
	d.mu.Unlock()
}

func (d *Device) setFault(cmd byte, f fault) {
	d.mu.Lock()
	d.failures[cmd] = f
	d.mu.Unlock()
}

// Read returns pending reply bytes, waiting up to a short poll interval.
func (d *Device) Read(b []byte) (int, error) {
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return 0, ErrClosed
		}
		if len(d.out) > 0 {
			n := copy(b, d.out)
			d.out = d.out[n:]
			d.mu.Unlock()
			return n, nil
		}
		d.mu.Unlock()

		select {
		case <-d.notify:
		case <-time.After(pollInterval):
			return 0, nil
		}
	}
}

// Write feeds command bytes to the bootloader. Complete commands are
// executed and their replies queued for Read.
func (d *Device) Write(b []byte) (int, error) {
	if d.latency > 0 {
		time.Sleep(d.latency)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}

	d.pending = append(d.pending, b...)
	for {
		n := commandLength(d.pending)
		if n == 0 || len(d.pending) < n {
			break
		}
		frame := append([]byte(nil), d.pending[:n]...)
		d.pending = d.pending[n:]
		d.frames = append(d.frames, frame)
		d.reply(frame, d.execute(frame))
	}
	return len(b), nil
}

// commandLength returns the full length of the command at the start of
// buf, or 0 if not enough bytes are present to tell.
func commandLength(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	switch buf[0] {
	case protocol.CmdSetAddress:
		return 3
	case protocol.CmdSetExtAddress:
		return 4
	case protocol.CmdSelectDevice:
		return 2
	case protocol.CmdStartBlockRead:
		return 4
	case protocol.CmdStartBlockLoad:
		if len(buf) < 3 {
			return 0
		}
		return 4 + int(binary.BigEndian.Uint16(buf[1:3]))
	default:
		return 1
	}
}

func (d *Device) reply(frame, rsp []byte) {
	if f, ok := d.failures[frame[0]]; ok {
		switch f.kind {
		case faultFail:
			rsp = []byte{RspUnknown}
		case faultMute:
			rsp = nil
		case faultTruncate:
			if f.keep < len(rsp) {
				rsp = rsp[:f.keep]
			}
		}
	}
	if len(rsp) == 0 {
		return
	}
	d.out = append(d.out, rsp...)
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *Device) execute(frame []byte) []byte {
	switch frame[0] {
	case protocol.CmdSoftwareID:
		return []byte(SoftwareID)
	case protocol.CmdSoftwareVersion:
		return []byte(SoftwareVersion)
	case protocol.CmdProgrammerType:
		return []byte{ProgrammerType}
	case protocol.CmdAutoIncrement:
		return []byte{protocol.RspYes}
	case protocol.CmdCheckBlockSupport:
		return []byte{protocol.RspYes, byte(d.buffer >> 8), byte(d.buffer)}
	case protocol.CmdSupportedDeviceCodes:
		return append(append([]byte(nil), d.codes...), protocol.RspTerminate)
	case protocol.CmdSelectDevice:
		return []byte{protocol.RspSuccess}
	case protocol.CmdEnterProgMode:
		d.progMode = true
		return []byte{protocol.RspSuccess}
	case protocol.CmdLeaveProgMode:
		d.progMode = false
		return []byte{protocol.RspSuccess}
	case protocol.CmdExitBootloader:
		d.exited = true
		return []byte{protocol.RspSuccess}
	case protocol.CmdReadSignature:
		sig := d.signature
		return []byte{sig[2], sig[1], sig[0]}
	case protocol.CmdSetAddress:
		// word address
		d.address = int(binary.BigEndian.Uint16(frame[1:3])) << 1
		return []byte{protocol.RspSuccess}
	case protocol.CmdSetExtAddress:
		d.address = (int(frame[1])<<16 | int(frame[2])<<8 | int(frame[3])) << 1
		return []byte{protocol.RspSuccess}
	case protocol.CmdStartBlockLoad:
		return d.blockLoad(frame[3], frame[4:])
	case protocol.CmdStartBlockRead:
		return d.blockRead(frame[3], int(binary.BigEndian.Uint16(frame[1:3])))
	default:
		return []byte{RspUnknown}
	}
}

// blockLoad mirrors Caterina: flash advances the byte address by the data
// length, EEPROM uses address/2 and advances by two per byte.
func (d *Device) blockLoad(mem byte, data []byte) []byte {
	switch mem {
	case protocol.MemFlash:
		if d.address+len(data) > len(d.flash) {
			return []byte{RspUnknown}
		}
		copy(d.flash[d.address:], data)
		d.address += len(data)
	case protocol.MemEEPROM:
		for _, b := range data {
			i := d.address >> 1
			if i >= len(d.eeprom) {
				return []byte{RspUnknown}
			}
			d.eeprom[i] = b
			d.address += 2
		}
	default:
		return []byte{RspUnknown}
	}
	return []byte{protocol.RspSuccess}
}

func (d *Device) blockRead(mem byte, size int) []byte {
	switch mem {
	case protocol.MemFlash:
		if d.address+size > len(d.flash) {
			return []byte{RspUnknown}
		}
		out := append([]byte(nil), d.flash[d.address:d.address+size]...)
		d.address += size
		return out
	case protocol.MemEEPROM:
		out := make([]byte, 0, size)
		for j := 0; j < size; j++ {
			i := d.address >> 1
			if i >= len(d.eeprom) {
				return []byte{RspUnknown}
			}
			out = append(out, d.eeprom[i])
			d.address += 2
		}
		return out
	default:
		return []byte{RspUnknown}
	}
}

// Close closes the port. The device keeps its memory and can be reopened.
func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	select {
	case d.notify <- struct{}{}:
	default:
	}
	return nil
}

// SetBaudRate records the new line speed.
func (d *Device) SetBaudRate(baud int) error {
	d.mu.Lock()
	d.baud = baud
	d.bauds = append(d.bauds, baud)
	d.mu.Unlock()
	return nil
}

// ResetInputBuffer drops queued replies.
func (d *Device) ResetInputBuffer() error {
	d.mu.Lock()
	d.out = nil
	d.mu.Unlock()
	return nil
}

// Flash returns a copy of flash memory.
func (d *Device) Flash() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.flash...)
}

// EEPROM returns a copy of EEPROM.
func (d *Device) EEPROM() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.eeprom...)
}

// LoadFlash preloads flash from address 0.
func (d *Device) LoadFlash(data []byte) {
	d.mu.Lock()
	copy(d.flash, data)
	d.mu.Unlock()
}

// LoadEEPROM preloads EEPROM from address 0.
func (d *Device) LoadEEPROM(data []byte) {
	d.mu.Lock()
	copy(d.eeprom, data)
	d.mu.Unlock()
}

// Frames returns every complete command received so far.
func (d *Device) Frames() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.frames))
	copy(out, d.frames)
	return out
}

// ResetFrames forgets recorded commands.
func (d *Device) ResetFrames() {
	d.mu.Lock()
	d.frames = nil
	d.mu.Unlock()
}

// InProgrammingMode reports whether 'P' was received without a later 'L'.
func (d *Device) InProgrammingMode() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progMode
}

// Exited reports whether the bootloader was told to start the application.
func (d *Device) Exited() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exited
}

// BaudRates returns every line speed the port was opened or set at.
func (d *Device) BaudRates() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.bauds...)
}
