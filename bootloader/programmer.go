package bootloader

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-avr109/device"
	"github.com/moffa90/go-avr109/protocol"
)

// Transport is the byte link the programmer talks over.
// *transport.Conn implements it.
type Transport interface {
	Write(p []byte) (int, error)

	// ReadFull blocks until len(p) bytes arrived or timeout elapsed and
	// returns how many were read
	ReadFull(p []byte, timeout time.Duration) (int, error)
}

// State is the programmer's position in the bootloader session.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateIdentified
	StateUnlocked
	StateReading
	StateWriting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateIdentified:
		return "identified"
	case StateUnlocked:
		return "unlocked"
	case StateReading:
		return "reading"
	case StateWriting:
		return "writing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Programmer drives one AVR109 bootloader session: identification, device
// selection, unlocking, paged transfers and exit. There is no retry; any
// unexpected reply fails the step.
//
// A Programmer is not safe for concurrent use.
type Programmer struct {
	device Transport
	config Config
	state  State
}

// New creates a new Programmer on the given transport.
//
// Example:
//
//	conn := transport.NewConn(serialport.Opener("/dev/ttyACM0"))
//	_ = conn.Open(57600)
//	prog := bootloader.New(conn,
//	    bootloader.WithProgressCallback(progressFunc),
//	    bootloader.WithResponseTimeout(5*time.Second),
//	)
func New(device Transport, opts ...Option) *Programmer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newProgrammer(device, cfg)
}

func newProgrammer(device Transport, cfg Config) *Programmer {
	if device == nil {
		panic("device cannot be nil")
	}
	return &Programmer{
		device: device,
		config: cfg,
	}
}

// State returns the current session state.
func (p *Programmer) State() State {
	return p.state
}

// Open starts a session. It always succeeds.
func (p *Programmer) Open() error {
	p.state = StateOpen
	return nil
}

// Identify reads the software identifier, software version and programmer
// type, and checks that the bootloader auto-increments addresses and
// supports block transfers.
func (p *Programmer) Identify() (*protocol.Identity, error) {
	id := &protocol.Identity{}

	sw := make([]byte, protocol.SoftwareIDSize)
	if err := p.exchange("identify", []byte{protocol.CmdSoftwareID}, sw); err != nil {
		return nil, err
	}
	id.SoftwareID = protocol.PrintableASCII(sw)

	ver := make([]byte, protocol.SoftwareVersionSize)
	if err := p.exchange("identify", []byte{protocol.CmdSoftwareVersion}, ver); err != nil {
		return nil, err
	}
	id.SoftwareVersion = protocol.PrintableASCII(ver)

	typ := make([]byte, protocol.ProgrammerTypeSize)
	if err := p.exchange("identify", []byte{protocol.CmdProgrammerType}, typ); err != nil {
		return nil, err
	}
	id.ProgrammerType = typ[0]

	if err := p.command("identify", protocol.CmdAutoIncrement, []byte{protocol.CmdAutoIncrement}, protocol.RspYes); err != nil {
		return nil, err
	}

	block := make([]byte, protocol.BlockSupportSize)
	if err := p.exchange("identify", []byte{protocol.CmdCheckBlockSupport}, block); err != nil {
		return nil, err
	}
	size, err := protocol.ParseBlockSupportResponse(block)
	if err != nil {
		return nil, err
	}
	id.BlockSize = size

	p.state = StateIdentified
	p.logDebug("bootloader identified",
		"software_id", id.SoftwareID,
		"software_version", id.SoftwareVersion,
		"programmer_type", fmt.Sprintf("0x%02X", id.ProgrammerType),
		"block_size", id.BlockSize,
	)
	return id, nil
}

// SelectDevice lists the supported device codes and selects the first one.
// The list is read a byte at a time until the terminator or a short read.
func (p *Programmer) SelectDevice() (byte, error) {
	if _, err := p.device.Write([]byte{protocol.CmdSupportedDeviceCodes}); err != nil {
		return 0, fmt.Errorf("write command: %w", err)
	}

	var list []byte
	b := make([]byte, 1)
	for {
		n, _ := p.device.ReadFull(b, p.timeout())
		if n == 0 {
			break
		}
		list = append(list, b[0])
		if b[0] == protocol.RspTerminate {
			break
		}
	}
	codes := protocol.ParseDeviceCodes(list)
	if len(codes) == 0 {
		return 0, ErrNoDeviceCode
	}
	code := codes[0]
	p.logDebug("device codes", "codes", fmt.Sprintf("% X", codes))

	if err := p.command("select device", protocol.CmdSelectDevice, protocol.BuildSelectDeviceCmd(code), protocol.RspSuccess); err != nil {
		return 0, err
	}

	p.logDebug("device selected", "code", fmt.Sprintf("0x%02X", code))
	return code, nil
}

// Unlock enters programming mode.
func (p *Programmer) Unlock() error {
	if err := p.command("enter programming mode", protocol.CmdEnterProgMode, []byte{protocol.CmdEnterProgMode}, protocol.RspSuccess); err != nil {
		return err
	}
	p.state = StateUnlocked
	return nil
}

// CheckSignature reads the device signature. The value is returned and
// logged; comparing it with a profile is left to the caller.
func (p *Programmer) CheckSignature() (protocol.Signature, error) {
	reply := make([]byte, protocol.SignatureSize)
	if err := p.exchange("read signature", []byte{protocol.CmdReadSignature}, reply); err != nil {
		return protocol.Signature{}, err
	}
	sig, err := protocol.ParseSignatureResponse(reply)
	if err != nil {
		return sig, err
	}
	p.logDebug("signature read", "signature", sig.String())
	return sig, nil
}

// PagedWrite writes img.Buffer to the device in blocks of img.BlockSize(),
// starting at address 0. It returns the address reached.
//
// ctx is checked before the first command and before every block; once it
// is done no further block is sent and (0, ErrCancelled) is returned.
func (p *Programmer) PagedWrite(ctx context.Context, img *device.MemoryImage) (int, error) {
	if p.state != StateUnlocked {
		return 0, &StateError{Operation: "paged write", State: p.state}
	}

	total := len(img.Buffer)
	if total > img.Memory.Size {
		total = img.Memory.Size
	}
	return p.paged(ctx, img, PhaseWriting, StateWriting, total, func(addr, size int) error {
		frame, err := protocol.BuildBlockLoadCmd(img.Kind().Tag(), img.Buffer[addr:addr+size])
		if err != nil {
			return err
		}
		return p.command("block load", protocol.CmdStartBlockLoad, frame, protocol.RspSuccess)
	})
}

// PagedRead reads the whole memory into a fresh img.Buffer in blocks of
// img.BlockSize(). It returns the address reached; on failure img.Buffer
// holds what was read so far.
//
// Cancellation behaves as for PagedWrite.
func (p *Programmer) PagedRead(ctx context.Context, img *device.MemoryImage) (int, error) {
	if p.state != StateUnlocked {
		return 0, &StateError{Operation: "paged read", State: p.state}
	}

	buf := make([]byte, img.Memory.Size)
	reached, err := p.paged(ctx, img, PhaseReading, StateReading, len(buf), func(addr, size int) error {
		frame, err := protocol.BuildBlockReadCmd(img.Kind().Tag(), size)
		if err != nil {
			return err
		}
		return p.exchange("block read", frame, buf[addr:addr+size])
	})
	img.Buffer = buf[:reached]
	return reached, err
}

func (p *Programmer) paged(ctx context.Context, img *device.MemoryImage, phase string, state State,
	total int, block func(addr, size int) error) (int, error) {
	if ctx.Err() != nil {
		return 0, ErrCancelled
	}

	p.state = state
	defer func() { p.state = StateUnlocked }()

	if err := p.command("set address", protocol.CmdSetAddress, protocol.BuildSetAddressCmd(0), protocol.RspSuccess); err != nil {
		return 0, err
	}

	startTime := time.Now()
	blockSize := img.BlockSize()
	addr := 0
	for addr < total {
		if ctx.Err() != nil {
			p.logInfo("transfer cancelled", "memory", img.Kind().String(), "address", addr)
			return 0, ErrCancelled
		}

		size := blockSize
		if total-addr < size {
			size = total - addr
		}
		if err := block(addr, size); err != nil {
			return addr, fmt.Errorf("%s block at 0x%04X: %w", img.Kind(), addr, err)
		}
		addr += size

		p.reportProgress(Progress{
			Phase:       phase,
			Memory:      img.Kind(),
			Percentage:  addr * 100 / total,
			Address:     addr,
			Total:       total,
			ElapsedTime: time.Since(startTime),
		})
	}

	p.logDebug("transfer complete",
		"memory", img.Kind().String(),
		"phase", phase,
		"bytes", addr,
		"elapsed", time.Since(startTime).String(),
	)
	return addr, nil
}

// Disable leaves programming mode and exits the bootloader, which starts
// the application. Failures are logged, never returned.
func (p *Programmer) Disable() {
	if err := p.command("leave programming mode", protocol.CmdLeaveProgMode, []byte{protocol.CmdLeaveProgMode}, protocol.RspSuccess); err != nil {
		p.logError("leave programming mode failed", "error", err)
	}
	if err := p.command("exit bootloader", protocol.CmdExitBootloader, []byte{protocol.CmdExitBootloader}, protocol.RspSuccess); err != nil {
		p.logError("exit bootloader failed", "error", err)
	}
	p.state = StateClosed
}

// command sends frame and expects the single byte want in reply.
func (p *Programmer) command(operation string, cmd byte, frame []byte, want byte) error {
	reply := make([]byte, 1)
	if err := p.exchange(operation, frame, reply); err != nil {
		return err
	}
	return protocol.ExpectByte(operation, cmd, reply, want)
}

// exchange sends frame and reads exactly len(reply) bytes.
func (p *Programmer) exchange(operation string, frame, reply []byte) error {
	if _, err := p.device.Write(frame); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	if len(reply) == 0 {
		return nil
	}

	n, err := p.device.ReadFull(reply, p.timeout())
	if n < len(reply) {
		pe := &protocol.ProtocolError{
			Operation: operation,
			Command:   frame[0],
			Got:       n,
			Want:      len(reply),
		}
		if err != nil {
			return fmt.Errorf("%w: %v", pe, err)
		}
		return pe
	}
	return nil
}

func (p *Programmer) timeout() time.Duration {
	if p.config.ResponseTimeout > 0 {
		return p.config.ResponseTimeout
	}
	return protocol.DefaultResponseTimeout
}

// reportProgress calls the progress callback and channel if configured.
func (p *Programmer) reportProgress(progress Progress) {
	reportProgress(p.config, progress)
}

func reportProgress(cfg Config, progress Progress) {
	if cfg.ProgressCallback != nil {
		cfg.ProgressCallback(progress)
	}
	if cfg.ProgressChannel != nil {
		select {
		case cfg.ProgressChannel <- progress:
		default:
		}
	}
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
