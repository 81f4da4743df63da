package device

import (
	"fmt"
	"strings"
	"time"
)

// Timing holds the ISP timing parameters of a device, in the units avrdude
// uses for them.
type Timing struct {
	Timeout     int
	StabDelay   int
	CmdExeDelay int
	SynchLoops  int
	ByteDelay   int
	PollIndex   int
	PollValue   byte
	PreDelay    int
	PostDelay   int
	PollMethod  int
}

// Fuses holds the fuse, lock and calibration instructions of a device.
type Fuses struct {
	LowRead       *Opcode
	LowWrite      *Opcode
	HighRead      *Opcode
	HighWrite     *Opcode
	ExtRead       *Opcode
	ExtWrite      *Opcode
	LockRead      *Opcode
	LockWrite     *Opcode
	SignatureRead *Opcode
	CalibRead     *Opcode

	// WriteDelay applies to every fuse and lock write
	WriteDelay time.Duration
}

// Profile describes one supported chip. Profiles are static and shared;
// never modify one.
type Profile struct {
	Name string

	// Signature is the expected device signature, high byte first
	Signature [3]byte

	// BaudRate is the line speed used while talking to the bootloader
	BaudRate int

	// ResetBaudRate is the line speed whose open/close reboots the board
	// into the bootloader
	ResetBaudRate int

	// ResponseTimeout bounds every wait for a reply
	ResponseTimeout time.Duration

	Timing Timing

	PageL   byte
	BS2     byte
	HasJTAG bool

	Flash  Memory
	EEPROM Memory
	Fuses  Fuses
}

// Memory returns the memory of the given kind.
func (p *Profile) Memory(k Kind) *Memory {
	if k == EEPROM {
		return &p.EEPROM
	}
	return &p.Flash
}

// Validate checks that the profile is internally consistent.
func (p *Profile) Validate() error {
	if p.BaudRate <= 0 {
		return fmt.Errorf("%s: invalid baud rate %d", p.Name, p.BaudRate)
	}
	for _, m := range []*Memory{&p.Flash, &p.EEPROM} {
		if m.Size <= 0 || m.PageSize <= 0 {
			return fmt.Errorf("%s %s: size and page size must be positive", p.Name, m.Kind)
		}
		if m.Size%m.PageSize != 0 {
			return fmt.Errorf("%s %s: page size %d does not divide size %d", p.Name, m.Kind, m.PageSize, m.Size)
		}
		if m.NumPages != m.Size/m.PageSize {
			return fmt.Errorf("%s %s: %d pages of %d bytes is not %d bytes",
				p.Name, m.Kind, m.NumPages, m.PageSize, m.Size)
		}

		read := m.Ops.Read
		units := m.Size
		if m.Kind == Flash {
			read = m.Ops.ReadLo
			// flash instructions address words
			units = m.Size / 2
		}
		if read == nil {
			return fmt.Errorf("%s %s: missing read instruction", p.Name, m.Kind)
		}
		if units > 1<<read.AddressBits() {
			return fmt.Errorf("%s %s: read instruction has %d address bits, too few for %d bytes",
				p.Name, m.Kind, read.AddressBits(), m.Size)
		}
	}
	return nil
}

var profiles = []*Profile{ATmega32U4}

// Lookup returns the profile with the given name, ignoring case.
func Lookup(name string) (*Profile, error) {
	for _, p := range profiles {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown chip %q", name)
}

// Supported reports whether p is one of the built-in profiles.
func Supported(p *Profile) bool {
	for _, known := range profiles {
		if p == known {
			return true
		}
	}
	return false
}
