package device

import (
	"fmt"
	"time"

	"github.com/moffa90/go-avr109/protocol"
)

// Kind identifies a programmable memory.
type Kind int

const (
	Flash Kind = iota
	EEPROM
)

func (k Kind) String() string {
	switch k {
	case Flash:
		return "flash"
	case EEPROM:
		return "eeprom"
	default:
		return fmt.Sprintf("memory(%d)", int(k))
	}
}

// Tag returns the memory type byte used in AVR109 block commands.
func (k Kind) Tag() byte {
	if k == EEPROM {
		return protocol.MemEEPROM
	}
	return protocol.MemFlash
}

// ErasedByte is the value of an erased flash or EEPROM cell.
const ErasedByte = 0xFF

// Ops holds the serial programming instructions of one memory. Instructions
// the memory does not have are nil.
type Ops struct {
	Read       *Opcode
	ReadLo     *Opcode
	ReadHi     *Opcode
	Write      *Opcode
	LoadPageLo *Opcode
	LoadPageHi *Opcode
	WritePage  *Opcode
}

// Memory is the immutable description of one memory of a device. Use
// NewImage to get a buffer to transfer.
type Memory struct {
	Kind Kind

	// Size is the memory size in bytes
	Size int

	// PageSize is the write granularity in bytes
	PageSize int

	// NumPages is Size / PageSize
	NumPages int

	// Paged is true when writes go through a page buffer
	Paged bool

	MinWriteDelay time.Duration
	MaxWriteDelay time.Duration

	// Readback holds the values read while a location is still being written
	Readback [2]byte

	// Mode, Delay, BlockSize and ReadSize are the STK500v2 style
	// programming parameters for this memory
	Mode      byte
	Delay     byte
	BlockSize int
	ReadSize  int

	Ops Ops
}

// NewImage returns an empty image of this memory.
func (m *Memory) NewImage() *MemoryImage {
	return &MemoryImage{Memory: m}
}

// ImageTooLargeError is returned when an upload image does not fit in memory.
type ImageTooLargeError struct {
	Kind Kind
	Size int
	Max  int
}

func (e *ImageTooLargeError) Error() string {
	return fmt.Sprintf("%s image of %d bytes exceeds memory size %d", e.Kind, e.Size, e.Max)
}

// MemoryImage is the data transferred to or from one memory. The buffer
// never grows past Memory.Size.
type MemoryImage struct {
	Memory *Memory
	Buffer []byte
}

// Load copies data into a buffer of exactly Memory.Size bytes, filling
// whatever data does not cover with ErasedByte.
func (img *MemoryImage) Load(data []byte) error {
	if len(data) > img.Memory.Size {
		return &ImageTooLargeError{Kind: img.Memory.Kind, Size: len(data), Max: img.Memory.Size}
	}
	buf := make([]byte, img.Memory.Size)
	n := copy(buf, data)
	for i := n; i < len(buf); i++ {
		buf[i] = ErasedByte
	}
	img.Buffer = buf
	return nil
}

// BlockSize is the transfer unit: a page for flash, one byte for EEPROM.
func (img *MemoryImage) BlockSize() int {
	if img.Memory.Kind == EEPROM {
		return 1
	}
	return img.Memory.PageSize
}

// Kind returns the kind of the underlying memory.
func (img *MemoryImage) Kind() Kind {
	return img.Memory.Kind
}
