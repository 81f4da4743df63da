package protocol

import "fmt"

// Identity is what the bootloader reports about itself during identification.
type Identity struct {
	// SoftwareID is the 7 character identifier, "CATERIN" for Caterina
	SoftwareID string

	// SoftwareVersion is the 2 character version, e.g. "10"
	SoftwareVersion string

	// ProgrammerType is 'S' for a serial programmer
	ProgrammerType byte

	// BlockSize is the bootloader's block buffer size in bytes
	BlockSize uint16
}

// Signature holds the three device signature bytes.
type Signature [SignatureSize]byte

func (s Signature) String() string {
	return fmt.Sprintf("%02X %02X %02X", s[0], s[1], s[2])
}
