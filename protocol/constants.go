package protocol

import "time"

// Command codes of the AVR109 bootloader protocol (Atmel application note
// AVR109, as implemented by the Caterina bootloader). Every command is a
// single ASCII byte followed by its big-endian arguments.
const (
	// CmdSetAddress sets the word/byte address for the next block command ('A').
	CmdSetAddress = 0x41

	// CmdStartBlockLoad writes a block of flash or EEPROM ('B').
	CmdStartBlockLoad = 0x42

	// CmdExitBootloader exits the bootloader and starts the application ('E').
	CmdExitBootloader = 0x45

	// CmdSetExtAddress sets a 24-bit address for parts above 64 KiB ('H').
	CmdSetExtAddress = 0x48

	// CmdLeaveProgMode leaves programming mode ('L').
	CmdLeaveProgMode = 0x4C

	// CmdEnterProgMode enters programming mode ('P').
	CmdEnterProgMode = 0x50

	// CmdSoftwareID returns the 7 character software identifier ('S').
	CmdSoftwareID = 0x53

	// CmdSelectDevice selects the device type by code ('T').
	CmdSelectDevice = 0x54

	// CmdSoftwareVersion returns the 2 character software version ('V').
	CmdSoftwareVersion = 0x56

	// CmdAutoIncrement asks whether addresses auto increment ('a').
	CmdAutoIncrement = 0x61

	// CmdCheckBlockSupport returns block support and the buffer size ('b').
	CmdCheckBlockSupport = 0x62

	// CmdStartBlockRead reads a block of flash or EEPROM ('g').
	CmdStartBlockRead = 0x67

	// CmdProgrammerType returns the programmer type ('p').
	CmdProgrammerType = 0x70

	// CmdReadSignature returns the 3 signature bytes ('s').
	CmdReadSignature = 0x73

	// CmdSupportedDeviceCodes lists device codes terminated by 0x00 ('t').
	CmdSupportedDeviceCodes = 0x74
)

// Response bytes.
const (
	// RspTerminate ends the device code list.
	RspTerminate = 0x00

	// RspSuccess acknowledges a command (carriage return).
	RspSuccess = 0x0D

	// RspYes is the affirmative answer ('Y').
	RspYes = 0x59
)

// Memory type tags used in block commands.
const (
	MemFlash  = 'F'
	MemEEPROM = 'E'
)

// Reply sizes.
const (
	SoftwareIDSize      = 7
	SoftwareVersionSize = 2
	ProgrammerTypeSize  = 1
	BlockSupportSize    = 3
	SignatureSize       = 3
)

// MaxBlockSize is the largest block length expressible in a block command.
const MaxBlockSize = 0xFFFF

// DefaultResponseTimeout is how long to wait for any single reply.
const DefaultResponseTimeout = 5 * time.Second
