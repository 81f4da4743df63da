package protocol

import (
	"encoding/binary"
	"fmt"
)

// BuildSetAddressCmd constructs a Set Address command.
//
// Frame structure:
//
//	['A'][ADDR_H][ADDR_L]
func BuildSetAddressCmd(addr uint16) []byte {
	frame := make([]byte, 3)
	frame[0] = CmdSetAddress
	binary.BigEndian.PutUint16(frame[1:], addr)
	return frame
}

// BuildSelectDeviceCmd constructs a Select Device Type command.
//
// Frame structure:
//
//	['T'][CODE]
func BuildSelectDeviceCmd(code byte) []byte {
	return []byte{CmdSelectDevice, code}
}

// BuildBlockLoadCmd constructs a Start Block Load command carrying data for
// the memory identified by memType (MemFlash or MemEEPROM).
//
// Frame structure:
//
//	['B'][SIZE_H][SIZE_L][MEM][DATA...]
//
// Example:
//
//	frame, err := protocol.BuildBlockLoadCmd(protocol.MemFlash, page)
func BuildBlockLoadCmd(memType byte, data []byte) ([]byte, error) {
	if err := checkMemType(memType); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("block data cannot be empty")
	}
	if len(data) > MaxBlockSize {
		return nil, fmt.Errorf("block of %d bytes exceeds maximum %d", len(data), MaxBlockSize)
	}

	frame := make([]byte, 4, 4+len(data))
	frame[0] = CmdStartBlockLoad
	binary.BigEndian.PutUint16(frame[1:3], uint16(len(data)))
	frame[3] = memType
	return append(frame, data...), nil
}

// BuildBlockReadCmd constructs a Start Block Read command for size bytes.
//
// Frame structure:
//
//	['g'][SIZE_H][SIZE_L][MEM]
func BuildBlockReadCmd(memType byte, size int) ([]byte, error) {
	if err := checkMemType(memType); err != nil {
		return nil, err
	}
	if size <= 0 || size > MaxBlockSize {
		return nil, fmt.Errorf("invalid block size %d", size)
	}

	frame := make([]byte, 4)
	frame[0] = CmdStartBlockRead
	binary.BigEndian.PutUint16(frame[1:3], uint16(size))
	frame[3] = memType
	return frame, nil
}

func checkMemType(memType byte) error {
	switch memType {
	case MemFlash, MemEEPROM:
		return nil
	default:
		return fmt.Errorf("unknown memory type 0x%02X", memType)
	}
}

// CommandName returns a short human-readable name for an AVR109 command byte.
func CommandName(cmd byte) string {
	switch cmd {
	case CmdSetAddress:
		return "set address"
	case CmdStartBlockLoad:
		return "block load"
	case CmdExitBootloader:
		return "exit bootloader"
	case CmdSetExtAddress:
		return "set extended address"
	case CmdLeaveProgMode:
		return "leave programming mode"
	case CmdEnterProgMode:
		return "enter programming mode"
	case CmdSoftwareID:
		return "software identifier"
	case CmdSelectDevice:
		return "select device"
	case CmdSoftwareVersion:
		return "software version"
	case CmdAutoIncrement:
		return "auto increment"
	case CmdCheckBlockSupport:
		return "block support"
	case CmdStartBlockRead:
		return "block read"
	case CmdProgrammerType:
		return "programmer type"
	case CmdReadSignature:
		return "read signature"
	case CmdSupportedDeviceCodes:
		return "supported device codes"
	default:
		return fmt.Sprintf("command 0x%02X", cmd)
	}
}
