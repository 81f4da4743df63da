package device

import (
	"time"

	"github.com/moffa90/go-avr109/protocol"
)

// ATmega32U4 is the Arduboy / Arduino Leonardo profile. Flash is limited to
// the 28 KiB below the 4 KiB Caterina bootloader.
var ATmega32U4 = &Profile{
	Name:            "ATmega32U4",
	Signature:       [3]byte{0x1E, 0x95, 0x87},
	BaudRate:        57600,
	ResetBaudRate:   1200,
	ResponseTimeout: protocol.DefaultResponseTimeout,

	Timing: Timing{
		Timeout:     200,
		StabDelay:   100,
		CmdExeDelay: 25,
		SynchLoops:  32,
		ByteDelay:   0,
		PollIndex:   3,
		PollValue:   0x53,
		PreDelay:    1,
		PostDelay:   1,
		PollMethod:  1,
	},

	PageL:   0xD7,
	BS2:     0xA0,
	HasJTAG: true,

	Flash: Memory{
		Kind:          Flash,
		Size:          28672,
		PageSize:      128,
		NumPages:      224,
		Paged:         true,
		MinWriteDelay: 4500 * time.Microsecond,
		MaxWriteDelay: 4500 * time.Microsecond,
		Readback:      [2]byte{0x00, 0x00},
		Mode:          0x41,
		Delay:         6,
		BlockSize:     128,
		ReadSize:      256,
		Ops: Ops{
			ReadLo: opcode(
				vals(0, 0, 1, 0, 0, 0, 0, 0),
				vals(0), addr(14, 8),
				addr(7, 0),
				output(7, 0),
			),
			ReadHi: opcode(
				vals(0, 0, 1, 0, 1, 0, 0, 0),
				vals(0), addr(14, 8),
				addr(7, 0),
				output(7, 0),
			),
			LoadPageLo: opcode(
				vals(0, 1, 0, 0, 0, 0, 0, 0),
				ignore(8),
				ignore(2), addr(5, 0),
				input(7, 0),
			),
			LoadPageHi: opcode(
				vals(0, 1, 0, 0, 1, 0, 0, 0),
				ignore(8),
				ignore(2), addr(5, 0),
				input(7, 0),
			),
			WritePage: opcode(
				vals(0, 1, 0, 0, 1, 1, 0, 0),
				addr(15, 8),
				addr(7, 6), ignore(6),
				ignore(8),
			),
		},
	},

	EEPROM: Memory{
		Kind:          EEPROM,
		Size:          1024,
		PageSize:      4,
		NumPages:      256,
		Paged:         false,
		MinWriteDelay: 9000 * time.Microsecond,
		MaxWriteDelay: 9000 * time.Microsecond,
		Readback:      [2]byte{0x00, 0x00},
		Mode:          0x41,
		Delay:         20,
		BlockSize:     4,
		ReadSize:      256,
		Ops: Ops{
			Read: opcode(
				vals(1, 0, 1, 0, 0, 0, 0, 0),
				ignore(5), addr(10, 8),
				addr(7, 0),
				output(7, 0),
			),
			Write: opcode(
				vals(1, 1, 0, 0, 0, 0, 0, 0),
				ignore(5), addr(10, 8),
				addr(7, 0),
				input(7, 0),
			),
			LoadPageLo: opcode(
				vals(1, 1, 0, 0, 0, 0, 0, 1),
				vals(0, 0, 0, 0, 0, 0, 0, 0),
				vals(0, 0, 0, 0, 0), addr(2, 0),
				input(7, 0),
			),
			WritePage: opcode(
				vals(1, 1, 0, 0, 0, 0, 1, 0),
				vals(0, 0), ignore(3), addr(10, 8),
				addr(7, 3), vals(0, 0, 0),
				ignore(8),
			),
		},
	},

	Fuses: Fuses{
		LowRead: opcode(
			vals(0, 1, 0, 1, 0, 0, 0, 0),
			vals(0, 0, 0, 0, 0, 0, 0, 0),
			ignore(8),
			output(7, 0),
		),
		LowWrite: opcode(
			vals(1, 0, 1, 0, 1, 1, 0, 0),
			vals(1, 0, 1, 0, 0, 0, 0, 0),
			ignore(8),
			input(7, 0),
		),
		HighRead: opcode(
			vals(0, 1, 0, 1, 1, 0, 0, 0),
			vals(0, 0, 0, 0, 1, 0, 0, 0),
			ignore(8),
			output(7, 0),
		),
		HighWrite: opcode(
			vals(1, 0, 1, 0, 1, 1, 0, 0),
			vals(1, 0, 1, 0, 1, 0, 0, 0),
			ignore(8),
			input(7, 0),
		),
		ExtRead: opcode(
			vals(0, 1, 0, 1, 0, 0, 0, 0),
			vals(0, 0, 0, 0, 1, 0, 0, 0),
			ignore(8),
			output(7, 0),
		),
		ExtWrite: opcode(
			vals(1, 0, 1, 0, 1, 1, 0, 0),
			vals(1, 0, 1, 0, 0, 1, 0, 0),
			ignore(8),
			ignore(4), input(3, 0),
		),
		LockRead: opcode(
			vals(0, 1, 0, 1, 1, 0, 0, 0),
			vals(0, 0, 0, 0, 0, 0, 0, 0),
			ignore(8),
			ignore(2), output(5, 0),
		),
		LockWrite: opcode(
			vals(1, 0, 1, 0, 1, 1, 0, 0),
			vals(1, 1, 1), ignore(5),
			ignore(8),
			vals(1, 1), input(5, 0),
		),
		SignatureRead: opcode(
			vals(0, 0, 1, 1, 0, 0, 0, 0),
			vals(0, 0), ignore(6),
			ignore(6), addr(1, 0),
			output(7, 0),
		),
		CalibRead: opcode(
			vals(0, 0, 1, 1, 1, 0, 0, 0),
			vals(0, 0), ignore(6),
			vals(0, 0, 0, 0, 0, 0, 0, 0),
			output(7, 0),
		),
		WriteDelay: 9000 * time.Microsecond,
	},
}
