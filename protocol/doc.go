// Package protocol implements the wire format of the AVR109 bootloader
// protocol as spoken by the Caterina bootloader on ATmega32U4 boards
// (Arduino Leonardo, Arduboy).
//
// # Protocol Overview
//
// AVR109 is a half-duplex request/reply protocol over a serial line. A
// command is one ASCII byte, optionally followed by big-endian arguments:
//
//	Set Address:  ['A'][ADDR_H][ADDR_L]                  -> 0x0D
//	Block Load:   ['B'][SIZE_H][SIZE_L][MEM][DATA...]    -> 0x0D
//	Block Read:   ['g'][SIZE_H][SIZE_L][MEM]             -> SIZE bytes
//
// Where MEM is 'F' for flash and 'E' for EEPROM. Most commands are
// acknowledged with a single carriage return (RspSuccess). There is no
// framing or checksum; a reply is recognised purely by its expected length.
//
// # Command Builders
//
// Use the Build* functions to create command frames:
//
//	frame := protocol.BuildSetAddressCmd(0)
//	frame, err := protocol.BuildBlockLoadCmd(protocol.MemFlash, page)
//	frame, err := protocol.BuildBlockReadCmd(protocol.MemEEPROM, 1)
//
// # Response Parsers
//
//	size, err := protocol.ParseBlockSupportResponse(reply)
//	sig, err := protocol.ParseSignatureResponse(reply)
//	err := protocol.ExpectByte("enter programming mode", protocol.CmdEnterProgMode, reply, protocol.RspSuccess)
//
// # Error Handling
//
// Unexpected or short replies are reported as *ProtocolError:
//
//	// err.Error() returns: "enter programming mode failed: enter programming mode replied 0x3F, expected 0x0D"
//
// # Reference
//
// Atmel AVR109: Self-programming (application note, doc1644).
package protocol
