package ihex

import (
	"encoding/hex"
	"fmt"
)

// Record types.
const (
	TypeData             = 0x00
	TypeEOF              = 0x01
	TypeExtSegmentAddr   = 0x02
	TypeStartSegmentAddr = 0x03
	TypeExtLinearAddr    = 0x04
	TypeStartLinearAddr  = 0x05
)

// Record layout constants.
const (
	// MinimumRecordLength is the shortest valid record in hex characters,
	// excluding the leading ':' (length, address, type and checksum)
	MinimumRecordLength = 10

	// RecordHeaderSize is the size of the length, address and type fields
	RecordHeaderSize = 4

	// BytesPerRecord is the data length of each record written by Encode
	BytesPerRecord = 16

	// AddressSpace is the size of the 16-bit address space this codec covers
	AddressSpace = 0x10000
)

// Record is one decoded line of an Intel HEX file.
type Record struct {
	// Type is the record type (TypeData, TypeEOF, ...)
	Type byte

	// Address is the 16-bit load offset
	Address uint16

	// Data is the record payload
	Data []byte
}

// Checksum returns the two's complement of the sum of b, the value that
// makes a record's bytes sum to zero.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return ^sum + 1
}

// parseRecord decodes a single record line.
//
// Record format (after the ':' prefix, hex encoded):
//
//	[LEN(1)][ADDR(2)][TYPE(1)][DATA(LEN)][CHECKSUM(1)]
//
// ADDR is big-endian. The checksum covers every byte before it.
func parseRecord(line string) (*Record, error) {
	if line == "" || line[0] != ':' {
		return nil, fmt.Errorf("record must start with ':'")
	}
	line = line[1:]

	if len(line) < MinimumRecordLength {
		return nil, fmt.Errorf("record too short: got %d characters, minimum is %d", len(line), MinimumRecordLength)
	}

	raw, err := hex.DecodeString(line)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}

	dataLen := int(raw[0])
	expectedLen := RecordHeaderSize + dataLen + 1
	if len(raw) != expectedLen {
		return nil, fmt.Errorf("data length mismatch: got %d bytes, expected %d (header=%d + data=%d + checksum=1)",
			len(raw), expectedLen, RecordHeaderSize, dataLen)
	}

	checksum := raw[len(raw)-1]
	calculated := Checksum(raw[:len(raw)-1])
	if checksum != calculated {
		return nil, fmt.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X", checksum, calculated)
	}

	rec := &Record{
		Type:    raw[3],
		Address: uint16(raw[1])<<8 | uint16(raw[2]),
		Data:    make([]byte, dataLen),
	}
	copy(rec.Data, raw[RecordHeaderSize:RecordHeaderSize+dataLen])

	return rec, nil
}
