package ihex

import (
	"bufio"
	"fmt"
	"io"
)

// EOFRecord terminates every file written by Encode.
const EOFRecord = ":00000001FF\n"

// Encode writes buf as Intel HEX: consecutive BytesPerRecord data records
// from address 0 (the last one shorter if needed), uppercase hex, one record
// per line, then the end-of-file record.
//
// Example:
//
//	var out bytes.Buffer
//	err := ihex.Encode(&out, []byte{0x01, 0x02, 0x03, 0x04})
//	// out: ":0400000001020304F2\n:00000001FF\n"
func Encode(w io.Writer, buf []byte) error {
	if len(buf) > AddressSpace {
		return fmt.Errorf("image of %d bytes exceeds 64 KiB address space", len(buf))
	}

	bw := bufio.NewWriter(w)
	rec := make([]byte, 0, RecordHeaderSize+BytesPerRecord)

	for addr := 0; addr < len(buf); addr += BytesPerRecord {
		end := addr + BytesPerRecord
		if end > len(buf) {
			end = len(buf)
		}
		data := buf[addr:end]

		rec = rec[:0]
		rec = append(rec, byte(len(data)), byte(addr>>8), byte(addr), TypeData)
		rec = append(rec, data...)

		if _, err := fmt.Fprintf(bw, ":%X%02X\n", rec, Checksum(rec)); err != nil {
			return fmt.Errorf("write record at 0x%04X: %w", addr, err)
		}
	}

	if _, err := bw.WriteString(EOFRecord); err != nil {
		return fmt.Errorf("write end-of-file record: %w", err)
	}

	return bw.Flush()
}
