package ihex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErasedByte fills gaps between records, matching erased flash.
const ErasedByte = 0xFF

// ParseFile decodes an Intel HEX file from the given path.
//
// Example:
//
//	img, err := ihex.ParseFile("game.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d bytes\n", len(img))
func ParseFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// Decode reads Intel HEX text and returns a contiguous memory image starting
// at address 0. The image is as long as the highest byte written; addresses
// no record covers read as ErasedByte.
//
// Data (00) and end-of-file (01) records are handled. Start address records
// (03, 05) are ignored. Extended address records (02, 04) are accepted only
// when they select offset zero, because the image is limited to a 16-bit
// address space. Anything after the end-of-file record is ignored.
//
// Example:
//
//	img, err := ihex.Decode(strings.NewReader(":0400000001020304F2\n:00000001FF\n"))
//	// img == []byte{0x01, 0x02, 0x03, 0x04}
func Decode(r io.Reader) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024)

	buf := make([]byte, 0, AddressSpace)
	lineNum := 0
	sawEOF := false

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines
		if line == "" {
			continue
		}

		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		switch rec.Type {
		case TypeData:
			end := int(rec.Address) + len(rec.Data)
			if end > AddressSpace {
				return nil, fmt.Errorf("line %d: record at 0x%04X with %d bytes exceeds 64 KiB address space",
					lineNum, rec.Address, len(rec.Data))
			}
			for len(buf) < end {
				buf = append(buf, ErasedByte)
			}
			copy(buf[rec.Address:], rec.Data)

		case TypeEOF:
			sawEOF = true

		case TypeExtSegmentAddr, TypeExtLinearAddr:
			if len(rec.Data) != 2 {
				return nil, fmt.Errorf("line %d: extended address record must carry 2 bytes, got %d", lineNum, len(rec.Data))
			}
			if rec.Data[0] != 0 || rec.Data[1] != 0 {
				return nil, fmt.Errorf("line %d: extended address 0x%02X%02X not supported", lineNum, rec.Data[0], rec.Data[1])
			}

		case TypeStartSegmentAddr, TypeStartLinearAddr:
			// no meaning for a memory image

		default:
			return nil, fmt.Errorf("line %d: unknown record type 0x%02X", lineNum, rec.Type)
		}

		if sawEOF {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hex: %w", err)
	}

	if !sawEOF {
		return nil, fmt.Errorf("missing end-of-file record")
	}

	return buf, nil
}
