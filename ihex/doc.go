// Package ihex converts between flat memory images and Intel HEX text.
//
// # Intel HEX Format
//
// Each line is a record:
//
//	:LLAAAATT[DD...]CC
//	  LL   = data length in bytes
//	  AAAA = load offset (big-endian)
//	  TT   = record type (00 data, 01 end of file, ...)
//	  DD   = data bytes
//	  CC   = two's complement of the sum of all preceding bytes
//
// Example file:
//
//	:0400000001020304F2
//	:00000001FF
//
// # Limits
//
// Images are limited to a 16-bit address space (64 KiB), enough for the
// flash and EEPROM of an ATmega32U4. Extended address records selecting a
// non-zero segment are rejected.
//
// # Usage
//
//	img, err := ihex.ParseFile("firmware.hex")
//	err = ihex.Encode(os.Stdout, img)
package ihex
