package protocol

import "encoding/binary"

// ParseBlockSupportResponse parses the reply to Check Block Support.
// The reply is 'Y' followed by the big-endian buffer size.
//
// Example:
//
//	size, err := protocol.ParseBlockSupportResponse([]byte{'Y', 0x00, 0x80})
//	// size == 128
func ParseBlockSupportResponse(data []byte) (uint16, error) {
	if len(data) != BlockSupportSize {
		return 0, &ProtocolError{
			Operation: "identify",
			Command:   CmdCheckBlockSupport,
			Got:       len(data),
			Want:      BlockSupportSize,
		}
	}
	if data[0] != RspYes {
		return 0, &ProtocolError{
			Operation: "identify",
			Command:   CmdCheckBlockSupport,
			Got:       len(data),
			Want:      BlockSupportSize,
			Reply:     data[0],
			Expected:  RspYes,
		}
	}
	return binary.BigEndian.Uint16(data[1:3]), nil
}

// ParseSignatureResponse parses the 3 byte reply to Read Signature Bytes.
// The bootloader sends the lowest signature byte first; the result is in
// datasheet order (0x1E first).
func ParseSignatureResponse(data []byte) (Signature, error) {
	var sig Signature
	if len(data) != SignatureSize {
		return sig, &ProtocolError{
			Operation: "read signature",
			Command:   CmdReadSignature,
			Got:       len(data),
			Want:      SignatureSize,
		}
	}
	sig[0], sig[1], sig[2] = data[2], data[1], data[0]
	return sig, nil
}

// ParseDeviceCodes returns the device codes from a Supported Device Codes
// reply. Parsing stops at the RspTerminate byte.
func ParseDeviceCodes(data []byte) []byte {
	codes := make([]byte, 0, len(data))
	for _, b := range data {
		if b == RspTerminate {
			break
		}
		codes = append(codes, b)
	}
	return codes
}

// ExpectByte checks that a one-byte reply matches want.
func ExpectByte(operation string, cmd byte, reply []byte, want byte) error {
	if len(reply) != 1 {
		return &ProtocolError{Operation: operation, Command: cmd, Got: len(reply), Want: 1}
	}
	if reply[0] != want {
		return &ProtocolError{
			Operation: operation,
			Command:   cmd,
			Got:       1,
			Want:      1,
			Reply:     reply[0],
			Expected:  want,
		}
	}
	return nil
}

// PrintableASCII renders a reply as text, replacing non-printable bytes with '.'.
func PrintableASCII(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7E {
			out[i] = '.'
			continue
		}
		out[i] = b
	}
	return string(out)
}
