package protocol

import (
	"errors"
	"fmt"
)

// ProtocolError describes a reply that did not match what the bootloader
// should have sent: a wrong acknowledgement byte or a short read.
type ProtocolError struct {
	// Operation is the step that failed (e.g. "enter programming mode")
	Operation string

	// Command is the AVR109 command byte that was sent
	Command byte

	// Got is the number of reply bytes received
	Got int

	// Want is the number of reply bytes expected
	Want int

	// Reply is the unexpected reply byte, valid only when Got == Want
	Reply byte

	// Expected is the reply byte that was required, valid only when Got == Want
	Expected byte
}

func (e *ProtocolError) Error() string {
	if e.Got < e.Want {
		return fmt.Sprintf("%s failed: short reply to %s (got %d of %d bytes)",
			e.Operation, CommandName(e.Command), e.Got, e.Want)
	}
	return fmt.Sprintf("%s failed: %s replied 0x%02X, expected 0x%02X",
		e.Operation, CommandName(e.Command), e.Reply, e.Expected)
}

// IsProtocolError returns true if err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
