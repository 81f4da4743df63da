package transport

import (
	"context"
	"fmt"
	"time"
)

// ResetBaudRate is the line speed that makes Caterina-based boards reboot
// into their bootloader when the port is opened and closed.
const ResetBaudRate = 1200

// Touch opens the port at baud, closes it again and waits settle for the
// board to drop off the bus. Use ResetBaudRate to enter the bootloader.
func Touch(ctx context.Context, open Opener, baud int, settle time.Duration) error {
	port, err := open(baud)
	if err != nil {
		return fmt.Errorf("touch at %d baud: %w", baud, err)
	}
	if err := port.Close(); err != nil {
		return fmt.Errorf("touch at %d baud: close: %w", baud, err)
	}

	select {
	case <-time.After(settle):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
