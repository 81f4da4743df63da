package bootloader

import (
	"time"

	"github.com/moffa90/go-avr109/device"
)

// Progress phases.
const (
	PhaseConnecting  = "connecting"
	PhaseIdentifying = "identifying"
	PhaseWriting     = "writing"
	PhaseReading     = "reading"
	PhaseComplete    = "complete"
)

// Progress contains information about a transfer in progress.
// Passed to ProgressCallback during programming operations.
type Progress struct {
	// Phase describes the current operation phase:
	//   "connecting"  - Opening the link
	//   "identifying" - Identifying and unlocking the bootloader
	//   "writing"     - Writing blocks to the device
	//   "reading"     - Reading blocks from the device
	//   "complete"    - The batch finished
	Phase string

	// Memory is the memory being transferred during writing and reading
	Memory device.Kind

	// Percentage is the completion of the current transfer, 0 to 100
	Percentage int

	// Address is the next address to transfer
	Address int

	// Total is the number of bytes in the current transfer
	Total int

	// ElapsedTime is the time elapsed since the transfer started
	ElapsedTime time.Duration
}

// ProgressCallback is called after every block to report progress.
// Implementations should return quickly to avoid stalling the transfer.
//
// Example:
//
//	prog := bootloader.New(conn,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %s %d%% (%d/%d)\n",
//	            p.Phase, p.Memory, p.Percentage, p.Address, p.Total)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger receives diagnostic messages from the programmer and the manager.
// Key/value pairs alternate: a string key followed by its value.
// A nil Logger silences the package; logging.Logger satisfies it.
//
// Example:
//
//	log, _ := logging.New(os.Stderr, "debug")
//	mgr := bootloader.NewManager(conn, bootloader.WithLogger(log))
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
