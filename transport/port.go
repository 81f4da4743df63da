package transport

import (
	"errors"
	"io"
)

// Port is a raw serial link to a board. Backends (serial, tty, USB CDC)
// implement it.
//
// Read may block for a short backend-defined poll interval and return
// (0, nil) when nothing arrived, so callers can notice a shutdown.
type Port interface {
	io.ReadWriteCloser

	// SetBaudRate changes the line speed of an open port
	SetBaudRate(baud int) error

	// ResetInputBuffer discards data the OS or device has buffered
	ResetInputBuffer() error
}

// Opener opens a Port at the given baud rate.
type Opener func(baud int) (Port, error)

var (
	// ErrClosed is returned by operations on a connection that is not open
	ErrClosed = errors.New("transport: connection closed")

	// ErrTimeout is returned when a read does not complete in time
	ErrTimeout = errors.New("transport: read timeout")
)
