package bootloader

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when a transfer stops because its context was
// cancelled. The Manager reports it as a cancelled batch, not a failure.
var ErrCancelled = errors.New("operation cancelled")

// ErrorKind classifies why a batch failed.
type ErrorKind int

const (
	// KindTransportOpenFailed: the link could not be opened or configured
	KindTransportOpenFailed ErrorKind = iota + 1

	// KindIdentification: the bootloader did not identify itself
	KindIdentification

	// KindUnsupportedDevice: device code listing or selection failed
	KindUnsupportedDevice

	// KindUnlock: entering programming mode failed
	KindUnlock

	// KindSignature: the signature bytes could not be read
	KindSignature

	// KindOperationFailed: a block transfer failed
	KindOperationFailed

	// KindFileAccess: a task's source or destination failed
	KindFileAccess

	// KindUnsupportedChip: the profile is not a supported chip
	KindUnsupportedChip
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransportOpenFailed:
		return "transport open failed"
	case KindIdentification:
		return "identification failed"
	case KindUnsupportedDevice:
		return "unsupported device"
	case KindUnlock:
		return "unlock failed"
	case KindSignature:
		return "signature read failed"
	case KindOperationFailed:
		return "operation failed"
	case KindFileAccess:
		return "file access failed"
	case KindUnsupportedChip:
		return "unsupported chip"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// Error is returned by Manager.Run and the task constructors.
type Error struct {
	Kind ErrorKind

	// Op names the step or task that failed
	Op string

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// ErrNoDeviceCode is returned when the bootloader lists no device codes.
var ErrNoDeviceCode = errors.New("bootloader reported no device codes")

// ErrBufferTooSmall is returned when the bootloader's block buffer cannot
// hold a flash page.
var ErrBufferTooSmall = errors.New("bootloader buffer smaller than flash page")

// StateError is returned when an operation is attempted in the wrong state.
type StateError struct {
	Operation string
	State     State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Operation, e.State)
}
