package bootloader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/moffa90/go-avr109/arduboy"
	"github.com/moffa90/go-avr109/device"
	"github.com/moffa90/go-avr109/ihex"
)

// Operation is what a Task does.
type Operation int

const (
	UploadFlash Operation = iota
	UploadEEPROM
	DownloadFlash
	DownloadEEPROM
)

func (o Operation) String() string {
	switch o {
	case UploadFlash:
		return "upload-flash"
	case UploadEEPROM:
		return "upload-eeprom"
	case DownloadFlash:
		return "download-flash"
	case DownloadEEPROM:
		return "download-eeprom"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// ParseOperation parses the names produced by Operation.String.
func ParseOperation(s string) (Operation, error) {
	for _, op := range []Operation{UploadFlash, UploadEEPROM, DownloadFlash, DownloadEEPROM} {
		if strings.EqualFold(s, op.String()) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// IsUpload reports whether the operation writes to the device.
func (o Operation) IsUpload() bool {
	return o == UploadFlash || o == UploadEEPROM
}

// Memory returns the memory the operation targets.
func (o Operation) Memory() device.Kind {
	if o == UploadEEPROM || o == DownloadEEPROM {
		return device.EEPROM
	}
	return device.Flash
}

// Task is one unit of work in a batch: an upload reads its Source, a
// download writes its Destination. The Manager closes the stream when the
// batch ends, whether or not the task ran.
type Task struct {
	Operation   Operation
	Source      io.ReadCloser
	Destination io.WriteCloser

	// Hex selects Intel HEX instead of raw binary for the stream
	Hex bool

	// Name identifies the task in logs, usually the file path
	Name string

	closed bool
}

// NewUploadTask returns a task that writes src to the device.
func NewUploadTask(op Operation, src io.ReadCloser, hex bool) (*Task, error) {
	if !op.IsUpload() {
		return nil, &Error{Kind: KindFileAccess, Op: op.String(), Err: fmt.Errorf("not an upload operation")}
	}
	if src == nil {
		return nil, &Error{Kind: KindFileAccess, Op: op.String(), Err: fmt.Errorf("upload needs a source")}
	}
	return &Task{Operation: op, Source: src, Hex: hex}, nil
}

// NewDownloadTask returns a task that reads the device into dst.
func NewDownloadTask(op Operation, dst io.WriteCloser, hex bool) (*Task, error) {
	if op.IsUpload() {
		return nil, &Error{Kind: KindFileAccess, Op: op.String(), Err: fmt.Errorf("not a download operation")}
	}
	if dst == nil {
		return nil, &Error{Kind: KindFileAccess, Op: op.String(), Err: fmt.Errorf("download needs a destination")}
	}
	return &Task{Operation: op, Destination: dst, Hex: hex}, nil
}

// OpenTask builds a task for a file, choosing the format from its
// extension: ".hex" is Intel HEX, ".arduboy" is a packaged game whose
// embedded hex is uploaded, anything else is raw binary. Download
// destinations are created or truncated.
//
// Example:
//
//	task, err := bootloader.OpenTask(bootloader.UploadFlash, "game.arduboy")
func OpenTask(op Operation, path string) (*Task, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if op.IsUpload() {
		if ext == ".arduboy" {
			hex, err := arduboy.ExtractHex(path)
			if err != nil {
				return nil, &Error{Kind: KindFileAccess, Op: op.String(), Err: err}
			}
			task, err := NewUploadTask(op, io.NopCloser(bytes.NewReader(hex)), true)
			if err != nil {
				return nil, err
			}
			task.Name = path
			return task, nil
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, &Error{Kind: KindFileAccess, Op: op.String(), Err: err}
		}
		task, err := NewUploadTask(op, f, ext == ".hex")
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		task.Name = path
		return task, nil
	}

	if ext == ".arduboy" {
		return nil, &Error{Kind: KindFileAccess, Op: op.String(), Err: fmt.Errorf("cannot download to a .arduboy package")}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &Error{Kind: KindFileAccess, Op: op.String(), Err: err}
	}
	task, err := NewDownloadTask(op, f, ext == ".hex")
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	task.Name = path
	return task, nil
}

// load reads the upload image from Source.
func (t *Task) load() ([]byte, error) {
	if t.Hex {
		return ihex.Decode(t.Source)
	}
	return io.ReadAll(t.Source)
}

// store writes a downloaded image to Destination.
func (t *Task) store(buf []byte) error {
	if t.Hex {
		return ihex.Encode(t.Destination, buf)
	}
	_, err := t.Destination.Write(buf)
	return err
}

// Close closes the task's stream. Calls after the first do nothing, so a
// task that never reaches Manager.Run can be released by its owner and
// still be passed to Run safely.
func (t *Task) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.Source != nil {
		return t.Source.Close()
	}
	if t.Destination != nil {
		return t.Destination.Close()
	}
	return nil
}

func (t *Task) String() string {
	if t.Name != "" {
		return fmt.Sprintf("%s %s", t.Operation, t.Name)
	}
	return t.Operation.String()
}
