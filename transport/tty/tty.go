//go:build !windows

// Package tty provides transport.Port for POSIX terminal devices using
// github.com/pkg/term. It needs no cgo and no enumeration support, which
// makes it the simplest backend on Linux and macOS.
package tty

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pkg/term"

	"github.com/moffa90/go-avr109/transport"
)

// PollInterval bounds how long a Read blocks when no data arrives.
const PollInterval = 100 * time.Millisecond

// Port is a terminal device in raw mode.
type Port struct {
	t *term.Term
}

var _ transport.Port = (*Port)(nil)

// Open opens the named terminal in raw mode at baud.
func Open(name string, baud int) (*Port, error) {
	t, err := term.Open(name, term.Speed(baud), term.RawMode, term.ReadTimeout(PollInterval))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &Port{t: t}, nil
}

// Opener returns a transport.Opener for the named terminal.
func Opener(name string) transport.Opener {
	return func(baud int) (transport.Port, error) {
		return Open(name, baud)
	}
}

// Read returns (0, nil) when nothing arrives within PollInterval. The
// terminal reports an expired read timeout as io.EOF.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.t.Read(b)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) {
	return p.t.Write(b)
}

func (p *Port) Close() error {
	return p.t.Close()
}

func (p *Port) SetBaudRate(baud int) error {
	return p.t.SetSpeed(baud)
}

// ResetInputBuffer discards pending input and output.
func (p *Port) ResetInputBuffer() error {
	return p.t.Flush()
}
