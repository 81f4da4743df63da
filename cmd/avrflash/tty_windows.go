//go:build windows

package main

import (
	"errors"

	"github.com/moffa90/go-avr109/transport"
)

func ttyOpener(string) transport.Opener {
	return func(int) (transport.Port, error) {
		return nil, errors.New("the tty transport is not available on Windows; use -transport serial")
	}
}
