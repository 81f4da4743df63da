//go:build !windows

package main

import (
	"github.com/moffa90/go-avr109/transport"
	"github.com/moffa90/go-avr109/transport/tty"
)

func ttyOpener(name string) transport.Opener {
	return tty.Opener(name)
}
