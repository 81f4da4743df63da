package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/moffa90/go-avr109/bootloader"
	"github.com/moffa90/go-avr109/device"
)

// ProgressBar renders transfer progress on a single terminal line.
type ProgressBar struct {
	w     io.Writer
	width int

	phase  string
	memory device.Kind
	active bool
}

func NewProgressBar(w io.Writer, width int) *ProgressBar {
	return &ProgressBar{w: w, width: width}
}

// Render returns the bar for percentage.
func (pb *ProgressBar) Render(percentage int) string {
	filled := pb.width * percentage / 100
	if filled > pb.width {
		filled = pb.width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)
	return fmt.Sprintf("[%s] %3d%%", bar, percentage)
}

// Update is a bootloader.ProgressCallback.
func (pb *ProgressBar) Update(p bootloader.Progress) {
	if p.Phase != bootloader.PhaseWriting && p.Phase != bootloader.PhaseReading {
		return
	}

	if p.Phase != pb.phase || p.Memory != pb.memory || !pb.active {
		if pb.active {
			fmt.Fprintln(pb.w)
		}
		pb.phase, pb.memory, pb.active = p.Phase, p.Memory, true
	}

	var eta time.Duration
	if p.Percentage > 0 {
		eta = p.ElapsedTime*100/time.Duration(p.Percentage) - p.ElapsedTime
	}

	fmt.Fprintf(pb.w, "\r\033[K%-7s %-6s %s %6d/%d bytes | Elapsed: %s | ETA: %s",
		p.Phase,
		p.Memory,
		pb.Render(p.Percentage),
		p.Address,
		p.Total,
		p.ElapsedTime.Round(100*time.Millisecond),
		eta.Round(100*time.Millisecond),
	)
}

// Finish ends the current bar line.
func (pb *ProgressBar) Finish() {
	if pb.active {
		fmt.Fprintln(pb.w)
		pb.active = false
	}
}
