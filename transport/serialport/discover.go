package serialport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
)

// Arduino's USB vendor ID, used by the Leonardo and the Arduboy.
const ArduinoVID = "2341"

// DefaultWaitTimeout is how long to wait for a board to come back as a
// bootloader after a reset touch.
const DefaultWaitTimeout = 10 * time.Second

// scanInterval is how often the port list is polled while waiting.
const scanInterval = 250 * time.Millisecond

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// PortInfo describes a USB serial port.
type PortInfo struct {
	Name         string
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// List returns the USB serial ports whose vendor ID is vid (hex, case
// insensitive). An empty vid matches every USB port.
func List(vid string) ([]PortInfo, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	var out []PortInfo
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if vid != "" && !strings.EqualFold(p.VID, vid) {
			continue
		}
		out = append(out, PortInfo{
			Name:         p.Name,
			VID:          strings.ToUpper(p.VID),
			PID:          strings.ToUpper(p.PID),
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return out, nil
}

// WaitForBootloader polls for the board with vendor ID vid after a reset
// touch and returns the bootloader's port name. before is the port list
// taken ahead of the touch. A board leaving its sketch for the bootloader
// disconnects and re-enumerates, often under a new name and always with a
// different product ID. A port counts as the bootloader when:
//
//   - its name was not in before
//   - it vanished and came back
//   - it kept its name but now reports a different product ID
//
// If none of those happens before the timeout and one of the original ports
// is still present, that port is returned: the board either re-enumerated
// before the first poll or was already running the bootloader.
func WaitForBootloader(ctx context.Context, vid string, before []PortInfo, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	known := make(map[string]string, len(before))
	for _, p := range before {
		known[p.Name] = strings.ToUpper(p.PID)
	}
	gone := make(map[string]bool)

	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		ports, err := List(vid)
		if err != nil {
			return "", err
		}

		fallback := ""
		present := make(map[string]bool, len(ports))
		for _, p := range ports {
			present[p.Name] = true
			pid, ok := known[p.Name]
			if !ok || gone[p.Name] || pid != p.PID {
				return p.Name, nil
			}
			if fallback == "" {
				fallback = p.Name
			}
		}
		for name := range known {
			if !present[name] {
				gone[name] = true
			}
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() == nil && fallback != "" {
				return fallback, nil
			}
			return "", fmt.Errorf("no bootloader port with VID %s appeared: %w", vid, waitCtx.Err())
		case <-ticker.C:
		}
	}
}
