package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/moffa90/go-avr109/bootloader"
	"github.com/moffa90/go-avr109/device"
)

func TestRunSimulated(t *testing.T) {
	dir := t.TempDir()
	game := filepath.Join(dir, "game.hex")
	if err := os.WriteFile(game, []byte(":0400000001020304F2\n:00000001FF\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	backup := filepath.Join(dir, "eeprom.bin")

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-transport", "sim",
		"-timeout", "500ms",
		"-log-level", "error",
		"-download-eeprom", backup,
		game,
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"CATERIN", "upload-flash", "download-eeprom", "completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != device.ATmega32U4.EEPROM.Size {
		t.Errorf("eeprom backup = %d bytes", len(data))
	}
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"-help"}, 0},
		{"version", []string{"-version"}, 0},
		{"bad flag", []string{"-transport", "carrier-pigeon", "a.hex"}, 2},
		{"missing file", []string{"-transport", "sim", "missing.hex"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("exit code = %d, want %d (stderr: %s)", got, tt.want, stderr.String())
			}
		})
	}
}

func TestProgressBar(t *testing.T) {
	var out bytes.Buffer
	pb := NewProgressBar(&out, 10)

	if got := pb.Render(50); got != "[█████░░░░░]  50%" {
		t.Errorf("Render(50) = %q", got)
	}
	if got := pb.Render(150); !strings.HasPrefix(got, "[██████████]") {
		t.Errorf("Render(150) = %q", got)
	}

	pb.Update(bootloader.Progress{Phase: bootloader.PhaseConnecting})
	if out.Len() != 0 {
		t.Error("non-transfer phases should not be drawn")
	}

	pb.Update(bootloader.Progress{
		Phase:       bootloader.PhaseWriting,
		Memory:      device.Flash,
		Percentage:  25,
		Address:     32,
		Total:       128,
		ElapsedTime: time.Second,
	})
	pb.Update(bootloader.Progress{Phase: bootloader.PhaseReading, Memory: device.EEPROM, Percentage: 100, Address: 4, Total: 4})
	pb.Finish()

	text := out.String()
	if !strings.Contains(text, "32/128 bytes") || !strings.Contains(text, "ETA: 3s") {
		t.Errorf("progress output = %q", text)
	}
	if strings.Count(text, "\n") != 2 {
		t.Errorf("expected one line per transfer, got %q", text)
	}
}

type countingCloser struct {
	bytes.Buffer
	closed int
}

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestCloseTasksOnce(t *testing.T) {
	src := &countingCloser{}
	dst := &countingCloser{}
	up, err := bootloader.NewUploadTask(bootloader.UploadFlash, src, false)
	if err != nil {
		t.Fatal(err)
	}
	down, err := bootloader.NewDownloadTask(bootloader.DownloadEEPROM, dst, false)
	if err != nil {
		t.Fatal(err)
	}

	tasks := []*bootloader.Task{up, down}
	closeTasks(tasks)
	closeTasks(tasks)
	if src.closed != 1 || dst.closed != 1 {
		t.Errorf("closed source %d, destination %d times; want once each", src.closed, dst.closed)
	}
}
