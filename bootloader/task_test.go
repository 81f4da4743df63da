package bootloader

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/moffa90/go-avr109/device"
)

const smallHex = ":0400000001020304F2\n:00000001FF\n"

type closeRecorder struct {
	io.Reader
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

type writeRecorder struct {
	bytes.Buffer
	closed int
}

func (w *writeRecorder) Close() error {
	w.closed++
	return nil
}

func TestOperation(t *testing.T) {
	tests := []struct {
		op     Operation
		name   string
		upload bool
		memory device.Kind
	}{
		{UploadFlash, "upload-flash", true, device.Flash},
		{UploadEEPROM, "upload-eeprom", true, device.EEPROM},
		{DownloadFlash, "download-flash", false, device.Flash},
		{DownloadEEPROM, "download-eeprom", false, device.EEPROM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.String(); got != tt.name {
				t.Errorf("String() = %q", got)
			}
			if tt.op.IsUpload() != tt.upload {
				t.Errorf("IsUpload() = %v", tt.op.IsUpload())
			}
			if tt.op.Memory() != tt.memory {
				t.Errorf("Memory() = %v", tt.op.Memory())
			}
			parsed, err := ParseOperation(tt.name)
			if err != nil || parsed != tt.op {
				t.Errorf("ParseOperation(%q) = %v, %v", tt.name, parsed, err)
			}
		})
	}

	if _, err := ParseOperation("erase"); err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestTaskConstructors(t *testing.T) {
	src := &closeRecorder{Reader: bytes.NewReader(nil)}
	dst := &writeRecorder{}

	tests := []struct {
		name string
		fn   func() (*Task, error)
	}{
		{"upload with download operation", func() (*Task, error) { return NewUploadTask(DownloadFlash, src, false) }},
		{"upload without source", func() (*Task, error) { return NewUploadTask(UploadFlash, nil, false) }},
		{"download with upload operation", func() (*Task, error) { return NewDownloadTask(UploadEEPROM, dst, false) }},
		{"download without destination", func() (*Task, error) { return NewDownloadTask(DownloadFlash, nil, false) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := tt.fn()
			if task != nil {
				t.Error("expected nil task")
			}
			if kind, ok := KindOf(err); !ok || kind != KindFileAccess {
				t.Errorf("error = %v, want file access", err)
			}
		})
	}

	task, err := NewUploadTask(UploadFlash, src, true)
	if err != nil {
		t.Fatalf("NewUploadTask: %v", err)
	}
	if !task.Hex || task.Source != src {
		t.Errorf("task = %+v", task)
	}
}

func TestTaskCloseOnce(t *testing.T) {
	src := &closeRecorder{Reader: bytes.NewReader(nil)}
	task, _ := NewUploadTask(UploadEEPROM, src, false)
	_ = task.Close()
	_ = task.Close()
	if src.closed != 1 {
		t.Errorf("source closed %d times, want 1", src.closed)
	}
}

func TestTaskLoadAndStore(t *testing.T) {
	src := &closeRecorder{Reader: bytes.NewBufferString(smallHex)}
	up, _ := NewUploadTask(UploadFlash, src, true)
	data, err := up.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3, 4}) {
		t.Errorf("data = % X", data)
	}

	dst := &writeRecorder{}
	down, _ := NewDownloadTask(DownloadFlash, dst, true)
	if err := down.store([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if dst.String() != smallHex {
		t.Errorf("stored %q, want %q", dst.String(), smallHex)
	}

	raw := &writeRecorder{}
	down, _ = NewDownloadTask(DownloadEEPROM, raw, false)
	_ = down.store([]byte{9, 8})
	if !bytes.Equal(raw.Bytes(), []byte{9, 8}) {
		t.Errorf("raw store = % X", raw.Bytes())
	}
}

func TestOpenTask(t *testing.T) {
	dir := t.TempDir()

	hexPath := filepath.Join(dir, "app.hex")
	if err := os.WriteFile(hexPath, []byte(smallHex), 0o644); err != nil {
		t.Fatal(err)
	}
	binPath := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(binPath, []byte{1, 2}, 0o644); err != nil {
		t.Fatal(err)
	}

	var pkg bytes.Buffer
	zw := zip.NewWriter(&pkg)
	w, _ := zw.Create("info.json")
	_, _ = w.Write([]byte(`{"binaries":[{"filename":"game.hex"}]}`))
	w, _ = zw.Create("game.hex")
	_, _ = w.Write([]byte(smallHex))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	pkgPath := filepath.Join(dir, "game.ARDUBOY")
	if err := os.WriteFile(pkgPath, pkg.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		op      Operation
		path    string
		wantHex bool
		wantErr bool
	}{
		{name: "hex upload", op: UploadFlash, path: hexPath, wantHex: true},
		{name: "raw upload", op: UploadEEPROM, path: binPath},
		{name: "package upload", op: UploadFlash, path: pkgPath, wantHex: true},
		{name: "hex download", op: DownloadFlash, path: filepath.Join(dir, "out.hex"), wantHex: true},
		{name: "raw download", op: DownloadEEPROM, path: filepath.Join(dir, "out.eep")},
		{name: "missing source", op: UploadFlash, path: filepath.Join(dir, "missing.hex"), wantErr: true},
		{name: "package download", op: DownloadFlash, path: filepath.Join(dir, "out.arduboy"), wantErr: true},
		{name: "download into missing directory", op: DownloadFlash, path: filepath.Join(dir, "nope", "out.bin"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := OpenTask(tt.op, tt.path)
			if tt.wantErr {
				if kind, ok := KindOf(err); !ok || kind != KindFileAccess {
					t.Fatalf("error = %v, want file access", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenTask: %v", err)
			}
			defer func() { _ = task.Close() }()

			if task.Hex != tt.wantHex {
				t.Errorf("Hex = %v, want %v", task.Hex, tt.wantHex)
			}
			if task.Name != tt.path {
				t.Errorf("Name = %q", task.Name)
			}
			if tt.op.IsUpload() {
				data, err := task.load()
				if err != nil || len(data) == 0 {
					t.Errorf("load = % X, %v", data, err)
				}
			}
		})
	}
}

func TestTaskString(t *testing.T) {
	task := &Task{Operation: DownloadEEPROM}
	if got := task.String(); got != "download-eeprom" {
		t.Errorf("String() = %q", got)
	}
	task.Name = "dump.bin"
	if got := task.String(); got != "download-eeprom dump.bin" {
		t.Errorf("String() = %q", got)
	}
}
