package ihex

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcinbor85/gohex"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
		errMsg  string
	}{
		{
			name:  "single record",
			input: ":0400000001020304F2\n:00000001FF\n",
			want:  []byte{0x01, 0x02, 0x03, 0x04},
		},
		{
			name:  "crlf and blank lines",
			input: ":0400000001020304F2\r\n\r\n:00000001FF\r\n",
			want:  []byte{0x01, 0x02, 0x03, 0x04},
		},
		{
			name:  "gap filled with erased bytes",
			input: ":0100000011EE\n:0100030022DA\n:00000001FF\n",
			want:  []byte{0x11, 0xFF, 0xFF, 0x22},
		},
		{
			name:  "lowercase hex",
			input: ":02000000abcd86\n:00000001ff\n",
			want:  []byte{0xAB, 0xCD},
		},
		{
			name:  "start address record ignored",
			input: ":0400000300000000F9\n:0100000011EE\n:00000001FF\n",
			want:  []byte{0x11},
		},
		{
			name:  "zero extended linear address accepted",
			input: ":020000040000FA\n:0100000011EE\n:00000001FF\n",
			want:  []byte{0x11},
		},
		{
			name:  "data after eof ignored",
			input: ":0100000011EE\n:00000001FF\n:0100010022DC\n",
			want:  []byte{0x11},
		},
		{
			name:  "empty image",
			input: ":00000001FF\n",
			want:  []byte{},
		},
		{
			name:    "bad checksum",
			input:   ":0400000001020304F4\n:00000001FF\n",
			wantErr: true,
			errMsg:  "checksum mismatch: got 0xF4, expected 0xF2",
		},
		{
			name:    "missing colon",
			input:   "0400000001020304F2\n",
			wantErr: true,
			errMsg:  "must start with ':'",
		},
		{
			name:    "length mismatch",
			input:   ":0500000001020304F2\n",
			wantErr: true,
			errMsg:  "data length mismatch",
		},
		{
			name:    "missing eof",
			input:   ":0400000001020304F2\n",
			wantErr: true,
			errMsg:  "missing end-of-file",
		},
		{
			name:    "non-zero extended address",
			input:   ":020000040001F9\n:00000001FF\n",
			wantErr: true,
			errMsg:  "extended address 0x0001 not supported",
		},
		{
			name:    "too short",
			input:   ":0000\n",
			wantErr: true,
			errMsg:  "record too short",
		},
		{
			name:    "invalid hex",
			input:   ":0400000001020304ZZ\n",
			wantErr: true,
			errMsg:  "invalid hex data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("image = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestDecodeRejectsOverflow(t *testing.T) {
	// 2 bytes at 0xFFFF run past the 16-bit address space
	rec := []byte{0x02, 0xFF, 0xFF, 0x00, 0x01, 0x02}
	line := ":" + strings.ToUpper(hexString(rec)) + hexString([]byte{Checksum(rec)}) + "\n:00000001FF\n"

	_, err := Decode(strings.NewReader(line))
	if err == nil || !strings.Contains(err.Error(), "exceeds 64 KiB") {
		t.Fatalf("error = %v, want address space error", err)
	}
}

func TestEncode(t *testing.T) {
	var out bytes.Buffer
	if err := Encode(&out, []byte{0x01, 0x02, 0x03, 0x04}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ":0400000001020304F2\n:00000001FF\n"
	if out.String() != want {
		t.Errorf("Encode output = %q, want %q", out.String(), want)
	}
}

func TestEncodeEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := Encode(&out, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != EOFRecord {
		t.Errorf("Encode(nil) = %q, want only the EOF record", out.String())
	}
}

func TestEncodeRecordCount(t *testing.T) {
	for _, n := range []int{1, 15, 16, 17, 32, 100, 1024, 28672} {
		buf := bytes.Repeat([]byte{0xA5}, n)
		var out bytes.Buffer
		if err := Encode(&out, buf); err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}

		lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
		wantData := (n + BytesPerRecord - 1) / BytesPerRecord
		if len(lines) != wantData+1 {
			t.Errorf("n=%d: %d lines, want %d data records + EOF", n, len(lines), wantData)
		}
		for i, line := range lines {
			if line != strings.ToUpper(line) {
				t.Errorf("n=%d: line %d is not uppercase: %q", n, i, line)
			}
		}
	}
}

func TestEncodeTooLarge(t *testing.T) {
	err := Encode(&bytes.Buffer{}, make([]byte, AddressSpace+1))
	if err == nil {
		t.Fatal("expected error for image above 64 KiB")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodeWriteError(t *testing.T) {
	// more than bufio's default buffer so the failure surfaces mid-stream
	err := Encode(failingWriter{}, make([]byte, 8192))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("error = %v, want disk full", err)
	}
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{1, 16, 17, 1024, 28672, AddressSpace}
	for _, n := range sizes {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(i*7 + i>>8)
		}

		var out bytes.Buffer
		if err := Encode(&out, buf); err != nil {
			t.Fatalf("n=%d: encode: %v", n, err)
		}
		got, err := Decode(&out)
		if err != nil {
			t.Fatalf("n=%d: decode: %v", n, err)
		}
		if !bytes.Equal(got, buf) {
			t.Errorf("n=%d: round trip mismatch", n)
		}
	}
}

// gohex is an independent Intel HEX implementation; it must read Encode's
// output back to the same bytes.
func TestEncodeMatchesGohex(t *testing.T) {
	buf := make([]byte, 1000)
	for i := range buf {
		buf[i] = byte(255 - i)
	}

	var out bytes.Buffer
	if err := Encode(&out, buf); err != nil {
		t.Fatalf("encode: %v", err)
	}

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(bytes.NewReader(out.Bytes())); err != nil {
		t.Fatalf("gohex rejected output: %v", err)
	}
	segments := mem.GetDataSegments()
	if len(segments) != 1 {
		t.Fatalf("gohex found %d segments, want 1", len(segments))
	}
	if segments[0].Address != 0 {
		t.Errorf("segment address = 0x%X, want 0", segments[0].Address)
	}
	if !bytes.Equal(segments[0].Data, buf) {
		t.Error("gohex data differs from input")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.hex")
	if err := os.WriteFile(path, []byte(":0400000001020304F2\n:00000001FF\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("image = % X", got)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.hex")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		in   []byte
		want byte
	}{
		{[]byte{0x04, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04}, 0xF2},
		{[]byte{0x00, 0x00, 0x00, 0x01}, 0xFF},
		{nil, 0x00},
	}
	for _, tt := range tests {
		if got := Checksum(tt.in); got != tt.want {
			t.Errorf("Checksum(% X) = 0x%02X, want 0x%02X", tt.in, got, tt.want)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	var out bytes.Buffer
	_ = Encode(&out, make([]byte, 28672))
	data := out.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(bytes.NewReader(data))
	}
}

func hexString(b []byte) string {
	const digits = "0123456789ABCDEF"
	s := make([]byte, 0, len(b)*2)
	for _, v := range b {
		s = append(s, digits[v>>4], digits[v&0x0F])
	}
	return string(s)
}
