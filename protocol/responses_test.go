package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseBlockSupportResponse(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    uint16
		wantErr bool
		errMsg  string
	}{
		{name: "128 byte buffer", data: []byte{'Y', 0x00, 0x80}, want: 128},
		{name: "big-endian", data: []byte{'Y', 0x01, 0x02}, want: 0x0102},
		{name: "no block support", data: []byte{'N', 0x00, 0x80}, wantErr: true, errMsg: "replied 0x4E, expected 0x59"},
		{name: "short", data: []byte{'Y', 0x00}, wantErr: true, errMsg: "got 2 of 3 bytes"},
		{name: "empty", data: nil, wantErr: true, errMsg: "got 0 of 3 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBlockSupportResponse(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !bytes.Contains([]byte(err.Error()), []byte(tt.errMsg)) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				if !IsProtocolError(err) {
					t.Errorf("expected ProtocolError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("size = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseSignatureResponse(t *testing.T) {
	sig, err := ParseSignatureResponse([]byte{0x87, 0x95, 0x1E})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != (Signature{0x1E, 0x95, 0x87}) {
		t.Errorf("signature = %v", sig)
	}
	if sig.String() != "1E 95 87" {
		t.Errorf("String() = %q", sig.String())
	}

	if _, err := ParseSignatureResponse([]byte{0x1E}); err == nil {
		t.Error("expected error for short signature")
	}
}

func TestParseDeviceCodes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []byte
	}{
		{"terminated", []byte{0x44, 0x00}, []byte{0x44}},
		{"several", []byte{0x44, 0x45, 0x00, 0x46}, []byte{0x44, 0x45}},
		{"unterminated", []byte{0x44}, []byte{0x44}},
		{"empty", []byte{0x00}, []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDeviceCodes(tt.data)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("codes = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestExpectByte(t *testing.T) {
	if err := ExpectByte("unlock", CmdEnterProgMode, []byte{RspSuccess}, RspSuccess); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ExpectByte("unlock", CmdEnterProgMode, []byte{'?'}, RspSuccess)
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if pe.Reply != '?' || pe.Expected != RspSuccess || pe.Command != CmdEnterProgMode {
		t.Errorf("unexpected error fields: %+v", pe)
	}

	err = ExpectByte("unlock", CmdEnterProgMode, nil, RspSuccess)
	if err == nil || !bytes.Contains([]byte(err.Error()), []byte("short reply")) {
		t.Errorf("error = %v, want short reply", err)
	}
}

func TestPrintableASCII(t *testing.T) {
	if got := PrintableASCII([]byte("CATERIN")); got != "CATERIN" {
		t.Errorf("got %q", got)
	}
	if got := PrintableASCII([]byte{'1', 0x00, 0xFF}); got != "1.." {
		t.Errorf("got %q", got)
	}
}
