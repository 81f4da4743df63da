package usbcdc

import (
	"bytes"
	"testing"
)

func TestLineCoding(t *testing.T) {
	tests := []struct {
		baud int
		want []byte
	}{
		{57600, []byte{0x00, 0xE1, 0x00, 0x00, 0x00, 0x00, 0x08}},
		{1200, []byte{0xB0, 0x04, 0x00, 0x00, 0x00, 0x00, 0x08}},
		{115200, []byte{0x00, 0xC2, 0x01, 0x00, 0x00, 0x00, 0x08}},
	}
	for _, tt := range tests {
		if got := LineCoding(tt.baud); !bytes.Equal(got, tt.want) {
			t.Errorf("LineCoding(%d) = % X, want % X", tt.baud, got, tt.want)
		}
	}
}

func TestRequestType(t *testing.T) {
	// host to device, class request, interface recipient
	if requestType != 0x21 {
		t.Errorf("request type = 0x%02X, want 0x21", requestType)
	}
}
