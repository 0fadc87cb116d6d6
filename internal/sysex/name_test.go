package sysex

import "testing"

func TestPackName(t *testing.T) {
	first, second := PackName("Kick")
	if first != 0x4B69636B {
		t.Errorf("first = %#x, want 0x4b69636b", first)
	}
	if second != 0x20200000 {
		t.Errorf("second = %#x, want 0x20200000", second)
	}
}

func TestNameRoundTrip(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Kick", "Kick"},
		{"Vox L", "Vox L"},
		{"Snare1", "Snare1"},
		{"Overheads", "Overhe"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := UnpackName(PackName(tt.in)); got != tt.want {
				t.Errorf("UnpackName(PackName(%q)) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUnpackNameTrimsNul(t *testing.T) {
	if got := UnpackName(0x4F48, 0); got != "\x00\x00OH" {
		t.Errorf("UnpackName() = %q", got)
	}
	if got := UnpackName(0x42617373, 0); got != "Bass" {
		t.Errorf("UnpackName() = %q, want Bass", got)
	}
}
