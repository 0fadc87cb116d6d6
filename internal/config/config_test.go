package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nixcodex/ls9/sdk/contracts"
)

const sample = `
portName: LS9 Port1
timeoutMs: 500
maxRetries: 0
device: 3
checksum: xor
writeAck: none
logLevel: debug
parameters:
  - element: 53
    name: mute
    kind: bool
  - element: 60
    name: bus
    kind: enum
    min: 0
    max: 15
`

func apply(t *testing.T, f *File) contracts.ClientOptions {
	t.Helper()
	opts, err := f.Options()
	if err != nil {
		t.Fatalf("Options() error = %v", err)
	}
	var o contracts.ClientOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ls9.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := apply(t, f)
	schema := contracts.DefaultSchema()
	schema[53] = contracts.ParamDef{Name: "mute", Kind: contracts.KindBool}
	schema[60] = contracts.ParamDef{Name: "bus", Kind: contracts.KindEnum, Min: 0, Max: 15}
	want := contracts.ClientOptions{
		PortName:     "LS9 Port1",
		Timeout:      500 * time.Millisecond,
		MaxRetries:   0,
		DeviceNumber: 3,
		Checksum:     contracts.ChecksumXOR,
		WriteAck:     contracts.WriteAckNone,
		LogLevel:     contracts.DebugLevel,
		Schema:       schema,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	f, err := Parse([]byte("portName: desk\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	o := contracts.ClientOptions{Timeout: time.Second, MaxRetries: 2}
	opts, _ := f.Options()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Timeout != time.Second || o.MaxRetries != 2 || o.PortName != "desk" {
		t.Errorf("options = %+v", o)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "portName: [unterminated\n"},
		{"negative timeout", "timeoutMs: -1\n"},
		{"negative retries", "maxRetries: -2\n"},
		{"device", "device: 16\n"},
		{"checksum", "checksum: crc\n"},
		{"write ack", "writeAck: maybe\n"},
		{"log level", "logLevel: loud\n"},
		{"kind", "parameters:\n  - element: 1\n    name: x\n    kind: float\n"},
		{"range", "parameters:\n  - element: 1\n    name: x\n    min: 5\n    max: 1\n"},
		{"element", "parameters:\n  - element: 20000\n    name: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.yaml)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	retries := 1
	in := &File{PortName: "FOH", TimeoutMs: 250, MaxRetries: &retries, Checksum: "additive"}
	data, err := in.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	out, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
