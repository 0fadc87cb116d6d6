package contracts

import (
	"fmt"
	"time"
)

// ChecksumPolicy selects the integrity byte appended to each SysEx frame.
type ChecksumPolicy uint8

const (
	// ChecksumNone sends frames without a checksum byte, as the LS9 does.
	ChecksumNone ChecksumPolicy = iota
	// ChecksumAdditive appends the 7-bit two's complement of the payload sum.
	ChecksumAdditive
	// ChecksumXOR appends the 7-bit XOR of the payload.
	ChecksumXOR
)

func (c ChecksumPolicy) String() string {
	switch c {
	case ChecksumAdditive:
		return "additive"
	case ChecksumXOR:
		return "xor"
	default:
		return "none"
	}
}

// ParseChecksumPolicy is the inverse of ChecksumPolicy.String.
func ParseChecksumPolicy(s string) (ChecksumPolicy, error) {
	switch s {
	case "", "none":
		return ChecksumNone, nil
	case "additive", "sum":
		return ChecksumAdditive, nil
	case "xor":
		return ChecksumXOR, nil
	}
	return 0, fmt.Errorf("unknown checksum policy %q", s)
}

// WriteAck selects when a write counts as completed.
type WriteAck uint8

const (
	// WriteAckEcho completes a write when the console reports the parameter back.
	WriteAckEcho WriteAck = iota
	// WriteAckNone completes a write as soon as it has been sent.
	WriteAckNone
)

func (w WriteAck) String() string {
	if w == WriteAckNone {
		return "none"
	}
	return "echo"
}

// ParseWriteAck is the inverse of WriteAck.String.
func ParseWriteAck(s string) (WriteAck, error) {
	switch s {
	case "", "echo":
		return WriteAckEcho, nil
	case "none":
		return WriteAckNone, nil
	}
	return 0, fmt.Errorf("unknown write ack mode %q", s)
}

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// ClientOptions defines the configuration options for a console session.
type ClientOptions struct {
	Logger         Logger          // Logger for logging events and errors.
	LogLevel       LogLevel        // Level of logging to use.
	LogFilePath    string          // File path for logging if file logging is enabled.
	PortName       string          // Transport endpoint to bind.
	Backend        string          // MIDI backend name; empty selects the platform default.
	VirtualPort    bool            // Create a virtual port named PortName instead of binding one.
	Timeout        time.Duration   // Per-request deadline.
	MaxRetries     int             // Resubmissions after a timeout or send failure.
	DeviceNumber   uint8           // SysEx device number, 0..15.
	Checksum       ChecksumPolicy  // Frame checksum policy.
	WriteAck       WriteAck        // Write completion policy.
	Schema         Schema          // Parameter kinds and ranges by element.
	FadeStep       time.Duration   // Interval between fade writes.
	BufferSize     int             // Capacity of the inbound and event queues.
	CoreMIDIConfig *CoreMIDIConfig // Configuration specific to CoreMIDI.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the session.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the session.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile directs log output to path.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithPortName sets the MIDI port the session binds to.
func WithPortName(name string) Option {
	return func(opts *ClientOptions) {
		opts.PortName = name
	}
}

// WithBackend forces a MIDI backend ("coremidi", "winmm", "rtmidi" or "sim").
func WithBackend(name string) Option {
	return func(opts *ClientOptions) {
		opts.Backend = name
	}
}

// WithVirtualPort makes the session publish a virtual port instead of
// opening an existing one. Only the rtmidi and sim backends support it.
func WithVirtualPort(virtual bool) Option {
	return func(opts *ClientOptions) {
		opts.VirtualPort = virtual
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.Timeout = d
	}
}

// WithMaxRetries sets how many times a timed-out request is resubmitted.
func WithMaxRetries(n int) Option {
	return func(opts *ClientOptions) {
		opts.MaxRetries = n
	}
}

// WithDeviceNumber sets the SysEx device number the console listens on.
func WithDeviceNumber(n uint8) Option {
	return func(opts *ClientOptions) {
		opts.DeviceNumber = n
	}
}

// WithChecksum sets the frame checksum policy.
func WithChecksum(c ChecksumPolicy) Option {
	return func(opts *ClientOptions) {
		opts.Checksum = c
	}
}

// WithWriteAck sets when writes complete.
func WithWriteAck(w WriteAck) Option {
	return func(opts *ClientOptions) {
		opts.WriteAck = w
	}
}

// WithParameter registers or overrides the definition of one element.
func WithParameter(element int, def ParamDef) Option {
	return func(opts *ClientOptions) {
		if opts.Schema == nil {
			opts.Schema = DefaultSchema()
		}
		opts.Schema[element] = def
	}
}

// WithFadeStep sets the interval between writes issued by Fade.
func WithFadeStep(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.FadeStep = d
	}
}

// WithBufferSize sets the capacity of the inbound message and event queues.
func WithBufferSize(n int) Option {
	return func(opts *ClientOptions) {
		opts.BufferSize = n
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration for the session.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *ClientOptions) {
		opts.CoreMIDIConfig = &config
	}
}
