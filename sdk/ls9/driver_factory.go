package ls9

import (
	"fmt"
	"runtime"

	"github.com/nixcodex/ls9/internal/midi/mididarwin"
	"github.com/nixcodex/ls9/internal/midi/midirtmidi"
	"github.com/nixcodex/ls9/internal/midi/midisim"
	"github.com/nixcodex/ls9/internal/midi/midiwindows"
	"github.com/nixcodex/ls9/internal/sysex"
	"github.com/nixcodex/ls9/sdk/contracts"
)

// Backend names accepted by contracts.WithBackend.
const (
	BackendCoreMIDI = "coremidi"
	BackendWinMM    = "winmm"
	BackendRtMidi   = "rtmidi"
	BackendSim      = "sim"
)

// driverInitializers maps backend names to driver constructors.
var driverInitializers = map[string]func(*contracts.ClientOptions) (contracts.Driver, error){
	BackendCoreMIDI: mididarwin.NewDriver,  // macOS CoreMIDI.
	BackendWinMM:    midiwindows.NewDriver, // Windows multimedia API.
	BackendRtMidi:   midirtmidi.NewDriver,  // RtMidi (ALSA, JACK, and the above).
	BackendSim:      newSimDriver,          // In-memory emulated console.
}

// defaultBackends maps OS names to the backend used when none is configured.
var defaultBackends = map[string]string{
	"darwin":  BackendCoreMIDI,
	"windows": BackendWinMM,
	"linux":   BackendRtMidi,
	"freebsd": BackendRtMidi,
}

// Backends lists the accepted backend names.
func Backends() []string {
	return []string{BackendCoreMIDI, BackendWinMM, BackendRtMidi, BackendSim}
}

// backendName resolves the backend for opts, falling back to the default for
// the current operating system.
func backendName(opts *contracts.ClientOptions) (string, error) {
	if opts.Backend != "" {
		if _, ok := driverInitializers[opts.Backend]; !ok {
			return "", fmt.Errorf("%w: %q", contracts.ErrUnknownBackend, opts.Backend)
		}
		return opts.Backend, nil
	}
	if name, ok := defaultBackends[runtime.GOOS]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: %s", contracts.ErrUnsupportedOS, runtime.GOOS)
}

// NewDriver creates the MIDI driver selected by opts.
//
// opts *contracts.ClientOptions: Configuration options, with defaults applied.
//
// Returns:
//   - contracts.Driver: The driver for the configured backend.
//   - error: ErrUnknownBackend, ErrUnsupportedOS or a driver initialization error.
func NewDriver(opts *contracts.ClientOptions) (contracts.Driver, error) {
	name, err := backendName(opts)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("Selected MIDI backend", opts.Logger.Field().String("backend", name))
	return driverInitializers[name](opts)
}

func newCodec(opts *contracts.ClientOptions) *sysex.Codec {
	return sysex.New(
		sysex.WithDevice(opts.DeviceNumber),
		sysex.WithChecksum(opts.Checksum),
		sysex.WithSchema(opts.Schema),
	)
}

// newSimDriver serves a single emulated console named after the configured
// port.
func newSimDriver(opts *contracts.ClientOptions) (contracts.Driver, error) {
	console := midisim.New(opts.PortName, midisim.WithCodec(newCodec(opts)))
	opts.Logger.Info("Using simulated console", opts.Logger.Field().String("port", console.Name()))
	return midisim.NewDriver(console), nil
}
