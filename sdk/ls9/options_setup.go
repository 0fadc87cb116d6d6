package ls9

import (
	"fmt"
	"time"

	"github.com/nixcodex/ls9/internal/logger"
	"github.com/nixcodex/ls9/sdk/contracts"
)

// Default option values.
const (
	DefaultTimeout        = time.Second
	DefaultMaxRetries     = 2
	DefaultFadeStep       = 10 * time.Millisecond
	DefaultBufferSize     = 256
	DefaultCoreMIDIClient = "ls9"
)

// applyDefaultOptions fills in ClientOptions before the caller's options are
// applied, then validates the result.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: A structure containing the finalized client options with defaults applied.
//   - error: An error if an option is out of range.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{
		LogLevel:       contracts.InfoLevel,
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		Checksum:       contracts.ChecksumNone,
		WriteAck:       contracts.WriteAckEcho,
		Schema:         contracts.DefaultSchema(),
		FadeStep:       DefaultFadeStep,
		BufferSize:     DefaultBufferSize,
		CoreMIDIConfig: &contracts.CoreMIDIConfig{ClientName: DefaultCoreMIDIClient},
	}
	for _, opt := range opts {
		opt(options)
	}

	switch {
	case options.Timeout <= 0:
		return *options, fmt.Errorf("timeout must be positive, got %s", options.Timeout)
	case options.MaxRetries < 0:
		return *options, fmt.Errorf("max retries must not be negative, got %d", options.MaxRetries)
	case options.DeviceNumber > 0x0F:
		return *options, fmt.Errorf("device number %d out of range 0..15", options.DeviceNumber)
	case options.FadeStep <= 0:
		return *options, fmt.Errorf("fade step must be positive, got %s", options.FadeStep)
	case options.BufferSize <= 0:
		return *options, fmt.Errorf("buffer size must be positive, got %d", options.BufferSize)
	}

	if options.Schema == nil {
		options.Schema = contracts.DefaultSchema()
	}
	if options.CoreMIDIConfig == nil || options.CoreMIDIConfig.ClientName == "" {
		options.CoreMIDIConfig = &contracts.CoreMIDIConfig{ClientName: DefaultCoreMIDIClient}
	}
	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}

	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	return *options, nil
}
