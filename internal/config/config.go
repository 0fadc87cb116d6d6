// Package config loads session settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/nixcodex/ls9/internal/logger"
	"github.com/nixcodex/ls9/sdk/contracts"
)

// File is the on-disk configuration. Zero fields keep the library defaults.
type File struct {
	PortName   string      `yaml:"portName"`
	TimeoutMs  int         `yaml:"timeoutMs,omitempty"`
	MaxRetries *int        `yaml:"maxRetries,omitempty"`
	Backend    string      `yaml:"backend,omitempty"`
	Virtual    bool        `yaml:"virtual,omitempty"`
	Device     uint8       `yaml:"device,omitempty"`
	Checksum   string      `yaml:"checksum,omitempty"`
	WriteAck   string      `yaml:"writeAck,omitempty"`
	LogLevel   string      `yaml:"logLevel,omitempty"`
	LogFile    string      `yaml:"logFile,omitempty"`
	Parameters []Parameter `yaml:"parameters,omitempty"`
}

// Parameter registers one element of the console's parameter space.
type Parameter struct {
	Element int    `yaml:"element"`
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind,omitempty"`
	Min     int32  `yaml:"min,omitempty"`
	Max     int32  `yaml:"max,omitempty"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := f.Options(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Marshal renders f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Options converts the file into session options. Options for fields left
// empty are omitted so the library defaults apply.
func (f *File) Options() ([]contracts.Option, error) {
	var opts []contracts.Option

	if f.PortName != "" {
		opts = append(opts, contracts.WithPortName(f.PortName))
	}
	if f.TimeoutMs < 0 {
		return nil, fmt.Errorf("timeoutMs must not be negative, got %d", f.TimeoutMs)
	}
	if f.TimeoutMs > 0 {
		opts = append(opts, contracts.WithTimeout(time.Duration(f.TimeoutMs)*time.Millisecond))
	}
	if f.MaxRetries != nil {
		if *f.MaxRetries < 0 {
			return nil, fmt.Errorf("maxRetries must not be negative, got %d", *f.MaxRetries)
		}
		opts = append(opts, contracts.WithMaxRetries(*f.MaxRetries))
	}
	if f.Backend != "" {
		opts = append(opts, contracts.WithBackend(f.Backend))
	}
	if f.Virtual {
		opts = append(opts, contracts.WithVirtualPort(true))
	}
	if f.Device > 0x0F {
		return nil, fmt.Errorf("device must be 0..15, got %d", f.Device)
	}
	if f.Device != 0 {
		opts = append(opts, contracts.WithDeviceNumber(f.Device))
	}

	checksum, err := contracts.ParseChecksumPolicy(f.Checksum)
	if err != nil {
		return nil, err
	}
	opts = append(opts, contracts.WithChecksum(checksum))

	ack, err := contracts.ParseWriteAck(f.WriteAck)
	if err != nil {
		return nil, err
	}
	opts = append(opts, contracts.WithWriteAck(ack))

	if f.LogLevel != "" {
		level, err := logger.ParseLevel(f.LogLevel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, contracts.WithLogLevel(level))
	}
	if f.LogFile != "" {
		opts = append(opts, contracts.WithLogFile(f.LogFile))
	}

	for _, p := range f.Parameters {
		kind, err := contracts.ParseKind(p.Kind)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		if p.Element < 0 || p.Element > contracts.MaxAddressField {
			return nil, fmt.Errorf("parameter %q: %w: element %d", p.Name, contracts.ErrInvalidAddress, p.Element)
		}
		if p.Min > p.Max {
			return nil, fmt.Errorf("parameter %q: min %d greater than max %d", p.Name, p.Min, p.Max)
		}
		opts = append(opts, contracts.WithParameter(p.Element, contracts.ParamDef{
			Name: p.Name,
			Kind: kind,
			Min:  p.Min,
			Max:  p.Max,
		}))
	}
	return opts, nil
}
