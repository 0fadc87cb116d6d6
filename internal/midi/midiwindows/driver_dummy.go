//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/nixcodex/ls9/sdk/contracts"
)

type dummyDriver struct {
	logger contracts.Logger
}

// NewDriver initializes a dummy driver for non-Windows systems.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Info("Using dummy winmm driver for non-Windows system")
	return &dummyDriver{logger: options.Logger}, nil
}

// ListPorts logs a warning and returns an error indicating that winmm is unavailable on this platform.
func (d *dummyDriver) ListPorts() ([]contracts.PortInfo, error) {
	d.logger.Warn("ListPorts called on dummy winmm driver")
	return nil, fmt.Errorf("%w: winmm is not available on this platform", contracts.ErrDeviceUnavailable)
}

// Open logs a warning and returns an error indicating that winmm is unavailable on this platform.
func (d *dummyDriver) Open(portName string) (contracts.Port, error) {
	d.logger.Warn("Open called on dummy winmm driver", d.logger.Field().String("port", portName))
	return nil, fmt.Errorf("%w: winmm is not available on this platform", contracts.ErrDeviceUnavailable)
}

// Close does nothing.
func (d *dummyDriver) Close() error {
	return nil
}
