//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/nixcodex/ls9/sdk/contracts"
)

type dummyDriver struct {
	logger contracts.Logger
}

// NewDriver returns a driver that fails every call; CoreMIDI exists only on
// macOS.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Info("Using dummy CoreMIDI driver for non-macOS system")
	return &dummyDriver{logger: options.Logger}, nil
}

func (d *dummyDriver) ListPorts() ([]contracts.PortInfo, error) {
	d.logger.Warn("ListPorts called on dummy CoreMIDI driver")
	return nil, fmt.Errorf("%w: CoreMIDI is not available on this platform", contracts.ErrDeviceUnavailable)
}

func (d *dummyDriver) Open(portName string) (contracts.Port, error) {
	d.logger.Warn("Open called on dummy CoreMIDI driver", d.logger.Field().String("port", portName))
	return nil, fmt.Errorf("%w: CoreMIDI is not available on this platform", contracts.ErrDeviceUnavailable)
}

func (d *dummyDriver) Close() error {
	return nil
}
