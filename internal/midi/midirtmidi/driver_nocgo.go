//go:build !cgo
// +build !cgo

// Package midirtmidi opens console ports through RtMidi, which covers ALSA
// on Linux as well as CoreMIDI and winmm.
package midirtmidi

import (
	"fmt"

	"github.com/nixcodex/ls9/sdk/contracts"
)

type dummyDriver struct {
	logger contracts.Logger
}

// NewDriver returns a driver that fails every call; RtMidi needs cgo.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Info("Using dummy RtMidi driver; built without cgo")
	return &dummyDriver{logger: options.Logger}, nil
}

func (d *dummyDriver) ListPorts() ([]contracts.PortInfo, error) {
	d.logger.Warn("ListPorts called on dummy RtMidi driver")
	return nil, fmt.Errorf("%w: RtMidi requires cgo", contracts.ErrDeviceUnavailable)
}

func (d *dummyDriver) Open(portName string) (contracts.Port, error) {
	d.logger.Warn("Open called on dummy RtMidi driver", d.logger.Field().String("port", portName))
	return nil, fmt.Errorf("%w: RtMidi requires cgo", contracts.ErrDeviceUnavailable)
}

func (d *dummyDriver) Close() error {
	return nil
}
