//go:build cgo
// +build cgo

// Package midirtmidi opens console ports through RtMidi, which covers ALSA
// on Linux as well as CoreMIDI and winmm.
package midirtmidi

import (
	"fmt"
	"sync"

	"github.com/nixcodex/ls9/internal/midi"
	"github.com/nixcodex/ls9/sdk/contracts"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/multierr"
)

const sysexBufferSize = 1024

// Driver wraps an RtMidi driver.
type Driver struct {
	logger  contracts.Logger
	drv     *rtmididrv.Driver
	virtual bool
}

// NewDriver creates an RtMidi driver. With options.VirtualPort set, Open
// publishes a virtual port pair instead of binding existing ports.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("%w: rtmididrv.New: %v", contracts.ErrDeviceUnavailable, err)
	}
	options.Logger.Info("RtMidi driver created", options.Logger.Field().Bool("virtual", options.VirtualPort))
	return &Driver{logger: options.Logger, drv: drv, virtual: options.VirtualPort}, nil
}

// ListPorts merges RtMidi inputs and outputs by name.
func (d *Driver) ListPorts() ([]contracts.PortInfo, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
	}

	var ports []contracts.PortInfo
	index := make(map[string]int)
	for _, in := range ins {
		index[in.String()] = len(ports)
		ports = append(ports, contracts.PortInfo{Name: in.String(), Input: true})
	}
	for _, out := range outs {
		if i, ok := index[out.String()]; ok {
			ports[i].Output = true
			continue
		}
		ports = append(ports, contracts.PortInfo{Name: out.String(), Output: true})
	}
	return ports, nil
}

// Open binds the input and output matching portName, or creates virtual
// ports called portName.
func (d *Driver) Open(portName string) (contracts.Port, error) {
	in, out, err := d.endpoints(portName)
	if err != nil {
		return nil, err
	}
	if !out.IsOpen() {
		if err := out.Open(); err != nil {
			in.Close()
			return nil, fmt.Errorf("%w: opening output %s: %v", contracts.ErrDeviceUnavailable, out, err)
		}
	}

	p := &port{logger: d.logger, in: in, out: out}
	stop, err := gomidi.ListenTo(in, p.receive, gomidi.UseSysEx(), gomidi.SysExBufferSize(sysexBufferSize))
	if err != nil {
		in.Close()
		out.Close()
		return nil, fmt.Errorf("%w: listening on %s: %v", contracts.ErrDeviceUnavailable, in, err)
	}
	p.stop = stop

	d.logger.Info("MIDI port connected",
		d.logger.Field().String("input", in.String()),
		d.logger.Field().String("output", out.String()))
	return p, nil
}

func (d *Driver) endpoints(portName string) (drivers.In, drivers.Out, error) {
	if d.virtual {
		if portName == "" {
			portName = "ls9"
		}
		in, err := d.drv.OpenVirtualIn(portName)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: virtual input %q: %v", contracts.ErrDeviceUnavailable, portName, err)
		}
		out, err := d.drv.OpenVirtualOut(portName)
		if err != nil {
			in.Close()
			return nil, nil, fmt.Errorf("%w: virtual output %q: %v", contracts.ErrDeviceUnavailable, portName, err)
		}
		return in, out, nil
	}

	ins, err := d.drv.Ins()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: listing inputs: %v", contracts.ErrDeviceUnavailable, err)
	}
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: listing outputs: %v", contracts.ErrDeviceUnavailable, err)
	}
	inNames := make([]string, len(ins))
	for i, in := range ins {
		inNames[i] = in.String()
	}
	outNames := make([]string, len(outs))
	for i, out := range outs {
		outNames[i] = out.String()
	}

	ii, ok := midi.FindPort(inNames, portName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no MIDI input matching %q", contracts.ErrDeviceUnavailable, portName)
	}
	oi, ok := midi.FindPort(outNames, portName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no MIDI output matching %q", contracts.ErrDeviceUnavailable, portName)
	}
	return ins[ii], outs[oi], nil
}

// Close closes the RtMidi driver and every port it opened.
func (d *Driver) Close() error {
	return d.drv.Close()
}

type port struct {
	logger contracts.Logger
	in     drivers.In
	out    drivers.Out
	stop   func()

	mu        sync.RWMutex
	handler   func([]byte)
	closeOnce sync.Once
	closed    bool
}

func (p *port) Send(msg []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("%w: port closed", contracts.ErrTransportWrite)
	}
	if err := p.out.Send(msg); err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrTransportWrite, err)
	}
	return nil
}

func (p *port) OnReceive(fn func(msg []byte)) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

// receive gets complete messages from RtMidi, so no reassembly is needed.
func (p *port) receive(msg gomidi.Message, _ int32) {
	p.mu.RLock()
	fn := p.handler
	p.mu.RUnlock()
	if fn != nil {
		fn(msg.Bytes())
	}
}

func (p *port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.stop()
		err = multierr.Combine(p.in.Close(), p.out.Close())
		p.logger.Info("MIDI port disconnected")
	})
	return err
}
