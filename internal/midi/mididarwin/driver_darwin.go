//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nixcodex/ls9/internal/midi"
	"github.com/nixcodex/ls9/internal/midi/stream"
	"github.com/nixcodex/ls9/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for MIDI connection and handling issues.
var (
	ErrNoMIDIPorts         = errors.New("no MIDI ports found")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI source")
	ErrCreateInputPort     = errors.New("error creating input port")
	ErrCreateOutputPort    = errors.New("error creating output port")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// Driver opens console ports through CoreMIDI on macOS.
type Driver struct {
	logger contracts.Logger
	client coremidi.Client // CoreMIDI client owning every port opened by the driver.
}

// NewDriver creates the CoreMIDI client named in the options.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	client, err := coremidi.NewClient(options.CoreMIDIConfig.ClientName)
	if err != nil {
		return nil, fmt.Errorf("%w: creating CoreMIDI client: %v", contracts.ErrDeviceUnavailable, err)
	}
	options.Logger.Info("CoreMIDI client created", options.Logger.Field().String("client", options.CoreMIDIConfig.ClientName))

	return &Driver{logger: options.Logger, client: client}, nil
}

// ListPorts merges CoreMIDI sources and destinations by name.
func (d *Driver) ListPorts() ([]contracts.PortInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	if len(sources) == 0 && len(destinations) == 0 {
		d.logger.Warn(ErrNoMIDIPorts.Error())
		return nil, ErrNoMIDIPorts
	}

	var ports []contracts.PortInfo
	index := make(map[string]int)
	for _, source := range sources {
		entity := source.Entity()
		index[source.Name()] = len(ports)
		ports = append(ports, contracts.PortInfo{
			Name:         source.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
			Input:        true,
		})
	}
	for _, dest := range destinations {
		if i, ok := index[dest.Name()]; ok {
			ports[i].Output = true
			continue
		}
		entity := dest.Entity()
		ports = append(ports, contracts.PortInfo{
			Name:         dest.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
			Output:       true,
		})
	}
	return ports, nil
}

// Open connects to the source and destination matching portName.
func (d *Driver) Open(portName string) (contracts.Port, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("%w: listing sources: %v", contracts.ErrDeviceUnavailable, err)
	}
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("%w: listing destinations: %v", contracts.ErrDeviceUnavailable, err)
	}

	srcNames := make([]string, len(sources))
	for i, s := range sources {
		srcNames[i] = s.Name()
	}
	dstNames := make([]string, len(destinations))
	for i, dst := range destinations {
		dstNames[i] = dst.Name()
	}
	si, ok := midi.FindPort(srcNames, portName)
	if !ok {
		return nil, fmt.Errorf("%w: no MIDI source matching %q", contracts.ErrDeviceUnavailable, portName)
	}
	di, ok := midi.FindPort(dstNames, portName)
	if !ok {
		return nil, fmt.Errorf("%w: no MIDI destination matching %q", contracts.ErrDeviceUnavailable, portName)
	}

	p := &port{logger: d.logger, destination: destinations[di]}
	p.asm = stream.New(p.emit)
	p.asm.Overflow = func(size int) {
		p.logger.Warn("Dropping oversized SysEx message", p.logger.Field().Int("size", size))
	}

	p.outputPort, err = coremidi.NewOutputPort(d.client, "ls9 out")
	if err != nil {
		d.logger.Error(ErrCreateOutputPort.Error(), d.logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %w: %v", contracts.ErrDeviceUnavailable, ErrCreateOutputPort, err)
	}
	p.inputPort, err = coremidi.NewInputPort(d.client, "ls9 in", p.handlePacket)
	if err != nil {
		d.logger.Error(ErrCreateInputPort.Error(), d.logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %w: %v", contracts.ErrDeviceUnavailable, ErrCreateInputPort, err)
	}
	p.portConn, err = p.inputPort.Connect(sources[si])
	if err != nil {
		d.logger.Error(ErrMIDIConnectionError.Error(), d.logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %w: %v", contracts.ErrDeviceUnavailable, ErrMIDIConnectionError, err)
	}

	d.logger.Info("MIDI port connected",
		d.logger.Field().String("source", srcNames[si]),
		d.logger.Field().String("destination", dstNames[di]))
	return p, nil
}

// Close releases the driver. CoreMIDI disposes of the client when the
// process exits.
func (d *Driver) Close() error {
	d.logger.Debug("CoreMIDI driver closed")
	return nil
}

// port is a connected source/destination pair.
type port struct {
	logger      contracts.Logger
	inputPort   coremidi.InputPort     // Input port receiving from the console.
	outputPort  coremidi.OutputPort    // Output port sending to the console.
	destination coremidi.Destination   // Console destination endpoint.
	portConn    internalPortConnection // Connection of inputPort to the source.

	handler atomic.Value // func([]byte)
	asmMu   sync.Mutex   // CoreMIDI may call back on more than one thread.
	asm     *stream.Assembler
	closed  atomic.Bool

	mu       sync.Mutex
	wg       sync.WaitGroup // Packets being processed.
	stopOnce sync.Once
}

func (p *port) Send(msg []byte) error {
	if p.closed.Load() {
		return fmt.Errorf("%w: port closed", contracts.ErrTransportWrite)
	}
	packet := coremidi.NewPacket(msg, 0)
	if err := packet.Send(&p.outputPort, &p.destination); err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrTransportWrite, err)
	}
	return nil
}

func (p *port) OnReceive(fn func(msg []byte)) {
	p.handler.Store(fn)
}

// handlePacket feeds a CoreMIDI packet into the assembler. Packets may hold
// several messages or a fragment of a SysEx message.
func (p *port) handlePacket(source coremidi.Source, packet coremidi.Packet) {
	if p.closed.Load() {
		return
	}
	p.wg.Add(1)
	defer p.wg.Done()

	p.asmMu.Lock()
	p.asm.Write(packet.Data)
	p.asmMu.Unlock()
}

func (p *port) emit(msg []byte) {
	if fn, _ := p.handler.Load().(func([]byte)); fn != nil {
		fn(msg)
	}
}

// Close disconnects from the source and waits for packets in progress.
func (p *port) Close() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		p.closed.Store(true)
		if p.portConn != nil {
			p.portConn.Disconnect()
			p.portConn = nil
		}
		p.wg.Wait()
		p.logger.Info("MIDI port disconnected")
	})
	return nil
}
