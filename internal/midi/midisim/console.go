// Package midisim provides an in-memory MIDI backend with an emulated
// console behind it. It answers parameter requests, stores parameter
// changes and can originate changes of its own, which makes it usable for
// demos and for tests without hardware.
package midisim

import (
	"fmt"
	"sync"
	"time"

	"github.com/nixcodex/ls9/internal/sysex"
	"github.com/nixcodex/ls9/sdk/contracts"
)

// DefaultName is the port name of a console created without one.
const DefaultName = "LS9 Simulator"

const queueSize = 1024

// Console emulates the parameter memory of a mixing console.
type Console struct {
	name  string
	codec *sysex.Codec
	delay time.Duration

	mu       sync.Mutex
	values   map[contracts.Address]contracts.Value
	echo     bool
	silent   bool
	sendErr  error
	received [][]byte
	closes   int
	port     *port
}

// Option configures a Console.
type Option func(*Console)

// WithEcho controls whether parameter changes are reported back. Enabled by
// default, as on the real console.
func WithEcho(echo bool) Option { return func(c *Console) { c.echo = echo } }

// WithDelay delays every message the console sends.
func WithDelay(d time.Duration) Option { return func(c *Console) { c.delay = d } }

// WithCodec sets the codec used on the wire.
func WithCodec(codec *sysex.Codec) Option { return func(c *Console) { c.codec = codec } }

// New creates a console reachable under name.
func New(name string, opts ...Option) *Console {
	if name == "" {
		name = DefaultName
	}
	c := &Console{
		name:   name,
		codec:  sysex.New(),
		values: make(map[contracts.Address]contracts.Value),
		echo:   true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the port name of the console.
func (c *Console) Name() string { return c.name }

// SetSilent makes the console ignore everything it receives.
func (c *Console) SetSilent(silent bool) {
	c.mu.Lock()
	c.silent = silent
	c.mu.Unlock()
}

// SetEcho changes whether parameter changes are reported back.
func (c *Console) SetEcho(echo bool) {
	c.mu.Lock()
	c.echo = echo
	c.mu.Unlock()
}

// SetSendError makes Send fail with err until it is cleared with nil.
func (c *Console) SetSendError(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// SetValue stores a value without notifying anyone.
func (c *Console) SetValue(addr contracts.Address, v contracts.Value) {
	c.mu.Lock()
	c.values[addr] = v
	c.mu.Unlock()
}

// Value returns the stored value of addr and whether it has been set.
func (c *Console) Value(addr contracts.Address) (contracts.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[addr]
	return v, ok
}

// SetChannelName stores the display name of a channel.
func (c *Console) SetChannelName(channel int, name string) {
	first, second := sysex.PackName(name)
	c.mu.Lock()
	c.values[contracts.Address{Element: contracts.ElementChannelName, Index: 0, Channel: channel}] = contracts.IntValue(first)
	c.values[contracts.Address{Element: contracts.ElementChannelName, Index: 1, Channel: channel}] = contracts.IntValue(second)
	c.mu.Unlock()
}

// Touch simulates a control being moved on the console surface: the value
// is stored and a parameter change is sent to the host.
func (c *Console) Touch(addr contracts.Address, v contracts.Value) error {
	frame, err := c.codec.EncodeWrite(addr, v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.values[addr] = v
	p := c.port
	c.mu.Unlock()
	if p == nil {
		return fmt.Errorf("%w: %s is not open", contracts.ErrDeviceUnavailable, c.name)
	}
	p.deliver(frame)
	return nil
}

// Inject sends raw bytes to the host as if the console had sent them.
func (c *Console) Inject(msg []byte) error {
	c.mu.Lock()
	p := c.port
	c.mu.Unlock()
	if p == nil {
		return fmt.Errorf("%w: %s is not open", contracts.ErrDeviceUnavailable, c.name)
	}
	p.deliver(append([]byte(nil), msg...))
	return nil
}

// Received returns a copy of every frame the console has received.
func (c *Console) Received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.received))
	for i, m := range c.received {
		out[i] = append([]byte(nil), m...)
	}
	return out
}

// Closes returns how many times a port to the console has been closed.
func (c *Console) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// handle processes one frame from the host and returns the reply, if any.
func (c *Console) handle(msg []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendErr != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrTransportWrite, c.sendErr)
	}
	c.received = append(c.received, append([]byte(nil), msg...))
	if c.silent {
		return nil, nil
	}

	req, err := c.codec.Decode(msg)
	if err != nil {
		// A real console ignores what it does not understand.
		return nil, nil
	}
	switch req.Type {
	case sysex.ParamRequest:
		v, ok := c.values[req.Address]
		if !ok {
			v = contracts.ValueOf(c.codec.Schema.Lookup(req.Address.Element).Kind, 0)
		}
		reply, err := c.codec.EncodeWrite(req.Address, v)
		if err != nil {
			return nil, nil
		}
		return reply, nil
	case sysex.ParamChange:
		c.values[req.Address] = req.Value
		if c.echo {
			return append([]byte(nil), msg...), nil
		}
	}
	return nil, nil
}

func (c *Console) attach(p *port) {
	c.mu.Lock()
	c.port = p
	c.mu.Unlock()
}

func (c *Console) detach(p *port) {
	c.mu.Lock()
	c.closes++
	if c.port == p {
		c.port = nil
	}
	c.mu.Unlock()
}
