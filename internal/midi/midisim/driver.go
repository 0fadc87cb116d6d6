package midisim

import (
	"fmt"
	"sync"
	"time"

	"github.com/nixcodex/ls9/internal/midi"
	"github.com/nixcodex/ls9/sdk/contracts"
)

// Driver exposes a set of emulated consoles as MIDI ports.
type Driver struct {
	mu       sync.Mutex
	consoles []*Console
	closed   bool
}

// NewDriver returns a driver serving consoles.
func NewDriver(consoles ...*Console) *Driver {
	return &Driver{consoles: consoles}
}

// ListPorts lists one duplex port per console.
func (d *Driver) ListPorts() ([]contracts.PortInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ports := make([]contracts.PortInfo, 0, len(d.consoles))
	for _, c := range d.consoles {
		ports = append(ports, contracts.PortInfo{
			Name:         c.name,
			Manufacturer: "Yamaha",
			EntityName:   "LS9 (simulated)",
			Input:        true,
			Output:       true,
		})
	}
	return ports, nil
}

// Open connects to the console whose name matches portName.
func (d *Driver) Open(portName string) (contracts.Port, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("%w: driver closed", contracts.ErrDeviceUnavailable)
	}
	names := make([]string, len(d.consoles))
	for i, c := range d.consoles {
		names[i] = c.name
	}
	i, ok := midi.FindPort(names, portName)
	if !ok {
		return nil, fmt.Errorf("%w: no port matching %q", contracts.ErrDeviceUnavailable, portName)
	}

	c := d.consoles[i]
	p := &port{
		console: c,
		delay:   c.delay,
		queue:   make(chan []byte, queueSize),
		done:    make(chan struct{}),
	}
	c.attach(p)
	p.wg.Add(1)
	go p.run()
	return p, nil
}

// Close marks the driver closed. Open ports stay usable until closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// port delivers console output from its own goroutine, like a hardware
// callback thread would.
type port struct {
	console *Console
	delay   time.Duration

	mu      sync.RWMutex
	handler func([]byte)

	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (p *port) Send(msg []byte) error {
	select {
	case <-p.done:
		return fmt.Errorf("%w: port closed", contracts.ErrTransportWrite)
	default:
	}
	reply, err := p.console.handle(msg)
	if err != nil {
		return err
	}
	if reply != nil {
		p.deliver(reply)
	}
	return nil
}

func (p *port) OnReceive(fn func(msg []byte)) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

func (p *port) Close() error {
	p.console.detach(p)
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
	return nil
}

func (p *port) deliver(msg []byte) {
	select {
	case p.queue <- msg:
	case <-p.done:
	}
}

func (p *port) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.queue:
			if p.delay > 0 {
				t := time.NewTimer(p.delay)
				select {
				case <-t.C:
				case <-p.done:
					t.Stop()
					return
				}
			}
			p.mu.RLock()
			fn := p.handler
			p.mu.RUnlock()
			if fn != nil {
				fn(msg)
			}
		}
	}
}
