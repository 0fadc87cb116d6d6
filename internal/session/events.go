package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/nixcodex/ls9/sdk/contracts"
)

type change struct {
	addr  contracts.Address
	value contracts.Value
}

type subscriber struct {
	addr *contracts.Address // nil matches every address
	fn   contracts.ChangeFunc
}

// dispatcher delivers parameter changes to subscribers on its own goroutine,
// so callbacks may block or call back into the session.
type dispatcher struct {
	log contracts.Logger

	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]subscriber
	waiters map[uint64]chan contracts.Address
	closed  bool

	eventc chan change
}

func newDispatcher(size int, log contracts.Logger) *dispatcher {
	return &dispatcher{
		log:     log,
		subs:    make(map[uint64]subscriber),
		waiters: make(map[uint64]chan contracts.Address),
		eventc:  make(chan change, size),
	}
}

func (d *dispatcher) run() {
	for ev := range d.eventc {
		d.mu.Lock()
		fns := make([]contracts.ChangeFunc, 0, len(d.subs))
		for _, sub := range d.subs {
			if sub.addr == nil || *sub.addr == ev.addr {
				fns = append(fns, sub.fn)
			}
		}
		d.mu.Unlock()

		for _, fn := range fns {
			fn(ev.addr, ev.value)
		}
	}
}

// publish is called from the session loop and never blocks.
func (d *dispatcher) publish(addr contracts.Address, value contracts.Value) {
	d.mu.Lock()
	for id, w := range d.waiters {
		w <- addr
		delete(d.waiters, id)
	}
	hasSubs := len(d.subs) > 0
	d.mu.Unlock()

	if !hasSubs {
		return
	}
	select {
	case d.eventc <- change{addr: addr, value: value}:
	default:
		d.log.Warn("Event buffer full; dropping parameter change", d.log.Field().String("address", addr.String()))
	}
}

func (d *dispatcher) subscribe(addr *contracts.Address, fn contracts.ChangeFunc) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return func() {}
	}
	d.nextID++
	id := d.nextID
	d.subs[id] = subscriber{addr: addr, fn: fn}
	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

// wait registers a one-shot waiter for the next change.
func (d *dispatcher) wait() (uint64, <-chan contracts.Address, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, nil, false
	}
	d.nextID++
	ch := make(chan contracts.Address, 1)
	d.waiters[d.nextID] = ch
	return d.nextID, ch, true
}

func (d *dispatcher) cancelWait(id uint64) {
	d.mu.Lock()
	delete(d.waiters, id)
	d.mu.Unlock()
}

// close stops delivery once queued events have been handed out.
func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.subs = make(map[uint64]subscriber)
	close(d.eventc)
}

// Subscribe registers fn for every parameter change reported by the console,
// whether or not it answers a request of this session.
func (s *Session) Subscribe(fn contracts.ChangeFunc) func() {
	return s.events.subscribe(nil, fn)
}

// SubscribeParam registers fn for changes of addr.
func (s *Session) SubscribeParam(addr contracts.Address, fn contracts.ChangeFunc) func() {
	return s.events.subscribe(&addr, fn)
}

// NextParamTouched waits for the next parameter change and returns its
// address. It is typically used to let an operator pick a control by moving
// it on the console.
func (s *Session) NextParamTouched(ctx context.Context) (contracts.Address, error) {
	id, ch, ok := s.events.wait()
	if !ok {
		return contracts.Address{}, fmt.Errorf("%w: waiting for parameter change", contracts.ErrSessionClosed)
	}
	defer s.events.cancelWait(id)

	select {
	case addr := <-ch:
		return addr, nil
	case <-ctx.Done():
		return contracts.Address{}, ctx.Err()
	case <-s.done:
		return contracts.Address{}, fmt.Errorf("%w: waiting for parameter change", contracts.ErrSessionClosed)
	}
}
