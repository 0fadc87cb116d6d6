// Package session correlates parameter requests with console replies over a
// MIDI port.
//
// A single goroutine owns the table of outstanding requests. Submissions,
// inbound messages and timer expiries are all handed to it over channels,
// so the table is never touched concurrently. Requests are queued per
// address and only the oldest request for an address is on the wire at any
// time: the console's reply carries the address but nothing else that
// could tell two requests apart.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nixcodex/ls9/internal/logger"
	"github.com/nixcodex/ls9/internal/sysex"
	"github.com/nixcodex/ls9/sdk/contracts"
	"go.uber.org/zap"
)

// Defaults applied to zero Config fields.
const (
	DefaultTimeout    = time.Second
	DefaultFadeStep   = 10 * time.Millisecond
	DefaultBufferSize = 256
)

// Config tunes a Session.
type Config struct {
	Timeout    time.Duration      // Per-attempt reply deadline.
	MaxRetries int                // Resubmissions after a timeout or send failure.
	WriteAck   contracts.WriteAck // When writes complete.
	FadeStep   time.Duration      // Interval between fade writes.
	BufferSize int                // Capacity of the inbound and event queues.
	Logger     contracts.Logger
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.FadeStep <= 0 {
		c.FadeStep = DefaultFadeStep
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Logger == nil {
		c.Logger = logger.NewFromZap(zap.NewNop())
	}
	return c
}

type timeoutEvent struct {
	addr    contracts.Address
	id      uint64
	attempt int
}

// Session is a control session with one console. It implements
// contracts.Console.
type Session struct {
	port  contracts.Port
	codec *sysex.Codec
	cfg   Config
	log   contracts.Logger

	nextID atomic.Uint64

	submitc  chan *request
	inboundc chan []byte
	timeoutc chan timeoutEvent
	closec   chan struct{}
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error

	lanes  map[contracts.Address]*lane // owned by run
	events *dispatcher
}

var _ contracts.Console = (*Session)(nil)

// New starts a session on port. The session takes ownership of the port and
// closes it on Close.
func New(port contracts.Port, codec *sysex.Codec, cfg Config) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		port:     port,
		codec:    codec,
		cfg:      cfg,
		log:      cfg.Logger,
		submitc:  make(chan *request),
		inboundc: make(chan []byte, cfg.BufferSize),
		timeoutc: make(chan timeoutEvent),
		closec:   make(chan struct{}),
		done:     make(chan struct{}),
		lanes:    make(map[contracts.Address]*lane),
	}
	s.events = newDispatcher(cfg.BufferSize, cfg.Logger)

	port.OnReceive(s.receive)
	go s.events.run()
	go s.run()
	return s
}

// ReadAsync submits a read of addr.
func (s *Session) ReadAsync(addr contracts.Address) contracts.Future {
	r := newRequest(s.nextID.Add(1), contracts.OpRead, addr, contracts.Value{})
	frame, err := s.codec.EncodeRead(addr)
	if err != nil {
		r.finish(contracts.StateFailed, contracts.Value{}, err)
		return r
	}
	r.frame = frame
	return s.submit(r)
}

// WriteAsync submits a write of value to addr.
func (s *Session) WriteAsync(addr contracts.Address, value contracts.Value) contracts.Future {
	r := newRequest(s.nextID.Add(1), contracts.OpWrite, addr, value)
	frame, err := s.codec.EncodeWrite(addr, value)
	if err != nil {
		r.finish(contracts.StateFailed, contracts.Value{}, err)
		return r
	}
	r.frame = frame
	return s.submit(r)
}

// Read reads addr and waits for the reply. Cancelling ctx stops the wait;
// the request itself runs until it is answered or times out.
func (s *Session) Read(ctx context.Context, addr contracts.Address) (contracts.Value, error) {
	return s.ReadAsync(addr).Wait(ctx)
}

// Write writes value to addr and waits for it to complete.
func (s *Session) Write(ctx context.Context, addr contracts.Address, value contracts.Value) error {
	_, err := s.WriteAsync(addr, value).Wait(ctx)
	return err
}

// Close fails every outstanding request with ErrSessionClosed, closes the
// port and stops event delivery. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.closec) })
	<-s.done
	return s.closeErr
}

func (s *Session) submit(r *request) contracts.Future {
	select {
	case s.submitc <- r:
	case <-s.closec:
		r.finish(contracts.StateFailed, contracts.Value{}, fmt.Errorf("%w: %s %s", contracts.ErrSessionClosed, r.op, r.addr))
	}
	return r
}

// receive is the port callback. It may run on any goroutine and must not
// block.
func (s *Session) receive(msg []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	m := make([]byte, len(msg))
	copy(m, msg)
	select {
	case s.inboundc <- m:
	default:
		s.log.Warn("Inbound buffer full; dropping MIDI message", s.log.Field().Bytes("message", m))
	}
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case r := <-s.submitc:
			s.enqueue(r)
		case msg := <-s.inboundc:
			s.handleInbound(msg)
		case ev := <-s.timeoutc:
			s.handleTimeout(ev)
		case <-s.closec:
			s.shutdown()
			return
		}
	}
}

func (s *Session) enqueue(r *request) {
	l, ok := s.lanes[r.addr]
	if !ok {
		l = &lane{}
		s.lanes[r.addr] = l
	}
	l.queue = append(l.queue, r)
	if len(l.queue) > 1 {
		s.log.Debug("Request queued behind in-flight request",
			s.log.Field().Uint64("id", r.id),
			s.log.Field().String("address", r.addr.String()),
			s.log.Field().Int("depth", len(l.queue)-1),
		)
		return
	}
	s.advance(r.addr)
}

// advance puts the head of the lane for addr on the wire, moving on to the
// next request whenever the head completes without waiting for a reply.
func (s *Session) advance(addr contracts.Address) {
	for {
		l, ok := s.lanes[addr]
		if !ok {
			return
		}
		head := l.head()
		if head == nil {
			delete(s.lanes, addr)
			return
		}
		if head.inFlight || s.transmit(head) {
			return
		}
	}
}

// transmit sends r, retrying failed sends within the retry budget. It
// reports whether r is now waiting for a reply; otherwise r has been
// resolved.
func (s *Session) transmit(r *request) bool {
	for {
		r.attempts++
		err := s.port.Send(r.frame)
		if err == nil {
			break
		}
		s.log.Warn("Failed to send request",
			s.log.Field().Uint64("id", r.id),
			s.log.Field().String("address", r.addr.String()),
			s.log.Field().Int("attempt", r.attempts),
			s.log.Field().Error("error", err),
		)
		if r.attempts > s.cfg.MaxRetries {
			if !errors.Is(err, contracts.ErrTransportWrite) {
				err = fmt.Errorf("%w: %v", contracts.ErrTransportWrite, err)
			}
			s.resolve(r, contracts.StateFailed, contracts.Value{}, err)
			return false
		}
	}

	s.log.Debug("Sent request",
		s.log.Field().Uint64("id", r.id),
		s.log.Field().String("op", r.op.String()),
		s.log.Field().String("address", r.addr.String()),
		s.log.Field().Int("attempt", r.attempts),
		s.log.Field().Bytes("frame", r.frame),
	)

	if r.op == contracts.OpWrite && s.cfg.WriteAck == contracts.WriteAckNone {
		s.resolve(r, contracts.StateCompleted, r.value, nil)
		return false
	}

	r.inFlight = true
	ev := timeoutEvent{addr: r.addr, id: r.id, attempt: r.attempts}
	r.timer = time.AfterFunc(s.cfg.Timeout, func() {
		select {
		case s.timeoutc <- ev:
		case <-s.done:
		}
	})
	return true
}

// resolve finishes the head of its lane.
func (s *Session) resolve(r *request, state contracts.RequestState, v contracts.Value, err error) {
	if l, ok := s.lanes[r.addr]; ok && l.head() == r {
		l.queue[0] = nil
		l.queue = l.queue[1:]
	}
	r.finish(state, v, err)
}

func (s *Session) handleTimeout(ev timeoutEvent) {
	l, ok := s.lanes[ev.addr]
	if !ok {
		return
	}
	head := l.head()
	if head == nil || head.id != ev.id || head.attempts != ev.attempt || !head.inFlight {
		return
	}
	head.inFlight = false
	head.timer = nil

	if head.attempts > s.cfg.MaxRetries {
		s.log.Warn("Request timed out",
			s.log.Field().Uint64("id", head.id),
			s.log.Field().String("address", head.addr.String()),
			s.log.Field().Int("attempts", head.attempts),
		)
		s.resolve(head, contracts.StateTimedOut, contracts.Value{},
			fmt.Errorf("%w: %s %s after %d attempts", contracts.ErrTimedOut, head.op, head.addr, head.attempts))
	} else {
		s.log.Debug("Retrying request",
			s.log.Field().Uint64("id", head.id),
			s.log.Field().String("address", head.addr.String()),
			s.log.Field().Int("attempt", head.attempts+1),
		)
	}
	s.advance(ev.addr)
}

func (s *Session) handleInbound(msg []byte) {
	reply, err := s.codec.Decode(msg)
	if err != nil {
		if errors.Is(err, contracts.ErrUnsupportedMessage) {
			s.log.Debug("Ignoring message", s.log.Field().Bytes("message", msg), s.log.Field().Error("reason", err))
		} else {
			s.log.Warn("Dropping malformed message", s.log.Field().Bytes("message", msg), s.log.Field().Error("error", err))
		}
		return
	}
	if reply.Type != sysex.ParamChange {
		s.log.Debug("Ignoring parameter request from console", s.log.Field().String("address", reply.Address.String()))
		return
	}

	if l, ok := s.lanes[reply.Address]; ok {
		head := l.head()
		if head != nil && head.inFlight {
			head.inFlight = false
			s.log.Debug("Request completed",
				s.log.Field().Uint64("id", head.id),
				s.log.Field().String("address", head.addr.String()),
				s.log.Field().String("value", reply.Value.String()),
			)
			s.resolve(head, contracts.StateCompleted, reply.Value, nil)
			s.advance(reply.Address)
		}
	}

	s.events.publish(reply.Address, reply.Value)
}

func (s *Session) shutdown() {
	n := 0
	for addr, l := range s.lanes {
		for _, r := range l.queue {
			r.finish(contracts.StateFailed, contracts.Value{}, fmt.Errorf("%w: %s %s", contracts.ErrSessionClosed, r.op, r.addr))
			n++
		}
		delete(s.lanes, addr)
	}
	if n > 0 {
		s.log.Info("Cancelled outstanding requests", s.log.Field().Int("count", n))
	}
	s.closeErr = s.port.Close()
	s.events.close()
}
