package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nixcodex/ls9/sdk/contracts"
)

// request is one read or write travelling through the session. All fields
// except state, result and err belong to the loop goroutine; result and err
// are published by closing done.
type request struct {
	id    uint64
	op    contracts.Operation
	addr  contracts.Address
	value contracts.Value
	frame []byte

	attempts int
	inFlight bool
	timer    *time.Timer

	done   chan struct{}
	state  atomic.Int32
	result contracts.Value
	err    error
}

func newRequest(id uint64, op contracts.Operation, addr contracts.Address, value contracts.Value) *request {
	return &request{
		id:    id,
		op:    op,
		addr:  addr,
		value: value,
		done:  make(chan struct{}),
	}
}

func (r *request) ID() uint64            { return r.id }
func (r *request) Done() <-chan struct{} { return r.done }

func (r *request) State() contracts.RequestState {
	return contracts.RequestState(r.state.Load())
}

func (r *request) Result() (contracts.Value, error) {
	select {
	case <-r.done:
		return r.result, r.err
	default:
		return contracts.Value{}, nil
	}
}

func (r *request) Wait(ctx context.Context) (contracts.Value, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return contracts.Value{}, ctx.Err()
	}
}

// finish moves the request to a terminal state. It must be called exactly
// once.
func (r *request) finish(state contracts.RequestState, v contracts.Value, err error) {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.result = v
	r.err = err
	r.state.Store(int32(state))
	close(r.done)
}

// lane queues the requests for one address. Only its head is ever on the
// wire.
type lane struct {
	queue []*request
}

func (l *lane) head() *request {
	if len(l.queue) == 0 {
		return nil
	}
	return l.queue[0]
}
