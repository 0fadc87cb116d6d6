package contracts

import (
	"context"
	"time"
)

// Operation is the kind of request sent to the console.
type Operation uint8

const (
	OpRead Operation = iota
	OpWrite
)

func (o Operation) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// RequestState is the lifecycle position of a request. Every state other
// than StatePending is terminal.
type RequestState int32

const (
	StatePending RequestState = iota
	StateCompleted
	StateFailed
	StateTimedOut
)

func (s RequestState) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed out"
	default:
		return "pending"
	}
}

// Future is the caller's handle on a submitted request.
type Future interface {
	ID() uint64                              // Correlation token assigned at submission.
	Done() <-chan struct{}                   // Closed once the request reaches a terminal state.
	State() RequestState                     // Current state.
	Result() (Value, error)                  // Outcome; only meaningful after Done is closed.
	Wait(ctx context.Context) (Value, error) // Blocks until Done or ctx is cancelled.
}

// ChangeFunc receives every parameter change reported by the console.
type ChangeFunc func(addr Address, value Value)

// Console is a control session with one mixing console.
type Console interface {
	// Read requests the current value of addr and waits for the reply.
	Read(ctx context.Context, addr Address) (Value, error)
	// Write sets addr to value and waits for the console to acknowledge it.
	Write(ctx context.Context, addr Address, value Value) error
	// ReadAsync submits a read and returns immediately.
	ReadAsync(addr Address) Future
	// WriteAsync submits a write and returns immediately.
	WriteAsync(addr Address, value Value) Future
	// Fade moves an integer parameter linearly to target over d.
	Fade(ctx context.Context, addr Address, target int32, d time.Duration) error
	// ChannelName reads the display name of a channel.
	ChannelName(ctx context.Context, channel int) (string, error)
	// Subscribe registers fn for changes of any parameter.
	Subscribe(fn ChangeFunc) (unsubscribe func())
	// SubscribeParam registers fn for changes of addr only.
	SubscribeParam(addr Address, fn ChangeFunc) (unsubscribe func())
	// NextParamTouched waits for the next parameter change and returns its address.
	NextParamTouched(ctx context.Context) (Address, error)
	// Close cancels outstanding requests and releases the port.
	Close() error
}
