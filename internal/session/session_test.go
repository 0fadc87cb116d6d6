package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nixcodex/ls9/internal/logger"
	"github.com/nixcodex/ls9/internal/sysex"
	"github.com/nixcodex/ls9/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const elementMute = 53

// fakePort records what the session sends and lets the test play the
// console.
type fakePort struct {
	mu      sync.Mutex
	handler func([]byte)
	sent    [][]byte
	sendErr error
	closes  int

	sentc chan []byte
}

func newFakePort() *fakePort {
	return &fakePort{sentc: make(chan []byte, 64)}
}

func (p *fakePort) Send(msg []byte) error {
	p.mu.Lock()
	err := p.sendErr
	p.sent = append(p.sent, append([]byte(nil), msg...))
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.sentc <- msg
	return nil
}

func (p *fakePort) OnReceive(fn func([]byte)) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closes++
	p.mu.Unlock()
	return nil
}

func (p *fakePort) deliver(msg []byte) {
	p.mu.Lock()
	fn := p.handler
	p.mu.Unlock()
	fn(msg)
}

func (p *fakePort) sends() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func (p *fakePort) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *fakePort) nextSent(t *testing.T) []byte {
	t.Helper()
	select {
	case msg := <-p.sentc:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("nothing sent")
		return nil
	}
}

func (p *fakePort) expectQuiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case msg := <-p.sentc:
		t.Fatalf("unexpected send % X", msg)
	case <-time.After(d):
	}
}

func testCodec() *sysex.Codec {
	schema := contracts.DefaultSchema()
	schema[elementMute] = contracts.ParamDef{Name: "mute", Kind: contracts.KindBool}
	return sysex.New(sysex.WithSchema(schema))
}

func newTestSession(t *testing.T, cfg Config) (*Session, *fakePort, *sysex.Codec) {
	t.Helper()
	port := newFakePort()
	codec := testCodec()
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	s := New(port, codec, cfg)
	t.Cleanup(func() { s.Close() })
	return s, port, codec
}

func wait(t *testing.T, f contracts.Future) (contracts.Value, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	v, err := f.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("request %d did not finish", f.ID())
	}
	return v, err
}

func paramChange(t *testing.T, codec *sysex.Codec, addr contracts.Address, v contracts.Value) []byte {
	t.Helper()
	frame, err := codec.EncodeWrite(addr, v)
	if err != nil {
		t.Fatalf("EncodeWrite() error = %v", err)
	}
	return frame
}

func TestWriteMuteScenario(t *testing.T) {
	s, port, codec := newTestSession(t, Config{})
	addr := contracts.Address{Element: elementMute, Channel: 3}

	f := s.WriteAsync(addr, contracts.BoolValue(true))

	sent := port.nextSent(t)
	want := []byte{0xF0, 0x43, 0x10, 0x3E, 0x12, 0x01, 0x00, 0x35, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x01, 0xF7}
	if diff := cmp.Diff(want, sent); diff != "" {
		t.Fatalf("sent frame mismatch (-want +got):\n%s", diff)
	}
	if f.State() != contracts.StatePending {
		t.Fatalf("state before ack = %v, want pending", f.State())
	}

	ack, err := codec.Decode(sent)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	port.deliver(paramChange(t, codec, ack.Address, ack.Value))

	v, err := wait(t, f)
	if err != nil {
		t.Fatalf("write error = %v", err)
	}
	if f.State() != contracts.StateCompleted || !v.Bool() {
		t.Errorf("write = %v, %v, want completed true", f.State(), v)
	}
	if n := port.sends(); n != 1 {
		t.Errorf("sends = %d, want 1", n)
	}
}

func TestReadReturnsValue(t *testing.T) {
	s, port, codec := newTestSession(t, Config{})
	addr := contracts.Address{Element: contracts.ElementFader, Channel: 7}

	f := s.ReadAsync(addr)
	req, err := codec.Decode(port.nextSent(t))
	if err != nil || req.Type != sysex.ParamRequest || req.Address != addr {
		t.Fatalf("sent %+v, %v, want request for %v", req, err, addr)
	}
	port.deliver(paramChange(t, codec, addr, contracts.IntValue(-600)))

	v, err := wait(t, f)
	if err != nil || v.Int() != -600 {
		t.Errorf("read = %v, %v, want -600", v, err)
	}
}

func TestOneInFlightPerAddress(t *testing.T) {
	s, port, codec := newTestSession(t, Config{})
	a := contracts.Address{Element: contracts.ElementFader, Channel: 1}
	b := contracts.Address{Element: contracts.ElementFader, Channel: 2}

	f1 := s.ReadAsync(a)
	port.nextSent(t)
	f2 := s.WriteAsync(a, contracts.IntValue(10))
	f3 := s.ReadAsync(a)
	fb := s.ReadAsync(b)

	// b does not wait for a.
	if got, _ := codec.Decode(port.nextSent(t)); got.Address != b {
		t.Fatalf("second send for %v, want %v", got.Address, b)
	}
	port.expectQuiet(t, 30*time.Millisecond)

	port.deliver(paramChange(t, codec, a, contracts.IntValue(1)))
	if v, err := wait(t, f1); err != nil || v.Int() != 1 {
		t.Fatalf("first read = %v, %v", v, err)
	}

	next, _ := codec.Decode(port.nextSent(t))
	if next.Type != sysex.ParamChange || next.Value.Int() != 10 {
		t.Fatalf("after first reply sent %+v, want the write", next)
	}
	port.expectQuiet(t, 30*time.Millisecond)
	if f2.State() != contracts.StatePending || f3.State() != contracts.StatePending {
		t.Fatalf("states = %v, %v, want pending", f2.State(), f3.State())
	}

	port.deliver(paramChange(t, codec, a, contracts.IntValue(10)))
	if _, err := wait(t, f2); err != nil {
		t.Fatalf("write error = %v", err)
	}
	if got, _ := codec.Decode(port.nextSent(t)); got.Type != sysex.ParamRequest {
		t.Fatalf("third send = %+v, want request", got)
	}
	port.deliver(paramChange(t, codec, a, contracts.IntValue(10)))
	if v, err := wait(t, f3); err != nil || v.Int() != 10 {
		t.Errorf("third read = %v, %v", v, err)
	}

	port.deliver(paramChange(t, codec, b, contracts.IntValue(2)))
	if v, err := wait(t, fb); err != nil || v.Int() != 2 {
		t.Errorf("read of b = %v, %v", v, err)
	}
}

func TestTimeoutRetries(t *testing.T) {
	tests := []struct {
		retries int
	}{
		{0}, {1}, {3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("retries=%d", tt.retries), func(t *testing.T) {
			s, port, _ := newTestSession(t, Config{Timeout: 15 * time.Millisecond, MaxRetries: tt.retries})
			f := s.ReadAsync(contracts.Address{Element: contracts.ElementFader, Channel: 2})

			_, err := wait(t, f)
			if !errors.Is(err, contracts.ErrTimedOut) {
				t.Fatalf("error = %v, want ErrTimedOut", err)
			}
			if f.State() != contracts.StateTimedOut {
				t.Errorf("state = %v, want timed out", f.State())
			}
			if got, want := port.sends(), tt.retries+1; got != want {
				t.Errorf("sends = %d, want %d", got, want)
			}
		})
	}
}

func TestLateReplyAfterRetry(t *testing.T) {
	s, port, codec := newTestSession(t, Config{Timeout: 30 * time.Millisecond, MaxRetries: 2})
	addr := contracts.Address{Element: contracts.ElementFader, Channel: 4}

	f := s.ReadAsync(addr)
	port.nextSent(t)
	port.nextSent(t) // first retry
	port.deliver(paramChange(t, codec, addr, contracts.IntValue(5)))

	if v, err := wait(t, f); err != nil || v.Int() != 5 {
		t.Fatalf("read = %v, %v, want 5", v, err)
	}
	port.expectQuiet(t, 80*time.Millisecond)
}

func TestSendFailure(t *testing.T) {
	s, port, _ := newTestSession(t, Config{MaxRetries: 2})
	port.sendErr = errors.New("device gone")

	f := s.WriteAsync(contracts.Address{Element: contracts.ElementFader}, contracts.IntValue(1))
	_, err := wait(t, f)
	if !errors.Is(err, contracts.ErrTransportWrite) {
		t.Fatalf("error = %v, want ErrTransportWrite", err)
	}
	if f.State() != contracts.StateFailed {
		t.Errorf("state = %v, want failed", f.State())
	}
	if n := port.sends(); n != 3 {
		t.Errorf("sends = %d, want 3", n)
	}
}

func TestEncodeErrorFailsImmediately(t *testing.T) {
	s, port, _ := newTestSession(t, Config{})

	f := s.WriteAsync(contracts.Address{Element: elementMute}, contracts.IntValue(1))
	if _, err := wait(t, f); !errors.Is(err, contracts.ErrInvalidValue) {
		t.Errorf("error = %v, want ErrInvalidValue", err)
	}
	f = s.ReadAsync(contracts.Address{Channel: contracts.MaxAddressField + 1})
	if _, err := wait(t, f); !errors.Is(err, contracts.ErrInvalidAddress) {
		t.Errorf("error = %v, want ErrInvalidAddress", err)
	}
	if n := port.sends(); n != 0 {
		t.Errorf("sends = %d, want 0", n)
	}
}

func TestWriteAckNone(t *testing.T) {
	s, port, _ := newTestSession(t, Config{WriteAck: contracts.WriteAckNone})
	addr := contracts.Address{Element: contracts.ElementFader, Channel: 8}

	f1 := s.WriteAsync(addr, contracts.IntValue(1))
	f2 := s.WriteAsync(addr, contracts.IntValue(2))
	if _, err := wait(t, f1); err != nil {
		t.Fatalf("first write error = %v", err)
	}
	if _, err := wait(t, f2); err != nil {
		t.Fatalf("second write error = %v", err)
	}
	if n := port.sends(); n != 2 {
		t.Errorf("sends = %d, want 2", n)
	}
}

func TestCloseCancelsPending(t *testing.T) {
	s, port, _ := newTestSession(t, Config{})

	var futures []contracts.Future
	for ch := 0; ch < 3; ch++ {
		addr := contracts.Address{Element: contracts.ElementFader, Channel: ch}
		futures = append(futures, s.ReadAsync(addr), s.ReadAsync(addr))
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for i, f := range futures {
		if _, err := wait(t, f); !errors.Is(err, contracts.ErrSessionClosed) {
			t.Errorf("future %d error = %v, want ErrSessionClosed", i, err)
		}
		if f.State() != contracts.StateFailed {
			t.Errorf("future %d state = %v, want failed", i, f.State())
		}
	}

	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if n := port.closeCount(); n != 1 {
		t.Errorf("port closed %d times, want 1", n)
	}

	if _, err := s.Read(context.Background(), contracts.Address{Element: contracts.ElementFader}); !errors.Is(err, contracts.ErrSessionClosed) {
		t.Errorf("Read after Close error = %v, want ErrSessionClosed", err)
	}
	if _, err := s.NextParamTouched(context.Background()); !errors.Is(err, contracts.ErrSessionClosed) {
		t.Errorf("NextParamTouched after Close error = %v, want ErrSessionClosed", err)
	}
}

func TestMalformedInboundDropped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, port, codec := newTestSession(t, Config{Logger: logger.NewFromZap(zap.New(core))})
	addr := contracts.Address{Element: contracts.ElementFader, Channel: 11}

	f := s.ReadAsync(addr)
	port.nextSent(t)

	good := paramChange(t, codec, addr, contracts.IntValue(77))
	bad := append([]byte(nil), good[:len(good)-3]...)
	bad = append(bad, 0xF7)
	port.deliver(bad)
	port.deliver([]byte{0xF0, 0x41, 0x10, 0x42, 0x12, 0x01, 0xF7})
	port.deliver(good)

	if v, err := wait(t, f); err != nil || v.Int() != 77 {
		t.Fatalf("read = %v, %v, want 77", v, err)
	}
	if n := logs.FilterMessage("Dropping malformed message").Len(); n != 1 {
		t.Errorf("malformed warnings = %d, want 1", n)
	}
	if n := logs.FilterMessage("Ignoring message").Len(); n != 1 {
		t.Errorf("ignored messages = %d, want 1", n)
	}
}

func TestContextCancelStopsWaiting(t *testing.T) {
	s, port, codec := newTestSession(t, Config{})
	addr := contracts.Address{Element: contracts.ElementFader, Channel: 3}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Read(ctx, addr); !errors.Is(err, context.Canceled) {
		t.Fatalf("Read() error = %v, want context.Canceled", err)
	}

	// The request is still in flight and blocks the next one.
	port.nextSent(t)
	f := s.ReadAsync(addr)
	port.expectQuiet(t, 30*time.Millisecond)
	port.deliver(paramChange(t, codec, addr, contracts.IntValue(1)))
	port.nextSent(t)
	port.deliver(paramChange(t, codec, addr, contracts.IntValue(2)))
	if v, err := wait(t, f); err != nil || v.Int() != 2 {
		t.Errorf("read = %v, %v, want 2", v, err)
	}
}

func TestSubscriptions(t *testing.T) {
	s, port, codec := newTestSession(t, Config{})
	fader := contracts.Address{Element: contracts.ElementFader, Channel: 5}
	mute := contracts.Address{Element: elementMute, Channel: 5}

	all := make(chan contracts.Address, 8)
	one := make(chan contracts.Value, 8)
	unsubAll := s.Subscribe(func(addr contracts.Address, _ contracts.Value) { all <- addr })
	s.SubscribeParam(mute, func(_ contracts.Address, v contracts.Value) { one <- v })

	touched := make(chan contracts.Address, 1)
	go func() {
		addr, err := s.NextParamTouched(context.Background())
		if err == nil {
			touched <- addr
		}
	}()
	time.Sleep(20 * time.Millisecond)

	port.deliver(paramChange(t, codec, fader, contracts.IntValue(3)))
	port.deliver(paramChange(t, codec, mute, contracts.BoolValue(true)))

	for _, want := range []contracts.Address{fader, mute} {
		select {
		case got := <-all:
			if got != want {
				t.Errorf("Subscribe got %v, want %v", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("Subscribe missed %v", want)
		}
	}
	select {
	case v := <-one:
		if v.Kind() != contracts.KindBool || !v.Bool() {
			t.Errorf("SubscribeParam got %v, want true", v)
		}
	case <-time.After(time.Second):
		t.Fatal("SubscribeParam missed mute change")
	}
	select {
	case got := <-touched:
		if got != fader {
			t.Errorf("NextParamTouched = %v, want %v", got, fader)
		}
	case <-time.After(time.Second):
		t.Fatal("NextParamTouched did not return")
	}

	unsubAll()
	port.deliver(paramChange(t, codec, fader, contracts.IntValue(4)))
	select {
	case got := <-all:
		t.Errorf("unsubscribed callback got %v", got)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestNextParamTouchedContext(t *testing.T) {
	s, _, _ := newTestSession(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.NextParamTouched(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("NextParamTouched() error = %v, want DeadlineExceeded", err)
	}
}
