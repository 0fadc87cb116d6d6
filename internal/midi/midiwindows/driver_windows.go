//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/nixcodex/ls9/internal/midi"
	"github.com/nixcodex/ls9/internal/midi/stream"
	"github.com/nixcodex/ls9/sdk/contracts"
	"go.uber.org/multierr"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type (
	HMIDIIN  windows.Handle
	HMIDIOUT windows.Handle
)

// Constants for callback flags
const (
	CALLBACK_NULL     = 0x00000000 // No callback
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_LONGDATA  = 0x3C4 // SysEx buffer filled
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

const (
	MHDR_DONE = 0x00000001 // Buffer returned by the driver

	sysexBuffers    = 4
	sysexBufferSize = 1024
	sendTimeout     = time.Second
)

// Struct representing MIDI input device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Struct representing MIDI output device capabilities
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// midiHdr mirrors MIDIHDR.
type midiHdr struct {
	lpData          uintptr
	dwBufferLength  uint32
	dwBytesRecorded uint32
	dwUser          uintptr
	dwFlags         uint32
	lpNext          uintptr
	reserved        uintptr
	dwOffset        uint32
	dwReserved      [8]uintptr
}

// Load the winmm.dll library and required functions
var (
	winmm                     = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs      = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps      = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen            = winmm.NewProc("midiInOpen")
	procMidiInStart           = winmm.NewProc("midiInStart")
	procMidiInStop            = winmm.NewProc("midiInStop")
	procMidiInReset           = winmm.NewProc("midiInReset")
	procMidiInClose           = winmm.NewProc("midiInClose")
	procMidiInPrepareHeader   = winmm.NewProc("midiInPrepareHeader")
	procMidiInUnprepareHeader = winmm.NewProc("midiInUnprepareHeader")
	procMidiInAddBuffer       = winmm.NewProc("midiInAddBuffer")
	procMidiOutGetNumDevs     = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps     = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen           = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg       = winmm.NewProc("midiOutShortMsg")
	procMidiOutLongMsg        = winmm.NewProc("midiOutLongMsg")
	procMidiOutPrepareHeader  = winmm.NewProc("midiOutPrepareHeader")
	procMidiOutUnprepareHdr   = winmm.NewProc("midiOutUnprepareHeader")
	procMidiOutReset          = winmm.NewProc("midiOutReset")
	procMidiOutClose          = winmm.NewProc("midiOutClose")
)

// windows.NewCallback slots are never released, so a single callback serves
// every port and finds its port through the instance id.
var (
	callbackOnce sync.Once
	callback     uintptr

	registryMu sync.Mutex
	registry   = make(map[uintptr]*port)
	nextID     uintptr
)

// Driver opens console ports through the Windows multimedia API.
type Driver struct {
	logger contracts.Logger
}

// NewDriver creates a winmm driver.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	if err := winmm.Load(); err != nil {
		return nil, fmt.Errorf("%w: loading winmm.dll: %v", contracts.ErrDeviceUnavailable, err)
	}
	options.Logger.Info("MIDI driver created for Windows")
	return &Driver{logger: options.Logger}, nil
}

func inputNames() []string {
	r0, _, _ := procMidiInGetNumDevs.Call()
	names := make([]string, uint32(r0))
	for i := range names {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r1 == 0 {
			names[i] = windows.UTF16ToString(caps.szPname[:])
		}
	}
	return names
}

func outputNames() ([]string, []midiOutCaps) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	n := uint32(r0)
	names := make([]string, n)
	caps := make([]midiOutCaps, n)
	for i := range names {
		r1, _, _ := procMidiOutGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps[i])), unsafe.Sizeof(caps[i]))
		if r1 == 0 {
			names[i] = windows.UTF16ToString(caps[i].szPname[:])
		}
	}
	return names, caps
}

// ListPorts merges input and output devices by name.
func (d *Driver) ListPorts() ([]contracts.PortInfo, error) {
	ins := inputNames()
	outs, caps := outputNames()
	if len(ins) == 0 && len(outs) == 0 {
		d.logger.Warn("No MIDI devices found")
		return nil, errors.New("no MIDI devices found")
	}

	var ports []contracts.PortInfo
	index := make(map[string]int)
	for _, name := range ins {
		if name == "" {
			continue
		}
		index[name] = len(ports)
		ports = append(ports, contracts.PortInfo{Name: name, EntityName: name, Input: true})
	}
	for i, name := range outs {
		if name == "" {
			continue
		}
		if j, ok := index[name]; ok {
			ports[j].Output = true
			ports[j].Manufacturer = fmt.Sprintf("MID: %d PID: %d", caps[i].wMid, caps[i].wPid)
			continue
		}
		ports = append(ports, contracts.PortInfo{
			Name:         name,
			EntityName:   name,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps[i].wMid, caps[i].wPid),
			Output:       true,
		})
	}
	return ports, nil
}

// Open opens the input and output devices matching portName and starts
// receiving.
func (d *Driver) Open(portName string) (contracts.Port, error) {
	inID, ok := midi.FindPort(inputNames(), portName)
	if !ok {
		return nil, fmt.Errorf("%w: no MIDI input matching %q", contracts.ErrDeviceUnavailable, portName)
	}
	outs, _ := outputNames()
	outID, ok := midi.FindPort(outs, portName)
	if !ok {
		return nil, fmt.Errorf("%w: no MIDI output matching %q", contracts.ErrDeviceUnavailable, portName)
	}

	callbackOnce.Do(func() { callback = windows.NewCallback(midiInCallback) })

	p := &port{logger: d.logger}
	p.asm = stream.New(p.emit)
	p.asm.Overflow = func(size int) {
		p.logger.Warn("Dropping oversized SysEx message", p.logger.Field().Int("size", size))
	}

	registryMu.Lock()
	nextID++
	p.id = nextID
	registry[p.id] = p
	registryMu.Unlock()

	if err := p.open(uintptr(inID), uintptr(outID)); err != nil {
		p.Close()
		return nil, err
	}
	d.logger.Info("MIDI device connected",
		d.logger.Field().Int("input", inID),
		d.logger.Field().Int("output", outID))
	return p, nil
}

// Close releases the driver.
func (d *Driver) Close() error {
	return nil
}

// port is an open input/output device pair.
type port struct {
	logger contracts.Logger
	id     uintptr

	in  HMIDIIN
	out HMIDIOUT

	headers []*midiHdr
	buffers [][]byte

	mu      sync.Mutex // guards handler and closing, and serialises sends
	handler func([]byte)
	closing bool

	asmMu sync.Mutex
	asm   *stream.Assembler

	closeOnce sync.Once
}

func (p *port) open(inID, outID uintptr) error {
	r1, _, err := procMidiOutOpen.Call(uintptr(unsafe.Pointer(&p.out)), outID, 0, 0, CALLBACK_NULL)
	if r1 != 0 {
		return fmt.Errorf("%w: midiOutOpen(%d): %d %v", contracts.ErrDeviceUnavailable, outID, r1, err)
	}

	r1, _, err = procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&p.in)),
		inID,
		callback,
		p.id,
		uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
	)
	if r1 != 0 {
		return fmt.Errorf("%w: midiInOpen(%d): %d %v", contracts.ErrDeviceUnavailable, inID, r1, err)
	}

	for i := 0; i < sysexBuffers; i++ {
		buf := make([]byte, sysexBufferSize)
		hdr := &midiHdr{lpData: uintptr(unsafe.Pointer(&buf[0])), dwBufferLength: sysexBufferSize}
		p.buffers = append(p.buffers, buf)
		p.headers = append(p.headers, hdr)

		if r1, _, err = procMidiInPrepareHeader.Call(uintptr(p.in), uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr)); r1 != 0 {
			return fmt.Errorf("%w: midiInPrepareHeader: %d %v", contracts.ErrDeviceUnavailable, r1, err)
		}
		if r1, _, err = procMidiInAddBuffer.Call(uintptr(p.in), uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr)); r1 != 0 {
			return fmt.Errorf("%w: midiInAddBuffer: %d %v", contracts.ErrDeviceUnavailable, r1, err)
		}
	}

	if r1, _, err = procMidiInStart.Call(uintptr(p.in)); r1 != 0 {
		return fmt.Errorf("%w: midiInStart: %d %v", contracts.ErrDeviceUnavailable, r1, err)
	}
	return nil
}

func (p *port) Send(msg []byte) error {
	if len(msg) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closing {
		return fmt.Errorf("%w: port closed", contracts.ErrTransportWrite)
	}

	if msg[0] != 0xF0 {
		var packed uintptr
		for i := 0; i < len(msg) && i < 3; i++ {
			packed |= uintptr(msg[i]) << (8 * i)
		}
		if r1, _, err := procMidiOutShortMsg.Call(uintptr(p.out), packed); r1 != 0 {
			return fmt.Errorf("%w: midiOutShortMsg: %d %v", contracts.ErrTransportWrite, r1, err)
		}
		return nil
	}

	buf := append([]byte(nil), msg...)
	defer runtime.KeepAlive(buf)
	hdr := &midiHdr{lpData: uintptr(unsafe.Pointer(&buf[0])), dwBufferLength: uint32(len(buf)), dwBytesRecorded: uint32(len(buf))}
	size := unsafe.Sizeof(*hdr)
	if r1, _, err := procMidiOutPrepareHeader.Call(uintptr(p.out), uintptr(unsafe.Pointer(hdr)), size); r1 != 0 {
		return fmt.Errorf("%w: midiOutPrepareHeader: %d %v", contracts.ErrTransportWrite, r1, err)
	}
	defer procMidiOutUnprepareHdr.Call(uintptr(p.out), uintptr(unsafe.Pointer(hdr)), size)

	if r1, _, err := procMidiOutLongMsg.Call(uintptr(p.out), uintptr(unsafe.Pointer(hdr)), size); r1 != 0 {
		return fmt.Errorf("%w: midiOutLongMsg: %d %v", contracts.ErrTransportWrite, r1, err)
	}

	// Without a callback the only way to learn the buffer is free again is
	// to poll its flags.
	deadline := time.Now().Add(sendTimeout)
	for hdr.dwFlags&MHDR_DONE == 0 {
		if time.Now().After(deadline) {
			procMidiOutReset.Call(uintptr(p.out))
			return fmt.Errorf("%w: SysEx output did not complete", contracts.ErrTransportWrite)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (p *port) OnReceive(fn func(msg []byte)) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

func (p *port) emit(msg []byte) {
	p.mu.Lock()
	fn := p.handler
	p.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (p *port) feed(data []byte) {
	p.asmMu.Lock()
	p.asm.Write(data)
	p.asmMu.Unlock()
}

func (p *port) isClosing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closing
}

// Close stops input, returns the SysEx buffers and closes both devices.
func (p *port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closing = true
		p.mu.Unlock()

		if p.in != 0 {
			procMidiInStop.Call(uintptr(p.in))
			procMidiInReset.Call(uintptr(p.in))
			for _, hdr := range p.headers {
				procMidiInUnprepareHeader.Call(uintptr(p.in), uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr))
			}
			if r1, _, callErr := procMidiInClose.Call(uintptr(p.in)); r1 != 0 {
				p.logger.Error("Failed to close MIDI input", p.logger.Field().Error("error", callErr))
				err = multierr.Append(err, fmt.Errorf("midiInClose: %d %v", r1, callErr))
			}
			p.in = 0
		}
		if p.out != 0 {
			procMidiOutReset.Call(uintptr(p.out))
			if r1, _, callErr := procMidiOutClose.Call(uintptr(p.out)); r1 != 0 {
				p.logger.Error("Failed to close MIDI output", p.logger.Field().Error("error", callErr))
				err = multierr.Append(err, fmt.Errorf("midiOutClose: %d %v", r1, callErr))
			}
			p.out = 0
		}
		p.release()
		p.logger.Info("MIDI device closed")
	})
	return err
}

func (p *port) release() {
	registryMu.Lock()
	delete(registry, p.id)
	registryMu.Unlock()
}

func lookup(id uintptr) *port {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[id]
}

// midiInCallback processes incoming MIDI messages
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	p := lookup(dwInstance)
	if p == nil {
		return 0
	}

	switch wMsg {
	case MIM_OPEN:
		p.logger.Debug("MIDI input opened")
	case MIM_CLOSE:
		p.logger.Debug("MIDI input closed")
	case MIM_DATA:
		status := byte(dwParam1 & 0xFF)
		msg := []byte{status, byte(dwParam1 >> 8 & 0x7F), byte(dwParam1 >> 16 & 0x7F)}
		p.feed(msg[:stream.MessageLen(status)])
	case MIM_LONGDATA:
		for i, hdr := range p.headers {
			if uintptr(unsafe.Pointer(hdr)) != dwParam1 {
				continue
			}
			if n := hdr.dwBytesRecorded; n > 0 {
				p.feed(p.buffers[i][:n])
			}
			if !p.isClosing() {
				procMidiInAddBuffer.Call(uintptr(p.in), uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr))
			}
			break
		}
	case MIM_ERROR, MIM_LONGERROR:
		p.logger.Error(fmt.Sprintf("MIDI error: msg=0x%X", wMsg))
	case MIM_MOREDATA:
		p.logger.Debug("Received MIM_MOREDATA message; ignored")
	default:
		p.logger.Warn(fmt.Sprintf("Unknown MIDI message: 0x%X", wMsg))
	}

	return 0
}
