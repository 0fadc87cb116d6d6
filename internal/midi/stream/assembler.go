// Package stream splits a raw MIDI byte stream into complete messages.
package stream

// DefaultMaxSysEx bounds the size of a single SysEx message.
const DefaultMaxSysEx = 4096

// Assembler reassembles complete MIDI messages from packets that may split
// or merge them. SysEx messages may span any number of packets, real-time
// bytes may appear anywhere (even inside a SysEx) and running status is
// expanded. An Assembler is not safe for concurrent use.
type Assembler struct {
	// Emit receives each complete message. The slice is owned by the
	// receiver.
	Emit func(msg []byte)
	// Overflow, if set, is called when a SysEx message exceeds MaxSysEx and
	// is discarded.
	Overflow func(size int)
	// MaxSysEx defaults to DefaultMaxSysEx.
	MaxSysEx int

	sysex    []byte
	inSysEx  bool
	dropping bool
	running  byte
	msg      []byte
	need     int
}

// New returns an Assembler calling emit for every complete message.
func New(emit func(msg []byte)) *Assembler {
	return &Assembler{Emit: emit, MaxSysEx: DefaultMaxSysEx}
}

// Write feeds bytes into the assembler. It never fails; stray data bytes
// without a status are discarded.
func (a *Assembler) Write(p []byte) (int, error) {
	for _, b := range p {
		a.feed(b)
	}
	return len(p), nil
}

// Reset drops any partial message and the running status.
func (a *Assembler) Reset() {
	a.sysex = a.sysex[:0]
	a.inSysEx = false
	a.dropping = false
	a.running = 0
	a.msg = a.msg[:0]
	a.need = 0
}

func (a *Assembler) feed(b byte) {
	switch {
	case b >= 0xF8:
		a.emit([]byte{b})
	case b == 0xF0:
		a.msg = a.msg[:0]
		a.need = 0
		a.running = 0
		a.inSysEx = true
		a.dropping = false
		a.sysex = append(a.sysex[:0], b)
	case b == 0xF7:
		if a.inSysEx {
			a.inSysEx = false
			if a.dropping {
				a.dropping = false
				return
			}
			a.emit(append(a.sysex, b))
			a.sysex = a.sysex[:0]
		}
	case b&0x80 != 0:
		// Any other status aborts a pending SysEx.
		a.inSysEx = false
		a.dropping = false
		a.sysex = a.sysex[:0]
		a.status(b)
	case a.inSysEx:
		if a.dropping {
			return
		}
		if len(a.sysex) >= a.maxSysEx() {
			a.dropping = true
			if a.Overflow != nil {
				a.Overflow(len(a.sysex) + 1)
			}
			a.sysex = a.sysex[:0]
			return
		}
		a.sysex = append(a.sysex, b)
	default:
		a.data(b)
	}
}

func (a *Assembler) status(b byte) {
	n := dataLen(b)
	if b < 0xF0 {
		a.running = b
	} else {
		a.running = 0
	}
	a.msg = append(a.msg[:0], b)
	a.need = n
	if n == 0 {
		a.flush()
	}
}

func (a *Assembler) data(b byte) {
	if len(a.msg) == 0 {
		if a.running == 0 {
			return
		}
		a.msg = append(a.msg, a.running)
		a.need = dataLen(a.running)
	}
	a.msg = append(a.msg, b)
	if a.need--; a.need == 0 {
		a.flush()
	}
}

func (a *Assembler) flush() {
	a.emit(a.msg)
	a.msg = a.msg[:0]
}

func (a *Assembler) emit(msg []byte) {
	if a.Emit == nil {
		return
	}
	out := make([]byte, len(msg))
	copy(out, msg)
	a.Emit(out)
}

func (a *Assembler) maxSysEx() int {
	if a.MaxSysEx <= 0 {
		return DefaultMaxSysEx
	}
	return a.MaxSysEx
}

// MessageLen returns the length of a short message starting with status,
// status byte included. SysEx has no fixed length and reports 1.
func MessageLen(status byte) int {
	return 1 + dataLen(status)
}

// dataLen returns the number of data bytes following status b.
func dataLen(b byte) int {
	switch {
	case b >= 0x80 && b < 0xC0, b >= 0xE0 && b < 0xF0:
		return 2
	case b >= 0xC0 && b < 0xE0:
		return 1
	}
	switch b {
	case 0xF1, 0xF3:
		return 1
	case 0xF2:
		return 2
	}
	return 0
}
