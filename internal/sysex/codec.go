// Package sysex encodes and decodes Yamaha digital mixer parameter
// messages carried in MIDI System Exclusive frames.
package sysex

import (
	"fmt"

	"github.com/nixcodex/ls9/sdk/contracts"
)

// Frame constants.
const (
	Start = 0xF0
	End   = 0xF7

	ManufacturerYamaha = 0x43
	GroupDigitalMixer  = 0x3E
	ModelLS9           = 0x12
)

// Sub-status high nibbles.
const (
	subBulkDump     = 0x0
	subParamChange  = 0x1
	subBulkRequest  = 0x2
	subParamRequest = 0x3
)

// Data categories.
const (
	categoryFunctionCall = 0x00
	categoryParameter    = 0x01
	categoryLevelMeter   = 0x21
)

const (
	headerLen  = 6 // F0 43 sn 3E mm cc
	addressLen = 6
	valueLen   = 5
)

// MessageType distinguishes the two parameter messages.
type MessageType uint8

const (
	// ParamChange carries a parameter value. The console sends one in reply
	// to a request and whenever a control moves.
	ParamChange MessageType = iota
	// ParamRequest asks the console for the current value of a parameter.
	ParamRequest
)

func (t MessageType) String() string {
	if t == ParamRequest {
		return "param request"
	}
	return "param change"
}

// Reply is a decoded parameter message.
type Reply struct {
	Type    MessageType
	Device  uint8
	Address contracts.Address
	Value   contracts.Value // zero for ParamRequest
}

// Codec converts between parameter messages and SysEx frames. A Codec is
// immutable after construction and safe for concurrent use.
type Codec struct {
	Device   uint8                    // SysEx device number, 0..15.
	Model    uint8                    // Console model id.
	Checksum contracts.ChecksumPolicy // Integrity byte policy.
	Schema   contracts.Schema         // Value kinds by element.
}

// Option configures a Codec.
type Option func(*Codec)

// WithDevice sets the device number.
func WithDevice(n uint8) Option { return func(c *Codec) { c.Device = n & 0x0F } }

// WithModel sets the model id.
func WithModel(m uint8) Option { return func(c *Codec) { c.Model = m & 0x7F } }

// WithChecksum sets the checksum policy.
func WithChecksum(p contracts.ChecksumPolicy) Option { return func(c *Codec) { c.Checksum = p } }

// WithSchema sets the schema used to type and check values.
func WithSchema(s contracts.Schema) Option { return func(c *Codec) { c.Schema = s } }

// New returns an LS9 codec for device 0 without checksum.
func New(opts ...Option) *Codec {
	c := &Codec{Model: ModelLS9, Schema: contracts.DefaultSchema()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EncodeRead builds a parameter request frame for addr.
func (c *Codec) EncodeRead(addr contracts.Address) ([]byte, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	frame := make([]byte, 0, c.frameLen(ParamRequest))
	frame = c.appendHeader(frame, subParamRequest)
	frame = appendAddress(frame, addr)
	return c.appendTrailer(frame), nil
}

// EncodeWrite builds a parameter change frame setting addr to value.
func (c *Codec) EncodeWrite(addr contracts.Address, value contracts.Value) ([]byte, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	if err := c.Schema.Lookup(addr.Element).Check(value); err != nil {
		return nil, err
	}
	frame := make([]byte, 0, c.frameLen(ParamChange))
	frame = c.appendHeader(frame, subParamChange)
	frame = appendAddress(frame, addr)
	frame = appendValue(frame, value.Raw())
	return c.appendTrailer(frame), nil
}

// Decode parses one complete frame. Framing, length and checksum faults
// return ErrMalformedMessage; well-formed frames this codec does not handle
// return ErrUnsupportedMessage.
func (c *Codec) Decode(msg []byte) (Reply, error) {
	if err := Validate(msg); err != nil {
		return Reply{}, err
	}
	if len(msg) < headerLen+1 {
		return Reply{}, fmt.Errorf("%w: %d byte frame shorter than header", contracts.ErrMalformedMessage, len(msg))
	}
	if msg[1] != ManufacturerYamaha {
		return Reply{}, fmt.Errorf("%w: manufacturer 0x%02X", contracts.ErrUnsupportedMessage, msg[1])
	}
	if msg[3] != GroupDigitalMixer {
		return Reply{}, fmt.Errorf("%w: group 0x%02X", contracts.ErrUnsupportedMessage, msg[3])
	}
	if msg[4] != c.Model {
		return Reply{}, fmt.Errorf("%w: model 0x%02X", contracts.ErrUnsupportedMessage, msg[4])
	}

	var typ MessageType
	switch msg[2] >> 4 {
	case subParamChange:
		typ = ParamChange
	case subParamRequest:
		typ = ParamRequest
	case subBulkDump, subBulkRequest:
		return Reply{}, fmt.Errorf("%w: bulk sub-status 0x%02X", contracts.ErrUnsupportedMessage, msg[2])
	default:
		return Reply{}, fmt.Errorf("%w: sub-status 0x%02X", contracts.ErrUnsupportedMessage, msg[2])
	}

	switch msg[5] {
	case categoryParameter:
	case categoryFunctionCall:
		return Reply{}, fmt.Errorf("%w: function call", contracts.ErrUnsupportedMessage)
	case categoryLevelMeter:
		return Reply{}, fmt.Errorf("%w: level meter", contracts.ErrUnsupportedMessage)
	default:
		return Reply{}, fmt.Errorf("%w: data category 0x%02X", contracts.ErrUnsupportedMessage, msg[5])
	}

	if want := c.frameLen(typ); len(msg) != want {
		return Reply{}, fmt.Errorf("%w: %s frame is %d bytes, want %d", contracts.ErrMalformedMessage, typ, len(msg), want)
	}

	payloadEnd := len(msg) - 1
	if c.Checksum != contracts.ChecksumNone {
		payloadEnd--
		payload := msg[headerLen:payloadEnd]
		if got, want := msg[payloadEnd], checksum(c.Checksum, payload); got != want {
			return Reply{}, fmt.Errorf("%w: checksum 0x%02X, want 0x%02X", contracts.ErrMalformedMessage, got, want)
		}
	}

	reply := Reply{
		Type:    typ,
		Device:  msg[2] & 0x0F,
		Address: readAddress(msg[headerLen : headerLen+addressLen]),
	}
	if typ == ParamChange {
		raw := readValue(msg[headerLen+addressLen : headerLen+addressLen+valueLen])
		reply.Value = contracts.ValueOf(c.Schema.Lookup(reply.Address.Element).Kind, raw)
	}
	return reply, nil
}

// Validate checks SysEx framing: start and end bytes and 7-bit data.
func Validate(msg []byte) error {
	if len(msg) < 2 {
		return fmt.Errorf("%w: %d byte frame", contracts.ErrMalformedMessage, len(msg))
	}
	if msg[0] != Start {
		return fmt.Errorf("%w: start byte 0x%02X, want 0x%02X", contracts.ErrMalformedMessage, msg[0], Start)
	}
	if msg[len(msg)-1] != End {
		return fmt.Errorf("%w: end byte 0x%02X, want 0x%02X", contracts.ErrMalformedMessage, msg[len(msg)-1], End)
	}
	for i := 1; i < len(msg)-1; i++ {
		if msg[i] > 0x7F {
			return fmt.Errorf("%w: byte %d is 0x%02X", contracts.ErrMalformedMessage, i, msg[i])
		}
	}
	return nil
}

func (c *Codec) frameLen(t MessageType) int {
	n := headerLen + addressLen + 1
	if t == ParamChange {
		n += valueLen
	}
	if c.Checksum != contracts.ChecksumNone {
		n++
	}
	return n
}

func (c *Codec) appendHeader(b []byte, sub byte) []byte {
	return append(b, Start, ManufacturerYamaha, sub<<4|c.Device&0x0F, GroupDigitalMixer, c.Model, categoryParameter)
}

func (c *Codec) appendTrailer(b []byte) []byte {
	if c.Checksum != contracts.ChecksumNone {
		b = append(b, checksum(c.Checksum, b[headerLen:]))
	}
	return append(b, End)
}

func appendAddress(b []byte, a contracts.Address) []byte {
	return append(b,
		byte(a.Element>>7)&0x7F, byte(a.Element)&0x7F,
		byte(a.Index>>7)&0x7F, byte(a.Index)&0x7F,
		byte(a.Channel>>7)&0x7F, byte(a.Channel)&0x7F,
	)
}

func readAddress(b []byte) contracts.Address {
	return contracts.Address{
		Element: int(b[0])<<7 | int(b[1]),
		Index:   int(b[2])<<7 | int(b[3]),
		Channel: int(b[4])<<7 | int(b[5]),
	}
}

// The top group carries bits 28..31; the bits above it are sign copies
// and are discarded again on decode.
func appendValue(b []byte, v int32) []byte {
	return append(b,
		byte(v>>28)&0x7F,
		byte(v>>21)&0x7F,
		byte(v>>14)&0x7F,
		byte(v>>7)&0x7F,
		byte(v)&0x7F,
	)
}

func readValue(b []byte) int32 {
	return int32(uint32(b[0])<<28 | uint32(b[1])<<21 | uint32(b[2])<<14 | uint32(b[3])<<7 | uint32(b[4]))
}

func checksum(p contracts.ChecksumPolicy, payload []byte) byte {
	var sum byte
	switch p {
	case contracts.ChecksumAdditive:
		for _, b := range payload {
			sum += b
		}
		return (0x80 - sum&0x7F) & 0x7F
	case contracts.ChecksumXOR:
		for _, b := range payload {
			sum ^= b
		}
		return sum & 0x7F
	}
	return 0
}
