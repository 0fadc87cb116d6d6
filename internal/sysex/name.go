package sysex

import "strings"

// NameLength is the number of characters in a channel name.
const NameLength = 6

// PackName splits a channel name into the two values stored at indices 0
// and 1 of the channel name element: four characters in the first, two in
// the upper half of the second. Longer names are truncated, shorter ones
// padded with spaces.
func PackName(name string) (first, second int32) {
	var b [NameLength]byte
	for i := range b {
		b[i] = ' '
	}
	for i := 0; i < len(name) && i < NameLength; i++ {
		b[i] = name[i] & 0x7F
	}
	first = int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
	second = int32(uint32(b[4])<<24 | uint32(b[5])<<16)
	return first, second
}

// UnpackName is the inverse of PackName. Trailing padding is removed.
func UnpackName(first, second int32) string {
	b := []byte{
		byte(first >> 24), byte(first >> 16), byte(first >> 8), byte(first),
		byte(second >> 24), byte(second >> 16),
	}
	return strings.TrimRight(string(b), "\x00 ")
}
