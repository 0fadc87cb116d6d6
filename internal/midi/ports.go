// Package midi holds helpers shared by the MIDI backends.
package midi

import "strings"

// FindPort returns the index of the port matching want: an exact name match
// first, then the first case-insensitive substring match. An empty want
// selects the first port.
func FindPort(names []string, want string) (int, bool) {
	if len(names) == 0 {
		return -1, false
	}
	if want == "" {
		return 0, true
	}
	for i, n := range names {
		if n == want {
			return i, true
		}
	}
	lw := strings.ToLower(want)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), lw) {
			return i, true
		}
	}
	return -1, false
}
