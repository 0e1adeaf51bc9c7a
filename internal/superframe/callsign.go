package superframe

import "strings"

// callsignBytes encodes a callsign as 5 space-padded, uppercase ASCII
// bytes (spec §3: "Local callsign (5 ASCII bytes, space-padded,
// uppercase)"), truncating anything longer.
func callsignBytes(callsign string) [5]byte {
	var out [5]byte
	for i := range out {
		out[i] = ' '
	}
	up := strings.ToUpper(callsign)
	n := len(up)
	if n > 5 {
		n = 5
	}
	copy(out[:], up[:n])
	return out
}
