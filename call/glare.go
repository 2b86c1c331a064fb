package call

import "github.com/opd-ai/callcore/signaling"

// ResolveGlare picks which of two racing calls survives. CallIDs compare as
// unsigned 64-bit integers and the higher one wins, so the result depends
// only on the pair of ids and both sides of the race agree on it.
func ResolveGlare(a, b signaling.CallID) signaling.CallID {
	if uint64(a) >= uint64(b) {
		return a
	}
	return b
}
