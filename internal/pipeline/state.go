// Package pipeline implements the per-entry state machine and byte
// plumbing described in §4.2 of the archive format (component E): CRC
// accounting, optional AE-2 encryption, compression, staged buffering
// and draining to a sink, and the final data-descriptor write.
package pipeline

// State is the entry lifecycle: Idle -> Open -> Writing -> Finalizing
// -> Closed. Start passes through Idle and Open while it writes the
// local header and returns the Entry already in Writing; states only
// move forward, with no path back to an earlier state.
type State int

const (
	StateOpen State = iota
	StateWriting
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateWriting:
		return "Writing"
	case StateFinalizing:
		return "Finalizing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
