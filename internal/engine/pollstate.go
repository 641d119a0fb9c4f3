package engine

// PollState says which polling interval the scheduler should use. The
// engine moves to PollRetrying when a cycle fails outright and back to
// PollNormal on the next completed cycle.
type PollState int

const (
	// PollNormal uses the configured scan interval.
	PollNormal PollState = iota
	// PollRetrying uses the short retry interval after a failed cycle.
	PollRetrying
)

// String implements fmt.Stringer.
func (s PollState) String() string {
	switch s {
	case PollNormal:
		return "normal"
	case PollRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// transition returns the poll state after a cycle. It is the only place
// the state changes.
func transition(_ PollState, cycleOK bool) PollState {
	if cycleOK {
		return PollNormal
	}
	return PollRetrying
}
