package daemon

// State is the daemon lifecycle state, reported by the status op.
type State int32

const (
	StateUnstarted State = iota
	StateLoading
	StateReady
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
