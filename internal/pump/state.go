package pump

// State is the lifecycle state of a pump
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// request is a lifecycle change asked for from outside the pump goroutine.
type request int32

const (
	requestNone request = iota
	requestFinish
	requestDrain
	requestStop
)
