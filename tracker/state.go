package tracker

// State is the mode of the control loop.
type State int

// The control loop states. Initializing only holds before the first tick.
const (
	StateInitializing State = iota
	StateAwaitingPath
	StateAwaitingPose
	StateTracking
	StateGoalReached
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingPath:
		return "awaiting_path"
	case StateAwaitingPose:
		return "awaiting_pose"
	case StateTracking:
		return "tracking"
	case StateGoalReached:
		return "goal_reached"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
