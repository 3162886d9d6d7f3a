package workflow

// State represents a step of the expense sheet approval lifecycle
type State string

const (
	StateDraft     State = "draft"
	StateSubmitted State = "submit"
	StateApproved  State = "approve"
	StateCancelled State = "cancel"
)

var validStates = map[State]bool{
	StateDraft:     true,
	StateSubmitted: true,
	StateApproved:  true,
	StateCancelled: true,
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid approval state
func (s State) IsValid() bool {
	return validStates[s]
}
