package workflow

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerSubmit  Trigger = "SUBMIT"
	TriggerApprove Trigger = "APPROVE"
	TriggerRefuse  Trigger = "REFUSE"
	TriggerReset   Trigger = "RESET"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
