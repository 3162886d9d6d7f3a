package workflow

import (
	"github.com/garyjia/travel-expense/internal/domain/entity"
	domainwf "github.com/garyjia/travel-expense/internal/domain/workflow"
)

// ApprovalGuards are the sheet conditions the approval workflow depends on.
// A nil guard always passes; a failing guard's error reaches the caller of Fire.
type ApprovalGuards struct {
	HasLines      domainwf.GuardFunc
	NoPostedMoves domainwf.GuardFunc
}

// BuildApprovalStateMachine creates a state machine configured for the expense sheet approval workflow
func BuildApprovalStateMachine(initialState domainwf.State, guards ApprovalGuards) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	// draft: only a sheet with lines can be submitted
	builder.Configure(domainwf.StateDraft).
		PermitIf(domainwf.TriggerSubmit, domainwf.StateSubmitted, guards.HasLines)

	builder.Configure(domainwf.StateSubmitted).
		PermitIf(domainwf.TriggerApprove, domainwf.StateApproved, guards.HasLines).
		Permit(domainwf.TriggerRefuse, domainwf.StateCancelled).
		Permit(domainwf.TriggerReset, domainwf.StateDraft)

	// approve: refusing is blocked once an entry has been posted
	builder.Configure(domainwf.StateApproved).
		PermitIf(domainwf.TriggerRefuse, domainwf.StateCancelled, guards.NoPostedMoves).
		Permit(domainwf.TriggerReset, domainwf.StateDraft)

	builder.Configure(domainwf.StateCancelled).
		Permit(domainwf.TriggerReset, domainwf.StateDraft)

	return builder.Build(initialState)
}

// StateFromApproval maps a stored approval state to a workflow state
func StateFromApproval(approvalState string) domainwf.State {
	switch approvalState {
	case entity.ApprovalSubmit:
		return domainwf.StateSubmitted
	case entity.ApprovalApprove:
		return domainwf.StateApproved
	case entity.ApprovalCancel:
		return domainwf.StateCancelled
	default:
		return domainwf.StateDraft
	}
}

// ApprovalFromState maps a workflow state back to the stored approval state
func ApprovalFromState(state domainwf.State) string {
	switch state {
	case domainwf.StateSubmitted:
		return entity.ApprovalSubmit
	case domainwf.StateApproved:
		return entity.ApprovalApprove
	case domainwf.StateCancelled:
		return entity.ApprovalCancel
	default:
		return entity.ApprovalNone
	}
}
