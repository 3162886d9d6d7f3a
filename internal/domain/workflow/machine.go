package workflow

import "context"

// StateMachine tracks the approval state of one record
type StateMachine interface {
	State() State

	// CanFire reports whether Fire would succeed
	CanFire(ctx context.Context, trigger Trigger) bool

	// Fire moves to the target of the first transition whose guards all pass.
	// A blocked transition returns ErrGuardFailed wrapping the guard's reason.
	Fire(ctx context.Context, trigger Trigger) error
}
