package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-expense/internal/domain/entity"
	domainwf "github.com/garyjia/travel-expense/internal/domain/workflow"
)

var errBlocked = errors.New("blocked")

func always(pass bool) domainwf.GuardFunc {
	return func(ctx context.Context) error {
		if pass {
			return nil
		}
		return errBlocked
	}
}

func TestApprovalStateMachine_HappyPath(t *testing.T) {
	ctx := context.Background()
	machine := BuildApprovalStateMachine(domainwf.StateDraft, ApprovalGuards{HasLines: always(true)})

	steps := []struct {
		trigger  domainwf.Trigger
		expected domainwf.State
	}{
		{domainwf.TriggerSubmit, domainwf.StateSubmitted},
		{domainwf.TriggerApprove, domainwf.StateApproved},
		{domainwf.TriggerReset, domainwf.StateDraft},
		{domainwf.TriggerSubmit, domainwf.StateSubmitted},
		{domainwf.TriggerRefuse, domainwf.StateCancelled},
		{domainwf.TriggerReset, domainwf.StateDraft},
	}

	for i, step := range steps {
		require.NoError(t, machine.Fire(ctx, step.trigger), "step %d", i)
		assert.Equal(t, step.expected, machine.State(), "step %d", i)
	}
}

func TestApprovalStateMachine_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("empty sheet cannot be submitted", func(t *testing.T) {
		machine := BuildApprovalStateMachine(domainwf.StateDraft, ApprovalGuards{HasLines: always(false)})
		err := machine.Fire(ctx, domainwf.TriggerSubmit)
		assert.True(t, errors.Is(err, domainwf.ErrGuardFailed))
		assert.True(t, errors.Is(err, errBlocked))
		assert.Equal(t, domainwf.StateDraft, machine.State())
	})

	t.Run("posted moves block refusal", func(t *testing.T) {
		machine := BuildApprovalStateMachine(domainwf.StateApproved, ApprovalGuards{NoPostedMoves: always(false)})
		err := machine.Fire(ctx, domainwf.TriggerRefuse)
		assert.True(t, errors.Is(err, domainwf.ErrGuardFailed))
		assert.True(t, machine.CanFire(ctx, domainwf.TriggerReset))
	})

	t.Run("draft cannot be approved", func(t *testing.T) {
		machine := BuildApprovalStateMachine(domainwf.StateDraft, ApprovalGuards{})
		err := machine.Fire(ctx, domainwf.TriggerApprove)
		assert.True(t, errors.Is(err, domainwf.ErrInvalidTransition))
	})
}

func TestApprovalStateMapping(t *testing.T) {
	for _, approval := range []string{entity.ApprovalNone, entity.ApprovalSubmit, entity.ApprovalApprove, entity.ApprovalCancel} {
		assert.Equal(t, approval, ApprovalFromState(StateFromApproval(approval)))
	}
	assert.Equal(t, domainwf.StateDraft, StateFromApproval("garbage"))
}
