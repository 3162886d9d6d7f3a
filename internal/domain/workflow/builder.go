package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a transition may happen. A nil error lets it through;
// any other error is the reason it was blocked.
type GuardFunc func(ctx context.Context) error

// StateMachineBuilder collects transitions and builds machines from them
type StateMachineBuilder interface {
	Configure(state State) StateConfiguration
	Build(initialState State) StateMachine
}

// StateConfiguration adds the transitions leaving one state
type StateConfiguration interface {
	Permit(trigger Trigger, toState State) StateConfiguration
	PermitIf(trigger Trigger, toState State, guards ...GuardFunc) StateConfiguration
}

type edge struct {
	from    State
	trigger Trigger
}

type transition struct {
	to     State
	guards []GuardFunc
}

// check returns the first guard failure
func (t transition) check(ctx context.Context) error {
	for _, g := range t.guards {
		if err := g(ctx); err != nil {
			return err
		}
	}
	return nil
}

type table map[edge][]transition

type stateMachineBuilder struct {
	transitions table
}

type stateConfig struct {
	state       State
	transitions table
}

// NewBuilder creates an empty state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{transitions: make(table)}
}

func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	return &stateConfig{state: state, transitions: b.transitions}
}

// Build creates a machine positioned at initialState.
// Transitions added to the builder afterwards are not seen by it.
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	snapshot := make(table, len(b.transitions))
	for e, ts := range b.transitions {
		snapshot[e] = append([]transition(nil), ts...)
	}
	return &stateMachine{current: initialState, transitions: snapshot}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState)
}

// PermitIf adds a transition taken only when every guard passes. Nil guards are ignored.
func (c *stateConfig) PermitIf(trigger Trigger, toState State, guards ...GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	t := transition{to: toState}
	for _, g := range guards {
		if g != nil {
			t.guards = append(t.guards, g)
		}
	}
	e := edge{from: c.state, trigger: trigger}
	c.transitions[e] = append(c.transitions[e], t)
	return c
}

type stateMachine struct {
	current     State
	transitions table
}

func (m *stateMachine) State() State {
	return m.current
}

// resolve picks the first transition whose guards pass
func (m *stateMachine) resolve(ctx context.Context, trigger Trigger) (State, error) {
	candidates := m.transitions[edge{from: m.current, trigger: trigger}]
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.current)
	}

	var reason error
	for _, t := range candidates {
		err := t.check(ctx)
		if err == nil {
			return t.to, nil
		}
		if reason == nil {
			reason = err
		}
	}
	return "", fmt.Errorf("%w: %w", ErrGuardFailed, reason)
}

func (m *stateMachine) CanFire(ctx context.Context, trigger Trigger) bool {
	_, err := m.resolve(ctx, trigger)
	return err == nil
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	to, err := m.resolve(ctx, trigger)
	if err != nil {
		return err
	}
	m.current = to
	return nil
}
