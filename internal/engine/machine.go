package engine

import "fmt"

// StateMachine tracks the current conversation stage and validates
// transitions against a configured table.
type StateMachine interface {
	// Stage returns the current stage.
	Stage() Stage

	// CanFire returns true if the trigger is permitted in the current stage.
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, moving to the configured target stage.
	Fire(trigger Trigger) error

	// PermittedTriggers returns all triggers valid in the current stage.
	PermittedTriggers() []Trigger

	// Reset unconditionally returns the machine to its initial stage. This
	// is the only transition available from every stage.
	Reset()
}

// Builder assembles the transition table for a state machine.
type Builder interface {
	// Configure returns a stage configuration for the given stage.
	Configure(stage Stage) StageConfiguration

	// Build creates a machine starting in the given initial stage.
	Build(initial Stage) StateMachine
}

// StageConfiguration configures transitions out of one stage.
type StageConfiguration interface {
	// Permit allows a trigger to transition to the target stage.
	Permit(trigger Trigger, to Stage) StageConfiguration
}

type stageConfig struct {
	transitions map[Trigger]Stage
}

type machineBuilder struct {
	configurations map[Stage]*stageConfig
}

type stateMachine struct {
	initial        Stage
	current        Stage
	configurations map[Stage]map[Trigger]Stage
}

// NewBuilder creates an empty state machine builder.
func NewBuilder() Builder {
	return &machineBuilder{
		configurations: make(map[Stage]*stageConfig),
	}
}

func (b *machineBuilder) Configure(stage Stage) StageConfiguration {
	if !stage.IsValid() {
		panic(fmt.Sprintf("invalid stage: %s", stage))
	}

	config, exists := b.configurations[stage]
	if !exists {
		config = &stageConfig{transitions: make(map[Trigger]Stage)}
		b.configurations[stage] = config
	}
	return config
}

func (b *machineBuilder) Build(initial Stage) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial stage: %s", initial))
	}

	// Copy the table so later builder mutations cannot leak into a built
	// machine.
	configs := make(map[Stage]map[Trigger]Stage, len(b.configurations))
	for stage, config := range b.configurations {
		transitions := make(map[Trigger]Stage, len(config.transitions))
		for trigger, to := range config.transitions {
			transitions[trigger] = to
		}
		configs[stage] = transitions
	}

	return &stateMachine{
		initial:        initial,
		current:        initial,
		configurations: configs,
	}
}

func (c *stageConfig) Permit(trigger Trigger, to Stage) StageConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target stage: %s", to))
	}
	c.transitions[trigger] = to
	return c
}

func (m *stateMachine) Stage() Stage {
	return m.current
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	_, ok := m.configurations[m.current][trigger]
	return ok
}

func (m *stateMachine) Fire(trigger Trigger) error {
	to, ok := m.configurations[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	transitions := m.configurations[m.current]
	triggers := make([]Trigger, 0, len(transitions))
	for trigger := range transitions {
		triggers = append(triggers, trigger)
	}
	return triggers
}

func (m *stateMachine) Reset() {
	m.current = m.initial
}

// newConversationMachine builds the machine for the invoice conversation
// flow. A non-RSAF bill skips the FSR step but still passes through the
// routing step, since a service classification is required to post.
func newConversationMachine() StateMachine {
	builder := NewBuilder()

	builder.Configure(StageIdle).
		Permit(TriggerExtractNeedVendor, StageAwaitingVendorName).
		Permit(TriggerExtractComplete, StageAwaitingRSAFConfirmation)

	builder.Configure(StageAwaitingVendorName).
		Permit(TriggerVendorProvided, StageAwaitingRSAFConfirmation)

	builder.Configure(StageAwaitingRSAFConfirmation).
		Permit(TriggerRSAFConfirmed, StageAwaitingFSRID).
		Permit(TriggerRSAFDeclined, StageAwaitingRoutingDetails)

	builder.Configure(StageAwaitingFSRID).
		Permit(TriggerFSRProvided, StageAwaitingRoutingDetails)

	builder.Configure(StageAwaitingRoutingDetails).
		Permit(TriggerRoutingSaved, StageAwaitingApproverSel)

	builder.Configure(StageAwaitingApproverSel).
		Permit(TriggerApproversSaved, StageIdle)

	return builder.Build(StageIdle)
}
