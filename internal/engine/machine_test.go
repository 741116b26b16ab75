package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationMachine_HappyPath(t *testing.T) {
	m := newConversationMachine()
	assert.Equal(t, StageIdle, m.Stage())

	require.NoError(t, m.Fire(TriggerExtractComplete))
	assert.Equal(t, StageAwaitingRSAFConfirmation, m.Stage())

	require.NoError(t, m.Fire(TriggerRSAFConfirmed))
	assert.Equal(t, StageAwaitingFSRID, m.Stage())

	require.NoError(t, m.Fire(TriggerFSRProvided))
	assert.Equal(t, StageAwaitingRoutingDetails, m.Stage())

	require.NoError(t, m.Fire(TriggerRoutingSaved))
	assert.Equal(t, StageAwaitingApproverSel, m.Stage())

	require.NoError(t, m.Fire(TriggerApproversSaved))
	assert.Equal(t, StageIdle, m.Stage())
}

func TestConversationMachine_MissingVendorPath(t *testing.T) {
	m := newConversationMachine()

	require.NoError(t, m.Fire(TriggerExtractNeedVendor))
	assert.Equal(t, StageAwaitingVendorName, m.Stage())

	require.NoError(t, m.Fire(TriggerVendorProvided))
	assert.Equal(t, StageAwaitingRSAFConfirmation, m.Stage())
}

func TestConversationMachine_NonRSAFSkipsFSR(t *testing.T) {
	m := newConversationMachine()

	require.NoError(t, m.Fire(TriggerExtractComplete))
	require.NoError(t, m.Fire(TriggerRSAFDeclined))
	assert.Equal(t, StageAwaitingRoutingDetails, m.Stage())
}

func TestConversationMachine_RejectsInvalidTransitions(t *testing.T) {
	m := newConversationMachine()

	// Approver save is only valid at the approver stage.
	err := m.Fire(TriggerApproversSaved)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StageIdle, m.Stage())

	require.NoError(t, m.Fire(TriggerExtractComplete))

	// FSR input is not valid before the RSAF answer.
	err = m.Fire(TriggerFSRProvided)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StageAwaitingRSAFConfirmation, m.Stage())
}

func TestConversationMachine_ResetFromAnyStage(t *testing.T) {
	m := newConversationMachine()
	require.NoError(t, m.Fire(TriggerExtractComplete))
	require.NoError(t, m.Fire(TriggerRSAFConfirmed))

	m.Reset()
	assert.Equal(t, StageIdle, m.Stage())
}

func TestConversationMachine_PermittedTriggers(t *testing.T) {
	m := newConversationMachine()
	require.NoError(t, m.Fire(TriggerExtractComplete))

	triggers := m.PermittedTriggers()
	assert.ElementsMatch(t, []Trigger{TriggerRSAFConfirmed, TriggerRSAFDeclined}, triggers)

	assert.True(t, m.CanFire(TriggerRSAFConfirmed))
	assert.False(t, m.CanFire(TriggerRoutingSaved))
}
