package engine

// Stage is a conversation state in the invoice processing flow. Exactly
// one stage is active per session.
type Stage string

const (
	StageIdle                     Stage = "idle"
	StageAwaitingVendorName       Stage = "awaiting_vendor_name"
	StageAwaitingRSAFConfirmation Stage = "awaiting_rsaf_confirmation"
	StageAwaitingFSRID            Stage = "awaiting_fsr_id"
	StageAwaitingRoutingDetails   Stage = "awaiting_routing_details"
	StageAwaitingApproverSel      Stage = "awaiting_approver_selection"
)

var validStages = map[Stage]bool{
	StageIdle:                     true,
	StageAwaitingVendorName:       true,
	StageAwaitingRSAFConfirmation: true,
	StageAwaitingFSRID:            true,
	StageAwaitingRoutingDetails:   true,
	StageAwaitingApproverSel:      true,
}

// IsValid returns true if the stage is a known conversation stage.
func (s Stage) IsValid() bool {
	return validStages[s]
}

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}
