package engine

// Trigger is an event that can advance the conversation.
type Trigger string

const (
	TriggerExtractNeedVendor Trigger = "EXTRACT_NEED_VENDOR"
	TriggerExtractComplete   Trigger = "EXTRACT_COMPLETE"
	TriggerVendorProvided    Trigger = "VENDOR_PROVIDED"
	TriggerRSAFConfirmed     Trigger = "RSAF_CONFIRMED"
	TriggerRSAFDeclined      Trigger = "RSAF_DECLINED"
	TriggerFSRProvided       Trigger = "FSR_PROVIDED"
	TriggerRoutingSaved      Trigger = "ROUTING_SAVED"
	TriggerApproversSaved    Trigger = "APPROVERS_SAVED"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
