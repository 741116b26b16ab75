package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"github.com/muyusufspa/spgpt/internal/posting"
	"github.com/muyusufspa/spgpt/pkg/utils"
	"go.uber.org/zap"
)

// Extractor turns an uploaded file into a sanitized invoice record.
type Extractor interface {
	Extract(ctx context.Context, file *entity.UploadedFile) (*entity.InvoiceRecord, error)
}

// Poster sends a fully-qualified record to the accounting endpoint.
type Poster interface {
	Post(ctx context.Context, record *entity.InvoiceRecord, file *entity.UploadedFile) (*posting.Result, error)
}

// ActivityLogger appends one structured audit entry per engine action.
type ActivityLogger interface {
	AppendActivity(user, module, action, subject string) error
}

// Role identifies who produced a chat message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Hint tells the consuming UI which affordance to render with a message.
type Hint string

const (
	HintShowInvoice    Hint = "show_invoice"
	HintShowRouting    Hint = "show_routing_selector"
	HintShowApprovers  Hint = "show_approver_selector"
	HintRequestPayload Hint = "request_payload"
	HintAPIResponse    Hint = "api_response"
	HintAgenticLink    Hint = "agentic_link"
)

// Message is one chat entry emitted by the engine.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Hint      Hint   `json:"hint,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// RoutingDetails is the routing form submission.
type RoutingDetails struct {
	ServiceType   entity.ServiceType
	DepartureIATA *string
	DepartureICAO *string
	ArrivalIATA   *string
	ArrivalICAO   *string
}

// ApproverSelection is the approver form submission. Every level is
// independently optional.
type ApproverSelection struct {
	Level1 *int
	Level2 *int
	Level3 *int
}

// Engine drives one user's invoice conversation. It exclusively owns the
// working record and stage for the session; all entry points serialize on
// the internal mutex, and a busy flag rejects a second extraction or
// posting call while one is in flight.
type Engine struct {
	mu      sync.Mutex
	busy    bool
	user    string
	machine StateMachine
	file    *entity.UploadedFile
	record  *entity.InvoiceRecord

	extractor Extractor
	poster    Poster
	activity  ActivityLogger
	logger    *zap.Logger
}

// New creates a conversation engine for one session.
func New(user string, extractor Extractor, poster Poster, activity ActivityLogger, logger *zap.Logger) *Engine {
	return &Engine{
		user:      user,
		machine:   newConversationMachine(),
		extractor: extractor,
		poster:    poster,
		activity:  activity,
		logger:    logger,
	}
}

// Stage returns the current conversation stage.
func (e *Engine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Stage()
}

// Record returns a copy of the working invoice record, or nil before
// extraction.
func (e *Engine) Record() *entity.InvoiceRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record == nil {
		return nil
	}
	return e.record.Clone()
}

// File returns the currently attached upload, or nil.
func (e *Engine) File() *entity.UploadedFile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.file
}

// UploadFile attaches a new file and resets the working record and stage.
// Passing nil detaches the current file.
func (e *Engine) UploadFile(file *entity.UploadedFile) []Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.file = file
	e.record = nil
	e.machine.Reset()

	if file == nil {
		return []Message{aiMessage("File removed. Please upload a document to begin.")}
	}

	e.logActivity(entity.ModuleInvoice, "upload", file.Filename)
	return []Message{aiMessage(fmt.Sprintf("File **%s** is uploaded. You can \"extract details\".", file.Filename))}
}

// ClearSession unconditionally resets the conversation regardless of the
// current stage. This is the only transition available everywhere.
func (e *Engine) ClearSession() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.file = nil
	e.record = nil
	e.machine.Reset()
	e.logActivity(entity.ModuleInvoice, "clear_session", "session")

	return []Message{aiMessage("Session cleared. Please upload a new document to begin.")}
}

// HandleMessage processes one free-text input. Depending on the stage the
// text is consumed as a vendor name, an FSR identifier, or parsed as a
// command.
func (e *Engine) HandleMessage(ctx context.Context, text string) ([]Message, error) {
	e.mu.Lock()

	switch e.machine.Stage() {
	case StageAwaitingVendorName:
		defer e.mu.Unlock()
		return e.consumeVendorName(text), nil
	case StageAwaitingFSRID:
		defer e.mu.Unlock()
		return e.consumeFSRID(text), nil
	}

	command := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(command, "extract"):
		return e.runExtractionLocked(ctx)
	case strings.Contains(command, "post"):
		return e.runPostLocked(ctx)
	case strings.Contains(command, "ai agentic"):
		defer e.mu.Unlock()
		return []Message{{
			Role:      RoleAI,
			Content:   "Opening the AI Agentic Portal in a new tab.",
			Timestamp: now(),
			Hint:      HintAgenticLink,
		}}, nil
	default:
		defer e.mu.Unlock()
		return []Message{aiMessage("Unknown command. Available commands: 'extract invoice details', 'post'.")}, nil
	}
}

// ConfirmRSAF records the yes/no answer to the RSAF question. A yes routes
// to FSR capture; a no skips straight to routing details, since a non-RSAF
// bill still needs a service classification to be postable.
func (e *Engine) ConfirmRSAF(confirmed bool) ([]Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.record == nil {
		return nil, ErrNoRecord
	}

	trigger := TriggerRSAFDeclined
	if confirmed {
		trigger = TriggerRSAFConfirmed
	}
	if err := e.machine.Fire(trigger); err != nil {
		return nil, err
	}

	e.record.RSAFBill = &confirmed

	answer := "No"
	if confirmed {
		answer = "Yes"
	}
	e.logActivity(entity.ModuleInvoice, "rsaf_answer", answer)

	messages := []Message{userMessage(fmt.Sprintf("You selected: **%s**", answer))}
	if confirmed {
		messages = append(messages, aiMessage("Please enter the FSR ID."))
	} else {
		messages = append(messages, Message{
			Role:      RoleAI,
			Content:   "Please specify the service details for this invoice.",
			Timestamp: now(),
			Hint:      HintShowRouting,
		})
	}
	return messages, nil
}

// SaveRoutingDetails applies the routing form: service type plus departure
// and arrival codes. Exactly one service identifier ends up set.
func (e *Engine) SaveRoutingDetails(details RoutingDetails) ([]Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.record == nil {
		return nil, ErrNoRecord
	}
	if !details.ServiceType.IsValid() {
		return nil, fmt.Errorf("unknown service type: %s", details.ServiceType)
	}
	if err := e.machine.Fire(TriggerRoutingSaved); err != nil {
		return nil, err
	}

	e.record.DepartureIATA = details.DepartureIATA
	e.record.DepartureICAO = details.DepartureICAO
	e.record.ArrivalIATA = details.ArrivalIATA
	e.record.ArrivalICAO = details.ArrivalICAO
	e.record.SetServiceType(details.ServiceType)

	e.logActivity(entity.ModuleInvoice, "routing_saved", details.ServiceType.String())

	return []Message{{
		Role:      RoleAI,
		Content:   "Routing details saved. Please select the approvers.",
		Timestamp: now(),
		Hint:      HintShowApprovers,
	}}, nil
}

// SaveApprovers applies the approver form and returns the conversation to
// idle, after which posting is permitted.
func (e *Engine) SaveApprovers(selection ApproverSelection) ([]Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.record == nil {
		return nil, ErrNoRecord
	}
	if err := e.machine.Fire(TriggerApproversSaved); err != nil {
		return nil, err
	}

	e.record.ApproverLevel1 = selection.Level1
	e.record.ApproverLevel2 = selection.Level2
	e.record.ApproverLevel3 = selection.Level3

	e.logActivity(entity.ModuleInvoice, "approvers_saved", e.record.Reference)

	return []Message{aiMessage("Approvers have been selected. You can now post the invoice.")}, nil
}

func (e *Engine) consumeVendorName(text string) []Message {
	if e.record == nil {
		return nil
	}

	name := utils.SanitizeString(text)
	e.record.VendorName = &name
	// The vendor step always routes to the RSAF question next; there is no
	// alternate branch.
	if err := e.machine.Fire(TriggerVendorProvided); err != nil {
		e.logger.Error("vendor transition rejected", zap.Error(err))
		return nil
	}
	e.logActivity(entity.ModuleInvoice, "set_vendor", name)

	return []Message{
		aiMessage(fmt.Sprintf("Vendor name set to **%s**.", name)),
		{
			Role:      RoleAI,
			Content:   "Here is the updated data. Review it.",
			Timestamp: now(),
			Hint:      HintShowInvoice,
		},
		aiMessage("Is this an RSAF bill?"),
	}
}

func (e *Engine) consumeFSRID(text string) []Message {
	if e.record == nil {
		return nil
	}

	id := utils.SanitizeString(text)
	e.record.FSRID = &id
	if err := e.machine.Fire(TriggerFSRProvided); err != nil {
		e.logger.Error("fsr transition rejected", zap.Error(err))
		return nil
	}
	e.logActivity(entity.ModuleInvoice, "set_fsr", id)

	return []Message{{
		Role:      RoleAI,
		Content:   fmt.Sprintf("FSR ID set to **%s**. You can now add routing details.", id),
		Timestamp: now(),
		Hint:      HintShowRouting,
	}}
}

// runExtractionLocked is entered holding the mutex and releases it around
// the outbound call so the busy flag, not the lock, gates duplicates.
func (e *Engine) runExtractionLocked(ctx context.Context) ([]Message, error) {
	if e.file == nil {
		e.mu.Unlock()
		return []Message{aiMessage("Please upload an invoice file first.")}, nil
	}
	if e.busy {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.busy = true
	file := e.file
	e.mu.Unlock()

	record, err := e.extractor.Extract(ctx, file)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false

	if err != nil {
		e.logActivity(entity.ModuleInvoice, "extraction_error", err.Error())
		return []Message{aiMessage(fmt.Sprintf("**Error during extraction:** %s", err.Error()))}, nil
	}

	// Approvers must be chosen manually no matter what extraction returned.
	record.ClearApprovers()
	e.record = record
	// A repeated extraction restarts the flow: the machine returns to idle
	// first, so the outcome trigger below is always permitted.
	e.machine.Reset()

	messages := []Message{{
		Role:      RoleAI,
		Content:   "I've extracted the following details. Please review them.",
		Timestamp: now(),
		Hint:      HintShowInvoice,
	}}

	if record.VendorName == nil || *record.VendorName == "" {
		if err := e.machine.Fire(TriggerExtractNeedVendor); err != nil {
			return nil, err
		}
		messages = append(messages, aiMessage("I couldn't find a vendor name. Please enter it below."))
	} else {
		if err := e.machine.Fire(TriggerExtractComplete); err != nil {
			return nil, err
		}
		messages = append(messages, aiMessage("Is this an RSAF bill?"))
	}

	e.logActivity(entity.ModuleInvoice, "extracted", record.Reference)
	return messages, nil
}

// runPostLocked is entered holding the mutex. Posting requires an extracted
// record and a fully resolved conversation (stage idle); otherwise the
// attempt is rejected with no side effects.
func (e *Engine) runPostLocked(ctx context.Context) ([]Message, error) {
	if e.record == nil {
		e.mu.Unlock()
		return []Message{aiMessage("Please extract invoice details first.")}, nil
	}
	if e.machine.Stage() != StageIdle {
		e.mu.Unlock()
		return []Message{aiMessage("Please complete the current conversation step before posting.")}, nil
	}
	if e.file == nil {
		e.mu.Unlock()
		return []Message{aiMessage("Error: Cannot post without a file.")}, nil
	}
	if e.busy {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.busy = true
	record := e.record
	file := e.file
	e.logActivity(entity.ModuleInvoice, "post_attempt", record.Reference)
	e.mu.Unlock()

	result, err := e.poster.Post(ctx, record, file)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false

	var messages []Message
	if result != nil && result.Payload != nil {
		messages = append(messages, Message{
			Role:      RoleAI,
			Content:   "Here is the JSON payload being sent to the API.",
			Timestamp: now(),
			Hint:      HintRequestPayload,
			Payload:   result.Payload,
		})
	}

	var rejected *posting.RejectedError
	if errors.As(err, &rejected) {
		e.logActivity(entity.ModuleInvoice, "post_rejected", fmt.Sprintf("status %d", rejected.StatusCode))
		messages = append(messages, Message{
			Role:      RoleAI,
			Content:   fmt.Sprintf("Failed to post data. Server responded with status %d.", rejected.StatusCode),
			Timestamp: now(),
			Hint:      HintAPIResponse,
			Payload:   map[string]any{"success": false, "body": rejected.Body},
		})
		return messages, nil
	}
	if err != nil {
		e.logActivity(entity.ModuleInvoice, "post_error", err.Error())
		messages = append(messages, Message{
			Role:      RoleAI,
			Content:   "An error occurred during the post process.",
			Timestamp: now(),
			Hint:      HintAPIResponse,
			Payload:   map[string]any{"success": false, "body": map[string]string{"error": err.Error()}},
		})
		return messages, nil
	}

	e.logActivity(entity.ModuleInvoice, "post_success", record.Reference)
	messages = append(messages, Message{
		Role:      RoleAI,
		Content:   "Data posted successfully.",
		Timestamp: now(),
		Hint:      HintAPIResponse,
		Payload:   map[string]any{"success": true, "body": result.Body},
	})
	return messages, nil
}

// logActivity records one audit entry; a store failure never interrupts
// the conversation.
func (e *Engine) logActivity(module, action, subject string) {
	if e.activity == nil {
		return
	}
	if err := e.activity.AppendActivity(e.user, module, action, subject); err != nil {
		e.logger.Warn("failed to append activity entry",
			zap.String("module", module),
			zap.String("action", action),
			zap.Error(err))
	}
}

func aiMessage(content string) Message {
	return Message{Role: RoleAI, Content: content, Timestamp: now()}
}

func userMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: now()}
}

func now() int64 {
	return time.Now().UnixMilli()
}
