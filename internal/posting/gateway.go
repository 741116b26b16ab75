package posting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"go.uber.org/zap"
)

// ErrPosting wraps network or encoding failures during the post sequence.
var ErrPosting = errors.New("posting failed")

// RejectedError is returned when the endpoint answers with a non-success
// HTTP status. It carries the status and decoded body for display.
type RejectedError struct {
	StatusCode int
	Body       any
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("posting rejected with status %d", e.StatusCode)
}

// Result is the outcome of one posting attempt. Payload is always the
// exact payload assembled for the wire, exposed for user visibility
// before and after the call.
type Result struct {
	Payload    *entity.InvoiceRecord
	Success    bool
	StatusCode int
	Body       any
}

// HistorySink records a successfully posted invoice.
type HistorySink interface {
	AppendHistory(entry entity.InvoiceHistoryEntry) error
}

// Config holds the posting endpoint settings.
type Config struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

// Gateway posts fully-qualified invoice records to the accounting API.
type Gateway struct {
	endpoint string
	token    string
	client   *http.Client
	history  HistorySink
	logger   *zap.Logger
}

// NewGateway creates a posting gateway.
func NewGateway(cfg Config, history HistorySink, logger *zap.Logger) *Gateway {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		client:   client,
		history:  history,
		logger:   logger,
	}
}

// Post deep-copies the record, embeds the file as base64 into its single
// attachment slot, sends the payload, and on success records one history
// entry. Rejections (non-2xx) carry status and body; nothing is retried.
func (g *Gateway) Post(ctx context.Context, record *entity.InvoiceRecord, file *entity.UploadedFile) (*Result, error) {
	payload := record.Clone()

	encoded := base64.StdEncoding.EncodeToString(file.Data)
	if len(payload.BillAttachments) > 0 {
		payload.BillAttachments[0].Data = encoded
	} else {
		payload.BillAttachments = []entity.BillAttachment{{
			Filename: file.Filename,
			Mimetype: file.Mimetype,
			Data:     encoded,
		}}
	}

	result := &Result{Payload: payload}

	body, err := json.Marshal(payload)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrPosting, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrPosting, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", g.token)

	g.logger.Info("posting invoice",
		zap.String("reference", payload.Reference),
		zap.Int("product_lines", len(payload.ProductLines)))

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("posting request failed", zap.Error(err))
		return result, fmt.Errorf("%w: %v", ErrPosting, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrPosting, err)
	}

	result.StatusCode = resp.StatusCode
	result.Body = decodeBody(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Warn("posting rejected",
			zap.String("reference", payload.Reference),
			zap.Int("status", resp.StatusCode))
		return result, &RejectedError{StatusCode: resp.StatusCode, Body: result.Body}
	}

	result.Success = true

	entry := entity.InvoiceHistoryEntry{
		Reference:     payload.Reference,
		VendorName:    deref(payload.VendorName),
		ProcessedDate: time.Now().UTC().Format(time.RFC3339),
		TotalAmount:   payload.Total(),
		Currency:      payload.Currency,
		IsPosted:      true,
	}
	if err := g.history.AppendHistory(entry); err != nil {
		g.logger.Warn("failed to append history entry",
			zap.String("reference", payload.Reference),
			zap.Error(err))
	}

	g.logger.Info("invoice posted",
		zap.String("reference", payload.Reference),
		zap.Float64("total", entry.TotalAmount))
	return result, nil
}

// decodeBody parses the response as JSON; an unparsable body is wrapped as
// an error object carrying the raw text.
func decodeBody(raw []byte) any {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]string{
			"error":   "Invalid JSON response from server",
			"content": string(raw),
		}
	}
	return decoded
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
