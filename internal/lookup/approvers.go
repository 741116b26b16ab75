package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"go.uber.org/zap"
)

// ApproverConfig holds the approver directory settings. BaseURL is the
// prefix up to the level suffix, e.g. ".../get_bill/approver_level".
type ApproverConfig struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// ApproverClient reads the sign-off candidates for each approver level.
type ApproverClient struct {
	cfg    ApproverConfig
	client *http.Client
	logger *zap.Logger
}

// NewApproverClient creates an approver lookup client.
func NewApproverClient(cfg ApproverConfig, logger *zap.Logger) *ApproverClient {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &ApproverClient{cfg: cfg, client: client, logger: logger}
}

// FetchApprovers returns the candidates for one level (1, 2 or 3). The
// directory keys its payload by level, so the response is validated against
// the requested one.
func (c *ApproverClient) FetchApprovers(ctx context.Context, level int) ([]entity.Approver, error) {
	if level < 1 || level > 3 {
		return nil, fmt.Errorf("invalid approver level: %d", level)
	}

	url := fmt.Sprintf("%s%d", c.cfg.BaseURL, level)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("failed to build approver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.cfg.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not connect to the approvers API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("approver request failed with status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read approver response: %w", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("invalid approver response format for level %d: %w", level, err)
	}

	var status string
	if err := json.Unmarshal(decoded["status"], &status); err != nil || status != "success" {
		return nil, fmt.Errorf("invalid approver response format for level %d", level)
	}

	key := fmt.Sprintf("approver_level_%d", level)
	var approvers []entity.Approver
	if err := json.Unmarshal(decoded[key], &approvers); err != nil {
		return nil, fmt.Errorf("invalid approver response format for level %d", level)
	}

	c.logger.Debug("approvers fetched",
		zap.Int("level", level),
		zap.Int("count", len(approvers)))
	return approvers, nil
}
