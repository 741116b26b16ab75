package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"go.uber.org/zap"
)

// ErrLookupUnavailable is returned after the retry budget is exhausted on
// gateway timeouts.
var ErrLookupUnavailable = errors.New("the airport database is currently unavailable (Gateway Timeout). This may be a temporary issue. Please try again in a few moments")

const (
	maxRetries     = 3
	initialBackoff = time.Second
)

// AirportConfig holds the airport index settings.
type AirportConfig struct {
	URL      string
	Username string
	Password string
	Client   *http.Client
}

// AirportClient reads the airport reference index. The index sits behind a
// gateway that intermittently times out, so 504 responses are retried with
// doubling backoff; every other failure is terminal.
type AirportClient struct {
	cfg    AirportConfig
	client *http.Client
	logger *zap.Logger
}

// NewAirportClient creates an airport lookup client.
func NewAirportClient(cfg AirportConfig, logger *zap.Logger) *AirportClient {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &AirportClient{cfg: cfg, client: client, logger: logger}
}

// solrResponse is the subset of the index response we consume. Every field
// in a doc arrives as a single-element array.
type solrResponse struct {
	Response struct {
		Docs []struct {
			ID          string   `json:"id"`
			AirportName []string `json:"airport_name"`
			City        []string `json:"city"`
			CityAR      []string `json:"city_ar"`
			Country     []string `json:"country"`
			Code        []string `json:"code"`
			AirportCode []string `json:"airport_code"`
			Region      []string `json:"region"`
		} `json:"docs"`
	} `json:"response"`
}

// FetchAirports returns the full airport list.
func (c *AirportClient) FetchAirports(ctx context.Context) ([]entity.Airport, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		airports, retry, err := c.fetchOnce(ctx)
		if err == nil {
			return airports, nil
		}
		lastErr = err

		if !retry || attempt == maxRetries {
			break
		}

		backoff := initialBackoff << (attempt - 1)
		c.logger.Warn("airport lookup timed out, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// fetchOnce performs one request. The second return value marks the error
// as retryable.
func (c *AirportClient) fetchOnce(ctx context.Context) ([]entity.Airport, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build airport request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("airport request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGatewayTimeout {
		return nil, true, ErrLookupUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("airport request failed with status %d: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read airport response: %w", err)
	}

	var decoded solrResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false, fmt.Errorf("invalid airport response format: %w", err)
	}

	airports := make([]entity.Airport, 0, len(decoded.Response.Docs))
	for i, doc := range decoded.Response.Docs {
		id := doc.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", first(doc.Code), i)
		}
		airports = append(airports, entity.Airport{
			ID:      id,
			Name:    firstOr(doc.AirportName, "N/A"),
			CityEN:  firstOr(doc.City, "N/A"),
			CityAR:  firstOr(doc.CityAR, "N/A"),
			Country: firstOr(doc.Country, "N/A"),
			IATA:    firstOr(doc.Code, "N/A"),
			ICAO:    firstOr(doc.AirportCode, "N/A"),
			Region:  firstOr(doc.Region, "N/A"),
		})
	}
	return airports, false, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func firstOr(values []string, fallback string) string {
	if v := first(values); v != "" {
		return v
	}
	return fallback
}
