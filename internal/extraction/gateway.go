package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when the model produced no content at all.
var ErrEmptyResponse = errors.New("the AI returned an empty response. The document might be unreadable or not an invoice")

// ErrResponseParse is returned when the model produced content that is not
// valid JSON after fence stripping. It is distinct from transport errors so
// callers can tell a bad document from a bad connection.
var ErrResponseParse = errors.New("failed to parse the AI's response. The document may be complex or corrupted, or the model returned invalid JSON")

// codeFence strips a leading ```json marker and a trailing ``` marker that
// some models wrap around their output despite instructions.
var codeFence = regexp.MustCompile("^```json\\s*|```\\s*$")

// CompletionClient issues a single-prompt completion returning JSON content.
type CompletionClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TextReader converts an uploaded document into plain text.
type TextReader interface {
	ExtractText(file *entity.UploadedFile) (string, error)
}

// Config holds extraction defaults applied during sanitization.
type Config struct {
	RequestOwner    string
	DefaultApprover int
}

// Gateway extracts a structured invoice record from an uploaded document by
// reading its text and prompting the completion model for a JSON object.
type Gateway struct {
	reader TextReader
	client CompletionClient
	cfg    Config
	logger *zap.Logger
}

// NewGateway creates an extraction gateway.
func NewGateway(reader TextReader, client CompletionClient, cfg Config, logger *zap.Logger) *Gateway {
	return &Gateway{
		reader: reader,
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

const promptHeader = `
EXTRACT INVOICE DATA AND OUTPUT AS JSON

Your task is to analyze the following invoice text and extract key information. You must output ONLY a single, valid JSON object. Do not include any text, explanations, or markdown formatting before or after the JSON object.

**CRITICAL RULES FOR VENDOR IDENTIFICATION:**
Your primary goal is to correctly identify the vendor. Follow these steps precisely:
1.  **IDENTIFY THE CUSTOMER:** The customer receiving this invoice is "Saudia Private Aviation" or "SPA". This is NEVER the vendor.
2.  **IDENTIFY THE VENDOR:** The vendor is the company that *issued* the invoice and is legally responsible for it. Their name is often found:
    - At the top of the invoice, possibly as a logo or in large, stylized text (be robust in interpreting this).
    - Near company details like a VAT number, Chamber of Commerce number, website, or bank/payment instructions.
3.  **IGNORE INTERMEDIARIES:** If a company is mentioned as "acting as collection agent" (e.g., Avinode AB), they are a payment intermediary, NOT the vendor. Find the company that provided the actual service.
4.  **FINAL DECISION:** After analyzing all names on the document, choose ONLY the legal entity that issued the invoice as the vendor. If you cannot determine the vendor, set 'vendor_name' to null.

**SERVICE TYPE & ID REQUIREMENTS:**
- 'service_type' must be ONE of: 'hotel', 'insurance', 'catering', 'ground_service'.
- If the invoice text does NOT clearly and explicitly state one of these specific services, you MUST set 'service_type' and all related ID fields ('ht_id', 'ir_id', 'cr_id', 'gs_id') to null. DO NOT guess or default a service type.
- If you identify a 'service_type', you MUST set its corresponding ID and nullify the others:
    - If service_type is 'hotel', 'ht_id' can be a number if found, otherwise null. 'ir_id', 'cr_id', 'gs_id' MUST be null.
    - If service_type is 'insurance', 'ir_id' MUST be true. 'ht_id', 'cr_id', 'gs_id' MUST be null.
    - If service_type is 'catering', 'cr_id' MUST be true. 'ht_id', 'ir_id', 'gs_id' MUST be null.
    - If service_type is 'ground_service', 'gs_id' MUST be true. 'ht_id', 'ir_id', 'cr_id' MUST be null.
- This logic is critical. An invoice must have ONE service identifier if its type is known.

**OTHER CRITICAL REQUIREMENTS:**
- Count the actual rows in the product table accurately. Do not invent or duplicate products.
- Extract header information precisely: Invoice Number, Date, and Currency.

JSON SCHEMA TO FOLLOW (fill with ACTUAL data from the invoice text):
{
  "request_owner": "string (email)",
  "vendor_name": "string | null",
  "rsaf_bill": "boolean | null",
  "service_type": "string | null",
  "ht_id": "number | null",
  "ir_id": "boolean | null",
  "cr_id": "boolean | null",
  "gs_id": "boolean | null",
  "fsr_id": "string | null",
  "bill_date": "string (YYYY-MM-DD HH:MM:SS)",
  "reference": "string | null",
  "currency": "string (Full currency name, e.g., 'US Dollar', 'Saudi Riyal', 'Pound Sterling')",
  "bill_attachments": [],
  "payment_terms": "string | null",
  "product_lines": [
    {
      "product_name": "string (English / Arabic if bilingual)",
      "quantity": "number",
      "unit_price": "number",
      "discount": "number (decimal, e.g., 0.0 for 0%)",
      "spa_aircraft_tail_number": "number (0 if not applicable)",
      "tax": "string (e.g., '15%')"
    }
  ],
  "departure_iata": "string | null",
  "departure_icao": "string | null",
  "arrival_iata": "string | null",
  "arrival_icao": "string | null",
  "approver_level1": "number | null",
  "approver_level2": "number | null",
  "approver_level3": "number | null"
}

IMPORTANT RULES:
- If a value is not found, use a JSON 'null' value where the schema allows it.
- For 'product_lines', if no items are found, you MUST return an empty array: [].
- 'bill_attachments' must be an empty array: [].
- 'bill_date' must be in 'YYYY-MM-DD HH:MM:SS' format. If time is missing, use '00:00:00'.
- For 'currency', provide the full currency name (e.g., 'Pound Sterling' for GBP or £, 'US Dollar' for USD or $, 'Saudi Riyal' for SAR). If no currency is found, default to 'Saudi Riyal'.
- The 'request_owner' is always '{{REQUEST_OWNER}}'.
- The default approver_level1 should be {{DEFAULT_APPROVER}} if no specific approver is found in the text.

NOW, ANALYZE THIS INVOICE TEXT AND OUTPUT THE JSON:

--- INVOICE TEXT START ---
`

const promptFooter = `
--- INVOICE TEXT END ---
`

// rawLine tolerates numeric fields arriving as strings.
type rawLine struct {
	ProductName        string `json:"product_name"`
	Quantity           any    `json:"quantity"`
	UnitPrice          any    `json:"unit_price"`
	Discount           any    `json:"discount"`
	AircraftTailNumber any    `json:"spa_aircraft_tail_number"`
	Tax                string `json:"tax"`
}

type rawInvoice struct {
	RequestOwner    string    `json:"request_owner"`
	VendorName      *string   `json:"vendor_name"`
	RSAFBill        *bool     `json:"rsaf_bill"`
	ServiceType     *string   `json:"service_type"`
	HotelID         any       `json:"ht_id"`
	InsuranceID     *bool     `json:"ir_id"`
	CateringID      *bool     `json:"cr_id"`
	GroundServiceID *bool     `json:"gs_id"`
	FSRID           *string   `json:"fsr_id"`
	BillDate        string    `json:"bill_date"`
	Reference       string    `json:"reference"`
	Currency        string    `json:"currency"`
	PaymentTerms    string    `json:"payment_terms"`
	ProductLines    []rawLine `json:"product_lines"`
	DepartureIATA   *string   `json:"departure_iata"`
	DepartureICAO   *string   `json:"departure_icao"`
	ArrivalIATA     *string   `json:"arrival_iata"`
	ArrivalICAO     *string   `json:"arrival_icao"`
	ApproverLevel1  any       `json:"approver_level1"`
	ApproverLevel2  any       `json:"approver_level2"`
	ApproverLevel3  any       `json:"approver_level3"`
}

// Extract reads the document text, prompts the model and sanitizes the
// returned JSON into an invoice record with all defaults applied.
func (g *Gateway) Extract(ctx context.Context, file *entity.UploadedFile) (*entity.InvoiceRecord, error) {
	text, err := g.reader.ExtractText(file)
	if err != nil {
		return nil, err
	}

	prompt := g.buildPrompt(text)

	content, err := g.client.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("AI processing failed: %w", err)
	}
	if content == "" {
		return nil, ErrEmptyResponse
	}

	cleaned := codeFence.ReplaceAllString(content, "")

	var raw rawInvoice
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		g.logger.Warn("model returned unparsable JSON",
			zap.String("filename", file.Filename),
			zap.Error(err))
		return nil, ErrResponseParse
	}

	record := g.sanitize(&raw, file)
	g.logger.Info("invoice extracted",
		zap.String("filename", file.Filename),
		zap.String("reference", record.Reference),
		zap.Int("product_lines", len(record.ProductLines)))
	return record, nil
}

func (g *Gateway) buildPrompt(text string) string {
	header := strings.ReplaceAll(promptHeader, "{{REQUEST_OWNER}}", g.cfg.RequestOwner)
	header = strings.ReplaceAll(header, "{{DEFAULT_APPROVER}}", strconv.Itoa(g.cfg.DefaultApprover))
	return header + text + promptFooter
}

// sanitize applies defaults for missing fields, coerces numeric fields that
// arrived as strings, and restores the service identifier exclusivity the
// model was instructed to honor.
func (g *Gateway) sanitize(raw *rawInvoice, file *entity.UploadedFile) *entity.InvoiceRecord {
	record := &entity.InvoiceRecord{
		RequestOwner: stringOr(raw.RequestOwner, g.cfg.RequestOwner),
		VendorName:   nonEmpty(raw.VendorName),
		RSAFBill:     raw.RSAFBill,
		FSRID:        nonEmpty(raw.FSRID),
		BillDate:     stringOr(raw.BillDate, time.Now().Format("2006-01-02 15:04:05")),
		Reference:    stringOr(raw.Reference, fmt.Sprintf("INV-%d", time.Now().UnixMilli())),
		Currency:     stringOr(raw.Currency, "Saudi Riyal"),
		PaymentTerms: stringOr(raw.PaymentTerms, "N/A"),
		BillAttachments: []entity.BillAttachment{{
			Filename: file.Filename,
			Mimetype: file.Mimetype,
		}},
		DepartureIATA:  nonEmpty(raw.DepartureIATA),
		DepartureICAO:  nonEmpty(raw.DepartureICAO),
		ArrivalIATA:    nonEmpty(raw.ArrivalIATA),
		ArrivalICAO:    nonEmpty(raw.ArrivalICAO),
		ApproverLevel1: intPtrOr(raw.ApproverLevel1, g.cfg.DefaultApprover),
		ApproverLevel2: intPtr(raw.ApproverLevel2),
		ApproverLevel3: intPtr(raw.ApproverLevel3),
		ProductLines:   make([]entity.ProductLine, 0, len(raw.ProductLines)),
	}

	for _, line := range raw.ProductLines {
		record.ProductLines = append(record.ProductLines, entity.ProductLine{
			ProductName:        line.ProductName,
			Quantity:           toFloat(line.Quantity),
			UnitPrice:          toFloat(line.UnitPrice),
			Discount:           toFloat(line.Discount),
			AircraftTailNumber: toInt(line.AircraftTailNumber),
			Tax:                line.Tax,
		})
	}

	// Exactly one identifier may be set, and only when the type is known.
	if raw.ServiceType != nil && entity.ServiceType(*raw.ServiceType).IsValid() {
		st := entity.ServiceType(*raw.ServiceType)
		record.ServiceType = &st
		switch st {
		case entity.ServiceHotel:
			record.HotelID = intPtr(raw.HotelID)
		case entity.ServiceInsurance:
			record.InsuranceID = trueOrNil(raw.InsuranceID)
		case entity.ServiceCatering:
			record.CateringID = trueOrNil(raw.CateringID)
		case entity.ServiceGroundService:
			record.GroundServiceID = trueOrNil(raw.GroundServiceID)
		}
	}

	return record
}

func stringOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func trueOrNil(b *bool) *bool {
	flag := true
	if b != nil && !*b {
		return nil
	}
	return &flag
}

// toFloat coerces a JSON number or numeric string; anything else is zero.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func toInt(v any) int {
	return int(toFloat(v))
}

func intPtr(v any) *int {
	n := toInt(v)
	if n == 0 {
		return nil
	}
	return &n
}

func intPtrOr(v any, fallback int) *int {
	if p := intPtr(v); p != nil {
		return p
	}
	return &fallback
}
