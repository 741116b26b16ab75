package entity

import "encoding/json"

// ServiceType classifies which downstream accounting module receives the invoice.
type ServiceType string

const (
	ServiceHotel         ServiceType = "hotel"
	ServiceInsurance     ServiceType = "insurance"
	ServiceCatering      ServiceType = "catering"
	ServiceGroundService ServiceType = "ground_service"
)

// HotelServiceID is the fixed identifier assigned to hotel-service invoices.
const HotelServiceID = 21

var validServiceTypes = map[ServiceType]bool{
	ServiceHotel:         true,
	ServiceInsurance:     true,
	ServiceCatering:      true,
	ServiceGroundService: true,
}

// IsValid returns true if the service type is one of the four known values.
func (s ServiceType) IsValid() bool {
	return validServiceTypes[s]
}

// String returns the string representation of the service type.
func (s ServiceType) String() string {
	return string(s)
}

// BillAttachment is a single file attached to an invoice. Data carries the
// base64-encoded content and is only populated right before posting.
type BillAttachment struct {
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Data     string `json:"data,omitempty"`
}

// ProductLine is one line item on an invoice.
type ProductLine struct {
	ProductName        string  `json:"product_name"`
	Quantity           float64 `json:"quantity"`
	UnitPrice          float64 `json:"unit_price"`
	Discount           float64 `json:"discount"`
	AircraftTailNumber int     `json:"spa_aircraft_tail_number"`
	Tax                string  `json:"tax"`
}

// Subtotal returns quantity x unit price less the discount fraction.
func (p ProductLine) Subtotal() float64 {
	return p.Quantity * p.UnitPrice * (1 - p.Discount)
}

// InvoiceRecord is the working invoice under edit. Field names mirror the
// posting API payload.
type InvoiceRecord struct {
	RequestOwner    string           `json:"request_owner"`
	VendorName      *string          `json:"vendor_name"`
	RSAFBill        *bool            `json:"rsaf_bill"`
	ServiceType     *ServiceType     `json:"service_type"`
	HotelID         *int             `json:"ht_id"`
	InsuranceID     *bool            `json:"ir_id"`
	CateringID      *bool            `json:"cr_id"`
	GroundServiceID *bool            `json:"gs_id"`
	FSRID           *string          `json:"fsr_id"`
	BillDate        string           `json:"bill_date"`
	Reference       string           `json:"reference"`
	Currency        string           `json:"currency"`
	BillAttachments []BillAttachment `json:"bill_attachments"`
	PaymentTerms    string           `json:"payment_terms"`
	DepartureIATA   *string          `json:"departure_iata"`
	DepartureICAO   *string          `json:"departure_icao"`
	ArrivalIATA     *string          `json:"arrival_iata"`
	ArrivalICAO     *string          `json:"arrival_icao"`
	ApproverLevel1  *int             `json:"approver_level1"`
	ApproverLevel2  *int             `json:"approver_level2"`
	ApproverLevel3  *int             `json:"approver_level3"`
	ProductLines    []ProductLine    `json:"product_lines"`
}

// Total sums all product line subtotals.
func (r *InvoiceRecord) Total() float64 {
	var total float64
	for _, line := range r.ProductLines {
		total += line.Subtotal()
	}
	return total
}

// ClearServiceIdentifiers nulls all four service identifier fields.
func (r *InvoiceRecord) ClearServiceIdentifiers() {
	r.HotelID = nil
	r.InsuranceID = nil
	r.CateringID = nil
	r.GroundServiceID = nil
}

// SetServiceType assigns the service type and exactly one matching
// identifier; the other three identifiers are nulled. Hotel invoices get
// the fixed numeric identifier, the rest a boolean flag.
func (r *InvoiceRecord) SetServiceType(st ServiceType) {
	r.ClearServiceIdentifiers()
	r.ServiceType = &st

	flag := true
	switch st {
	case ServiceHotel:
		id := HotelServiceID
		r.HotelID = &id
	case ServiceInsurance:
		r.InsuranceID = &flag
	case ServiceCatering:
		r.CateringID = &flag
	case ServiceGroundService:
		r.GroundServiceID = &flag
	}
}

// ClearApprovers nulls all three approver levels.
func (r *InvoiceRecord) ClearApprovers() {
	r.ApproverLevel1 = nil
	r.ApproverLevel2 = nil
	r.ApproverLevel3 = nil
}

// Clone returns a deep copy of the record so the posting payload can be
// mutated without touching engine state.
func (r *InvoiceRecord) Clone() *InvoiceRecord {
	data, err := json.Marshal(r)
	if err != nil {
		// InvoiceRecord contains only JSON-serializable fields.
		panic(err)
	}
	var copied InvoiceRecord
	if err := json.Unmarshal(data, &copied); err != nil {
		panic(err)
	}
	return &copied
}
