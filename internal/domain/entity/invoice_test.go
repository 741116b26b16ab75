package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductLine_Subtotal(t *testing.T) {
	line := ProductLine{Quantity: 2, UnitPrice: 100, Discount: 0.1}
	assert.InDelta(t, 180.0, line.Subtotal(), 0.0001)
}

func TestInvoiceRecord_Total(t *testing.T) {
	record := &InvoiceRecord{
		ProductLines: []ProductLine{
			{Quantity: 2, UnitPrice: 100, Discount: 0.1},
			{Quantity: 1, UnitPrice: 50},
		},
	}
	assert.InDelta(t, 230.0, record.Total(), 0.0001)

	empty := &InvoiceRecord{}
	assert.Zero(t, empty.Total())
}

func TestInvoiceRecord_SetServiceType(t *testing.T) {
	tests := []struct {
		name        string
		serviceType ServiceType
		check       func(t *testing.T, r *InvoiceRecord)
	}{
		{
			name:        "hotel gets fixed numeric id",
			serviceType: ServiceHotel,
			check: func(t *testing.T, r *InvoiceRecord) {
				assert.Equal(t, HotelServiceID, *r.HotelID)
				assert.Nil(t, r.InsuranceID)
				assert.Nil(t, r.CateringID)
				assert.Nil(t, r.GroundServiceID)
			},
		},
		{
			name:        "insurance gets boolean flag",
			serviceType: ServiceInsurance,
			check: func(t *testing.T, r *InvoiceRecord) {
				assert.True(t, *r.InsuranceID)
				assert.Nil(t, r.HotelID)
				assert.Nil(t, r.CateringID)
				assert.Nil(t, r.GroundServiceID)
			},
		},
		{
			name:        "catering gets boolean flag",
			serviceType: ServiceCatering,
			check: func(t *testing.T, r *InvoiceRecord) {
				assert.True(t, *r.CateringID)
				assert.Nil(t, r.HotelID)
				assert.Nil(t, r.InsuranceID)
				assert.Nil(t, r.GroundServiceID)
			},
		},
		{
			name:        "ground service gets boolean flag",
			serviceType: ServiceGroundService,
			check: func(t *testing.T, r *InvoiceRecord) {
				assert.True(t, *r.GroundServiceID)
				assert.Nil(t, r.HotelID)
				assert.Nil(t, r.InsuranceID)
				assert.Nil(t, r.CateringID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &InvoiceRecord{}
			// Pre-populate a conflicting identifier to prove it gets cleared.
			stale := 99
			record.HotelID = &stale

			record.SetServiceType(tt.serviceType)

			assert.Equal(t, tt.serviceType, *record.ServiceType)
			tt.check(t, record)
		})
	}
}

func TestInvoiceRecord_SwitchingServiceTypeClearsPrevious(t *testing.T) {
	record := &InvoiceRecord{}
	record.SetServiceType(ServiceHotel)
	record.SetServiceType(ServiceCatering)

	assert.Equal(t, ServiceCatering, *record.ServiceType)
	assert.Nil(t, record.HotelID)
	assert.True(t, *record.CateringID)
}

func TestInvoiceRecord_ClearApprovers(t *testing.T) {
	one, two := 1, 2
	record := &InvoiceRecord{ApproverLevel1: &one, ApproverLevel2: &two}
	record.ClearApprovers()

	assert.Nil(t, record.ApproverLevel1)
	assert.Nil(t, record.ApproverLevel2)
	assert.Nil(t, record.ApproverLevel3)
}

func TestInvoiceRecord_Clone(t *testing.T) {
	vendor := "ACME Aviation"
	record := &InvoiceRecord{
		VendorName:   &vendor,
		Reference:    "INV-1",
		ProductLines: []ProductLine{{ProductName: "Fuel", Quantity: 1, UnitPrice: 10}},
	}

	clone := record.Clone()
	*clone.VendorName = "Other"
	clone.ProductLines[0].UnitPrice = 99

	assert.Equal(t, "ACME Aviation", *record.VendorName)
	assert.InDelta(t, 10.0, record.ProductLines[0].UnitPrice, 0.0001)
}

func TestServiceType_IsValid(t *testing.T) {
	assert.True(t, ServiceHotel.IsValid())
	assert.True(t, ServiceGroundService.IsValid())
	assert.False(t, ServiceType("fuel").IsValid())
	assert.False(t, ServiceType("").IsValid())
}
