package domain

import "time"

// MaxTripIDLength is the width of the trip_id column.
const MaxTripIDLength = 50

// LoadRecord is a persisted freight listing.
type LoadRecord struct {
	ID               int64      `db:"id" json:"id"`
	TripID           string     `db:"trip_id" json:"tripId"`
	TransportType    *string    `db:"transport_type" json:"transportType"`
	Origin           *string    `db:"origin" json:"origin"`
	Destination      *string    `db:"destination" json:"destination"`
	Product          *string    `db:"product" json:"product"`
	Equipment        *string    `db:"equipment" json:"equipment"`
	ExpectedPickupAt *string    `db:"expected_pickup_at" json:"expectedPickupAt"`
	DeliveryCount    *string    `db:"delivery_count" json:"deliveryCount"`
	FreightValue     *string    `db:"freight_value" json:"freightValue"`
	FinishAt         *string    `db:"finish_at" json:"finishAt"`
	NotifiedAt       *time.Time `db:"notified_at" json:"notifiedAt"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

// ScrapedListing is one row of the portal listings table, as scraped.
// The portal calls the trip id "viagem".
type ScrapedListing struct {
	TripID           string `validate:"required,max=50"`
	TransportType    string `validate:"max=255"`
	Origin           string `validate:"omitempty,max=255"`
	Destination      string `validate:"omitempty,max=255"`
	Product          string `validate:"max=255"`
	Equipment        string `validate:"max=255"`
	ExpectedPickupAt string `validate:"max=100"`
	DeliveryCount    string `validate:"max=50"`
	FreightValue     string `validate:"max=100"`
	FinishAt         string `validate:"max=100"`
}

// ToRecord maps a scraped row to a record ready for insertion.
// Empty cells become NULL columns.
func (l ScrapedListing) ToRecord() *LoadRecord {
	return &LoadRecord{
		TripID:           l.TripID,
		TransportType:    optional(l.TransportType),
		Origin:           optional(l.Origin),
		Destination:      optional(l.Destination),
		Product:          optional(l.Product),
		Equipment:        optional(l.Equipment),
		ExpectedPickupAt: optional(l.ExpectedPickupAt),
		DeliveryCount:    optional(l.DeliveryCount),
		FreightValue:     optional(l.FreightValue),
		FinishAt:         optional(l.FinishAt),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SortField names a column the read side may order by.
type SortField string

const (
	SortCreatedAt        SortField = "createdAt"
	SortExpectedPickupAt SortField = "expectedPickupAt"
	SortTripID           SortField = "tripId"
	SortOrigin           SortField = "origin"
	SortDestination      SortField = "destination"
	SortProduct          SortField = "product"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListQuery describes a paginated, sorted read of load records.
type ListQuery struct {
	Limit     int
	Offset    int
	SortBy    SortField
	SortOrder SortOrder
}

// Normalized returns q with unknown sort settings replaced by createdAt/desc.
func (q ListQuery) Normalized() ListQuery {
	switch q.SortBy {
	case SortCreatedAt, SortExpectedPickupAt, SortTripID, SortOrigin, SortDestination, SortProduct:
	default:
		q.SortBy = SortCreatedAt
		q.SortOrder = SortDesc
	}
	switch q.SortOrder {
	case SortAsc, SortDesc:
	default:
		q.SortBy = SortCreatedAt
		q.SortOrder = SortDesc
	}
	return q
}
