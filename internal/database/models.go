package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type Restaurant struct {
	ID                 uuid.UUID
	Name               string
	Slug               string
	TzOffsetMinutes    int32
	Plan               string
	SubscriptionStatus string
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Table struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	TableCode    string
	IsActive     bool
	CreatedAt    time.Time
}

type MenuItem struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Category     string
	Name         string
	Description  pgtype.Text
	Price        pgtype.Numeric
	IsAvailable  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type User struct {
	ID             uuid.UUID
	RestaurantID   pgtype.UUID // null for SUPER_ADMIN
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	CreatedAt      time.Time
}

// OrderLine is one priced snapshot entry in an order's JSONB items
// column. Name and price are captured at placement time and never
// re-derived from the live menu, so later menu edits cannot corrupt
// open or settled bills.
type OrderLine struct {
	ItemID   uuid.UUID       `json:"itemId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int32           `json:"quantity"`
}

type Order struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	TableID      uuid.UUID
	SessionID    string
	Items        []OrderLine
	TotalAmount  pgtype.Numeric
	Status       string
	CancelReason pgtype.Text
	Notes        pgtype.Text
	Billed       bool
	BillID       pgtype.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BillLine is one consolidated line in a bill's JSONB items column.
// Lines are merged by (itemId, price); the same item at two snapshot
// prices stays on two lines.
type BillLine struct {
	ItemID    uuid.UUID       `json:"itemId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int32           `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type Bill struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	TableID      uuid.UUID
	OrderIDs     []uuid.UUID
	Items        []BillLine
	Subtotal     pgtype.Numeric
	TaxAmount    pgtype.Numeric
	GrandTotal   pgtype.Numeric
	Status       string
	ClosedBy     pgtype.UUID
	ClosedAt     time.Time
	CreatedAt    time.Time
}

type ServiceRequest struct {
	ID                 uuid.UUID
	RestaurantID       uuid.UUID
	TableID            uuid.UUID
	TableCode          string
	Type               string
	Status             string
	RequestedBySession pgtype.Text
	AckAt              pgtype.Timestamptz
	ClosedAt           pgtype.Timestamptz
	CreatedAt          time.Time
}
