package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"cafehub/internal/user"
)

type Status string

const (
	StatusPlaced    Status = "placed"
	StatusPaid      Status = "paid"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPlaced, StatusPaid, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Item struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
}

type Order struct {
	ID         uuid.UUID       `json:"id"`
	CafeID     uuid.UUID       `json:"cafe_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Status     Status          `json:"status"`
	Items      []Item          `json:"items"`
	Total      decimal.Decimal `json:"total"`
	PaymentRef string          `json:"payment_ref,omitempty"`
	Version    int64           `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Actor is the authenticated principal attempting an operation on an order.
type Actor struct {
	UserID uuid.UUID
	Role   user.Role
}

// StatusChanged is published after a status transition commits.
type StatusChanged struct {
	OrderID    uuid.UUID `json:"order_id"`
	CafeID     uuid.UUID `json:"cafe_id"`
	OldStatus  Status    `json:"old_status"`
	NewStatus  Status    `json:"new_status"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}
