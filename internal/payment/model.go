package payment

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Provider string

const (
	ProviderMpesa  Provider = "mpesa"
	ProviderStripe Provider = "stripe"
)

func (p Provider) Valid() bool {
	return p == ProviderMpesa || p == ProviderStripe
}

type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

type Payment struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	Provider    Provider        `json:"provider"`
	ProviderRef string          `json:"provider_ref"`
	Amount      decimal.Decimal `json:"amount"`
	State       State           `json:"state"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Callback is the normalized payload of a provider webhook.
type Callback struct {
	Provider  Provider        `json:"provider"`
	OrderID   uuid.UUID       `json:"order_id"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Succeeded bool            `json:"succeeded"`
}
