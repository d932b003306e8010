package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"cafehub/internal/order"
)

var (
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrAmountMismatch  = errors.New("payment amount does not match order total")
	// ErrPaymentFailed is the provider telling us the charge did not go
	// through; the order stays placed and may be retried or cancelled.
	ErrPaymentFailed = errors.New("payment failed at provider")
)

// Orders is the slice of the order service the payment flow needs.
type Orders interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentRef string) (*order.Order, error)
}

// OrderReader loads an order without actor checks; callbacks act on behalf of
// the provider, not a user.
type OrderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

type Service interface {
	// HandleCallback records the provider's verdict and, on success, drives
	// the order to paid.
	HandleCallback(ctx context.Context, cb Callback) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error)
}

type service struct {
	repo     Repository
	orders   Orders
	orderSrc OrderReader
}

func NewService(repo Repository, orders Orders, orderSrc OrderReader) Service {
	return &service{repo: repo, orders: orders, orderSrc: orderSrc}
}

func (s *service) HandleCallback(ctx context.Context, cb Callback) error {
	if !cb.Provider.Valid() {
		return ErrUnknownProvider
	}

	// A redelivered callback for a reference we already settled is a no-op.
	if existing, err := s.repo.GetByProviderRef(ctx, cb.Provider, cb.Reference); err == nil {
		log.Info().
			Stringer("order_id", cb.OrderID).
			Str("provider_ref", cb.Reference).
			Str("state", string(existing.State)).
			Msg("Duplicate payment callback ignored")
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("service: failed to look up payment: %w", err)
	}

	o, err := s.orderSrc.GetByID(ctx, cb.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return order.ErrNotFound
		}
		return fmt.Errorf("service: failed to fetch order for payment callback: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("service: failed to generate payment ID: %w", err)
	}
	// Recorded as pending first; the row only becomes confirmed once the order
	// transition has actually committed.
	p := &Payment{
		ID:          id,
		OrderID:     cb.OrderID,
		Provider:    cb.Provider,
		ProviderRef: cb.Reference,
		Amount:      cb.Amount,
		State:       StatePending,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateRef) {
			// Lost the race with a concurrent delivery of the same callback.
			return nil
		}
		log.Error().Err(err).Stringer("order_id", cb.OrderID).Msg("service: failed to record payment")
		return fmt.Errorf("service: failed to record payment: %w", err)
	}

	var callbackErr error
	switch {
	case !cb.Succeeded:
		callbackErr = ErrPaymentFailed
	case !cb.Amount.Equal(o.Total):
		callbackErr = fmt.Errorf("%w: got %s, order total %s", ErrAmountMismatch, cb.Amount, o.Total)
	}
	if callbackErr != nil {
		s.settle(ctx, p.ID, StateFailed)
		log.Warn().
			Stringer("order_id", cb.OrderID).
			Str("provider_ref", cb.Reference).
			Err(callbackErr).
			Msg("Payment not confirmed")
		return callbackErr
	}

	if _, err := s.orders.ConfirmPayment(ctx, cb.OrderID, cb.Reference); err != nil {
		s.settle(ctx, p.ID, StateFailed)
		log.Error().Err(err).Stringer("order_id", cb.OrderID).Msg("service: failed to confirm order payment")
		return err
	}

	s.settle(ctx, p.ID, StateConfirmed)
	return nil
}

func (s *service) settle(ctx context.Context, id uuid.UUID, state State) {
	if err := s.repo.UpdateState(ctx, id, state); err != nil {
		log.Error().Err(err).Stringer("payment_id", id).Str("state", string(state)).
			Msg("service: failed to settle payment state")
	}
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	payments, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list payments: %w", err)
	}
	return payments, nil
}
