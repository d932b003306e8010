package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"cafehub/internal/menu"
	"cafehub/internal/user"
)

var (
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrUnknownItem     = errors.New("order references a menu item that does not exist for this cafe")
	ErrItemUnavailable = errors.New("menu item is not available")
	ErrBadQuantity     = errors.New("item quantity must be greater than zero")
	ErrAccessDenied    = errors.New("order is not accessible to this user")
)

// Catalog resolves menu items at placement time. Implemented by the menu
// service.
type Catalog interface {
	ItemsByID(ctx context.Context, cafeID uuid.UUID, ids []uuid.UUID) ([]menu.Item, error)
}

// StaffChecker reports whether a user may act as staff for a cafe.
// Implemented by the cafe service.
type StaffChecker interface {
	IsStaff(ctx context.Context, cafeID, userID uuid.UUID) (bool, error)
}

// Publisher delivers status-change events after a transition commits.
type Publisher interface {
	PublishStatusChange(ctx context.Context, ev StatusChanged) error
}

type Line struct {
	MenuItemID uuid.UUID
	Quantity   int
}

type PlaceOrderInput struct {
	CafeID uuid.UUID
	Lines  []Line
}

type CancelResult struct {
	Order *Order
	// RefundDue signals that money was taken and must be returned; actually
	// issuing the refund is the payment provider's job.
	RefundDue bool
}

type Service interface {
	PlaceOrder(ctx context.Context, customerID uuid.UUID, in PlaceOrderInput) (*Order, error)
	GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Order, error)
	ListCafeOrders(ctx context.Context, actor Actor, cafeID uuid.UUID) ([]Order, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, next Status, version int64) (*Order, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, version int64) (*CancelResult, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentRef string) (*Order, error)
}

type service struct {
	repo    Repository
	catalog Catalog
	staff   StaffChecker
	events  Publisher
}

func NewService(repo Repository, catalog Catalog, staff StaffChecker, events Publisher) Service {
	return &service{repo: repo, catalog: catalog, staff: staff, events: events}
}

func (s *service) PlaceOrder(ctx context.Context, customerID uuid.UUID, in PlaceOrderInput) (*Order, error) {
	if len(in.Lines) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]uuid.UUID, 0, len(in.Lines))
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: menu item %s", ErrBadQuantity, line.MenuItemID)
		}
		ids = append(ids, line.MenuItemID)
	}

	items, err := s.catalog.ItemsByID(ctx, in.CafeID, ids)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to resolve menu items for order")
		return nil, fmt.Errorf("service: failed to resolve menu items: %w", err)
	}
	byID := make(map[uuid.UUID]menu.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	orderID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order ID: %w", err)
	}

	total := decimal.Zero
	orderItems := make([]Item, 0, len(in.Lines))
	for _, line := range in.Lines {
		mi, ok := byID[line.MenuItemID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, line.MenuItemID)
		}
		if !mi.IsAvailable {
			return nil, fmt.Errorf("%w: %s", ErrItemUnavailable, mi.Name)
		}
		itemID, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("service: failed to generate order item ID: %w", err)
		}
		// Name and price are snapshotted so later menu edits do not rewrite
		// order history.
		orderItems = append(orderItems, Item{
			ID:         itemID,
			MenuItemID: mi.ID,
			Name:       mi.Name,
			UnitPrice:  mi.Price,
			Quantity:   line.Quantity,
		})
		total = total.Add(mi.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	o := &Order{
		ID:         orderID,
		CafeID:     in.CafeID,
		CustomerID: customerID,
		Status:     StatusPlaced,
		Items:      orderItems,
		Total:      total,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().
		Stringer("order_id", o.ID).
		Stringer("cafe_id", o.CafeID).
		Stringer("customer_id", customerID).
		Str("total", o.Total.String()).
		Msg("Order placed")
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	if _, err := s.classify(ctx, actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Order, error) {
	orders, err := s.repo.ListByCustomer(ctx, customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list customer orders: %w", err)
	}
	return orders, nil
}

func (s *service) ListCafeOrders(ctx context.Context, actor Actor, cafeID uuid.UUID) ([]Order, error) {
	ok, err := s.staff.IsStaff(ctx, cafeID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to check staff membership: %w", err)
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	orders, err := s.repo.ListActiveByCafe(ctx, cafeID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list cafe orders: %w", err)
	}
	return orders, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, next Status, version int64) (*Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order for status update: %w", err)
	}

	class, err := s.classify(ctx, actor, o)
	if err != nil {
		return nil, err
	}
	if err := validateTransition(o.Status, next, class); err != nil {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("from", o.Status).
			Stringer("to", next).
			Msg("Rejected status transition")
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, o.Status, next, version, actor.UserID)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to update order status")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	s.publish(ctx, o.Status, updated)
	log.Info().
		Stringer("order_id", orderID).
		Stringer("from", o.Status).
		Stringer("to", next).
		Msg("Order status updated")
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, version int64) (*CancelResult, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order for cancellation: %w", err)
	}

	class, err := s.classify(ctx, actor, o)
	if err != nil {
		return nil, err
	}
	if err := validateTransition(o.Status, StatusCancelled, class); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, o.Status, StatusCancelled, version, actor.UserID)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to cancel order")
		return nil, fmt.Errorf("service: failed to cancel order: %w", err)
	}

	s.publish(ctx, o.Status, updated)
	log.Info().
		Stringer("order_id", orderID).
		Stringer("from", o.Status).
		Bool("refund_due", refundDue(o.Status)).
		Msg("Order cancelled")
	return &CancelResult{Order: updated, RefundDue: refundDue(o.Status)}, nil
}

// ConfirmPayment drives placed → paid on behalf of the payment provider.
// The webhook has no client-supplied version, so the current version is read
// and the update retried on conflict.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentRef string) (*Order, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		o, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("service: failed to fetch order for payment confirmation: %w", err)
		}

		// Provider callbacks can be delivered more than once.
		if o.Status == StatusPaid && o.PaymentRef == paymentRef {
			return o, nil
		}

		if err := validateTransition(o.Status, StatusPaid, classPayment); err != nil {
			return nil, err
		}

		updated, err := s.repo.MarkPaid(ctx, orderID, paymentRef, o.Version)
		if err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to mark order paid")
			return nil, fmt.Errorf("service: failed to mark order paid: %w", err)
		}

		s.publish(ctx, StatusPlaced, updated)
		log.Info().Stringer("order_id", orderID).Str("payment_ref", paymentRef).Msg("Order payment confirmed")
		return updated, nil
	}
	return nil, lastErr
}

// classify maps an actor onto the transition-table actor classes for a
// concrete order. Staff membership wins over ownership of the order, so a
// staff member ordering from their own cafe keeps staff powers.
func (s *service) classify(ctx context.Context, actor Actor, o *Order) (actorClass, error) {
	if actor.Role == user.RoleStaff || actor.Role == user.RoleOwner {
		ok, err := s.staff.IsStaff(ctx, o.CafeID, actor.UserID)
		if err != nil {
			return 0, fmt.Errorf("service: failed to check staff membership: %w", err)
		}
		if ok {
			return classStaff, nil
		}
	}
	if actor.UserID == o.CustomerID {
		return classCustomer, nil
	}
	return 0, ErrAccessDenied
}

func (s *service) publish(ctx context.Context, from Status, o *Order) {
	if s.events == nil {
		return
	}
	ev := StatusChanged{
		OrderID:    o.ID,
		CafeID:     o.CafeID,
		OldStatus:  from,
		NewStatus:  o.Status,
		Version:    o.Version,
		OccurredAt: time.Now().UTC(),
	}
	// Best effort: the transition is already committed, a broker outage must
	// not fail the request.
	if err := s.events.PublishStatusChange(ctx, ev); err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to publish status change event")
	}
}
