// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/pagination"
	"github.com/your-org/lpg-storefront/internal/pkg/txn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HoldManager settles the inventory holds placed at checkout.
type HoldManager interface {
	FulfillOrder(tx *gorm.DB, orderID uint, actor *uint) error
	ReleaseOrder(tx *gorm.DB, orderID uint, actor *uint) error
}

// PickupIssuer keeps the collection token in step with the order. It issues
// the token when a pickup order is ready and closes it when the order is
// collected or cancelled.
type PickupIssuer interface {
	IssueToken(tx *gorm.DB, orderID uint) error
	CloseToken(tx *gorm.DB, orderID uint, to Status, actor Actor, at time.Time) error
}

// Service is the order status machine
type Service struct {
	db     *gorm.DB
	tx     *txn.Runner
	holds  HoldManager
	pickup PickupIssuer
	events Publisher
	rdb    *goredis.Client
	config *config.Config
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewService creates a new order service. rdb may be nil, in which case the
// status cache and dashboard counter are skipped.
func NewService(db *gorm.DB, holds HoldManager, rdb *goredis.Client, events Publisher, cfg *config.Config, log logrus.FieldLogger) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		db:     db,
		tx:     txn.NewRunner(db, cfg.Database.TxRetries),
		holds:  holds,
		events: events,
		rdb:    rdb,
		config: cfg,
		log:    log.WithField("component", "order"),
		now:    time.Now,
	}
}

// SetPickupIssuer wires the token issuer. The pickup service depends on
// this service, so it is attached after construction.
func (s *Service) SetPickupIssuer(p PickupIssuer) {
	s.pickup = p
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ListRequest represents order list query parameters
type ListRequest struct {
	Page      int               `form:"page,default=1"`
	Limit     int               `form:"limit,default=20"`
	Status    Status            `form:"status"`
	Method    FulfillmentMethod `form:"fulfillment_method"`
	UserID    uint              `form:"user_id"`
	Search    string            `form:"search"`
	SortBy    string            `form:"sort_by,default=created_at"`
	SortOrder string            `form:"sort_order,default=desc"`
	DateFrom  string            `form:"date_from"`
	DateTo    string            `form:"date_to"`
}

// ListResponse represents orders with pagination
type ListResponse struct {
	Orders     []Order               `json:"orders"`
	Pagination pagination.Pagination `json:"pagination"`
}

// Transition describes one status change made inside a transaction. It is
// handed to Announce once the transaction has committed.
type Transition struct {
	Order   *Order
	From    Status
	To      Status
	Actor   Actor
	Comment string
	At      time.Time
}

// Place inserts a new PENDING order with its items inside tx and assigns
// the order number.
func (s *Service) Place(tx *gorm.DB, o *Order, actor Actor) error {
	if !o.FulfillmentMethod.Valid() {
		return apperror.Invalid("fulfillment_method", "must be PICKUP or DELIVERY")
	}
	now := s.now()
	o.Status = StatusPending
	o.CreatedAt = now
	o.UpdatedAt = now
	// Placeholder keeps the unique index happy until the id is known.
	o.OrderNumber = "TMP-" + uuid.NewString()

	if err := tx.Create(o).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	o.OrderNumber = FormatOrderNumber(now, o.ID)
	if err := tx.Model(o).Update("order_number", o.OrderNumber).Error; err != nil {
		return fmt.Errorf("failed to update order number: %w", err)
	}

	history := OrderStatusHistory{
		OrderID:   o.ID,
		ToStatus:  StatusPending,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Comment:   "order placed",
		CreatedAt: now,
	}
	if err := tx.Create(&history).Error; err != nil {
		return fmt.Errorf("failed to create status history: %w", err)
	}
	o.StatusHistory = []OrderStatusHistory{history}
	return nil
}

// AnnounceCreated publishes order.created for a committed order.
func (s *Service) AnnounceCreated(ctx context.Context, o *Order) {
	s.publish(ctx, EventOrderCreated, o.OrderNumber, CreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Method:      o.FulfillmentMethod,
		Total:       o.Total.StringFixed(2),
		ItemCount:   len(o.Items),
	})
	s.cacheStatus(ctx, o)
	s.bumpDashboardVersion(ctx)

	s.log.WithFields(logrus.Fields{
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
		"method":       o.FulfillmentMethod,
		"total":        o.Total.String(),
	}).Info("order placed")
}

// UpdateStatus moves an order to target if the transition table allows it.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, target Status, actor Actor, comment string) (*Order, error) {
	var t *Transition
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		var err error
		t, err = s.ApplyTransition(tx, orderID, target, actor, comment)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Announce(ctx, t)
	return s.GetOrder(ctx, orderID)
}

// ApplyTransition locks the order row and performs the transition inside
// tx, including its inventory and pickup side effects. Callers must pass the
// result to Announce after commit.
func (s *Service) ApplyTransition(tx *gorm.DB, orderID uint, target Status, actor Actor, comment string) (*Transition, error) {
	o, err := lockOrder(tx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(tx, o, target, actor, comment)
}

func (s *Service) transition(tx *gorm.DB, o *Order, target Status, actor Actor, comment string) (*Transition, error) {
	if !CanTransition(o.Status, target, o.FulfillmentMethod) {
		return nil, &InvalidTransitionError{
			Current:   o.Status,
			Attempted: target,
			Available: AvailableNextStatuses(o.Status, o.FulfillmentMethod),
		}
	}

	from := o.Status
	now := s.now()

	switch target {
	case StatusPaid:
		if err := s.holds.FulfillOrder(tx, o.ID, actor.ID); err != nil {
			return nil, err
		}
	case StatusCancelled:
		if err := s.holds.ReleaseOrder(tx, o.ID, actor.ID); err != nil {
			return nil, err
		}
	case StatusWaitingForPickup:
		if s.pickup != nil {
			if err := s.pickup.IssueToken(tx, o.ID); err != nil {
				return nil, err
			}
		}
	}
	if from == StatusWaitingForPickup && s.pickup != nil {
		if err := s.pickup.CloseToken(tx, o.ID, target, actor, now); err != nil {
			return nil, err
		}
	}

	o.Status = target
	o.UpdatedAt = now
	columns := append([]string{"status", "updated_at"}, o.stamp(target, now)...)
	if target == StatusCancelled && comment != "" {
		o.CancelReason = comment
		columns = append(columns, "cancel_reason")
	}
	if err := tx.Model(o).Select(columns).Updates(o).Error; err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	history := OrderStatusHistory{
		OrderID:    o.ID,
		FromStatus: from,
		ToStatus:   target,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Comment:    comment,
		CreatedAt:  now,
	}
	if err := tx.Create(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to create status history: %w", err)
	}

	return &Transition{Order: o, From: from, To: target, Actor: actor, Comment: comment, At: now}, nil
}

// Announce publishes order.status_changed, refreshes the status cache and
// bumps the dashboard version. Failures are logged only.
func (s *Service) Announce(ctx context.Context, t *Transition) {
	if t == nil {
		return
	}
	s.publish(ctx, EventStatusChanged, t.Order.OrderNumber, StatusChangedPayload{
		OrderID:     t.Order.ID,
		OrderNumber: t.Order.OrderNumber,
		UserID:      t.Order.UserID,
		From:        t.From,
		To:          t.To,
		ActorID:     t.Actor.ID,
		ActorRole:   t.Actor.Role,
		Comment:     t.Comment,
	})
	s.cacheStatus(ctx, t.Order)
	s.bumpDashboardVersion(ctx)

	s.log.WithFields(logrus.Fields{
		"order_id":   t.Order.ID,
		"from":       t.From,
		"to":         t.To,
		"actor_role": t.Actor.Role,
	}).Info("order status changed")
}

// MarkPaid records a settled payment. It is idempotent: an order that is
// already paid is returned unchanged.
func (s *Service) MarkPaid(ctx context.Context, orderID uint, paymentRef string) (*Order, error) {
	var t *Transition
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		t = nil
		o, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending {
			if o.IsPaid() {
				return nil
			}
			return &InvalidTransitionError{
				Current:   o.Status,
				Attempted: StatusPaid,
				Available: AvailableNextStatuses(o.Status, o.FulfillmentMethod),
			}
		}
		if paymentRef != "" {
			o.PaymentRef = paymentRef
			if err := tx.Model(o).Update("payment_ref", paymentRef).Error; err != nil {
				return fmt.Errorf("failed to record payment reference: %w", err)
			}
		}
		t, err = s.transition(tx, o, StatusPaid, SystemActor(), "payment settled")
		return err
	})
	if err != nil {
		return nil, err
	}

	if t == nil {
		s.log.WithField("order_id", orderID).Debug("order already paid")
	}
	s.Announce(ctx, t)
	return s.GetOrder(ctx, orderID)
}

// Cancel cancels an order. Customers may only cancel their own orders and
// only while payment is still pending.
func (s *Service) Cancel(ctx context.Context, orderID uint, actor Actor, reason string) (*Order, error) {
	var t *Transition
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		o, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if actor.Role == ActorCustomer {
			if actor.ID == nil || o.UserID != *actor.ID {
				return apperror.NotFound("order", orderID)
			}
			if o.Status != StatusPending {
				return &InvalidTransitionError{Current: o.Status, Attempted: StatusCancelled, Available: []Status{}}
			}
		}
		t, err = s.transition(tx, o, StatusCancelled, actor, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Announce(ctx, t)
	return s.GetOrder(ctx, orderID)
}

// CancelExpiredUnpaid cancels PENDING orders whose payment window has
// closed. It returns how many were cancelled.
func (s *Service) CancelExpiredUnpaid(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.config.Order.PaymentWindow)

	var pending []Order
	if err := s.db.WithContext(ctx).
		Select("id", "created_at").
		Where("status = ?", StatusPending).
		Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("failed to load pending orders: %w", err)
	}

	cancelled := 0
	for _, o := range pending {
		if o.CreatedAt.After(cutoff) {
			continue
		}
		_, err := s.Cancel(ctx, o.ID, SystemActor(), "payment window elapsed")
		var invalid *InvalidTransitionError
		switch {
		case err == nil:
			cancelled++
		case errors.As(err, &invalid):
			// Paid or cancelled since we looked.
		default:
			return cancelled, err
		}
	}
	return cancelled, nil
}

// GetOrder retrieves a single order by ID
func (s *Service) GetOrder(ctx context.Context, id uint) (*Order, error) {
	var order Order
	err := s.withDetails(s.db.WithContext(ctx)).First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("order", id)
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &order, nil
}

// GetUserOrder retrieves an order only if it belongs to userID
func (s *Service) GetUserOrder(ctx context.Context, userID, id uint) (*Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperror.NotFound("order", id)
	}
	return order, nil
}

// GetOrderByNumber retrieves a single order by order number
func (s *Service) GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	var order Order
	err := s.withDetails(s.db.WithContext(ctx)).Where("order_number = ?", orderNumber).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("order", orderNumber)
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &order, nil
}

// ListOrders retrieves orders with filtering and pagination
func (s *Service) ListOrders(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	query := s.db.WithContext(ctx).Model(&Order{})

	if req.Status != "" {
		status, err := ParseStatus(string(req.Status))
		if err != nil {
			return nil, err
		}
		query = query.Where("status = ?", status)
	}
	if req.Method != "" {
		query = query.Where("fulfillment_method = ?", strings.ToUpper(string(req.Method)))
	}
	if req.UserID > 0 {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.Search != "" {
		query = query.Where("order_number LIKE ?", "%"+strings.ToUpper(req.Search)+"%")
	}
	if req.DateFrom != "" {
		from, err := time.Parse("2006-01-02", req.DateFrom)
		if err != nil {
			return nil, apperror.Invalid("date_from", "must be YYYY-MM-DD")
		}
		query = query.Where("created_at >= ?", from)
	}
	if req.DateTo != "" {
		to, err := time.Parse("2006-01-02", req.DateTo)
		if err != nil {
			return nil, apperror.Invalid("date_to", "must be YYYY-MM-DD")
		}
		query = query.Where("created_at < ?", to.AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	if err := query.
		Preload("Items").
		Order(buildOrderClause(req.SortBy, req.SortOrder)).
		Scopes(pagination.Scope(req.Page, req.Limit)).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	return &ListResponse{
		Orders:     orders,
		Pagination: pagination.New(req.Page, req.Limit, total),
	}, nil
}

// GetHistory lists an order's status changes oldest first
func (s *Service) GetHistory(ctx context.Context, orderID uint) ([]OrderStatusHistory, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	if count == 0 {
		return nil, apperror.NotFound("order", orderID)
	}

	var history []OrderStatusHistory
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve status history: %w", err)
	}
	return history, nil
}

// GetStatus returns the order's current status, from cache when possible.
func (s *Service) GetStatus(ctx context.Context, orderID uint) (*StatusSnapshot, error) {
	if snap, ok := s.cachedStatus(ctx, orderID); ok {
		return snap, nil
	}

	var o Order
	err := s.db.WithContext(ctx).Select("id", "order_number", "status", "updated_at").First(&o, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	s.cacheStatus(ctx, &o)
	snap := snapshotOf(&o)
	return &snap, nil
}

func (s *Service) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
}

func (s *Service) publish(ctx context.Context, eventType, correlationID string, payload interface{}) {
	env, err := newEnvelope(eventType, s.config.App.Name, correlationID, payload, s.now())
	if err != nil {
		s.log.WithError(err).WithField("event_type", eventType).Error("failed to encode order event")
		return
	}
	if err := s.events.Publish(ctx, env); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"event_id":   env.EventID,
		}).Warn("failed to publish order event")
	}
}

func lockOrder(tx *gorm.DB, id uint) (*Order, error) {
	var o Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("order", id)
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return &o, nil
}

var sortColumns = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"total":        "total",
	"status":       "status",
	"order_number": "order_number",
}

func buildOrderClause(sortBy, sortOrder string) string {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = "created_at"
	}
	if strings.ToLower(sortOrder) == "asc" {
		return column + " ASC, id ASC"
	}
	return column + " DESC, id DESC"
}
