// internal/domain/payment/service.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	redisinfra "github.com/your-org/lpg-storefront/internal/infrastructure/database/redis"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"gorm.io/gorm"
)

const providerMidtrans = "midtrans"

// Service starts payments and applies gateway notifications to orders
type Service struct {
	db      *gorm.DB
	orders  *order.Service
	gateway Gateway
	redis   *goredis.Client
	config  *config.Config
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a new payment service
func NewService(db *gorm.DB, orders *order.Service, gateway Gateway, rdb *goredis.Client, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		db:      db,
		orders:  orders,
		gateway: gateway,
		redis:   rdb,
		config:  cfg,
		log:     log.WithField("component", "payment"),
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Initiate opens a hosted payment page for a pending order owned by userID.
// An open attempt is reused.
func (s *Service) Initiate(ctx context.Context, userID, orderID uint) (*Payment, error) {
	o, err := s.orders.GetUserOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPending {
		return nil, apperror.Conflict("order %s is %s and cannot be paid", o.OrderNumber, o.Status)
	}

	var existing Payment
	err = s.db.WithContext(ctx).
		Where("order_id = ? AND status = ? AND redirect_url <> ''", o.ID, StatusPending).
		Order("id DESC").
		Take(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to retrieve payment: %w", err)
	}

	resp, gwErr := s.gateway.CreateTransaction(snapRequest(o))
	if gwErr != nil {
		return nil, fmt.Errorf("failed to create payment transaction: %s", gwErr.Message)
	}

	payment := &Payment{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Provider:    providerMidtrans,
		Amount:      o.Total,
		Status:      StatusPending,
		SnapToken:   resp.Token,
		RedirectURL: resp.RedirectURL,
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	s.log.WithFields(logrus.Fields{"order_id": o.ID, "payment_id": payment.ID}).Info("payment initiated")
	return payment, nil
}

// HandleNotification verifies and applies a gateway notification. Repeats of
// the same transaction status are acknowledged without effect.
func (s *Service) HandleNotification(ctx context.Context, n *Notification) error {
	if !VerifySignature(n, s.config.Payment.ServerKey) {
		s.log.WithField("order_number", n.OrderID).Warn("payment notification with bad signature")
		return ErrInvalidSignature
	}

	key := redisinfra.PaymentDedupKey(n.TransactionID + ":" + n.TransactionStatus)
	fresh, err := s.redis.SetNX(ctx, key, s.now().Unix(), redisinfra.TTLPaymentDedup).Result()
	if err != nil {
		// Downstream transitions are idempotent, so carry on without the marker.
		s.log.WithError(err).Warn("payment dedup unavailable")
		fresh = true
	}
	if !fresh {
		s.log.WithFields(logrus.Fields{
			"transaction_id": n.TransactionID,
			"status":         n.TransactionStatus,
		}).Debug("duplicate payment notification")
		return nil
	}

	if err := s.apply(ctx, n); err != nil {
		// Let the gateway retry.
		_ = s.redis.Del(ctx, key).Err()
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, n *Notification) error {
	o, err := s.orders.GetOrderByNumber(ctx, n.OrderID)
	if err != nil {
		return err
	}

	amount, err := decimal.NewFromString(n.GrossAmount)
	if err != nil {
		return apperror.Invalid("gross_amount", "is not a number")
	}
	if !amount.Equal(o.Total) {
		return apperror.Invalid("gross_amount", fmt.Sprintf("does not match order total %s", o.Total.StringFixed(2)))
	}

	if _, err := s.record(ctx, o, n); err != nil {
		return err
	}

	entry := s.log.WithFields(logrus.Fields{
		"order_id":       o.ID,
		"transaction_id": n.TransactionID,
		"status":         n.TransactionStatus,
	})

	var invalid *order.InvalidTransitionError
	switch {
	case n.settles():
		_, err := s.orders.MarkPaid(ctx, o.ID, n.TransactionID)
		if errors.As(err, &invalid) {
			entry.Error("payment settled for an order that can no longer be paid; refund required")
			return nil
		}
		if err != nil {
			return err
		}
		entry.Info("payment settled")
	case n.fails():
		if o.Status != order.StatusPending {
			entry.Info("payment failure ignored, order already moved on")
			return nil
		}
		_, err := s.orders.Cancel(ctx, o.ID, order.SystemActor(), "payment "+n.TransactionStatus)
		if err != nil && !errors.As(err, &invalid) {
			return err
		}
		entry.Info("order cancelled after failed payment")
	default:
		entry.Debug("payment notification recorded")
	}
	return nil
}

// record upserts the Payment row for n. A row opened by Initiate is claimed
// by the first notification of its order.
func (s *Service) record(ctx context.Context, o *order.Order, n *Notification) (*Payment, error) {
	var payment Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("transaction_id = ?", n.TransactionID).Take(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = tx.Where("order_id = ? AND transaction_id IS NULL", o.ID).Order("id DESC").Take(&payment).Error
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			payment = Payment{OrderID: o.ID, OrderNumber: o.OrderNumber, Provider: providerMidtrans}
		} else if err != nil {
			return fmt.Errorf("failed to retrieve payment: %w", err)
		}

		raw, _ := json.Marshal(n)
		txID := n.TransactionID
		payment.TransactionID = &txID
		payment.TransactionStatus = n.TransactionStatus
		payment.FraudStatus = n.FraudStatus
		payment.PaymentType = n.PaymentType
		payment.Amount = o.Total
		payment.RawPayload = string(raw)
		switch {
		case n.settles():
			payment.Status = StatusSettled
			if payment.SettledAt == nil {
				at := s.now()
				payment.SettledAt = &at
			}
		case n.fails():
			payment.Status = StatusFailed
		default:
			payment.Status = StatusPending
		}
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetOrderPayments lists the payment attempts of an order
func (s *Service) GetOrderPayments(ctx context.Context, orderID uint) ([]Payment, error) {
	var payments []Payment
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve payments: %w", err)
	}
	return payments, nil
}

func snapRequest(o *order.Order) *snap.Request {
	items := make([]midtrans.ItemDetails, 0, len(o.Items)+1)
	for _, it := range o.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    it.SKU,
			Name:  truncate(it.ProductName+" "+it.VariantName, 50),
			Price: it.UnitPrice.IntPart(),
			Qty:   int32(it.Quantity),
		})
	}
	if o.ShippingFee.IsPositive() {
		items = append(items, midtrans.ItemDetails{
			ID:    "SHIPPING",
			Name:  "Delivery " + o.DeliveryZoneCode,
			Price: o.ShippingFee.IntPart(),
			Qty:   1,
		})
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  o.OrderNumber,
			GrossAmt: o.Total.IntPart(),
		},
		Items: &items,
	}
	if !o.ShippingAddress.IsZero() {
		req.CustomerDetail = &midtrans.CustomerDetails{
			FName: o.ShippingAddress.RecipientName,
			Phone: o.ShippingAddress.Phone,
		}
	}
	return req
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
