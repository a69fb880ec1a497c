// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/cart"
	"github.com/your-org/lpg-storefront/internal/domain/inventory"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/txn"
	"gorm.io/gorm"
)

// Service turns a user's cart into an order
type Service struct {
	db        *gorm.DB
	tx        *txn.Runner
	carts     *cart.Service
	orders    *order.Service
	inventory *inventory.Service
	config    *config.Config
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewService creates a new checkout service
func NewService(db *gorm.DB, carts *cart.Service, orders *order.Service, inv *inventory.Service, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		db:        db,
		tx:        txn.NewRunner(db, cfg.Database.TxRetries),
		carts:     carts,
		orders:    orders,
		inventory: inv,
		config:    cfg,
		log:       log.WithField("component", "checkout"),
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// QuoteRequest asks for the price of the current cart
type QuoteRequest struct {
	Method   order.FulfillmentMethod `form:"fulfillment_method" json:"fulfillment_method" binding:"required"`
	ZoneCode string                  `form:"zone_code" json:"zone_code"`
}

// Quote is the price breakdown shown before placing an order
type Quote struct {
	Method       order.FulfillmentMethod `json:"fulfillment_method"`
	ZoneCode     string                  `json:"zone_code,omitempty"`
	ItemCount    int                     `json:"item_count"`
	Subtotal     decimal.Decimal         `json:"subtotal"`
	ShippingFee  decimal.Decimal         `json:"shipping_fee"`
	Total        decimal.Decimal         `json:"total"`
	FreeShipping bool                    `json:"free_shipping"`
}

// Request places an order from the caller's cart
type Request struct {
	Method          order.FulfillmentMethod `json:"fulfillment_method" binding:"required"`
	ZoneCode        string                  `json:"zone_code"`
	ShippingAddress *order.Address          `json:"shipping_address"`
	Notes           string                  `json:"notes" binding:"max=1000"`
}

// ZoneRequest creates or updates a delivery zone
type ZoneRequest struct {
	Code      string           `json:"code" binding:"required"`
	Name      string           `json:"name" binding:"required"`
	Fee       decimal.Decimal  `json:"fee"`
	FreeAbove *decimal.Decimal `json:"free_above"`
	IsActive  *bool            `json:"is_active"`
}

// Quote prices owner's live cart for the given fulfillment.
func (s *Service) Quote(ctx context.Context, owner cart.Owner, req *QuoteRequest) (*Quote, error) {
	method, zone, err := s.resolveFulfillment(s.db.WithContext(ctx), req.Method, req.ZoneCode)
	if err != nil {
		return nil, err
	}

	current, err := s.carts.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	return price(method, zone, current.Totals.SubTotal, current.Totals.ItemCount), nil
}

// Checkout consumes the user's live cart entries and places a PENDING order.
// Reserved lines become order holds that lapse after the payment window.
func (s *Service) Checkout(ctx context.Context, userID uint, req *Request) (*order.Order, error) {
	owner := cart.UserOwner(userID)
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var placed *order.Order
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		placed = nil

		method, zone, err := s.resolveFulfillment(tx, req.Method, req.ZoneCode)
		if err != nil {
			return err
		}
		var address order.Address
		if method == order.FulfillmentDelivery {
			if req.ShippingAddress == nil || req.ShippingAddress.IsZero() {
				return apperror.Invalid("shipping_address", "is required for delivery")
			}
			address = *req.ShippingAddress
		}

		entries, err := s.carts.LiveEntries(tx, owner)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return apperror.Invalid("cart", "is empty")
		}

		variantIDs := make([]uint, 0, len(entries))
		for _, e := range entries {
			variantIDs = append(variantIDs, e.VariantID)
		}
		variants, err := product.LockVariants(tx, variantIDs)
		if err != nil {
			return err
		}

		items := make([]order.OrderItem, 0, len(entries))
		entryIDs := make([]uint, 0, len(entries))
		subtotal := decimal.Zero
		for i := range entries {
			e := &entries[i]
			variant, ok := variants[e.VariantID]
			if !ok || !variant.IsActive {
				return apperror.Invalid("cart", fmt.Sprintf("variant %d is no longer available", e.VariantID))
			}
			productName := variant.Name
			if e.Variant != nil && e.Variant.Product != nil {
				productName = e.Variant.Product.Name
			}
			line := e.LineTotal()
			items = append(items, order.OrderItem{
				VariantID:   e.VariantID,
				SKU:         variant.SKU,
				ProductName: productName,
				VariantName: variant.Name,
				Quantity:    e.Quantity,
				UnitPrice:   e.EffectivePrice(),
				LineTotal:   line,
				IsPreorder:  e.IsPreorder,
			})
			entryIDs = append(entryIDs, e.ID)
			subtotal = subtotal.Add(line)
		}

		quote := price(method, zone, subtotal, len(items))
		o := &order.Order{
			UserID:            userID,
			FulfillmentMethod: method,
			Subtotal:          quote.Subtotal,
			ShippingFee:       quote.ShippingFee,
			Total:             quote.Total,
			Currency:          s.config.Store.Currency,
			ShippingAddress:   address,
			DeliveryZoneCode:  quote.ZoneCode,
			CustomerNotes:     req.Notes,
			Items:             items,
		}
		if err := s.orders.Place(tx, o, order.UserActor(userID, order.ActorCustomer)); err != nil {
			return err
		}

		expiresAt := s.now().Add(s.config.Order.PaymentWindow)
		for _, item := range o.Items {
			if item.IsPreorder {
				continue
			}
			if _, err := s.inventory.Reserve(tx, &inventory.ReservationRequest{
				VariantID:   item.VariantID,
				OrderID:     o.ID,
				OrderItemID: item.ID,
				Quantity:    item.Quantity,
				ExpiresAt:   expiresAt,
			}); err != nil {
				return err
			}
		}

		if err := s.carts.DeleteEntries(tx, entryIDs); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.orders.AnnounceCreated(ctx, placed)
	return s.orders.GetOrder(ctx, placed.ID)
}

func (s *Service) resolveFulfillment(db *gorm.DB, raw order.FulfillmentMethod, zoneCode string) (order.FulfillmentMethod, *DeliveryZone, error) {
	method := order.FulfillmentMethod(strings.ToUpper(string(raw)))
	if !method.Valid() {
		return "", nil, apperror.Invalid("fulfillment_method", "must be PICKUP or DELIVERY")
	}
	if method == order.FulfillmentPickup {
		return method, nil, nil
	}
	if zoneCode == "" {
		return "", nil, apperror.Invalid("zone_code", "is required for delivery")
	}
	zone, err := findZone(db, zoneCode)
	if err != nil {
		return "", nil, err
	}
	if !zone.IsActive {
		return "", nil, apperror.Invalid("zone_code", "we do not deliver to this zone at the moment")
	}
	return method, zone, nil
}

func price(method order.FulfillmentMethod, zone *DeliveryZone, subtotal decimal.Decimal, itemCount int) *Quote {
	q := &Quote{
		Method:      method,
		ItemCount:   itemCount,
		Subtotal:    subtotal,
		ShippingFee: decimal.Zero,
	}
	if method == order.FulfillmentDelivery && zone != nil {
		q.ZoneCode = zone.Code
		q.ShippingFee = zone.FeeFor(subtotal)
		q.FreeShipping = q.ShippingFee.IsZero()
	}
	q.Total = q.Subtotal.Add(q.ShippingFee)
	return q
}

// ListZones lists delivery zones, optionally only active ones
func (s *Service) ListZones(ctx context.Context, activeOnly bool) ([]DeliveryZone, error) {
	query := s.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var zones []DeliveryZone
	if err := query.Find(&zones).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve delivery zones: %w", err)
	}
	return zones, nil
}

// SaveZone creates a zone or updates the one with the same code
func (s *Service) SaveZone(ctx context.Context, req *ZoneRequest) (*DeliveryZone, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, apperror.Invalid("code", "is required")
	}
	if req.Fee.IsNegative() {
		return nil, apperror.Invalid("fee", "must not be negative")
	}

	db := s.db.WithContext(ctx)
	zone, err := findZone(db, code)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	if zone == nil {
		zone = &DeliveryZone{Code: code, IsActive: true}
	}
	zone.Name = req.Name
	zone.Fee = req.Fee
	zone.FreeAbove = decimal.NullDecimal{}
	if req.FreeAbove != nil {
		zone.FreeAbove = decimal.NewNullDecimal(*req.FreeAbove)
	}
	if req.IsActive != nil {
		zone.IsActive = *req.IsActive
	}

	if err := db.Save(zone).Error; err != nil {
		return nil, fmt.Errorf("failed to save delivery zone: %w", err)
	}
	return zone, nil
}

func findZone(db *gorm.DB, code string) (*DeliveryZone, error) {
	var zone DeliveryZone
	if err := db.Where("code = ?", strings.ToUpper(code)).Take(&zone).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("delivery zone", code)
		}
		return nil, fmt.Errorf("failed to retrieve delivery zone: %w", err)
	}
	return &zone, nil
}
