package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lpg-storefront/internal/app"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/order/ordertest"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"github.com/your-org/lpg-storefront/internal/infrastructure/database/postgres"
	redisinfra "github.com/your-org/lpg-storefront/internal/infrastructure/database/redis"
	httpserver "github.com/your-org/lpg-storefront/internal/interfaces/http"
	"github.com/your-org/lpg-storefront/internal/pkg/logger"
	"github.com/your-org/lpg-storefront/internal/pkg/testdb"
	"gorm.io/gorm"
)

const (
	adminEmail    = "owner@lpgstore.local"
	adminPassword = "Depot2024Admin"
)

type harness struct {
	t       *testing.T
	db      *gorm.DB
	redis   *miniredis.Miniredis
	handler nethttp.Handler
	events  *ordertest.RecordingPublisher
}

func newHarness(t *testing.T, rateLimit int) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testdb.New(t, postgres.Models()...)
	rdb, mr := testdb.Redis(t)
	cfg := &config.Config{
		App:      config.AppConfig{Name: "lpg-test", Environment: "test"},
		Database: config.DatabaseConfig{TxRetries: 1},
		JWT: config.JWTConfig{
			Secret:             "0123456789abcdef0123456789abcdef",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
		},
		Security: config.SecurityConfig{
			BcryptCost:         4,
			RateLimitPerMinute: rateLimit,
			CORSAllowedOrigins: []string{"http://shop.local"},
			CORSAllowedMethods: []string{"GET", "POST"},
			CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
		},
		Cart:   config.CartConfig{ReservationTTL: 15 * time.Minute, SessionCookie: "session_id", SessionMaxAge: time.Hour},
		Order:  config.OrderConfig{PaymentWindow: 24 * time.Hour, StatusCacheTTL: time.Minute},
		Pickup: config.PickupConfig{TokenTTL: 48 * time.Hour, QRSize: 128},
		Store:  config.StoreConfig{Currency: "IDR", CompanyName: "Depot Gas"},
	}
	log := logger.Discard()
	events := &ordertest.RecordingPublisher{}

	services := app.BuildServices(db, rdb, events, cfg, log)
	seeder := postgres.NewSeeder(db, services.Users, services.Checkout, log)
	require.NoError(t, seeder.SeedInitialData(context.Background(), adminEmail, adminPassword))

	server := httpserver.NewServer(services, &postgres.DB{DB: db}, &redisinfra.Client{Redis: rdb})
	return &harness{t: t, db: db, redis: mr, handler: server.Handler(), events: events}
}

type reply struct {
	code    int
	header  nethttp.Header
	body    map[string]interface{}
	rawBody []byte
}

func (r reply) data() map[string]interface{} {
	d, _ := r.body["data"].(map[string]interface{})
	return d
}

func (h *harness) do(method, path, token string, body interface{}, headers ...string) reply {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)

	out := reply{code: w.Code, header: w.Header(), rawBody: w.Body.Bytes()}
	_ = json.Unmarshal(w.Body.Bytes(), &out.body)
	return out
}

func (h *harness) login(email, password string) string {
	h.t.Helper()
	r := h.do(nethttp.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(h.t, nethttp.StatusOK, r.code, string(r.rawBody))
	return r.data()["access_token"].(string)
}

func (h *harness) variantID(sku string) uint {
	h.t.Helper()
	var v product.ProductVariant
	require.NoError(h.t, h.db.Where("sku = ?", sku).First(&v).Error)
	return v.ID
}

func TestHealth(t *testing.T) {
	h := newHarness(t, 0)

	r := h.do(nethttp.MethodGet, "/health", "", nil)
	assert.Equal(t, nethttp.StatusOK, r.code)
	assert.Equal(t, "healthy", r.body["status"])
	assert.NotEmpty(t, r.header.Get("X-Request-ID"))

	r = h.do(nethttp.MethodGet, "/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, r.code)
	assert.Equal(t, "ready", r.body["status"])

	h.redis.Close()
	r = h.do(nethttp.MethodGet, "/ready", "", nil)
	assert.Equal(t, nethttp.StatusServiceUnavailable, r.code)
	assert.Equal(t, "redis unavailable", r.body["error"])
	r = h.do(nethttp.MethodGet, "/health", "", nil)
	assert.Equal(t, nethttp.StatusServiceUnavailable, r.code)
}

func TestGuestCartFollowsCustomerThroughPickup(t *testing.T) {
	h := newHarness(t, 0)
	regulator := h.variantID("ACC-REG-01")

	// A guest starts a cart and gets a session back.
	r := h.do(nethttp.MethodPost, "/api/v1/cart/items", "", gin.H{"variant_id": regulator, "quantity": 1})
	require.Equal(t, nethttp.StatusCreated, r.code, string(r.rawBody))
	assert.Equal(t, "Item added to cart", r.body["message"])
	session := r.header.Get("X-Session-ID")
	require.NotEmpty(t, session)

	r = h.do(nethttp.MethodPost, "/api/v1/cart/items", "", gin.H{"variant_id": regulator, "quantity": 1}, "X-Session-ID", session)
	require.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))
	assert.Equal(t, "Cart updated", r.body["message"])
	assert.EqualValues(t, 2, r.data()["quantity"])

	r = h.do(nethttp.MethodGet, fmt.Sprintf("/api/v1/products/variants/%d/availability", regulator), "", nil)
	require.Equal(t, nethttp.StatusOK, r.code)
	assert.EqualValues(t, 28, r.data()["available"])

	// Registering adopts the guest cart.
	r = h.do(nethttp.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":            "siti@example.com",
		"password":         "Tabung12kg",
		"confirm_password": "Tabung12kg",
		"full_name":        "Siti Rahma",
	}, "X-Session-ID", session)
	require.Equal(t, nethttp.StatusCreated, r.code, string(r.rawBody))
	customer := r.data()["access_token"].(string)

	r = h.do(nethttp.MethodGet, "/api/v1/cart", customer, nil)
	require.Equal(t, nethttp.StatusOK, r.code)
	assert.Len(t, r.data()["items"], 1)

	r = h.do(nethttp.MethodGet, "/api/v1/checkout/quote?fulfillment_method=pickup", customer, nil)
	require.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))
	total, err := decimal.NewFromString(r.data()["total"].(string))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(250000)), total.String())

	r = h.do(nethttp.MethodPost, "/api/v1/checkout", customer, gin.H{"fulfillment_method": "pickup"})
	require.Equal(t, nethttp.StatusCreated, r.code, string(r.rawBody))
	orderID := uint(r.data()["id"].(float64))
	assert.Equal(t, "PENDING", r.data()["status"])

	r = h.do(nethttp.MethodGet, "/api/v1/orders", customer, nil)
	require.Equal(t, nethttp.StatusOK, r.code)
	assert.Len(t, r.data()["orders"], 1)

	// Staff walk the order to the counter.
	admin := h.login(adminEmail, adminPassword)
	for _, status := range []string{"PAID", "PROCESSED", "WAITING_FOR_PICKUP"} {
		r = h.do(nethttp.MethodPut, fmt.Sprintf("/api/v1/admin/orders/%d/status", orderID), admin, gin.H{"status": status})
		require.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))
	}

	r = h.do(nethttp.MethodGet, fmt.Sprintf("/api/v1/orders/%d/pickup", orderID), customer, nil)
	require.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))
	code := r.data()["code"].(string)

	r = h.do(nethttp.MethodGet, fmt.Sprintf("/api/v1/orders/%d/pickup/qr", orderID), customer, nil)
	require.Equal(t, nethttp.StatusOK, r.code)
	assert.Equal(t, "image/png", r.header.Get("Content-Type"))

	r = h.do(nethttp.MethodPost, "/api/v1/admin/pickup/verify", admin, gin.H{"code": code})
	require.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))

	r = h.do(nethttp.MethodPost, "/api/v1/admin/pickup/verify", admin, gin.H{"code": code})
	assert.Equal(t, nethttp.StatusConflict, r.code, "a code is redeemed once")

	r = h.do(nethttp.MethodGet, fmt.Sprintf("/api/v1/orders/%d/pickup/qr", orderID), customer, nil)
	assert.Equal(t, nethttp.StatusConflict, r.code, "a used code no longer renders")

	// Going backwards is rejected with the legal next steps.
	r = h.do(nethttp.MethodPut, fmt.Sprintf("/api/v1/admin/orders/%d/status", orderID), admin, gin.H{"status": "PAID"})
	require.Equal(t, nethttp.StatusConflict, r.code)
	assert.Equal(t, "PICKED_UP", r.body["current_status"])
	assert.Equal(t, []interface{}{"DONE"}, r.body["available_statuses"])

	r = h.do(nethttp.MethodGet, fmt.Sprintf("/api/v1/orders/%d/history", orderID), customer, nil)
	require.Equal(t, nethttp.StatusOK, r.code)
	assert.Len(t, r.body["data"], 5)
}

func TestCustomerCancelOnlyWhilePending(t *testing.T) {
	h := newHarness(t, 0)
	h.do(nethttp.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "budi@example.com", "password": "Tabung12kg", "confirm_password": "Tabung12kg", "full_name": "Budi",
	})
	customer := h.login("budi@example.com", "Tabung12kg")
	admin := h.login(adminEmail, adminPassword)

	place := func() uint {
		r := h.do(nethttp.MethodPost, "/api/v1/cart/items", customer, gin.H{"variant_id": h.variantID("ACC-REG-01"), "quantity": 1})
		require.Equal(t, nethttp.StatusCreated, r.code, string(r.rawBody))
		r = h.do(nethttp.MethodPost, "/api/v1/checkout", customer, gin.H{"fulfillment_method": "pickup"})
		require.Equal(t, nethttp.StatusCreated, r.code, string(r.rawBody))
		return uint(r.data()["id"].(float64))
	}

	first := place()
	r := h.do(nethttp.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", first), customer, gin.H{"reason": "changed my mind"})
	require.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))
	assert.Equal(t, "CANCELLED", r.data()["status"])

	second := place()
	r = h.do(nethttp.MethodPut, fmt.Sprintf("/api/v1/admin/orders/%d/status", second), admin, gin.H{"status": "PAID"})
	require.Equal(t, nethttp.StatusOK, r.code)

	r = h.do(nethttp.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", second), customer, nil)
	assert.Equal(t, nethttp.StatusConflict, r.code)
	assert.Equal(t, "PAID", r.body["current_status"])

	r = h.do(nethttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%d/cancel", second), admin, gin.H{"reason": "out of cylinders"})
	assert.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))
}

func TestStaffPickupDeskKeepsTokenInStep(t *testing.T) {
	h := newHarness(t, 0)
	h.do(nethttp.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "budi@example.com", "password": "Tabung12kg", "confirm_password": "Tabung12kg", "full_name": "Budi",
	})
	customer := h.login("budi@example.com", "Tabung12kg")
	admin := h.login(adminEmail, adminPassword)

	ready := func() uint {
		r := h.do(nethttp.MethodPost, "/api/v1/cart/items", customer, gin.H{"variant_id": h.variantID("ACC-REG-01"), "quantity": 1})
		require.Equal(t, nethttp.StatusCreated, r.code, string(r.rawBody))
		r = h.do(nethttp.MethodPost, "/api/v1/checkout", customer, gin.H{"fulfillment_method": "pickup"})
		require.Equal(t, nethttp.StatusCreated, r.code, string(r.rawBody))
		id := uint(r.data()["id"].(float64))
		for _, status := range []string{"PAID", "PROCESSED", "WAITING_FOR_PICKUP"} {
			r = h.do(nethttp.MethodPut, fmt.Sprintf("/api/v1/admin/orders/%d/status", id), admin, gin.H{"status": status})
			require.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))
		}
		return id
	}
	code := func(id uint) string {
		r := h.do(nethttp.MethodGet, fmt.Sprintf("/api/v1/orders/%d/pickup", id), customer, nil)
		require.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))
		return r.data()["code"].(string)
	}

	// Reissuing replaces the code and the old one stops working.
	first := ready()
	old := code(first)
	r := h.do(nethttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%d/pickup/reissue", first), admin, nil)
	require.Equal(t, nethttp.StatusCreated, r.code, string(r.rawBody))
	fresh := r.data()["code"].(string)
	assert.NotEqual(t, old, fresh)
	assert.Equal(t, fresh, code(first))

	r = h.do(nethttp.MethodPost, "/api/v1/admin/pickup/verify", admin, gin.H{"code": old})
	assert.Equal(t, nethttp.StatusConflict, r.code)

	// Marking the order collected by hand consumes the live code.
	r = h.do(nethttp.MethodPut, fmt.Sprintf("/api/v1/admin/orders/%d/status", first), admin, gin.H{"status": "PICKED_UP"})
	require.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))
	r = h.do(nethttp.MethodGet, fmt.Sprintf("/api/v1/orders/%d/pickup", first), customer, nil)
	assert.Equal(t, "USED", r.data()["status"])
	assert.NotNil(t, r.data()["verified_by"])
	r = h.do(nethttp.MethodPost, "/api/v1/admin/pickup/verify", admin, gin.H{"code": fresh})
	assert.Equal(t, nethttp.StatusConflict, r.code)
	assert.Equal(t, "pickup token already used", r.body["error"])

	r = h.do(nethttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%d/pickup/reissue", first), admin, nil)
	assert.Equal(t, nethttp.StatusConflict, r.code)

	// Cancelling a ready order revokes its code.
	second := ready()
	r = h.do(nethttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%d/cancel", second), admin, gin.H{"reason": "customer no show"})
	require.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))
	r = h.do(nethttp.MethodGet, fmt.Sprintf("/api/v1/orders/%d/pickup", second), customer, nil)
	assert.Equal(t, "REVOKED", r.data()["status"])
	r = h.do(nethttp.MethodGet, fmt.Sprintf("/api/v1/orders/%d/pickup/qr", second), customer, nil)
	assert.Equal(t, nethttp.StatusConflict, r.code)
}

func TestInsufficientStockIsConflict(t *testing.T) {
	h := newHarness(t, 0)

	r := h.do(nethttp.MethodPost, "/api/v1/cart/items", "", gin.H{"variant_id": h.variantID("ELP-CY-12"), "quantity": 7})
	require.Equal(t, nethttp.StatusConflict, r.code)
	details := r.body["details"].(map[string]interface{})
	assert.EqualValues(t, 6, details["available_for_you"])
}

func TestAccessControl(t *testing.T) {
	h := newHarness(t, 0)
	h.do(nethttp.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "budi@example.com", "password": "Tabung12kg", "confirm_password": "Tabung12kg", "full_name": "Budi",
	})
	customer := h.login("budi@example.com", "Tabung12kg")

	assert.Equal(t, nethttp.StatusUnauthorized, h.do(nethttp.MethodGet, "/api/v1/orders", "", nil).code)
	assert.Equal(t, nethttp.StatusUnauthorized, h.do(nethttp.MethodGet, "/api/v1/orders", "garbage", nil).code)
	assert.Equal(t, nethttp.StatusForbidden, h.do(nethttp.MethodGet, "/api/v1/admin/orders", customer, nil).code)
	assert.Equal(t, nethttp.StatusForbidden, h.do(nethttp.MethodGet, "/api/v1/admin/analytics/dashboard", customer, nil).code)
	assert.Equal(t, nethttp.StatusNotFound, h.do(nethttp.MethodGet, "/api/v1/orders/999", customer, nil).code)

	admin := h.login(adminEmail, adminPassword)
	r := h.do(nethttp.MethodGet, "/api/v1/admin/analytics/dashboard", admin, nil)
	assert.Equal(t, nethttp.StatusOK, r.code, string(r.rawBody))

	r = h.do(nethttp.MethodGet, "/api/v1/admin/analytics/updates?since=yesterday", admin, nil)
	assert.Equal(t, nethttp.StatusBadRequest, r.code)
}

func TestPaymentNotificationRejectsBadSignature(t *testing.T) {
	h := newHarness(t, 0)

	r := h.do(nethttp.MethodPost, "/api/v1/payments/notifications", "", gin.H{
		"transaction_id":     "tx-1",
		"transaction_status": "settlement",
		"order_id":           "LPG-20240301-00001",
		"status_code":        "200",
		"gross_amount":       "250000.00",
		"signature_key":      "nope",
	})
	assert.Equal(t, nethttp.StatusUnauthorized, r.code)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, 2)

	for i := 0; i < 2; i++ {
		r := h.do(nethttp.MethodGet, "/api/v1/categories", "", nil)
		require.Equal(t, nethttp.StatusOK, r.code)
	}
	r := h.do(nethttp.MethodGet, "/api/v1/categories", "", nil)
	assert.Equal(t, nethttp.StatusTooManyRequests, r.code)
	assert.Equal(t, "0", r.header.Get("X-RateLimit-Remaining"))
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, 0)

	r := h.do(nethttp.MethodOptions, "/api/v1/cart", "", nil, "Origin", "http://shop.local")
	assert.Equal(t, nethttp.StatusNoContent, r.code)
	assert.Equal(t, "http://shop.local", r.header.Get("Access-Control-Allow-Origin"))

	r = h.do(nethttp.MethodOptions, "/api/v1/cart", "", nil, "Origin", "http://evil.local")
	assert.Empty(t, r.header.Get("Access-Control-Allow-Origin"))
}
