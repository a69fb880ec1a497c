package pickup

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/domain/order/ordertest"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/logger"
	"github.com/your-org/lpg-storefront/internal/pkg/testdb"
	"gorm.io/gorm"
)

type noHolds struct{}

func (noHolds) FulfillOrder(*gorm.DB, uint, *uint) error { return nil }
func (noHolds) ReleaseOrder(*gorm.DB, uint, *uint) error { return nil }

type fixture struct {
	db     *gorm.DB
	orders *order.Service
	svc    *Service
	events *ordertest.RecordingPublisher
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t, &order.Order{}, &order.OrderItem{}, &order.OrderStatusHistory{}, &PickupToken{})
	cfg := &config.Config{
		Database: config.DatabaseConfig{TxRetries: 1},
		Pickup:   config.PickupConfig{TokenTTL: 7 * 24 * time.Hour, QRSize: 128},
	}
	f := &fixture{db: db, events: &ordertest.RecordingPublisher{}, now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.orders = order.NewService(db, noHolds{}, nil, f.events, cfg, logger.Discard())
	f.orders.SetClock(clock)
	f.svc = NewService(db, f.orders, cfg, logger.Discard())
	f.svc.SetClock(clock)
	f.orders.SetPickupIssuer(f.svc)
	return f
}

// readyOrder places a pickup order and walks it to WAITING_FOR_PICKUP.
func (f *fixture) readyOrder(t *testing.T) *order.Order {
	t.Helper()
	ctx := context.Background()
	o := &order.Order{UserID: 1, FulfillmentMethod: order.FulfillmentPickup, Subtotal: decimal.NewFromInt(1), Total: decimal.NewFromInt(1)}
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.orders.Place(tx, o, order.SystemActor())
	}))
	admin := order.UserActor(99, order.ActorAdmin)
	for _, s := range []order.Status{order.StatusPaid, order.StatusProcessed, order.StatusWaitingForPickup} {
		_, err := f.orders.UpdateStatus(ctx, o.ID, s, admin, "")
		require.NoError(t, err)
	}
	return o
}

var codePattern = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`)

func TestReadyOrderGetsToken(t *testing.T) {
	f := newFixture(t)
	o := f.readyOrder(t)

	token, err := f.svc.GetForOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Regexp(t, codePattern, token.Code)
	assert.Equal(t, TokenActive, token.Status)
	assert.True(t, token.ExpiresAt.Equal(f.now.Add(7*24*time.Hour)))

	again, err := f.svc.Issue(f.db, o.ID)
	require.NoError(t, err)
	assert.Equal(t, token.ID, again.ID, "issuing twice reuses the live token")

	_, err = f.svc.GetForOrder(context.Background(), 404)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestVerifyMarksTokenUsedAndPicksUpOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.readyOrder(t)
	token, err := f.svc.GetForOrder(ctx, o.ID)
	require.NoError(t, err)

	typed := " " + token.Code[:4] + token.Code[5:] + " "
	result, err := f.svc.Verify(ctx, typed, 7)
	require.NoError(t, err)

	assert.Equal(t, TokenUsed, result.Token.Status)
	require.NotNil(t, result.Token.VerifiedBy)
	assert.Equal(t, uint(7), *result.Token.VerifiedBy)
	assert.Equal(t, order.StatusPickedUp, result.Order.Status)

	changes := f.events.StatusChanges()
	last := changes[len(changes)-1]
	assert.Equal(t, order.StatusPickedUp, last.To)
	assert.Equal(t, order.ActorOperator, last.ActorRole)

	_, err = f.svc.Verify(ctx, token.Code, 7)
	assert.ErrorIs(t, err, ErrTokenUsed)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.readyOrder(t)
	token, err := f.svc.GetForOrder(ctx, o.ID)
	require.NoError(t, err)

	f.now = f.now.Add(7 * 24 * time.Hour)
	_, err = f.svc.Verify(ctx, token.Code, 7)
	assert.ErrorIs(t, err, ErrTokenExpired)

	got, err := f.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusWaitingForPickup, got.Status)

	fresh, err := f.svc.Issue(f.db, o.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token.ID, fresh.ID, "an expired token is replaced")

	var stale PickupToken
	require.NoError(t, f.db.First(&stale, token.ID).Error)
	assert.Equal(t, TokenRevoked, stale.Status)
}

func TestCancellingReadyOrderRevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.readyOrder(t)
	token, err := f.svc.GetForOrder(ctx, o.ID)
	require.NoError(t, err)

	_, err = f.orders.Cancel(ctx, o.ID, order.UserActor(99, order.ActorAdmin), "customer no show")
	require.NoError(t, err)

	revoked, err := f.svc.GetForOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, token.ID, revoked.ID)
	assert.Equal(t, TokenRevoked, revoked.Status)
	assert.ErrorIs(t, f.svc.CheckRedeemable(revoked), ErrTokenRevoked)

	_, err = f.svc.Verify(ctx, token.Code, 7)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	got, err := f.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
}

func TestStaffPickedUpConsumesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.readyOrder(t)
	token, err := f.svc.GetForOrder(ctx, o.ID)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	_, err = f.orders.UpdateStatus(ctx, o.ID, order.StatusPickedUp, order.UserActor(42, order.ActorAdmin), "collected, phone flat")
	require.NoError(t, err)

	used, err := f.svc.GetForOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, token.ID, used.ID)
	assert.Equal(t, TokenUsed, used.Status)
	require.NotNil(t, used.UsedAt)
	assert.True(t, used.UsedAt.Equal(f.now))
	require.NotNil(t, used.VerifiedBy)
	assert.Equal(t, uint(42), *used.VerifiedBy)

	_, err = f.svc.Verify(ctx, token.Code, 7)
	assert.ErrorIs(t, err, ErrTokenUsed, "a later scan reports the code as used")
}

func TestReissueAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.readyOrder(t)
	old, err := f.svc.GetForOrder(ctx, o.ID)
	require.NoError(t, err)

	f.now = f.now.Add(8 * 24 * time.Hour)
	_, err = f.svc.Verify(ctx, old.Code, 7)
	require.ErrorIs(t, err, ErrTokenExpired)

	fresh, err := f.svc.Reissue(ctx, o.ID, 7)
	require.NoError(t, err)
	assert.NotEqual(t, old.Code, fresh.Code)
	assert.True(t, fresh.ExpiresAt.Equal(f.now.Add(7*24*time.Hour)))

	var stale PickupToken
	require.NoError(t, f.db.First(&stale, old.ID).Error)
	assert.Equal(t, TokenRevoked, stale.Status)

	result, err := f.svc.Verify(ctx, fresh.Code, 7)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPickedUp, result.Order.Status)
}

func TestReissueRequiresWaitingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.readyOrder(t)
	token, err := f.svc.GetForOrder(ctx, o.ID)
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, token.Code, 7)
	require.NoError(t, err)

	_, err = f.svc.Reissue(ctx, o.ID, 7)
	var conflict *apperror.ConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = f.svc.Reissue(ctx, 404, 7)
	assert.True(t, apperror.IsNotFound(err))
}

func TestVerifyUnknownCode(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Verify(context.Background(), "ABCD-EFGH", 1)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = f.svc.Verify(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"ABCD-EFGH", "ABCD-EFGH", true},
		{"abcdefgh", "ABCD-EFGH", true},
		{" ab cd-ef gh ", "ABCD-EFGH", true},
		{"ABCD-EFG", "", false},
		{"ABCD-EFG0", "", false},
		{"IOIO-1010", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCode(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestGenerateCodeFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestQRCode(t *testing.T) {
	f := newFixture(t)
	png, err := f.svc.QRCode("ABCD-EFGH")
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()
	token := PickupToken{Status: TokenActive, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, token.IsRedeemable(now))
	assert.True(t, token.IsExpired(now.Add(time.Minute)))
	token.Status = TokenUsed
	assert.False(t, token.IsRedeemable(now))
	assert.ErrorIs(t, token.CheckRedeemable(now), ErrTokenUsed)
	token.Status = TokenActive
	assert.ErrorIs(t, token.CheckRedeemable(now.Add(time.Hour)), ErrTokenExpired)
}
