package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lpg-storefront/internal/domain/inventory"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
)

func TestAddItemEnforcesStockCapAcrossOwners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 10, "250000")

	accepted := 0
	for i, qty := range []int{4, 3, 2, 2, 1} {
		_, _, err := f.svc.AddItem(ctx, UserOwner(uint(i+1)), add(v.ID, qty))
		if err == nil {
			accepted += qty
			continue
		}
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
	}

	assert.Equal(t, 10, accepted)
	total := 0
	for _, e := range f.entries(t, v.ID) {
		total += e.Quantity
	}
	assert.Equal(t, 10, total)
}

func TestAddItemConcurrentCallsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 5, "250000")

	var wg sync.WaitGroup
	for i := 1; i <= 12; i++ {
		wg.Add(1)
		go func(user uint) {
			defer wg.Done()
			_, _, _ = f.svc.AddItem(ctx, UserOwner(user), add(v.ID, 1))
		}(uint(i))
	}
	wg.Wait()

	entries := f.entries(t, v.ID)
	assert.Len(t, entries, 5)
}

func TestAddItemReAddUpdatesExistingEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 10, "250000")
	owner := UserOwner(1)

	first, created, err := f.svc.AddItem(ctx, owner, &AddItemRequest{VariantID: v.ID, Quantity: 2, Note: "first"})
	require.NoError(t, err)
	assert.True(t, created)

	f.clock.Advance(5 * time.Minute)
	second, created, err := f.svc.AddItem(ctx, owner, &AddItemRequest{VariantID: v.ID, Quantity: 3, Note: "second"})
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, first.ID, second.ID)
	entries := f.entries(t, v.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, 5, entries[0].Quantity)
	assert.Equal(t, "second", entries[0].Note)
	require.NotNil(t, entries[0].ExpiresAt)
	assert.True(t, entries[0].ExpiresAt.Equal(f.clock.Now().Add(15*time.Minute)), "expiry refreshed on re-add")
}

func TestAddItemSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 10, "250000")

	entry, _, err := f.svc.AddItem(ctx, UserOwner(1), add(v.ID, 1))
	require.NoError(t, err)
	assert.True(t, entry.UnitPrice.Equal(decimal.NewFromInt(250000)))
	assert.False(t, entry.OriginalPrice.Valid)

	require.NoError(t, f.db.Model(v).Update("price", decimal.NewFromInt(300000)).Error)
	_, _, err = f.svc.AddItem(ctx, UserOwner(1), add(v.ID, 1))
	require.NoError(t, err)

	entries := f.entries(t, v.ID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].UnitPrice.Equal(decimal.NewFromInt(250000)), "price is not re-read on update")
}

func TestAddItemRejectsWithoutMutating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 3, "250000")
	owner := UserOwner(1)

	_, _, err := f.svc.AddItem(ctx, owner, add(v.ID, 2))
	require.NoError(t, err)
	before := f.entries(t, v.ID)[0]

	_, _, err = f.svc.AddItem(ctx, owner, add(v.ID, 2))
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, InsufficientStockError{
		VariantID: v.ID, StockOnHand: 3, ReservedByOthers: 0, AvailableForYou: 3, InCart: 2, Requested: 2,
	}, *stockErr)

	after := f.entries(t, v.ID)[0]
	assert.Equal(t, before.Quantity, after.Quantity)
	assert.True(t, before.ExpiresAt.Equal(*after.ExpiresAt))
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 3, "250000")

	_, _, err := f.svc.AddItem(ctx, UserOwner(1), add(9999, 1))
	assert.True(t, apperror.IsNotFound(err))
	assert.EqualError(t, err, "variant not found")

	_, _, err = f.svc.AddItem(ctx, UserOwner(1), add(v.ID, 0))
	assert.True(t, apperror.IsValidation(err))

	_, _, err = f.svc.AddItem(ctx, Owner{}, add(v.ID, 1))
	assert.True(t, apperror.IsValidation(err))

	_, _, err = f.svc.AddItem(ctx, SessionOwner(""), add(v.ID, 1))
	assert.True(t, apperror.IsValidation(err))
}

func TestPreorderBypassesStockCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 2, "250000")
	owner := UserOwner(1)

	entry, created, err := f.svc.AddItem(ctx, owner, &AddItemRequest{VariantID: v.ID, Quantity: 10, IsPreorder: true})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, entry.ExpiresAt)
	require.True(t, entry.OriginalPrice.Valid)
	assert.True(t, entry.OriginalPrice.Decimal.Equal(entry.UnitPrice))

	again, created, err := f.svc.AddItem(ctx, owner, &AddItemRequest{VariantID: v.ID, Quantity: 5, IsPreorder: true, Note: "later"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 15, again.Quantity)

	// The same owner may also hold a reserved line for the variant.
	_, created, err = f.svc.AddItem(ctx, owner, add(v.ID, 1))
	require.NoError(t, err)
	assert.True(t, created)

	// Preorder units do not consume reservable stock.
	_, _, err = f.svc.AddItem(ctx, UserOwner(2), add(v.ID, 1))
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, UserOwner(2), add(v.ID, 1))
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, stockErr.ReservedByOthers)

	assert.Len(t, f.entries(t, v.ID), 3)
}

func TestEndToEndReservationScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 5, "250000")
	userA, userB := UserOwner(1), UserOwner(2)

	a, _, err := f.svc.AddItem(ctx, userA, add(v.ID, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, a.Quantity)

	_, _, err = f.svc.AddItem(ctx, userB, add(v.ID, 3))
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.ReservedByOthers)
	assert.Equal(t, 2, stockErr.AvailableForYou)
	assert.Equal(t, 0, stockErr.InCart)

	f.clock.Advance(10 * time.Minute)
	b, _, err := f.svc.AddItem(ctx, userB, add(v.ID, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, b.Quantity)

	// A's 15 minute window closes; B's is still open.
	f.clock.Advance(6 * time.Minute)
	removed, err := f.svc.Sweep(ctx, SweepScope{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	b, created, err := f.svc.AddItem(ctx, userB, add(v.ID, 3))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 5, b.Quantity)
}

func TestAddItemCountsOrderHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 5, "250000")

	_, err := f.inv.Reserve(f.db, &inventory.ReservationRequest{
		VariantID: v.ID, OrderID: 1, OrderItemID: 1, Quantity: 4, ExpiresAt: f.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	_, _, err = f.svc.AddItem(ctx, UserOwner(1), add(v.ID, 2))
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 4, stockErr.ReservedByOthers)
	assert.Equal(t, 1, stockErr.AvailableForYou)

	// Once the hold lapses the units are reservable again.
	f.clock.Advance(2 * time.Hour)
	_, _, err = f.svc.AddItem(ctx, UserOwner(1), add(v.ID, 2))
	require.NoError(t, err)
}

func TestComputeAvailableStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 6, "250000")

	_, _, err := f.svc.AddItem(ctx, UserOwner(1), add(v.ID, 2))
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, SessionOwner("guest-1"), add(v.ID, 1))
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, UserOwner(2), &AddItemRequest{VariantID: v.ID, Quantity: 50, IsPreorder: true})
	require.NoError(t, err)

	available, err := f.svc.ComputeAvailableStock(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, available)

	f.clock.Advance(16 * time.Minute)
	available, err = f.svc.ComputeAvailableStock(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, available, "expired entries no longer count even before a sweep")

	_, err = f.svc.ComputeAvailableStock(ctx, 424242)
	assert.True(t, apperror.IsNotFound(err))
}

func TestComputeTotalUsesOriginalPriceForPreorders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 10, "100")
	owner := UserOwner(1)

	_, _, err := f.svc.AddItem(ctx, owner, add(v.ID, 2))
	require.NoError(t, err)

	discounted := CartEntry{
		VariantID:     v.ID,
		Quantity:      3,
		UnitPrice:     decimal.NewFromInt(80),
		OriginalPrice: decimal.NewNullDecimal(decimal.NewFromInt(120)),
		IsPreorder:    true,
	}
	discounted.setOwner(owner)
	require.NoError(t, f.db.Create(&discounted).Error)

	other := CartEntry{VariantID: v.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(999)}
	other.setOwner(UserOwner(2))
	require.NoError(t, f.db.Create(&other).Error)

	total, err := f.svc.ComputeTotal(ctx, owner)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(2*100+3*120)), "got %s", total)
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 5, "250000")
	owner := UserOwner(1)

	entry, _, err := f.svc.AddItem(ctx, owner, add(v.ID, 1))
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, UserOwner(2), add(v.ID, 2))
	require.NoError(t, err)

	updated, err := f.svc.UpdateQuantity(ctx, owner, entry.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Quantity)

	_, err = f.svc.UpdateQuantity(ctx, owner, entry.ID, 4)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.ReservedByOthers)

	_, err = f.svc.UpdateQuantity(ctx, UserOwner(2), entry.ID, 1)
	assert.True(t, apperror.IsNotFound(err), "owners cannot touch each other's lines")

	_, err = f.svc.UpdateQuantity(ctx, owner, entry.ID, 0)
	require.NoError(t, err)
	assert.Len(t, f.entries(t, v.ID), 1)

	err = f.svc.RemoveItem(ctx, owner, entry.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestGetCartSweepsOwnerAndTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v1 := f.variant(t, 5, "100")
	v2 := f.variant(t, 5, "50")
	owner := SessionOwner("guest-42")

	_, _, err := f.svc.AddItem(ctx, owner, add(v1.ID, 2))
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	_, _, err = f.svc.AddItem(ctx, owner, add(v2.ID, 1))
	require.NoError(t, err)
	f.clock.Advance(6 * time.Minute)

	resp, err := f.svc.GetCart(ctx, owner)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, v2.ID, resp.Items[0].VariantID)
	require.NotNil(t, resp.Items[0].Variant)
	assert.Equal(t, "session:guest-42", resp.Owner)
	assert.Equal(t, 1, resp.Totals.ItemCount)
	assert.True(t, resp.Totals.SubTotal.Equal(decimal.NewFromInt(50)))
}

func TestSweepRemovesOnlyExpiredOrOversold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.variant(t, 10, "25000")
	b := f.variant(t, 10, "210000")

	_, _, err := f.svc.AddItem(ctx, UserOwner(1), add(a.ID, 2))
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	_, _, err = f.svc.AddItem(ctx, UserOwner(2), add(a.ID, 3))
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, UserOwner(3), add(b.ID, 4))
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, UserOwner(4), &AddItemRequest{VariantID: b.ID, Quantity: 20, IsPreorder: true})
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, UserOwner(5), add(b.ID, 5))
	require.NoError(t, err)

	// Owner 1 is past its window; owner 5 now holds more than the shelf.
	f.clock.Advance(6 * time.Minute)
	f.setStock(t, b.ID, 4)

	removed, err := f.svc.Sweep(ctx, SweepScope{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	left := f.entries(t, a.ID)
	require.Len(t, left, 1)
	assert.Equal(t, 3, left[0].Quantity)

	left = f.entries(t, b.ID)
	require.Len(t, left, 2)
	assert.Equal(t, 4, left[0].Quantity, "exactly at stock is kept")
	assert.False(t, left[0].IsPreorder)
	assert.Equal(t, 20, left[1].Quantity)
	assert.True(t, left[1].IsPreorder)

	removed, err = f.svc.Sweep(ctx, SweepScope{})
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestMergeSessionIntoUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v1 := f.variant(t, 5, "100")
	v2 := f.variant(t, 4, "100")
	guest := SessionOwner("guest-1")
	user := UserOwner(7)

	_, _, err := f.svc.AddItem(ctx, user, add(v1.ID, 2))
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, guest, add(v1.ID, 2))
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, guest, add(v2.ID, 3))
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, UserOwner(8), add(v2.ID, 1))
	require.NoError(t, err)

	// Stock for v1 drops so the merged line must be trimmed.
	f.setStock(t, v1.ID, 3)

	result, err := f.svc.MergeSessionIntoUser(ctx, "guest-1", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Merged)
	assert.Equal(t, 1, result.Adjusted)

	cart, err := f.svc.GetCart(ctx, user)
	require.NoError(t, err)
	byVariant := map[uint]int{}
	for _, e := range cart.Items {
		byVariant[e.VariantID] = e.Quantity
	}
	assert.Equal(t, map[uint]int{v1.ID: 3, v2.ID: 3}, byVariant)

	guestCart, err := f.svc.GetCart(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, guestCart.Items)
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.variant(t, 5, "100")

	_, _, err := f.svc.AddItem(ctx, UserOwner(1), add(v.ID, 1))
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, UserOwner(1), &AddItemRequest{VariantID: v.ID, Quantity: 1, IsPreorder: true})
	require.NoError(t, err)

	n, err := f.svc.Clear(ctx, UserOwner(1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := error(newInsufficientStock(3, 5, 7, 1, 2))
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 0, stockErr.AvailableForYou)
	assert.Contains(t, err.Error(), "reserved by others 7")
}
