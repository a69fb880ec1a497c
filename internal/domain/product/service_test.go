package product

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/logger"
	"github.com/your-org/lpg-storefront/internal/pkg/testdb"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, *gorm.DB, *Category) {
	t.Helper()
	db := testdb.New(t, &Category{}, &Product{}, &ProductVariant{})
	cat := &Category{Name: "Refill", Slug: "refill", IsActive: true}
	require.NoError(t, db.Create(cat).Error)
	return NewService(db, &config.Config{}, logger.Discard()), db, cat
}

func TestCreateProductWithVariants(t *testing.T) {
	svc, _, cat := setup(t)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, &ProductCreateRequest{
		Name:       "Pertamina Elpiji 12 kg",
		Brand:      "Pertamina",
		CategoryID: cat.ID,
		Variants: []VariantCreateRequest{
			{SKU: "elp-12", Name: "Refill", SizeKg: decimal.NewFromInt(12), Price: decimal.NewFromInt(210000), StockOnHand: 40},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "pertamina-elpiji-12-kg", p.Slug)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "ELP-12", p.Variants[0].SKU)
	assert.Equal(t, 5, p.Variants[0].LowStockThreshold)
	assert.Equal(t, "Refill", p.Category.Name)

	_, err = svc.CreateProduct(ctx, &ProductCreateRequest{Name: "Other", CategoryID: 999})
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.CreateProduct(ctx, &ProductCreateRequest{
		Name: "Bad", CategoryID: cat.ID,
		Variants: []VariantCreateRequest{{SKU: "x", Name: "x", Price: decimal.Zero}},
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestGetProductsFiltersAndPaginates(t *testing.T) {
	svc, db, cat := setup(t)
	ctx := context.Background()

	for _, name := range []string{"Bright Gas 5.5 kg", "Elpiji 3 kg", "Elpiji 12 kg"} {
		_, err := svc.CreateProduct(ctx, &ProductCreateRequest{Name: name, CategoryID: cat.ID})
		require.NoError(t, err)
	}
	require.NoError(t, db.Model(&Product{}).Where("slug = ?", "elpiji-3-kg").Update("is_active", false).Error)

	active := true
	resp, err := svc.GetProducts(ctx, &ProductListRequest{Page: 1, Limit: 10, Search: "ELPIJI", IsActive: &active, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Elpiji 12 kg", resp.Products[0].Name)
	assert.Equal(t, int64(1), resp.Pagination.Total)

	_, err = svc.GetProductBySlug(ctx, "elpiji-3-kg")
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdateVariantAndLowStock(t *testing.T) {
	svc, _, cat := setup(t)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, &ProductCreateRequest{Name: "Elpiji", CategoryID: cat.ID})
	require.NoError(t, err)
	v, err := svc.AddVariant(ctx, p.ID, &VariantCreateRequest{SKU: "ELP-3", Name: "3 kg", Price: decimal.NewFromInt(20000), StockOnHand: 3})
	require.NoError(t, err)

	_, err = svc.AddVariant(ctx, p.ID, &VariantCreateRequest{SKU: "elp-3", Name: "dup", Price: decimal.NewFromInt(1)})
	var conflict *apperror.ConflictError
	assert.ErrorAs(t, err, &conflict)

	price := decimal.NewFromInt(22000)
	updated, err := svc.UpdateVariant(ctx, v.ID, &VariantUpdateRequest{Price: &price})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, "Elpiji 3 kg", updated.DisplayName())

	zero := decimal.Zero
	_, err = svc.UpdateVariant(ctx, v.ID, &VariantUpdateRequest{Price: &zero})
	assert.True(t, apperror.IsValidation(err))
	_, err = svc.UpdateVariant(ctx, 999, &VariantUpdateRequest{Price: &price})
	assert.True(t, apperror.IsNotFound(err))

	low, err := svc.LowStockVariants(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.True(t, low[0].IsLowStock())
}

func TestLockVariants(t *testing.T) {
	_, db, cat := setup(t)
	p := Product{Name: "Elpiji", Slug: "elpiji", CategoryID: cat.ID}
	require.NoError(t, db.Create(&p).Error)
	v := ProductVariant{ProductID: p.ID, SKU: "A", Name: "a", Price: decimal.NewFromInt(1), StockOnHand: 4}
	require.NoError(t, db.Create(&v).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := LockVariants(tx, []uint{v.ID, 999})
		require.NoError(t, err)
		assert.Len(t, locked, 1)
		assert.Equal(t, 4, locked[v.ID].StockOnHand)

		_, err = LockVariant(tx, 999)
		assert.True(t, apperror.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "bright-gas-5-5-kg", Slugify("  Bright Gas 5.5 kg! "))
}
