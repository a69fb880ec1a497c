// internal/domain/product/service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/pagination"
	"github.com/your-org/lpg-storefront/internal/pkg/txn"
	"gorm.io/gorm"
)

// Service handles catalog business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
	log    logrus.FieldLogger
}

// NewService creates a new product service
func NewService(db *gorm.DB, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		db:     db,
		config: cfg,
		log:    log.WithField("component", "product"),
	}
}

// ProductListRequest represents product list query parameters
type ProductListRequest struct {
	Page       int    `form:"page,default=1"`
	Limit      int    `form:"limit,default=20"`
	CategoryID uint   `form:"category_id"`
	Search     string `form:"search"`
	SortBy     string `form:"sort_by,default=created_at"`
	SortOrder  string `form:"sort_order,default=desc"`
	IsActive   *bool  `form:"is_active"`
}

// ProductCreateRequest represents product creation data
type ProductCreateRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description"`
	Brand       string                 `json:"brand"`
	CategoryID  uint                   `json:"category_id" binding:"required"`
	Variants    []VariantCreateRequest `json:"variants"`
}

// VariantCreateRequest represents variant creation data
type VariantCreateRequest struct {
	SKU               string          `json:"sku" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	SizeKg            decimal.Decimal `json:"size_kg"`
	Price             decimal.Decimal `json:"price" binding:"required"`
	StockOnHand       int             `json:"stock_on_hand"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

// VariantUpdateRequest represents variant update data
type VariantUpdateRequest struct {
	Name              *string          `json:"name"`
	Price             *decimal.Decimal `json:"price"`
	LowStockThreshold *int             `json:"low_stock_threshold"`
	IsActive          *bool            `json:"is_active"`
}

// ProductResponse represents product response with pagination
type ProductResponse struct {
	Products   []Product             `json:"products"`
	Pagination pagination.Pagination `json:"pagination"`
}

// GetProducts retrieves products with filtering and pagination
func (s *Service) GetProducts(ctx context.Context, req *ProductListRequest) (*ProductResponse, error) {
	var products []Product
	var total int64

	query := s.db.WithContext(ctx).Model(&Product{}).
		Preload("Category").
		Preload("Variants", "is_active = ?", true)

	if req.CategoryID > 0 {
		query = query.Where("category_id = ?", req.CategoryID)
	}

	if req.Search != "" {
		search := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(brand) LIKE ?", search, search)
	}

	if req.IsActive != nil {
		query = query.Where("is_active = ?", *req.IsActive)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	if err := query.
		Order(buildOrderClause(req.SortBy, req.SortOrder)).
		Scopes(pagination.Scope(req.Page, req.Limit)).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	return &ProductResponse{
		Products:   products,
		Pagination: pagination.New(req.Page, req.Limit, total),
	}, nil
}

// GetProduct retrieves a single product by ID
func (s *Service) GetProduct(ctx context.Context, id uint) (*Product, error) {
	var product Product
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Variants", "is_active = ?", true).
		First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("product", id)
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}

	return &product, nil
}

// GetProductBySlug retrieves a single active product by slug
func (s *Service) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	var product Product
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Variants", "is_active = ?", true).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("product", slug)
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}

	return &product, nil
}

// GetVariant retrieves a variant with its product
func (s *Service) GetVariant(ctx context.Context, id uint) (*ProductVariant, error) {
	var variant ProductVariant
	err := s.db.WithContext(ctx).Preload("Product").First(&variant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("variant", id)
		}
		return nil, fmt.Errorf("failed to retrieve variant: %w", err)
	}
	return &variant, nil
}

// GetCategories lists active categories in display order
func (s *Service) GetCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, name ASC").
		Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}
	return categories, nil
}

// CreateProduct creates a product together with its initial variants
func (s *Service) CreateProduct(ctx context.Context, req *ProductCreateRequest) (*Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Invalid("name", "is required")
	}

	var category Category
	if err := s.db.WithContext(ctx).First(&category, req.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("category", req.CategoryID)
		}
		return nil, fmt.Errorf("failed to retrieve category: %w", err)
	}

	product := Product{
		Name:        req.Name,
		Slug:        Slugify(req.Name),
		Description: req.Description,
		Brand:       req.Brand,
		CategoryID:  req.CategoryID,
		IsActive:    true,
	}
	for _, v := range req.Variants {
		variant, err := newVariant(v)
		if err != nil {
			return nil, err
		}
		product.Variants = append(product.Variants, *variant)
	}

	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		if txn.IsUniqueViolation(err) {
			return nil, apperror.Conflict("product %q or one of its SKUs already exists", req.Name)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.log.WithFields(logrus.Fields{"product_id": product.ID, "variants": len(product.Variants)}).Info("product created")
	return s.GetProduct(ctx, product.ID)
}

// AddVariant attaches a new variant to an existing product
func (s *Service) AddVariant(ctx context.Context, productID uint, req *VariantCreateRequest) (*ProductVariant, error) {
	var product Product
	if err := s.db.WithContext(ctx).First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("product", productID)
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}

	variant, err := newVariant(*req)
	if err != nil {
		return nil, err
	}
	variant.ProductID = productID

	if err := s.db.WithContext(ctx).Create(variant).Error; err != nil {
		if txn.IsUniqueViolation(err) {
			return nil, apperror.Conflict("sku %s already exists", req.SKU)
		}
		return nil, fmt.Errorf("failed to create variant: %w", err)
	}
	return variant, nil
}

// UpdateVariant applies a partial update. Stock is changed through inventory.
func (s *Service) UpdateVariant(ctx context.Context, id uint, req *VariantUpdateRequest) (*ProductVariant, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, apperror.Invalid("price", "must be positive")
		}
		updates["price"] = *req.Price
	}
	if req.LowStockThreshold != nil {
		updates["low_stock_threshold"] = *req.LowStockThreshold
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	result := s.db.WithContext(ctx).Model(&ProductVariant{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update variant: %w", result.Error)
	}
	if len(updates) > 0 && result.RowsAffected == 0 {
		return nil, apperror.NotFound("variant", id)
	}

	return s.GetVariant(ctx, id)
}

// LowStockVariants lists active variants at or under their threshold
func (s *Service) LowStockVariants(ctx context.Context) ([]ProductVariant, error) {
	var variants []ProductVariant
	if err := s.db.WithContext(ctx).
		Preload("Product").
		Where("is_active = ? AND stock_on_hand <= low_stock_threshold", true).
		Order("stock_on_hand ASC").
		Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve low stock variants: %w", err)
	}
	return variants, nil
}

func newVariant(req VariantCreateRequest) (*ProductVariant, error) {
	if req.SKU == "" {
		return nil, apperror.Invalid("sku", "is required")
	}
	if !req.Price.IsPositive() {
		return nil, apperror.Invalid("price", "must be positive")
	}
	if req.StockOnHand < 0 {
		return nil, apperror.Invalid("stock_on_hand", "must not be negative")
	}
	threshold := req.LowStockThreshold
	if threshold == 0 {
		threshold = 5
	}
	return &ProductVariant{
		SKU:               strings.ToUpper(req.SKU),
		Name:              req.Name,
		SizeKg:            req.SizeKg,
		Price:             req.Price,
		StockOnHand:       req.StockOnHand,
		LowStockThreshold: threshold,
		IsActive:          true,
	}, nil
}

var sortColumns = map[string]string{
	"created_at": "created_at",
	"name":       "name",
	"brand":      "brand",
}

func buildOrderClause(sortBy, sortOrder string) string {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = "created_at"
	}
	if strings.ToLower(sortOrder) == "asc" {
		return column + " ASC"
	}
	return column + " DESC"
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a display name into a URL-safe slug.
func Slugify(name string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
