// internal/domain/cart/errors.go
package cart

import "fmt"

// InsufficientStockError explains why a cart quantity was refused.
type InsufficientStockError struct {
	VariantID        uint `json:"variant_id"`
	StockOnHand      int  `json:"stock_on_hand"`
	ReservedByOthers int  `json:"reserved_by_others"`
	AvailableForYou  int  `json:"available_for_you"`
	InCart           int  `json:"in_cart"`
	Requested        int  `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"insufficient stock for variant %d: requested %d with %d already in cart, %d available for you (stock %d, reserved by others %d)",
		e.VariantID, e.Requested, e.InCart, e.AvailableForYou, e.StockOnHand, e.ReservedByOthers,
	)
}

func newInsufficientStock(variantID uint, stock, reservedByOthers, inCart, requested int) *InsufficientStockError {
	available := stock - reservedByOthers
	if available < 0 {
		available = 0
	}
	return &InsufficientStockError{
		VariantID:        variantID,
		StockOnHand:      stock,
		ReservedByOthers: reservedByOthers,
		AvailableForYou:  available,
		InCart:           inCart,
		Requested:        requested,
	}
}
