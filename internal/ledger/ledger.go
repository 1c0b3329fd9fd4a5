// Package ledger holds the stock-accounting intents shared by the store
// implementations. Each function mutates a working map of products and must be
// called inside the store's atomic section, so that the invariant
// 0 ≤ reservedStock ≤ stockLevel is re-established before anything is
// persisted.
package ledger

import (
	"fmt"

	"tallerpos/backend/internal/domain"
	"tallerpos/backend/internal/store"
)

// ApplySale decrements stockLevel for every non-repair line. Selling below
// zero, or into units held by repair reservations, is rejected: the cart
// guard is the first gate, this is the hard one.
func ApplySale(products map[string]domain.Product, items []domain.CartItem) error {
	for _, item := range items {
		if item.IsRepair {
			continue
		}
		product, ok := products[item.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity for %s", store.ErrInvalidInput, item.ProductID)
		}
		if product.StockLevel-item.Quantity < product.ReservedStock {
			return fmt.Errorf("%w: %s", store.ErrInsufficientStock, product.Name)
		}
		product.StockLevel -= item.Quantity
		products[item.ProductID] = product
	}
	return nil
}

// ApplyRefund returns refunded units to stock. Always allowed.
func ApplyRefund(products map[string]domain.Product, items []domain.CartItem) {
	for _, item := range items {
		if item.IsRepair {
			continue
		}
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		product.StockLevel += item.Quantity
		products[item.ProductID] = product
	}
}

// ReservationDelta computes per-product quantity changes between two
// reserved-parts lists. Products absent from one side count as zero.
func ReservationDelta(old, updated []domain.ReservedPart) map[string]int {
	delta := make(map[string]int, len(old)+len(updated))
	for _, part := range old {
		delta[part.ProductID] -= part.Quantity
	}
	for _, part := range updated {
		delta[part.ProductID] += part.Quantity
	}
	for id, change := range delta {
		if change == 0 {
			delete(delta, id)
		}
	}
	return delta
}

// ApplyReservationDelta adjusts reservedStock per product and enforces
// 0 ≤ reservedStock ≤ stockLevel, rejecting the whole batch on violation.
func ApplyReservationDelta(products map[string]domain.Product, delta map[string]int) error {
	for id, change := range delta {
		product, ok := products[id]
		if !ok {
			return fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		reserved := product.ReservedStock + change
		if reserved < 0 {
			reserved = 0
		}
		if reserved > product.StockLevel {
			return fmt.Errorf("%w: cannot reserve %d of %s (stock %d)", store.ErrInsufficientStock, reserved, product.Name, product.StockLevel)
		}
		product.ReservedStock = reserved
		products[id] = product
	}
	return nil
}

// ReleaseReservations subtracts each part's quantity from reservedStock,
// floored at zero. With consume set the reserved units are being sold, so
// stockLevel drops by the same quantity, also floored at zero.
func ReleaseReservations(products map[string]domain.Product, parts []domain.ReservedPart, consume bool) {
	for _, part := range parts {
		product, ok := products[part.ProductID]
		if !ok {
			continue
		}
		product.ReservedStock -= part.Quantity
		if product.ReservedStock < 0 {
			product.ReservedStock = 0
		}
		if consume {
			product.StockLevel -= part.Quantity
			if product.StockLevel < 0 {
				product.StockLevel = 0
			}
		}
		products[part.ProductID] = product
	}
}
