// Package cart implements the in-memory sale cart: product lines plus at most
// one repair-payoff line, with stock-aware guards. A cart never touches the
// stock ledger itself; stock moves only when the sale commits.
package cart

import (
	"fmt"

	"tallerpos/backend/internal/domain"
	"tallerpos/backend/internal/store"
)

type Cart struct {
	items       []domain.CartItem
	repairJobID string
	discount    float64
}

func New() *Cart {
	return &Cart{items: make([]domain.CartItem, 0, 8)}
}

// AddProduct appends one unit of the product, or bumps the existing line.
// Rejected when the product has no available stock, when the bump would
// exceed available stock, or while a repair charge occupies the cart.
func (c *Cart) AddProduct(product domain.Product) error {
	if c.HasRepairLine() {
		return fmt.Errorf("%w: no other items can be added while charging a repair", store.ErrRepairConflict)
	}
	available := product.AvailableStock()
	if available <= 0 {
		return fmt.Errorf("%w: %s has no available stock", store.ErrInsufficientStock, product.Name)
	}

	for i, item := range c.items {
		if item.ProductID != product.ID {
			continue
		}
		if item.Quantity+1 > available {
			return fmt.Errorf("%w: only %d units of %s available", store.ErrInsufficientStock, available, product.Name)
		}
		c.items[i].Quantity++
		return nil
	}

	c.items = append(c.items, domain.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Quantity:  1,
		Price:     product.RetailPrice,
	})
	return nil
}

// UpdateQuantity sets the line quantity. Zero or negative removes the line.
// Repair lines are immutable.
func (c *Cart) UpdateQuantity(product domain.Product, quantity int) error {
	for i, item := range c.items {
		if item.ProductID != product.ID {
			continue
		}
		if item.IsRepair {
			return fmt.Errorf("%w: repair charge quantity is fixed", store.ErrRepairConflict)
		}
		if quantity <= 0 {
			return c.RemoveItem(product.ID)
		}
		if quantity > product.AvailableStock() {
			return fmt.Errorf("%w: only %d units of %s available", store.ErrInsufficientStock, product.AvailableStock(), product.Name)
		}
		c.items[i].Quantity = quantity
		return nil
	}
	return fmt.Errorf("%w: product %s not in cart", store.ErrNotFound, product.ID)
}

func (c *Cart) RemoveItem(productID string) error {
	for i, item := range c.items {
		if item.ProductID != productID {
			continue
		}
		if item.IsRepair {
			return fmt.Errorf("%w: the repair charge cannot be removed from the cart", store.ErrRepairConflict)
		}
		c.items = append(c.items[:i], c.items[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: product %s not in cart", store.ErrNotFound, productID)
}

// TogglePromo swaps the line price between retail and promo. A product with
// no configured promo price is rejected, leaving the line untouched.
func (c *Cart) TogglePromo(product domain.Product) error {
	if product.PromoPrice <= 0 {
		return fmt.Errorf("%w: %s has no promo price", store.ErrInvalidInput, product.Name)
	}
	for i, item := range c.items {
		if item.ProductID != product.ID || item.IsRepair {
			continue
		}
		if item.IsPromo {
			c.items[i].IsPromo = false
			c.items[i].Price = product.RetailPrice
		} else {
			c.items[i].IsPromo = true
			c.items[i].Price = product.PromoPrice
		}
		return nil
	}
	return fmt.Errorf("%w: product %s not in cart", store.ErrNotFound, product.ID)
}

// Clear empties the cart. While a repair charge is loaded the clear is
// rejected; cancelling a repair payoff belongs to the repairs workflow.
func (c *Cart) Clear() error {
	if c.HasRepairLine() {
		return fmt.Errorf("%w: cancel the repair charge from the repairs page instead", store.ErrRepairConflict)
	}
	c.items = c.items[:0]
	c.discount = 0
	return nil
}

// ForceReset drops everything including a repair line. Used after a committed
// checkout and when restoring a held sale over an ordinary cart.
func (c *Cart) ForceReset() {
	c.items = c.items[:0]
	c.repairJobID = ""
	c.discount = 0
}

// LoadRepairPayoff replaces the cart with a single immutable line for the
// job's remaining balance. A job with nothing owed is refused.
func (c *Cart) LoadRepairPayoff(job domain.RepairJob) error {
	balance := job.RemainingBalance()
	if balance <= 0 {
		return fmt.Errorf("%w: repair %s has no outstanding balance", store.ErrInvalidInput, job.ID)
	}
	c.ForceReset()
	c.repairJobID = job.ID
	c.items = append(c.items, domain.CartItem{
		ProductID: job.ID,
		Name:      fmt.Sprintf("Reparación: %s %s", job.DeviceMake, job.DeviceModel),
		Quantity:  1,
		Price:     balance,
		IsRepair:  true,
	})
	return nil
}

// Restore replaces the cart contents with a held-sale snapshot. Rejected
// while a repair charge is active.
func (c *Cart) Restore(items []domain.CartItem, discount float64) error {
	if c.HasRepairLine() {
		return fmt.Errorf("%w: finish or cancel the repair charge first", store.ErrRepairConflict)
	}
	c.ForceReset()
	c.items = append(c.items, items...)
	c.discount = discount
	return nil
}

func (c *Cart) SetDiscount(discount float64) error {
	if discount < 0 {
		return fmt.Errorf("%w: discount cannot be negative", store.ErrInvalidInput)
	}
	if discount > c.Subtotal() {
		return fmt.Errorf("%w: discount exceeds subtotal", store.ErrInvalidInput)
	}
	c.discount = discount
	return nil
}

func (c *Cart) HasRepairLine() bool {
	if c.repairJobID != "" {
		return true
	}
	for _, item := range c.items {
		if item.IsRepair {
			return true
		}
	}
	return false
}

func (c *Cart) RepairJobID() string { return c.repairJobID }

func (c *Cart) Discount() float64 { return c.discount }

func (c *Cart) Empty() bool { return len(c.items) == 0 }

// Items returns a copy of the cart lines.
func (c *Cart) Items() []domain.CartItem {
	items := make([]domain.CartItem, len(c.items))
	copy(items, c.items)
	return items
}

// QuantityOf reports the summed requested quantity for a product.
func (c *Cart) QuantityOf(productID string) int {
	total := 0
	for _, item := range c.items {
		if item.ProductID == productID && !item.IsRepair {
			total += item.Quantity
		}
	}
	return total
}

func (c *Cart) Subtotal() float64 {
	subtotal := 0.0
	for _, item := range c.items {
		subtotal += item.Price * float64(item.Quantity)
	}
	return subtotal
}

func (c *Cart) Total() float64 {
	return c.Subtotal() - c.discount
}
