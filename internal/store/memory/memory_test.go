package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tallerpos/backend/internal/domain"
	"tallerpos/backend/internal/store"
)

func TestUpdateProductRejectsStockBelowReserved(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	job := domain.RepairJob{
		CustomerName:  "Cliente",
		DeviceMake:    "Samsung",
		DeviceModel:   "A54",
		Status:        domain.RepairStatusPending,
		ReservedParts: []domain.ReservedPart{{ProductID: "p-screen-a54", Quantity: 3}},
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := s.CreateRepairJob(ctx, job); err != nil {
		t.Fatalf("create repair failed: %v", err)
	}

	product, err := s.GetProductByID(ctx, "p-screen-a54")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}

	lowered := *product
	lowered.StockLevel = 2
	if _, err := s.UpdateProduct(ctx, lowered); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected stock-below-reserved rejection, got %v", err)
	}

	// Reserved stock survives an ordinary field update.
	renamed := *product
	renamed.Name = "Pantalla A54 OLED"
	renamed.ReservedStock = 0
	saved, err := s.UpdateProduct(ctx, renamed)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if saved.ReservedStock != 3 {
		t.Fatalf("expected reservation preserved at 3, got %d", saved.ReservedStock)
	}
}

func TestDeleteProductWithReservationsRejected(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	job := domain.RepairJob{
		CustomerName:  "Cliente",
		DeviceMake:    "iPhone",
		DeviceModel:   "12",
		Status:        domain.RepairStatusPending,
		ReservedParts: []domain.ReservedPart{{ProductID: "p-batt-i12", Quantity: 1}},
		CreatedAt:     time.Now().UTC(),
	}
	created, err := s.CreateRepairJob(ctx, job)
	if err != nil {
		t.Fatalf("create repair failed: %v", err)
	}

	if err := s.DeleteProduct(ctx, "p-batt-i12"); err == nil {
		t.Fatalf("expected delete of reserved product to fail")
	}

	// Deleting the repair releases the reservation and unblocks the delete.
	if err := s.DeleteRepairJob(ctx, created.ID); err != nil {
		t.Fatalf("delete repair failed: %v", err)
	}
	if err := s.DeleteProduct(ctx, "p-batt-i12"); err != nil {
		t.Fatalf("delete after release failed: %v", err)
	}
}

func TestCommitSaleIsAtomicOnInsufficientStock(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := domain.Sale{
		Items: []domain.CartItem{
			{ProductID: "p-case-uni", Quantity: 2, Price: 5},
			{ProductID: "p-flex-power", Quantity: 99, Price: 10},
		},
		Subtotal:        1000,
		TotalAmount:     1000,
		PaymentMethod:   string(domain.PaymentCashUSD),
		Payments:        []domain.Payment{{Method: domain.PaymentCashUSD, Amount: 1000}},
		TransactionDate: time.Now().UTC(),
	}
	if _, err := s.CommitSale(ctx, sale, 0); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	// The first line must not have been decremented by the failed commit.
	product, err := s.GetProductByID(ctx, "p-case-uni")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockLevel != 60 {
		t.Fatalf("expected stock untouched at 60, got %d", product.StockLevel)
	}
}

func TestCommitSaleProtectsReservedStock(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	job := domain.RepairJob{
		CustomerName:  "Cliente",
		DeviceMake:    "Samsung",
		DeviceModel:   "A54",
		Status:        domain.RepairStatusPending,
		ReservedParts: []domain.ReservedPart{{ProductID: "p-screen-a54", Quantity: 6}},
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := s.CreateRepairJob(ctx, job); err != nil {
		t.Fatalf("create repair failed: %v", err)
	}

	// 8 on hand, 6 earmarked: only 2 can leave over the counter.
	sale := domain.Sale{
		Items:           []domain.CartItem{{ProductID: "p-screen-a54", Quantity: 3, Price: 60}},
		Subtotal:        180,
		TotalAmount:     180,
		PaymentMethod:   string(domain.PaymentCashUSD),
		Payments:        []domain.Payment{{Method: domain.PaymentCashUSD, Amount: 180}},
		TransactionDate: time.Now().UTC(),
	}
	if _, err := s.CommitSale(ctx, sale, 0); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected reserved units to block the sale, got %v", err)
	}

	product, err := s.GetProductByID(ctx, "p-screen-a54")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockLevel != 8 || product.ReservedStock != 6 {
		t.Fatalf("expected stock 8 reserved 6 untouched, got %d/%d", product.StockLevel, product.ReservedStock)
	}
}

func TestCommitSaleRejectsSettledRepairJob(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateRepairJob(ctx, domain.RepairJob{
		CustomerName:  "Cliente",
		DeviceMake:    "Motorola",
		DeviceModel:   "G52",
		EstimatedCost: 40,
		AmountPaid:    10,
		Status:        domain.RepairStatusInProgress,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create repair failed: %v", err)
	}

	payoff := domain.Sale{
		RepairJobID:     created.ID,
		Items:           []domain.CartItem{{ProductID: created.ID, Quantity: 1, Price: 30, IsRepair: true}},
		Subtotal:        30,
		TotalAmount:     30,
		PaymentMethod:   string(domain.PaymentCashUSD),
		Payments:        []domain.Payment{{Method: domain.PaymentCashUSD, Amount: 30}},
		TransactionDate: time.Now().UTC(),
	}
	if _, err := s.CommitSale(ctx, payoff, 30); err != nil {
		t.Fatalf("first payoff failed: %v", err)
	}

	// A second terminal settling the same stale balance must bounce.
	if _, err := s.CommitSale(ctx, payoff, 30); !errors.Is(err, store.ErrRepairConflict) {
		t.Fatalf("expected settled job to reject a second payoff, got %v", err)
	}

	settled, err := s.GetRepairJobByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get repair failed: %v", err)
	}
	if settled.AmountPaid != 40 {
		t.Fatalf("expected amount paid capped at 40, got %.2f", settled.AmountPaid)
	}
}

func TestCommitSaleRejectsMissingRepairJob(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := domain.Sale{
		RepairJobID:     "r-missing",
		Items:           []domain.CartItem{{ProductID: "r-missing", Quantity: 1, Price: 30, IsRepair: true}},
		Subtotal:        30,
		TotalAmount:     30,
		PaymentMethod:   string(domain.PaymentCashUSD),
		Payments:        []domain.Payment{{Method: domain.PaymentCashUSD, Amount: 30}},
		TransactionDate: time.Now().UTC(),
	}
	if _, err := s.CommitSale(ctx, sale, 30); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for missing repair, got %v", err)
	}
}

func TestPopHeldSaleConsumesTicket(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	held, err := s.CreateHeldSale(ctx, domain.HeldSale{
		Name:      "Sra. Blanco",
		Items:     []domain.CartItem{{ProductID: "p-cable-c", Quantity: 1, Price: 6}},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create held sale failed: %v", err)
	}

	popped, err := s.PopHeldSale(ctx, held.ID)
	if err != nil {
		t.Fatalf("pop failed: %v", err)
	}
	if popped.Name != "Sra. Blanco" {
		t.Fatalf("unexpected held sale %+v", popped)
	}

	if _, err := s.PopHeldSale(ctx, held.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected second pop to miss, got %v", err)
	}
}
