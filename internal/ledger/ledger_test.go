package ledger

import (
	"errors"
	"testing"

	"tallerpos/backend/internal/domain"
	"tallerpos/backend/internal/store"
)

func workingSet() map[string]domain.Product {
	return map[string]domain.Product{
		"p-screen": {ID: "p-screen", Name: "Pantalla", StockLevel: 10, ReservedStock: 2},
		"p-batt":   {ID: "p-batt", Name: "Batería", StockLevel: 5, ReservedStock: 0},
	}
}

func TestApplySaleDecrementsStock(t *testing.T) {
	products := workingSet()
	err := ApplySale(products, []domain.CartItem{
		{ProductID: "p-screen", Quantity: 3},
		{ProductID: "p-batt", Quantity: 1},
		{ProductID: "r-001", Quantity: 1, IsRepair: true},
	})
	if err != nil {
		t.Fatalf("apply sale failed: %v", err)
	}
	if products["p-screen"].StockLevel != 7 {
		t.Fatalf("expected stock 7, got %d", products["p-screen"].StockLevel)
	}
	if products["p-batt"].StockLevel != 4 {
		t.Fatalf("expected stock 4, got %d", products["p-batt"].StockLevel)
	}
}

func TestApplySaleRejectsOverselling(t *testing.T) {
	products := workingSet()
	err := ApplySale(products, []domain.CartItem{{ProductID: "p-batt", Quantity: 6}})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestApplySaleProtectsReservedUnits(t *testing.T) {
	products := workingSet()

	// p-screen has 10 on hand but 2 are held for repairs: 9 would dip into them.
	err := ApplySale(products, []domain.CartItem{{ProductID: "p-screen", Quantity: 9}})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected reserved units to be unsellable, got %v", err)
	}
	if products["p-screen"].StockLevel != 10 {
		t.Fatalf("rejected sale must not touch stock, got %d", products["p-screen"].StockLevel)
	}

	// Selling exactly the free portion is fine.
	if err := ApplySale(products, []domain.CartItem{{ProductID: "p-screen", Quantity: 8}}); err != nil {
		t.Fatalf("selling free stock failed: %v", err)
	}
	if products["p-screen"].StockLevel != 2 || products["p-screen"].ReservedStock != 2 {
		t.Fatalf("expected stock 2 reserved 2, got %d/%d", products["p-screen"].StockLevel, products["p-screen"].ReservedStock)
	}
}

func TestApplySaleRejectsUnknownProductAndBadQuantity(t *testing.T) {
	products := workingSet()
	if err := ApplySale(products, []domain.CartItem{{ProductID: "p-missing", Quantity: 1}}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := ApplySale(products, []domain.CartItem{{ProductID: "p-batt", Quantity: 0}}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
}

func TestApplyRefundReturnsUnits(t *testing.T) {
	products := workingSet()
	ApplyRefund(products, []domain.CartItem{
		{ProductID: "p-screen", Quantity: 2},
		{ProductID: "r-001", Quantity: 1, IsRepair: true},
		{ProductID: "p-gone", Quantity: 1},
	})
	if products["p-screen"].StockLevel != 12 {
		t.Fatalf("expected stock 12, got %d", products["p-screen"].StockLevel)
	}
}

func TestReservationDelta(t *testing.T) {
	old := []domain.ReservedPart{
		{ProductID: "p-screen", Quantity: 2},
		{ProductID: "p-batt", Quantity: 1},
	}
	updated := []domain.ReservedPart{
		{ProductID: "p-screen", Quantity: 3},
		{ProductID: "p-flex", Quantity: 1},
	}

	delta := ReservationDelta(old, updated)
	if delta["p-screen"] != 1 {
		t.Fatalf("expected +1 for p-screen, got %d", delta["p-screen"])
	}
	if delta["p-batt"] != -1 {
		t.Fatalf("expected -1 for p-batt, got %d", delta["p-batt"])
	}
	if delta["p-flex"] != 1 {
		t.Fatalf("expected +1 for p-flex, got %d", delta["p-flex"])
	}

	// Unchanged quantities drop out entirely.
	same := ReservationDelta(old, old)
	if len(same) != 0 {
		t.Fatalf("expected empty delta, got %v", same)
	}
}

func TestApplyReservationDeltaEnforcesBounds(t *testing.T) {
	products := workingSet()
	if err := ApplyReservationDelta(products, map[string]int{"p-screen": 3}); err != nil {
		t.Fatalf("delta failed: %v", err)
	}
	if products["p-screen"].ReservedStock != 5 {
		t.Fatalf("expected reserved 5, got %d", products["p-screen"].ReservedStock)
	}

	if err := ApplyReservationDelta(products, map[string]int{"p-screen": 6}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected reservation above stock to fail, got %v", err)
	}

	// A release below zero floors at zero instead of going negative.
	if err := ApplyReservationDelta(products, map[string]int{"p-batt": -3}); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if products["p-batt"].ReservedStock != 0 {
		t.Fatalf("expected reserved floored at 0, got %d", products["p-batt"].ReservedStock)
	}
}

func TestReleaseReservations(t *testing.T) {
	products := workingSet()
	parts := []domain.ReservedPart{{ProductID: "p-screen", Quantity: 2}}

	ReleaseReservations(products, parts, false)
	if products["p-screen"].ReservedStock != 0 {
		t.Fatalf("expected reserved 0, got %d", products["p-screen"].ReservedStock)
	}
	if products["p-screen"].StockLevel != 10 {
		t.Fatalf("plain release must not touch stock, got %d", products["p-screen"].StockLevel)
	}
}

func TestReleaseReservationsConsume(t *testing.T) {
	products := workingSet()
	parts := []domain.ReservedPart{{ProductID: "p-screen", Quantity: 2}}

	ReleaseReservations(products, parts, true)
	if products["p-screen"].ReservedStock != 0 {
		t.Fatalf("expected reserved 0, got %d", products["p-screen"].ReservedStock)
	}
	if products["p-screen"].StockLevel != 8 {
		t.Fatalf("consume must drop stock to 8, got %d", products["p-screen"].StockLevel)
	}
}
