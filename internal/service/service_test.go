package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tallerpos/backend/internal/cache"
	"tallerpos/backend/internal/currency"
	"tallerpos/backend/internal/domain"
	"tallerpos/backend/internal/store"
	"tallerpos/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(), cache.NoopSettingsCache{}, 5*time.Second)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func TestCreateProductDerivesPrices(t *testing.T) {
	svc := newTestService()

	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:          "Pantalla Redmi Note 12",
		Category:      "Pantallas",
		CostPrice:     25,
		HasPromoPrice: true,
		StockLevel:    6,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if product.RetailPrice != 50 {
		t.Fatalf("expected retail 50, got %.2f", product.RetailPrice)
	}
	if product.PromoPrice != 40 {
		t.Fatalf("expected promo 40, got %.2f", product.PromoPrice)
	}
	if product.SKU == "" {
		t.Fatalf("expected generated sku")
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService()
	ctx := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})

	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:      "Cable Lightning",
		Category:  "Accesorios",
		CostPrice: 4,
	})
	if err == nil {
		t.Fatalf("expected non-admin create to fail")
	}
}

func TestUpdateProductCostReDerivesPrices(t *testing.T) {
	svc := newTestService()

	cost := 50.0
	product, err := svc.UpdateProduct(adminCtx(), "p-screen-i13", domain.ProductUpdateRequest{CostPrice: &cost})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if product.RetailPrice != 100 {
		t.Fatalf("expected retail 100, got %.2f", product.RetailPrice)
	}
	if product.PromoPrice != 80 {
		t.Fatalf("expected promo 80, got %.2f", product.PromoPrice)
	}
}

func TestCheckoutDecrementsStockAndResetsCart(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.AddToCart(ctx, "t1", "p-case-uni"); err != nil {
		t.Fatalf("add to cart failed: %v", err)
	}
	if _, err := svc.UpdateCartQuantity(ctx, "t1", "p-case-uni", 2); err != nil {
		t.Fatalf("update quantity failed: %v", err)
	}

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		TerminalID: "t1",
		Tendered:   map[domain.PaymentMethod]float64{domain.PaymentCashUSD: 10},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.Sale.TotalAmount != 10 {
		t.Fatalf("expected total 10, got %.2f", resp.Sale.TotalAmount)
	}
	if resp.Change != 0 {
		t.Fatalf("expected no change, got %.2f", resp.Change)
	}

	product, err := svc.GetProduct(ctx, "p-case-uni")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockLevel != 58 {
		t.Fatalf("expected stock 58 after sale, got %d", product.StockLevel)
	}

	view, err := svc.GetCart(ctx, "t1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected cart reset after checkout, got %d items", len(view.Items))
	}
}

func TestCheckoutEmptyCartRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		TerminalID: "t-empty",
		Tendered:   map[domain.PaymentMethod]float64{domain.PaymentCashUSD: 10},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty cart, got %v", err)
	}
}

func TestCheckoutInBolivares(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	// Vidrio templado at $3; rate 36.5 makes it 109.50 Bs.
	if _, err := svc.AddToCart(ctx, "t-bs", "p-glass-uni"); err != nil {
		t.Fatalf("add to cart failed: %v", err)
	}

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		TerminalID: "t-bs",
		Tendered:   map[domain.PaymentMethod]float64{domain.PaymentCashBs: 109.5},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.Change != 0 {
		t.Fatalf("expected exact Bs payment, got change %.4f", resp.Change)
	}
	if resp.Sale.Payments[0].Method != domain.PaymentCashBs {
		t.Fatalf("expected Bs payment recorded, got %+v", resp.Sale.Payments)
	}
	// The sale itself stays priced in USD.
	if resp.Sale.TotalAmount != 3 {
		t.Fatalf("expected USD total 3, got %.2f", resp.Sale.TotalAmount)
	}
}

func TestRepairPayoffCheckoutSettlesJob(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	job, err := svc.CreateRepairJob(ctx, domain.RepairJobRequest{
		CustomerName:  "María Pérez",
		CustomerPhone: "0414-5551234",
		DeviceMake:    "Samsung",
		DeviceModel:   "A54",
		DeviceIMEI:    "356938035643809",
		ReportedIssue: "Pantalla rota",
		EstimatedCost: 50,
		AmountPaid:    20,
		Status:        domain.RepairStatusInProgress,
		ReservedParts: []domain.ReservedPart{
			{ProductID: "p-screen-a54", Quantity: 1},
			{ProductID: "p-batt-i12", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create repair failed: %v", err)
	}

	reserved, err := svc.GetProduct(ctx, "p-screen-a54")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if reserved.ReservedStock != 1 {
		t.Fatalf("expected 1 reserved unit, got %d", reserved.ReservedStock)
	}

	view, err := svc.LoadRepairCharge(ctx, "t-repair", job.ID)
	if err != nil {
		t.Fatalf("load repair charge failed: %v", err)
	}
	if view.Total != 30 {
		t.Fatalf("expected outstanding balance 30, got %.2f", view.Total)
	}

	// The cart is locked while the payoff is loaded.
	if _, err := svc.AddToCart(ctx, "t-repair", "p-case-uni"); !errors.Is(err, store.ErrRepairConflict) {
		t.Fatalf("expected repair conflict, got %v", err)
	}

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		TerminalID: "t-repair",
		Tendered:   map[domain.PaymentMethod]float64{domain.PaymentCashUSD: 30},
	})
	if err != nil {
		t.Fatalf("payoff checkout failed: %v", err)
	}
	if resp.Sale.RepairJobID != job.ID {
		t.Fatalf("expected sale linked to repair %s", job.ID)
	}

	settled, err := svc.GetRepairJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get repair failed: %v", err)
	}
	if !currency.EqualWithin(settled.AmountPaid, 50) {
		t.Fatalf("expected amount paid 50, got %.2f", settled.AmountPaid)
	}
	if !settled.IsPaid {
		t.Fatalf("expected job marked paid")
	}
	if settled.Status != domain.RepairStatusCompleted {
		t.Fatalf("expected status %s, got %s", domain.RepairStatusCompleted, settled.Status)
	}
	if len(settled.ReservedParts) != 0 {
		t.Fatalf("expected reserved parts cleared, got %d", len(settled.ReservedParts))
	}
	if settled.WarrantyEndDate == nil || settled.CompletedAt == nil {
		t.Fatalf("expected warranty window stamped")
	}
	wantEnd := settled.CompletedAt.AddDate(0, 0, domain.WarrantyDays)
	if !settled.WarrantyEndDate.Equal(wantEnd) {
		t.Fatalf("expected warranty end %v, got %v", wantEnd, settled.WarrantyEndDate)
	}

	// Both reserved parts were consumed: one unit of stock and one unit of
	// reservation gone from each.
	screen, err := svc.GetProduct(ctx, "p-screen-a54")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if screen.StockLevel != 7 || screen.ReservedStock != 0 {
		t.Fatalf("expected screen stock 7 reserved 0, got %d/%d", screen.StockLevel, screen.ReservedStock)
	}
	battery, err := svc.GetProduct(ctx, "p-batt-i12")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if battery.StockLevel != 19 || battery.ReservedStock != 0 {
		t.Fatalf("expected battery stock 19 reserved 0, got %d/%d", battery.StockLevel, battery.ReservedStock)
	}

	matches, err := svc.CheckWarranty(ctx, "356938035643809")
	if err != nil {
		t.Fatalf("warranty check failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 active warranty, got %d", len(matches))
	}
}

func TestCheckoutRejectsCartFilledBeforeReservation(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	// The cart is filled while all 8 screens are free...
	if _, err := svc.AddToCart(ctx, "t-stale", "p-screen-a54"); err != nil {
		t.Fatalf("add to cart failed: %v", err)
	}
	if _, err := svc.UpdateCartQuantity(ctx, "t-stale", "p-screen-a54", 8); err != nil {
		t.Fatalf("update quantity failed: %v", err)
	}

	// ...then a repair ticket earmarks 6 of them before the terminal pays.
	if _, err := svc.CreateRepairJob(ctx, domain.RepairJobRequest{
		CustomerName:  "Rosa Blanco",
		DeviceMake:    "Samsung",
		DeviceModel:   "A54",
		ReportedIssue: "Pantalla",
		EstimatedCost: 200,
		ReservedParts: []domain.ReservedPart{{ProductID: "p-screen-a54", Quantity: 6}},
	}); err != nil {
		t.Fatalf("create repair failed: %v", err)
	}

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		TerminalID: "t-stale",
		Tendered:   map[domain.PaymentMethod]float64{domain.PaymentCashUSD: 480},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected stale cart to be rejected, got %v", err)
	}

	product, err := svc.GetProduct(ctx, "p-screen-a54")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockLevel != 8 || product.ReservedStock != 6 {
		t.Fatalf("expected stock 8 reserved 6 untouched, got %d/%d", product.StockLevel, product.ReservedStock)
	}
}

func TestRepairPayoffCannotSettleTwice(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	job, err := svc.CreateRepairJob(ctx, domain.RepairJobRequest{
		CustomerName:  "Héctor Ruiz",
		DeviceMake:    "Xiaomi",
		DeviceModel:   "Redmi 12",
		ReportedIssue: "No carga",
		EstimatedCost: 40,
		AmountPaid:    10,
	})
	if err != nil {
		t.Fatalf("create repair failed: %v", err)
	}

	// Two terminals load the same payoff before either settles.
	if _, err := svc.LoadRepairCharge(ctx, "t-caja1", job.ID); err != nil {
		t.Fatalf("load repair charge failed: %v", err)
	}
	if _, err := svc.LoadRepairCharge(ctx, "t-caja2", job.ID); err != nil {
		t.Fatalf("load repair charge failed: %v", err)
	}

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		TerminalID: "t-caja1",
		Tendered:   map[domain.PaymentMethod]float64{domain.PaymentCashUSD: 30},
	}); err != nil {
		t.Fatalf("first payoff failed: %v", err)
	}

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		TerminalID: "t-caja2",
		Tendered:   map[domain.PaymentMethod]float64{domain.PaymentCashUSD: 30},
	})
	if !errors.Is(err, store.ErrRepairConflict) {
		t.Fatalf("expected second payoff to bounce, got %v", err)
	}

	settled, err := svc.GetRepairJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get repair failed: %v", err)
	}
	if !currency.EqualWithin(settled.AmountPaid, 40) {
		t.Fatalf("expected amount paid capped at 40, got %.2f", settled.AmountPaid)
	}
}

func TestRepairReservationEditAdjustsOnlyTheDelta(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	job, err := svc.CreateRepairJob(ctx, domain.RepairJobRequest{
		CustomerName:  "Luis Rojas",
		DeviceMake:    "Motorola",
		DeviceModel:   "G52",
		ReportedIssue: "No enciende",
		EstimatedCost: 25,
		ReservedParts: []domain.ReservedPart{{ProductID: "p-batt-moto", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create repair failed: %v", err)
	}

	_, err = svc.UpdateRepairJob(ctx, job.ID, domain.RepairJobRequest{
		CustomerName:  "Luis Rojas",
		DeviceMake:    "Motorola",
		DeviceModel:   "G52",
		ReportedIssue: "No enciende",
		EstimatedCost: 25,
		Status:        domain.RepairStatusInProgress,
		ReservedParts: []domain.ReservedPart{
			{ProductID: "p-batt-moto", Quantity: 1},
			{ProductID: "p-flex-power", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("update repair failed: %v", err)
	}

	battery, err := svc.GetProduct(ctx, "p-batt-moto")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if battery.ReservedStock != 1 {
		t.Fatalf("expected battery reservation 1 after edit, got %d", battery.ReservedStock)
	}
	flex, err := svc.GetProduct(ctx, "p-flex-power")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if flex.ReservedStock != 1 {
		t.Fatalf("expected flex reservation 1, got %d", flex.ReservedStock)
	}
}

func TestManualCompletionStartsWarranty(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	job, err := svc.CreateRepairJob(ctx, domain.RepairJobRequest{
		CustomerName:  "Ana Gómez",
		DeviceMake:    "Xiaomi",
		DeviceModel:   "Note 11",
		ReportedIssue: "Pin de carga",
		EstimatedCost: 15,
		AmountPaid:    15,
	})
	if err != nil {
		t.Fatalf("create repair failed: %v", err)
	}

	updated, err := svc.UpdateRepairJob(ctx, job.ID, domain.RepairJobRequest{
		CustomerName:  "Ana Gómez",
		DeviceMake:    "Xiaomi",
		DeviceModel:   "Note 11",
		ReportedIssue: "Pin de carga",
		EstimatedCost: 15,
		AmountPaid:    15,
		Status:        domain.RepairStatusCompleted,
	})
	if err != nil {
		t.Fatalf("update repair failed: %v", err)
	}
	if updated.CompletedAt == nil || updated.WarrantyEndDate == nil {
		t.Fatalf("expected completion to stamp the warranty window")
	}
}

func TestRefundIsOneWay(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.AddToCart(ctx, "t-ref", "p-charger20"); err != nil {
		t.Fatalf("add to cart failed: %v", err)
	}
	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		TerminalID: "t-ref",
		Tendered:   map[domain.PaymentMethod]float64{domain.PaymentCashUSD: 14},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if _, err := svc.RefundSale(ctx, domain.RefundRequest{SaleID: resp.Sale.ID}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected refund without reason to fail, got %v", err)
	}

	refunded, err := svc.RefundSale(ctx, domain.RefundRequest{SaleID: resp.Sale.ID, Reason: "cliente devolvió el cargador"})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != domain.SaleStatusRefunded || refunded.RefundedAt == nil {
		t.Fatalf("expected refunded sale, got %+v", refunded)
	}

	product, err := svc.GetProduct(ctx, "p-charger20")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockLevel != 25 {
		t.Fatalf("expected stock restored to 25, got %d", product.StockLevel)
	}

	_, err = svc.RefundSale(ctx, domain.RefundRequest{SaleID: resp.Sale.ID, Reason: "otra vez"})
	if !errors.Is(err, store.ErrAlreadyRefunded) {
		t.Fatalf("expected ErrAlreadyRefunded, got %v", err)
	}
}

func TestHoldAndRestoreSale(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.AddToCart(ctx, "t-hold", "p-cable-c"); err != nil {
		t.Fatalf("add to cart failed: %v", err)
	}
	held, err := svc.HoldSale(ctx, domain.HoldSaleRequest{TerminalID: "t-hold", Name: "Sr. Mendoza"})
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}

	view, err := svc.GetCart(ctx, "t-hold")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected cart cleared after hold")
	}

	restored, err := svc.RestoreHeldSale(ctx, "t-hold", held.ID)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if len(restored.Items) != 1 || restored.Items[0].ProductID != "p-cable-c" {
		t.Fatalf("unexpected restored cart: %+v", restored.Items)
	}

	// The ticket is consumed by the restore.
	if _, err := svc.RestoreHeldSale(ctx, "t-hold", held.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected second restore to miss, got %v", err)
	}
}

func TestHoldRejectsRepairCharge(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	job, err := svc.CreateRepairJob(ctx, domain.RepairJobRequest{
		CustomerName:  "Pedro León",
		DeviceMake:    "iPhone",
		DeviceModel:   "12",
		ReportedIssue: "Batería",
		EstimatedCost: 40,
	})
	if err != nil {
		t.Fatalf("create repair failed: %v", err)
	}
	if _, err := svc.LoadRepairCharge(ctx, "t-hr", job.ID); err != nil {
		t.Fatalf("load repair charge failed: %v", err)
	}

	_, err = svc.HoldSale(ctx, domain.HoldSaleRequest{TerminalID: "t-hr", Name: "no vale"})
	if !errors.Is(err, store.ErrRepairConflict) {
		t.Fatalf("expected repair conflict on hold, got %v", err)
	}

	// Cancelling the charge unlocks the terminal again.
	if _, err := svc.CancelRepairCharge(ctx, "t-hr"); err != nil {
		t.Fatalf("cancel repair charge failed: %v", err)
	}
	if _, err := svc.AddToCart(ctx, "t-hr", "p-case-uni"); err != nil {
		t.Fatalf("add after cancel failed: %v", err)
	}
}

func TestUpdateSettingsInvalidatesAndAudits(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	saved, err := svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{Currency: domain.CurrencyBs, BsExchangeRate: 40})
	if err != nil {
		t.Fatalf("update settings failed: %v", err)
	}
	if saved.Currency != domain.CurrencyBs || saved.BsExchangeRate != 40 {
		t.Fatalf("unexpected settings: %+v", saved)
	}

	if _, err := svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{Currency: domain.CurrencyUSD, BsExchangeRate: 0}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected zero rate rejection, got %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, "", 50)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.Action == "settings_update" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected settings_update audit entry")
	}
}

func TestDailyReportSeparatesRefunds(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.AddToCart(ctx, "t-rep", "p-case-uni"); err != nil {
		t.Fatalf("add to cart failed: %v", err)
	}
	first, err := svc.Checkout(ctx, domain.CheckoutRequest{
		TerminalID: "t-rep",
		Tendered:   map[domain.PaymentMethod]float64{domain.PaymentCashUSD: 5},
	})
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}

	if _, err := svc.AddToCart(ctx, "t-rep", "p-glass-uni"); err != nil {
		t.Fatalf("add to cart failed: %v", err)
	}
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		TerminalID: "t-rep",
		Tendered:   map[domain.PaymentMethod]float64{domain.PaymentCashUSD: 3},
	}); err != nil {
		t.Fatalf("second checkout failed: %v", err)
	}

	if _, err := svc.RefundSale(ctx, domain.RefundRequest{SaleID: first.Sale.ID, Reason: "defecto"}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	report, err := svc.DailyReport(ctx, "")
	if err != nil {
		t.Fatalf("daily report failed: %v", err)
	}
	if report.Transactions != 1 {
		t.Fatalf("expected 1 live transaction, got %d", report.Transactions)
	}
	if !currency.EqualWithin(report.NetSales, 3) {
		t.Fatalf("expected net sales 3, got %.2f", report.NetSales)
	}
	if !currency.EqualWithin(report.Refunded, 5) {
		t.Fatalf("expected refunded 5, got %.2f", report.Refunded)
	}
}
