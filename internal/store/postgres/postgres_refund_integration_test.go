package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"tallerpos/backend/internal/domain"
	"tallerpos/backend/internal/store"
)

func TestRefundSaleRestocksInventory(t *testing.T) {
	databaseURL := os.Getenv("TALLERPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TALLERPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("p-refund-it-%d", stamp)
	sku := fmt.Sprintf("SKU-REFUND-IT-%d", stamp)
	saleID := fmt.Sprintf("s-refund-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, sku, cost_price, retail_price, promo_price, stock_level, reserved_stock, low_stock_threshold, created_at, updated_at)
		VALUES ($1, 'Pantalla Refund IT', 'Pantallas', $2, 45, 90, 0, 10, 0, 3, now(), now())
	`, productID, sku); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	sale := domain.Sale{
		ID: saleID,
		Items: []domain.CartItem{
			{ProductID: productID, Name: "Pantalla Refund IT", Quantity: 2, Price: 90},
		},
		Subtotal:      180,
		TotalAmount:   180,
		PaymentMethod: string(domain.PaymentCashUSD),
		Payments: []domain.Payment{
			{Method: domain.PaymentCashUSD, Amount: 180},
		},
		TransactionDate: time.Now().UTC(),
	}
	if _, err := s.CommitSale(ctx, sale, 0); err != nil {
		t.Fatalf("commit sale: %v", err)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `SELECT stock_level FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", stock)
	}

	if _, err := s.RefundSale(ctx, saleID, "integration test refund", time.Now().UTC()); err != nil {
		t.Fatalf("refund sale: %v", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT stock_level FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 10 {
		t.Fatalf("expected stock 10 after refund restock, got %d", stock)
	}

	var status string
	if err := s.db.QueryRowContext(ctx, `SELECT status FROM sales WHERE id = $1`, saleID).Scan(&status); err != nil {
		t.Fatalf("query sale status: %v", err)
	}
	if status != string(domain.SaleStatusRefunded) {
		t.Fatalf("expected sale status %s, got %s", domain.SaleStatusRefunded, status)
	}
}

func TestCommitSaleGuardsIntegration(t *testing.T) {
	databaseURL := os.Getenv("TALLERPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TALLERPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("p-guard-it-%d", stamp)
	sku := fmt.Sprintf("SKU-GUARD-IT-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE items::text LIKE '%'||$1||'%'`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM repair_jobs WHERE customer_name = $1`, sku)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	// 10 on hand, 6 reserved: selling 5 must dip into the reservation and fail.
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, sku, cost_price, retail_price, promo_price, stock_level, reserved_stock, low_stock_threshold, created_at, updated_at)
		VALUES ($1, 'Pantalla Guard IT', 'Pantallas', $2, 45, 90, 0, 10, 6, 3, now(), now())
	`, productID, sku); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	sale := domain.Sale{
		Items:           []domain.CartItem{{ProductID: productID, Name: "Pantalla Guard IT", Quantity: 5, Price: 90}},
		Subtotal:        450,
		TotalAmount:     450,
		PaymentMethod:   string(domain.PaymentCashUSD),
		Payments:        []domain.Payment{{Method: domain.PaymentCashUSD, Amount: 450}},
		TransactionDate: time.Now().UTC(),
	}
	if _, err := s.CommitSale(ctx, sale, 0); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected reserved units to block the sale, got %v", err)
	}

	var stock, reserved int
	if err := s.db.QueryRowContext(ctx, `SELECT stock_level, reserved_stock FROM products WHERE id = $1`, productID).Scan(&stock, &reserved); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 10 || reserved != 6 {
		t.Fatalf("expected stock 10 reserved 6 untouched, got %d/%d", stock, reserved)
	}

	// A settled repair job rejects another payoff commit.
	job, err := s.CreateRepairJob(ctx, domain.RepairJob{
		CustomerName:  sku,
		DeviceMake:    "Samsung",
		DeviceModel:   "A54",
		EstimatedCost: 40,
		AmountPaid:    10,
		Status:        domain.RepairStatusInProgress,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create repair: %v", err)
	}

	payoff := domain.Sale{
		RepairJobID:     job.ID,
		Items:           []domain.CartItem{{ProductID: job.ID, Name: "Reparación", Quantity: 1, Price: 30, IsRepair: true}},
		Subtotal:        30,
		TotalAmount:     30,
		PaymentMethod:   string(domain.PaymentCashUSD),
		Payments:        []domain.Payment{{Method: domain.PaymentCashUSD, Amount: 30}},
		TransactionDate: time.Now().UTC(),
	}
	if _, err := s.CommitSale(ctx, payoff, 30); err != nil {
		t.Fatalf("first payoff: %v", err)
	}
	if _, err := s.CommitSale(ctx, payoff, 30); !errors.Is(err, store.ErrRepairConflict) {
		t.Fatalf("expected settled job to reject a second payoff, got %v", err)
	}
}
