package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tallerpos/backend/internal/domain"
	"tallerpos/backend/internal/ledger"
	"tallerpos/backend/internal/store"
	"tallerpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	var settings domain.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT currency, bs_exchange_rate, updated_at
		FROM app_settings
		WHERE id = 1
	`).Scan(&settings.Currency, &settings.BsExchangeRate, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// First run, nothing configured yet.
			return domain.Settings{Currency: domain.CurrencyUSD, BsExchangeRate: 36.5, UpdatedAt: time.Now().UTC()}, nil
		}
		return domain.Settings{}, err
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if settings.BsExchangeRate <= 0 {
		return domain.Settings{}, fmt.Errorf("%w: exchange rate must be positive", store.ErrInvalidInput)
	}
	if settings.Currency != domain.CurrencyUSD && settings.Currency != domain.CurrencyBs {
		return domain.Settings{}, fmt.Errorf("%w: unknown currency %q", store.ErrInvalidInput, settings.Currency)
	}

	settings.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_settings (id, currency, bs_exchange_rate, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET currency = $1, bs_exchange_rate = $2, updated_at = $3
	`, settings.Currency, settings.BsExchangeRate, settings.UpdatedAt)
	if err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

const productColumns = `id, name, category, sku, cost_price, retail_price, promo_price, stock_level, reserved_stock, low_stock_threshold`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.SKU, &p.CostPrice, &p.RetailPrice, &p.PromoPrice, &p.StockLevel, &p.ReservedStock, &p.LowStockThreshold)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || strings.TrimSpace(product.SKU) == "" {
		return nil, fmt.Errorf("%w: name and sku are required", store.ErrInvalidInput)
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, sku, cost_price, retail_price, promo_price, stock_level, reserved_stock, low_stock_threshold, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,$9,now(),now())
	`, product.ID, product.Name, product.Category, product.SKU, product.CostPrice, product.RetailPrice, product.PromoPrice, product.StockLevel, product.LowStockThreshold)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate product id or sku", store.ErrInvalidInput)
		}
		return nil, err
	}

	created := product
	created.ReservedStock = 0
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	// reserved_stock is owned by the repair workflow; the guard keeps the
	// stock level from dropping below what repairs have already claimed.
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, cost_price = $4, retail_price = $5, promo_price = $6,
		    stock_level = $7, low_stock_threshold = $8, updated_at = now()
		WHERE id = $1 AND reserved_stock <= $7
	`, product.ID, product.Name, product.Category, product.CostPrice, product.RetailPrice, product.PromoPrice, product.StockLevel, product.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := s.GetProductByID(ctx, product.ID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: stock below reserved units", store.ErrInsufficientStock)
	}

	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM products
		WHERE id = $1 AND reserved_stock = 0
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.GetProductByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: product has reserved units", store.ErrInvalidInput)
	}
	return nil
}

const repairColumns = `id, customer_name, customer_phone, device_make, device_model, device_imei, reported_issue, initial_condition, estimated_cost, amount_paid, is_paid, status, notes, reserved_parts, created_at, completed_at, warranty_end_date`

func scanRepairJob(row interface{ Scan(...any) error }) (domain.RepairJob, error) {
	var job domain.RepairJob
	var imei, condition, notes sql.NullString
	var parts []byte
	var completedAt, warrantyEnd sql.NullTime
	err := row.Scan(&job.ID, &job.CustomerName, &job.CustomerPhone, &job.DeviceMake, &job.DeviceModel,
		&imei, &job.ReportedIssue, &condition, &job.EstimatedCost, &job.AmountPaid, &job.IsPaid,
		&job.Status, &notes, &parts, &job.CreatedAt, &completedAt, &warrantyEnd)
	if err != nil {
		return domain.RepairJob{}, err
	}
	job.DeviceIMEI = imei.String
	job.InitialCondition = condition.String
	job.Notes = notes.String
	job.CreatedAt = job.CreatedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		job.CompletedAt = &t
	}
	if warrantyEnd.Valid {
		t := warrantyEnd.Time.UTC()
		job.WarrantyEndDate = &t
	}
	job.ReservedParts = []domain.ReservedPart{}
	if len(parts) > 0 {
		if err := json.Unmarshal(parts, &job.ReservedParts); err != nil {
			return domain.RepairJob{}, err
		}
	}
	return job, nil
}

func (s *Store) ListRepairJobs(ctx context.Context) ([]domain.RepairJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+repairColumns+`
		FROM repair_jobs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]domain.RepairJob, 0, 64)
	for rows.Next() {
		job, err := scanRepairJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) GetRepairJobByID(ctx context.Context, id string) (*domain.RepairJob, error) {
	job, err := scanRepairJob(s.db.QueryRowContext(ctx, `
		SELECT `+repairColumns+`
		FROM repair_jobs
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *Store) CreateRepairJob(ctx context.Context, job domain.RepairJob) (*domain.RepairJob, error) {
	if job.ID == "" {
		job.ID = xid.New("r")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	products, err := loadProductsForUpdate(ctx, tx, partProductIDs(job.ReservedParts))
	if err != nil {
		return nil, err
	}
	delta := ledger.ReservationDelta(nil, job.ReservedParts)
	if err := ledger.ApplyReservationDelta(products, delta); err != nil {
		return nil, err
	}
	if err := writeProductStock(ctx, tx, products); err != nil {
		return nil, err
	}

	if err := insertRepairJob(ctx, tx, job); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate repair id", store.ErrInvalidInput)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := job
	return &created, nil
}

func (s *Store) UpdateRepairJob(ctx context.Context, job domain.RepairJob) (*domain.RepairJob, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanRepairJob(tx.QueryRowContext(ctx, `
		SELECT `+repairColumns+`
		FROM repair_jobs
		WHERE id = $1
		FOR UPDATE
	`, job.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	// The delta is computed against the stored row inside the transaction so
	// a stale caller cannot double-apply a reservation.
	ids := append(partProductIDs(existing.ReservedParts), partProductIDs(job.ReservedParts)...)
	products, err := loadProductsForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	delta := ledger.ReservationDelta(existing.ReservedParts, job.ReservedParts)
	if err := ledger.ApplyReservationDelta(products, delta); err != nil {
		return nil, err
	}
	if err := writeProductStock(ctx, tx, products); err != nil {
		return nil, err
	}

	job.CreatedAt = existing.CreatedAt
	if existing.CompletedAt != nil {
		job.CompletedAt = existing.CompletedAt
		job.WarrantyEndDate = existing.WarrantyEndDate
	}
	if err := updateRepairJob(ctx, tx, job); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	updated := job
	return &updated, nil
}

func (s *Store) DeleteRepairJob(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanRepairJob(tx.QueryRowContext(ctx, `
		SELECT `+repairColumns+`
		FROM repair_jobs
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	products, err := loadProductsForUpdate(ctx, tx, partProductIDs(existing.ReservedParts))
	if err != nil {
		return err
	}
	ledger.ReleaseReservations(products, existing.ReservedParts, false)
	if err := writeProductStock(ctx, tx, products); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM repair_jobs WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) FindActiveWarranties(ctx context.Context, imei string, at time.Time) ([]domain.WarrantyMatch, error) {
	imei = strings.TrimSpace(imei)
	if imei == "" {
		return nil, fmt.Errorf("%w: imei required", store.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_imei, completed_at, warranty_end_date
		FROM repair_jobs
		WHERE device_imei = $1 AND status = $2 AND warranty_end_date > $3
		ORDER BY warranty_end_date DESC
	`, imei, domain.RepairStatusCompleted, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]domain.WarrantyMatch, 0, 2)
	for rows.Next() {
		var m domain.WarrantyMatch
		if err := rows.Scan(&m.RepairJobID, &m.DeviceIMEI, &m.CompletedAt, &m.WarrantyEndDate); err != nil {
			return nil, err
		}
		m.CompletedAt = m.CompletedAt.UTC()
		m.WarrantyEndDate = m.WarrantyEndDate.UTC()
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *Store) CommitSale(ctx context.Context, sale domain.Sale, repairContributionUSD float64) (*domain.Sale, error) {
	if len(sale.Items) == 0 || len(sale.Payments) == 0 {
		return nil, fmt.Errorf("%w: sale needs items and payments", store.ErrInvalidInput)
	}
	if sale.ID == "" {
		sale.ID = xid.New("s")
	}
	if sale.TransactionDate.IsZero() {
		sale.TransactionDate = time.Now().UTC()
	}
	sale.Status = domain.SaleStatusCompleted

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var job domain.RepairJob
	hasJob := sale.RepairJobID != ""
	if hasJob {
		job, err = scanRepairJob(tx.QueryRowContext(ctx, `
			SELECT `+repairColumns+`
			FROM repair_jobs
			WHERE id = $1
			FOR UPDATE
		`, sale.RepairJobID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: repair job %s", store.ErrNotFound, sale.RepairJobID)
			}
			return nil, err
		}
		// The stored row decides, not the cart the terminal settled against:
		// a second payoff racing in after the first commit must bounce here.
		if job.IsPaid || job.RemainingBalance() <= 0 {
			return nil, fmt.Errorf("%w: repair %s already settled", store.ErrRepairConflict, job.ID)
		}
	}

	ids := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		if !item.IsRepair {
			ids = append(ids, item.ProductID)
		}
	}
	if hasJob {
		ids = append(ids, partProductIDs(job.ReservedParts)...)
	}

	products, err := loadProductsForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if err := ledger.ApplySale(products, sale.Items); err != nil {
		return nil, err
	}

	if hasJob {
		ledger.ReleaseReservations(products, job.ReservedParts, true)
		job.AmountPaid += repairContributionUSD
		job.IsPaid = true
		job.Status = domain.RepairStatusCompleted
		job.ReservedParts = []domain.ReservedPart{}
		if job.CompletedAt == nil {
			completedAt := sale.TransactionDate
			warrantyEnd := completedAt.AddDate(0, 0, domain.WarrantyDays)
			job.CompletedAt = &completedAt
			job.WarrantyEndDate = &warrantyEnd
		}
		if err := updateRepairJob(ctx, tx, job); err != nil {
			return nil, err
		}
	}

	if err := writeProductStock(ctx, tx, products); err != nil {
		return nil, err
	}

	items, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}
	payments, err := json.Marshal(sale.Payments)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, items, repair_job_id, subtotal, discount, total_amount, payment_method, payments, transaction_date, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, items, nullIfEmpty(sale.RepairJobID), sale.Subtotal, sale.Discount, sale.TotalAmount,
		sale.PaymentMethod, payments, sale.TransactionDate, sale.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate sale id", store.ErrInvalidInput)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed := sale
	return &committed, nil
}

func (s *Store) RefundSale(ctx context.Context, saleID string, reason string, at time.Time) (*domain.Sale, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: refund reason is required", store.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	sale, err := scanSale(tx.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if sale.Status == domain.SaleStatusRefunded {
		return nil, store.ErrAlreadyRefunded
	}

	ids := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		if !item.IsRepair {
			ids = append(ids, item.ProductID)
		}
	}
	products, err := loadProductsForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	ledger.ApplyRefund(products, sale.Items)
	if err := writeProductStock(ctx, tx, products); err != nil {
		return nil, err
	}

	refundedAt := at.UTC()
	sale.Status = domain.SaleStatusRefunded
	sale.RefundedAt = &refundedAt
	sale.RefundReason = strings.TrimSpace(reason)

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET status = $2, refunded_at = $3, refund_reason = $4
		WHERE id = $1
	`, sale.ID, sale.Status, refundedAt, sale.RefundReason)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

const saleColumns = `id, items, repair_job_id, subtotal, discount, total_amount, payment_method, payments, transaction_date, status, refunded_at, refund_reason`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	var items, payments []byte
	var repairJobID, refundReason sql.NullString
	var refundedAt sql.NullTime
	err := row.Scan(&sale.ID, &items, &repairJobID, &sale.Subtotal, &sale.Discount, &sale.TotalAmount,
		&sale.PaymentMethod, &payments, &sale.TransactionDate, &sale.Status, &refundedAt, &refundReason)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.RepairJobID = repairJobID.String
	sale.RefundReason = refundReason.String
	sale.TransactionDate = sale.TransactionDate.UTC()
	if refundedAt.Valid {
		t := refundedAt.Time.UTC()
		sale.RefundedAt = &t
	}
	if err := json.Unmarshal(items, &sale.Items); err != nil {
		return domain.Sale{}, err
	}
	if err := json.Unmarshal(payments, &sale.Payments); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE transaction_date >= $1 AND transaction_date < $2
		ORDER BY transaction_date DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	sales, err := s.ListSales(ctx, from, to, 10000)
	if err != nil {
		return domain.DailyReport{}, err
	}

	report := domain.DailyReport{Date: from.Format("2006-01-02")}
	byPayment := make(map[domain.PaymentMethod]*domain.DailyReportPayment, 4)
	for _, sale := range sales {
		if sale.Status == domain.SaleStatusRefunded {
			report.Refunded += sale.TotalAmount
			continue
		}
		report.Transactions++
		report.GrossSales += sale.Subtotal
		report.Discounts += sale.Discount
		report.NetSales += sale.TotalAmount
		for _, payment := range sale.Payments {
			entry, ok := byPayment[payment.Method]
			if !ok {
				entry = &domain.DailyReportPayment{Method: payment.Method}
				byPayment[payment.Method] = entry
			}
			entry.Transactions++
			entry.Total += payment.Amount
		}
	}
	for _, method := range domain.PaymentMethods {
		if entry, ok := byPayment[method]; ok {
			report.ByPayment = append(report.ByPayment, *entry)
		}
	}
	return report, nil
}

func (s *Store) CreateHeldSale(ctx context.Context, held domain.HeldSale) (*domain.HeldSale, error) {
	if strings.TrimSpace(held.Name) == "" || len(held.Items) == 0 {
		return nil, fmt.Errorf("%w: held sale needs a name and items", store.ErrInvalidInput)
	}
	if held.ID == "" {
		held.ID = xid.New("hold")
	}
	if held.CreatedAt.IsZero() {
		held.CreatedAt = time.Now().UTC()
	}

	items, err := json.Marshal(held.Items)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO held_sales (id, name, items, discount, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, held.ID, held.Name, items, held.Discount, held.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate held sale id", store.ErrInvalidInput)
		}
		return nil, err
	}

	saved := held
	return &saved, nil
}

func (s *Store) ListHeldSales(ctx context.Context, limit int) ([]domain.HeldSale, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, items, discount, created_at
		FROM held_sales
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.HeldSale, 0, limit)
	for rows.Next() {
		var held domain.HeldSale
		var items []byte
		if err := rows.Scan(&held.ID, &held.Name, &items, &held.Discount, &held.CreatedAt); err != nil {
			return nil, err
		}
		held.CreatedAt = held.CreatedAt.UTC()
		if err := json.Unmarshal(items, &held.Items); err != nil {
			return nil, err
		}
		result = append(result, held)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// PopHeldSale deletes and returns in one statement, so two terminals racing
// for the same ticket cannot both restore it.
func (s *Store) PopHeldSale(ctx context.Context, id string) (*domain.HeldSale, error) {
	var held domain.HeldSale
	var items []byte
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM held_sales
		WHERE id = $1
		RETURNING id, name, items, discount, created_at
	`, id).Scan(&held.ID, &held.Name, &items, &held.Discount, &held.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	held.CreatedAt = held.CreatedAt.UTC()
	if err := json.Unmarshal(items, &held.Items); err != nil {
		return nil, err
	}
	return &held, nil
}

func (s *Store) DeleteHeldSale(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM held_sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s exists", store.ErrInvalidInput, user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// loadProductsForUpdate locks and reads the referenced product rows into the
// map shape the ledger functions mutate.
func loadProductsForUpdate(ctx context.Context, tx *sql.Tx, ids []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func writeProductStock(ctx context.Context, tx *sql.Tx, products map[string]domain.Product) error {
	for id, product := range products {
		_, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_level = $2, reserved_stock = $3, updated_at = now()
			WHERE id = $1
		`, id, product.StockLevel, product.ReservedStock)
		if err != nil {
			return err
		}
	}
	return nil
}

func insertRepairJob(ctx context.Context, tx *sql.Tx, job domain.RepairJob) error {
	parts, err := json.Marshal(job.ReservedParts)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO repair_jobs (
			id, customer_name, customer_phone, device_make, device_model, device_imei,
			reported_issue, initial_condition, estimated_cost, amount_paid, is_paid,
			status, notes, reserved_parts, created_at, completed_at, warranty_end_date
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, job.ID, job.CustomerName, job.CustomerPhone, job.DeviceMake, job.DeviceModel, nullIfEmpty(job.DeviceIMEI),
		job.ReportedIssue, nullIfEmpty(job.InitialCondition), job.EstimatedCost, job.AmountPaid, job.IsPaid,
		job.Status, nullIfEmpty(job.Notes), parts, job.CreatedAt, nullTime(job.CompletedAt), nullTime(job.WarrantyEndDate))
	return err
}

func updateRepairJob(ctx context.Context, tx *sql.Tx, job domain.RepairJob) error {
	parts, err := json.Marshal(job.ReservedParts)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE repair_jobs
		SET customer_name = $2, customer_phone = $3, device_make = $4, device_model = $5,
		    device_imei = $6, reported_issue = $7, initial_condition = $8, estimated_cost = $9,
		    amount_paid = $10, is_paid = $11, status = $12, notes = $13, reserved_parts = $14,
		    completed_at = $15, warranty_end_date = $16
		WHERE id = $1
	`, job.ID, job.CustomerName, job.CustomerPhone, job.DeviceMake, job.DeviceModel,
		nullIfEmpty(job.DeviceIMEI), job.ReportedIssue, nullIfEmpty(job.InitialCondition), job.EstimatedCost,
		job.AmountPaid, job.IsPaid, job.Status, nullIfEmpty(job.Notes), parts,
		nullTime(job.CompletedAt), nullTime(job.WarrantyEndDate))
	return err
}

func partProductIDs(parts []domain.ReservedPart) []string {
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		ids = append(ids, part.ProductID)
	}
	return ids
}

func uniqueIDs(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, seen := set[id]; seen {
			continue
		}
		set[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
