package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tallerpos/backend/internal/domain"
	"tallerpos/backend/internal/ledger"
	"tallerpos/backend/internal/store"
	"tallerpos/backend/internal/xid"
)

// Store is the in-memory repository used for dev mode and tests. A single
// mutex makes every multi-record mutation atomic: working copies of the
// touched products are validated first and written back only when the whole
// operation succeeds.
type Store struct {
	mu              sync.RWMutex
	settings        domain.Settings
	productsByID    map[string]domain.Product
	repairJobsByID  map[string]domain.RepairJob
	salesByID       map[string]domain.Sale
	heldSalesByID   map[string]domain.HeldSale
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{ID: "p-screen-i13", Name: "Pantalla iPhone 13", Category: "Pantallas", SKU: "SKU-0001", CostPrice: 45, RetailPrice: 90, PromoPrice: 72, StockLevel: 12, LowStockThreshold: 3},
		{ID: "p-screen-a54", Name: "Pantalla Samsung A54", Category: "Pantallas", SKU: "SKU-0002", CostPrice: 30, RetailPrice: 60, StockLevel: 8, LowStockThreshold: 3},
		{ID: "p-batt-i12", Name: "Batería iPhone 12", Category: "Baterías", SKU: "SKU-0003", CostPrice: 18, RetailPrice: 36, PromoPrice: 28.8, StockLevel: 20, LowStockThreshold: 5},
		{ID: "p-batt-moto", Name: "Batería Moto G52", Category: "Baterías", SKU: "SKU-0004", CostPrice: 12, RetailPrice: 24, StockLevel: 15, LowStockThreshold: 5},
		{ID: "p-case-uni", Name: "Forro Universal", Category: "Accesorios", SKU: "SKU-0005", CostPrice: 2.5, RetailPrice: 5, StockLevel: 60, LowStockThreshold: 10},
		{ID: "p-glass-uni", Name: "Vidrio Templado", Category: "Accesorios", SKU: "SKU-0006", CostPrice: 1.5, RetailPrice: 3, PromoPrice: 2.4, StockLevel: 80, LowStockThreshold: 10},
		{ID: "p-cable-c", Name: "Cable USB-C", Category: "Accesorios", SKU: "SKU-0007", CostPrice: 3, RetailPrice: 6, StockLevel: 40, LowStockThreshold: 8},
		{ID: "p-charger20", Name: "Cargador 20W", Category: "Accesorios", SKU: "SKU-0008", CostPrice: 7, RetailPrice: 14, StockLevel: 25, LowStockThreshold: 5},
		{ID: "p-pin-carga", Name: "Pin de Carga Genérico", Category: "Repuestos", SKU: "SKU-0009", CostPrice: 4, RetailPrice: 8, StockLevel: 30, LowStockThreshold: 6},
		{ID: "p-flex-power", Name: "Flex de Encendido", Category: "Repuestos", SKU: "SKU-0010", CostPrice: 5, RetailPrice: 10, StockLevel: 18, LowStockThreshold: 4},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	return &Store{
		settings: domain.Settings{
			Currency:       domain.CurrencyUSD,
			BsExchangeRate: 36.5,
			UpdatedAt:      time.Now().UTC(),
		},
		productsByID:    productMap,
		repairJobsByID:  make(map[string]domain.RepairJob),
		salesByID:       make(map[string]domain.Sale),
		heldSalesByID:   make(map[string]domain.HeldSale),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) GetSettings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, settings domain.Settings) (domain.Settings, error) {
	if settings.BsExchangeRate <= 0 {
		return domain.Settings{}, fmt.Errorf("%w: exchange rate must be positive", store.ErrInvalidInput)
	}
	if settings.Currency != domain.CurrencyUSD && settings.Currency != domain.CurrencyBs {
		return domain.Settings{}, fmt.Errorf("%w: unknown currency %q", store.ErrInvalidInput, settings.Currency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	settings.UpdatedAt = time.Now().UTC()
	s.settings = settings
	return s.settings, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.productsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	result := product
	return &result, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := s.productsByID[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.productsByID[product.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate product id", store.ErrInvalidInput)
	}
	for _, existing := range s.productsByID {
		if existing.SKU == product.SKU {
			return nil, fmt.Errorf("%w: duplicate sku %s", store.ErrInvalidInput, product.SKU)
		}
	}

	s.productsByID[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.productsByID[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	// Reservations are owned by the repair workflow, not the product form.
	product.ReservedStock = existing.ReservedStock
	if product.ReservedStock > product.StockLevel {
		return nil, fmt.Errorf("%w: stock below reserved units (%d)", store.ErrInsufficientStock, product.ReservedStock)
	}

	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.productsByID[id]
	if !ok {
		return store.ErrNotFound
	}
	if product.ReservedStock > 0 {
		return fmt.Errorf("%w: product has reserved units", store.ErrInvalidInput)
	}
	delete(s.productsByID, id)
	return nil
}

func validateProduct(product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" || strings.TrimSpace(product.SKU) == "" {
		return fmt.Errorf("%w: name and sku are required", store.ErrInvalidInput)
	}
	if product.CostPrice < 0 || product.RetailPrice < 0 || product.PromoPrice < 0 {
		return fmt.Errorf("%w: prices cannot be negative", store.ErrInvalidInput)
	}
	if product.StockLevel < 0 || product.LowStockThreshold < 0 {
		return fmt.Errorf("%w: stock values cannot be negative", store.ErrInvalidInput)
	}
	return nil
}

func (s *Store) ListRepairJobs(_ context.Context) ([]domain.RepairJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]domain.RepairJob, 0, len(s.repairJobsByID))
	for _, job := range s.repairJobsByID {
		jobs = append(jobs, cloneRepairJob(job))
	}
	slices.SortFunc(jobs, func(a, b domain.RepairJob) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return jobs, nil
}

func (s *Store) GetRepairJobByID(_ context.Context, id string) (*domain.RepairJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.repairJobsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	result := cloneRepairJob(job)
	return &result, nil
}

func (s *Store) CreateRepairJob(_ context.Context, job domain.RepairJob) (*domain.RepairJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = xid.New("r")
	}
	if _, exists := s.repairJobsByID[job.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate repair id", store.ErrInvalidInput)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	working := s.workingProducts(partProductIDs(job.ReservedParts))
	delta := ledger.ReservationDelta(nil, job.ReservedParts)
	if err := ledger.ApplyReservationDelta(working, delta); err != nil {
		return nil, err
	}

	s.writeBack(working)
	s.repairJobsByID[job.ID] = cloneRepairJob(job)
	created := cloneRepairJob(job)
	return &created, nil
}

func (s *Store) UpdateRepairJob(_ context.Context, job domain.RepairJob) (*domain.RepairJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.repairJobsByID[job.ID]
	if !ok {
		return nil, store.ErrNotFound
	}

	// The delta is recomputed against the stored job under the lock, so a
	// stale caller cannot double-apply a reservation.
	ids := append(partProductIDs(existing.ReservedParts), partProductIDs(job.ReservedParts)...)
	working := s.workingProducts(ids)
	delta := ledger.ReservationDelta(existing.ReservedParts, job.ReservedParts)
	if err := ledger.ApplyReservationDelta(working, delta); err != nil {
		return nil, err
	}

	job.CreatedAt = existing.CreatedAt
	if existing.CompletedAt != nil {
		job.CompletedAt = existing.CompletedAt
		job.WarrantyEndDate = existing.WarrantyEndDate
	}

	s.writeBack(working)
	s.repairJobsByID[job.ID] = cloneRepairJob(job)
	updated := cloneRepairJob(job)
	return &updated, nil
}

func (s *Store) DeleteRepairJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.repairJobsByID[id]
	if !ok {
		return store.ErrNotFound
	}

	working := s.workingProducts(partProductIDs(job.ReservedParts))
	ledger.ReleaseReservations(working, job.ReservedParts, false)

	s.writeBack(working)
	delete(s.repairJobsByID, id)
	return nil
}

func (s *Store) FindActiveWarranties(_ context.Context, imei string, at time.Time) ([]domain.WarrantyMatch, error) {
	imei = strings.TrimSpace(imei)
	if imei == "" {
		return nil, fmt.Errorf("%w: imei required", store.ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.WarrantyMatch, 0, 2)
	for _, job := range s.repairJobsByID {
		if job.DeviceIMEI != imei || job.Status != domain.RepairStatusCompleted {
			continue
		}
		if job.CompletedAt == nil || job.WarrantyEndDate == nil {
			continue
		}
		if at.Before(*job.WarrantyEndDate) {
			matches = append(matches, domain.WarrantyMatch{
				RepairJobID:     job.ID,
				DeviceIMEI:      job.DeviceIMEI,
				CompletedAt:     *job.CompletedAt,
				WarrantyEndDate: *job.WarrantyEndDate,
			})
		}
	}
	slices.SortFunc(matches, func(a, b domain.WarrantyMatch) int {
		if a.WarrantyEndDate.After(b.WarrantyEndDate) {
			return -1
		}
		return 1
	})
	return matches, nil
}

func (s *Store) CommitSale(_ context.Context, sale domain.Sale, repairContributionUSD float64) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = xid.New("s")
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate sale id", store.ErrInvalidInput)
	}
	if len(sale.Items) == 0 || len(sale.Payments) == 0 {
		return nil, fmt.Errorf("%w: sale needs items and payments", store.ErrInvalidInput)
	}
	if sale.TransactionDate.IsZero() {
		sale.TransactionDate = time.Now().UTC()
	}
	sale.Status = domain.SaleStatusCompleted

	var job domain.RepairJob
	var hasJob bool
	ids := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		if !item.IsRepair {
			ids = append(ids, item.ProductID)
		}
	}
	if sale.RepairJobID != "" {
		stored, ok := s.repairJobsByID[sale.RepairJobID]
		if !ok {
			return nil, fmt.Errorf("%w: repair job %s", store.ErrNotFound, sale.RepairJobID)
		}
		job = cloneRepairJob(stored)
		if job.IsPaid || job.RemainingBalance() <= 0 {
			return nil, fmt.Errorf("%w: repair %s already settled", store.ErrRepairConflict, job.ID)
		}
		hasJob = true
		ids = append(ids, partProductIDs(job.ReservedParts)...)
	}

	working := s.workingProducts(ids)
	if err := ledger.ApplySale(working, sale.Items); err != nil {
		return nil, err
	}

	if hasJob {
		ledger.ReleaseReservations(working, job.ReservedParts, true)
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
	}

	s.writeBack(working)
	if hasJob {
		s.repairJobsByID[job.ID] = job
	}
	s.salesByID[sale.ID] = cloneSale(sale)

	committed := cloneSale(sale)
	return &committed, nil
}

func (s *Store) RefundSale(_ context.Context, saleID string, reason string, at time.Time) (*domain.Sale, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: refund reason is required", store.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, store.ErrNotFound
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
	working := s.workingProducts(ids)
	ledger.ApplyRefund(working, sale.Items)

	sale.Status = domain.SaleStatusRefunded
	refundedAt := at.UTC()
	sale.RefundedAt = &refundedAt
	sale.RefundReason = strings.TrimSpace(reason)

	s.writeBack(working)
	s.salesByID[saleID] = sale

	refunded := cloneSale(sale)
	return &refunded, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	result := cloneSale(sale)
	return &result, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if !from.IsZero() && sale.TransactionDate.Before(from) {
			continue
		}
		if !to.IsZero() && !sale.TransactionDate.Before(to) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.TransactionDate.Equal(b.TransactionDate) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.TransactionDate.After(b.TransactionDate) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) GetDailyReport(_ context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.DailyReport{Date: from.Format("2006-01-02")}
	byPayment := make(map[domain.PaymentMethod]*domain.DailyReportPayment, 4)

	for _, sale := range s.salesByID {
		if sale.TransactionDate.Before(from) || !sale.TransactionDate.Before(to) {
			continue
		}
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

func (s *Store) CreateHeldSale(_ context.Context, held domain.HeldSale) (*domain.HeldSale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held.ID == "" {
		held.ID = xid.New("hold")
	}
	if held.CreatedAt.IsZero() {
		held.CreatedAt = time.Now().UTC()
	}
	if strings.TrimSpace(held.Name) == "" || len(held.Items) == 0 {
		return nil, fmt.Errorf("%w: held sale needs a name and items", store.ErrInvalidInput)
	}

	s.heldSalesByID[held.ID] = cloneHeldSale(held)
	saved := cloneHeldSale(s.heldSalesByID[held.ID])
	return &saved, nil
}

func (s *Store) ListHeldSales(_ context.Context, limit int) ([]domain.HeldSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.HeldSale, 0, len(s.heldSalesByID))
	for _, held := range s.heldSalesByID {
		result = append(result, cloneHeldSale(held))
	}
	slices.SortFunc(result, func(a, b domain.HeldSale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) PopHeldSale(_ context.Context, id string) (*domain.HeldSale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, exists := s.heldSalesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	delete(s.heldSalesByID, id)
	result := cloneHeldSale(held)
	return &result, nil
}

func (s *Store) DeleteHeldSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.heldSalesByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.heldSalesByID, id)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("%w: user %s exists", store.ErrInvalidInput, user.Username)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// workingProducts copies the referenced products so ledger mutations can be
// validated before anything is written back. Callers hold the write lock.
func (s *Store) workingProducts(ids []string) map[string]domain.Product {
	working := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := s.productsByID[id]; ok {
			working[id] = product
		}
	}
	return working
}

func (s *Store) writeBack(working map[string]domain.Product) {
	for id, product := range working {
		s.productsByID[id] = product
	}
}

func partProductIDs(parts []domain.ReservedPart) []string {
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		ids = append(ids, part.ProductID)
	}
	return ids
}

func cloneRepairJob(src domain.RepairJob) domain.RepairJob {
	clone := src
	clone.ReservedParts = append([]domain.ReservedPart(nil), src.ReservedParts...)
	if src.CompletedAt != nil {
		completedAt := *src.CompletedAt
		clone.CompletedAt = &completedAt
	}
	if src.WarrantyEndDate != nil {
		warrantyEnd := *src.WarrantyEndDate
		clone.WarrantyEndDate = &warrantyEnd
	}
	return clone
}

func cloneSale(src domain.Sale) domain.Sale {
	clone := src
	clone.Items = append([]domain.CartItem(nil), src.Items...)
	clone.Payments = append([]domain.Payment(nil), src.Payments...)
	if src.RefundedAt != nil {
		refundedAt := *src.RefundedAt
		clone.RefundedAt = &refundedAt
	}
	return clone
}

func cloneHeldSale(src domain.HeldSale) domain.HeldSale {
	clone := src
	clone.Items = append([]domain.CartItem(nil), src.Items...)
	return clone
}
