package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"tallerpos/backend/internal/cache"
	"tallerpos/backend/internal/cart"
	"tallerpos/backend/internal/currency"
	"tallerpos/backend/internal/domain"
	"tallerpos/backend/internal/settlement"
	"tallerpos/backend/internal/store"
	"tallerpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const settingsCacheKey = "app:settings"

// Pricing markups applied to the cost price when a product is created or its
// cost changes.
const (
	retailMarkup = 2.0
	promoMarkup  = 1.6
)

// Service holds the business rules between the HTTP layer and the repository.
// Each terminal owns one active cart, kept server side so guards like the
// repair-charge lock survive page reloads.
type Service struct {
	repo        store.Repository
	settings    cache.SettingsCache
	settingsTTL time.Duration

	mu    sync.Mutex
	carts map[string]*cart.Cart
}

func New(repo store.Repository, settingsCache cache.SettingsCache, settingsTTL time.Duration) *Service {
	if settingsCache == nil {
		settingsCache = cache.NoopSettingsCache{}
	}
	if settingsTTL <= 0 {
		settingsTTL = 30 * time.Second
	}

	return &Service{
		repo:        repo,
		settings:    settingsCache,
		settingsTTL: settingsTTL,
		carts:       make(map[string]*cart.Cart),
	}
}

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	if cached, ok, err := s.settings.Get(ctx, settingsCacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: settings cache read failed: %v", err)
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if err := s.settings.Set(ctx, settingsCacheKey, &settings, s.settingsTTL); err != nil {
		log.Printf("[service] WARN: settings cache write failed: %v", err)
	}
	return settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.Settings, error) {
	if req.BsExchangeRate <= 0 {
		return domain.Settings{}, fmt.Errorf("%w: exchange rate must be positive", store.ErrInvalidInput)
	}
	if req.Currency != domain.CurrencyUSD && req.Currency != domain.CurrencyBs {
		return domain.Settings{}, fmt.Errorf("%w: unknown currency %q", store.ErrInvalidInput, req.Currency)
	}

	saved, err := s.repo.UpdateSettings(ctx, domain.Settings{
		Currency:       req.Currency,
		BsExchangeRate: req.BsExchangeRate,
	})
	if err != nil {
		return domain.Settings{}, err
	}

	if err := s.settings.Invalidate(ctx, settingsCacheKey); err != nil {
		log.Printf("[service] WARN: settings cache invalidate failed: %v", err)
	}

	s.logAudit(ctx, "settings_update", "settings", "app", fmt.Sprintf("currency=%s,rate=%.4f", saved.Currency, saved.BsExchangeRate))
	return saved, nil
}

func (s *Service) converter(ctx context.Context) (currency.Converter, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return currency.Converter{}, err
	}
	return currency.FromSettings(settings), nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.Name == "" || req.Category == "" {
		return domain.Product{}, fmt.Errorf("%w: name and category are required", store.ErrInvalidInput)
	}
	if req.CostPrice <= 0 || req.StockLevel < 0 || req.LowStockThreshold < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.SKU == "" {
		req.SKU = xid.New("PROD")
	}

	product := domain.Product{
		Name:              req.Name,
		Category:          req.Category,
		SKU:               req.SKU,
		CostPrice:         req.CostPrice,
		RetailPrice:       round2(req.CostPrice * retailMarkup),
		StockLevel:        req.StockLevel,
		LowStockThreshold: req.LowStockThreshold,
	}
	if req.HasPromoPrice {
		product.PromoPrice = round2(req.CostPrice * promoMarkup)
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("sku=%s,cost=%.2f,stock=%d", created.SKU, created.CostPrice, created.StockLevel))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Category = category
	}
	if req.CostPrice != nil {
		if *req.CostPrice <= 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.CostPrice = *req.CostPrice
		updated.RetailPrice = round2(updated.CostPrice * retailMarkup)
		if updated.PromoPrice > 0 {
			updated.PromoPrice = round2(updated.CostPrice * promoMarkup)
		}
	}
	if req.HasPromoPrice != nil {
		if *req.HasPromoPrice {
			updated.PromoPrice = round2(updated.CostPrice * promoMarkup)
		} else {
			updated.PromoPrice = 0
		}
	}
	if req.StockLevel != nil {
		if *req.StockLevel < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.StockLevel = *req.StockLevel
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("cost=%.2f,retail=%.2f,stock=%d", saved.CostPrice, saved.RetailPrice, saved.StockLevel))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

// cartFor returns the terminal's cart, creating it on first use. Callers hold
// s.mu for the whole operation so concurrent requests from the same terminal
// serialize.
func (s *Service) cartFor(terminalID string) *cart.Cart {
	c, ok := s.carts[terminalID]
	if !ok {
		c = cart.New()
		s.carts[terminalID] = c
	}
	return c
}

func normalizeTerminal(terminalID string) string {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return "main-terminal"
	}
	return terminalID
}

func (s *Service) GetCart(ctx context.Context, terminalID string) (domain.CartView, error) {
	terminalID = normalizeTerminal(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartView(terminalID), nil
}

func (s *Service) cartView(terminalID string) domain.CartView {
	c := s.cartFor(terminalID)
	return domain.CartView{
		TerminalID:  terminalID,
		Items:       c.Items(),
		RepairJobID: c.RepairJobID(),
		Discount:    c.Discount(),
		Subtotal:    c.Subtotal(),
		Total:       c.Total(),
	}
}

func (s *Service) AddToCart(ctx context.Context, terminalID string, productID string) (domain.CartView, error) {
	terminalID = normalizeTerminal(terminalID)

	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return domain.CartView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cartFor(terminalID).AddProduct(*product); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(terminalID), nil
}

func (s *Service) UpdateCartQuantity(ctx context.Context, terminalID string, productID string, quantity int) (domain.CartView, error) {
	terminalID = normalizeTerminal(terminalID)

	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return domain.CartView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cartFor(terminalID).UpdateQuantity(*product, quantity); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(terminalID), nil
}

func (s *Service) RemoveFromCart(ctx context.Context, terminalID string, productID string) (domain.CartView, error) {
	terminalID = normalizeTerminal(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cartFor(terminalID).RemoveItem(productID); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(terminalID), nil
}

func (s *Service) ToggleCartPromo(ctx context.Context, terminalID string, productID string) (domain.CartView, error) {
	terminalID = normalizeTerminal(terminalID)

	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return domain.CartView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cartFor(terminalID).TogglePromo(*product); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(terminalID), nil
}

func (s *Service) SetCartDiscount(ctx context.Context, terminalID string, discount float64) (domain.CartView, error) {
	terminalID = normalizeTerminal(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cartFor(terminalID).SetDiscount(discount); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(terminalID), nil
}

func (s *Service) ClearCart(ctx context.Context, terminalID string) (domain.CartView, error) {
	terminalID = normalizeTerminal(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cartFor(terminalID).Clear(); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(terminalID), nil
}

// LoadRepairCharge replaces the terminal's cart with the single payoff line
// for a repair job's outstanding balance.
func (s *Service) LoadRepairCharge(ctx context.Context, terminalID string, repairJobID string) (domain.CartView, error) {
	terminalID = normalizeTerminal(terminalID)

	job, err := s.repo.GetRepairJobByID(ctx, repairJobID)
	if err != nil {
		return domain.CartView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cartFor(terminalID).LoadRepairPayoff(*job); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(terminalID), nil
}

// CancelRepairCharge drops a loaded repair payoff without committing anything.
// This is the only path that empties a cart holding a repair line.
func (s *Service) CancelRepairCharge(ctx context.Context, terminalID string) (domain.CartView, error) {
	terminalID = normalizeTerminal(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cartFor(terminalID)
	if !c.HasRepairLine() {
		return domain.CartView{}, fmt.Errorf("%w: no repair charge loaded", store.ErrInvalidInput)
	}
	c.ForceReset()
	return s.cartView(terminalID), nil
}

func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	terminalID := normalizeTerminal(req.TerminalID)

	conv, err := s.converter(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartFor(terminalID)
	if c.Empty() {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: cart is empty", store.ErrInvalidInput)
	}

	// Prices are carried in USD; the settlement works in the configured
	// display currency so change comes back in what the cashier hands over.
	total := conv.Convert(c.Total(), domain.CurrencyUSD, conv.Base)
	result, err := settlement.Settle(total, req.Tendered, conv)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	sale := domain.Sale{
		ID:              xid.New("s"),
		Items:           c.Items(),
		RepairJobID:     c.RepairJobID(),
		Subtotal:        c.Subtotal(),
		Discount:        c.Discount(),
		TotalAmount:     c.Total(),
		PaymentMethod:   paymentLabel(result.Payments),
		Payments:        result.Payments,
		TransactionDate: time.Now().UTC(),
		Status:          domain.SaleStatusCompleted,
	}

	contributionUSD := 0.0
	if sale.RepairJobID != "" {
		contributionUSD = settlement.ContributionUSD(result.Payments, conv)
	}

	committed, err := s.repo.CommitSale(ctx, sale, contributionUSD)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	c.ForceReset()

	s.logAudit(ctx, "checkout", "sale", committed.ID, fmt.Sprintf("total=%.2f,payment=%s,repair=%s", committed.TotalAmount, committed.PaymentMethod, committed.RepairJobID))

	return domain.CheckoutResponse{Sale: *committed, Change: result.Change}, nil
}

func paymentLabel(payments []domain.Payment) string {
	labels := make([]string, 0, len(payments))
	for _, payment := range payments {
		labels = append(labels, string(payment.Method))
	}
	return strings.Join(labels, " + ")
}

func (s *Service) HoldSale(ctx context.Context, req domain.HoldSaleRequest) (domain.HeldSale, error) {
	terminalID := normalizeTerminal(req.TerminalID)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.HeldSale{}, fmt.Errorf("%w: held sale needs a name", store.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartFor(terminalID)
	if c.Empty() {
		return domain.HeldSale{}, fmt.Errorf("%w: cart is empty", store.ErrInvalidInput)
	}
	if c.HasRepairLine() {
		return domain.HeldSale{}, fmt.Errorf("%w: a repair charge cannot be held", store.ErrRepairConflict)
	}

	held, err := s.repo.CreateHeldSale(ctx, domain.HeldSale{
		ID:        xid.New("hold"),
		Name:      name,
		Items:     c.Items(),
		Discount:  c.Discount(),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.HeldSale{}, err
	}

	if err := c.Clear(); err != nil {
		return domain.HeldSale{}, err
	}

	s.logAudit(ctx, "sale_hold", "held_sale", held.ID, fmt.Sprintf("name=%s,items=%d", held.Name, len(held.Items)))
	return *held, nil
}

func (s *Service) ListHeldSales(ctx context.Context) ([]domain.HeldSale, error) {
	return s.repo.ListHeldSales(ctx, 200)
}

// RestoreHeldSale pops the held sale and loads it into the terminal's cart.
// Popping first means two terminals racing for the same ticket cannot both
// restore it; the loser sees a not-found.
func (s *Service) RestoreHeldSale(ctx context.Context, terminalID string, holdID string) (domain.CartView, error) {
	terminalID = normalizeTerminal(terminalID)
	holdID = strings.TrimSpace(holdID)
	if holdID == "" {
		return domain.CartView{}, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartFor(terminalID)
	if c.HasRepairLine() {
		return domain.CartView{}, fmt.Errorf("%w: finish or cancel the repair charge first", store.ErrRepairConflict)
	}

	held, err := s.repo.PopHeldSale(ctx, holdID)
	if err != nil {
		return domain.CartView{}, err
	}
	if err := c.Restore(held.Items, held.Discount); err != nil {
		// The pop already removed the ticket; put it back so it is not lost.
		if _, saveErr := s.repo.CreateHeldSale(ctx, *held); saveErr != nil {
			log.Printf("[service] WARN: failed to re-save held sale %s after restore failure: %v", held.ID, saveErr)
		}
		return domain.CartView{}, err
	}

	s.logAudit(ctx, "sale_restore", "held_sale", held.ID, fmt.Sprintf("items=%d", len(held.Items)))
	return s.cartView(terminalID), nil
}

func (s *Service) DiscardHeldSale(ctx context.Context, holdID string) error {
	holdID = strings.TrimSpace(holdID)
	if holdID == "" {
		return store.ErrInvalidInput
	}

	if err := s.repo.DeleteHeldSale(ctx, holdID); err != nil {
		return err
	}
	s.logAudit(ctx, "sale_discard", "held_sale", holdID, "discarded")
	return nil
}

func (s *Service) ListRepairJobs(ctx context.Context) ([]domain.RepairJob, error) {
	return s.repo.ListRepairJobs(ctx)
}

func (s *Service) GetRepairJob(ctx context.Context, id string) (domain.RepairJob, error) {
	job, err := s.repo.GetRepairJobByID(ctx, id)
	if err != nil {
		return domain.RepairJob{}, err
	}
	return *job, nil
}

func (s *Service) CreateRepairJob(ctx context.Context, req domain.RepairJobRequest) (domain.RepairJob, error) {
	job, err := repairJobFromRequest(req)
	if err != nil {
		return domain.RepairJob{}, err
	}
	job.ID = xid.New("r")
	job.CreatedAt = time.Now().UTC()

	created, err := s.repo.CreateRepairJob(ctx, job)
	if err != nil {
		return domain.RepairJob{}, err
	}

	s.logAudit(ctx, "repair_create", "repair_job", created.ID, fmt.Sprintf("device=%s %s,estimate=%.2f,parts=%d", created.DeviceMake, created.DeviceModel, created.EstimatedCost, len(created.ReservedParts)))
	return *created, nil
}

func (s *Service) UpdateRepairJob(ctx context.Context, id string, req domain.RepairJobRequest) (domain.RepairJob, error) {
	job, err := repairJobFromRequest(req)
	if err != nil {
		return domain.RepairJob{}, err
	}
	job.ID = id

	// Moving a job to completed by hand starts the warranty clock even though
	// nothing was charged through the register.
	if job.Status == domain.RepairStatusCompleted {
		completedAt := time.Now().UTC()
		warrantyEnd := completedAt.AddDate(0, 0, domain.WarrantyDays)
		job.CompletedAt = &completedAt
		job.WarrantyEndDate = &warrantyEnd
	}

	updated, err := s.repo.UpdateRepairJob(ctx, job)
	if err != nil {
		return domain.RepairJob{}, err
	}

	s.logAudit(ctx, "repair_update", "repair_job", updated.ID, fmt.Sprintf("status=%s,paid=%.2f,parts=%d", updated.Status, updated.AmountPaid, len(updated.ReservedParts)))
	return *updated, nil
}

func (s *Service) DeleteRepairJob(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteRepairJob(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "repair_delete", "repair_job", id, "")
	return nil
}

func (s *Service) CheckWarranty(ctx context.Context, imei string) ([]domain.WarrantyMatch, error) {
	return s.repo.FindActiveWarranties(ctx, imei, time.Now().UTC())
}

func repairJobFromRequest(req domain.RepairJobRequest) (domain.RepairJob, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.DeviceMake = strings.TrimSpace(req.DeviceMake)
	req.DeviceModel = strings.TrimSpace(req.DeviceModel)
	if req.CustomerName == "" || req.DeviceMake == "" || req.DeviceModel == "" {
		return domain.RepairJob{}, fmt.Errorf("%w: customer and device are required", store.ErrInvalidInput)
	}
	if req.EstimatedCost < 0 || req.AmountPaid < 0 {
		return domain.RepairJob{}, fmt.Errorf("%w: amounts cannot be negative", store.ErrInvalidInput)
	}

	if req.Status == "" {
		req.Status = domain.RepairStatusPending
	}
	validStatus := false
	for _, status := range domain.RepairStatuses {
		if req.Status == status {
			validStatus = true
			break
		}
	}
	if !validStatus {
		return domain.RepairJob{}, fmt.Errorf("%w: unknown repair status %q", store.ErrInvalidInput, req.Status)
	}

	parts := make([]domain.ReservedPart, 0, len(req.ReservedParts))
	for _, part := range req.ReservedParts {
		if part.ProductID == "" || part.Quantity < 1 {
			return domain.RepairJob{}, fmt.Errorf("%w: reserved parts need a product and a positive quantity", store.ErrInvalidInput)
		}
		parts = append(parts, part)
	}

	return domain.RepairJob{
		CustomerName:     req.CustomerName,
		CustomerPhone:    strings.TrimSpace(req.CustomerPhone),
		DeviceMake:       req.DeviceMake,
		DeviceModel:      req.DeviceModel,
		DeviceIMEI:       strings.TrimSpace(req.DeviceIMEI),
		ReportedIssue:    strings.TrimSpace(req.ReportedIssue),
		InitialCondition: strings.TrimSpace(req.InitialCondition),
		EstimatedCost:    req.EstimatedCost,
		AmountPaid:       req.AmountPaid,
		IsPaid:           req.AmountPaid >= req.EstimatedCost && req.EstimatedCost > 0,
		Status:           req.Status,
		Notes:            strings.TrimSpace(req.Notes),
		ReservedParts:    parts,
	}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, date string, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}
	from, to, err := dayWindow(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, from, to, limit)
}

func (s *Service) RefundSale(ctx context.Context, req domain.RefundRequest) (domain.Sale, error) {
	if strings.TrimSpace(req.SaleID) == "" {
		return domain.Sale{}, store.ErrInvalidInput
	}
	if strings.TrimSpace(req.Reason) == "" {
		return domain.Sale{}, fmt.Errorf("%w: refund reason is required", store.ErrInvalidInput)
	}

	refunded, err := s.repo.RefundSale(ctx, req.SaleID, req.Reason, time.Now().UTC())
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "refund_sale", "sale", refunded.ID, fmt.Sprintf("amount=%.2f,reason=%s", refunded.TotalAmount, refunded.RefundReason))
	return *refunded, nil
}

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	from, to, err := dayWindow(date)
	if err != nil {
		return domain.DailyReport{}, err
	}
	report, err := s.repo.GetDailyReport(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	report.Date = from.Format("2006-01-02")
	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("admin role required")
	}
	if limit < 1 {
		limit = 100
	}
	from, to, err := dayWindow(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// dayWindow resolves a yyyy-mm-dd date (today when empty) to a UTC [from,to)
// day range.
func dayWindow(date string) (time.Time, time.Time, error) {
	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: bad date %q", store.ErrInvalidInput, date)
		}
		day = parsed.UTC()
	}
	return day, day.Add(24 * time.Hour), nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
