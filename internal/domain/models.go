package domain

import "time"

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyBs  Currency = "Bs"
)

// Settings is the single app-settings document: display currency plus the
// manually configured bolívar exchange rate.
type Settings struct {
	Currency       Currency  `json:"currency"`
	BsExchangeRate float64   `json:"bs_exchange_rate"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type SettingsUpdateRequest struct {
	Currency       Currency `json:"currency"`
	BsExchangeRate float64  `json:"bs_exchange_rate"`
	ManagerPIN     string   `json:"manager_pin"`
}

type Product struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	SKU               string  `json:"sku"`
	CostPrice         float64 `json:"cost_price"`
	RetailPrice       float64 `json:"retail_price"`
	PromoPrice        float64 `json:"promo_price"`
	StockLevel        int     `json:"stock_level"`
	ReservedStock     int     `json:"reserved_stock"`
	LowStockThreshold int     `json:"low_stock_threshold"`
}

// AvailableStock is the sale-eligible quantity, clamped at zero for display.
func (p Product) AvailableStock() int {
	available := p.StockLevel - p.ReservedStock
	if available < 0 {
		return 0
	}
	return available
}

func (p Product) LowStock() bool {
	return p.AvailableStock() <= p.LowStockThreshold
}

type ProductCreateRequest struct {
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	SKU               string  `json:"sku"`
	CostPrice         float64 `json:"cost_price"`
	HasPromoPrice     bool    `json:"has_promo_price"`
	StockLevel        int     `json:"stock_level"`
	LowStockThreshold int     `json:"low_stock_threshold"`
}

type ProductUpdateRequest struct {
	Name              *string  `json:"name,omitempty"`
	Category          *string  `json:"category,omitempty"`
	CostPrice         *float64 `json:"cost_price,omitempty"`
	HasPromoPrice     *bool    `json:"has_promo_price,omitempty"`
	StockLevel        *int     `json:"stock_level,omitempty"`
	LowStockThreshold *int     `json:"low_stock_threshold,omitempty"`
}

type RepairStatus string

const (
	RepairStatusPending       RepairStatus = "Pendiente"
	RepairStatusDiagnosing    RepairStatus = "Diagnóstico"
	RepairStatusInProgress    RepairStatus = "En Progreso"
	RepairStatusAwaitingParts RepairStatus = "Esperando Piezas"
	RepairStatusReady         RepairStatus = "Listo para Recoger"
	RepairStatusCompleted     RepairStatus = "Completado"
)

var RepairStatuses = []RepairStatus{
	RepairStatusPending,
	RepairStatusDiagnosing,
	RepairStatusInProgress,
	RepairStatusAwaitingParts,
	RepairStatusReady,
	RepairStatusCompleted,
}

// WarrantyDays is the post-completion warranty window for repairs.
const WarrantyDays = 4

type ReservedPart struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

type RepairJob struct {
	ID               string         `json:"id"`
	CustomerName     string         `json:"customer_name"`
	CustomerPhone    string         `json:"customer_phone"`
	DeviceMake       string         `json:"device_make"`
	DeviceModel      string         `json:"device_model"`
	DeviceIMEI       string         `json:"device_imei,omitempty"`
	ReportedIssue    string         `json:"reported_issue"`
	InitialCondition string         `json:"initial_condition,omitempty"`
	EstimatedCost    float64        `json:"estimated_cost"`
	AmountPaid       float64        `json:"amount_paid"`
	IsPaid           bool           `json:"is_paid"`
	Status           RepairStatus   `json:"status"`
	Notes            string         `json:"notes,omitempty"`
	ReservedParts    []ReservedPart `json:"reserved_parts"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	WarrantyEndDate  *time.Time     `json:"warranty_end_date,omitempty"`
}

// RemainingBalance is what the customer still owes on the agreed price.
func (j RepairJob) RemainingBalance() float64 {
	return j.EstimatedCost - j.AmountPaid
}

type RepairJobRequest struct {
	CustomerName     string         `json:"customer_name"`
	CustomerPhone    string         `json:"customer_phone"`
	DeviceMake       string         `json:"device_make"`
	DeviceModel      string         `json:"device_model"`
	DeviceIMEI       string         `json:"device_imei,omitempty"`
	ReportedIssue    string         `json:"reported_issue"`
	InitialCondition string         `json:"initial_condition,omitempty"`
	EstimatedCost    float64        `json:"estimated_cost"`
	AmountPaid       float64        `json:"amount_paid"`
	Status           RepairStatus   `json:"status"`
	Notes            string         `json:"notes,omitempty"`
	ReservedParts    []ReservedPart `json:"reserved_parts"`
}

type WarrantyMatch struct {
	RepairJobID     string    `json:"repair_job_id"`
	DeviceIMEI      string    `json:"device_imei"`
	CompletedAt     time.Time `json:"completed_at"`
	WarrantyEndDate time.Time `json:"warranty_end_date"`
}

type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	IsRepair  bool    `json:"is_repair,omitempty"`
	IsPromo   bool    `json:"is_promo,omitempty"`
}

type PaymentMethod string

const (
	PaymentCashUSD   PaymentMethod = "Efectivo USD"
	PaymentCashBs    PaymentMethod = "Efectivo Bs"
	PaymentCard      PaymentMethod = "Tarjeta"
	PaymentMobilePay PaymentMethod = "Pago Móvil"
)

var PaymentMethods = []PaymentMethod{
	PaymentCashUSD,
	PaymentCashBs,
	PaymentCard,
	PaymentMobilePay,
}

// NativeCurrency is the currency a tender method is denominated in. Card and
// mobile transfers always settle in bolívares.
func (m PaymentMethod) NativeCurrency() Currency {
	if m == PaymentCashUSD {
		return CurrencyUSD
	}
	return CurrencyBs
}

type Payment struct {
	Method PaymentMethod `json:"method"`
	Amount float64       `json:"amount"`
}

const (
	SaleStatusCompleted = "completed"
	SaleStatusRefunded  = "refunded"
)

type Sale struct {
	ID              string     `json:"id"`
	Items           []CartItem `json:"items"`
	RepairJobID     string     `json:"repair_job_id,omitempty"`
	Subtotal        float64    `json:"subtotal"`
	Discount        float64    `json:"discount"`
	TotalAmount     float64    `json:"total_amount"`
	PaymentMethod   string     `json:"payment_method"`
	Payments        []Payment  `json:"payments"`
	TransactionDate time.Time  `json:"transaction_date"`
	Status          string     `json:"status"`
	RefundedAt      *time.Time `json:"refunded_at,omitempty"`
	RefundReason    string     `json:"refund_reason,omitempty"`
}

type HeldSale struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Items     []CartItem `json:"items"`
	Discount  float64    `json:"discount"`
	CreatedAt time.Time  `json:"created_at"`
}

type HoldSaleRequest struct {
	TerminalID string `json:"terminal_id"`
	Name       string `json:"name"`
}

type CartItemRequest struct {
	TerminalID string `json:"terminal_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity,omitempty"`
}

type CartDiscountRequest struct {
	TerminalID string  `json:"terminal_id"`
	Discount   float64 `json:"discount"`
}

type RepairChargeRequest struct {
	TerminalID  string `json:"terminal_id"`
	RepairJobID string `json:"repair_job_id"`
}

type TerminalRequest struct {
	TerminalID string `json:"terminal_id"`
}

type CheckoutRequest struct {
	TerminalID string                    `json:"terminal_id"`
	Tendered   map[PaymentMethod]float64 `json:"tendered"`
}

type CheckoutResponse struct {
	Sale   Sale    `json:"sale"`
	Change float64 `json:"change"`
}

type RefundRequest struct {
	SaleID     string `json:"sale_id"`
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type CartView struct {
	TerminalID  string     `json:"terminal_id"`
	Items       []CartItem `json:"items"`
	RepairJobID string     `json:"repair_job_id,omitempty"`
	Discount    float64    `json:"discount"`
	Subtotal    float64    `json:"subtotal"`
	Total       float64    `json:"total"`
}

type DailyReportPayment struct {
	Method       PaymentMethod `json:"method"`
	Transactions int64         `json:"transactions"`
	Total        float64       `json:"total"`
}

// DailyReport backs the cash-reconciliation view: per-method tender totals in
// each method's native currency, plus sale totals in USD.
type DailyReport struct {
	Date         string               `json:"date"`
	Transactions int64                `json:"transactions"`
	GrossSales   float64              `json:"gross_sales"`
	Discounts    float64              `json:"discounts"`
	NetSales     float64              `json:"net_sales"`
	Refunded     float64              `json:"refunded"`
	ByPayment    []DailyReportPayment `json:"by_payment"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
