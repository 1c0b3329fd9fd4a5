package store

import (
	"context"
	"errors"
	"time"

	"tallerpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRepairConflict    = errors.New("repair charge in progress")
	ErrAlreadyRefunded   = errors.New("sale already refunded")
)

// Repository is the persistence boundary. Every method that touches more than
// one record (CommitSale, RefundSale, the repair-job mutations) must apply its
// writes as a single atomic unit: a crash or concurrent writer between partial
// writes would leave stock and sale records inconsistent.
type Repository interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error)

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListRepairJobs(ctx context.Context) ([]domain.RepairJob, error)
	GetRepairJobByID(ctx context.Context, id string) (*domain.RepairJob, error)
	// CreateRepairJob persists the job and bumps reservedStock for each
	// reserved part in the same atomic unit.
	CreateRepairJob(ctx context.Context, job domain.RepairJob) (*domain.RepairJob, error)
	// UpdateRepairJob recomputes the reservation delta against the stored job
	// inside the atomic unit and applies it to each touched product.
	UpdateRepairJob(ctx context.Context, job domain.RepairJob) (*domain.RepairJob, error)
	// DeleteRepairJob releases all reservations, then removes the job.
	DeleteRepairJob(ctx context.Context, id string) error
	FindActiveWarranties(ctx context.Context, imei string, at time.Time) ([]domain.WarrantyMatch, error)

	// CommitSale applies the full consequences of a settled checkout: stock
	// decrements for product lines, reservation release and consumption plus
	// the paid-amount/status update when the sale pays off a repair job, and
	// the sale record itself. repairContributionUSD is the settlement's
	// payment total converted to the repair's accounting currency.
	CommitSale(ctx context.Context, sale domain.Sale, repairContributionUSD float64) (*domain.Sale, error)
	// RefundSale restores stock for non-repair lines and flips the sale to
	// refunded. A sale already refunded is rejected with ErrAlreadyRefunded.
	RefundSale(ctx context.Context, saleID string, reason string, at time.Time) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error)
	GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error)

	CreateHeldSale(ctx context.Context, held domain.HeldSale) (*domain.HeldSale, error)
	ListHeldSales(ctx context.Context, limit int) ([]domain.HeldSale, error)
	// PopHeldSale atomically removes and returns the held sale; a concurrent
	// restorer loses with ErrNotFound rather than reading deleted data.
	PopHeldSale(ctx context.Context, id string) (*domain.HeldSale, error)
	DeleteHeldSale(ctx context.Context, id string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
