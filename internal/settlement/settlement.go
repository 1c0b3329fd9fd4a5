// Package settlement computes how a set of tendered payments covers a sale
// total across two currencies and four tender methods, and nets change back
// out of the cash tenders so the recorded payments never exceed the price.
package settlement

import (
	"errors"
	"fmt"

	"tallerpos/backend/internal/currency"
	"tallerpos/backend/internal/domain"
)

var (
	// ErrZeroTotal rejects confirming a sale with nothing to charge.
	ErrZeroTotal = errors.New("settlement total must be positive")
	// ErrInsufficientPayment means the tenders do not cover the total.
	ErrInsufficientPayment = errors.New("tendered amount does not cover the total")
	// ErrChangeExceedsCash means the overpayment cannot be returned because
	// it is larger than the cash portion of the tender. Recording it would
	// overstate what the shop received.
	ErrChangeExceedsCash = errors.New("change exceeds cash tendered")
)

type Result struct {
	// Payments is what gets persisted: each tender in its native currency,
	// net of change, summing to the sale total.
	Payments []domain.Payment
	// TotalPaid is the raw tendered sum converted to the base currency.
	TotalPaid float64
	// Change is the overpayment in the base currency, handed back in cash.
	Change float64
}

// Settle validates the tender set against the total (expressed in the base
// currency) and produces the final payment breakdown.
func Settle(total float64, tendered map[domain.PaymentMethod]float64, conv currency.Converter) (Result, error) {
	if total <= currency.Epsilon {
		return Result{}, ErrZeroTotal
	}

	totalPaid := 0.0
	for method, amount := range tendered {
		if !knownMethod(method) {
			return Result{}, fmt.Errorf("unknown payment method %q", method)
		}
		if amount < 0 {
			return Result{}, fmt.Errorf("negative tender for %s", method)
		}
		totalPaid += conv.ToBase(amount, method.NativeCurrency())
	}

	remaining := total - totalPaid
	if remaining > currency.Epsilon {
		return Result{}, fmt.Errorf("%w: %s short", ErrInsufficientPayment, currency.Format(remaining))
	}

	// Canonical method order keeps receipts and tests deterministic.
	payments := make([]domain.Payment, 0, len(tendered))
	for _, method := range domain.PaymentMethods {
		if amount := tendered[method]; amount > 0 {
			payments = append(payments, domain.Payment{Method: method, Amount: amount})
		}
	}

	change := totalPaid - total
	if change > currency.Epsilon {
		if err := netChange(payments, change, conv); err != nil {
			return Result{}, err
		}
	} else {
		change = 0
	}

	final := payments[:0]
	for _, payment := range payments {
		if payment.Amount > currency.Epsilon {
			final = append(final, payment)
		}
	}

	return Result{Payments: final, TotalPaid: totalPaid, Change: change}, nil
}

// netChange deducts the overpayment (in base currency) from the cash tenders:
// the base-currency cash first, then the other cash tender after conversion.
// Each cash tender's native currency is fixed, so the base cash absorbs
// change at face value.
func netChange(payments []domain.Payment, change float64, conv currency.Converter) error {
	baseCash, otherCash := domain.PaymentCashUSD, domain.PaymentCashBs
	if conv.Base == domain.CurrencyBs {
		baseCash, otherCash = domain.PaymentCashBs, domain.PaymentCashUSD
	}

	remaining := change
	if p := findPayment(payments, baseCash); p != nil {
		deduct := remaining
		if deduct > p.Amount {
			deduct = p.Amount
		}
		p.Amount -= deduct
		remaining -= deduct
	}

	if remaining > currency.Epsilon {
		p := findPayment(payments, otherCash)
		if p == nil {
			return ErrChangeExceedsCash
		}
		deduct := conv.Convert(remaining, conv.Base, currency.Other(conv.Base))
		if deduct > p.Amount+currency.Epsilon {
			return ErrChangeExceedsCash
		}
		p.Amount -= deduct
		if p.Amount < 0 {
			p.Amount = 0
		}
	}
	return nil
}

func findPayment(payments []domain.Payment, method domain.PaymentMethod) *domain.Payment {
	for i := range payments {
		if payments[i].Method == method {
			return &payments[i]
		}
	}
	return nil
}

func knownMethod(method domain.PaymentMethod) bool {
	for _, known := range domain.PaymentMethods {
		if method == known {
			return true
		}
	}
	return false
}

// ContributionUSD sums a payment list in USD. Repair-job accounting is
// carried in USD regardless of the display currency.
func ContributionUSD(payments []domain.Payment, conv currency.Converter) float64 {
	total := 0.0
	for _, payment := range payments {
		total += conv.Convert(payment.Amount, payment.Method.NativeCurrency(), domain.CurrencyUSD)
	}
	return total
}
