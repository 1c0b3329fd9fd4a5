package currency

import (
	"strings"

	"github.com/shopspring/decimal"

	"tallerpos/backend/internal/domain"
)

// Epsilon is the tolerance for monetary comparisons. Converting between USD
// and bolívares introduces floating-point drift, so amounts are never compared
// for exact equality.
const Epsilon = 1e-3

// Converter performs conversions between USD and bolívares at a fixed
// configured rate. Base is the shop's display currency; repair accounting is
// always carried in USD regardless of Base.
type Converter struct {
	Rate float64
	Base domain.Currency
}

// FromSettings builds a Converter, treating a missing or non-positive rate as
// 1 so conversions degrade to a no-op instead of dividing by zero.
func FromSettings(settings domain.Settings) Converter {
	rate := settings.BsExchangeRate
	if rate <= 0 {
		rate = 1
	}
	base := settings.Currency
	if base != domain.CurrencyBs {
		base = domain.CurrencyUSD
	}
	return Converter{Rate: rate, Base: base}
}

func (c Converter) Convert(amount float64, from, to domain.Currency) float64 {
	if from == to {
		return amount
	}
	rate := c.Rate
	if rate <= 0 {
		rate = 1
	}
	if from == domain.CurrencyUSD && to == domain.CurrencyBs {
		return amount * rate
	}
	if from == domain.CurrencyBs && to == domain.CurrencyUSD {
		return amount / rate
	}
	return amount
}

// ToBase converts an amount into the display currency.
func (c Converter) ToBase(amount float64, from domain.Currency) float64 {
	return c.Convert(amount, from, c.Base)
}

// Other returns the counterpart currency.
func Other(cur domain.Currency) domain.Currency {
	if cur == domain.CurrencyUSD {
		return domain.CurrencyBs
	}
	return domain.CurrencyUSD
}

// EqualWithin reports whether two amounts agree within Epsilon.
func EqualWithin(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= Epsilon
}

// Format renders an amount with exactly two decimals and thousands grouping
// ("1,234.56"). Decimal arithmetic avoids float formatting drift at the edge
// of a cent.
func Format(amount float64) string {
	fixed := decimal.NewFromFloat(amount).StringFixed(2)

	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	parts := strings.SplitN(fixed, ".", 2)
	whole := parts[0]

	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(digit)
	}

	out := grouped.String() + "." + parts[1]
	if negative {
		out = "-" + out
	}
	return out
}
