package pricing

import (
	"strings"
	"time"
)

// Money represents a monetary value in whole Chilean pesos.
type Money = int64

// Default promotion parameters. CLP has no fractional unit, so rates are
// expressed in basis points and applied with half-up rounding to the peso.
const (
	DefaultCouponCode    = "50MILSABORES"
	DefaultCouponRateBps = 2500
	DefaultSeniorRateBps = 5000
	DefaultSeniorMinAge  = 50
)

// Rules carries the promotion parameters used when pricing a cart. A zero
// value applies no discounts; DefaultRules returns the storefront
// configuration.
type Rules struct {
	CouponCode    string
	CouponRateBps int
	SeniorRateBps int
	SeniorMinAge  int
}

// DefaultRules returns the storefront promotion rules.
func DefaultRules() Rules {
	return Rules{
		CouponCode:    DefaultCouponCode,
		CouponRateBps: DefaultCouponRateBps,
		SeniorRateBps: DefaultSeniorRateBps,
		SeniorMinAge:  DefaultSeniorMinAge,
	}
}

// Item describes a line item used for subtotal calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// SubtotalOf sums line totals, skipping non-positive quantities.
func SubtotalOf(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Quote is the result of pricing a cart subtotal against the promotion rules.
// Age is nil when no birth date was supplied or it could not be parsed.
type Quote struct {
	Subtotal         Money  `json:"subtotal"`
	NormalizedCoupon string `json:"normalizedCoupon"`
	CouponValid      bool   `json:"couponValid"`
	CouponDiscount   Money  `json:"couponDiscount"`
	Age              *int   `json:"age"`
	SeniorEligible   bool   `json:"seniorEligible"`
	SeniorDiscount   Money  `json:"seniorDiscount"`
	Total            Money  `json:"total"`
}

// NormalizeCoupon trims surrounding whitespace and upper-cases the code.
func NormalizeCoupon(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponValid reports whether the code matches the configured coupon after
// normalization. Matching is exact; there is no coupon registry or expiry.
func (r Rules) CouponValid(code string) bool {
	return r.CouponCode != "" && NormalizeCoupon(code) == r.CouponCode
}

// AgeOn computes the calendar age for an ISO-8601 birth date at the given
// instant. It reports false when the value is empty or unparseable; callers
// treat that as "age unknown", never as an error.
func AgeOn(birthDate string, on time.Time) (int, bool) {
	trimmed := strings.TrimSpace(birthDate)
	if trimmed == "" {
		return 0, false
	}
	born, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		born, err = time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return 0, false
		}
	}
	age := on.Year() - born.Year()
	if on.Month() < born.Month() || (on.Month() == born.Month() && on.Day() < born.Day()) {
		age--
	}
	return age, true
}

// Compute prices a subtotal against the rules. The coupon discount applies
// first; the senior discount applies to the post-coupon base. Individual
// discounts are not clamped against the remaining subtotal; only the final
// total is floored at zero. Negative subtotals are accepted and flow through
// the arithmetic until that final clamp.
//
// The caller supplies the instant used for age calculation, so identical
// arguments always produce identical quotes.
func (r Rules) Compute(subtotal Money, couponCode, birthDate string, now time.Time) Quote {
	q := Quote{
		Subtotal:         subtotal,
		NormalizedCoupon: NormalizeCoupon(couponCode),
	}

	q.CouponValid = r.CouponValid(couponCode)
	if q.CouponValid {
		q.CouponDiscount = roundBps(subtotal, r.CouponRateBps)
	}

	if age, ok := AgeOn(birthDate, now); ok {
		q.Age = &age
		q.SeniorEligible = age >= r.SeniorMinAge
	}
	if q.SeniorEligible {
		base := subtotal - q.CouponDiscount
		if base < 0 {
			base = 0
		}
		q.SeniorDiscount = roundBps(base, r.SeniorRateBps)
	}

	q.Total = subtotal - q.CouponDiscount - q.SeniorDiscount
	if q.Total < 0 {
		q.Total = 0
	}
	return q
}

// roundBps applies a basis-point rate with half-up rounding to the peso.
func roundBps(base Money, bps int) Money {
	return (base*Money(bps) + 5000) / 10000
}
