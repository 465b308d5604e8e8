package pricing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/milsabores/backend-pasteleria/internal/pricing"
)

var fixedNow = time.Date(2025, time.August, 15, 12, 0, 0, 0, time.UTC)

func TestCouponValidity(t *testing.T) {
	rules := pricing.DefaultRules()

	cases := []struct {
		code  string
		valid bool
	}{
		{"50MILSABORES", true},
		{"50milsabores", true},
		{"  50MilSabores  ", true},
		{"50MILSABORE", false},
		{"50MILSABORES1", false},
		{"", false},
		{"   ", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.valid, rules.CouponValid(tc.code), "code %q", tc.code)
	}
}

func TestAgeOn(t *testing.T) {
	t.Run("birthday already passed this year", func(t *testing.T) {
		age, ok := pricing.AgeOn("1970-03-21", fixedNow)
		require.True(t, ok)
		require.Equal(t, 55, age)
	})

	t.Run("birthday later this year", func(t *testing.T) {
		age, ok := pricing.AgeOn("1970-12-01", fixedNow)
		require.True(t, ok)
		require.Equal(t, 54, age)
	})

	t.Run("birthday today", func(t *testing.T) {
		age, ok := pricing.AgeOn("1975-08-15", fixedNow)
		require.True(t, ok)
		require.Equal(t, 50, age)
	})

	t.Run("rfc3339 timestamps accepted", func(t *testing.T) {
		age, ok := pricing.AgeOn("1970-03-21T00:00:00Z", fixedNow)
		require.True(t, ok)
		require.Equal(t, 55, age)
	})

	t.Run("unparseable values report unknown", func(t *testing.T) {
		for _, value := range []string{"", "   ", "not-a-date", "21/03/1970"} {
			_, ok := pricing.AgeOn(value, fixedNow)
			require.False(t, ok, "value %q", value)
		}
	})
}

func TestComputeSequentialDiscounts(t *testing.T) {
	rules := pricing.DefaultRules()

	q := rules.Compute(10000, "50MILSABORES", "1970-03-21", fixedNow)
	require.True(t, q.CouponValid)
	require.EqualValues(t, 2500, q.CouponDiscount)
	require.True(t, q.SeniorEligible)
	require.EqualValues(t, 3750, q.SeniorDiscount, "senior discount applies to the post-coupon base")
	require.EqualValues(t, 3750, q.Total)
}

func TestComputeNoDiscounts(t *testing.T) {
	rules := pricing.DefaultRules()

	q := rules.Compute(5000, "", "", fixedNow)
	require.False(t, q.CouponValid)
	require.Zero(t, q.CouponDiscount)
	require.Nil(t, q.Age)
	require.False(t, q.SeniorEligible)
	require.Zero(t, q.SeniorDiscount)
	require.EqualValues(t, 5000, q.Total)
}

func TestComputeCouponOnly(t *testing.T) {
	rules := pricing.DefaultRules()

	q := rules.Compute(45000, " 50milsabores ", "2000-01-01", fixedNow)
	require.True(t, q.CouponValid)
	require.Equal(t, "50MILSABORES", q.NormalizedCoupon)
	require.EqualValues(t, 11250, q.CouponDiscount)
	require.NotNil(t, q.Age)
	require.Equal(t, 25, *q.Age)
	require.False(t, q.SeniorEligible)
	require.EqualValues(t, 33750, q.Total)
}

func TestComputeSeniorOnly(t *testing.T) {
	rules := pricing.DefaultRules()

	q := rules.Compute(5000, "BOGUS", "1950-01-01", fixedNow)
	require.False(t, q.CouponValid)
	require.Zero(t, q.CouponDiscount)
	require.True(t, q.SeniorEligible)
	require.EqualValues(t, 2500, q.SeniorDiscount)
	require.EqualValues(t, 2500, q.Total)
}

func TestComputeTotalNeverNegative(t *testing.T) {
	rules := pricing.DefaultRules()

	for _, subtotal := range []pricing.Money{0, 1, 3, 999, 10000, 123457} {
		for _, coupon := range []string{"", "50MILSABORES"} {
			for _, birth := range []string{"", "1950-01-01"} {
				q := rules.Compute(subtotal, coupon, birth, fixedNow)
				require.GreaterOrEqual(t, q.Total, pricing.Money(0),
					"subtotal=%d coupon=%q birth=%q", subtotal, coupon, birth)
			}
		}
	}
}

func TestComputeIdempotent(t *testing.T) {
	rules := pricing.DefaultRules()

	first := rules.Compute(10000, "50MILSABORES", "1970-03-21", fixedNow)
	second := rules.Compute(10000, "50MILSABORES", "1970-03-21", fixedNow)
	require.Equal(t, first, second)
}

func TestComputeRoundsHalfUp(t *testing.T) {
	rules := pricing.Rules{CouponCode: "50MILSABORES", CouponRateBps: 2500}

	// 25% of 6 pesos is 1.5, which rounds up to 2.
	q := rules.Compute(6, "50MILSABORES", "", fixedNow)
	require.EqualValues(t, 2, q.CouponDiscount)
	require.EqualValues(t, 4, q.Total)
}

func TestComputeOverridableRules(t *testing.T) {
	rules := pricing.Rules{
		CouponCode:    "OTRA",
		CouponRateBps: 1000,
		SeniorRateBps: 2000,
		SeniorMinAge:  60,
	}

	q := rules.Compute(10000, "otra", "1970-03-21", fixedNow)
	require.True(t, q.CouponValid)
	require.EqualValues(t, 1000, q.CouponDiscount)
	require.False(t, q.SeniorEligible, "age 55 is below the overridden threshold")
	require.EqualValues(t, 9000, q.Total)
}

func TestSubtotalOf(t *testing.T) {
	items := []pricing.Item{
		{Qty: 2, UnitPrice: 4500},
		{Qty: 0, UnitPrice: 99999},
		{Qty: -3, UnitPrice: 100},
		{Qty: 1, UnitPrice: 5500},
	}
	require.EqualValues(t, 14500, pricing.SubtotalOf(items))
}
