package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersCreatedTotal counts checkout outcomes.
	OrdersCreatedTotal *prometheus.CounterVec
	// CouponsAppliedTotal counts coupon application attempts by outcome.
	CouponsAppliedTotal *prometheus.CounterVec
	// SeniorDiscountTotal counts quotes where the senior discount applied.
	SeniorDiscountTotal prometheus.Counter
	// RecommendationsServed records how many products each recommendation
	// response carried.
	RecommendationsServed prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of checkout attempts by result.",
		}, []string{"delivery_method", "result"})
		CouponsAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupons_applied_total",
			Help:      "Count of coupon application attempts by result.",
		}, []string{"result"})
		SeniorDiscountTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "senior_discount_total",
			Help:      "Number of priced quotes that included the senior discount.",
		})
		RecommendationsServed = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendations_served",
			Help:      "Products returned per recommendation response.",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
		})

		mustRegisterCollector(reg, OrdersCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, CouponsAppliedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponsAppliedTotal = v
			}
		})
		mustRegisterCollector(reg, SeniorDiscountTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SeniorDiscountTotal = v
			}
		})
		mustRegisterCollector(reg, RecommendationsServed, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				RecommendationsServed = v
			}
		})
	})
}

// IncOrderCreated counts a checkout attempt. Safe to call before metrics are
// registered, which keeps unit tests free of registry setup.
func IncOrderCreated(deliveryMethod, result string) {
	if OrdersCreatedTotal != nil {
		OrdersCreatedTotal.WithLabelValues(deliveryMethod, result).Inc()
	}
}

// IncCouponApplied counts a coupon application attempt by result.
func IncCouponApplied(result string) {
	if CouponsAppliedTotal != nil {
		CouponsAppliedTotal.WithLabelValues(result).Inc()
	}
}

// IncSeniorDiscount counts a priced quote that carried the senior discount.
func IncSeniorDiscount() {
	if SeniorDiscountTotal != nil {
		SeniorDiscountTotal.Inc()
	}
}

// ObserveRecommendations records how many products a recommendation response carried.
func ObserveRecommendations(count int) {
	if RecommendationsServed != nil {
		RecommendationsServed.Observe(float64(count))
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
