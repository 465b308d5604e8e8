package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderCreated   = "order.created"
	TopicUserRegistered = "user.registered"
	TopicCouponApplied  = "coupon.applied"
)

// KnownTopic reports whether the bus accepts events on the given topic.
func KnownTopic(topic string) bool {
	switch topic {
	case TopicOrderCreated, TopicUserRegistered, TopicCouponApplied:
		return true
	}
	return false
}
