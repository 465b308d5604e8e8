package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/milsabores/backend-pasteleria/internal/common"
	"github.com/milsabores/backend-pasteleria/internal/store"
)

// LogNotifier writes emitted events to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event store.Event) error {
	n.Logger.Info().
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID).
		Time("occurred_at", event.OccurredAt).
		Msg("domain event emitted")
	return nil
}

// EmailNotifier sends an order confirmation email when an order is created.
type EmailNotifier struct {
	Sender common.EmailSender
}

type orderCreatedPayload struct {
	Number string `json:"number"`
	Email  string `json:"email"`
	Total  int64  `json:"total"`
}

// Notify implements Notifier. Topics other than order.created are ignored.
func (n EmailNotifier) Notify(_ context.Context, event store.Event) error {
	if n.Sender == nil || event.Topic != TopicOrderCreated {
		return nil
	}
	var payload orderCreatedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode order payload: %w", err)
	}
	if payload.Email == "" {
		return nil
	}
	subject := fmt.Sprintf("Confirmación de pedido %s", payload.Number)
	body := fmt.Sprintf("<p>Tu pedido <strong>%s</strong> fue recibido. Total: $%d CLP.</p>", payload.Number, payload.Total)
	return n.Sender.Send(payload.Email, subject, body)
}
