package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/milsabores/backend-pasteleria/internal/common"
	"github.com/milsabores/backend-pasteleria/internal/events"
	"github.com/milsabores/backend-pasteleria/internal/store"
)

type stubStore struct {
	appended []store.Event
}

func (s *stubStore) AppendEvent(_ context.Context, ev store.Event) error {
	s.appended = append(s.appended, ev)
	return nil
}

type captureNotifier struct {
	events []store.Event
}

func (c *captureNotifier) Notify(_ context.Context, event store.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	st := &stubStore{}
	notifier := &captureNotifier{}
	fixed := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	bus := events.Bus{
		Store:     st,
		Notifiers: []events.Notifier{notifier},
		Now:       func() time.Time { return fixed },
	}

	payload := map[string]any{"number": "MS-1050"}
	event, err := bus.Emit(context.Background(), events.TopicOrderCreated, "order-1", payload)
	require.NoError(t, err)
	require.Len(t, st.appended, 1)
	require.Equal(t, events.TopicOrderCreated, st.appended[0].Topic)
	require.Equal(t, "order-1", st.appended[0].AggregateID)
	require.Equal(t, fixed, st.appended[0].OccurredAt)
	require.JSONEq(t, `{"number":"MS-1050"}`, string(st.appended[0].Payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "MS-1050", decoded["number"])
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "  ", "order-1", nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), "order.deleted", "order-1", nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "", nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "order-1", "not json")
	require.Error(t, err)
}

func TestEmitNilPayloadDefaultsToEmptyObject(t *testing.T) {
	st := &stubStore{}
	bus := events.Bus{Store: st}

	event, err := bus.Emit(context.Background(), events.TopicUserRegistered, "user-1", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(event.Payload))
}

func TestEmailNotifierSendsOrderConfirmation(t *testing.T) {
	sender := &common.InMemoryEmail{}
	notifier := events.EmailNotifier{Sender: sender}

	payload, err := json.Marshal(map[string]any{
		"number": "MS-1043",
		"email":  "cliente@milsabores.cl",
		"total":  int64(42500),
	})
	require.NoError(t, err)

	err = notifier.Notify(context.Background(), store.Event{
		Topic:   events.TopicOrderCreated,
		Payload: payload,
	})
	require.NoError(t, err)
	require.Len(t, sender.Outbox, 1)
	require.Equal(t, "cliente@milsabores.cl", sender.Outbox[0].To)
	require.Contains(t, sender.Outbox[0].Subject, "MS-1043")

	err = notifier.Notify(context.Background(), store.Event{Topic: events.TopicUserRegistered, Payload: []byte("{}")})
	require.NoError(t, err)
	require.Len(t, sender.Outbox, 1)
}
