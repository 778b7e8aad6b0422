package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/angelmondragon/posterminal/pkg/logger"
)

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, ev Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func newTestConsumer(pub publisher) *Consumer {
	return &Consumer{bus: pub, logg: logger.Nop()}
}

func TestConsumerPublishesProductEvents(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestConsumer(pub)

	body := []byte(`{"id":"p1","code":"STL-1","name":"Steel bolt","price":"12.50","quantity":4,"pricingTiers":{"tier1":{"discountPercent":"10"}}}`)
	res := c.process(context.Background(), "m1", map[string]string{"event_type": "product:updated"}, body)
	if res.nack {
		t.Fatalf("expected ack")
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Type != enums.CatalogEventProductUpdated || ev.ProductID != "p1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Product.Price.String() != "12.5" || !ev.Product.Tiers.Has(enums.PricingTier1) {
		t.Fatalf("product not decoded: %+v", ev.Product)
	}
}

func TestConsumerPublishesDelete(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestConsumer(pub)

	res := c.process(context.Background(), "m2", map[string]string{"event_type": "product:deleted"}, []byte(`{"id":"p9"}`))
	if res.nack || len(pub.events) != 1 || pub.events[0].ProductID != "p9" {
		t.Fatalf("expected delete event, got %+v nack=%v", pub.events, res.nack)
	}
}

func TestConsumerAcksMalformedMessages(t *testing.T) {
	cases := map[string]struct {
		eventType string
		body      string
	}{
		"unknown type":   {eventType: "store:created", body: `{"id":"x"}`},
		"bad json":       {eventType: "product:created", body: `{`},
		"missing id":     {eventType: "product:created", body: `{"name":"x"}`},
		"delete no id":   {eventType: "product:deleted", body: `{}`},
		"missing header": {eventType: "", body: `{"id":"x"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pub := &recordingPublisher{}
			c := newTestConsumer(pub)
			res := c.process(context.Background(), "m", map[string]string{"event_type": tc.eventType}, []byte(tc.body))
			if res.nack {
				t.Fatalf("expected malformed message to be acked")
			}
			if len(pub.events) != 0 {
				t.Fatalf("expected nothing published")
			}
		})
	}
}

func TestConsumerNacksWhenPublishFails(t *testing.T) {
	for _, err := range []error{ErrBusClosed, errors.New("boom")} {
		c := newTestConsumer(&recordingPublisher{err: err})
		res := c.process(context.Background(), "m", map[string]string{"event_type": "product:deleted"}, []byte(`{"id":"p"}`))
		if !res.nack {
			t.Fatalf("expected nack for %v", err)
		}
	}
}
