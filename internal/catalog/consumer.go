package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/types"
)

type publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Consumer turns catalog push messages into Bus events.
type Consumer struct {
	bus          publisher
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer builds a catalog push consumer.
func NewConsumer(bus publisher, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if bus == nil {
		return nil, fmt.Errorf("catalog bus required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("catalog subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{bus: bus, subscription: subscription, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

type deletedPayload struct {
	ID string `json:"id"`
}

func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": attrs["event_type"],
	})

	ev, err := decodeEvent(attrs["event_type"], data)
	if err != nil {
		// redelivery cannot fix a malformed message
		c.logg.Error(logCtx, "dropping catalog message", err)
		return processResult{}
	}

	if err := c.bus.Publish(ctx, ev); err != nil {
		if errors.Is(err, ErrBusClosed) {
			c.logg.Warn(logCtx, "catalog bus closed; message will be redelivered")
		} else {
			c.logg.Error(logCtx, "catalog event publish failed", err)
		}
		return processResult{nack: true}
	}
	return processResult{}
}

func decodeEvent(eventType string, data []byte) (Event, error) {
	typ, err := enums.ParseCatalogEventType(eventType)
	if err != nil {
		return Event{}, err
	}
	switch typ {
	case enums.CatalogEventProductDeleted:
		var payload deletedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Event{}, fmt.Errorf("decode deleted payload: %w", err)
		}
		if payload.ID == "" {
			return Event{}, errors.New("deleted payload missing id")
		}
		return Deleted(payload.ID), nil
	default:
		var product types.Product
		if err := json.Unmarshal(data, &product); err != nil {
			return Event{}, fmt.Errorf("decode product payload: %w", err)
		}
		if product.ID == "" {
			return Event{}, errors.New("product payload missing id")
		}
		return Event{Type: typ, Product: product, ProductID: product.ID}, nil
	}
}
