// Package fulfillment ties the shipping gate to the inventory and
// subscription stores. A live animal is only marked SOLD once the
// destination has been cleared for transport.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/broker/messages"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/shipping"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/store"
)

// ErrShipmentDenied is returned when the gate classifies the destination
// as DENIED. The returned Outcome still carries the safety result.
var ErrShipmentDenied = errors.New("shipment denied")

// EventPublisher receives sale events. *kafka.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Coordinator is not safe for concurrent use; it shares the stores'
// single-writer requirement.
type Coordinator struct {
	Inventory     *store.Inventory
	Subscriptions *store.Subscriptions
	Weather       shipping.Provider

	// Events is optional.
	Events EventPublisher
	Now    func() time.Time
}

// Request names the item to ship and where, optionally on behalf of a subscription.
type Request struct {
	ItemID         string
	Destination    string
	SubscriptionID string
}

// Outcome is the gate's verdict and the records as they stand after Ship.
type Outcome struct {
	Item          model.Item          `json:"item"`
	Safety        model.SafetyResult  `json:"safety"`
	Subscription  *model.Subscription `json:"subscription,omitempty"`
	HoldForPickup bool                `json:"hold_for_pickup"`
}

// Ship clears req.Destination with the shipping gate, marks the item SOLD
// and, for subscription orders, advances the subscription by one cadence.
// Nothing is written unless the gate approves.
func (c *Coordinator) Ship(ctx context.Context, req Request) (Outcome, error) {
	var out Outcome

	req.Destination = strings.TrimSpace(req.Destination)
	if req.Destination == "" {
		return out, fmt.Errorf("destination is required: %w", store.ErrInvalidArgument)
	}

	item, ok := c.Inventory.Get(req.ItemID)
	if !ok {
		return out, fmt.Errorf("item %s: %w", req.ItemID, store.ErrNotFound)
	}
	if item.Status == model.ItemStatusSold {
		return out, fmt.Errorf("item %s is already sold: %w", req.ItemID, store.ErrInvalidTransition)
	}

	if req.SubscriptionID != "" {
		if c.Subscriptions == nil {
			return out, fmt.Errorf("subscription %s: %w", req.SubscriptionID, store.ErrNotFound)
		}
		sub, ok := c.Subscriptions.Get(req.SubscriptionID)
		if !ok {
			return out, fmt.Errorf("subscription %s: %w", req.SubscriptionID, store.ErrNotFound)
		}
		if sub.Status != model.SubscriptionActive {
			return out, fmt.Errorf("subscription %s is %s: %w", sub.ID, sub.Status, store.ErrInvalidTransition)
		}
		if _, err := sub.NextShip(); err != nil {
			return out, fmt.Errorf("subscription %s has unreadable next ship date %q: %w", sub.ID, sub.NextShipDate, store.ErrInvalidArgument)
		}
	}

	safety, err := shipping.Check(ctx, c.Weather, req.Destination)
	if err != nil {
		return out, err
	}
	out.Safety = safety
	out.Item = item
	if !safety.Allowed() {
		slog.Warn("shipment denied", "item", item.ID, "destination", req.Destination, "temperature_f", safety.Temperature)
		return out, fmt.Errorf("%s to %s: %s: %w", item.ID, req.Destination, safety.Reason, ErrShipmentDenied)
	}
	out.HoldForPickup = safety.HoldForPickup()

	sold, err := c.Inventory.MarkSold(item.ID)
	if err != nil {
		return out, err
	}
	out.Item = sold

	if req.SubscriptionID != "" {
		sub, err := c.Subscriptions.Advance(req.SubscriptionID)
		if err != nil {
			if rerr := c.unsell(item); rerr != nil {
				return out, fmt.Errorf("item %s sold but advancing subscription failed: %w (restoring item: %v)", sold.ID, err, rerr)
			}
			out.Item = item
			return out, fmt.Errorf("advancing subscription %s: %w", req.SubscriptionID, err)
		}
		out.Subscription = &sub
	}

	slog.Info("item shipped",
		"item", sold.ID,
		"destination", req.Destination,
		"classification", safety.Classification,
		"hold_for_pickup", out.HoldForPickup,
	)
	c.publish(ctx, out)
	return out, nil
}

// unsell puts a just-sold item back to its status before the sale.
func (c *Coordinator) unsell(prev model.Item) error {
	if _, err := c.Inventory.Reinstate(prev.ID, "subscription could not be advanced"); err != nil {
		return err
	}
	if prev.Status == model.ItemStatusAvailable {
		return nil
	}
	return c.Inventory.Update(prev.ID, prev)
}

// publish emits the sale event. Failures are logged; the sale stands.
func (c *Coordinator) publish(ctx context.Context, out Outcome) {
	if c.Events == nil {
		return
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	ev := messages.ItemSold{
		EventID:        uuid.New(),
		ItemID:         out.Item.ID,
		Category:       string(out.Item.Category),
		Name:           out.Item.Name,
		Price:          out.Item.Price,
		SoldAt:         now().UTC(),
		Destination:    out.Safety.Destination,
		Temperature:    out.Safety.Temperature,
		Classification: string(out.Safety.Classification),
		HoldForPickup:  out.HoldForPickup,
	}
	if out.Subscription != nil {
		ev.SubscriptionID = out.Subscription.ID
		ev.NextShipDate = out.Subscription.NextShipDate
	}

	value, err := json.Marshal(ev)
	if err != nil {
		slog.Error("encoding sale event", "item", out.Item.ID, "error", err)
		return
	}
	if err := c.Events.Publish(ctx, messages.TopicItemSold, []byte(out.Item.ID), value); err != nil {
		slog.Error("publishing sale event", "item", out.Item.ID, "error", err)
	}
}
