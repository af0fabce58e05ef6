package messages

import (
	"time"

	"github.com/google/uuid"
)

// TopicItemSold carries one message per completed live-animal sale.
const TopicItemSold = "inventory.item_sold"

type ItemSold struct {
	EventID  uuid.UUID `json:"event_id"`
	ItemID   string    `json:"item_id"`
	Category string    `json:"category"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	SoldAt   time.Time `json:"sold_at"`

	Destination    string  `json:"destination"`
	Temperature    float64 `json:"temperature_f"`
	Classification string  `json:"classification"`
	HoldForPickup  bool    `json:"hold_for_pickup"`

	SubscriptionID string `json:"subscription_id,omitempty"`
	NextShipDate   string `json:"next_ship_date,omitempty"`
}
