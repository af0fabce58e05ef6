package model

import (
	"encoding/json"
	"strings"
)

// Category partitions inventory items.
type Category string

// Categories.
const (
	CategoryAnimals  Category = "animals"
	CategoryPantry   Category = "pantry"
	CategoryHabitats Category = "habitats"
	CategoryDen      Category = "den"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryAnimals, CategoryPantry, CategoryHabitats, CategoryDen}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAnimals, CategoryPantry, CategoryHabitats, CategoryDen:
		return true
	}
	return false
}

// ItemStatus is the lifecycle state of an inventory item.
type ItemStatus string

// Item statuses.
const (
	ItemStatusAvailable ItemStatus = "AVAILABLE"
	ItemStatusReserved  ItemStatus = "RESERVED"
	ItemStatusSold      ItemStatus = "SOLD"
)

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusAvailable, ItemStatusReserved, ItemStatusSold:
		return true
	}
	return false
}

// CanTransition reports whether a generic update may move an item from s to next.
// SOLD is terminal; leaving it requires an explicit reinstatement.
func (s ItemStatus) CanTransition(next ItemStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case ItemStatusAvailable:
		return next == ItemStatusReserved || next == ItemStatusSold
	case ItemStatusReserved:
		return next == ItemStatusAvailable || next == ItemStatusSold
	}
	return false
}

// UnmarshalText accepts the lowercase values written by older tooling.
func (s *ItemStatus) UnmarshalText(b []byte) error {
	*s = ItemStatus(strings.ToUpper(strings.TrimSpace(string(b))))
	return nil
}

// FeedingEntry is one meal in an animal's feeding log.
type FeedingEntry struct {
	Date     string `json:"date"`
	FoodType string `json:"food_type"`
}

// RecentFeedingsShown is how many feeding entries the storefront displays.
const RecentFeedingsShown = 3

// Item is a single inventory record.
type Item struct {
	ID       string     `json:"id"`
	Category Category   `json:"category"`
	Name     string     `json:"name"`
	Variant  string     `json:"variant"`
	Price    float64    `json:"price"`
	Quantity int        `json:"quantity"`
	Image    string     `json:"image"`
	Status   ItemStatus `json:"status"`

	// Only meaningful for animals; omitted from JSON otherwise.
	VerifiedFeeder bool           `json:"verified_feeder"`
	FeedingLog     []FeedingEntry `json:"feeding_log"`
}

// RecentFeedings returns up to n of the newest feeding entries, newest last.
func (i Item) RecentFeedings(n int) []FeedingEntry {
	if n <= 0 || len(i.FeedingLog) == 0 {
		return nil
	}
	if len(i.FeedingLog) <= n {
		return i.FeedingLog
	}
	return i.FeedingLog[len(i.FeedingLog)-n:]
}

// Clone returns a copy that shares no memory with i.
func (i Item) Clone() Item {
	if i.FeedingLog != nil {
		i.FeedingLog = append([]FeedingEntry(nil), i.FeedingLog...)
	}
	return i
}

type itemJSON struct {
	ID       string     `json:"id"`
	Category Category   `json:"category"`
	Name     string     `json:"name"`
	Variant  string     `json:"variant"`
	Price    float64    `json:"price"`
	Quantity int        `json:"quantity"`
	Image    string     `json:"image"`
	Status   ItemStatus `json:"status"`

	VerifiedFeeder *bool           `json:"verified_feeder,omitempty"`
	FeedingLog     *[]FeedingEntry `json:"feeding_log,omitempty"`
}

// MarshalJSON writes the animal-only fields only for animals.
func (i Item) MarshalJSON() ([]byte, error) {
	out := itemJSON{
		ID:       i.ID,
		Category: i.Category,
		Name:     i.Name,
		Variant:  i.Variant,
		Price:    i.Price,
		Quantity: i.Quantity,
		Image:    i.Image,
		Status:   i.Status,
	}
	if i.Category == CategoryAnimals {
		verified := i.VerifiedFeeder
		log := i.FeedingLog
		if log == nil {
			log = []FeedingEntry{}
		}
		out.VerifiedFeeder = &verified
		out.FeedingLog = &log
	}
	return json.Marshal(out)
}

// UnmarshalJSON fills defaults for fields missing from older records.
func (i *Item) UnmarshalJSON(b []byte) error {
	var in itemJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*i = Item{
		ID:       in.ID,
		Category: in.Category,
		Name:     in.Name,
		Variant:  in.Variant,
		Price:    in.Price,
		Quantity: in.Quantity,
		Image:    in.Image,
		Status:   in.Status,
	}
	if i.Status == "" {
		i.Status = ItemStatusAvailable
	}
	if in.VerifiedFeeder != nil {
		i.VerifiedFeeder = *in.VerifiedFeeder
	}
	if in.FeedingLog != nil && len(*in.FeedingLog) > 0 {
		i.FeedingLog = *in.FeedingLog
	}
	return nil
}
