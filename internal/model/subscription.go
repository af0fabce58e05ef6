package model

import "time"

// DateLayout is the ISO calendar-date format used for ship dates.
const DateLayout = "2006-01-02"

// SubscriptionStatus is the state of a recurring shipment.
type SubscriptionStatus string

// Subscription statuses.
const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionPaused    SubscriptionStatus = "PAUSED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionPaused, SubscriptionCancelled:
		return true
	}
	return false
}

// Subscription is a recurring-shipment agreement.
type Subscription struct {
	ID             string             `json:"sub_id"`
	UserID         string             `json:"user_id"`
	Item           string             `json:"item"`
	FrequencyWeeks int                `json:"frequency_weeks"`
	NextShipDate   string             `json:"next_ship_date"`
	Status         SubscriptionStatus `json:"status"`
}

// NextShip parses NextShipDate.
func (s Subscription) NextShip() (time.Time, error) {
	return time.Parse(DateLayout, s.NextShipDate)
}
