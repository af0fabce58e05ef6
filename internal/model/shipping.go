package model

// Classification is the outcome of a shipping-safety check.
type Classification string

// Safety classifications.
const (
	ClassificationSafe       Classification = "SAFE"
	ClassificationRestricted Classification = "RESTRICTED"
	ClassificationDenied     Classification = "DENIED"
)

// SafetyResult explains whether a live-animal shipment may proceed.
type SafetyResult struct {
	Destination    string         `json:"destination"`
	Temperature    float64        `json:"temperature_f"`
	Classification Classification `json:"classification"`
	Reason         string         `json:"reason"`
}

// Allowed reports whether the shipment may leave, possibly held for pickup.
func (r SafetyResult) Allowed() bool {
	return r.Classification != ClassificationDenied
}

// HoldForPickup reports whether the carrier must hold the parcel at the hub.
func (r SafetyResult) HoldForPickup() bool {
	return r.Classification == ClassificationRestricted
}
