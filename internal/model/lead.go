package model

// LeadStatusNew is the status every captured lead starts with.
const LeadStatusNew = "NEW"

// Lead is a storefront contact request.
type Lead struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	Status    string `json:"status"`
}
