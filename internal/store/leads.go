package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/jsonfile"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
)

// Leads is the append-only log of storefront contact requests.
type Leads struct {
	path  string
	leads []model.Lead
	now   func() time.Time
}

// OpenLeads loads the lead log at path. now may be nil.
func OpenLeads(path string, now func() time.Time) (*Leads, error) {
	if now == nil {
		now = time.Now
	}
	l := &Leads{path: path, now: now}

	var leads []model.Lead
	_, err := jsonfile.Load(path, &leads)
	if errors.Is(err, jsonfile.ErrMalformed) {
		slog.Warn("lead log is malformed, starting empty", "path", path, "error", err)
		leads = nil
	} else if err != nil {
		return nil, fmt.Errorf("loading leads: %w", err)
	}
	l.leads = leads
	return l, nil
}

// Append records a new lead with status NEW.
func (l *Leads) Append(name, email, message string) (model.Lead, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return model.Lead{}, fmt.Errorf("%w: name and email required", ErrInvalidArgument)
	}
	if !strings.Contains(email, "@") {
		return model.Lead{}, fmt.Errorf("%w: %q is not an email address", ErrInvalidArgument, email)
	}

	lead := model.Lead{
		Timestamp: l.now().Format(time.RFC3339),
		Name:      name,
		Email:     email,
		Message:   message,
		Status:    model.LeadStatusNew,
	}

	next := append(append([]model.Lead(nil), l.leads...), lead)
	if err := jsonfile.Save(l.path, next); err != nil {
		return model.Lead{}, fmt.Errorf("saving leads: %w", err)
	}
	l.leads = next
	return lead, nil
}

// List returns every lead in arrival order.
func (l *Leads) List() []model.Lead {
	return append([]model.Lead{}, l.leads...)
}
