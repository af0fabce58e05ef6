package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/ident"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/jsonfile"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
)

// SubscriptionIDPrefix and SubscriptionIDWidth shape ids like SUB-0001.
const (
	SubscriptionIDPrefix = "SUB"
	SubscriptionIDWidth  = 4
)

type counterDoc struct {
	Last int `json:"last"`
}

// Subscriptions schedules recurring shipments. Ids come from a monotonic
// counter persisted next to the collection, so deleting or editing records
// never causes an id to be handed out twice.
//
// Subscriptions is not safe for concurrent use; callers serialize access.
type Subscriptions struct {
	path        string
	counterPath string
	subs        []model.Subscription
	last        int
	ids         *ident.Sequential
	now         func() time.Time
}

// CounterPath returns the sidecar file holding the sequence counter for the
// collection at path.
func CounterPath(path string) string {
	return strings.TrimSuffix(path, ".json") + ".counter.json"
}

// OpenSubscriptions loads the collection at path. now may be nil.
func OpenSubscriptions(path string, now func() time.Time) (*Subscriptions, error) {
	if now == nil {
		now = time.Now
	}
	s := &Subscriptions{path: path, counterPath: CounterPath(path), now: now}
	s.ids = &ident.Sequential{Prefix: SubscriptionIDPrefix, Width: SubscriptionIDWidth, Counter: subscriptionCounter{s}}

	var subs []model.Subscription
	_, err := jsonfile.Load(path, &subs)
	if errors.Is(err, jsonfile.ErrMalformed) {
		slog.Warn("subscriptions file is malformed, starting empty", "path", path, "error", err)
		subs = nil
	} else if err != nil {
		return nil, fmt.Errorf("loading subscriptions: %w", err)
	}
	s.subs = subs

	var counter counterDoc
	_, err = jsonfile.Load(s.counterPath, &counter)
	if errors.Is(err, jsonfile.ErrMalformed) {
		slog.Warn("subscription counter is malformed, reseeding from records", "path", s.counterPath, "error", err)
	} else if err != nil {
		return nil, fmt.Errorf("loading subscription counter: %w", err)
	}
	s.last = max(counter.Last, highestSequence(subs))

	return s, nil
}

// List returns every subscription in creation order.
func (s *Subscriptions) List() []model.Subscription {
	return append([]model.Subscription{}, s.subs...)
}

// Get returns the subscription with the given id.
func (s *Subscriptions) Get(subID string) (model.Subscription, bool) {
	i := s.indexOf(subID)
	if i < 0 {
		return model.Subscription{}, false
	}
	return s.subs[i], true
}

// Create registers a new ACTIVE subscription whose first shipment is
// frequencyWeeks weeks from now.
func (s *Subscriptions) Create(userID, item string, frequencyWeeks int) (model.Subscription, error) {
	if frequencyWeeks <= 0 {
		return model.Subscription{}, fmt.Errorf("%w: frequency must be a positive number of weeks, got %d", ErrInvalidArgument, frequencyWeeks)
	}
	if strings.TrimSpace(item) == "" {
		return model.Subscription{}, fmt.Errorf("%w: subscription item required", ErrInvalidArgument)
	}

	id, err := s.ids.Generate("")
	if err != nil {
		return model.Subscription{}, err
	}

	sub := model.Subscription{
		ID:             id,
		UserID:         userID,
		Item:           item,
		FrequencyWeeks: frequencyWeeks,
		NextShipDate:   addWeeks(s.now(), frequencyWeeks).Format(model.DateLayout),
		Status:         model.SubscriptionActive,
	}

	next := append(s.snapshot(), sub)
	if err := s.commit(next); err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

// Advance moves an ACTIVE subscription's next ship date forward by one
// cadence, counted from the current next ship date rather than from now.
func (s *Subscriptions) Advance(subID string) (model.Subscription, error) {
	i := s.indexOf(subID)
	if i < 0 {
		return model.Subscription{}, fmt.Errorf("%w: subscription %s", ErrNotFound, subID)
	}
	sub := s.subs[i]
	if sub.Status != model.SubscriptionActive {
		return model.Subscription{}, fmt.Errorf("%w: subscription %s is %s", ErrInvalidTransition, subID, sub.Status)
	}

	current, err := sub.NextShip()
	if err != nil {
		return model.Subscription{}, fmt.Errorf("%w: subscription %s has unreadable next ship date %q", ErrInvalidArgument, subID, sub.NextShipDate)
	}
	sub.NextShipDate = addWeeks(current, sub.FrequencyWeeks).Format(model.DateLayout)

	next := s.snapshot()
	next[i] = sub
	if err := s.commit(next); err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

// SetStatus pauses, resumes or cancels a subscription.
func (s *Subscriptions) SetStatus(subID string, status model.SubscriptionStatus) (model.Subscription, error) {
	if !status.Valid() {
		return model.Subscription{}, fmt.Errorf("%w: unknown subscription status %q", ErrInvalidArgument, status)
	}
	i := s.indexOf(subID)
	if i < 0 {
		return model.Subscription{}, fmt.Errorf("%w: subscription %s", ErrNotFound, subID)
	}

	next := s.snapshot()
	next[i].Status = status
	if err := s.commit(next); err != nil {
		return model.Subscription{}, err
	}
	return next[i], nil
}

// Due returns the ACTIVE subscriptions whose next ship date is on or before
// asOf, in creation order.
func (s *Subscriptions) Due(asOf time.Time) []model.Subscription {
	cutoff := asOf.Format(model.DateLayout)

	var out []model.Subscription
	for _, sub := range s.subs {
		if sub.Status != model.SubscriptionActive {
			continue
		}
		if _, err := sub.NextShip(); err != nil {
			slog.Warn("skipping subscription with unreadable ship date", "sub_id", sub.ID, "next_ship_date", sub.NextShipDate)
			continue
		}
		// ISO dates compare correctly as strings.
		if sub.NextShipDate <= cutoff {
			out = append(out, sub)
		}
	}
	return out
}

func (s *Subscriptions) indexOf(subID string) int {
	for i := range s.subs {
		if s.subs[i].ID == subID {
			return i
		}
	}
	return -1
}

func (s *Subscriptions) snapshot() []model.Subscription {
	return append([]model.Subscription(nil), s.subs...)
}

func (s *Subscriptions) commit(next []model.Subscription) error {
	if next == nil {
		next = []model.Subscription{}
	}
	if err := jsonfile.Save(s.path, next); err != nil {
		return fmt.Errorf("saving subscriptions: %w", err)
	}
	s.subs = next
	return nil
}

// subscriptionCounter persists the sequence before any record uses it, so a
// crash can skip a number but never reuse one.
type subscriptionCounter struct {
	s *Subscriptions
}

func (c subscriptionCounter) Next() (int, error) {
	n := c.s.last + 1
	if err := jsonfile.Save(c.s.counterPath, counterDoc{Last: n}); err != nil {
		return 0, fmt.Errorf("saving subscription counter: %w", err)
	}
	c.s.last = n
	return n, nil
}

func highestSequence(subs []model.Subscription) int {
	highest := 0
	for _, sub := range subs {
		var n int
		if _, err := fmt.Sscanf(sub.ID, SubscriptionIDPrefix+"-%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

func addWeeks(t time.Time, weeks int) time.Time {
	return t.AddDate(0, 0, 7*weeks)
}
