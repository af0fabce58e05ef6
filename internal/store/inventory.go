package store

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/jsonfile"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
)

// Inventory is the authoritative, file-backed set of inventory items.
// Every mutation rewrites the whole collection before it becomes visible in
// memory, so a failed write leaves the previous state intact.
//
// Inventory is not safe for concurrent use; callers serialize access.
type Inventory struct {
	path  string
	items []model.Item

	// Now stamps feeding entries that arrive without a date.
	Now func() time.Time
}

// OpenInventory loads the collection at path. A missing file is an empty
// collection; a malformed one is logged and treated as empty.
func OpenInventory(path string) (*Inventory, error) {
	inv := &Inventory{path: path, Now: time.Now}

	var items []model.Item
	_, err := jsonfile.Load(path, &items)
	if errors.Is(err, jsonfile.ErrMalformed) {
		slog.Warn("inventory file is malformed, starting empty", "path", path, "error", err)
		items = nil
	} else if err != nil {
		return nil, fmt.Errorf("loading inventory: %w", err)
	}

	inv.items = items
	return inv, nil
}

// Path returns the backing file.
func (inv *Inventory) Path() string {
	return inv.path
}

// All returns every item in insertion order.
func (inv *Inventory) All() []model.Item {
	out := make([]model.Item, 0, len(inv.items))
	for _, it := range inv.items {
		out = append(out, it.Clone())
	}
	return out
}

// ByCategory returns the items of one category in insertion order.
func (inv *Inventory) ByCategory(category model.Category) []model.Item {
	var out []model.Item
	for _, it := range inv.items {
		if it.Category == category {
			out = append(out, it.Clone())
		}
	}
	return out
}

// Search returns items of a category whose name or variant contains term,
// ignoring case. An empty term matches everything in the category.
func (inv *Inventory) Search(category model.Category, term string) []model.Item {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return inv.ByCategory(category)
	}

	var out []model.Item
	for _, it := range inv.items {
		if it.Category != category {
			continue
		}
		if strings.Contains(strings.ToLower(it.Name), term) || strings.Contains(strings.ToLower(it.Variant), term) {
			out = append(out, it.Clone())
		}
	}
	return out
}

// Get returns the item with the given id.
func (inv *Inventory) Get(id string) (model.Item, bool) {
	i := inv.indexOf(id)
	if i < 0 {
		return model.Item{}, false
	}
	return inv.items[i].Clone(), true
}

// Add inserts a new item. An empty status becomes AVAILABLE.
func (inv *Inventory) Add(item model.Item) error {
	if item.Status == "" {
		item.Status = model.ItemStatusAvailable
	}
	if err := validateItem(item); err != nil {
		return err
	}
	if inv.indexOf(item.ID) >= 0 {
		return fmt.Errorf("%w: item %s already exists", ErrDuplicateIdentity, item.ID)
	}

	next := inv.snapshot()
	next = append(next, normalizeItem(item))
	if err := inv.commit(next); err != nil {
		return err
	}
	return nil
}

// Update replaces the item with the given id. The id and category cannot
// change, and the status must follow the lifecycle; leaving SOLD requires
// Reinstate.
func (inv *Inventory) Update(id string, item model.Item) error {
	i := inv.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	cur := inv.items[i]

	if item.ID == "" {
		item.ID = id
	}
	if item.ID != id {
		return fmt.Errorf("%w: item id is immutable (%s -> %s)", ErrInvalidArgument, id, item.ID)
	}
	if item.Category != cur.Category {
		return fmt.Errorf("%w: item category is immutable (%s -> %s)", ErrInvalidArgument, cur.Category, item.Category)
	}
	if item.Status == "" {
		item.Status = cur.Status
	}
	if err := validateItem(item); err != nil {
		return err
	}
	if !cur.Status.CanTransition(item.Status) {
		return fmt.Errorf("%w: %s -> %s for item %s", ErrInvalidTransition, cur.Status, item.Status, id)
	}

	next := inv.snapshot()
	next[i] = normalizeItem(item)
	return inv.commit(next)
}

// Delete removes the item with the given id.
func (inv *Inventory) Delete(id string) error {
	i := inv.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}

	next := inv.snapshot()
	next = append(next[:i], next[i+1:]...)
	return inv.commit(next)
}

// MarkSold sets the item's status to SOLD and leaves every other field alone.
func (inv *Inventory) MarkSold(id string) (model.Item, error) {
	return inv.setStatus(id, model.ItemStatusSold)
}

// Reinstate returns a SOLD item to AVAILABLE. It is the only way out of SOLD
// and needs a reason, which is logged.
func (inv *Inventory) Reinstate(id, reason string) (model.Item, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Item{}, fmt.Errorf("%w: reinstating %s requires a reason", ErrInvalidArgument, id)
	}

	i := inv.indexOf(id)
	if i < 0 {
		return model.Item{}, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	if inv.items[i].Status != model.ItemStatusSold {
		return model.Item{}, fmt.Errorf("%w: item %s is %s, not SOLD", ErrInvalidTransition, id, inv.items[i].Status)
	}

	item, err := inv.setStatus(id, model.ItemStatusAvailable)
	if err != nil {
		return model.Item{}, err
	}
	slog.Info("item reinstated", "id", id, "reason", reason)
	return item, nil
}

// AppendFeeding adds an entry to an animal's feeding log. Entries without a
// date are stamped with today's date.
func (inv *Inventory) AppendFeeding(id string, entry model.FeedingEntry) (model.Item, error) {
	i := inv.indexOf(id)
	if i < 0 {
		return model.Item{}, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	if inv.items[i].Category != model.CategoryAnimals {
		return model.Item{}, fmt.Errorf("%w: item %s is not an animal", ErrInvalidArgument, id)
	}

	entry.FoodType = strings.TrimSpace(entry.FoodType)
	if entry.FoodType == "" {
		return model.Item{}, fmt.Errorf("%w: food type required", ErrInvalidArgument)
	}
	if entry.Date == "" {
		entry.Date = inv.Now().Format(model.DateLayout)
	} else if _, err := time.Parse(model.DateLayout, entry.Date); err != nil {
		return model.Item{}, fmt.Errorf("%w: feeding date %q must be YYYY-MM-DD", ErrInvalidArgument, entry.Date)
	}

	next := inv.snapshot()
	updated := next[i].Clone()
	updated.FeedingLog = append(updated.FeedingLog, entry)
	next[i] = updated
	if err := inv.commit(next); err != nil {
		return model.Item{}, err
	}
	return updated.Clone(), nil
}

// CatalogJSON renders the full item set exactly as it is persisted. This is
// what gets published to the storefront.
func (inv *Inventory) CatalogJSON() ([]byte, error) {
	items := inv.items
	if items == nil {
		items = []model.Item{}
	}
	data, err := jsonfile.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	return data, nil
}

func (inv *Inventory) setStatus(id string, status model.ItemStatus) (model.Item, error) {
	i := inv.indexOf(id)
	if i < 0 {
		return model.Item{}, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}

	next := inv.snapshot()
	updated := next[i].Clone()
	updated.Status = status
	next[i] = updated
	if err := inv.commit(next); err != nil {
		return model.Item{}, err
	}
	return updated.Clone(), nil
}

func (inv *Inventory) indexOf(id string) int {
	for i := range inv.items {
		if inv.items[i].ID == id {
			return i
		}
	}
	return -1
}

// snapshot copies the item slice (not the items) so a mutation can be staged
// without touching the live collection.
func (inv *Inventory) snapshot() []model.Item {
	return append([]model.Item(nil), inv.items...)
}

// commit persists next and only then makes it the live collection.
func (inv *Inventory) commit(next []model.Item) error {
	if next == nil {
		next = []model.Item{}
	}
	if err := jsonfile.Save(inv.path, next); err != nil {
		return fmt.Errorf("saving inventory: %w", err)
	}
	inv.items = next
	return nil
}

func validateItem(item model.Item) error {
	switch {
	case strings.TrimSpace(item.ID) == "":
		return fmt.Errorf("%w: item id required", ErrInvalidArgument)
	case !item.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, item.Category)
	case strings.TrimSpace(item.Name) == "":
		return fmt.Errorf("%w: item name required", ErrInvalidArgument)
	case math.IsNaN(item.Price) || math.IsInf(item.Price, 0):
		return fmt.Errorf("%w: price must be a finite number", ErrInvalidArgument)
	case item.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidArgument)
	case item.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidArgument)
	case !item.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, item.Status)
	}
	return nil
}

// normalizeItem drops animal-only fields from other categories so the
// in-memory item matches what a reload from disk would produce.
func normalizeItem(item model.Item) model.Item {
	item = item.Clone()
	if item.Category != model.CategoryAnimals {
		item.VerifiedFeeder = false
		item.FeedingLog = nil
	}
	if len(item.FeedingLog) == 0 {
		item.FeedingLog = nil
	}
	return item
}
