// Package ident assigns human-readable identifiers to inventory items and
// subscriptions.
//
// Two strategies coexist: items get a category prefix, the creation date and
// a short random suffix; subscriptions get a zero-padded sequence number drawn
// from a persisted counter.
package ident

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
)

// Generator produces an identifier for the given scope (a category tag for
// items, ignored by sequential strategies).
type Generator interface {
	Generate(scope string) (string, error)
}

// FallbackPrefix is used for categories without a registered prefix.
const FallbackPrefix = "XX"

// SuffixAlphabet is the alphabet random suffixes are drawn from.
const SuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// SuffixLength is the number of random characters in an item id.
const SuffixLength = 4

var categoryPrefixes = map[model.Category]string{
	model.CategoryAnimals:  "AN",
	model.CategoryPantry:   "PT",
	model.CategoryHabitats: "HB",
	model.CategoryDen:      "DN",
}

// Prefix returns the id prefix for a category, or FallbackPrefix.
func Prefix(category model.Category) string {
	if p, ok := categoryPrefixes[category]; ok {
		return p
	}
	return FallbackPrefix
}

// CategoryOf reports the category whose prefix starts id.
func CategoryOf(id string) (model.Category, bool) {
	for c, p := range categoryPrefixes {
		if strings.HasPrefix(id, p+"-") {
			return c, true
		}
	}
	return "", false
}

// RandomSuffix generates ids of the form PREFIX-YYYY-MM-DD-XXXX.
// No collision check is made here; the inventory store rejects duplicates.
type RandomSuffix struct {
	Now    func() time.Time
	Random io.Reader
}

// NewRandomSuffix returns a generator using the wall clock and crypto/rand.
func NewRandomSuffix() *RandomSuffix {
	return &RandomSuffix{Now: time.Now, Random: rand.Reader}
}

// Generate implements Generator.
func (g *RandomSuffix) Generate(category string) (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	r := rand.Reader
	if g.Random != nil {
		r = g.Random
	}

	suffix := make([]byte, SuffixLength)
	base := big.NewInt(int64(len(SuffixAlphabet)))
	for i := range suffix {
		n, err := rand.Int(r, base)
		if err != nil {
			return "", fmt.Errorf("drawing id suffix: %w", err)
		}
		suffix[i] = SuffixAlphabet[n.Int64()]
	}

	return fmt.Sprintf("%s-%s-%s", Prefix(model.Category(category)), now().Format(model.DateLayout), suffix), nil
}

// Counter hands out monotonically increasing sequence numbers.
type Counter interface {
	Next() (int, error)
}

// Sequential generates ids of the form PREFIX-NNNN from a Counter.
type Sequential struct {
	Prefix  string
	Width   int
	Counter Counter
}

// Format renders sequence number n with the configured prefix and padding.
func (g *Sequential) Format(n int) string {
	return fmt.Sprintf("%s-%0*d", g.Prefix, g.Width, n)
}

// Generate implements Generator. The scope is ignored.
func (g *Sequential) Generate(string) (string, error) {
	n, err := g.Counter.Next()
	if err != nil {
		return "", fmt.Errorf("advancing %s counter: %w", g.Prefix, err)
	}
	return g.Format(n), nil
}
