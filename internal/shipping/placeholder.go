package shipping

import (
	"context"
	"strings"
)

// PlaceholderProvider stands in for a weather service. It keys a fixed
// reading off the first digit of a ZIP code.
type PlaceholderProvider struct{}

// Lookup implements Provider.
func (PlaceholderProvider) Lookup(_ context.Context, destination string) (float64, error) {
	zip := strings.TrimSpace(destination)
	switch {
	case strings.HasPrefix(zip, "9"): // West coast
		return 75, nil
	case strings.HasPrefix(zip, "0"): // Northeast in winter
		return 25, nil
	case strings.HasPrefix(zip, "3"): // Southeast
		return 95, nil
	}
	return 65, nil
}
