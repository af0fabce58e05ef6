// Package shipping decides whether live animals can be shipped to a
// destination given the temperature there.
package shipping

import (
	"context"
	"fmt"
	"math"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
)

// Temperature thresholds in degrees Fahrenheit.
const (
	HardMin = 30.0
	SafeMin = 40.0
	SafeMax = 90.0
)

// Evaluate classifies a temperature reading for a destination:
//
//	t < HardMin or t > SafeMax   DENIED (also NaN)
//	HardMin <= t < SafeMin       RESTRICTED (hold for pickup)
//	SafeMin <= t <= SafeMax      SAFE
//
// Evaluate is pure and safe for concurrent use.
func Evaluate(destination string, temperature float64) model.SafetyResult {
	res := model.SafetyResult{Destination: destination, Temperature: temperature}

	switch {
	case math.IsNaN(temperature) || temperature < HardMin || temperature > SafeMax:
		res.Classification = model.ClassificationDenied
		res.Reason = fmt.Sprintf("Temperature (%sF) is unsafe for live animal transport.", formatTemp(temperature))
	case temperature < SafeMin:
		res.Classification = model.ClassificationRestricted
		res.Reason = fmt.Sprintf("Temperature (%sF) requires 'Hold for Pickup' at the carrier hub.", formatTemp(temperature))
	default:
		res.Classification = model.ClassificationSafe
		res.Reason = "Conditions are optimal for shipping."
	}
	return res
}

// Provider looks up the current temperature at a destination.
type Provider interface {
	Lookup(ctx context.Context, destination string) (float64, error)
}

// Check reads the destination temperature from p and evaluates it.
func Check(ctx context.Context, p Provider, destination string) (model.SafetyResult, error) {
	temp, err := p.Lookup(ctx, destination)
	if err != nil {
		return model.SafetyResult{}, fmt.Errorf("looking up temperature for %s: %w", destination, err)
	}
	return Evaluate(destination, temp), nil
}

func formatTemp(t float64) string {
	return fmt.Sprintf("%g", t)
}
