package scoring

import (
	"errors"
	"fmt"
	"math"
)

// WeightTolerance bounds the acceptable drift of the weight sum from 1.0.
const WeightTolerance = 1e-6

// DefaultCategoryMargin is how far one sub-score must exceed the other
// before a match stops being labelled hybrid.
const DefaultCategoryMargin = 0.15

// ErrInvalidWeights marks a weight configuration that does not sum to 1.0.
// This is rejected at startup and is not recoverable at runtime.
var ErrInvalidWeights = errors.New("invalid score weight configuration")

// Weights distributes the overall score across the three match dimensions.
// The production split is 0.4 skills / 0.4 personality / 0.2 trade-offs;
// any reweighting must keep the sum at 1.0.
type Weights struct {
	Skills      float64 `mapstructure:"skills"`
	Personality float64 `mapstructure:"personality"`
	TradeOffs   float64 `mapstructure:"trade-offs"`
}

// DefaultWeights returns the production weight split.
func DefaultWeights() Weights {
	return Weights{Skills: 0.4, Personality: 0.4, TradeOffs: 0.2}
}

// Validate checks every weight is in [0,1] and the sum is 1.0 within
// WeightTolerance.
func (w Weights) Validate() error {
	for name, value := range map[string]float64{
		"skills":      w.Skills,
		"personality": w.Personality,
		"trade-offs":  w.TradeOffs,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%w: %s weight %v is outside [0,1]", ErrInvalidWeights, name, value)
		}
	}

	sum := w.Skills + w.Personality + w.TradeOffs
	if math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1.0", ErrInvalidWeights, sum)
	}

	return nil
}

// Overall combines the three sub-scores into the weighted composite.
func (w Weights) Overall(skills, personality, tradeOffs float64) float64 {
	return w.Skills*skills + w.Personality*personality + w.TradeOffs*tradeOffs
}
