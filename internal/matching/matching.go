package matching

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/hiregate/internal/index"
	"github.com/spigell/hiregate/internal/ledger"
	"github.com/spigell/hiregate/internal/profile"
	"github.com/spigell/hiregate/internal/scoring"
)

// Step represents a single matching step applied to the candidate set.
type Step interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, c *profile.Candidates) (*profile.Candidates, Stats, error)
}

// Deps aggregates dependencies shared across all matching steps.
type Deps struct {
	Role     *profile.Role
	Selector *index.Selector
	Scorer   *scoring.Scorer
	Ledger   *ledger.Ledger
	Logger   *zap.Logger
}

// Stats describes the result of executing a matching step.
type Stats struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the steps.
type Config struct {
	PoolSize    int
	MinOverall  float64
	Concurrency int
}

// Status represents runtime information about a step.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by steps that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DisableByName marks a step with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Step, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied steps sequentially, returning the surviving
// candidate set, matches keyed by candidate id, and the ids whose
// scoring failed and should be retried in a later round.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Step, c *profile.Candidates) (*profile.Candidates, map[string]*profile.Match, []string, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	matches := make(map[string]*profile.Match)
	var retry []string
	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Info("step disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, c)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("matching step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		c = next

		if collector, ok := step.(interface {
			Matches() map[string]*profile.Match
		}); ok {
			for id, match := range collector.Matches() {
				matches[id] = match
			}
		}

		if collector, ok := step.(interface {
			Retries() []string
		}); ok {
			retry = append(retry, collector.Retries()...)
		}
	}

	return c, matches, retry, nil
}

// Describe returns status entries for the provided steps.
func Describe(steps []Step) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
