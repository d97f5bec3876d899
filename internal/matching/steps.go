package matching

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hiregate/internal/index"
	"github.com/spigell/hiregate/internal/profile"
)

const defaultConcurrency = 4

type screenedStep struct{}

// NewScreened creates a step that removes candidates whose intake never
// finished. Unscreened profiles have no vibe or preference data to score.
func NewScreened() Step {
	return &screenedStep{}
}

func (s *screenedStep) Name() string { return "screened_only" }

func (s *screenedStep) Disable(string) {}

func (s *screenedStep) IsEnabled() bool { return true }

func (s *screenedStep) Validate(*Config) error { return nil }

func (s *screenedStep) Apply(_ context.Context, deps Deps, c *profile.Candidates) (*profile.Candidates, Stats, error) {
	initial := c.Len()
	excluded := c.DropUnscreened()
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding candidates that did not finish intake",
			zap.Strings("excluded_candidates", excluded),
			zap.Int("candidates_left", c.Len()),
		)
	}

	return c, Stats{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

type poolStep struct {
	disabled bool
	reason   string
	size     int
}

// NewPool creates the similarity pre-selection step. It narrows the set
// to the top-K nearest candidates before the expensive scoring pass.
// Disabling it only costs oracle calls, never correctness.
func NewPool() Step {
	return &poolStep{}
}

func (s *poolStep) Name() string { return "pool" }

func (s *poolStep) Disable(reason string) {
	s.disabled = true
	s.reason = reason
}

func (s *poolStep) IsEnabled() bool { return !s.disabled }

func (s *poolStep) Validate(cfg *Config) error {
	s.size = 0
	if cfg != nil {
		s.size = cfg.PoolSize
	}
	return nil
}

func (s *poolStep) Apply(ctx context.Context, deps Deps, c *profile.Candidates) (*profile.Candidates, Stats, error) {
	initial := c.Len()
	if initial == 0 {
		return c, Stats{}, index.ErrEmptyPool
	}

	if deps.Selector == nil {
		return c, Stats{}, fmt.Errorf("selector is required for pool selection")
	}
	if deps.Role == nil {
		return c, Stats{}, fmt.Errorf("role is required for pool selection")
	}

	entries, err := deps.Selector.Pool(ctx, deps.Role.ID, s.size)
	if err != nil {
		return c, Stats{}, fmt.Errorf("select pool: %w", err)
	}

	excluded := c.Keep(index.IDs(entries))
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding candidates outside the similarity pool",
			zap.Strings("excluded_candidates", excluded),
			zap.Int("candidates_left", c.Len()),
		)
	}

	return c, Stats{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (s *poolStep) Status() Status {
	details := map[string]string{}
	if s.size > 0 {
		details["pool_size"] = strconv.Itoa(s.size)
	}
	return Status{Name: s.Name(), Enabled: s.IsEnabled(), Reason: s.reason, Details: details}
}

type scorerStep struct {
	concurrency int
	matches     map[string]*profile.Match
	retries     []string
}

// NewScorer creates the scoring step. Each surviving candidate is
// scored against the role, successful matches land in the ledger, and
// pairs whose oracle calls failed are reported for a later retry
// instead of being recorded with zero scores.
func NewScorer() Step {
	return &scorerStep{}
}

func (s *scorerStep) Name() string { return "scorer" }

func (s *scorerStep) Disable(string) {}

func (s *scorerStep) IsEnabled() bool { return true }

func (s *scorerStep) Validate(cfg *Config) error {
	s.concurrency = defaultConcurrency
	if cfg != nil && cfg.Concurrency > 0 {
		s.concurrency = cfg.Concurrency
	}
	return nil
}

func (s *scorerStep) Apply(ctx context.Context, deps Deps, c *profile.Candidates) (*profile.Candidates, Stats, error) {
	if deps.Scorer == nil {
		return c, Stats{}, fmt.Errorf("scorer is required")
	}
	if deps.Ledger == nil {
		return c, Stats{}, fmt.Errorf("ledger is required")
	}

	initial := c.Len()

	var mu sync.Mutex
	s.matches = make(map[string]*profile.Match, initial)
	s.retries = nil

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, cand := range c.Items {
		cand := cand
		g.Go(func() error {
			match, err := deps.Scorer.Score(gctx, deps.Role, cand)
			if err != nil {
				if deps.Logger != nil {
					deps.Logger.Warn("scoring failed, candidate queued for retry",
						zap.String("candidate_id", cand.ID),
						zap.Error(err),
					)
				}
				mu.Lock()
				s.retries = append(s.retries, cand.ID)
				mu.Unlock()
				return nil
			}

			stored, err := deps.Ledger.Append(match)
			if err != nil {
				return fmt.Errorf("record match for %s: %w", cand.ID, err)
			}

			mu.Lock()
			s.matches[cand.ID] = stored
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return c, Stats{}, err
	}

	sort.Strings(s.retries)

	scored := make([]string, 0, len(s.matches))
	for id := range s.matches {
		scored = append(scored, id)
	}
	sort.Strings(scored)
	excluded := c.Keep(scored)

	if deps.Logger != nil {
		deps.Logger.Info("scoring completed",
			zap.Int("initial_candidates", initial),
			zap.Int("scored_candidates", len(s.matches)),
			zap.Int("retry_candidates", len(s.retries)),
		)
	}

	return c, Stats{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (s *scorerStep) Matches() map[string]*profile.Match {
	if s.matches == nil {
		return map[string]*profile.Match{}
	}
	return s.matches
}

func (s *scorerStep) Retries() []string {
	return s.retries
}

func (s *scorerStep) Status() Status {
	return Status{
		Name:    s.Name(),
		Enabled: true,
		Details: map[string]string{
			"concurrency": strconv.Itoa(s.concurrency),
		},
	}
}

type minOverallStep struct {
	threshold float64
}

// NewMinOverall creates a step that removes candidates whose latest
// overall score is below the configured threshold.
func NewMinOverall() Step {
	return &minOverallStep{}
}

func (s *minOverallStep) Name() string { return "min_overall" }

func (s *minOverallStep) Disable(string) {}

func (s *minOverallStep) IsEnabled() bool { return true }

func (s *minOverallStep) Validate(cfg *Config) error {
	s.threshold = 0
	if cfg != nil {
		s.threshold = cfg.MinOverall
	}
	if s.threshold < 0 || s.threshold > 1 {
		return fmt.Errorf("min overall must be within [0,1], got %v", s.threshold)
	}
	return nil
}

func (s *minOverallStep) Apply(_ context.Context, deps Deps, c *profile.Candidates) (*profile.Candidates, Stats, error) {
	initial := c.Len()
	if s.threshold == 0 {
		return c, Stats{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}

	if deps.Ledger == nil {
		return c, Stats{}, fmt.Errorf("ledger is required")
	}
	if deps.Role == nil {
		return c, Stats{}, fmt.Errorf("role is required")
	}

	keep := make([]string, 0, initial)
	for _, cand := range c.Items {
		match, err := deps.Ledger.Latest(deps.Role.ID, cand.ID)
		if err != nil {
			continue
		}
		if match.Scores.Overall >= s.threshold {
			keep = append(keep, cand.ID)
		}
	}

	excluded := c.Keep(keep)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding candidates below the score threshold",
			zap.Float64("min_overall", s.threshold),
			zap.Strings("excluded_candidates", excluded),
			zap.Int("candidates_left", c.Len()),
		)
	}

	return c, Stats{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (s *minOverallStep) Status() Status {
	return Status{
		Name:    s.Name(),
		Enabled: true,
		Details: map[string]string{
			"min_overall": fmt.Sprintf("%.2f", s.threshold),
		},
	}
}
