// Package scoring computes the weighted composite score for one
// (role, candidate) pair across skills, personality and trade-off
// dimensions.
package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/hiregate/internal/ai"
	"github.com/spigell/hiregate/internal/index"
	"github.com/spigell/hiregate/internal/profile"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultPairTimeout = 2 * time.Minute

// Config holds scorer settings. Weights are validated at construction:
// a bad split is a deployment mistake, not a runtime condition.
type Config struct {
	Weights        Weights
	CategoryMargin float64
	// PairTimeout bounds the whole three-component evaluation of one pair.
	PairTimeout time.Duration
}

// Scorer evaluates pairs against the embedding and reasoning oracles.
type Scorer struct {
	weights  Weights
	margin   float64
	timeout  time.Duration
	embedder ai.Embedder
	judge    ai.Judge
	logger   *zap.Logger
}

func NewScorer(cfg Config, embedder ai.Embedder, judge ai.Judge, logger *zap.Logger) (*Scorer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}

	margin := cfg.CategoryMargin
	if margin <= 0 {
		margin = DefaultCategoryMargin
	}

	timeout := cfg.PairTimeout
	if timeout <= 0 {
		timeout = defaultPairTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		weights:  cfg.Weights,
		margin:   margin,
		timeout:  timeout,
		embedder: embedder,
		judge:    judge,
		logger:   logger,
	}, nil
}

// Score computes the pairwise match. The three components run concurrently;
// the overall score is only finalized once all three return. Any component
// failure fails the whole pair: a defaulted zero would masquerade as a
// genuine rejection.
func (s *Scorer) Score(ctx context.Context, role *profile.Role, cand *profile.Candidate) (*profile.Match, error) {
	if role == nil || cand == nil {
		return nil, fmt.Errorf("role and candidate are required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		skills      float64
		personality *ai.Judgment
		tradeOffs   *ai.Judgment
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		score, err := s.skillsSimilarity(gctx, role, cand)
		if err != nil {
			return fmt.Errorf("skills component: %w", err)
		}
		skills = score
		return nil
	})

	g.Go(func() error {
		judgment, err := s.judge.JudgePersonality(gctx, role, cand)
		if err != nil {
			return fmt.Errorf("personality component: %w", err)
		}
		personality = judgment
		return nil
	})

	g.Go(func() error {
		judgment, err := s.judge.JudgeTradeOffs(gctx, role, cand)
		if err != nil {
			return fmt.Errorf("trade-off component: %w", err)
		}
		tradeOffs = judgment
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score pair (%s, %s): %w", role.ID, cand.ID, err)
	}

	scores := profile.Scores{
		Skills:      skills,
		Personality: personality.Score,
		TradeOffs:   tradeOffs.Score,
	}
	scores.Overall = clamp01(s.weights.Overall(scores.Skills, scores.Personality, scores.TradeOffs))

	match := &profile.Match{
		RoleID:      role.ID,
		CandidateID: cand.ID,
		Scores:      scores,
		Category:    s.categorize(scores),
		Status:      profile.StatusPending,
		Reasoning:   combineReasoning(scores.Skills, personality, tradeOffs),
		CreatedAt:   time.Now().UTC(),
	}

	s.logger.Debug("pair scored",
		zap.String("role_id", role.ID),
		zap.String("candidate_id", cand.ID),
		zap.Float64("skills", scores.Skills),
		zap.Float64("personality", scores.Personality),
		zap.Float64("trade_offs", scores.TradeOffs),
		zap.Float64("overall", scores.Overall),
		zap.String("category", string(match.Category)),
	)

	return match, nil
}

// skillsSimilarity embeds both skills texts and compares them. Negative
// cosine values are floored at zero: the score scale is [0,1].
func (s *Scorer) skillsSimilarity(ctx context.Context, role *profile.Role, cand *profile.Candidate) (float64, error) {
	roleVec, err := s.embedder.Embed(ctx, role.SkillsText())
	if err != nil {
		return 0, err
	}

	candVec, err := s.embedder.Embed(ctx, cand.SkillsText())
	if err != nil {
		return 0, err
	}

	return clamp01(index.Cosine(roleVec, candVec)), nil
}

// categoryEpsilon absorbs float64 rounding so a gap sitting exactly on
// the margin stays hybrid regardless of how the subtraction rounds.
const categoryEpsilon = 1e-9

func (s *Scorer) categorize(scores profile.Scores) profile.Category {
	switch {
	case scores.Skills-scores.Personality > s.margin+categoryEpsilon:
		return profile.CategorySkillsFirst
	case scores.Personality-scores.Skills > s.margin+categoryEpsilon:
		return profile.CategoryPersonalityFirst
	default:
		return profile.CategoryHybrid
	}
}

func combineReasoning(skills float64, personality, tradeOffs *ai.Judgment) string {
	parts := []string{
		fmt.Sprintf("Skills similarity %.2f.", skills),
	}
	if personality.Rationale != "" {
		parts = append(parts, "Personality: "+personality.Rationale)
	}
	if tradeOffs.Rationale != "" {
		parts = append(parts, "Trade-offs: "+tradeOffs.Rationale)
	}
	return strings.Join(parts, " ")
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
