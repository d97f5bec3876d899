package scoring

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/spigell/hiregate/internal/ai"
	"github.com/spigell/hiregate/internal/profile"
	"go.uber.org/zap"
)

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

type stubJudge struct {
	personality    float64
	tradeOffs      float64
	personalityErr error
	tradeOffsErr   error
}

func (s *stubJudge) JudgePersonality(context.Context, *profile.Role, *profile.Candidate) (*ai.Judgment, error) {
	if s.personalityErr != nil {
		return nil, s.personalityErr
	}
	return &ai.Judgment{Score: s.personality, Rationale: "style matches"}, nil
}

func (s *stubJudge) JudgeTradeOffs(context.Context, *profile.Role, *profile.Candidate) (*ai.Judgment, error) {
	if s.tradeOffsErr != nil {
		return nil, s.tradeOffsErr
	}
	return &ai.Judgment{Score: s.tradeOffs, Rationale: "within stated trade-offs"}, nil
}

func scorerRole() *profile.Role {
	return &profile.Role{
		ID:                "role-1",
		Title:             "Backend Engineer",
		MustHaveSkills:    []string{"Go", "Rust"},
		PersonalityTraits: []string{"direct", "fast-paced"},
		TradeOffs:         "will train juniors",
	}
}

func scorerCandidate() *profile.Candidate {
	return &profile.Candidate{
		ID:      "cand-1",
		Summary: "2yr junior dev",
		Skills:  []string{"Go"},
		Vibe:    "blunt, moves fast",
	}
}

func newTestScorer(t *testing.T, embedder ai.Embedder, judge ai.Judge) *Scorer {
	t.Helper()

	scorer, err := NewScorer(Config{Weights: DefaultWeights()}, embedder, judge, zap.NewNop())
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}

	return scorer
}

func TestScoreOverallIsWeightedSum(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Go, Rust": {1, 0},
		"Go":       {0.8, 0.6},
	}}
	judge := &stubJudge{personality: 0.9, tradeOffs: 0.8}

	scorer := newTestScorer(t, embedder, judge)

	match, err := scorer.Score(context.Background(), scorerRole(), scorerCandidate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 0.4*match.Scores.Skills + 0.4*match.Scores.Personality + 0.2*match.Scores.TradeOffs
	if math.Abs(match.Scores.Overall-want) > WeightTolerance {
		t.Fatalf("overall %v does not match weighted sum %v", match.Scores.Overall, want)
	}

	if match.Status != profile.StatusPending {
		t.Fatalf("expected pending status, got %s", match.Status)
	}

	if match.Reasoning == "" {
		t.Fatalf("expected combined reasoning")
	}
}

// Partial skills overlap, high personality and trade-off fit: the match
// lands mid-to-high overall with a personality-leaning category.
func TestScoreJuniorGoDeveloperScenario(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Go, Rust": {1, 0},
		"Go":       {0.62, 0.7866},
	}}
	judge := &stubJudge{personality: 0.85, tradeOffs: 0.8}

	scorer := newTestScorer(t, embedder, judge)

	match, err := scorer.Score(context.Background(), scorerRole(), scorerCandidate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if match.Scores.Overall < 0.55 || match.Scores.Overall > 0.75 {
		t.Fatalf("expected overall in [0.55, 0.75], got %v", match.Scores.Overall)
	}

	if match.Category != profile.CategoryPersonalityFirst && match.Category != profile.CategoryHybrid {
		t.Fatalf("expected personality-first or hybrid, got %s", match.Category)
	}
}

func TestCategorization(t *testing.T) {
	scorer := newTestScorer(t, &stubEmbedder{}, &stubJudge{})

	cases := []struct {
		skills      float64
		personality float64
		want        profile.Category
	}{
		{0.9, 0.5, profile.CategorySkillsFirst},
		{0.5, 0.9, profile.CategoryPersonalityFirst},
		{0.7, 0.7, profile.CategoryHybrid},
		// Exactly at the margin stays hybrid, in both directions.
		{0.65, 0.5, profile.CategoryHybrid},
		{0.5, 0.65, profile.CategoryHybrid},
	}

	for _, tc := range cases {
		got := scorer.categorize(profile.Scores{Skills: tc.skills, Personality: tc.personality})
		if got != tc.want {
			t.Fatalf("skills=%v personality=%v: expected %s, got %s", tc.skills, tc.personality, tc.want, got)
		}
	}
}

func TestJudgeFailureFailsWholePair(t *testing.T) {
	judge := &stubJudge{personality: 0.9, tradeOffsErr: ai.ErrOracleTimeout}

	scorer := newTestScorer(t, &stubEmbedder{}, judge)

	_, err := scorer.Score(context.Background(), scorerRole(), scorerCandidate())
	if !errors.Is(err, ai.ErrOracleTimeout) {
		t.Fatalf("expected ErrOracleTimeout, got %v", err)
	}
}

func TestEmbedderFailureFailsWholePair(t *testing.T) {
	embedder := &stubEmbedder{err: ai.ErrOracleUnavailable}

	scorer := newTestScorer(t, embedder, &stubJudge{personality: 0.9, tradeOffs: 0.8})

	_, err := scorer.Score(context.Background(), scorerRole(), scorerCandidate())
	if !errors.Is(err, ai.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestNewScorerRejectsBadWeights(t *testing.T) {
	_, err := NewScorer(Config{Weights: Weights{Skills: 0.5, Personality: 0.5, TradeOffs: 0.5}}, &stubEmbedder{}, &stubJudge{}, zap.NewNop())
	if !errors.Is(err, ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}
