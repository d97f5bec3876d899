package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/hiregate/internal/ai"
	"github.com/spigell/hiregate/internal/profile"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
	lastSchema *genai.Schema
}

func (s *stubGenerator) GenerateJSON(_ context.Context, prompt string, schema *genai.Schema) (string, error) {
	s.lastPrompt = prompt
	s.lastSchema = schema
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func testRole() *profile.Role {
	return &profile.Role{
		ID:                "role-1",
		Title:             "Backend Engineer",
		MustHaveSkills:    []string{"Go", "Rust"},
		PersonalityTraits: []string{"direct", "fast-paced"},
		TradeOffs:         "will train juniors",
		Instructions:      "apply@example.com",
	}
}

func testCandidate() *profile.Candidate {
	return &profile.Candidate{
		ID:      "cand-1",
		Contact: "+91-990000000",
		Summary: "2yr junior dev",
		Skills:  []string{"Go"},
		Vibe:    "blunt, moves fast",
	}
}

func TestJudgePersonality(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 0.85, "rationale": "Direct style matches"}`}
	judge := NewJudge(stub, 0, zap.NewNop())

	judgment, err := judge.JudgePersonality(context.Background(), testRole(), testCandidate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if judgment.Score != 0.85 {
		t.Fatalf("expected score 0.85, got %v", judgment.Score)
	}

	if judgment.Rationale == "" {
		t.Fatalf("expected rationale to be populated")
	}

	if !strings.Contains(stub.lastPrompt, "blunt, moves fast") {
		t.Fatalf("expected candidate vibe in prompt")
	}

	if !strings.Contains(stub.lastPrompt, "fast-paced") {
		t.Fatalf("expected role traits in prompt")
	}
}

func TestJudgeTradeOffsClampsScore(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 1.4, "rationale": "Well within stated trade-offs"}`}
	judge := NewJudge(stub, 0, zap.NewNop())

	judgment, err := judge.JudgeTradeOffs(context.Background(), testRole(), testCandidate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if judgment.Score != 1 {
		t.Fatalf("expected clamped score 1, got %v", judgment.Score)
	}

	if !strings.Contains(stub.lastPrompt, "will train juniors") {
		t.Fatalf("expected trade-offs in prompt")
	}
}

func TestJudgeParsesFencedResponse(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"score\": 0.5, \"rationale\": \"ok\"}\n```"}
	judge := NewJudge(stub, 0, zap.NewNop())

	judgment, err := judge.JudgePersonality(context.Background(), testRole(), testCandidate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if judgment.Score != 0.5 {
		t.Fatalf("expected score 0.5, got %v", judgment.Score)
	}
}

func TestJudgeMalformedResponse(t *testing.T) {
	stub := &stubGenerator{response: `{"rationale": "no score here"}`}
	judge := NewJudge(stub, 0, zap.NewNop())

	_, err := judge.JudgePersonality(context.Background(), testRole(), testCandidate())
	if !errors.Is(err, ai.ErrOracleMalformed) {
		t.Fatalf("expected ErrOracleMalformed, got %v", err)
	}
}

func TestJudgePropagatesGeneratorError(t *testing.T) {
	stub := &stubGenerator{err: ai.ErrOracleTimeout}
	judge := NewJudge(stub, 0, zap.NewNop())

	_, err := judge.JudgeTradeOffs(context.Background(), testRole(), testCandidate())
	if !errors.Is(err, ai.ErrOracleTimeout) {
		t.Fatalf("expected ErrOracleTimeout, got %v", err)
	}
}
