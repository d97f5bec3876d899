package intake

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/hiregate/internal/ai"
	"github.com/spigell/hiregate/internal/profile"
	"go.uber.org/zap"
)

type stubChat struct {
	err   error
	calls int
}

func (s *stubChat) Chat(_ context.Context, _ string, turns []ai.Turn, _ float32) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	// Echo the canned question embedded in the nudge turn.
	last := turns[len(turns)-1].Text
	start := strings.Index(last, `"`)
	end := strings.LastIndex(last, `"`)
	if start == -1 || end <= start {
		return last, nil
	}
	return last[start+1 : end], nil
}

type stubExtractor struct {
	role      *profile.Role
	candidate *profile.Candidate
	err       error
	calls     int
}

func (s *stubExtractor) ExtractRole(context.Context, string) (*profile.Role, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.role, nil
}

func (s *stubExtractor) ExtractCandidate(context.Context, string) (*profile.Candidate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.candidate, nil
}

func completeRole() *profile.Role {
	return &profile.Role{
		ID:                "role-1",
		Title:             "Backend Engineer",
		MustHaveSkills:    []string{"Go"},
		PersonalityTraits: []string{"direct"},
		TradeOffs:         "will train juniors",
		Instructions:      "apply@example.com",
	}
}

func runThrough(t *testing.T, f *Flow, s *Session, answers []string) *Outcome {
	t.Helper()

	if _, err := f.Open(context.Background(), s); err != nil {
		t.Fatalf("open session: %v", err)
	}

	var outcome *Outcome
	for _, answer := range answers {
		var err error
		outcome, err = f.Next(context.Background(), s, answer)
		if err != nil {
			t.Fatalf("turn %q: %v", answer, err)
		}
	}

	return outcome
}

func TestManagerSessionCompletes(t *testing.T) {
	extractor := &stubExtractor{role: completeRole()}
	f := NewFlow(&stubChat{}, extractor, zap.NewNop())
	s := NewSession(profile.KindRole)

	outcome := runThrough(t, f, s, []string{
		"Backend engineer",
		"Go is a must, Rust nice to have",
		"direct and fast-paced",
		"will train juniors",
		"apply@example.com",
	})

	if !outcome.Complete() || outcome.Role == nil {
		t.Fatalf("expected completed role outcome")
	}

	if !s.Complete() {
		t.Fatalf("expected session marked complete")
	}

	if extractor.calls != 1 {
		t.Fatalf("expected one extraction pass, got %d", extractor.calls)
	}
}

func TestCandidateSessionMarksScreened(t *testing.T) {
	extractor := &stubExtractor{candidate: &profile.Candidate{
		ID:          "cand-1",
		Summary:     "2yr junior dev",
		Skills:      []string{"Go"},
		Preferences: "remote",
		Vibe:        "blunt, moves fast",
	}}
	f := NewFlow(&stubChat{}, extractor, zap.NewNop())
	s := NewSession(profile.KindCandidate)

	outcome := runThrough(t, f, s, []string{
		"I am a junior dev with 2 years of Go",
		"Go, Postgres",
		"remote",
		"blunt, I move fast",
	})

	if outcome.Candidate == nil {
		t.Fatalf("expected candidate outcome")
	}

	if !outcome.Candidate.Screened {
		t.Fatalf("expected screened flag set on completion")
	}
}

func TestQuestionsFollowFixedSequence(t *testing.T) {
	f := NewFlow(nil, &stubExtractor{role: completeRole()}, zap.NewNop())
	s := NewSession(profile.KindRole)

	first, err := f.Open(context.Background(), s)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if first != openQuestions[profile.KindRole][StageTitle] {
		t.Fatalf("expected title question first, got %q", first)
	}

	outcome, err := f.Next(context.Background(), s, "Backend engineer")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if outcome.Question != openQuestions[profile.KindRole][StageSkills] {
		t.Fatalf("expected skills question second, got %q", outcome.Question)
	}
}

func TestExtractionFailureIsRetryableWithoutLosingTurns(t *testing.T) {
	extractor := &stubExtractor{err: ai.ErrOracleUnavailable}
	f := NewFlow(&stubChat{}, extractor, zap.NewNop())
	s := NewSession(profile.KindRole)

	if _, err := f.Open(context.Background(), s); err != nil {
		t.Fatalf("open: %v", err)
	}

	answers := []string{"a", "b", "c", "d"}
	for _, answer := range answers {
		if _, err := f.Next(context.Background(), s, answer); err != nil {
			t.Fatalf("turn: %v", err)
		}
	}

	turnsBefore := len(s.Turns)
	_, err := f.Next(context.Background(), s, "e")
	if !errors.Is(err, ai.ErrOracleUnavailable) {
		t.Fatalf("expected oracle error, got %v", err)
	}

	if len(s.Turns) != turnsBefore+1 {
		t.Fatalf("expected the answer to be kept")
	}

	// Retry with the oracle back up; no turn is repeated.
	extractor.err = nil
	extractor.role = completeRole()

	outcome, err := f.Finish(context.Background(), s)
	if err != nil {
		t.Fatalf("finish retry: %v", err)
	}

	if outcome.Role == nil {
		t.Fatalf("expected role outcome after retry")
	}
}

func TestReloadedSessionRetriesExtraction(t *testing.T) {
	extractor := &stubExtractor{err: ai.ErrOracleUnavailable}
	f := NewFlow(&stubChat{}, extractor, zap.NewNop())
	s := NewSession(profile.KindRole)

	if _, err := f.Open(context.Background(), s); err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, answer := range []string{"a", "b", "c", "d"} {
		if _, err := f.Next(context.Background(), s, answer); err != nil {
			t.Fatalf("turn: %v", err)
		}
	}
	if _, err := f.Next(context.Background(), s, "e"); !errors.Is(err, ai.ErrOracleUnavailable) {
		t.Fatalf("expected oracle error, got %v", err)
	}

	// Persist and reload, as the cli does between invocations.
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(s.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !loaded.AwaitingExtract {
		t.Fatalf("expected reloaded session to await extraction")
	}

	// The reloaded session has no question on the table; Open must say
	// so instead of reporting completion.
	if _, err := f.Open(context.Background(), loaded); !errors.Is(err, ErrAwaitingExtract) {
		t.Fatalf("expected ErrAwaitingExtract, got %v", err)
	}

	extractor.err = nil
	extractor.role = completeRole()

	outcome, err := f.Finish(context.Background(), loaded)
	if err != nil {
		t.Fatalf("finish after reload: %v", err)
	}
	if outcome.Role == nil {
		t.Fatalf("expected role outcome after reload retry")
	}
}

func TestMissingFieldsReAskWithoutLosingCapture(t *testing.T) {
	incomplete := completeRole()
	incomplete.TradeOffs = ""

	extractor := &stubExtractor{role: incomplete}
	f := NewFlow(&stubChat{}, extractor, zap.NewNop())
	s := NewSession(profile.KindRole)

	outcome := runThrough(t, f, s, []string{"a", "b", "c", "d", "e"})

	if outcome.Complete() {
		t.Fatalf("expected re-ask outcome, got completion")
	}

	if outcome.Question != openQuestions[profile.KindRole][StageTradeOffs] {
		t.Fatalf("expected trade-offs question re-asked, got %q", outcome.Question)
	}

	// Answering the re-asked question triggers another extraction pass
	// over the full transcript.
	extractor.role = completeRole()
	final, err := f.Next(context.Background(), s, "happy to train juniors")
	if err != nil {
		t.Fatalf("repair turn: %v", err)
	}

	if final.Role == nil {
		t.Fatalf("expected completed role after repair")
	}

	if extractor.calls != 2 {
		t.Fatalf("expected two extraction passes, got %d", extractor.calls)
	}
}

func TestChatFailureFallsBackToCannedQuestion(t *testing.T) {
	f := NewFlow(&stubChat{err: ai.ErrOracleTimeout}, &stubExtractor{role: completeRole()}, zap.NewNop())
	s := NewSession(profile.KindRole)

	question, err := f.Open(context.Background(), s)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if question != openQuestions[profile.KindRole][StageTitle] {
		t.Fatalf("expected canned fallback question, got %q", question)
	}
}

func TestCompletedSessionRejectsTurns(t *testing.T) {
	f := NewFlow(nil, &stubExtractor{role: completeRole()}, zap.NewNop())
	s := NewSession(profile.KindRole)
	s.Done = true

	if _, err := f.Next(context.Background(), s, "anything"); !errors.Is(err, ErrSessionComplete) {
		t.Fatalf("expected ErrSessionComplete, got %v", err)
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	s := NewSession(profile.KindCandidate)
	s.Turns = append(s.Turns, ai.Turn{Speaker: ai.SpeakerAgent, Text: "hello"})

	if err := store.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(s.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Kind != profile.KindCandidate {
		t.Fatalf("unexpected kind: %s", loaded.Kind)
	}

	if len(loaded.Turns) != 1 || loaded.Turns[0].Text != "hello" {
		t.Fatalf("turns not preserved: %+v", loaded.Turns)
	}

	if loaded.CurrentStage() != StageSummary {
		t.Fatalf("expected resumed session at summary stage, got %s", loaded.CurrentStage())
	}
}
