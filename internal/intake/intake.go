// Package intake drives the guided conversational process that turns a
// free-text chat into a structured role or candidate profile.
package intake

import (
	"context"
	"errors"
	"fmt"

	_ "embed"

	"github.com/spigell/hiregate/internal/ai"
	"github.com/spigell/hiregate/internal/profile"

	"go.uber.org/zap"
)

//go:embed prompts/manager_system.md
var managerSystemPrompt string

//go:embed prompts/candidate_system.md
var candidateSystemPrompt string

// chatTemperature matches the conversational register of the product: warm
// enough to not sound like a form, low enough to stay on script.
const chatTemperature = 0.7

// ErrSessionComplete is returned when a turn arrives for a finished session.
var ErrSessionComplete = errors.New("intake session already complete")

// ErrAwaitingExtract is returned by Open when every question is already
// answered and only the extraction pass is outstanding. Callers retry
// Finish on such a session.
var ErrAwaitingExtract = errors.New("intake session awaits extraction")

var openQuestions = map[profile.Kind]map[Stage]string{
	profile.KindRole: {
		StageTitle:        "What role are you hiring for?",
		StageSkills:       "Which skills are must-haves, and which are just nice to have?",
		StagePersonality:  "How would you describe your team's personality?",
		StageTradeOffs:    "What trade-offs would you accept? For example, would you take a junior who learns fast?",
		StageInstructions: "Where should approved candidates apply? Share an email or a link.",
	},
	profile.KindCandidate: {
		StageSummary:          "Tell me about your experience, in plain English.",
		StageSkills:           "What are your top technical or core skills?",
		StagePreferences:      "What are your work preferences? Remote or office, pace, team size.",
		StagePersonalityProbe: "How do you like to work day to day? How would teammates describe your style?",
	},
}

var stageForField = map[profile.Kind]map[string]Stage{
	profile.KindRole: {
		"title":                    StageTitle,
		"must_have_skills":         StageSkills,
		"nice_to_have_skills":      StageSkills,
		"personality_traits":       StagePersonality,
		"trade_offs":               StageTradeOffs,
		"application_instructions": StageInstructions,
	},
	profile.KindCandidate: {
		"summary":          StageSummary,
		"skills":           StageSkills,
		"preferences":      StagePreferences,
		"personality_vibe": StagePersonalityProbe,
	},
}

// Outcome is the result of one intake turn: either the next question to
// surface or the completed profile.
type Outcome struct {
	Question  string
	Role      *profile.Role
	Candidate *profile.Candidate
}

// Complete reports whether the outcome carries a finished profile.
func (o *Outcome) Complete() bool { return o.Role != nil || o.Candidate != nil }

// Flow runs intake sessions against the chat and extraction oracles.
type Flow struct {
	chat      ai.ChatOracle
	extractor ai.Extractor
	logger    *zap.Logger
}

func NewFlow(chat ai.ChatOracle, extractor ai.Extractor, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Flow{chat: chat, extractor: extractor, logger: logger}
}

// Open surfaces the question currently on the table. For a fresh session
// that is the first question of the sequence; for a resumed session it
// repeats the pending one without consuming a turn.
func (f *Flow) Open(ctx context.Context, s *Session) (string, error) {
	if s.Complete() {
		return "", ErrSessionComplete
	}

	// A session interrupted by an extraction failure has no question left
	// on the table; it resumes through Finish, not another turn.
	if s.AwaitingExtract {
		return "", ErrAwaitingExtract
	}

	stage := s.CurrentStage()
	if stage == StageDone {
		return "", ErrSessionComplete
	}

	// A resumed session already holds the agent's pending question.
	if n := len(s.Turns); n > 0 && s.Turns[n-1].Speaker == ai.SpeakerAgent {
		return s.Turns[n-1].Text, nil
	}

	question := f.phrase(ctx, s, stage)
	s.Turns = append(s.Turns, ai.Turn{Speaker: ai.SpeakerAgent, Text: question})
	s.touch()

	return question, nil
}

// Next consumes the user's answer to the pending question and returns
// either the next question or, once the sequence is exhausted, the
// extracted profile. On a retryable extraction failure the answer is kept
// and Finish may be called again without repeating the turn.
func (f *Flow) Next(ctx context.Context, s *Session, userText string) (*Outcome, error) {
	if s.Complete() {
		return nil, ErrSessionComplete
	}

	s.Turns = append(s.Turns, ai.Turn{Speaker: ai.SpeakerUser, Text: userText})
	if len(s.Queue) > 0 {
		s.Queue = s.Queue[1:]
	}
	s.touch()

	if len(s.Queue) > 0 {
		return f.ask(ctx, s), nil
	}

	s.AwaitingExtract = true
	return f.Finish(ctx, s)
}

// Finish runs the structured-extraction pass over the full transcript. It
// only acts when every question has been answered; callers retry it with
// unchanged session state after an oracle failure.
func (f *Flow) Finish(ctx context.Context, s *Session) (*Outcome, error) {
	if s.Complete() {
		return nil, ErrSessionComplete
	}
	if !s.AwaitingExtract {
		return nil, fmt.Errorf("session %s still has open questions", s.ID)
	}

	transcript := s.Transcript()

	switch s.Kind {
	case profile.KindCandidate:
		cand, err := f.extractor.ExtractCandidate(ctx, transcript)
		if err != nil {
			return nil, fmt.Errorf("extraction failed for session %s: %w", s.ID, err)
		}

		if outcome := f.repair(ctx, s, cand.Validate()); outcome != nil {
			return outcome, nil
		}

		cand.Screened = true
		s.Done = true
		s.AwaitingExtract = false
		s.touch()

		return &Outcome{Candidate: cand}, nil
	default:
		role, err := f.extractor.ExtractRole(ctx, transcript)
		if err != nil {
			return nil, fmt.Errorf("extraction failed for session %s: %w", s.ID, err)
		}

		if outcome := f.repair(ctx, s, role.Validate()); outcome != nil {
			return outcome, nil
		}

		s.Done = true
		s.AwaitingExtract = false
		s.touch()

		return &Outcome{Role: role}, nil
	}
}

// repair re-queues the open questions for any required fields the
// extraction pass failed to produce. Answers already captured stay in the
// transcript; the oracle only needs a better answer for the gaps.
func (f *Flow) repair(ctx context.Context, s *Session, err error) *Outcome {
	if err == nil {
		return nil
	}

	var missing *profile.MissingFieldsError
	if !errors.As(err, &missing) {
		return nil
	}

	fields := stageForField[s.Kind]
	seen := make(map[Stage]bool)
	queue := make([]Stage, 0, len(missing.Fields))
	for _, field := range missing.Fields {
		stage, ok := fields[field]
		if !ok || seen[stage] {
			continue
		}
		seen[stage] = true
		queue = append(queue, stage)
	}

	f.logger.Info("extraction left required fields empty; re-asking",
		zap.String("session_id", s.ID),
		zap.Strings("missing_fields", missing.Fields),
	)

	s.Queue = queue
	s.AwaitingExtract = false

	return f.ask(ctx, s)
}

func (f *Flow) ask(ctx context.Context, s *Session) *Outcome {
	question := f.phrase(ctx, s, s.CurrentStage())
	s.Turns = append(s.Turns, ai.Turn{Speaker: ai.SpeakerAgent, Text: question})
	s.touch()

	return &Outcome{Question: question}
}

// phrase lets the chat oracle word the stage's fixed open question in a
// conversational way. The canned question is the fallback: a chat failure
// must never stall the session or lose captured answers.
func (f *Flow) phrase(ctx context.Context, s *Session, stage Stage) string {
	canned := openQuestions[s.Kind][stage]

	if f.chat == nil {
		return canned
	}

	system := managerSystemPrompt
	if s.Kind == profile.KindCandidate {
		system = candidateSystemPrompt
	}

	turns := make([]ai.Turn, 0, len(s.Turns)+1)
	turns = append(turns, s.Turns...)
	turns = append(turns, ai.Turn{
		Speaker: ai.SpeakerUser,
		Text:    fmt.Sprintf("(next, ask this and nothing else: %q)", canned),
	})

	phrased, err := f.chat.Chat(ctx, system, turns, chatTemperature)
	if err != nil {
		f.logger.Debug("chat oracle failed; using canned question",
			zap.String("session_id", s.ID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return canned
	}

	return phrased
}
