package intake

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/hiregate/internal/ai"
	"github.com/spigell/hiregate/internal/profile"
)

// Stage names one question step of an intake conversation.
type Stage string

const (
	// Manager stages.
	StageTitle        Stage = "title"
	StageSkills       Stage = "skills"
	StagePersonality  Stage = "personality"
	StageTradeOffs    Stage = "trade_offs"
	StageInstructions Stage = "instructions"

	// Candidate stages.
	StageSummary          Stage = "summary"
	StagePreferences      Stage = "preferences"
	StagePersonalityProbe Stage = "personality_probe"

	StageDone Stage = "done"
)

func stagesFor(kind profile.Kind) []Stage {
	if kind == profile.KindCandidate {
		return []Stage{StageSummary, StageSkills, StagePreferences, StagePersonalityProbe}
	}
	return []Stage{StageTitle, StageSkills, StagePersonality, StageTradeOffs, StageInstructions}
}

// Session is the per-user conversational state. Turns within one session
// are strictly sequential; sessions for different users are independent.
type Session struct {
	ID   string       `json:"id"`
	Kind profile.Kind `json:"kind"`
	// Queue holds the stages still awaiting an answer. The head is the
	// question currently on the table.
	Queue []Stage   `json:"queue"`
	Turns []ai.Turn `json:"turns"`
	// AwaitingExtract is set when all questions are answered but the
	// final extraction pass has not succeeded yet.
	AwaitingExtract bool      `json:"awaiting_extract"`
	Done            bool      `json:"done"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewSession starts a fresh intake session of the given kind.
func NewSession(kind profile.Kind) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        "sess-" + uuid.NewString(),
		Kind:      kind,
		Queue:     stagesFor(kind),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete reports whether the session produced a profile.
func (s *Session) Complete() bool { return s.Done }

// CurrentStage returns the stage whose question is on the table.
func (s *Session) CurrentStage() Stage {
	if s.Done {
		return StageDone
	}
	if len(s.Queue) == 0 {
		return StageDone
	}
	return s.Queue[0]
}

// Transcript renders the conversation as "speaker: text" lines for the
// extraction oracle.
func (s *Session) Transcript() string {
	var builder strings.Builder
	for _, turn := range s.Turns {
		builder.WriteString(string(turn.Speaker))
		builder.WriteString(": ")
		builder.WriteString(turn.Text)
		builder.WriteString("\n")
	}
	return strings.TrimSpace(builder.String())
}

func (s *Session) touch() { s.UpdatedAt = time.Now().UTC() }

// Store persists sessions as JSON files so interrupted intakes can resume.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("session directory is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

func (st *Store) Save(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := os.WriteFile(st.path(s.ID), data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	return nil
}

func (st *Store) Load(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := os.ReadFile(st.path(id))
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", id, err)
	}

	return &s, nil
}

func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := os.Remove(st.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	return nil
}

func (st *Store) path(id string) string {
	return filepath.Join(st.dir, id+".json")
}
