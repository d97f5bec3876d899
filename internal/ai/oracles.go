package ai

import (
	"context"
	"errors"

	"github.com/spigell/hiregate/internal/profile"
)

// Oracle failure taxonomy. Per-turn and per-pair failures are local and
// retryable by the caller with the same inputs.
var (
	// ErrOracleTimeout marks a call that exceeded its bounded timeout.
	ErrOracleTimeout = errors.New("oracle call timed out")
	// ErrOracleMalformed marks a response that failed parsing or schema
	// validation before any field was trusted.
	ErrOracleMalformed = errors.New("oracle returned malformed response")
	// ErrOracleUnavailable marks transport-level failures and empty responses.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

// Speaker identifies who produced a conversational turn.
type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

// Turn is one utterance in an intake transcript.
type Turn struct {
	Speaker Speaker
	Text    string
}

// ChatOracle produces the next conversational reply for an ordered
// transcript under a system instruction.
type ChatOracle interface {
	Chat(ctx context.Context, system string, turns []Turn, temperature float32) (string, error)
}

// Extractor performs the final structured-extraction pass over a completed
// transcript. Output is best-effort: callers validate the returned profile
// and re-ask open questions for anything missing.
type Extractor interface {
	ExtractRole(ctx context.Context, transcript string) (*profile.Role, error)
	ExtractCandidate(ctx context.Context, transcript string) (*profile.Candidate, error)
}

// Embedder converts text into a fixed-length vector. Two calls on identical
// input are not guaranteed bit-identical but must stay near-1 in mutual
// cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Judgment is a bounded compatibility assessment from the reasoning oracle.
type Judgment struct {
	// Score is clamped to [0,1].
	Score float64
	// Rationale is the oracle's free-text explanation.
	Rationale string
	// Raw preserves the unparsed oracle output for debugging.
	Raw string
}

// Judge scores the non-vector match dimensions for one (role, candidate)
// pair. A failed judgment fails the whole pairwise match: a fabricated zero
// would masquerade as a genuine rejection.
type Judge interface {
	JudgePersonality(ctx context.Context, role *profile.Role, cand *profile.Candidate) (*Judgment, error)
	JudgeTradeOffs(ctx context.Context, role *profile.Role, cand *profile.Candidate) (*Judgment, error)
}
