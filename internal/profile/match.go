package profile

import "time"

// Category labels which dimension dominated a match.
type Category string

const (
	CategorySkillsFirst      Category = "skills-first"
	CategoryPersonalityFirst Category = "personality-first"
	CategoryHybrid           Category = "hybrid"
)

// Status is the manager-facing state of a match.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusReleased Status = "released"
)

// Terminal reports whether no further transition is allowed out of the status.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusReleased
}

// Scores holds the three sub-scores and their weighted combination,
// all on the [0,1] scale.
type Scores struct {
	Skills      float64 `json:"skills"`
	Personality float64 `json:"personality"`
	TradeOffs   float64 `json:"trade_offs"`
	Overall     float64 `json:"overall"`
}

// Match is one scored (role, candidate) pair. Records are append-only:
// re-scoring or a status change inserts a new version in the ledger rather
// than mutating an existing record.
type Match struct {
	RoleID      string    `json:"role_id"`
	CandidateID string    `json:"candidate_id"`
	Scores      Scores    `json:"scores"`
	Category    Category  `json:"category"`
	Status      Status    `json:"status"`
	Reasoning   string    `json:"reasoning"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
}

// Clone returns a deep copy of the match.
func (m *Match) Clone() *Match {
	next := *m
	return &next
}
