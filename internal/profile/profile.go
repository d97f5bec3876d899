package profile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind distinguishes the two sides of an intake conversation.
type Kind string

const (
	KindRole      Kind = "role"
	KindCandidate Kind = "candidate"
)

// Role is a hiring manager's structured role profile built during intake.
// A role is immutable once a matching round has run against it: edits go
// through NewVersion so cached similarity results stay attributable.
type Role struct {
	ID                string   `json:"id" mapstructure:"-"`
	Title             string   `json:"title" mapstructure:"title"`
	MustHaveSkills    []string `json:"must_have_skills" mapstructure:"must_have_skills"`
	NiceToHaveSkills  []string `json:"nice_to_have_skills" mapstructure:"nice_to_have_skills"`
	PersonalityTraits []string `json:"personality_traits" mapstructure:"personality_traits"`
	TradeOffs         string   `json:"trade_offs" mapstructure:"trade_offs"`
	Instructions      string   `json:"application_instructions" mapstructure:"application_instructions"`
}

// Candidate is a screened candidate profile built during intake.
type Candidate struct {
	ID          string   `json:"id" mapstructure:"-"`
	Contact     string   `json:"contact" mapstructure:"contact"`
	Summary     string   `json:"summary" mapstructure:"summary"`
	Skills      []string `json:"skills" mapstructure:"skills"`
	Preferences string   `json:"preferences" mapstructure:"preferences"`
	Vibe        string   `json:"personality_vibe" mapstructure:"personality_vibe"`
	Screened    bool     `json:"screened" mapstructure:"-"`
}

// MissingFieldsError reports which required profile fields an extraction
// pass failed to produce. Callers re-ask the corresponding open questions
// instead of guessing.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("profile is missing required fields: %s", strings.Join(e.Fields, ", "))
}

// NewRoleID returns a fresh role identifier.
func NewRoleID() string { return "role-" + uuid.NewString() }

// NewCandidateID returns a fresh candidate identifier.
func NewCandidateID() string { return "cand-" + uuid.NewString() }

// Validate reports the required fields the role is still missing.
func (r *Role) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if len(r.MustHaveSkills) == 0 {
		missing = append(missing, "must_have_skills")
	}
	if len(r.PersonalityTraits) == 0 {
		missing = append(missing, "personality_traits")
	}
	if strings.TrimSpace(r.TradeOffs) == "" {
		missing = append(missing, "trade_offs")
	}
	if strings.TrimSpace(r.Instructions) == "" {
		missing = append(missing, "application_instructions")
	}

	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}

	return nil
}

// Validate reports the required fields the candidate is still missing.
func (c *Candidate) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Summary) == "" {
		missing = append(missing, "summary")
	}
	if len(c.Skills) == 0 {
		missing = append(missing, "skills")
	}
	if strings.TrimSpace(c.Preferences) == "" {
		missing = append(missing, "preferences")
	}
	if strings.TrimSpace(c.Vibe) == "" {
		missing = append(missing, "personality_vibe")
	}

	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}

	return nil
}

// CanonicalText is the fixed-order concatenation of the role's free-text
// fields used as embedding input. The order must not change between
// releases, otherwise stored vectors stop being comparable.
func (r *Role) CanonicalText() string {
	parts := []string{
		r.Title,
		strings.Join(r.MustHaveSkills, ", "),
		strings.Join(r.NiceToHaveSkills, ", "),
		strings.Join(r.PersonalityTraits, ", "),
		r.TradeOffs,
	}
	return joinNonEmpty(parts)
}

// SkillsText is the embedding input for the role's skills dimension.
func (r *Role) SkillsText() string {
	return joinNonEmpty([]string{
		strings.Join(r.MustHaveSkills, ", "),
		strings.Join(r.NiceToHaveSkills, ", "),
	})
}

// CanonicalText is the fixed-order concatenation of the candidate's
// free-text fields used as embedding input.
func (c *Candidate) CanonicalText() string {
	parts := []string{
		c.Summary,
		strings.Join(c.Skills, ", "),
		c.Preferences,
		c.Vibe,
	}
	return joinNonEmpty(parts)
}

// SkillsText is the embedding input for the candidate's skills dimension.
func (c *Candidate) SkillsText() string {
	return strings.Join(c.Skills, ", ")
}

// NewVersion returns a copy of the role under a fresh identifier. Matching
// rounds against the old version keep their ledger history untouched.
func (r *Role) NewVersion() *Role {
	next := *r
	next.ID = NewRoleID()
	next.MustHaveSkills = append([]string(nil), r.MustHaveSkills...)
	next.NiceToHaveSkills = append([]string(nil), r.NiceToHaveSkills...)
	next.PersonalityTraits = append([]string(nil), r.PersonalityTraits...)
	return &next
}

func joinNonEmpty(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
