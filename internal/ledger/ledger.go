// Package ledger keeps the audit history of matches. Records are never
// mutated in place: every re-score or status change is a new version under
// the same (role, candidate) key.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spigell/hiregate/internal/profile"
	"github.com/spigell/hiregate/internal/scoring"
)

// ErrInvariantViolation marks a match whose overall score does not equal
// the declared weighted sum of its sub-scores. Such a record is rejected,
// never silently corrected.
var ErrInvariantViolation = errors.New("match overall score violates weighted-sum invariant")

// ErrNotFound is returned when no match is recorded for a pair.
var ErrNotFound = errors.New("no match recorded for pair")

type key struct {
	roleID string
	candID string
}

// Ledger is a keyed append-mostly store of match versions. Keys are
// independent: writes only contend on the store-level map, never across
// pairs.
type Ledger struct {
	weights scoring.Weights

	mu      sync.RWMutex
	entries map[key][]*profile.Match
}

func New(weights scoring.Weights) (*Ledger, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	return &Ledger{
		weights: weights,
		entries: make(map[key][]*profile.Match),
	}, nil
}

// Append records a new version of the pair's match after checking the
// weighted-sum invariant. It returns the stored copy with its version set.
func (l *Ledger) Append(m *profile.Match) (*profile.Match, error) {
	if m == nil || m.RoleID == "" || m.CandidateID == "" {
		return nil, fmt.Errorf("match with role and candidate ids is required")
	}

	want := l.weights.Overall(m.Scores.Skills, m.Scores.Personality, m.Scores.TradeOffs)
	if math.Abs(m.Scores.Overall-want) > scoring.WeightTolerance {
		return nil, fmt.Errorf("%w: overall %v, weighted sum %v (role %s, candidate %s)",
			ErrInvariantViolation, m.Scores.Overall, want, m.RoleID, m.CandidateID)
	}

	stored := m.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{roleID: m.RoleID, candID: m.CandidateID}
	stored.Version = len(l.entries[k]) + 1
	l.entries[k] = append(l.entries[k], stored)

	return stored.Clone(), nil
}

// Latest returns the newest version for the pair.
func (l *Ledger) Latest(roleID, candID string) (*profile.Match, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	versions := l.entries[key{roleID: roleID, candID: candID}]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: (%s, %s)", ErrNotFound, roleID, candID)
	}

	return versions[len(versions)-1].Clone(), nil
}

// History returns all versions for the pair, oldest first.
func (l *Ledger) History(roleID, candID string) []*profile.Match {
	l.mu.RLock()
	defer l.mu.RUnlock()

	versions := l.entries[key{roleID: roleID, candID: candID}]
	history := make([]*profile.Match, 0, len(versions))
	for _, m := range versions {
		history = append(history, m.Clone())
	}

	return history
}

// LatestForRole returns the newest version per candidate for a role,
// ordered by overall score descending, ties by candidate id ascending.
func (l *Ledger) LatestForRole(roleID string) []*profile.Match {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matches := make([]*profile.Match, 0)
	for k, versions := range l.entries {
		if k.roleID != roleID || len(versions) == 0 {
			continue
		}
		matches = append(matches, versions[len(versions)-1].Clone())
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Scores.Overall != matches[j].Scores.Overall {
			return matches[i].Scores.Overall > matches[j].Scores.Overall
		}
		return matches[i].CandidateID < matches[j].CandidateID
	})

	return matches
}

// Purge removes every version for the pair. This is the administrative
// escape hatch; normal operation never deletes history.
func (l *Ledger) Purge(roleID, candID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, key{roleID: roleID, candID: candID})
}

// DumpToTmpFile writes the full ledger as indented JSON to a temporary
// file and returns its name.
func (l *Ledger) DumpToTmpFile() (string, error) {
	l.mu.RLock()
	all := make([]*profile.Match, 0, len(l.entries))
	for _, versions := range l.entries {
		for _, m := range versions {
			all = append(all, m.Clone())
		}
	}
	l.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].RoleID != all[j].RoleID {
			return all[i].RoleID < all[j].RoleID
		}
		if all[i].CandidateID != all[j].CandidateID {
			return all[i].CandidateID < all[j].CandidateID
		}
		return all[i].Version < all[j].Version
	})

	file, err := os.CreateTemp("", "hiregate-matches-*.json")
	if err != nil {
		return "", fmt.Errorf("create tmp file: %w", err)
	}
	defer file.Close()

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal matches: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		return "", fmt.Errorf("write matches: %w", err)
	}

	return file.Name(), nil
}
