package index

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// ErrEmptyPool signals that no candidates are indexed yet. It is reported,
// not fatal: callers may retry once new candidates complete intake. An
// empty pool is deliberately distinct from zero matches.
var ErrEmptyPool = errors.New("candidate pool is empty")

// DefaultPoolFraction is the share of indexed candidates selected when no
// explicit pool size is configured.
const DefaultPoolFraction = 0.1

// PoolEntry is one pre-filtered candidate with its similarity to the role.
type PoolEntry struct {
	CandidateID string
	Similarity  float64
}

// Selector pre-filters candidates by vector similarity to a role. The pool
// is a performance optimization for scoring, not a hard rejection of
// out-of-pool candidates.
type Selector struct {
	store  *Store
	logger *zap.Logger
}

func NewSelector(store *Store, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{store: store, logger: logger}
}

// Pool returns up to k candidate ids ordered by descending similarity to
// the role vector, ties broken by candidate id ascending. A k of zero or
// less selects DefaultPoolFraction of the indexed candidates, minimum one.
func (s *Selector) Pool(ctx context.Context, roleID string, k int) ([]PoolEntry, error) {
	total := s.store.CandidateCount()
	if total == 0 {
		return nil, ErrEmptyPool
	}

	if k <= 0 {
		k = int(float64(total) * DefaultPoolFraction)
		if k < 1 {
			k = 1
		}
	}
	if k > total {
		k = total
	}

	vector, err := s.store.RoleEmbedding(ctx, roleID)
	if err != nil {
		return nil, err
	}

	results, err := s.store.NearestCandidates(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("pool selection for role %s: %w", roleID, err)
	}

	entries := make([]PoolEntry, 0, len(results))
	for _, result := range results {
		entries = append(entries, PoolEntry{
			CandidateID: result.ID,
			Similarity:  float64(result.Similarity),
		})
	}

	// The backend orders by similarity but leaves tie order unspecified;
	// matching rounds must be deterministic.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Similarity != entries[j].Similarity {
			return entries[i].Similarity > entries[j].Similarity
		}
		return entries[i].CandidateID < entries[j].CandidateID
	})

	s.logger.Debug("candidate pool selected",
		zap.String("role_id", roleID),
		zap.Int("pool_size", len(entries)),
		zap.Int("indexed_candidates", total),
	)

	return entries, nil
}

// IDs flattens pool entries into the ordered id list.
func IDs(entries []PoolEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.CandidateID)
	}
	return ids
}
