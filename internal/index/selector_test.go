package index

import (
	"context"
	"errors"
	"testing"

	"github.com/spigell/hiregate/internal/profile"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEmbedder returns fixed unit vectors per input text, defaulting to a
// constant vector for unknown inputs. Deterministic by construction.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func newTestStore(t *testing.T, vectors map[string][]float32) *Store {
	t.Helper()

	store, err := NewStore(Config{}, &stubEmbedder{vectors: vectors}, zap.NewNop())
	require.NoError(t, err)

	return store
}

func TestPoolOrderingAndTieBreak(t *testing.T) {
	ctx := context.Background()

	store := newTestStore(t, map[string][]float32{
		"role":   {1, 0},
		"far":    {0, 1},
		"tied-1": {0.8, 0.6},
		"tied-2": {0.8, 0.6},
	})

	role := &profile.Role{ID: "role-1", Title: "role"}
	require.NoError(t, store.UpsertRole(ctx, role))

	for id, summary := range map[string]string{
		"cand-c": "far",
		"cand-b": "tied-2",
		"cand-a": "tied-1",
	} {
		require.NoError(t, store.UpsertCandidate(ctx, &profile.Candidate{ID: id, Summary: summary}))
	}

	selector := NewSelector(store, zap.NewNop())

	entries, err := selector.Pool(ctx, "role-1", 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Equal similarities break ties by ascending candidate id.
	require.Equal(t, []string{"cand-a", "cand-b", "cand-c"}, IDs(entries))
	require.GreaterOrEqual(t, entries[0].Similarity, entries[1].Similarity)
	require.Greater(t, entries[1].Similarity, entries[2].Similarity)
}

func TestPoolNeverExceedsK(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	require.NoError(t, store.UpsertRole(ctx, &profile.Role{ID: "role-1", Title: "role"}))
	for _, id := range []string{"cand-a", "cand-b", "cand-c"} {
		require.NoError(t, store.UpsertCandidate(ctx, &profile.Candidate{ID: id, Summary: id}))
	}

	selector := NewSelector(store, zap.NewNop())

	entries, err := selector.Pool(ctx, "role-1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestPoolDefaultSizeHasMinimumOne(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	require.NoError(t, store.UpsertRole(ctx, &profile.Role{ID: "role-1", Title: "role"}))
	// Three candidates: 10% rounds down to zero, the minimum kicks in.
	for _, id := range []string{"cand-a", "cand-b", "cand-c"} {
		require.NoError(t, store.UpsertCandidate(ctx, &profile.Candidate{ID: id, Summary: id}))
	}

	selector := NewSelector(store, zap.NewNop())

	entries, err := selector.Pool(ctx, "role-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestPoolEmptyIsAnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	require.NoError(t, store.UpsertRole(ctx, &profile.Role{ID: "role-1", Title: "role"}))

	selector := NewSelector(store, zap.NewNop())

	_, err := selector.Pool(ctx, "role-1", 5)
	require.True(t, errors.Is(err, ErrEmptyPool), "expected ErrEmptyPool, got %v", err)
}

func TestPoolUnknownRole(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	require.NoError(t, store.UpsertCandidate(ctx, &profile.Candidate{ID: "cand-a", Summary: "dev"}))

	selector := NewSelector(store, zap.NewNop())

	_, err := selector.Pool(ctx, "missing-role", 1)
	require.Error(t, err)
}
