// Package index owns profile embeddings: it turns canonical profile text
// into vectors through the embedding oracle and serves similarity lookups
// for pool selection.
package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/spigell/hiregate/internal/ai"
	"github.com/spigell/hiregate/internal/profile"

	"go.uber.org/zap"
)

const (
	rolesCollection      = "roles"
	candidatesCollection = "candidates"
)

// Config holds vector store settings.
type Config struct {
	// PersistPath enables on-disk persistence when set; otherwise the
	// store is in-memory only.
	PersistPath string
}

// Store keeps role and candidate vectors in chromem collections keyed by
// profile id. Upserts are atomic per id: a reader never observes a
// partially written vector.
type Store struct {
	db         *chromem.DB
	roles      *chromem.Collection
	candidates *chromem.Collection
	embedder   ai.Embedder
	logger     *zap.Logger

	mu sync.Mutex
}

func NewStore(cfg Config, embedder ai.Embedder, logger *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.PersistPath, "vectors.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("create persistent vector db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	roles, err := db.GetOrCreateCollection(rolesCollection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create roles collection: %w", err)
	}

	candidates, err := db.GetOrCreateCollection(candidatesCollection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create candidates collection: %w", err)
	}

	return &Store{
		db:         db,
		roles:      roles,
		candidates: candidates,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// UpsertRole recomputes the role's embedding from its canonical text and
// replaces any vector stored under its id.
func (s *Store) UpsertRole(ctx context.Context, r *profile.Role) error {
	return s.upsert(ctx, s.roles, r.ID, r.CanonicalText())
}

// UpsertCandidate recomputes the candidate's embedding from its canonical
// text and replaces any vector stored under its id. Cached similarity
// results for the candidate are invalid after this call.
func (s *Store) UpsertCandidate(ctx context.Context, c *profile.Candidate) error {
	return s.upsert(ctx, s.candidates, c.ID, c.CanonicalText())
}

func (s *Store) upsert(ctx context.Context, collection *chromem.Collection, id, text string) error {
	if id == "" {
		return fmt.Errorf("profile id is required")
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed profile %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: vector,
	}); err != nil {
		return fmt.Errorf("store vector for %s: %w", id, err)
	}

	s.logger.Debug("vector upserted",
		zap.String("profile_id", id),
		zap.Int("dimensions", len(vector)),
	)

	return nil
}

// RoleEmbedding returns the stored vector for a role id.
func (s *Store) RoleEmbedding(ctx context.Context, id string) ([]float32, error) {
	doc, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("role %s is not indexed: %w", id, err)
	}

	return doc.Embedding, nil
}

// CandidateCount returns the number of indexed candidate vectors.
func (s *Store) CandidateCount() int {
	return s.candidates.Count()
}

// NearestCandidates returns up to k candidate ids by descending cosine
// similarity to the query vector.
func (s *Store) NearestCandidates(ctx context.Context, query []float32, k int) ([]chromem.Result, error) {
	if count := s.candidates.Count(); k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := s.candidates.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}

	return results, nil
}
