package cmd

import (
	"context"
	"testing"

	"github.com/spigell/hiregate/internal/gate"
	"github.com/spigell/hiregate/internal/ledger"
	"github.com/spigell/hiregate/internal/profile"
	"github.com/spigell/hiregate/internal/scoring"
	"go.uber.org/zap"
)

type stubNotifier struct {
	calls int
}

func (n *stubNotifier) Notify(context.Context, string, string) error {
	n.calls++
	return nil
}

func reviewFixture(t *testing.T) (*gate.Controller, *stubNotifier, *profile.Role, *profile.Candidate) {
	t.Helper()

	l, err := ledger.New(scoring.DefaultWeights())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	role := &profile.Role{ID: "role-1", Title: "Backend Engineer", Instructions: "apply@example.com"}
	cand := &profile.Candidate{ID: "cand-1", Contact: "+1-555-0100", Screened: true}

	if _, err := l.Append(&profile.Match{
		RoleID:      role.ID,
		CandidateID: cand.ID,
		Scores: profile.Scores{
			Skills:      0.8,
			Personality: 0.7,
			TradeOffs:   0.6,
			Overall:     0.4*0.8 + 0.4*0.7 + 0.2*0.6,
		},
		Status: profile.StatusPending,
	}); err != nil {
		t.Fatalf("seed match: %v", err)
	}

	notifier := &stubNotifier{}
	return gate.NewController(l, notifier, zap.NewNop()), notifier, role, cand
}

func TestDecideRejectAfterApproveKeepsReviewAlive(t *testing.T) {
	controller, notifier, role, cand := reviewFixture(t)

	if err := decide(context.Background(), controller, zap.NewNop(), role, cand, "approve"); err != nil {
		t.Fatalf("approve verdict: %v", err)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one release, got %d", notifier.calls)
	}

	// A mis-click on reject after the release must not abort the loop.
	if err := decide(context.Background(), controller, zap.NewNop(), role, cand, "reject"); err != nil {
		t.Fatalf("expected refused verdict to be swallowed, got %v", err)
	}
	if notifier.calls != 1 {
		t.Fatalf("refused verdict must not touch the release count, got %d", notifier.calls)
	}
}

func TestDecideRejectPendingMatch(t *testing.T) {
	controller, notifier, role, cand := reviewFixture(t)

	if err := decide(context.Background(), controller, zap.NewNop(), role, cand, "reject"); err != nil {
		t.Fatalf("reject verdict: %v", err)
	}
	if notifier.calls != 0 {
		t.Fatalf("rejected match must never release, got %d", notifier.calls)
	}

	// Approving a rejected match is refused but also survivable.
	if err := decide(context.Background(), controller, zap.NewNop(), role, cand, "approve"); err != nil {
		t.Fatalf("expected refused verdict to be swallowed, got %v", err)
	}
	if notifier.calls != 0 {
		t.Fatalf("refused approve must not release, got %d", notifier.calls)
	}
}
