// Package gate enforces the invite-only guarantee: candidates only ever
// receive the application link after a manager approved their match.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/hiregate/internal/ledger"
	"github.com/spigell/hiregate/internal/profile"

	"go.uber.org/zap"
)

// ErrIllegalTransition marks an attempt to move a match out of a terminal
// status, such as rejecting an already-approved match.
var ErrIllegalTransition = errors.New("illegal match status transition")

// Notifier delivers the release message to a candidate's contact handle.
// Delivery is fire-and-forget: confirmation is out of scope here.
type Notifier interface {
	Notify(ctx context.Context, contact, body string) error
}

// Controller applies manager decisions to matches. Status flow is
// pending -> approved -> released, or pending -> rejected; released and
// rejected are terminal.
type Controller struct {
	ledger   *ledger.Ledger
	notifier Notifier
	logger   *zap.Logger
}

func NewController(l *ledger.Ledger, notifier Notifier, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{ledger: l, notifier: notifier, logger: logger}
}

// Approve marks the pair's match approved and emits exactly one release
// event carrying the role's application instructions. Approving an
// already-approved or released match is a no-op, never a second release.
func (c *Controller) Approve(ctx context.Context, role *profile.Role, cand *profile.Candidate) (*profile.Match, error) {
	if role == nil || cand == nil {
		return nil, fmt.Errorf("role and candidate are required")
	}

	latest, err := c.ledger.Latest(role.ID, cand.ID)
	if err != nil {
		// No match on record means no release: the candidate was never
		// scored against this role.
		return nil, err
	}

	switch latest.Status {
	case profile.StatusApproved, profile.StatusReleased:
		c.logger.Debug("approve is a no-op",
			zap.String("role_id", role.ID),
			zap.String("candidate_id", cand.ID),
			zap.String("status", string(latest.Status)),
		)
		return latest, nil
	case profile.StatusRejected:
		return nil, fmt.Errorf("%w: match (%s, %s) is rejected", ErrIllegalTransition, role.ID, cand.ID)
	}

	approved, err := c.transition(latest, profile.StatusApproved)
	if err != nil {
		return nil, err
	}

	c.logger.Info("match approved",
		zap.String("role_id", role.ID),
		zap.String("candidate_id", cand.ID),
		zap.Float64("overall", approved.Scores.Overall),
	)

	body := releaseMessage(role)
	if err := c.notifier.Notify(ctx, cand.Contact, body); err != nil {
		// Fire-and-forget channel: a delivery hiccup must not re-open
		// the gate and cause a duplicate release on retry.
		c.logger.Warn("release notification failed",
			zap.String("candidate_id", cand.ID),
			zap.Error(err),
		)
	}

	released, err := c.transition(approved, profile.StatusReleased)
	if err != nil {
		return nil, err
	}

	c.logger.Info("application link released",
		zap.String("role_id", role.ID),
		zap.String("candidate_id", cand.ID),
		zap.String("contact", cand.Contact),
	)

	return released, nil
}

// Reject marks the pair's match rejected. No release event is ever
// emitted. Rejecting an approved or released match is refused.
func (c *Controller) Reject(roleID, candID string) (*profile.Match, error) {
	latest, err := c.ledger.Latest(roleID, candID)
	if err != nil {
		return nil, err
	}

	switch latest.Status {
	case profile.StatusRejected:
		return latest, nil
	case profile.StatusApproved, profile.StatusReleased:
		return nil, fmt.Errorf("%w: match (%s, %s) is already %s", ErrIllegalTransition, roleID, candID, latest.Status)
	}

	rejected, err := c.transition(latest, profile.StatusRejected)
	if err != nil {
		return nil, err
	}

	c.logger.Info("match rejected",
		zap.String("role_id", roleID),
		zap.String("candidate_id", candID),
	)

	return rejected, nil
}

// transition appends a new version of the match under the target status.
func (c *Controller) transition(m *profile.Match, to profile.Status) (*profile.Match, error) {
	next := m.Clone()
	next.Status = to
	next.CreatedAt = time.Time{}

	stored, err := c.ledger.Append(next)
	if err != nil {
		return nil, fmt.Errorf("record %s transition: %w", to, err)
	}

	return stored, nil
}

func releaseMessage(role *profile.Role) string {
	return fmt.Sprintf("Good news! You have been approved for %q. Apply here: %s", role.Title, role.Instructions)
}
