package autorename

import (
	"context"
	"fmt"
	"strings"

	"frcvideos/internal/logging"
	"frcvideos/internal/match"
)

// OverrideRequest force-sets an association's match and status.
type OverrideRequest struct {
	EventKey string `json:"eventKey"`
	FilePath string `json:"filePath"`
	MatchKey string `json:"matchKey"`
	Status   string `json:"status"`
}

// Override applies an operator correction. STRONG schedules (or
// reschedules) the rename; any other status cancels a pending rename.
// Associations whose rename already completed are refused.
func (m *Matcher) Override(ctx context.Context, req OverrideRequest) (*Association, error) {
	status, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	key := Key{EventKey: strings.TrimSpace(req.EventKey), FilePath: strings.TrimSpace(req.FilePath)}
	if key.EventKey == "" || key.FilePath == "" {
		return nil, validationErrorf("eventKey and filePath are required")
	}
	settings, err := m.settings.AutoRename(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	var matchKey match.MatchKey
	matchKeyText := strings.ToLower(strings.TrimSpace(req.MatchKey))
	switch status {
	case StatusStrong, StatusWeak:
		if matchKeyText == "" {
			return nil, validationErrorf("matchKey is required for %s", status)
		}
		matchKey, err = match.ParseKey(matchKeyText, settings.PlayoffsType)
		if err != nil {
			return nil, wrapValidation(err)
		}
		if matchKey.EventKey() != key.EventKey {
			return nil, validationErrorf("match %s does not belong to event %s", matchKeyText, key.EventKey)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	unlock, err := m.lockFile(ctx, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	a, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssociationNotFound, key)
	}
	if a.RenameCompleted {
		return nil, fmt.Errorf("%w: %s", ErrRenameCompleted, key)
	}

	logger := m.logger.With(
		logging.String(logging.FieldEventKey, key.EventKey),
		logging.String(logging.FieldFilePath, key.FilePath),
	)
	previous := a.Status
	a.Status = status
	a.StatusReason = ReasonManual
	a.OrderingIssueMatchKey, a.OrderingIssueMatchName = "", ""

	if status == StatusStrong {
		if err := m.promote(ctx, settings, a, matchKey, ReasonManual); err != nil {
			return nil, err
		}
		if err := m.advanceIfLater(ctx, a, matchKey); err != nil {
			return nil, err
		}
	} else {
		if _, err := m.coordinator.CancelRename(ctx, key); err != nil {
			return nil, err
		}
		a.NewFileName, a.RenameJobID, a.RenameAfter = "", "", nil
		switch status {
		case StatusWeak:
			a.MatchKey, a.MatchName = matchKey.String(), matchKey.Name()
		case StatusUnmatched:
			a.MatchKey, a.MatchName = "", ""
			a.AssociationAttempts = 0
		}
		if err := m.store.Update(ctx, a); err != nil {
			return nil, err
		}
	}

	logger.Info("association overridden",
		logging.Args(append(logging.DecisionAttrs("auto_rename_override", string(status), ReasonManual),
			logging.String("previous_status", string(previous)),
			logging.String(logging.FieldMatchKey, a.MatchKey),
		)...)...,
	)
	m.notifyUpdated(a)
	return a, nil
}

// advanceIfLater moves the label's high-water-mark to key unless it is
// already at or past it.
func (m *Matcher) advanceIfLater(ctx context.Context, a *Association, key match.MatchKey) error {
	check, err := m.guard.Check(ctx, a.EventKey, a.VideoLabel, key)
	if err != nil {
		return err
	}
	if check.Issue {
		return nil
	}
	return m.store.SetHighWaterMark(ctx, a.EventKey, a.VideoLabel, key.String(), key.Name())
}
