package autorename

import (
	"context"
	"fmt"

	"frcvideos/internal/match"
)

// OrderingCheck is the outcome of an ordering guard lookup.
type OrderingCheck struct {
	// Issue is set when the candidate is not after the stored match.
	Issue bool
	// Stored is the label's high-water-mark, nil when none is recorded.
	Stored     *match.MatchKey
	StoredName string
}

// Guard rejects STRONG associations that would move a label backwards in the
// competition. It never mutates state; callers advance the high-water-mark
// after a STRONG association survives.
type Guard struct {
	store *Store
}

// NewGuard constructs a Guard reading metadata from store.
func NewGuard(store *Store) *Guard {
	return &Guard{store: store}
}

// Check compares candidate with the stored high-water-mark of
// (eventKey, label).
func (g *Guard) Check(ctx context.Context, eventKey, label string, candidate match.MatchKey) (OrderingCheck, error) {
	meta, err := g.store.Metadata(ctx, eventKey, label)
	if err != nil {
		return OrderingCheck{}, err
	}
	if meta == nil || meta.LastStrongAssociationMatchKey == "" {
		return OrderingCheck{}, nil
	}
	stored, err := match.ParseKey(meta.LastStrongAssociationMatchKey, candidate.PlayoffsType)
	if err != nil {
		return OrderingCheck{}, wrapValidation(fmt.Errorf("stored high water mark for %s/%s: %w", eventKey, label, err))
	}
	name := meta.LastStrongAssociationMatchName
	if name == "" {
		name = stored.Name()
	}
	return OrderingCheck{
		Issue:      OrderingConflict(stored, candidate),
		Stored:     &stored,
		StoredName: name,
	}, nil
}

// OrderingConflict reports whether candidate fails to come after stored.
func OrderingConflict(stored, candidate match.MatchKey) bool {
	return !candidate.IsAfter(stored)
}
