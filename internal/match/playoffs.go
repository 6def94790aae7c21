package match

import (
	"fmt"
	"strings"
)

// PlayoffsType tags the bracket format of an event.
type PlayoffsType string

const (
	// DoubleElimination is the sixteen-set double elimination bracket.
	DoubleElimination PlayoffsType = "double_elimination"
	// BestOf3 is the classic quarterfinal/semifinal/final bracket.
	BestOf3 PlayoffsType = "best_of_3"
)

// ParsePlayoffsType accepts the canonical tags plus common spellings such as
// "Double Elimination" or "best-of-3".
func ParsePlayoffsType(value string) (PlayoffsType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	switch normalized {
	case string(DoubleElimination), "double_elim", "de":
		return DoubleElimination, nil
	case string(BestOf3), "bestof3", "bo3":
		return BestOf3, nil
	default:
		return "", fmt.Errorf("unknown playoffs type %q (want %s or %s)", value, DoubleElimination, BestOf3)
	}
}

func (p PlayoffsType) String() string {
	return string(p)
}
