package match

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrInvalidMatchKey reports a key that does not follow the match grammar.
	ErrInvalidMatchKey = errors.New("invalid match key")
	// ErrInvalidSetNumber reports a set number outside the bracket's range.
	ErrInvalidSetNumber = errors.New("invalid set number")
)

var (
	matchKeyPattern = regexp.MustCompile(`^(\d{4})([a-z]+)_(q|qf|sf|f)(\d{1,2})?m(\d+)$`)
	eventKeyPattern = regexp.MustCompile(`^\d{4}[a-z]+$`)
)

// CompLevel is the competition level segment of a match key.
type CompLevel string

const (
	Qualification CompLevel = "q"
	Quarterfinal  CompLevel = "qf"
	Semifinal     CompLevel = "sf"
	Final         CompLevel = "f"
)

func (l CompLevel) rank() int {
	switch l {
	case Qualification:
		return 0
	case Quarterfinal:
		return 1
	case Semifinal:
		return 2
	case Final:
		return 3
	default:
		return -1
	}
}

// MatchKey is a parsed match identifier. SetNumber is zero when the key has
// no set segment.
type MatchKey struct {
	Year         int
	EventCode    string
	CompLevel    CompLevel
	SetNumber    int
	MatchNumber  int
	PlayoffsType PlayoffsType
}

// Match is a scored match with its actual start time.
type Match struct {
	Key       MatchKey
	StartTime time.Time
}

// ValidEventKey reports whether key looks like an event key (2023gadal).
func ValidEventKey(key string) bool {
	return eventKeyPattern.MatchString(key)
}

// ParseKey parses key under the given playoffs format.
func ParseKey(key string, playoffs PlayoffsType) (MatchKey, error) {
	parts := matchKeyPattern.FindStringSubmatch(key)
	if parts == nil {
		return MatchKey{}, fmt.Errorf("%w: %q", ErrInvalidMatchKey, key)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return MatchKey{}, fmt.Errorf("%w: %q: year: %v", ErrInvalidMatchKey, key, err)
	}
	setNumber := 0
	if parts[4] != "" {
		if setNumber, err = strconv.Atoi(parts[4]); err != nil {
			return MatchKey{}, fmt.Errorf("%w: %q: set: %v", ErrInvalidMatchKey, key, err)
		}
	}
	matchNumber, err := strconv.Atoi(parts[5])
	if err != nil {
		return MatchKey{}, fmt.Errorf("%w: %q: match: %v", ErrInvalidMatchKey, key, err)
	}
	parsed := MatchKey{
		Year:         year,
		EventCode:    parts[2],
		CompLevel:    CompLevel(parts[3]),
		SetNumber:    setNumber,
		MatchNumber:  matchNumber,
		PlayoffsType: playoffs,
	}
	if playoffs == DoubleElimination && parsed.CompLevel == Semifinal {
		if _, err := DoubleElimRound(float64(setNumber)); err != nil {
			return MatchKey{}, fmt.Errorf("%q: %w", key, err)
		}
	}
	return parsed, nil
}

// String reconstructs the canonical key.
func (k MatchKey) String() string {
	set := ""
	if k.SetNumber > 0 {
		set = strconv.Itoa(k.SetNumber)
	}
	return fmt.Sprintf("%s_%s%sm%d", k.EventKey(), k.CompLevel, set, k.MatchNumber)
}

// EventKey returns the event portion of the key.
func (k MatchKey) EventKey() string {
	return fmt.Sprintf("%04d%s", k.Year, k.EventCode)
}

// IsPlayoff reports whether the match is beyond qualifications.
func (k MatchKey) IsPlayoff() bool {
	return k.CompLevel != Qualification
}

// DoubleElimRound maps a double elimination set number onto its bracket
// round: sets 1-4 are round 1, 5-8 round 2, 9-10 round 3, 11-12 round 4 and
// 13 round 5.
func DoubleElimRound(setNumber float64) (int, error) {
	if setNumber != math.Trunc(setNumber) || setNumber < 1 || setNumber > 13 {
		return 0, fmt.Errorf("%w: %v is not an integer in [1,13]", ErrInvalidSetNumber, setNumber)
	}
	switch n := int(setNumber); {
	case n <= 4:
		return 1, nil
	case n <= 8:
		return 2, nil
	case n <= 10:
		return 3, nil
	case n <= 12:
		return 4, nil
	default:
		return 5, nil
	}
}
