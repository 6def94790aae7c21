package autorename

import (
	"fmt"
	"math"
	"time"

	"frcvideos/internal/match"
)

// Thresholds are the tolerances used to classify an association.
type Thresholds struct {
	MaxStartTimeDiffSecStrong int
	MaxStartTimeDiffSecWeak   int
	MinDurationSecs           int
	MaxDurationSecs           int
}

func (s Settings) thresholds() Thresholds {
	return Thresholds{
		MaxStartTimeDiffSecStrong: s.MaxStartTimeDiffSecStrong,
		MaxStartTimeDiffSecWeak:   s.MaxStartTimeDiffSecWeak,
		MinDurationSecs:           s.MinExpectedVideoDurationSecs,
		MaxDurationSecs:           s.MaxExpectedVideoDurationSecs,
	}
}

// Classification is the confidence assigned to a candidate match.
type Classification struct {
	Status                Status
	Reason                string
	VideoDurationAbnormal bool
	StartTimeDiffAbnormal bool
}

// Classify applies the two-threshold scheme to the exact start-time
// difference. A nil duration means the probe was unavailable and counts as
// out of range.
func Classify(t Thresholds, diff time.Duration, duration *float64) Classification {
	strong := time.Duration(t.MaxStartTimeDiffSecStrong) * time.Second
	weak := time.Duration(t.MaxStartTimeDiffSecWeak) * time.Second
	durationOK := duration != nil &&
		*duration >= float64(t.MinDurationSecs) && *duration <= float64(t.MaxDurationSecs)
	c := Classification{
		VideoDurationAbnormal: !durationOK,
		StartTimeDiffAbnormal: diff > weak,
	}
	switch {
	case diff <= strong && durationOK:
		c.Status = StatusStrong
		c.Reason = fmt.Sprintf("start time within %ds and duration within range", t.MaxStartTimeDiffSecStrong)
	case diff <= strong:
		c.Status = StatusWeak
		c.Reason = "start time within strong threshold but duration out of range"
	case diff <= weak:
		c.Status = StatusWeak
		c.Reason = fmt.Sprintf("start time within %ds", t.MaxStartTimeDiffSecWeak)
	default:
		c.Status = StatusUnmatched
		c.Reason = fmt.Sprintf("start time off by %ds", DiffSeconds(diff))
	}
	return c
}

// DiffSeconds rounds a start-time difference to whole seconds for storage.
func DiffSeconds(diff time.Duration) int64 {
	return int64(math.Round(diff.Seconds()))
}

// NearestMatch returns the match whose start time is closest to ts and the
// absolute difference. Ties keep the first match encountered.
func NearestMatch(matches []match.Match, ts time.Time) (match.Match, time.Duration, bool) {
	var (
		best     match.Match
		bestDiff time.Duration
		found    bool
	)
	for _, candidate := range matches {
		diff := candidate.StartTime.Sub(ts).Abs()
		if !found || diff < bestDiff {
			best, bestDiff, found = candidate, diff, true
		}
	}
	if !found {
		return match.Match{}, 0, false
	}
	return best, bestDiff, true
}
