package matchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"frcvideos/internal/logging"
	"frcvideos/internal/match"
	"frcvideos/internal/metrics"
)

const cacheSize = 16

// Fetcher returns the raw match list of an event.
type Fetcher interface {
	EventMatches(ctx context.Context, eventKey string) ([]TBAMatch, error)
}

// Service converts TBA matches into scored match.Match values and caches
// them per event for a short TTL.
type Service struct {
	fetcher Fetcher
	cache   *expirable.LRU[string, []match.Match]
	logger  *slog.Logger
}

// NewService wraps fetcher. A ttl of zero disables caching.
func NewService(fetcher Fetcher, ttl time.Duration, logger *slog.Logger) *Service {
	s := &Service{
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "matchlist"),
	}
	if ttl > 0 {
		s.cache = expirable.NewLRU[string, []match.Match](cacheSize, nil, ttl)
	}
	return s
}

// Matches returns the event's played matches ordered by start time.
func (s *Service) Matches(ctx context.Context, eventKey string, playoffs match.PlayoffsType) ([]match.Match, error) {
	cacheKey := eventKey + "|" + string(playoffs)
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			metrics.MatchListCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.MatchListCache.WithLabelValues("miss").Inc()
	}

	raw, err := s.fetcher.EventMatches(ctx, eventKey)
	if err != nil {
		return nil, fmt.Errorf("fetch matches for %s: %w", eventKey, err)
	}
	matches := make([]match.Match, 0, len(raw))
	skipped := 0
	for _, m := range raw {
		if m.ActualTime == nil {
			continue
		}
		key, err := match.ParseKey(m.Key, playoffs)
		if err != nil {
			skipped++
			s.logger.Debug("ignoring unparseable match key",
				logging.String(logging.FieldMatchKey, m.Key),
				logging.Error(err),
			)
			continue
		}
		matches = append(matches, match.Match{Key: key, StartTime: time.Unix(*m.ActualTime, 0).UTC()})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].StartTime.Before(matches[j].StartTime)
	})
	if skipped > 0 {
		logging.WarnWithContext(s.logger, "match list contained unparseable keys", "match_list_keys_skipped",
			logging.String(logging.FieldEventKey, eventKey),
			logging.Int("skipped", skipped),
			logging.String(logging.FieldErrorHint, "check playoffs type matches the event bracket"),
			logging.String(logging.FieldImpact, "recordings of those matches cannot be associated"),
		)
	}
	if s.cache != nil {
		s.cache.Add(cacheKey, matches)
	}
	return matches, nil
}

// Invalidate drops any cached list for eventKey.
func (s *Service) Invalidate(eventKey string) {
	if s.cache == nil {
		return
	}
	for _, key := range s.cache.Keys() {
		if strings.HasPrefix(key, eventKey+"|") {
			s.cache.Remove(key)
		}
	}
}
