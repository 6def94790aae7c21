package settings

import (
	"context"
	"strconv"
	"strings"

	"frcvideos/internal/autorename"
	"frcvideos/internal/config"
	"frcvideos/internal/match"
)

// Source tells where an effective value came from.
type Source string

const (
	SourceConfig   Source = "config"
	SourceOverride Source = "override"
)

// Resolved is the effective value of one key.
type Resolved struct {
	Key         Key    `json:"key"`
	Value       string `json:"value"`
	Source      Source `json:"source"`
	Description string `json:"description"`
}

// Provider layers stored overrides on top of the loaded configuration.
type Provider struct {
	store *Store
	cfg   *config.Config
}

// NewProvider constructs a Provider.
func NewProvider(store *Store, cfg *config.Config) *Provider {
	return &Provider{store: store, cfg: cfg}
}

func (p *Provider) defaults() map[Key]string {
	ar := p.cfg.AutoRename
	return map[Key]string{
		KeyAutoRenameEnabled:            strconv.FormatBool(ar.Enabled),
		KeyMaxStartTimeDiffSecStrong:    strconv.Itoa(ar.MaxStartTimeDiffSecStrong),
		KeyMaxStartTimeDiffSecWeak:      strconv.Itoa(ar.MaxStartTimeDiffSecWeak),
		KeyMinExpectedVideoDurationSecs: strconv.Itoa(ar.MinExpectedVideoDurationSec),
		KeyMaxExpectedVideoDurationSecs: strconv.Itoa(ar.MaxExpectedVideoDurationSec),
		KeyFileNamePatterns:             strings.Join(ar.FileNamePatterns, ","),
		KeyRenameJobDelaySecs:           strconv.Itoa(ar.RenameJobDelaySecs),
		KeyEventKey:                     p.cfg.Event.Key,
		KeyPlayoffsType:                 p.cfg.Event.PlayoffsType,
		KeyVideoSearchDirectory:         p.cfg.Paths.VideoDir,
	}
}

// Effective lists every key with its resolved value, sorted by key.
func (p *Provider) Effective(ctx context.Context) ([]Resolved, error) {
	overrides, err := p.store.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defaults := p.defaults()
	resolved := make([]Resolved, 0, len(definitions))
	for _, key := range Keys() {
		entry := Resolved{Key: key, Value: defaults[key], Source: SourceConfig, Description: Describe(key)}
		if value, ok := overrides[key]; ok {
			entry.Value, entry.Source = value, SourceOverride
		}
		resolved = append(resolved, entry)
	}
	return resolved, nil
}

// AutoRename resolves the matcher settings. A stored value that no longer
// parses is reported as a validation error naming its key.
func (p *Provider) AutoRename(ctx context.Context) (autorename.Settings, error) {
	overrides, err := p.store.snapshot(ctx)
	if err != nil {
		return autorename.Settings{}, err
	}
	values := p.defaults()
	for key, value := range overrides {
		if _, known := definitions[key]; !known {
			continue
		}
		normalized, err := normalize(key, value)
		if err != nil {
			return autorename.Settings{}, err
		}
		values[key] = normalized
	}

	r := resolver{values: values}
	settings := autorename.Settings{
		Enabled:                      r.bool(KeyAutoRenameEnabled),
		EventKey:                     strings.ToLower(strings.TrimSpace(values[KeyEventKey])),
		Location:                     p.cfg.Location(),
		MaxStartTimeDiffSecStrong:    r.int(KeyMaxStartTimeDiffSecStrong),
		MaxStartTimeDiffSecWeak:      r.int(KeyMaxStartTimeDiffSecWeak),
		MinExpectedVideoDurationSecs: r.int(KeyMinExpectedVideoDurationSecs),
		MaxExpectedVideoDurationSecs: r.int(KeyMaxExpectedVideoDurationSecs),
		FileNamePatterns:             splitPatterns(values[KeyFileNamePatterns]),
		RenameJobDelaySecs:           r.int(KeyRenameJobDelaySecs),
		MaxAssociationAttempts:       p.cfg.AutoRename.MaxAssociationAttempts,
	}
	settings.PlayoffsType, err = match.ParsePlayoffsType(values[KeyPlayoffsType])
	if err != nil {
		r.fail(validationErrorf("%s: %v", KeyPlayoffsType, err))
	}
	settings.VideoDir, err = config.ExpandPath(strings.TrimSpace(values[KeyVideoSearchDirectory]))
	if err != nil {
		r.fail(validationErrorf("%s: %v", KeyVideoSearchDirectory, err))
	}
	if r.err != nil {
		return autorename.Settings{}, r.err
	}
	return settings, nil
}

// resolver parses values, keeping the first failure.
type resolver struct {
	values map[Key]string
	err    error
}

func (r *resolver) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *resolver) bool(key Key) bool {
	b, err := strconv.ParseBool(r.values[key])
	if err != nil {
		r.fail(validationErrorf("%s: %q is not a boolean", key, r.values[key]))
	}
	return b
}

func (r *resolver) int(key Key) int {
	n, err := strconv.Atoi(r.values[key])
	if err != nil {
		r.fail(validationErrorf("%s: %q is not an integer", key, r.values[key]))
	}
	return n
}
