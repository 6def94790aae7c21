package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"frcvideos/internal/match"
)

// Key names a stored setting.
type Key string

const (
	KeyAutoRenameEnabled            Key = "autoRenameEnabled"
	KeyMaxStartTimeDiffSecStrong    Key = "autoRenameMaxStartTimeDiffSecStrong"
	KeyMaxStartTimeDiffSecWeak      Key = "autoRenameMaxStartTimeDiffSecWeak"
	KeyMinExpectedVideoDurationSecs Key = "autoRenameMinExpectedVideoDurationSecs"
	KeyMaxExpectedVideoDurationSecs Key = "autoRenameMaxExpectedVideoDurationSecs"
	KeyFileNamePatterns             Key = "autoRenameFileNamePatterns"
	KeyRenameJobDelaySecs           Key = "autoRenameFileRenameJobDelaySecs"
	KeyEventKey                     Key = "eventKey"
	KeyPlayoffsType                 Key = "playoffsType"
	KeyVideoSearchDirectory         Key = "videoSearchDirectory"
)

type kind int

const (
	kindBool kind = iota
	kindNonNegativeInt
	kindPatterns
	kindEventKey
	kindPlayoffs
	kindPath
)

type definition struct {
	key         Key
	kind        kind
	description string
}

var definitions = map[Key]definition{
	KeyAutoRenameEnabled:            {KeyAutoRenameEnabled, kindBool, "run matching passes on the scan interval"},
	KeyMaxStartTimeDiffSecStrong:    {KeyMaxStartTimeDiffSecStrong, kindNonNegativeInt, "largest start offset (s) for a STRONG match"},
	KeyMaxStartTimeDiffSecWeak:      {KeyMaxStartTimeDiffSecWeak, kindNonNegativeInt, "largest start offset (s) for a WEAK match"},
	KeyMinExpectedVideoDurationSecs: {KeyMinExpectedVideoDurationSecs, kindNonNegativeInt, "shortest normal recording (s)"},
	KeyMaxExpectedVideoDurationSecs: {KeyMaxExpectedVideoDurationSecs, kindNonNegativeInt, "longest normal recording (s)"},
	KeyFileNamePatterns:             {KeyFileNamePatterns, kindPatterns, "comma-separated recording name date patterns"},
	KeyRenameJobDelaySecs:           {KeyRenameJobDelaySecs, kindNonNegativeInt, "wait (s) between STRONG classification and rename"},
	KeyEventKey:                     {KeyEventKey, kindEventKey, "active event key"},
	KeyPlayoffsType:                 {KeyPlayoffsType, kindPlayoffs, "bracket format of the active event"},
	KeyVideoSearchDirectory:         {KeyVideoSearchDirectory, kindPath, "root folder scanned for recordings"},
}

// Keys returns every known key sorted by name.
func Keys() []Key {
	keys := make([]Key, 0, len(definitions))
	for key := range definitions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Describe returns the one-line help text of key.
func Describe(key Key) string {
	return definitions[key].description
}

// ParseKey resolves a user-supplied key name, ignoring case.
func ParseKey(name string) (Key, error) {
	name = strings.TrimSpace(name)
	for key := range definitions {
		if strings.EqualFold(string(key), name) {
			return key, nil
		}
	}
	return "", validationErrorf("unknown setting %q", name)
}

// normalize checks value against the key's type and returns its stored form.
func normalize(key Key, value string) (string, error) {
	def, ok := definitions[key]
	if !ok {
		return "", validationErrorf("unknown setting %q", key)
	}
	value = strings.TrimSpace(value)
	switch def.kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", validationErrorf("%s: %q is not a boolean", key, value)
		}
		return strconv.FormatBool(b), nil
	case kindNonNegativeInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "", validationErrorf("%s: %q is not a non-negative integer", key, value)
		}
		return strconv.Itoa(n), nil
	case kindPatterns:
		patterns := splitPatterns(value)
		if len(patterns) == 0 {
			return "", validationErrorf("%s: at least one pattern is required", key)
		}
		return strings.Join(patterns, ","), nil
	case kindEventKey:
		lowered := strings.ToLower(value)
		if !match.ValidEventKey(lowered) {
			return "", validationErrorf("%s: %q must look like 2023gadal", key, value)
		}
		return lowered, nil
	case kindPlayoffs:
		playoffs, err := match.ParsePlayoffsType(value)
		if err != nil {
			return "", validationErrorf("%s: %v", key, err)
		}
		return string(playoffs), nil
	case kindPath:
		if value == "" {
			return "", validationErrorf("%s: path is required", key)
		}
		return value, nil
	}
	return "", fmt.Errorf("setting %s has no parser", key)
}

func splitPatterns(value string) []string {
	var patterns []string
	for part := range strings.SplitSeq(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
