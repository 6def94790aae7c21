package autorename

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"frcvideos/internal/match"
)

// Status is an association's confidence tier.
type Status string

const (
	StatusUnmatched Status = "UNMATCHED"
	StatusWeak      Status = "WEAK"
	StatusStrong    Status = "STRONG"
	StatusFailed    Status = "FAILED"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusUnmatched, StatusWeak, StatusStrong, StatusFailed}

// ParseStatus resolves a status name case-insensitively.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range Statuses {
		if candidate == status {
			return status, nil
		}
	}
	return "", validationErrorf("unknown association status %q", value)
}

// Status reasons recorded on terminal or operator transitions.
const (
	ReasonUnparseableDate  = "unable to parse date from file name"
	ReasonMaxAttempts      = "max attempts reached"
	ReasonOrderingConflict = "match is not after the last strong match for this label"
	ReasonManual           = "manually set"
	ReasonRenameCollision  = "rename failed: destination exists"
)

// Key identifies an association.
type Key struct {
	EventKey string `json:"eventKey"`
	FilePath string `json:"filePath"`
}

func (k Key) String() string {
	return k.EventKey + ":" + k.FilePath
}

// JobKey is the stable queue key of the association's rename job. Both parts
// are quoted so separators inside a file path cannot collide.
func (k Key) JobKey() string {
	return "autoRename:" + strconv.Quote(k.EventKey) + ":" + strconv.Quote(k.FilePath)
}

// Association binds one video file to at most one match.
type Association struct {
	EventKey               string     `json:"eventKey"`
	FilePath               string     `json:"filePath"`
	VideoFile              string     `json:"videoFile"`
	VideoLabel             string     `json:"videoLabel"`
	Status                 Status     `json:"status"`
	StatusReason           string     `json:"statusReason,omitempty"`
	VideoTimestamp         *time.Time `json:"videoTimestamp,omitempty"`
	MatchKey               string     `json:"matchKey,omitempty"`
	MatchName              string     `json:"matchName,omitempty"`
	AssociationAttempts    int        `json:"associationAttempts"`
	MaxAssociationAttempts int        `json:"maxAssociationAttempts"`
	VideoDurationSecs      *float64   `json:"videoDurationSecs,omitempty"`
	VideoDurationAbnormal  bool       `json:"videoDurationAbnormal"`
	StartTimeDiffSecs      *int64     `json:"startTimeDiffSecs,omitempty"`
	StartTimeDiffAbnormal  bool       `json:"startTimeDiffAbnormal"`
	OrderingIssueMatchKey  string     `json:"orderingIssueMatchKey,omitempty"`
	OrderingIssueMatchName string     `json:"orderingIssueMatchName,omitempty"`
	NewFileName            string     `json:"newFileName,omitempty"`
	RenameJobID            string     `json:"renameJobId,omitempty"`
	RenameAfter            *time.Time `json:"renameAfter,omitempty"`
	RenameCompleted        bool       `json:"renameCompleted"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// Key returns the association's identity.
func (a *Association) Key() Key {
	return Key{EventKey: a.EventKey, FilePath: a.FilePath}
}

// Metadata is the per-label ordering high-water-mark.
type Metadata struct {
	EventKey                       string    `json:"eventKey"`
	VideoLabel                     string    `json:"videoLabel"`
	LastStrongAssociationMatchKey  string    `json:"lastStrongAssociationMatchKey,omitempty"`
	LastStrongAssociationMatchName string    `json:"lastStrongAssociationMatchName,omitempty"`
	UpdatedAt                      time.Time `json:"updatedAt"`
}

// Settings are the resolved tunables of a matching pass.
type Settings struct {
	Enabled                      bool
	EventKey                     string
	PlayoffsType                 match.PlayoffsType
	VideoDir                     string
	Location                     *time.Location
	MaxStartTimeDiffSecStrong    int
	MaxStartTimeDiffSecWeak      int
	MinExpectedVideoDurationSecs int
	MaxExpectedVideoDurationSecs int
	FileNamePatterns             []string
	RenameJobDelaySecs           int
	MaxAssociationAttempts       int
}

// Validate reports settings a pass cannot run with.
func (s Settings) Validate() error {
	switch {
	case s.EventKey == "":
		return validationErrorf("no active event key configured")
	case !match.ValidEventKey(s.EventKey):
		return validationErrorf("event key %q is malformed", s.EventKey)
	case s.VideoDir == "":
		return validationErrorf("no video search directory configured")
	case len(s.FileNamePatterns) == 0:
		return validationErrorf("no file name patterns configured")
	case s.MaxStartTimeDiffSecWeak < s.MaxStartTimeDiffSecStrong:
		return validationErrorf("weak start time threshold %d is below strong threshold %d",
			s.MaxStartTimeDiffSecWeak, s.MaxStartTimeDiffSecStrong)
	case s.MaxExpectedVideoDurationSecs < s.MinExpectedVideoDurationSecs:
		return validationErrorf("video duration range [%d, %d] is empty",
			s.MinExpectedVideoDurationSecs, s.MaxExpectedVideoDurationSecs)
	case s.MaxAssociationAttempts < 1:
		return validationErrorf("max association attempts must be at least 1")
	}
	return nil
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// RenameDelay is the wait between a STRONG classification and its rename.
func (s Settings) RenameDelay() time.Duration {
	return time.Duration(s.RenameJobDelaySecs) * time.Second
}

func (s Settings) String() string {
	return fmt.Sprintf("event=%s playoffs=%s strong=%ds weak=%ds duration=[%d,%d]s",
		s.EventKey, s.PlayoffsType, s.MaxStartTimeDiffSecStrong, s.MaxStartTimeDiffSecWeak,
		s.MinExpectedVideoDurationSecs, s.MaxExpectedVideoDurationSecs)
}
