package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Association describes a recording's match association.
type Association struct {
	EventKey               string   `json:"eventKey"`
	FilePath               string   `json:"filePath"`
	VideoFile              string   `json:"videoFile"`
	VideoLabel             string   `json:"videoLabel"`
	Status                 string   `json:"status"`
	StatusReason           string   `json:"statusReason,omitempty"`
	VideoTimestamp         string   `json:"videoTimestamp,omitempty"`
	MatchKey               string   `json:"matchKey,omitempty"`
	MatchName              string   `json:"matchName,omitempty"`
	AssociationAttempts    int      `json:"associationAttempts"`
	MaxAssociationAttempts int      `json:"maxAssociationAttempts"`
	VideoDurationSecs      *float64 `json:"videoDurationSecs,omitempty"`
	VideoDurationAbnormal  bool     `json:"videoDurationAbnormal"`
	StartTimeDiffSecs      *int64   `json:"startTimeDiffSecs,omitempty"`
	StartTimeDiffAbnormal  bool     `json:"startTimeDiffAbnormal"`
	OrderingIssueMatchKey  string   `json:"orderingIssueMatchKey,omitempty"`
	OrderingIssueMatchName string   `json:"orderingIssueMatchName,omitempty"`
	NewFileName            string   `json:"newFileName,omitempty"`
	RenameJobID            string   `json:"renameJobId,omitempty"`
	RenameAfter            string   `json:"renameAfter,omitempty"`
	RenameCompleted        bool     `json:"renameCompleted"`
	CreatedAt              string   `json:"createdAt,omitempty"`
	UpdatedAt              string   `json:"updatedAt,omitempty"`
}

// AssociationListResponse wraps a collection of associations.
type AssociationListResponse struct {
	Associations []Association `json:"associations"`
}

// AssociationResponse wraps a single association.
type AssociationResponse struct {
	Association Association `json:"association"`
}

// Job describes a durable queue entry.
type Job struct {
	ID          string `json:"id"`
	Task        string `json:"task"`
	State       string `json:"state"`
	JobKey      string `json:"jobKey,omitempty"`
	Payload     any    `json:"payload,omitempty"`
	Priority    int    `json:"priority"`
	RunAt       string `json:"runAt"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"maxAttempts"`
	LastError   string `json:"lastError,omitempty"`
	LockedBy    string `json:"lockedBy,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// RetryRequest selects failed jobs to reset. An empty list resets all.
type RetryRequest struct {
	IDs []string `json:"ids"`
}

// RetryResponse reports how many jobs were reset.
type RetryResponse struct {
	Retried int64 `json:"retried"`
}

// PassSummary describes a matching pass.
type PassSummary struct {
	RunID           string  `json:"runId"`
	EventKey        string  `json:"eventKey,omitempty"`
	StartedAt       string  `json:"startedAt"`
	DurationSecs    float64 `json:"durationSecs"`
	Skipped         bool    `json:"skipped,omitempty"`
	SkipReason      string  `json:"skipReason,omitempty"`
	FilesSeen       int     `json:"filesSeen"`
	NewAssociations int     `json:"newAssociations"`
	Processed       int     `json:"processed"`
	Strong          int     `json:"strong"`
	Weak            int     `json:"weak"`
	Unmatched       int     `json:"unmatched"`
	Failed          int     `json:"failed"`
	Downgraded      int     `json:"downgraded"`
	Errors          int     `json:"errors"`
}

// RunResponse wraps the summary of a triggered pass.
type RunResponse struct {
	Pass PassSummary `json:"pass"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running           bool               `json:"running"`
	PID               int                `json:"pid"`
	DatabasePath      string             `json:"databasePath"`
	LockFilePath      string             `json:"lockFilePath"`
	EventKey          string             `json:"eventKey,omitempty"`
	AutoRenameEnabled bool               `json:"autoRenameEnabled"`
	AssociationCounts map[string]int     `json:"associationCounts"`
	JobCounts         map[string]int     `json:"jobCounts"`
	LastPass          *PassSummary       `json:"lastPass,omitempty"`
	Dependencies      []DependencyStatus `json:"dependencies"`
}

// Event is an association update notification.
type Event struct {
	Sequence  uint64 `json:"seq"`
	Timestamp string `json:"ts"`
	Event     string `json:"event"`
	EventKey  string `json:"eventKey"`
	FilePath  string `json:"filePath"`
}

// EventStreamResponse is one long-poll page of events. Next is the cursor to
// pass as since on the following request.
type EventStreamResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
