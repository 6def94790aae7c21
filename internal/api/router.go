package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"frcvideos/internal/autorename"
	"frcvideos/internal/broadcast"
	"frcvideos/internal/clock"
	"frcvideos/internal/jobqueue"
	"frcvideos/internal/logging"
)

const (
	defaultEventLimit = 200
	longPollTimeout   = 25 * time.Second
	sseKeepAlive      = 15 * time.Second
	maxRequestBody    = 1 << 20
)

// Associations reads stored associations.
type Associations interface {
	List(ctx context.Context, filter autorename.ListFilter) ([]*autorename.Association, error)
	Get(ctx context.Context, key autorename.Key) (*autorename.Association, error)
}

// Matcher runs passes and overrides.
type Matcher interface {
	Run(ctx context.Context, opts autorename.RunOptions) (autorename.PassSummary, error)
	Override(ctx context.Context, req autorename.OverrideRequest) (*autorename.Association, error)
}

// Jobs reads and retries durable jobs.
type Jobs interface {
	List(ctx context.Context, filter jobqueue.ListFilter) ([]*jobqueue.Job, error)
	RetryFailed(ctx context.Context, ids ...string) (int64, error)
}

// Options wires the router to the daemon's components. Nil components make
// their routes answer 503.
type Options struct {
	Token        string
	Logger       *slog.Logger
	Clock        clock.Clock
	Status       func(ctx context.Context) DaemonStatus
	Associations Associations
	Matcher      Matcher
	Jobs         Jobs
	Events       *broadcast.Hub
	// OnRetry runs after failed jobs were reset, typically to wake workers.
	OnRetry func()
	// OnRefresh runs before a triggered pass that asked for fresh match data.
	OnRefresh func(ctx context.Context)
}

type handler struct {
	opts   Options
	logger *slog.Logger
	clock  clock.Clock
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	h := &handler{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "api"),
		clock:  clock.OrReal(opts.Clock),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware, metricsMiddleware, recoverMiddleware(h.logger))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(opts.Token))
		r.Get("/status", h.handleStatus)
		r.Get("/autorename/associations", h.handleAssociations)
		r.Get("/autorename/associations/detail", h.handleAssociationDetail)
		r.Post("/autorename/associations/override", h.handleOverride)
		r.Post("/autorename/run", h.handleRun)
		r.Get("/jobs", h.handleJobs)
		r.Post("/jobs/retry", h.handleRetry)
		r.Get("/events", h.handleEvents)
		r.Get("/events/stream", h.handleEventStream)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(h.logger, w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(h.logger, w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})
	return r
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.opts.Status == nil {
		writeJSON(h.logger, w, http.StatusOK, DaemonStatus{Running: true})
		return
	}
	writeJSON(h.logger, w, http.StatusOK, h.opts.Status(r.Context()))
}

func (h *handler) handleAssociations(w http.ResponseWriter, r *http.Request) {
	if h.opts.Associations == nil {
		h.unavailable(w)
		return
	}
	query := r.URL.Query()
	filter := autorename.ListFilter{
		EventKey: strings.ToLower(strings.TrimSpace(query.Get("eventKey"))),
		Label:    strings.TrimSpace(query.Get("label")),
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := autorename.ParseStatus(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(h.logger, w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		filter.Limit = limit
	}
	list, err := h.opts.Associations.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, AssociationListResponse{Associations: FromAssociations(list)})
}

func (h *handler) handleAssociationDetail(w http.ResponseWriter, r *http.Request) {
	if h.opts.Associations == nil {
		h.unavailable(w)
		return
	}
	query := r.URL.Query()
	key := autorename.Key{
		EventKey: strings.ToLower(strings.TrimSpace(query.Get("eventKey"))),
		FilePath: strings.TrimSpace(query.Get("filePath")),
	}
	if key.EventKey == "" || key.FilePath == "" {
		writeJSON(h.logger, w, http.StatusBadRequest, ErrorResponse{Error: "eventKey and filePath are required"})
		return
	}
	a, err := h.opts.Associations.Get(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if a == nil {
		writeJSON(h.logger, w, http.StatusNotFound, ErrorResponse{Error: "association not found"})
		return
	}
	writeJSON(h.logger, w, http.StatusOK, AssociationResponse{Association: FromAssociation(a)})
}

func (h *handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	if h.opts.Matcher == nil {
		h.unavailable(w)
		return
	}
	var req autorename.OverrideRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(h.logger, w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	a, err := h.opts.Matcher.Override(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, AssociationResponse{Association: FromAssociation(a)})
}

type runRequest struct {
	Force   bool `json:"force"`
	Refresh bool `json:"refresh"`
}

func (h *handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if h.opts.Matcher == nil {
		h.unavailable(w)
		return
	}
	var req runRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeJSON(h.logger, w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}
	if req.Refresh && h.opts.OnRefresh != nil {
		h.opts.OnRefresh(r.Context())
	}
	summary, err := h.opts.Matcher.Run(r.Context(), autorename.RunOptions{Force: req.Force})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, RunResponse{Pass: FromPassSummary(summary)})
}

func (h *handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	if h.opts.Jobs == nil {
		h.unavailable(w)
		return
	}
	query := r.URL.Query()
	filter := jobqueue.ListFilter{
		Task:       strings.TrimSpace(query.Get("task")),
		FailedOnly: truthy(query.Get("failed")),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	jobs, err := h.opts.Jobs.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	now := h.clock.Now()
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job, now))
	}
	writeJSON(h.logger, w, http.StatusOK, JobListResponse{Jobs: out})
}

func (h *handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	if h.opts.Jobs == nil {
		h.unavailable(w)
		return
	}
	var req RetryRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeJSON(h.logger, w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}
	retried, err := h.opts.Jobs.RetryFailed(r.Context(), req.IDs...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if retried > 0 && h.opts.OnRetry != nil {
		h.opts.OnRetry()
	}
	logging.WithContext(r.Context(), h.logger).Info("failed jobs reset",
		logging.String(logging.FieldEventType, "jobs_retried"),
		logging.Int64("retried", retried),
	)
	writeJSON(h.logger, w, http.StatusOK, RetryResponse{Retried: retried})
}

func (h *handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.opts.Events == nil {
		writeJSON(h.logger, w, http.StatusOK, EventStreamResponse{Events: []Event{}})
		return
	}
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultEventLimit
	}
	follow := truthy(query.Get("follow"))

	ctx := r.Context()
	if follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, longPollTimeout)
		defer cancel()
	}
	events, cursor, err := h.opts.Events.Fetch(ctx, since, limit, follow)
	if err != nil && len(events) == 0 && r.Context().Err() != nil {
		return
	}
	writeJSON(h.logger, w, http.StatusOK, EventStreamResponse{
		Events: FromEvents(events),
		Next:   nextCursor(events, cursor),
	})
}

func (h *handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if h.opts.Events == nil {
		h.unavailable(w)
		return
	}
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if parsed, err := strconv.ParseUint(last, 10, 64); err == nil {
			since = parsed
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	if err := rc.Flush(); err != nil {
		writeJSON(h.logger, w, http.StatusInternalServerError, ErrorResponse{Error: "streaming unsupported"})
		return
	}

	ctx := r.Context()
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, sseKeepAlive)
		events, _, _ := h.opts.Events.Fetch(waitCtx, since, defaultEventLimit, true)
		cancel()
		if len(events) == 0 {
			if ctx.Err() != nil {
				return
			}
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		}
		for _, evt := range FromEvents(events) {
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Sequence, evt.Event, data); err != nil {
				return
			}
			since = evt.Sequence
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func nextCursor(events []broadcast.Event, cursor uint64) uint64 {
	if len(events) > 0 {
		return events[len(events)-1].Sequence
	}
	return cursor
}

func (h *handler) unavailable(w http.ResponseWriter) {
	writeJSON(h.logger, w, http.StatusServiceUnavailable, ErrorResponse{Error: "component unavailable"})
}

// writeError maps domain errors onto HTTP statuses.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), h.logger), "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
		)
	}
	writeJSON(h.logger, w, status, ErrorResponse{Error: err.Error()})
}

// StatusForError returns the HTTP status used for err.
func StatusForError(err error) int {
	var kinded interface{ ErrorKind() string }
	switch {
	case errors.Is(err, autorename.ErrAssociationNotFound):
		return http.StatusNotFound
	case errors.Is(err, autorename.ErrRenameCompleted), errors.Is(err, autorename.ErrPassInProgress):
		return http.StatusConflict
	case errors.As(err, &kinded) && kinded.ErrorKind() == "validation":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if decoder.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

func truthy(value string) bool {
	value = strings.TrimSpace(value)
	return value == "1" || strings.EqualFold(value, "true")
}
