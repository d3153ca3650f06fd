// Package api serves the latest dashboard snapshot over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"victory-readmodel/internal/allocation"
	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/epoch"
	"victory-readmodel/internal/observability"
)

// Refresher rebuilds the snapshot on demand.
type Refresher interface {
	Refresh(ctx context.Context) domain.Snapshot
}

// History reads recorded refreshes.
type History interface {
	PoolHistory(ctx context.Context, entityKey string, startMs, endMs int64) ([]*domain.PoolStateRecord, error)
	HealthHistory(ctx context.Context, startMs, endMs int64) ([]*domain.HealthRecord, error)
}

// Options configures a Server. Every collaborator is optional; routes whose
// collaborator is missing answer 503.
type Options struct {
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Refresher Refresher
	History   History
	Stream    http.Handler // WebSocket snapshot stream
}

// Server holds the latest snapshot and serves it read-only. It implements
// dashboard.Sink so the refresher can hand it every new snapshot.
type Server struct {
	latest    atomic.Pointer[domain.Snapshot]
	logger    *zap.Logger
	metrics   *observability.Metrics
	refresher Refresher
	history   History
	stream    http.Handler
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger:    logger,
		metrics:   opts.Metrics,
		refresher: opts.Refresher,
		history:   opts.History,
		stream:    opts.Stream,
	}
}

// SetRefresher enables POST /api/refresh. The refresher usually publishes
// to this server, so it cannot always be passed to NewServer. Call before
// serving.
func (s *Server) SetRefresher(r Refresher) {
	s.refresher = r
}

// Name implements dashboard.Sink.
func (s *Server) Name() string { return "api" }

// Publish implements dashboard.Sink.
func (s *Server) Publish(_ context.Context, snap domain.Snapshot) error {
	s.latest.Store(&snap)
	return nil
}

// Snapshot returns the latest snapshot, or nil before the first refresh.
func (s *Server) Snapshot() *domain.Snapshot {
	return s.latest.Load()
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/api/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/api/pools", s.handlePools).Methods(http.MethodGet)
	r.HandleFunc("/api/pools/{key}", s.handlePool).Methods(http.MethodGet)
	r.HandleFunc("/api/pools/{key}/history", s.handlePoolHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/health/history", s.handleHealthHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/epoch", s.handleEpoch).Methods(http.MethodGet)
	r.HandleFunc("/api/allocations/validate", s.handleValidateAllocations).Methods(http.MethodPost)
	r.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)

	if s.stream != nil {
		r.Handle("/ws", s.stream).Methods(http.MethodGet)
	}

	return r
}

// HealthResponse is the JSON response for /health.
type HealthResponse struct {
	Status        string             `json:"status"`
	Dashboard     domain.HealthLevel `json:"dashboard,omitempty"`
	GeneratedAtMs int64              `json:"generated_at_ms,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if snap := s.Snapshot(); snap != nil {
		resp.Dashboard = snap.Health.Overall
		resp.GeneratedAtMs = snap.GeneratedAtMs
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.requireSnapshot(w)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.requireSnapshot(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	var pools []domain.PoolState
	switch strings.ToLower(q.Get("kind")) {
	case "":
		pools = append(append(pools, snap.LPPools...), snap.SinglePools...)
	case "lp":
		pools = append(pools, snap.LPPools...)
	case "single":
		pools = append(pools, snap.SinglePools...)
	default:
		s.writeError(w, http.StatusBadRequest, "kind must be lp or single")
		return
	}

	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		filtered := pools[:0]
		for _, p := range pools {
			if p.Active == active {
				filtered = append(filtered, p)
			}
		}
		pools = filtered
	}

	if pools == nil {
		pools = []domain.PoolState{}
	}
	s.writeJSON(w, http.StatusOK, pools)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.requireSnapshot(w)
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]
	pool, found := snap.Pool(key)
	if !found {
		s.writeError(w, http.StatusNotFound, "pool not found")
		return
	}
	s.writeJSON(w, http.StatusOK, pool)
}

func (s *Server) handlePoolHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history not enabled")
		return
	}
	start, end, err := timeRange(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.history.PoolHistory(r.Context(), mux.Vars(r)["key"], start, end)
	if err != nil {
		s.logger.Error("pool history query failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if records == nil {
		records = []*domain.PoolStateRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealthHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history not enabled")
		return
	}
	start, end, err := timeRange(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.history.HealthHistory(r.Context(), start, end)
	if err != nil {
		s.logger.Error("health history query failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if records == nil {
		records = []*domain.HealthRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// EpochResponse is the JSON response for /api/epoch.
type EpochResponse struct {
	Current       domain.EpochStatus  `json:"current"`
	Last          *domain.EpochStatus `json:"last,omitempty"`
	TimeRemaining string              `json:"time_remaining"`
}

func (s *Server) handleEpoch(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.requireSnapshot(w)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, EpochResponse{
		Current:       snap.CurrentEpoch,
		Last:          snap.LastEpoch,
		TimeRemaining: epoch.FormatRemaining(snap.CurrentEpoch.TimeRemaining()),
	})
}

// ValidateResponse is the JSON response for /api/allocations/validate.
type ValidateResponse struct {
	allocation.Result
	TotalPercent string `json:"total_percent"`
}

func (s *Server) handleValidateAllocations(w http.ResponseWriter, r *http.Request) {
	var set domain.AllocationSet
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&set); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid allocation set: "+err.Error())
		return
	}

	res := allocation.Validate(set)
	s.writeJSON(w, http.StatusOK, ValidateResponse{
		Result:       res,
		TotalPercent: allocation.FormatPercent(res.TotalBp),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		s.writeError(w, http.StatusServiceUnavailable, "refresh not available")
		return
	}
	snap := s.refresher.Refresh(r.Context())
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) requireSnapshot(w http.ResponseWriter) (*domain.Snapshot, bool) {
	snap := s.Snapshot()
	if snap == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return nil, false
	}
	return snap, true
}

// timeRange parses ?from=&to= as unix milliseconds. to defaults to now and
// from to 24h before to.
func timeRange(r *http.Request) (int64, int64, error) {
	q := r.URL.Query()
	end := time.Now().UnixMilli()
	if v := q.Get("to"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, 0, errors.New("to must be unix milliseconds")
		}
		end = n
	}
	start := end - (24 * time.Hour).Milliseconds()
	if v := q.Get("from"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, 0, errors.New("from must be unix milliseconds")
		}
		start = n
	}
	if start > end {
		return 0, 0, errors.New("from must not be after to")
	}
	return start, end, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, map[string]string{"error": message})
}
