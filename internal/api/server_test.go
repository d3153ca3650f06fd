package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/observability"
)

const (
	lpKey     = "0xc::pair::LPCoin<0x2::sui::SUI, 0xc::c::C>"
	singleKey = "0x2::sui::SUI"
)

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		GeneratedAtMs: 1700000000000,
		LPPools: []domain.PoolState{
			{EntityKey: lpKey, DisplayName: "SUI-C LP", Kind: domain.PoolKindLP, AllocationPoints: 40, Active: true},
		},
		SinglePools: []domain.PoolState{
			{EntityKey: singleKey, DisplayName: "SUI", Kind: domain.PoolKindSingle, AllocationPoints: 60, Active: false},
		},
		CurrentEpoch: domain.EpochStatus{ID: 3, Status: domain.EpochActive, TimeRemainingMs: (26*60 + 5) * 60 * 1000},
		LastEpoch:    &domain.EpochStatus{ID: 2, Status: domain.EpochFinalized, Elapsed: true},
		Health:       domain.Health{Overall: domain.HealthHealthy, Issues: []domain.HealthIssue{}},
	}
}

type fakeRefresher struct {
	server *Server
	calls  int
}

func (f *fakeRefresher) Refresh(ctx context.Context) domain.Snapshot {
	f.calls++
	snap := testSnapshot()
	snap.GeneratedAtMs += int64(f.calls)
	_ = f.server.Publish(ctx, snap)
	return snap
}

type fakeHistory struct {
	err       error
	gotKey    string
	gotStart  int64
	gotEnd    int64
	healthRec []*domain.HealthRecord
}

func (f *fakeHistory) PoolHistory(_ context.Context, key string, start, end int64) ([]*domain.PoolStateRecord, error) {
	f.gotKey, f.gotStart, f.gotEnd = key, start, end
	if f.err != nil {
		return nil, f.err
	}
	return []*domain.PoolStateRecord{{RefreshID: "r1", GeneratedAtMs: start, State: domain.PoolState{EntityKey: key}}}, nil
}

func (f *fakeHistory) HealthHistory(_ context.Context, start, end int64) ([]*domain.HealthRecord, error) {
	f.gotStart, f.gotEnd = start, end
	return f.healthRec, f.err
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_NoSnapshotYet(t *testing.T) {
	s := NewServer(Options{})
	router := s.Router()

	rec := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Empty(t, health.Dashboard)

	for _, path := range []string{"/api/snapshot", "/api/pools", "/api/epoch", "/api/pools/x"} {
		rec := do(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}

	rec = do(t, router, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Snapshot(t *testing.T) {
	s := NewServer(Options{})
	require.NoError(t, s.Publish(context.Background(), testSnapshot()))
	router := s.Router()

	rec := do(t, router, http.MethodGet, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	snap := decode[domain.Snapshot](t, rec)
	assert.Equal(t, int64(1700000000000), snap.GeneratedAtMs)
	assert.Len(t, snap.LPPools, 1)

	health := decode[HealthResponse](t, do(t, router, http.MethodGet, "/health", nil))
	assert.Equal(t, domain.HealthHealthy, health.Dashboard)
}

func TestServer_Pools(t *testing.T) {
	s := NewServer(Options{})
	require.NoError(t, s.Publish(context.Background(), testSnapshot()))
	router := s.Router()

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{lpKey, singleKey}},
		{"?kind=lp", []string{lpKey}},
		{"?kind=SINGLE", []string{singleKey}},
		{"?active=true", []string{lpKey}},
		{"?kind=lp&active=false", []string{}},
	}
	for _, tt := range tests {
		rec := do(t, router, http.MethodGet, "/api/pools"+tt.query, nil)
		require.Equal(t, http.StatusOK, rec.Code, tt.query)
		pools := decode[[]domain.PoolState](t, rec)
		keys := []string{}
		for _, p := range pools {
			keys = append(keys, p.EntityKey)
		}
		assert.Equal(t, tt.want, keys, tt.query)
	}

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/pools?kind=vault", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/pools?active=maybe", nil).Code)
}

func TestServer_PoolByKey(t *testing.T) {
	s := NewServer(Options{})
	require.NoError(t, s.Publish(context.Background(), testSnapshot()))
	router := s.Router()

	rec := do(t, router, http.MethodGet, "/api/pools/"+url.PathEscape(lpKey), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pool := decode[domain.PoolState](t, rec)
	assert.Equal(t, "SUI-C LP", pool.DisplayName)

	rec = do(t, router, http.MethodGet, "/api/pools/"+url.PathEscape("0x9::nope::NOPE"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Epoch(t *testing.T) {
	s := NewServer(Options{})
	require.NoError(t, s.Publish(context.Background(), testSnapshot()))

	rec := do(t, s.Router(), http.MethodGet, "/api/epoch", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[EpochResponse](t, rec)
	assert.Equal(t, int64(3), resp.Current.ID)
	require.NotNil(t, resp.Last)
	assert.Equal(t, domain.EpochFinalized, resp.Last.Status)
	assert.Equal(t, "1d 2h 5m", resp.TimeRemaining)
}

func TestServer_ValidateAllocations(t *testing.T) {
	router := NewServer(Options{}).Router()

	rec := do(t, router, http.MethodPost, "/api/allocations/validate",
		[]byte(`{"week":2500,"three_month":2500,"year":2500,"three_year":2500}`))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ValidateResponse](t, rec)
	assert.True(t, resp.Valid)
	assert.Equal(t, int64(10000), resp.TotalBp)
	assert.Equal(t, "100.00", resp.TotalPercent)

	rec = do(t, router, http.MethodPost, "/api/allocations/validate",
		[]byte(`{"week":2500,"three_month":2500,"year":2500,"three_year":2499}`))
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[ValidateResponse](t, rec)
	assert.False(t, resp.Valid)
	assert.Equal(t, "99.99", resp.TotalPercent)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[len(resp.Errors)-1], "got 9999 bp (99.99%)")

	rec = do(t, router, http.MethodPost, "/api/allocations/validate",
		[]byte(`{"week":-1,"three_month":5000,"year":5000,"three_year":1}`))
	resp = decode[ValidateResponse](t, rec)
	assert.False(t, resp.Valid)
	assert.Contains(t, resp.FieldErrors, "week")

	for _, body := range []string{`{"week":`, `{"weekly":100}`, `{"week":"a lot"}`} {
		rec := do(t, router, http.MethodPost, "/api/allocations/validate", []byte(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec = do(t, router, http.MethodGet, "/api/allocations/validate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Refresh(t *testing.T) {
	refresher := &fakeRefresher{}
	s := NewServer(Options{Refresher: refresher})
	refresher.server = s
	router := s.Router()

	rec := do(t, router, http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1700000000001), decode[domain.Snapshot](t, rec).GeneratedAtMs)
	assert.Equal(t, int64(1700000000001), s.Snapshot().GeneratedAtMs)
	assert.Equal(t, 1, refresher.calls)
}

func TestServer_History(t *testing.T) {
	history := &fakeHistory{healthRec: []*domain.HealthRecord{{RefreshID: "r1", Overall: domain.HealthError}}}
	router := NewServer(Options{History: history}).Router()

	rec := do(t, router, http.MethodGet, "/api/pools/"+url.PathEscape(singleKey)+"/history?from=100&to=200", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	records := decode[[]domain.PoolStateRecord](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, singleKey, history.gotKey)
	assert.Equal(t, int64(100), history.gotStart)
	assert.Equal(t, int64(200), history.gotEnd)
	assert.True(t, strings.Contains(rec.Body.String(), `"refresh_id":"r1"`))

	rec = do(t, router, http.MethodGet, "/api/health/history?to=86400001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), history.gotStart)
	assert.Equal(t, domain.HealthError, decode[[]domain.HealthRecord](t, rec)[0].Overall)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/health/history?from=x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/health/history?from=5&to=1", nil).Code)

	history.err = errors.New("clickhouse down")
	assert.Equal(t, http.StatusInternalServerError, do(t, router, http.MethodGet, "/api/health/history", nil).Code)

	disabled := NewServer(Options{}).Router()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, disabled, http.MethodGet, "/api/health/history", nil).Code)
}

func TestServer_Metrics(t *testing.T) {
	metrics := observability.NewMetrics("test")
	metrics.RecordFetchFailure("vaults")
	router := NewServer(Options{Metrics: metrics}).Router()

	rec := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_dashboard_fetch_failures_total")
}

func TestServer_Stream(t *testing.T) {
	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router := NewServer(Options{Stream: stream}).Router()
	assert.Equal(t, http.StatusTeapot, do(t, router, http.MethodGet, "/ws", nil).Code)

	assert.Equal(t, http.StatusNotFound, do(t, NewServer(Options{}).Router(), http.MethodGet, "/ws", nil).Code)
}
