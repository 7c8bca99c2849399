package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakePool stands in for *pgxpool.Pool.
type fakePool struct {
	mu    sync.Mutex
	err   error
	block bool
	pings int
}

func (p *fakePool) Ping(ctx context.Context) error {
	p.mu.Lock()
	p.pings++
	err, block := p.err, p.block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (p *fakePool) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

var checkedAt = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestHealth(t *testing.T) (*Health, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	h := New(zap.New(core))
	h.now = func() time.Time { return checkedAt }
	return h, logs
}

// runAll runs every registered check once, the way one tick of Start does.
func runAll(h *Health) {
	for _, p := range append(h.snapshot(&h.liveness), h.snapshot(&h.readiness)...) {
		h.runWatcher(context.Background(), p)
	}
}

func get(t *testing.T, endpoint http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	return w
}

func TestReadyEndpoint_Postgres(t *testing.T) {
	h, _ := newTestHealth(t)
	pool := &fakePool{}
	h.Readiness("postgres", PingCheck("postgres", pool), WithFailureThreshold(1))
	h.SetReady(true)
	runAll(h)

	w := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"status": "ok",
		"ready": true,
		"checks": {"postgres": {"healthy": true, "checked_at": "2026-03-01T09:30:00Z"}}
	}`, w.Body.String())

	pool.set(errors.New("connection refused"))
	runAll(h)

	w = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{
		"status": "unavailable",
		"ready": true,
		"checks": {"postgres": {
			"healthy": false,
			"error": "ping postgres: connection refused",
			"checked_at": "2026-03-01T09:30:00Z"
		}}
	}`, w.Body.String())
	assert.False(t, h.Ready())
}

func TestReadyEndpoint_Gate(t *testing.T) {
	h, _ := newTestHealth(t)
	h.Readiness("postgres", PingCheck("postgres", &fakePool{}))
	runAll(h)

	// Closed until start-up finishes.
	w := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{
		"status": "unavailable",
		"ready": false,
		"checks": {"postgres": {"healthy": true, "checked_at": "2026-03-01T09:30:00Z"}}
	}`, w.Body.String())

	h.SetReady(true)
	assert.True(t, h.Ready())
	assert.Equal(t, http.StatusOK, get(t, h.ReadyEndpoint).Code)

	// Draining on shutdown.
	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h.ReadyEndpoint).Code)
}

func TestLiveEndpoint_IgnoresReadiness(t *testing.T) {
	h, _ := newTestHealth(t)
	h.Liveness("goroutines", GoroutineCountCheck(1<<20))
	h.Readiness("postgres", PingCheck("postgres", &fakePool{err: errors.New("down")}), WithFailureThreshold(1))
	runAll(h)

	w := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"status": "ok",
		"checks": {"goroutines": {"healthy": true, "checked_at": "2026-03-01T09:30:00Z"}}
	}`, w.Body.String())
}

func TestEndpoint_NoChecks(t *testing.T) {
	h, _ := newTestHealth(t)
	assert.JSONEq(t, `{"status":"ok"}`, get(t, h.LiveEndpoint).Body.String())

	h.SetReady(true)
	assert.JSONEq(t, `{"status":"ok","ready":true}`, get(t, h.ReadyEndpoint).Body.String())
}

func TestReport_ChecksSorted(t *testing.T) {
	h, _ := newTestHealth(t)
	ok := func(context.Context) error { return nil }
	h.Liveness("gc_pause", ok)
	h.Liveness("goroutines", ok)
	h.Liveness("deadlock", ok)

	body := get(t, h.LiveEndpoint).Body.String()
	assert.Less(t, strings.Index(body, `"deadlock"`), strings.Index(body, `"gc_pause"`))
	assert.Less(t, strings.Index(body, `"gc_pause"`), strings.Index(body, `"goroutines"`))
}

func TestCheck_FailureThreshold(t *testing.T) {
	h, logs := newTestHealth(t)
	pool := &fakePool{err: errors.New("too many connections")}
	h.Readiness("postgres", PingCheck("postgres", pool))
	h.SetReady(true)

	// A blip shorter than the threshold keeps the service in rotation.
	runAll(h)
	runAll(h)
	assert.True(t, h.Ready())
	assert.Zero(t, logs.Len())

	runAll(h)
	assert.False(t, h.Ready())
	failing := logs.FilterMessage("Health check failing").All()
	require.Len(t, failing, 1)
	assert.Equal(t, "postgres", failing[0].ContextMap()["check"])

	// Still failing: no repeated log line.
	runAll(h)
	assert.Equal(t, 1, logs.Len())

	// One success recovers.
	pool.set(nil)
	runAll(h)
	assert.True(t, h.Ready())
	assert.Equal(t, 1, logs.FilterMessage("Health check recovered").Len())
	assert.Equal(t, 5, pool.pings)
}

func TestCheck_Timeout(t *testing.T) {
	h, _ := newTestHealth(t)
	h.Readiness("postgres", PingCheck("postgres", &fakePool{block: true}),
		WithTimeout(10*time.Millisecond), WithFailureThreshold(1))
	h.SetReady(true)

	start := time.Now()
	runAll(h)
	assert.Less(t, time.Since(start), time.Second)

	w := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "context deadline exceeded")
}

func TestStart_RunsInBackground(t *testing.T) {
	h, _ := newTestHealth(t)
	pool := &fakePool{err: errors.New("down")}
	h.Readiness("postgres", PingCheck("postgres", pool), WithFailureThreshold(2))
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	defer h.Stop()

	assert.Eventually(t, func() bool { return !h.Ready() }, time.Second, 5*time.Millisecond)

	pool.set(nil)
	assert.Eventually(t, h.Ready, time.Second, 5*time.Millisecond)
}

func TestStop_Idempotent(t *testing.T) {
	h, _ := newTestHealth(t)
	pool := &fakePool{}
	h.Readiness("postgres", PingCheck("postgres", pool))
	h.Start(context.Background(), time.Millisecond)

	h.Stop()
	h.Stop()

	time.Sleep(10 * time.Millisecond)
	pool.mu.Lock()
	n := pool.pings
	pool.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	pool.mu.Lock()
	defer pool.mu.Unlock()
	assert.Equal(t, n, pool.pings)
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1<<20)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold 0")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
