// Package health serves the /livez and /readyz endpoints of the POS API.
//
// Checks run in the background and the endpoints only report their last
// state, so a health request never waits on the database.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultTimeout   = time.Second
	defaultFailAfter = 3
)

// Option tunes a single check.
type Option func(*watcher)

// WithTimeout bounds one run of the check.
func WithTimeout(d time.Duration) Option {
	return func(p *watcher) { p.timeout = d }
}

// WithFailureThreshold sets how many consecutive failures mark the check
// unhealthy. One success marks it healthy again.
func WithFailureThreshold(n int) Option {
	return func(p *watcher) {
		if n > 0 {
			p.failAfter = n
		}
	}
}

// result is the published outcome of a check.
type result struct {
	healthy   bool
	err       error
	checkedAt time.Time
}

type watcher struct {
	name      string
	check     CheckFunc
	timeout   time.Duration
	failAfter int

	last  atomic.Pointer[result]
	fails int // owned by the goroutine running the check
}

func newWatcher(name string, check CheckFunc, opts []Option) *watcher {
	p := &watcher{name: name, check: check, timeout: defaultTimeout, failAfter: defaultFailAfter}
	for _, o := range opts {
		o(p)
	}
	p.last.Store(&result{healthy: true})
	return p
}

// run executes the check once and reports whether the health flipped.
func (p *watcher) run(ctx context.Context, now time.Time) (flipped bool) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	prev := p.last.Load()

	healthy := prev.healthy
	if err == nil {
		p.fails = 0
		healthy = true
	} else {
		p.fails++
		if p.fails >= p.failAfter {
			healthy = false
		}
	}

	p.last.Store(&result{healthy: healthy, err: err, checkedAt: now})
	return healthy != prev.healthy
}

// Health holds the liveness and readiness checks of the service.
type Health struct {
	lg    *zap.Logger
	now   func() time.Time
	ready atomic.Bool

	mu        sync.Mutex
	liveness  []*watcher
	readiness []*watcher
	cancel    context.CancelFunc
}

// New creates a Health that logs check transitions to lg. The service is
// not ready until SetReady(true).
func New(lg *zap.Logger) *Health {
	return &Health{lg: lg, now: time.Now}
}

// Liveness registers a check that decides whether the process should be
// restarted.
func (h *Health) Liveness(name string, check CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newWatcher(name, check, opts))
}

// Readiness registers a check that decides whether the service takes
// traffic.
func (h *Health) Readiness(name string, check CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newWatcher(name, check, opts))
}

// Start runs every check now and then at each interval until Stop or ctx
// is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	watchers := append(append([]*watcher(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, p := range watchers {
		go h.loop(ctx, p, interval)
	}
}

func (h *Health) loop(ctx context.Context, p *watcher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h.runWatcher(ctx, p)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) runWatcher(ctx context.Context, p *watcher) {
	if !p.run(ctx, h.now()) {
		return
	}
	r := p.last.Load()
	if r.healthy {
		h.lg.Info("Health check recovered", zap.String("check", p.name))
		return
	}
	h.lg.Warn("Health check failing", zap.String("check", p.name), zap.Error(r.err))
}

// Stop ends the background checks. It may be called more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate, closed during start-up and
// shutdown drain.
func (h *Health) SetReady(ready bool) { h.ready.Store(ready) }

// Ready reports whether the gate is open and every readiness check passes.
func (h *Health) Ready() bool {
	if !h.ready.Load() {
		return false
	}
	return allHealthy(h.snapshot(&h.readiness))
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	watchers := h.snapshot(&h.liveness)
	writeReport(w, allHealthy(watchers), nil, watchers)
}

// ReadyEndpoint serves /readyz. A closed gate reports 503 even when every
// check passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	watchers := h.snapshot(&h.readiness)
	ready := h.ready.Load()
	writeReport(w, ready && allHealthy(watchers), &ready, watchers)
}

func (h *Health) snapshot(list *[]*watcher) []*watcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*watcher(nil), (*list)...)
}

func allHealthy(watchers []*watcher) bool {
	for _, p := range watchers {
		if !p.last.Load().healthy {
			return false
		}
	}
	return true
}

// writeReport writes the check states:
//
//	{"status":"ok","ready":true,"checks":{"postgres":{"healthy":true}}}
//
// ready is omitted for liveness. error and checked_at appear once known.
func writeReport(w http.ResponseWriter, ok bool, ready *bool, watchers []*watcher) {
	status, code := "ok", http.StatusOK
	if !ok {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	sort.Slice(watchers, func(i, j int) bool { return watchers[i].name < watchers[j].name })

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if ready != nil {
			e.Field("ready", func(e *jx.Encoder) { e.Bool(*ready) })
		}
		if len(watchers) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, p := range watchers {
					r := p.last.Load()
					e.Field(p.name, func(e *jx.Encoder) { encodeResult(e, r) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func encodeResult(e *jx.Encoder, r *result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("healthy", func(e *jx.Encoder) { e.Bool(r.healthy) })
		if r.err != nil {
			e.Field("error", func(e *jx.Encoder) { e.Str(r.err.Error()) })
		}
		if !r.checkedAt.IsZero() {
			e.Field("checked_at", func(e *jx.Encoder) { e.Str(r.checkedAt.UTC().Format(time.RFC3339)) })
		}
	})
}
