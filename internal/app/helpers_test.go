package app

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/offlinesync/internal/adapters/sqlite"
	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

// mockTransport records requests and answers them with handler.
type mockTransport struct {
	mu      sync.Mutex
	calls   []ports.Request
	handler func(req ports.Request) (*ports.Response, error)
}

func (m *mockTransport) Do(ctx context.Context, req ports.Request) (*ports.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return &ports.Response{StatusCode: http.StatusOK, Body: []byte(`{}`)}, nil
	}
	return h(req)
}

func (m *mockTransport) setHandler(h func(req ports.Request) (*ports.Response, error)) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

func (m *mockTransport) Calls() []ports.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.Request{}, m.calls...)
}

func (m *mockTransport) URLs() []string {
	var out []string
	for _, c := range m.Calls() {
		out = append(out, c.URL)
	}
	return out
}

func statusHandler(status int) func(ports.Request) (*ports.Response, error) {
	return func(ports.Request) (*ports.Response, error) {
		return nil, &domain.HTTPError{StatusCode: status, Body: http.StatusText(status)}
	}
}

func networkDown(ports.Request) (*ports.Response, error) {
	return nil, &domain.NetworkError{Err: context.DeadlineExceeded}
}

// recordingEmitter implements QueueEmitter.
type recordingEmitter struct {
	mu          sync.Mutex
	delivered   []string
	retried     []string
	deadLetters []domain.DeadLetter
	authFails   int
}

func (e *recordingEmitter) OnDelivered(item domain.QueueItem, _ int, _ time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delivered = append(e.delivered, item.ID)
}

func (e *recordingEmitter) deliveredCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.delivered)
}

func (e *recordingEmitter) OnRetry(item domain.QueueItem, _ error, _ time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retried = append(e.retried, item.ID)
}

func (e *recordingEmitter) OnDeadLetter(dl domain.DeadLetter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deadLetters = append(e.deadLetters, dl)
}

func (e *recordingEmitter) OnAuthRequired(domain.QueueItem, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.authFails++
}

type testEnv struct {
	store      *sqlite.Store
	monitor    *NetworkMonitor
	transport  *mockTransport
	emitter    *recordingEmitter
	reconciler *Reconciler
	queue      *SyncQueue
	client     *Client
}

func newTestEnv(t *testing.T, online bool, cfg QueueConfig, opts ...QueueOption) *testEnv {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "offline.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}

	env := &testEnv{
		store:     store,
		monitor:   NewNetworkMonitor(online, &mockLogger{}),
		transport: &mockTransport{},
		emitter:   &recordingEmitter{},
	}
	env.reconciler = NewReconciler(store, store, NewResolver(0), &mockLogger{})

	opts = append([]QueueOption{
		WithQueueLogger(&mockLogger{}),
		WithDeliveryHook(env.reconciler),
		WithQueueEmitter(env.emitter),
	}, opts...)
	env.queue = NewSyncQueue(cfg, store, store, env.transport, env.monitor, opts...)
	env.queue.sleep = func(ctx context.Context, d time.Duration) bool { return ctx.Err() == nil }

	env.client = NewClient(env.transport, env.monitor, store, store, env.queue, env.reconciler, Endpoints{}, &mockLogger{})

	t.Cleanup(func() {
		env.queue.Close()
		store.Close()
	})
	return env
}

func (e *testEnv) pending(t *testing.T) []domain.QueueItem {
	t.Helper()
	items, err := e.store.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	return items
}
