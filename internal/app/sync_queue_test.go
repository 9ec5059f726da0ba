package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

func addItem(t *testing.T, q *SyncQueue, url string, p domain.Priority) string {
	t.Helper()
	id, err := q.AddItem(context.Background(), NewItem{URL: url, Method: http.MethodPost, Body: []byte(`{}`), Priority: p})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	return id
}

func TestSyncQueue_PriorityOrdering(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})

	addItem(t, env.queue, "/low", domain.PriorityLow)
	addItem(t, env.queue, "/high", domain.PriorityHigh)
	addItem(t, env.queue, "/medium", domain.PriorityMedium)

	env.monitor.SetOnline(true)
	results, err := env.queue.ProcessQueue(context.Background())
	if err != nil {
		t.Fatalf("ProcessQueue() error = %v", err)
	}

	want := []string{"/high", "/medium", "/low"}
	got := env.transport.URLs()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, got[i], want[i])
		}
	}
	for _, r := range results {
		if r.Outcome != domain.OutcomeDelivered {
			t.Errorf("result %+v, want delivered", r)
		}
	}
	if n := len(env.pending(t)); n != 0 {
		t.Errorf("pending after drain = %d, want 0", n)
	}
}

func TestSyncQueue_FIFOWithinPriority(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	for _, u := range []string{"/a", "/b", "/c"} {
		addItem(t, env.queue, u, domain.PriorityMedium)
	}
	env.monitor.SetOnline(true)
	env.queue.ProcessQueue(context.Background())

	got := env.transport.URLs()
	want := []string{"/a", "/b", "/c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSyncQueue_AtLeastOnceRetries(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{MaxRetries: 5})
	env.transport.setHandler(statusHandler(http.StatusServiceUnavailable))
	addItem(t, env.queue, "/x", domain.PriorityMedium)
	env.monitor.SetOnline(true)

	for attempt := 1; attempt <= 3; attempt++ {
		results, err := env.queue.ProcessQueue(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 || results[0].Outcome != domain.OutcomeRetry {
			t.Fatalf("attempt %d results = %+v", attempt, results)
		}
		items := env.pending(t)
		if len(items) != 1 || items[0].RetryCount != attempt {
			t.Fatalf("attempt %d: pending = %+v", attempt, items)
		}
		if items[0].LastAttempt == nil || items[0].Error == "" {
			t.Errorf("attempt %d: attempt bookkeeping missing", attempt)
		}
	}

	env.transport.setHandler(nil)
	results, _ := env.queue.ProcessQueue(context.Background())
	if len(results) != 1 || results[0].Outcome != domain.OutcomeDelivered {
		t.Errorf("final results = %+v, want delivered", results)
	}
	if len(env.pending(t)) != 0 {
		t.Error("delivered item still pending")
	}
}

func TestSyncQueue_Ceiling(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{MaxRetries: 3})
	env.transport.setHandler(networkDown)

	rec := domain.JournalEntry{ID: "j1", Username: "alice", Content: "x"}.Record()
	if _, err := env.store.Put(context.Background(), &rec); err != nil {
		t.Fatal(err)
	}
	if _, err := env.queue.AddItem(context.Background(), NewItem{
		URL: "/api/journals/j1", Method: http.MethodPut, Body: []byte(`{}`),
		RecordKind: domain.KindJournal, RecordID: "j1",
	}); err != nil {
		t.Fatal(err)
	}
	env.monitor.SetOnline(true)

	for i := 0; i < 3; i++ {
		env.queue.ProcessQueue(context.Background())
	}
	if calls := len(env.transport.Calls()); calls != 3 {
		t.Fatalf("calls after 3 drains = %d, want 3", calls)
	}
	items := env.pending(t)
	if len(items) != 1 || items[0].RetryCount != 3 {
		t.Fatalf("pending at ceiling = %+v", items)
	}

	results, err := env.queue.ProcessQueue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Outcome != domain.OutcomeAbandoned || results[0].Reason != domain.ReasonMaxRetries {
		t.Fatalf("results = %+v, want abandoned max_retries", results)
	}
	if calls := len(env.transport.Calls()); calls != 3 {
		t.Errorf("abandoning made a network call (calls = %d)", calls)
	}

	stats, err := env.queue.GetStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.DeadLetters != 1 {
		t.Errorf("stats = %+v, want 0 pending and 1 dead letter", stats)
	}
	got, _ := env.store.Get(context.Background(), domain.KindJournal, "j1")
	if !got.SyncFailed || got.Synced {
		t.Errorf("record flags synced=%v failed=%v, want unsynced and failed", got.Synced, got.SyncFailed)
	}
	if len(env.emitter.deadLetters) != 1 {
		t.Errorf("dead letter events = %d", len(env.emitter.deadLetters))
	}
}

func TestSyncQueue_Classifier(t *testing.T) {
	tests := []struct {
		name       string
		handler    func(ports.Request) (*ports.Response, error)
		wantOut    domain.DeliveryOutcome
		wantReason domain.DeadLetterReason
	}{
		{"unauthorized", statusHandler(http.StatusUnauthorized), domain.OutcomeAbandoned, domain.ReasonAuth},
		{"forbidden", statusHandler(http.StatusForbidden), domain.OutcomeAbandoned, domain.ReasonAuth},
		{"bad request", statusHandler(http.StatusBadRequest), domain.OutcomeAbandoned, domain.ReasonRejected},
		{"conflict", statusHandler(http.StatusConflict), domain.OutcomeAbandoned, domain.ReasonRejected},
		{"request timeout", statusHandler(http.StatusRequestTimeout), domain.OutcomeRetry, ""},
		{"too many requests", statusHandler(http.StatusTooManyRequests), domain.OutcomeRetry, ""},
		{"server error", statusHandler(http.StatusInternalServerError), domain.OutcomeRetry, ""},
		{"network", networkDown, domain.OutcomeRetry, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false, QueueConfig{})
			env.transport.setHandler(tt.handler)
			addItem(t, env.queue, "/x", domain.PriorityHigh)
			env.monitor.SetOnline(true)

			results, err := env.queue.ProcessQueue(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(results) != 1 {
				t.Fatalf("results = %+v", results)
			}
			if results[0].Outcome != tt.wantOut || results[0].Reason != tt.wantReason {
				t.Errorf("got (%s, %s), want (%s, %s)", results[0].Outcome, results[0].Reason, tt.wantOut, tt.wantReason)
			}
			wantAuth := 0
			if tt.wantReason == domain.ReasonAuth {
				wantAuth = 1
			}
			if env.emitter.authFails != wantAuth {
				t.Errorf("auth events = %d, want %d", env.emitter.authFails, wantAuth)
			}
		})
	}
}

func TestSyncQueue_NoConcurrentDrains(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	entered := make(chan struct{}, 10)
	release := make(chan struct{})
	env.transport.setHandler(func(ports.Request) (*ports.Response, error) {
		entered <- struct{}{}
		<-release
		return &ports.Response{StatusCode: http.StatusOK}, nil
	})
	addItem(t, env.queue, "/a", domain.PriorityMedium)
	addItem(t, env.queue, "/b", domain.PriorityMedium)
	env.monitor.SetOnline(true)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		env.queue.ProcessQueue(context.Background())
	}()
	<-entered

	if !env.queue.Draining() {
		t.Error("Draining() = false during drain")
	}
	results, err := env.queue.ProcessQueue(context.Background())
	if err != nil || results != nil {
		t.Errorf("overlapping ProcessQueue() = %v, %v; want no-op", results, err)
	}

	close(release)
	wg.Wait()

	if calls := len(env.transport.Calls()); calls != 2 {
		t.Errorf("calls = %d, want 2 (one per item)", calls)
	}
}

func TestSyncQueue_StopsWhenOffline(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	addItem(t, env.queue, "/a", domain.PriorityHigh)
	addItem(t, env.queue, "/b", domain.PriorityMedium)
	addItem(t, env.queue, "/c", domain.PriorityLow)
	env.monitor.SetOnline(true)

	env.transport.setHandler(func(ports.Request) (*ports.Response, error) {
		env.monitor.SetOnline(false)
		return &ports.Response{StatusCode: http.StatusOK}, nil
	})

	results, err := env.queue.ProcessQueue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("results = %+v, want 1 delivery", results)
	}
	if n := len(env.pending(t)); n != 2 {
		t.Errorf("pending = %d, want 2 left queued", n)
	}
}

func TestSyncQueue_OfflineNoop(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	addItem(t, env.queue, "/a", domain.PriorityHigh)

	results, err := env.queue.ProcessQueue(context.Background())
	if err != nil || len(results) != 0 {
		t.Errorf("ProcessQueue() offline = %v, %v", results, err)
	}
	if len(env.transport.Calls()) != 0 {
		t.Error("transport called while offline")
	}
}

func TestSyncQueue_LeaseHeldElsewhere(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	env.queue.lease = env.store
	addItem(t, env.queue, "/a", domain.PriorityHigh)

	ok, err := env.store.Acquire(context.Background(), "other-process", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v", ok, err)
	}
	env.monitor.SetOnline(true)

	results, err := env.queue.ProcessQueue(context.Background())
	if err != nil || len(results) != 0 {
		t.Errorf("ProcessQueue() with foreign lease = %v, %v", results, err)
	}
	if len(env.transport.Calls()) != 0 {
		t.Error("drained despite foreign lease")
	}

	env.store.Release(context.Background(), "other-process")
	results, _ = env.queue.ProcessQueue(context.Background())
	if len(results) != 1 {
		t.Errorf("results after release = %+v", results)
	}
	// Our own lease is released after the drain.
	if ok, _ := env.store.Acquire(context.Background(), "other-process", time.Minute); !ok {
		t.Error("drain did not release its lease")
	}
}

func TestSyncQueue_TriggerBackground(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	addItem(t, env.queue, "/a", domain.PriorityHigh)
	env.monitor.SetOnline(true)

	if results, _ := env.queue.TriggerBackground(context.Background(), "other-tag"); len(results) != 0 {
		t.Errorf("unknown tag drained: %+v", results)
	}
	results, err := env.queue.TriggerBackground(context.Background(), BackgroundSyncTag)
	if err != nil || len(results) != 1 {
		t.Errorf("TriggerBackground(sync-data) = %v, %v", results, err)
	}
}

func TestSyncQueue_AddItemSchedulesDrainWhenOnline(t *testing.T) {
	env := newTestEnv(t, true, QueueConfig{})
	addItem(t, env.queue, "/a", domain.PriorityHigh)

	deadline := time.Now().Add(2 * time.Second)
	for env.emitter.deliveredCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("scheduled drain did not deliver the item")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := len(env.pending(t)); n != 0 {
		t.Errorf("pending = %d after scheduled drain", n)
	}
}

func TestSyncQueue_ScheduleRacesClose(t *testing.T) {
	env := newTestEnv(t, true, QueueConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.queue.AddItem(context.Background(), NewItem{URL: "/a", Method: http.MethodPost, Body: []byte(`{}`)}); err != nil {
				t.Errorf("AddItem() error = %v", err)
			}
			env.queue.Schedule()
		}()
	}
	env.queue.Close()
	wg.Wait()

	// Nothing may be scheduled once Close has returned.
	calls := len(env.transport.Calls())
	env.queue.Schedule()
	addItem(t, env.queue, "/b", domain.PriorityHigh)
	time.Sleep(50 * time.Millisecond)
	if got := len(env.transport.Calls()); got != calls {
		t.Errorf("transport calls after Close = %d, want %d", got, calls)
	}
}

func TestSyncQueue_GetStatsReadOnly(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	addItem(t, env.queue, "/a", domain.PriorityHigh)
	addItem(t, env.queue, "/b", domain.PriorityLow)
	addItem(t, env.queue, "/c", "")

	for i := 0; i < 2; i++ {
		stats, err := env.queue.GetStats(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if stats.Total != 3 || stats.Pending[domain.PriorityHigh] != 1 ||
			stats.Pending[domain.PriorityMedium] != 1 || stats.Pending[domain.PriorityLow] != 1 {
			t.Errorf("stats = %+v", stats)
		}
	}
	if len(env.transport.Calls()) != 0 {
		t.Error("GetStats triggered a call")
	}
}

func TestSyncQueue_RequeueDeadLetter(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	env.transport.setHandler(statusHandler(http.StatusForbidden))
	rec := domain.JournalEntry{ID: "j1", Content: "x"}.Record()
	env.store.Put(context.Background(), &rec)
	env.queue.AddItem(context.Background(), NewItem{URL: "/j1", Method: http.MethodPut, RecordKind: domain.KindJournal, RecordID: "j1"})
	env.monitor.SetOnline(true)
	env.queue.ProcessQueue(context.Background())

	dls, err := env.queue.DeadLetters(context.Background())
	if err != nil || len(dls) != 1 {
		t.Fatalf("DeadLetters() = %v, %v", dls, err)
	}

	env.monitor.SetOnline(false)
	env.transport.setHandler(nil)
	item, err := env.queue.Requeue(context.Background(), dls[0].Item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if item.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", item.RetryCount)
	}
	got, _ := env.store.Get(context.Background(), domain.KindJournal, "j1")
	if got.SyncFailed {
		t.Error("SyncFailed not cleared by Requeue")
	}

	if _, err := env.queue.Requeue(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Requeue(missing) error = %v", err)
	}
}

func TestSyncQueue_DeliveryMarksRecordSynced(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	ctx := context.Background()
	if _, err := env.client.SaveJournalOffline(ctx, domain.JournalEntry{ID: "j1", Username: "alice", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	env.monitor.SetOnline(true)
	if _, err := env.queue.ProcessQueue(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ := env.store.Get(ctx, domain.KindJournal, "j1")
	if !got.Synced {
		t.Error("record not synced after delivery")
	}
}

func TestSyncQueue_RetryDelayUsesBackoff(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second, MaxRetries: 10})
	var delays []time.Duration
	env.queue.sleep = func(_ context.Context, d time.Duration) bool {
		delays = append(delays, d)
		return true
	}
	env.transport.setHandler(networkDown)
	addItem(t, env.queue, "/a", domain.PriorityHigh)
	env.monitor.SetOnline(true)

	for i := 0; i < 3; i++ {
		env.queue.ProcessQueue(context.Background())
	}
	want := []time.Duration{2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestClassify(t *testing.T) {
	if _, terminal := Classify(errors.New("boom")); terminal {
		t.Error("plain error classified terminal")
	}
	if r, terminal := Classify(&domain.HTTPError{StatusCode: 401}); !terminal || r != domain.ReasonAuth {
		t.Errorf("401 = (%s, %v)", r, terminal)
	}
}
