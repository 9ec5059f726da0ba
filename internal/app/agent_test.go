package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runAgent(t *testing.T, a *Agent) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestAgent_DrainsAfterOnlineDebounce(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	addItem(t, env.queue, "/a", domain.PriorityHigh)

	agent := NewAgent(AgentConfig{OnlineDebounce: 20 * time.Millisecond}, env.queue, env.monitor, &mockLogger{})
	runAgent(t, agent)

	env.monitor.SetOnline(true)
	waitFor(t, "drain after reconnect", func() bool { return len(env.transport.Calls()) == 1 })
}

func TestAgent_FlapWithinDebounceSkipsDrain(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	addItem(t, env.queue, "/a", domain.PriorityHigh)

	agent := NewAgent(AgentConfig{OnlineDebounce: 200 * time.Millisecond}, env.queue, env.monitor, &mockLogger{})
	runAgent(t, agent)

	env.monitor.SetOnline(true)
	env.monitor.SetOnline(false)
	time.Sleep(300 * time.Millisecond)

	if n := len(env.transport.Calls()); n != 0 {
		t.Errorf("calls = %d, want 0 after flapping", n)
	}
}

func TestAgent_BackgroundTrigger(t *testing.T) {
	env := newTestEnv(t, false, QueueConfig{})
	addItem(t, env.queue, "/a", domain.PriorityHigh)
	env.monitor.SetOnline(true)

	// Long debounce so only the trigger can cause the drain.
	agent := NewAgent(AgentConfig{OnlineDebounce: time.Hour}, env.queue, env.monitor, &mockLogger{})
	runAgent(t, agent)

	if !agent.Trigger("unrelated") {
		t.Fatal("Trigger() rejected")
	}
	if !agent.Trigger(BackgroundSyncTag) {
		t.Fatal("Trigger() rejected")
	}
	waitFor(t, "background drain", func() bool { return len(env.transport.Calls()) == 1 })

	calls := env.transport.Calls()
	if calls[0].Method != http.MethodPost || calls[0].URL != "/a" {
		t.Errorf("call = %+v", calls[0])
	}
}
