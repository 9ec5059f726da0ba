package app

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func journal(content string, tags []string, updated time.Time) domain.Record {
	rec := domain.JournalEntry{ID: "j1", Content: content, Tags: tags}.Record()
	rec.UpdatedAt = updated
	return rec
}

func TestResolver_RemoteClearlyNewer(t *testing.T) {
	r := NewResolver(0)
	local := journal("local text", nil, t0)
	remote := journal("remote text", nil, t0.Add(120*time.Second))

	got := r.Resolve(domain.Conflict{Local: local, Remote: remote})

	if got.Resolution != domain.ResolutionRemote {
		t.Errorf("Resolution = %s, want remote", got.Resolution)
	}
	if got.Payload["content"] != "remote text" {
		t.Errorf("content = %v, want remote text", got.Payload["content"])
	}
	if !got.UpdatedAt.Equal(remote.UpdatedAt) {
		t.Errorf("UpdatedAt = %v", got.UpdatedAt)
	}
}

func TestResolver_WithinSkewLongerContentWins(t *testing.T) {
	r := NewResolver(0)
	long := strings.Repeat("a", 500)
	short := strings.Repeat("b", 50)
	local := journal(long, []string{"x"}, t0)
	remote := journal(short, []string{"y"}, t0.Add(5*time.Second))

	got := r.Resolve(domain.Conflict{Local: local, Remote: remote})

	if got.Resolution != domain.ResolutionMerge {
		t.Errorf("Resolution = %s, want merge", got.Resolution)
	}
	if got.Payload["content"] != long {
		t.Error("merge did not keep the longer local content")
	}
	if !got.UpdatedAt.Equal(remote.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want the later timestamp", got.UpdatedAt)
	}
}

func TestResolver_Deterministic(t *testing.T) {
	r := NewResolver(0)
	c := domain.Conflict{
		Local:  journal("abc", []string{"a", "b"}, t0),
		Remote: journal("abcd", []string{"b", "c"}, t0.Add(time.Second)),
	}
	first := r.Resolve(c)
	for i := 0; i < 10; i++ {
		if got := r.Resolve(c); !reflect.DeepEqual(got, first) {
			t.Fatalf("Resolve() not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestResolver_SyncedLocalYields(t *testing.T) {
	r := NewResolver(0)
	local := journal("newer local", nil, t0.Add(time.Hour))
	local.Synced = true
	remote := journal("older remote", nil, t0)

	got := r.Resolve(domain.Conflict{Local: local, Remote: remote})
	if got.Resolution != domain.ResolutionRemote || got.Payload["content"] != "older remote" {
		t.Errorf("got %+v, want remote", got)
	}
}

func TestResolver_LocalClearlyNewer(t *testing.T) {
	r := NewResolver(0)
	local := journal("mine", []string{"l"}, t0.Add(10*time.Minute))
	local.Payload["server_note"] = "stale"
	remote := journal("theirs", []string{"r"}, t0)
	remote.Payload["server_note"] = "fresh"
	remote.Payload["word_count"] = 1.0

	got := r.Resolve(domain.Conflict{Local: local, Remote: remote})

	if got.Resolution != domain.ResolutionLocal {
		t.Fatalf("Resolution = %s, want local", got.Resolution)
	}
	if got.Payload["content"] != "mine" {
		t.Errorf("content = %v, want mine", got.Payload["content"])
	}
	if !reflect.DeepEqual(got.Payload["tags"], []string{"l"}) {
		t.Errorf("tags = %v, want [l]", got.Payload["tags"])
	}
	if got.Payload["server_note"] != "fresh" || got.Payload["word_count"] != 1.0 {
		t.Errorf("non-authored fields not taken from remote: %v", got.Payload)
	}
}

func TestResolver_MergeJournalTags(t *testing.T) {
	r := NewResolver(0)
	local := journal("same", []string{"calm", "work", "sleep"}, t0)
	remote := journal("diff", []string{"sleep", "family", "calm"}, t0)

	got := r.Resolve(domain.Conflict{Local: local, Remote: remote})

	want := []string{"calm", "work", "sleep", "family"}
	if !reflect.DeepEqual(got.Payload["tags"], want) {
		t.Errorf("tags = %v, want %v", got.Payload["tags"], want)
	}
	// Equal length content keeps the local copy.
	if got.Payload["content"] != "same" {
		t.Errorf("content = %v, want same", got.Payload["content"])
	}
}

func TestResolver_MergeAssessmentKeepsLocal(t *testing.T) {
	r := NewResolver(0)
	local := domain.Assessment{
		ID: "a1", Type: "phq9",
		Answers: map[string]any{"q1": 2.0},
		Scores:  map[string]float64{"total": 10},
		Result:  "moderate",
	}.Record()
	local.UpdatedAt = t0
	remote := domain.Assessment{
		ID: "a1", Type: "phq9",
		Answers: map[string]any{"q1": 0.0},
		Result:  "minimal",
	}.Record()
	remote.UpdatedAt = t0.Add(30 * time.Second)
	remote.Payload["reviewed_by"] = "clinician"

	got := r.Resolve(domain.Conflict{Local: local, Remote: remote})

	if got.Resolution != domain.ResolutionMerge {
		t.Fatalf("Resolution = %s, want merge", got.Resolution)
	}
	if got.Payload["result"] != "moderate" {
		t.Errorf("result = %v, want local moderate", got.Payload["result"])
	}
	if !reflect.DeepEqual(got.Payload["answers"], local.Payload["answers"]) {
		t.Errorf("answers = %v", got.Payload["answers"])
	}
	if got.Payload["reviewed_by"] != "clinician" {
		t.Error("remote-only field dropped")
	}
}

func TestResolver_MergeSettingsLocalPrecedence(t *testing.T) {
	r := NewResolver(0)
	local := domain.Record{Kind: domain.KindSettings, UpdatedAt: t0,
		Payload: map[string]any{"theme": "dark", "reminders": true}}
	remote := domain.Record{Kind: domain.KindSettings, UpdatedAt: t0.Add(10 * time.Second),
		Payload: map[string]any{"theme": "light", "language": "en"}}

	got := r.Resolve(domain.Conflict{Local: local, Remote: remote})

	want := map[string]any{"theme": "dark", "reminders": true, "language": "en"}
	if !reflect.DeepEqual(got.Payload, want) {
		t.Errorf("Payload = %v, want %v", got.Payload, want)
	}
}

func TestResolver_DoesNotMutateInputs(t *testing.T) {
	r := NewResolver(0)
	local := journal("x", []string{"a"}, t0)
	remote := journal("yy", []string{"b"}, t0)

	r.Resolve(domain.Conflict{Local: local, Remote: remote})

	if local.Payload["content"] != "x" || remote.Payload["content"] != "yy" {
		t.Error("Resolve mutated its inputs")
	}
}

func TestUnionTags(t *testing.T) {
	tests := []struct {
		a, b, want []string
	}{
		{nil, nil, []string{}},
		{[]string{"a"}, nil, []string{"a"}},
		{[]string{"a", "a"}, []string{"a"}, []string{"a"}},
		{[]string{"b", "a"}, []string{"c", "a"}, []string{"b", "a", "c"}},
	}
	for _, tt := range tests {
		if got := unionTags(tt.a, tt.b); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("unionTags(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
