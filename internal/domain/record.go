package domain

import "time"

// RecordKind identifies the table a record lives in.
type RecordKind string

const (
	KindAssessment RecordKind = "assessment"
	KindJournal    RecordKind = "journal"
	KindSettings   RecordKind = "settings"
)

// Valid reports whether k is a known kind.
func (k RecordKind) Valid() bool {
	switch k {
	case KindAssessment, KindJournal, KindSettings:
		return true
	}
	return false
}

// Table returns the durable table name for the kind.
func (k RecordKind) Table() string {
	switch k {
	case KindAssessment:
		return "assessments"
	case KindJournal:
		return "journals"
	case KindSettings:
		return "user_settings"
	default:
		return ""
	}
}

// AuthoredFields lists the payload keys a user edits for the kind. A nil
// result means every key is authored.
func (k RecordKind) AuthoredFields() []string {
	switch k {
	case KindJournal:
		return []string{"content", "tags", "mood", "title"}
	case KindAssessment:
		return []string{"answers", "scores", "result"}
	default:
		return nil
	}
}

// Record is an application record held in the durable store.
//
// ID is assigned by the application (assessmentId, journalId); LocalKey is
// the store's own auto-increment key.
type Record struct {
	LocalKey   int64
	ID         string
	Kind       RecordKind
	Username   string
	Synced     bool
	SyncFailed bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Payload    map[string]any
}

// Clone returns a copy with its own top-level payload map.
func (r Record) Clone() Record {
	c := r
	c.Payload = CopyPayload(r.Payload)
	return c
}

// CopyPayload returns a shallow copy of p.
func CopyPayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// JournalEntry is the typed view of a journal record used by the client API.
type JournalEntry struct {
	ID       string
	Username string
	Title    string
	Content  string
	Mood     string
	Tags     []string
}

// Record converts the entry into a journal record payload.
func (j JournalEntry) Record() Record {
	payload := map[string]any{
		"content": j.Content,
		"tags":    append([]string{}, j.Tags...),
	}
	if j.Title != "" {
		payload["title"] = j.Title
	}
	if j.Mood != "" {
		payload["mood"] = j.Mood
	}
	return Record{
		ID:       j.ID,
		Kind:     KindJournal,
		Username: j.Username,
		Payload:  payload,
	}
}

// JournalFromRecord reads the typed journal view back out of a record.
func JournalFromRecord(r Record) JournalEntry {
	return JournalEntry{
		ID:       r.ID,
		Username: r.Username,
		Title:    stringField(r.Payload, "title"),
		Content:  stringField(r.Payload, "content"),
		Mood:     stringField(r.Payload, "mood"),
		Tags:     StringSlice(r.Payload["tags"]),
	}
}

// Assessment is the typed view of an assessment submission.
type Assessment struct {
	ID       string
	Username string
	Type     string
	Answers  map[string]any
	Scores   map[string]float64
	Result   string
}

// Record converts the assessment into a record payload.
func (a Assessment) Record() Record {
	scores := make(map[string]any, len(a.Scores))
	for k, v := range a.Scores {
		scores[k] = v
	}
	payload := map[string]any{
		"type":    a.Type,
		"answers": CopyPayload(a.Answers),
		"scores":  scores,
	}
	if a.Result != "" {
		payload["result"] = a.Result
	}
	return Record{
		ID:       a.ID,
		Kind:     KindAssessment,
		Username: a.Username,
		Payload:  payload,
	}
}

func stringField(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

// StringSlice coerces a decoded JSON value into a string slice.
func StringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string{}, t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
