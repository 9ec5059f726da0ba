package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
)

// Wire keys carried alongside the payload.
const (
	fieldID        = "id"
	fieldUsername  = "username"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// EncodeRecord renders a record as the JSON body sent to the remote API.
func EncodeRecord(rec domain.Record) ([]byte, error) {
	body := domain.CopyPayload(rec.Payload)
	body[fieldID] = rec.ID
	if rec.Username != "" {
		body[fieldUsername] = rec.Username
	}
	if !rec.CreatedAt.IsZero() {
		body[fieldCreatedAt] = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !rec.UpdatedAt.IsZero() {
		body[fieldUpdatedAt] = rec.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

// DecodeRemoteRecord parses a remote response into a record of kind. It
// reports false when the body is not a JSON object with an updated_at
// timestamp, since such a body cannot take part in conflict resolution.
func DecodeRemoteRecord(kind domain.RecordKind, body []byte) (domain.Record, bool, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return domain.Record{}, false, nil
	}
	if obj == nil {
		return domain.Record{}, false, nil
	}

	updated, ok, err := parseTime(obj[fieldUpdatedAt])
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("decode updated_at: %w", err)
	}
	if !ok {
		return domain.Record{}, false, nil
	}
	created, _, err := parseTime(obj[fieldCreatedAt])
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("decode created_at: %w", err)
	}

	rec := domain.Record{
		ID:        idString(obj[fieldID]),
		Kind:      kind,
		CreatedAt: created,
		UpdatedAt: updated,
	}
	rec.Username, _ = obj[fieldUsername].(string)

	for _, k := range []string{fieldID, fieldUsername, fieldCreatedAt, fieldUpdatedAt} {
		delete(obj, k)
	}
	rec.Payload = obj
	return rec, true, nil
}

func parseTime(v any) (time.Time, bool, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case string:
		if t == "" {
			return time.Time{}, false, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false, err
		}
		return parsed.UTC(), true, nil
	case float64:
		// Unix milliseconds.
		return time.UnixMilli(int64(t)).UTC(), true, nil
	default:
		return time.Time{}, false, fmt.Errorf("unsupported timestamp %T", v)
	}
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
