package app

import (
	"testing"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
)

func TestEncodeDecodeRecord(t *testing.T) {
	rec := domain.JournalEntry{ID: "j1", Username: "alice", Content: "hello", Tags: []string{"a"}}.Record()
	rec.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec.UpdatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	body, err := EncodeRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := DecodeRemoteRecord(domain.KindJournal, body)
	if err != nil || !ok {
		t.Fatalf("DecodeRemoteRecord() = %v, %v", ok, err)
	}
	if got.ID != "j1" || got.Username != "alice" || !got.UpdatedAt.Equal(rec.UpdatedAt) || !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("decoded = %+v", got)
	}
	if _, leaked := got.Payload["updated_at"]; leaked {
		t.Error("reserved key left in payload")
	}
	if got.Payload["content"] != "hello" {
		t.Errorf("payload = %v", got.Payload)
	}
}

func TestDecodeRemoteRecord(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantOK  bool
		wantErr bool
		wantID  string
	}{
		{"not json", `<html>`, false, false, ""},
		{"array", `[1,2]`, false, false, ""},
		{"null", `null`, false, false, ""},
		{"no updated_at", `{"id":"x"}`, false, false, ""},
		{"numeric id and millis", `{"id":42,"updated_at":1700000000000}`, true, false, "42"},
		{"bad timestamp", `{"id":"x","updated_at":"yesterday"}`, false, true, ""},
		{"rfc3339", `{"id":"x","updated_at":"2024-05-01T10:00:00Z"}`, true, false, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok, err := DecodeRemoteRecord(domain.KindJournal, []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && rec.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", rec.ID, tt.wantID)
			}
		})
	}
}
