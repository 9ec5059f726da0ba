package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTokenFile_Missing(t *testing.T) {
	tf, err := NewTokenFile(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("NewTokenFile() error = %v", err)
	}
	if tf.Token() != "" {
		t.Errorf("Token() = %q, want empty", tf.Token())
	}
}

func TestTokenFile_Formats(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantTok  string
		wantUser string
	}{
		{"json", `{"token":"abc","username":"alice"}`, "abc", "alice"},
		{"bare", "  xyz\n", "xyz", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			tf, err := NewTokenFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if tf.Token() != tt.wantTok || tf.Username() != tt.wantUser {
				t.Errorf("got (%q, %q), want (%q, %q)", tf.Token(), tf.Username(), tt.wantTok, tt.wantUser)
			}
		})
	}
}

func TestTokenFile_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	os.WriteFile(path, []byte("{broken"), 0o600)
	if _, err := NewTokenFile(path); err == nil {
		t.Error("expected error for malformed session file")
	}
}

func TestTokenFile_SaveReloadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	tf, err := NewTokenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := tf.Save(Session{Token: "t1", Username: "bob"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	other, err := NewTokenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if other.Token() != "t1" {
		t.Errorf("Token() after Save = %q", other.Token())
	}

	os.WriteFile(path, []byte(`{"token":"t2"}`), 0o600)
	if err := other.Reload(); err != nil {
		t.Fatal(err)
	}
	if other.Token() != "t2" {
		t.Errorf("Token() after Reload = %q", other.Token())
	}

	if err := other.Clear(); err != nil {
		t.Fatal(err)
	}
	if other.Token() != "" {
		t.Error("token survived Clear")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("session file survived Clear")
	}
}
