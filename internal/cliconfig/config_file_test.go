package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				BaseURL:         "https://api.example.com",
				MaxRetries:      5,
				BaseDelay:       "2s",
				OnlineDebounce:  "500ms",
				TraceSampleRate: 0.5,
				WatchToken:      &falseVal,
			},
			changed: map[string]bool{},
			initial: Config{WatchToken: true},
			expected: Config{
				BaseURL:         "https://api.example.com",
				MaxRetries:      5,
				BaseDelay:       2 * time.Second,
				OnlineDebounce:  500 * time.Millisecond,
				TraceSampleRate: 0.5,
				WatchToken:      false,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				BaseURL: "https://file.example.com",
				DBPath:  "/file/offlinesync.db",
			},
			changed: map[string]bool{"base-url": true},
			initial: Config{BaseURL: "https://flag.example.com"},
			expected: Config{
				BaseURL: "https://flag.example.com",
				DBPath:  "/file/offlinesync.db",
			},
		},
		{
			name: "handles all field types correctly",
			fileConfig: FileConfig{
				DBPath:          "/data/sync.db",
				BaseURL:         "http://example.com",
				TokenFile:       "/data/token.json",
				ProbeURL:        "http://example.com/health",
				ProbeInterval:   "10s",
				ProbeTimeout:    "1s",
				HTTPTimeout:     "30s",
				MaxRetries:      4,
				BaseDelay:       "1s",
				MaxDelay:        "1m",
				LeaseTTL:        "45s",
				OnlineDebounce:  "3s",
				SyncInterval:    "5m",
				SkewTolerance:   "90s",
				Lease:           "redis",
				RedisURL:        "redis://localhost:6379/1",
				LogLevel:        "debug",
				LogFormat:       "json",
				MetricsAddr:     ":9090",
				TraceExporter:   "otlp",
				OTLPEndpoint:    "localhost:4318",
				TraceSampleRate: 0.25,
				WatchToken:      &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				DBPath:          "/data/sync.db",
				BaseURL:         "http://example.com",
				TokenFile:       "/data/token.json",
				ProbeURL:        "http://example.com/health",
				ProbeInterval:   10 * time.Second,
				ProbeTimeout:    time.Second,
				HTTPTimeout:     30 * time.Second,
				MaxRetries:      4,
				BaseDelay:       time.Second,
				MaxDelay:        time.Minute,
				LeaseTTL:        45 * time.Second,
				OnlineDebounce:  3 * time.Second,
				SyncInterval:    5 * time.Minute,
				SkewTolerance:   90 * time.Second,
				Lease:           "redis",
				RedisURL:        "redis://localhost:6379/1",
				LogLevel:        "debug",
				LogFormat:       "json",
				MetricsAddr:     ":9090",
				TraceExporter:   "otlp",
				OTLPEndpoint:    "localhost:4318",
				TraceSampleRate: 0.25,
				WatchToken:      true,
			},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{MaxDelay: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyFileConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyFileConfig() unexpected error: %v", err)
				return
			}
			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
base_url = "https://api.example.com"
max_retries = 5
base_delay = "2s"
lease = "none"
watch_token = false
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %v", fc.BaseURL)
	}
	if fc.MaxRetries != 5 {
		t.Errorf("MaxRetries = %v, want 5", fc.MaxRetries)
	}
	if fc.BaseDelay != "2s" {
		t.Errorf("BaseDelay = %v, want 2s", fc.BaseDelay)
	}
	if fc.Lease != "none" {
		t.Errorf("Lease = %v, want none", fc.Lease)
	}
	if fc.WatchToken == nil || *fc.WatchToken {
		t.Errorf("WatchToken = %v, want false", fc.WatchToken)
	}
}

func TestLoadFileConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
base_url: https://api.example.com
max_retries: 7
online_debounce: 1s
trace_sample_rate: 0.1
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.BaseURL != "https://api.example.com" || fc.MaxRetries != 7 {
		t.Errorf("got %+v", fc)
	}
	if fc.OnlineDebounce != "1s" {
		t.Errorf("OnlineDebounce = %v, want 1s", fc.OnlineDebounce)
	}
	if fc.TraceSampleRate != 0.1 {
		t.Errorf("TraceSampleRate = %v, want 0.1", fc.TraceSampleRate)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
base_url = "/test"
this is not valid toml
`
	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	if _, err := LoadFileConfig(configPath); err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestLoadFileConfig_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yml")
	if err := os.WriteFile(configPath, []byte("base_url: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileConfig(configPath); err == nil {
		t.Error("LoadFileConfig() expected error for invalid YAML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if !strings.Contains(path, ".offlinesync") || filepath.Base(path) != "config.toml" {
		t.Errorf("DefaultConfigPath() = %v", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}
	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
