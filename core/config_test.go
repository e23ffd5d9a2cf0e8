package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MCP_BASE_URL", "http://localhost:8080")
	t.Setenv("OPS_PWD", "test-password")
	// Point at a nonexistent tuning file so host files don't leak into tests.
	t.Setenv("TUNING_FILE", filepath.Join(t.TempDir(), "tuning.yaml"))
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Subject != DefaultSubject {
		t.Errorf("Subject = %q, want %q", cfg.Subject, DefaultSubject)
	}
	if cfg.CollectionInterval != 60*time.Minute {
		t.Errorf("CollectionInterval = %v, want 60m", cfg.CollectionInterval)
	}
	if cfg.FreshnessWindow != 2*time.Hour {
		t.Errorf("FreshnessWindow = %v, want 2h", cfg.FreshnessWindow)
	}
	if cfg.RecencyWindow != 60*time.Minute {
		t.Errorf("RecencyWindow = %v, want 60m", cfg.RecencyWindow)
	}
	if cfg.TriggerQuotaCost != 3 {
		t.Errorf("TriggerQuotaCost = %d, want 3", cfg.TriggerQuotaCost)
	}
	if cfg.AnalysisQuotaCost != 5 {
		t.Errorf("AnalysisQuotaCost = %d, want 5", cfg.AnalysisQuotaCost)
	}
	if cfg.QuotaDailyLimit != 30 || cfg.QuotaHourlyLimit != 5 {
		t.Errorf("quota limits = %d/%d, want 30/5", cfg.QuotaDailyLimit, cfg.QuotaHourlyLimit)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want 10s", cfg.HTTPTimeout)
	}
	if cfg.HasOpenAI() {
		t.Error("HasOpenAI() = true with no key set")
	}
}

func TestLoadConfigMissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing base URL", "MCP_BASE_URL"},
		{"missing ops password", "OPS_PWD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := LoadConfig()
			if err == nil {
				t.Fatal("LoadConfig() error = nil, want missing config error")
			}
			if code := GetErrorCode(err); code != ErrCodeMissingConfig {
				t.Errorf("error code = %q, want %q", code, ErrCodeMissingConfig)
			}
		})
	}
}

func TestLoadConfigTuningOverlay(t *testing.T) {
	setRequiredEnv(t)

	tuningPath := filepath.Join(t.TempDir(), "tuning.yaml")
	tuning := []byte("freshness_window_hours: 6\ntrigger_quota_cost: 1\nquota_hourly_limit: 10\n")
	if err := os.WriteFile(tuningPath, tuning, 0o644); err != nil {
		t.Fatalf("failed to write tuning file: %v", err)
	}
	t.Setenv("TUNING_FILE", tuningPath)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.FreshnessWindow != 6*time.Hour {
		t.Errorf("FreshnessWindow = %v, want 6h (tuning override)", cfg.FreshnessWindow)
	}
	if cfg.TriggerQuotaCost != 1 {
		t.Errorf("TriggerQuotaCost = %d, want 1 (tuning override)", cfg.TriggerQuotaCost)
	}
	if cfg.QuotaHourlyLimit != 10 {
		t.Errorf("QuotaHourlyLimit = %d, want 10 (tuning override)", cfg.QuotaHourlyLimit)
	}
	// Fields absent from the overlay keep their defaults.
	if cfg.AnalysisQuotaCost != 5 {
		t.Errorf("AnalysisQuotaCost = %d, want 5 (default preserved)", cfg.AnalysisQuotaCost)
	}
}

func TestLoadConfigMalformedTuning(t *testing.T) {
	setRequiredEnv(t)

	tuningPath := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(tuningPath, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("failed to write tuning file: %v", err)
	}
	t.Setenv("TUNING_FILE", tuningPath)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() error = nil, want parse error for malformed tuning file")
	}
}
