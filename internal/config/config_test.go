package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvBaseURL, EnvIdentityOrigin, EnvBoardName, EnvHeadless,
		EnvDebuggerURL, EnvFixtures, EnvHistoryDB, EnvArtifacts} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.App.BoardName != "Board1" {
		t.Errorf("expected BoardName=Board1, got %s", cfg.App.BoardName)
	}
	if !cfg.Browser.Headless {
		t.Error("expected headless browser by default")
	}
	if len(cfg.Suppress.Allow) != 1 {
		t.Errorf("expected one suppressed signature, got %v", cfg.Suppress.Allow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "boardcheck.yaml")

	cfg := DefaultConfig()
	cfg.App.BaseURL = "http://localhost:3000"
	cfg.Browser.SlowMotionMs = 250
	cfg.Suppress.Allow = append(cfg.Suppress.Allow, "Script error.")

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.App.BaseURL != "http://localhost:3000" {
		t.Errorf("expected BaseURL=http://localhost:3000, got %s", loaded.App.BaseURL)
	}
	if loaded.Browser.SlowMotionMs != 250 {
		t.Errorf("expected SlowMotionMs=250, got %d", loaded.Browser.SlowMotionMs)
	}
	if got := loaded.Suppress.Allow; len(got) != 2 || got[1] != "Script error." {
		t.Errorf("unexpected allow-list %v", got)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "boardcheck.yaml")
	content := "app:\n  board_name: Sprint\ntimeouts:\n  wait: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.BoardName != "Sprint" {
		t.Errorf("expected BoardName=Sprint, got %s", cfg.App.BoardName)
	}
	if cfg.App.BaseURL != DefaultConfig().App.BaseURL {
		t.Errorf("base URL default lost: %s", cfg.App.BaseURL)
	}
	if p := cfg.GetWaitPolicy(); p.Timeout != 2*time.Second || p.Interval != 100*time.Millisecond {
		t.Errorf("unexpected wait policy %+v", p)
	}
}

func TestLoad_MissingFileAndBadYAML(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should yield defaults: %v", err)
	}
	if cfg.App.BoardName != "Board1" {
		t.Errorf("expected defaults, got %+v", cfg.App)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("app: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBaseURL, "http://kanban.local")
	t.Setenv(EnvHeadless, "false")
	t.Setenv(EnvFixtures, "/data/fixtures")
	t.Setenv(EnvHistoryDB, "/data/history.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.BaseURL != "http://kanban.local" {
		t.Errorf("expected env base URL, got %s", cfg.App.BaseURL)
	}
	if cfg.Browser.Headless {
		t.Error("expected headless=false from env")
	}
	if cfg.Fixtures.Dir != "/data/fixtures" || cfg.History.DatabasePath != "/data/history.db" {
		t.Errorf("paths not overridden: %+v %+v", cfg.Fixtures, cfg.History)
	}

	t.Setenv(EnvHeadless, "maybe")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for unparseable BOARDCHECK_HEADLESS")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.BaseURL = "trello.com"
	cfg.App.BoardName = ""
	cfg.Timeouts.Login = "soon"
	cfg.Timeouts.Attempts = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"app.base_url", "app.board_name", "timeouts.login", "timeouts.attempts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeouts.Login = "not a duration"
	cfg.Timeouts.RetryPause = "0s"

	if cfg.GetLoginTimeout() != 30*time.Second {
		t.Errorf("GetLoginTimeout should fall back, got %v", cfg.GetLoginTimeout())
	}
	if cfg.GetRetryPause() != 0 {
		t.Errorf("a zero retry pause is allowed, got %v", cfg.GetRetryPause())
	}
	if cfg.GetScenarioTimeout() != 5*time.Minute {
		t.Errorf("GetScenarioTimeout = %v", cfg.GetScenarioTimeout())
	}

	opts := cfg.ActionOptions()
	if opts.BaseURL != cfg.App.BaseURL || opts.Attempts != 3 || opts.AuthenticatedRoute != "/boards" {
		t.Errorf("unexpected action options %+v", opts)
	}
	if opts.Policy.Timeout != 15*time.Second {
		t.Errorf("unexpected policy %+v", opts.Policy)
	}
}
