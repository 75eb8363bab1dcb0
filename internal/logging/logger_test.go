package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func initForTest(t *testing.T, c Config) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	c.Output = buf
	if err := Initialize(c); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
	return buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestGetBeforeInitializeIsNoop(t *testing.T) {
	_ = Close()
	l := Get(CategoryScenario)
	if l == nil {
		t.Fatal("Get returned nil")
	}
	l.Info("dropped")
}

// TestAllCategoriesLog checks every category writes a JSON line naming itself.
func TestAllCategoriesLog(t *testing.T) {
	buf := initForTest(t, Config{Level: "debug"})

	for _, cat := range Categories {
		Get(cat).Debug("hello", zap.String("cat", string(cat)))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(Categories) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(Categories), buf.String())
	}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		if entry["logger"] != string(Categories[i]) {
			t.Errorf("line %d logger = %v, want %s", i, entry["logger"], Categories[i])
		}
		if entry["level"] != "debug" {
			t.Errorf("line %d level = %v", i, entry["level"])
		}
	}
}

func TestDisabledCategory(t *testing.T) {
	buf := initForTest(t, Config{Categories: map[string]bool{"browser": false, "store": true}})

	if IsCategoryEnabled(CategoryBrowser) {
		t.Error("browser should be disabled")
	}
	if !IsCategoryEnabled(CategoryActions) {
		t.Error("unlisted categories are enabled")
	}
	Get(CategoryBrowser).Error("hidden")
	Get(CategoryStore).Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestLevelFilteringAndSetLevel(t *testing.T) {
	buf := initForTest(t, Config{Level: "warn", Format: "text"})
	l := Get(CategoryActions)

	l.Info("quiet")
	l.Warn("loud")
	SetLevel(zapcore.DebugLevel)
	l.Debug("verbose now")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info logged at warn level:\n%s", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "loud") {
		t.Errorf("warning missing:\n%s", out)
	}
	if !strings.Contains(out, "verbose now") {
		t.Errorf("SetLevel did not reach existing logger:\n%s", out)
	}
	if Level() != zapcore.DebugLevel {
		t.Errorf("Level() = %v", Level())
	}
}

func TestCategoryFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	initForTest(t, Config{Dir: dir})

	Get(CategoryFixture).Info("loaded", zap.Int("lists", 3))
	if err := Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	name := time.Now().Format("2006-01-02") + "_fixture.log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(data), `"lists":3`) {
		t.Errorf("file content: %s", data)
	}
}

func TestInitializeRejectsBadConfig(t *testing.T) {
	t.Cleanup(func() { _ = Close() })
	if err := Initialize(Config{Level: "chatty"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := Initialize(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
