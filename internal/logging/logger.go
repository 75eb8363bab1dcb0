// Package logging provides config-driven categorized logging for boardcheck.
// Every category is a named zap logger sharing one level; a category can be
// switched off from config, and with a log directory set each category is also
// written to its own dated file.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // CLI startup, config loading
	CategoryBrowser  Category = "browser"  // Chrome process, pages, DevTools events
	CategoryActions  Category = "actions"  // Action commands and their waits
	CategoryScenario Category = "scenario" // Suite and scenario execution
	CategoryFixture  Category = "fixture"  // Fixture loading and validation
	CategoryStore    Category = "store"    // Run history
	CategoryFaults   Category = "faults"   // Uncaught application errors
)

// Categories lists every category.
var Categories = []Category{
	CategoryBoot,
	CategoryBrowser,
	CategoryActions,
	CategoryScenario,
	CategoryFixture,
	CategoryStore,
	CategoryFaults,
}

// Config controls logging.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
	// Format is json (default) or text.
	Format string `yaml:"format" json:"format"`
	// Dir, when set, receives one <date>_<category>.log file per category.
	Dir string `yaml:"dir" json:"dir"`
	// Categories switches categories off; unlisted categories are enabled.
	Categories map[string]bool `yaml:"categories" json:"categories"`

	// Output replaces stderr. Not read from config files.
	Output io.Writer `yaml:"-" json:"-"`
}

var (
	mu      sync.RWMutex
	cfg     Config
	level   = zap.NewAtomicLevelAt(zap.InfoLevel)
	console zapcore.Core
	loggers = make(map[Category]*zap.Logger)
	files   []*os.File
)

// Initialize sets up logging. It may be called again to apply a new config;
// loggers returned earlier keep their old outputs.
func Initialize(c Config) error {
	lvl := zap.InfoLevel
	if c.Level != "" {
		parsed, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return fmt.Errorf("logging level: %w", err)
		}
		lvl = parsed
	}
	enc, err := encoder(c.Format)
	if err != nil {
		return err
	}
	if c.Dir != "" {
		if err := os.MkdirAll(c.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}
	out := c.Output
	if out == nil {
		out = os.Stderr
	}

	mu.Lock()
	defer mu.Unlock()
	closeFilesLocked()
	cfg = c
	level.SetLevel(lvl)
	console = zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), level)
	loggers = make(map[Category]*zap.Logger)
	return nil
}

func encoder(format string) (zapcore.Encoder, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	switch format {
	case "", "json":
		return zapcore.NewJSONEncoder(ec), nil
	case "text", "console":
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(ec), nil
	default:
		return nil, fmt.Errorf("logging format %q: want json or text", format)
	}
}

// SetLevel changes the level of every logger, including ones already handed out.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// Level returns the current level.
func Level() zapcore.Level {
	return level.Level()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Disabled categories and
// an uninitialized package get a no-op logger.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	if console == nil || !categoryEnabledLocked(category) {
		return zap.NewNop()
	}

	core := console
	if cfg.Dir != "" {
		if fileCore, err := fileCoreLocked(category); err != nil {
			fmt.Fprintf(os.Stderr, "[logging] Warning: %v\n", err)
		} else {
			core = zapcore.NewTee(console, fileCore)
		}
	}
	l := zap.New(core).Named(string(category))
	loggers[category] = l
	return l
}

func fileCoreLocked(category Category) (zapcore.Core, error) {
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(cfg.Dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file %s: %w", logPath, err)
	}
	files = append(files, file)
	enc, err := encoder(cfg.Format)
	if err != nil {
		return nil, err
	}
	return zapcore.NewCore(enc, zapcore.AddSync(file), level), nil
}

// Sync flushes every category.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	var errs []error
	for _, l := range loggers {
		if err := l.Sync(); err != nil && !isInvalidSync(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// isInvalidSync filters the error fsync returns for terminals and pipes.
func isInvalidSync(err error) bool {
	var pe *os.PathError
	return errors.As(err, &pe) || errors.Is(err, os.ErrInvalid)
}

// Close flushes and closes log files and returns the package to its
// uninitialized state.
func Close() error {
	err := Sync()
	mu.Lock()
	defer mu.Unlock()
	closeFilesLocked()
	console = nil
	cfg = Config{}
	loggers = make(map[Category]*zap.Logger)
	return err
}

func closeFilesLocked() {
	for _, f := range files {
		_ = f.Close()
	}
	files = nil
}
