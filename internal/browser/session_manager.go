// Package browser drives a Chrome instance over the DevTools protocol. It owns the
// browser process (launched or attached), tracks the pages opened for a run and
// forwards uncaught page exceptions to a sink.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session describes the public metadata for a tracked page.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type sessionRecord struct {
	meta    Session
	page    *Page
	context *rod.Browser // incognito context owning page, if any
}

type eventThrottler struct {
	interval time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
}

func newEventThrottler(ms int) *eventThrottler {
	if ms <= 0 {
		return nil
	}
	return &eventThrottler{
		interval: time.Duration(ms) * time.Millisecond,
		last:     make(map[string]time.Time),
	}
}

func (t *eventThrottler) Allow(key string) bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if last, ok := t.last[key]; ok {
		if now.Sub(last) < t.interval {
			return false
		}
	}
	t.last[key] = now
	return true
}

// Config holds browser configuration.
type Config struct {
	DebuggerURL         string   `yaml:"debugger_url" json:"debugger_url"`
	Launch              []string `yaml:"launch" json:"launch"`
	Headless            bool     `yaml:"headless" json:"headless"`
	Incognito           bool     `yaml:"incognito" json:"incognito"`
	ViewportWidth       int      `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight      int      `yaml:"viewport_height" json:"viewport_height"`
	NavigationTimeoutMs int      `yaml:"navigation_timeout_ms" json:"navigation_timeout_ms"`
	SlowMotionMs        int      `yaml:"slow_motion_ms" json:"slow_motion_ms"`
	SessionStore        string   `yaml:"session_store" json:"session_store"`
	ConsoleThrottleMs   int      `yaml:"console_throttle_ms" json:"console_throttle_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		Incognito:           true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
		ConsoleThrottleMs:   100,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// SlowMotion returns the delay inserted before each input action.
func (c Config) SlowMotion() time.Duration {
	return time.Duration(c.SlowMotionMs) * time.Millisecond
}

// SessionManager owns the Chrome instance and tracks the pages opened on it.
type SessionManager struct {
	cfg        Config
	logger     *zap.Logger
	mu         sync.RWMutex
	browser    *rod.Browser
	conn       *cdp.WebSocket
	launched   *launcher.Launcher
	sessions   map[string]*sessionRecord
	controlURL string // WebSocket URL for DevTools
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*sessionRecord),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		_, err := m.browser.Version()
		if err == nil {
			return nil
		}
		m.logger.Warn("stale browser connection, reconnecting", zap.Error(err))
		_ = m.releaseLocked()
		m.sessions = make(map[string]*sessionRecord)
	}

	if err := m.loadSessionsLocked(); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		l := m.launcherLocked()
		url, err := l.Launch()
		if err != nil && len(m.cfg.Launch) > 1 {
			// Retry without the extra flags.
			m.logger.Warn("chrome launch with flags failed, retrying plain", zap.Error(err))
			l = launcher.New().Bin(m.cfg.Launch[0]).Headless(m.cfg.Headless)
			url, err = l.Launch()
		}
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		m.launched = l
		controlURL = url
	} else {
		url, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return fmt.Errorf("resolve debugger url: %w", err)
		}
		controlURL = url
	}

	conn := &cdp.WebSocket{}
	if err := conn.Connect(ctx, controlURL, nil); err != nil {
		m.killLaunchedLocked()
		return fmt.Errorf("connect to chrome: %w", err)
	}
	browser := rod.New().Client(cdp.New().Start(conn)).Context(ctx)
	if d := m.cfg.SlowMotion(); d > 0 {
		browser = browser.SlowMotion(d)
	}
	if err := browser.Connect(); err != nil {
		_ = conn.Close()
		m.killLaunchedLocked()
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.conn = conn
	m.controlURL = controlURL
	m.logger.Info("browser connected",
		zap.String("control_url", controlURL),
		zap.Bool("launched", m.launched != nil),
		zap.Bool("headless", m.cfg.Headless))
	return nil
}

// launcherLocked builds the launcher from the configured binary and flags.
func (m *SessionManager) launcherLocked() *launcher.Launcher {
	l := launcher.New().Headless(m.cfg.Headless)
	if len(m.cfg.Launch) == 0 {
		return l
	}
	l = l.Bin(m.cfg.Launch[0])
	for _, rawFlag := range m.cfg.Launch[1:] {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// ControlURL returns the WebSocket debugger URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown closes tracked pages and their incognito contexts. A Chrome this
// manager launched is closed and stopped; an attached one is left running and
// only the DevTools connection is dropped.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for id, record := range m.sessions {
		if record.page != nil {
			_ = record.page.page.Close()
		}
		if record.context != nil {
			if err := record.context.Close(); err != nil {
				errs = append(errs, fmt.Errorf("dispose context of session %s: %w", id, err))
			}
		}
		delete(m.sessions, id)
	}
	if err := m.releaseLocked(); err != nil {
		errs = append(errs, err)
	}
	m.logger.Debug("browser shut down")
	return errors.Join(errs...)
}

// releaseLocked closes a launched Chrome, drops the DevTools connection and
// forgets the browser. Caller holds mu.
func (m *SessionManager) releaseLocked() error {
	var err error
	if m.browser != nil && m.launched != nil {
		err = m.browser.Close()
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.browser = nil
	m.killLaunchedLocked()
	m.controlURL = ""
	return err
}

func (m *SessionManager) killLaunchedLocked() {
	if m.launched != nil {
		m.launched.Kill()
		m.launched.Cleanup()
		m.launched = nil
	}
}

// List returns metadata for all known sessions.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Session, 0, len(m.sessions))
	for _, record := range m.sessions {
		results = append(results, record.meta)
	}
	return results
}

// Open creates a page, sizes its viewport, navigates it to url and starts
// forwarding its runtime events. The event stream lives as long as ctx.
func (m *SessionManager) Open(ctx context.Context, url string) (*Page, error) {
	if !m.IsConnected() {
		if err := m.Start(ctx); err != nil {
			return nil, err
		}
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	var incognito *rod.Browser
	if m.cfg.Incognito {
		var err error
		if incognito, err = browser.Incognito(); err != nil {
			return nil, fmt.Errorf("incognito context: %w", err)
		}
		browser = incognito
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		if incognito != nil {
			_ = incognito.Close()
		}
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.logger.Warn("viewport not applied", zap.Error(err))
	}

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		Status:     "active",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}
	p := newPage(meta.ID, page, m.cfg, m.logger.With(zap.String("session", meta.ID)))

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: p, context: incognito}
	m.mu.Unlock()

	m.startEventStream(ctx, meta.ID, p)
	if err := m.persistSessions(); err != nil {
		m.logger.Warn("session store not written", zap.Error(err))
	}

	if url != "" {
		if err := p.Navigate(ctx, url); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Page returns the tracked page for a session.
func (m *SessionManager) Page(sessionID string) (*Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok || rec.page == nil {
		return nil, false
	}
	return rec.page, true
}

// UpdateMetadata updates session metadata.
func (m *SessionManager) UpdateMetadata(sessionID string, updater func(Session) Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.sessions[sessionID]; ok {
		rec.meta = updater(rec.meta)
	}
}

// startEventStream forwards uncaught exceptions to the page's sink, logs console
// errors and keeps the session URL current.
func (m *SessionManager) startEventStream(ctx context.Context, sessionID string, p *Page) {
	if err := (proto.RuntimeEnable{}).Call(p.page); err != nil {
		m.logger.Warn("runtime events unavailable", zap.String("session", sessionID), zap.Error(err))
		return
	}
	throttler := newEventThrottler(m.cfg.ConsoleThrottleMs)
	logger := m.logger.With(zap.String("session", sessionID))

	wait := p.page.Context(ctx).EachEvent(
		func(ev *proto.RuntimeExceptionThrown) {
			p.observeException(exceptionMessage(ev))
		},
		func(ev *proto.RuntimeConsoleAPICalled) {
			if ev.Type != proto.RuntimeConsoleAPICalledTypeError && ev.Type != proto.RuntimeConsoleAPICalledTypeWarning {
				return
			}
			if !throttler.Allow("console") {
				return
			}
			logger.Debug("console", zap.String("type", string(ev.Type)), zap.String("message", stringifyConsoleArgs(ev.Args)))
		},
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame == nil || ev.Frame.ParentID != "" {
				return
			}
			m.UpdateMetadata(sessionID, func(s Session) Session {
				s.URL = ev.Frame.URL
				s.LastActive = time.Now()
				return s
			})
		},
	)
	go wait()
}

func exceptionMessage(ev *proto.RuntimeExceptionThrown) string {
	d := ev.ExceptionDetails
	if d == nil {
		return ""
	}
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Exception.Description
	}
	return d.Text
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case arg == nil:
			continue
		case arg.Description != "":
			parts = append(parts, arg.Description)
		case !arg.Value.Nil():
			parts = append(parts, arg.Value.String())
		default:
			parts = append(parts, string(arg.Type))
		}
	}
	return strings.Join(parts, " ")
}

func (m *SessionManager) persistSessions() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]Session, 0, len(m.sessions))
	for _, rec := range m.sessions {
		sessions = append(sessions, rec.meta)
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.cfg.SessionStore), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.cfg.SessionStore, data, 0o644)
}

// loadSessionsLocked loads persisted metadata. Caller must hold lock.
func (m *SessionManager) loadSessionsLocked() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	data, err := os.ReadFile(m.cfg.SessionStore)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return err
	}

	for _, s := range sessions {
		s.Status = "detached"
		m.sessions[s.ID] = &sessionRecord{meta: s}
	}
	return nil
}
