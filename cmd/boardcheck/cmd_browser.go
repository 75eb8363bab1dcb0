package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"boardcheck/internal/browser"
	"boardcheck/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// browserCmd manages a long-lived Chrome that runs can attach to.
var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Manage a shared browser instance",
}

var browserLaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch Chrome and keep it running until interrupted",
	Long: `Launches Chrome and writes its DevTools control URL to
.boardcheck/browser/control.txt. While the file exists, "boardcheck run" attaches
to this browser instead of starting its own.`,
	RunE: browserLaunch,
}

func init() {
	browserCmd.AddCommand(browserLaunchCmd)
}

// controlFile is where a launched browser advertises its control URL.
func controlFile() string {
	return filepath.Join(".boardcheck", "browser", "control.txt")
}

func readControlURL() (string, error) {
	data, err := os.ReadFile(controlFile())
	if err != nil {
		return "", err
	}
	url := strings.TrimSpace(string(data))
	if url == "" {
		return "", fmt.Errorf("%s is empty", controlFile())
	}
	return url, nil
}

// browserLaunch launches the browser instance
func browserLaunch(cmd *cobra.Command, args []string) error {
	logger.Info("Launching browser")

	bcfg := cfg.Browser
	bcfg.DebuggerURL = ""
	if bcfg.SessionStore == "" {
		bcfg.SessionStore = filepath.Join(".boardcheck", "browser", "sessions.json")
	}
	mgr := browser.NewSessionManager(bcfg, logging.Get(logging.CategoryBrowser))
	if err := mgr.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}

	path := controlFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		if err := os.WriteFile(path, []byte(mgr.ControlURL()), 0o644); err != nil {
			logger.Warn("Failed to write browser control file", zap.Error(err))
		}
	}

	fmt.Printf("Browser launched. Control URL: %s\n", mgr.ControlURL())
	fmt.Printf("Session store: %s\n", bcfg.SessionStore)
	fmt.Println("Press Ctrl+C to shutdown")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove browser control file", zap.Error(err))
	}
	if err := mgr.Shutdown(context.Background()); err != nil {
		logger.Warn("Failed to shutdown browser manager", zap.Error(err))
	}
	return nil
}
