package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Source names, matching the Cypress fixtures layout.
const (
	SourceCredentials = "credentials"
	SourceLists       = "lists"
	SourceCards       = "cards"
	SourceMoves       = "movingCards"
)

// Environment fallback for credentials.
const (
	EnvEmail    = "BOARDCHECK_EMAIL"
	EnvPassword = "BOARDCHECK_PASSWORD"
)

var extensions = []string{".json", ".yaml", ".yml"}

// ErrNoSource is returned when no file exists for a source name.
var ErrNoSource = errors.New("fixture source not found")

// Loader reads fixtures from a directory.
type Loader struct {
	Dir string
	// EnvFile is an optional dotenv file consulted for credentials.
	EnvFile string
	Logger  *zap.Logger
}

// NewLoader returns a loader rooted at dir.
func NewLoader(dir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Dir: dir, EnvFile: filepath.Join(dir, ".env"), Logger: logger}
}

// path finds the file backing a source, trying each supported extension.
func (l *Loader) path(source string) (string, error) {
	for _, ext := range extensions {
		p := filepath.Join(l.Dir, source+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s in %s: %w", source, l.Dir, ErrNoSource)
}

func decode(ctx context.Context, path string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, out)
	default:
		err = yaml.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (l *Loader) load(ctx context.Context, source string, out any) error {
	p, err := l.path(source)
	if err != nil {
		return err
	}
	if err := decode(ctx, p, out); err != nil {
		return err
	}
	l.Logger.Debug("fixture loaded", zap.String("source", source), zap.String("path", p))
	return nil
}

// Credentials loads the credentials fixture, falling back to the environment and
// the loader's dotenv file when no credentials file exists.
func (l *Loader) Credentials(ctx context.Context) (Credentials, error) {
	var c Credentials
	err := l.load(ctx, SourceCredentials, &c)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNoSource) {
		return Credentials{}, err
	}

	env := map[string]string{}
	if l.EnvFile != "" {
		if m, rerr := godotenv.Read(l.EnvFile); rerr == nil {
			env = m
		} else if !errors.Is(rerr, fs.ErrNotExist) {
			return Credentials{}, fmt.Errorf("read %s: %w", l.EnvFile, rerr)
		}
	}
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return env[key]
	}
	c = Credentials{Email: lookup(EnvEmail), Password: lookup(EnvPassword)}
	if c.Empty() {
		return Credentials{}, fmt.Errorf("no credentials fixture and %s/%s unset: %w", EnvEmail, EnvPassword, ErrNoSource)
	}
	l.Logger.Debug("credentials taken from environment")
	return c, nil
}

// Lists loads the ordered list names.
func (l *Loader) Lists(ctx context.Context) ([]string, error) {
	var v Lists
	if err := l.load(ctx, SourceLists, &v); err != nil {
		return nil, err
	}
	return v.Lists, nil
}

// Cards loads the ordered card definitions.
func (l *Loader) Cards(ctx context.Context) ([]Card, error) {
	var v Cards
	if err := l.load(ctx, SourceCards, &v); err != nil {
		return nil, err
	}
	return v.Cards, nil
}

// Moves loads the ordered move instructions. The file is a bare array.
func (l *Loader) Moves(ctx context.Context) ([]Move, error) {
	var v []Move
	if err := l.load(ctx, SourceMoves, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// LoadAll reads every source concurrently and returns once all of them are
// available. The first failure cancels the remaining reads.
func (l *Loader) LoadAll(ctx context.Context) (*Set, error) {
	var set Set
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		set.Credentials, err = l.Credentials(gctx)
		return err
	})
	g.Go(func() (err error) {
		set.Lists, err = l.Lists(gctx)
		return err
	})
	g.Go(func() (err error) {
		set.Cards, err = l.Cards(gctx)
		return err
	})
	g.Go(func() (err error) {
		set.Moves, err = l.Moves(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}
	l.Logger.Info("fixtures loaded",
		zap.String("dir", l.Dir),
		zap.Int("lists", len(set.Lists)),
		zap.Int("cards", len(set.Cards)),
		zap.Int("moves", len(set.Moves)))
	return &set, nil
}
