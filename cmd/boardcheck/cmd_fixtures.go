package main

import (
	"context"
	"fmt"

	"boardcheck/internal/fixture"
	"boardcheck/internal/logging"

	"github.com/spf13/cobra"
)

var fixturesDir string

var fixturesCmd = &cobra.Command{
	Use:   "fixtures",
	Short: "Load and validate the fixture set without a browser",
	RunE:  checkFixtures,
}

func init() {
	fixturesCmd.Flags().StringVar(&fixturesDir, "dir", "", "Fixtures directory (overrides fixtures.dir)")
}

func checkFixtures(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dir := cfg.Fixtures.Dir
	if fixturesDir != "" {
		dir = fixturesDir
	}
	loader := fixture.NewLoader(dir, logging.Get(logging.CategoryFixture))
	if cfg.Fixtures.EnvFile != "" {
		loader.EnvFile = cfg.Fixtures.EnvFile
	}

	set, err := loader.LoadAll(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Fixtures: %s\n", dir)
	fmt.Printf("Credentials: %s\n", set.Credentials)
	fmt.Printf("Lists (%d):\n", len(set.Lists))
	for _, l := range set.Lists {
		fmt.Printf("  %s\n", l)
	}
	fmt.Printf("Cards (%d):\n", len(set.Cards))
	for _, g := range fixture.GroupByList(set.Cards) {
		fmt.Printf("  %s: %v\n", g.ListName, g.Cards)
	}
	fmt.Printf("Moves (%d):\n", len(set.Moves))
	for _, m := range set.Moves {
		fmt.Printf("  %s\n", m)
	}

	if err := set.Validate(cfg.App.BoardName); err != nil {
		return fmt.Errorf("invalid fixtures for board %q: %w", cfg.App.BoardName, err)
	}
	fmt.Println("OK")
	return nil
}
