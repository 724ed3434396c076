package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shopsync/internal/config"
	"shopsync/internal/importer"
	"shopsync/internal/logging"
	"shopsync/internal/remote"
	"shopsync/internal/store"
)

func main() {
	cfg := config.NewConfig()

	sugar, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = sugar.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.CacheDBPath, sugar)
	if err != nil {
		sugar.Fatalw("failed to open local cache", "error", err)
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(); err != nil {
		sugar.Fatalw("failed to migrate local cache", "error", err)
	}

	client := remote.NewClient(cfg.RemoteURL, cfg.RemoteToken, sugar)
	imp := importer.New(
		importer.FSBundle{FS: os.DirFS(cfg.BundleDir)},
		map[importer.Section]remote.Collection{
			importer.SectionBrands:     client.Collection("brands"),
			importer.SectionCategories: client.Collection("categories"),
			importer.SectionProducts:   client.Collection("products"),
		},
		store.NewChecksumStore(st),
		sugar,
	)

	outcome, err := imp.Run(ctx, importer.Options{
		DryRun:       cfg.DryRun,
		Overwrite:    cfg.Overwrite,
		PruneMissing: cfg.Prune,
	})
	if err != nil {
		sugar.Fatalw("import failed", "error", err)
	}
	printOutcome(outcome)
}

func printOutcome(outcome importer.Outcome) {
	if outcome.DryRun {
		fmt.Println("dry run, nothing written")
		for _, s := range outcome.Sections {
			fmt.Printf("%-12s create=%d update=%d skip=%d delete=%d\n",
				s.Section, s.Diff.Creates, s.Diff.Updates, s.Diff.Skips, s.Diff.Deletes)
		}
		return
	}
	for _, s := range outcome.Sections {
		state := "imported"
		if s.Skipped {
			state = "unchanged"
		}
		fmt.Printf("%-12s %-9s upserted=%d deleted=%d\n", s.Section, state, s.Upserted, s.Deleted)
	}
	fmt.Printf("total: upserted=%d deleted=%d\n", outcome.TotalUpserted(), outcome.TotalDeleted())
}
