// Command feed fetches daily arXiv category feeds into the snapshot store
// and manages its retention.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rag-toxiv/config"
	"rag-toxiv/feed"
	"rag-toxiv/fetcher"
	"rag-toxiv/scheduler"
	"rag-toxiv/storage"
)

const usage = `Usage: feed [options] [categories...]

Commands:
  <category> [category2...]       Fetch and save today's feed for categories
  --cleanup <days>                Delete files older than n days
  --cleanup-by-cat-max-files <n>  Keep only n files per category
  --list                          List all data files

Options:
  --category <cat>   Specify category for cleanup/list
  --skip-empty=1     Skip empty files when counting (default)
  --skip-empty=0     Count empty files toward limit
  --dry-run          Show what would be saved/deleted without doing it
  --schedule HH:MM   Keep running and fetch daily at the given time
  --config <path>    Config file (default ./config.yaml)

Examples:
  feed cs.LG
  feed cs.AI cs.LG math.CT --dry-run
  feed --cleanup 30 --category cs.LG
  feed --cleanup-by-cat-max-files 7 --skip-empty=0
  feed --list --category cs.LG
  feed --schedule 06:30 cs.LG math.CO
`

func main() {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	var (
		cleanupDays = fs.Int("cleanup", -1, "delete files older than n days")
		maxPerCat   = fs.Int("cleanup-by-cat-max-files", -1, "keep only n files per category")
		list        = fs.Bool("list", false, "list all data files")
		category    = fs.String("category", "", "category for cleanup/list")
		skipEmpty   = fs.Int("skip-empty", 1, "skip empty files when counting (1) or not (0)")
		dryRun      = fs.Bool("dry-run", false, "report without writing or deleting")
		schedule    = fs.String("schedule", "", "fetch daily at HH:MM instead of once")
		cfgPath     = fs.String("config", "./config.yaml", "config file path")
	)

	if stop, code := parseFlags(fs, os.Args[1:]); stop {
		os.Exit(code)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	store := storage.NewSnapshotStore(cfg.DataDir)

	switch {
	case *list:
		if err := listFiles(store, *category); err != nil {
			slog.Error("list failed", "error", err)
			os.Exit(1)
		}

	case *maxPerCat >= 0:
		n, err := store.CleanupByRetention(*maxPerCat, *category, *skipEmpty != 0, *dryRun)
		if err != nil {
			slog.Error("retention cleanup failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s %d file(s) total (keeping %d per category)\n", action(*dryRun), n, *maxPerCat)

	case *cleanupDays >= 0:
		n, err := store.CleanupByAge(*cleanupDays, *category, *dryRun)
		if err != nil {
			slog.Error("age cleanup failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s %d file(s) older than %d days\n", action(*dryRun), n, *cleanupDays)

	default:
		categories := fs.Args()
		if len(categories) == 0 {
			categories = cfg.Categories
		}
		if len(categories) == 0 {
			categories = []string{cfg.DefaultCategory}
		}

		f := fetcher.New(
			feed.NewArxivRetriever(&http.Client{Timeout: 30 * time.Second}),
			fetcher.Config{
				Period:     time.Duration(cfg.FetchPeriodSec) * time.Second,
				Trials:     cfg.FetchMaxTrials,
				RetrySleep: time.Duration(cfg.FetchRetrySec) * time.Second,
			},
		)

		task := func() { fetchAll(os.Stdout, f, store, cfg, categories, *dryRun) }

		if *schedule == "" {
			task()
			return
		}

		sched, err := scheduler.New(cfg.Timezone)
		if err != nil {
			slog.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		if err := sched.Daily(*schedule, task); err != nil {
			slog.Error("failed to schedule fetch", "error", err)
			os.Exit(1)
		}
		sched.Start()
		slog.Info("scheduler started", "at", *schedule, "categories", categories)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		sched.Stop()
	}
}

// parseFlags parses args and reports whether the program should stop, and
// with what exit code. An explicit --help exits 0; a bad flag exits 1.
func parseFlags(fs *flag.FlagSet, args []string) (bool, int) {
	switch err := fs.Parse(args); {
	case err == nil:
		return false, 0
	case errors.Is(err, flag.ErrHelp):
		return true, 0
	default:
		return true, 1
	}
}

func fetchAll(out io.Writer, f *fetcher.Fetcher, store *storage.SnapshotStore, cfg config.Config, categories []string, dryRun bool) {
	ctx := context.Background()
	for _, cat := range categories {
		slog.Info("fetching", "category", cat)
		result, err := f.Fetch(ctx, cat, cfg.Aliases)
		if err != nil {
			slog.Error("fetch failed", "category", cat, "error", err)
			continue
		}
		snap := storage.NewSnapshot(result, time.Now())
		path, err := store.Save(snap, dryRun)
		if err != nil {
			slog.Error("save failed", "category", cat, "error", err)
			continue
		}
		if dryRun {
			fmt.Fprintf(out, "Would save %d papers to %s\n", len(snap.Papers), path)
		} else {
			fmt.Fprintf(out, "Saved %d papers to %s\n", len(snap.Papers), path)
		}
	}
}

func listFiles(store *storage.SnapshotStore, category string) error {
	infos, err := store.List(category)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No data files found")
		return nil
	}

	fmt.Printf("Data files in %s:\n", store.Dir())
	for _, fi := range infos {
		marker := ""
		if fi.Empty {
			marker = " (empty)"
		}
		fmt.Printf("  %s (%d bytes)%s\n", fi.Name, fi.Size, marker)
	}
	fmt.Printf("\nTotal: %d file(s)\n", len(infos))
	return nil
}

func action(dryRun bool) string {
	if dryRun {
		return "Would delete"
	}
	return "Deleted"
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
