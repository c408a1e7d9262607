// Command bot answers Mastodon mentions with replies grounded in recently
// archived arXiv papers. Default is a single pass over pending mentions;
// --daemon polls continuously and --cli starts an interactive session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rag-toxiv/bot"
	"rag-toxiv/cli"
	"rag-toxiv/config"
	"rag-toxiv/llm"
	"rag-toxiv/mastodon"
	"rag-toxiv/prompt"
	"rag-toxiv/storage"
)

const usage = `Usage: bot [options]

Modes:
  --cli             Interactive command-line mode
  --daemon          Poll Mastodon mentions continuously
  (default)         Process Mastodon mentions once and exit

Options:
  --dry-run           Don't actually post replies
  --category <cat>    Initial category (CLI mode, e.g., --category math.CO)
  --cat-max-files <n> Number of data files to load per category
  --config <path>     Config file (default ./config.yaml)

Context modes (choose one):
  --title           Paper titles only
  --first-sentence  Titles + first sentence of abstract (default)
  --full-abstract   Titles + full abstracts

Environment:
  MASTODON_ACCESS_TOKEN  required for the Mastodon modes
  OPENROUTER_API_KEY     required to generate replies
`

func main() {
	fs := flag.NewFlagSet("bot", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	var (
		cliMode      = fs.Bool("cli", false, "interactive command-line mode")
		daemon       = fs.Bool("daemon", false, "poll continuously")
		dryRun       = fs.Bool("dry-run", false, "don't actually post replies")
		category     = fs.String("category", "", "initial category")
		catMaxFiles  = fs.Int("cat-max-files", 0, "data files to load per category")
		titleMode    = fs.Bool("title", false, "titles-only context")
		firstMode    = fs.Bool("first-sentence", false, "first-sentence context")
		abstractMode = fs.Bool("full-abstract", false, "full-abstract context")
		cfgPath      = fs.String("config", "./config.yaml", "config file path")
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

	mode := prompt.Mode(cfg.ContextMode)
	switch {
	case *titleMode:
		mode = prompt.ModeTitle
	case *abstractMode:
		mode = prompt.ModeFullAbstract
	case *firstMode:
		mode = prompt.ModeFirstSentence
	}

	if *category != "" {
		cfg.DefaultCategory = *category
	}
	if *catMaxFiles > 0 {
		cfg.CatMaxFiles = *catMaxFiles
	}

	store := storage.NewSnapshotStore(cfg.DataDir)
	httpClient := &http.Client{Timeout: 120 * time.Second}
	completer := llm.NewClient(cfg.OpenRouterAPIKey, cfg.LLMModel, httpClient)

	if *cliMode {
		session := cli.New(cli.Config{
			Category:  cfg.DefaultCategory,
			Mode:      mode,
			FileCount: cfg.CatMaxFiles,
			Model:     cfg.LLMModel,
		}, store, completer, os.Stdin, os.Stdout)

		if err := session.Run(context.Background()); err != nil {
			slog.Error("cli session failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if cfg.MastodonAccessToken == "" {
		fmt.Fprintln(os.Stderr, "Error: MASTODON_ACCESS_TOKEN not set")
		os.Exit(1)
	}

	processed, err := storage.LoadProcessedSet(cfg.ProcessedPath())
	if err != nil {
		slog.Error("failed to load processed set", "error", err)
		os.Exit(1)
	}

	interactions, err := storage.OpenInteractionLog(cfg.InteractionDBPath())
	if err != nil {
		slog.Error("failed to open interaction log", "error", err)
		os.Exit(1)
	}
	defer interactions.Close()

	b := bot.New(bot.Config{
		DefaultCategory: cfg.DefaultCategory,
		CatMaxFiles:     cfg.CatMaxFiles,
		SkipEmpty:       cfg.SkipEmptyFiles(),
		ContextMode:     mode,
		PollInterval:    time.Duration(cfg.PollIntervalSec) * time.Second,
		ReplyDelay:      time.Duration(cfg.ReplyDelaySec) * time.Second,
		MaxPostLen:      cfg.MaxPostLength,
		PostMargin:      cfg.PostMargin,
		DryRun:          *dryRun,
	}, bot.Deps{
		Client:       mastodon.NewClient(cfg.Instance, cfg.MastodonAccessToken, httpClient),
		LLM:          completer,
		Snapshots:    store,
		Processed:    processed,
		Interactions: interactions,
	})

	if !*daemon {
		if err := b.RunOnce(context.Background()); err != nil {
			slog.Error("run-once pass failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	slog.Info("bot starting", "instance", cfg.Instance, "username", cfg.Username, "model", cfg.LLMModel)
	if err := b.Run(ctx); err != nil {
		slog.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
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
