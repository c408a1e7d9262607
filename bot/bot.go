// Package bot runs the mention-polling reply loop.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rag-toxiv/feed"
	"rag-toxiv/mastodon"
	"rag-toxiv/prompt"
	"rag-toxiv/storage"
)

// MentionClient fetches pending mentions and posts replies.
type MentionClient interface {
	Mentions(ctx context.Context) ([]mastodon.Mention, error)
	Reply(ctx context.Context, m mastodon.Mention, text, visibility string) error
}

// Completer generates an LLM completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SnapshotSource loads recent papers and enumerates stored categories.
type SnapshotSource interface {
	LoadRecent(category string, maxFiles int, skipEmpty bool) ([]feed.Paper, error)
	Categories() ([]string, error)
}

// InteractionRecorder persists per-reply interaction records.
type InteractionRecorder interface {
	Record(in storage.Interaction) error
}

// Config holds poller behavior knobs.
type Config struct {
	DefaultCategory string
	CatMaxFiles     int
	SkipEmpty       bool
	ContextMode     prompt.Mode
	PollInterval    time.Duration
	ReplyDelay      time.Duration
	MaxPostLen      int
	PostMargin      int
	DryRun          bool
}

// Deps holds the poller's injectable collaborators. Interactions may be nil.
type Deps struct {
	Client       MentionClient
	LLM          Completer
	Snapshots    SnapshotSource
	Processed    *storage.ProcessedSet
	Interactions InteractionRecorder
}

// Bot polls mentions, routes them to the help response or a
// category-grounded LLM reply, and records each handled mention durably.
type Bot struct {
	client       MentionClient
	llm          Completer
	snapshots    SnapshotSource
	processed    *storage.ProcessedSet
	interactions InteractionRecorder
	cfg          Config

	// sleep is replaceable so tests can advance without real waiting.
	sleep func(time.Duration)
}

// New creates a Bot.
func New(cfg Config, deps Deps) *Bot {
	return &Bot{
		client:       deps.Client,
		llm:          deps.LLM,
		snapshots:    deps.Snapshots,
		processed:    deps.Processed,
		interactions: deps.Interactions,
		cfg:          cfg,
		sleep:        time.Sleep,
	}
}

// Run polls continuously until ctx is canceled. Any error during a poll pass
// is logged and the loop continues after the poll interval; the ledger is
// saved after each handled mention so a crash between mentions neither
// reprocesses nor forgets them.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("bot started",
		"poll_interval", b.cfg.PollInterval,
		"context_mode", b.cfg.ContextMode,
		"default_category", b.cfg.DefaultCategory,
		"already_processed", b.processed.Len())

	for {
		if err := b.poll(ctx, true); err != nil {
			slog.Error("poll pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
		b.sleep(b.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// RunOnce processes pending mentions one time. The ledger is saved after the
// batch, including when a mention in the middle failed.
func (b *Bot) RunOnce(ctx context.Context) error {
	slog.Info("checking for new mentions", "context_mode", b.cfg.ContextMode)

	pollErr := b.poll(ctx, false)
	if err := b.processed.Save(); err != nil {
		slog.Error("failed to save processed set", "error", err)
		if pollErr == nil {
			pollErr = err
		}
	}
	return pollErr
}

func (b *Bot) poll(ctx context.Context, saveEach bool) error {
	mentions, err := b.client.Mentions(ctx)
	if err != nil {
		return fmt.Errorf("fetching mentions: %w", err)
	}

	for _, m := range mentions {
		if b.processed.Contains(m.ID) {
			continue
		}

		replied, err := b.handleMention(ctx, m, saveEach)
		if err != nil {
			return fmt.Errorf("mention %s: %w", m.ID, err)
		}
		if replied {
			b.sleep(b.cfg.ReplyDelay)
		}
	}
	return nil
}

// handleMention runs one mention through filter, classify, context, generate,
// truncate, deliver, and record. It reports whether a reply was produced.
// Failures return before the mention is recorded, so the next poll retries it.
func (b *Bot) handleMention(ctx context.Context, m mastodon.Mention, saveEach bool) (bool, error) {
	if m.Visibility != mastodon.VisibilityPublic && m.Visibility != mastodon.VisibilityUnlisted {
		slog.Info("skipping mention by visibility", "visibility", m.Visibility, "account", m.Account)
		return false, b.record(m.ID, saveEach)
	}

	content := StripHTML(m.Content)
	question := StripMentions(content)

	slog.Info("new mention", "account", m.Account, "visibility", m.Visibility, "question", question)

	if question == "" {
		slog.Info("empty question, skipping", "account", m.Account)
		return false, b.record(m.ID, saveEach)
	}

	var reply, category string
	if IsHelpRequest(question) {
		cats, err := b.snapshots.Categories()
		if err != nil {
			return false, fmt.Errorf("listing categories: %w", err)
		}
		reply = prompt.Help(cats)
		category = "help"
	} else {
		category = ExtractCategory(content, b.cfg.DefaultCategory)
		slog.Info("resolved category", "category", category)

		papers, err := b.snapshots.LoadRecent(category, b.cfg.CatMaxFiles, b.cfg.SkipEmpty)
		if err != nil {
			return false, fmt.Errorf("loading snapshots for %s: %w", category, err)
		}

		if len(papers) == 0 {
			cats, err := b.snapshots.Categories()
			if err != nil {
				return false, fmt.Errorf("listing categories: %w", err)
			}
			reply = prompt.NoData(category, cats)
		} else {
			slog.Info("generating reply", "papers", len(papers), "mode", b.cfg.ContextMode)
			contextBlock, err := prompt.BuildContext(papers, b.cfg.ContextMode)
			if err != nil {
				return false, err
			}
			reply, err = b.llm.Complete(ctx, prompt.Question(category, contextBlock, question))
			if err != nil {
				return false, fmt.Errorf("generating reply: %w", err)
			}
		}
	}

	reply = Truncate(reply, b.cfg.MaxPostLen, b.cfg.PostMargin)
	slog.Info("reply ready", "chars", len(reply))

	if b.cfg.DryRun {
		slog.Info("dry run, not posting", "account", m.Account, "reply", reply)
	} else {
		if err := b.client.Reply(ctx, m, reply, mastodon.VisibilityUnlisted); err != nil {
			return false, fmt.Errorf("posting reply: %w", err)
		}
		slog.Info("replied", "account", m.Account)
	}

	if b.interactions != nil {
		err := b.interactions.Record(storage.Interaction{
			Account:     m.Account,
			Category:    category,
			QuestionLen: len(question),
			ReplyLen:    len(reply),
		})
		if err != nil {
			slog.Error("failed to record interaction", "error", err)
		}
	}

	return true, b.record(m.ID, saveEach)
}

// record adds the mention to the processed ledger, persisting immediately in
// continuous mode.
func (b *Bot) record(id string, saveEach bool) error {
	b.processed.Add(id)
	if !saveEach {
		return nil
	}
	if err := b.processed.Save(); err != nil {
		return fmt.Errorf("saving processed set: %w", err)
	}
	return nil
}

// Truncate caps text at max minus margin characters, cutting to three fewer
// and appending an ellipsis when over. The result never exceeds max - margin,
// even when that limit is too small to hold the ellipsis.
func Truncate(text string, max, margin int) string {
	limit := max - margin
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	if limit < 3 {
		if limit < 0 {
			limit = 0
		}
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
