package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rag-toxiv/feed"
	"rag-toxiv/mastodon"
	"rag-toxiv/prompt"
	"rag-toxiv/storage"
)

// --- Mock implementations ---

type mockClient struct {
	mentions []mastodon.Mention
	posts    []string
	vis      []string
}

func (m *mockClient) Mentions(ctx context.Context) ([]mastodon.Mention, error) {
	return m.mentions, nil
}

func (m *mockClient) Reply(ctx context.Context, mention mastodon.Mention, text, visibility string) error {
	m.posts = append(m.posts, text)
	m.vis = append(m.vis, visibility)
	return nil
}

type mockCompleter struct {
	reply   string
	prompts []string
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, nil
}

type mockSnapshots struct {
	papers map[string][]feed.Paper
}

func (m *mockSnapshots) LoadRecent(category string, maxFiles int, skipEmpty bool) ([]feed.Paper, error) {
	return m.papers[category], nil
}

func (m *mockSnapshots) Categories() ([]string, error) {
	cats := make([]string, 0, len(m.papers))
	for cat := range m.papers {
		cats = append(cats, cat)
	}
	return cats, nil
}

func newProcessed(t *testing.T) *storage.ProcessedSet {
	t.Helper()
	p, err := storage.LoadProcessedSet(filepath.Join(t.TempDir(), "processed.json"))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func mentionWith(id, visibility, content string) mastodon.Mention {
	return mastodon.Mention{
		ID:         id,
		StatusID:   "s" + id,
		Visibility: visibility,
		Account:    "asker@example.social",
		Content:    content,
	}
}

func newTestBot(t *testing.T, client *mockClient, llm *mockCompleter, snaps *mockSnapshots) *Bot {
	t.Helper()
	b := New(Config{
		DefaultCategory: "cs.LG",
		CatMaxFiles:     1,
		SkipEmpty:       true,
		ContextMode:     prompt.ModeFirstSentence,
		PollInterval:    time.Minute,
		ReplyDelay:      5 * time.Second,
		MaxPostLen:      5000,
		PostMargin:      100,
	}, Deps{
		Client:    client,
		LLM:       llm,
		Snapshots: snaps,
		Processed: newProcessed(t),
	})
	b.sleep = func(time.Duration) {}
	return b
}

func defaultSnaps() *mockSnapshots {
	return &mockSnapshots{papers: map[string][]feed.Paper{
		"cs.LG":   {{ID: "2608.01234", Title: "LG Paper", Abstract: "About learning. More."}},
		"math.CO": {{ID: "2608.09999", Title: "CO Paper", Abstract: "About graphs. More."}},
	}}
}

// --- Tests ---

func TestIdempotency(t *testing.T) {
	client := &mockClient{mentions: []mastodon.Mention{
		mentionWith("1", "public", "<p>@bot summarize today's papers</p>"),
	}}
	llm := &mockCompleter{reply: "Here are today's papers."}
	b := newTestBot(t, client, llm, defaultSnaps())

	for i := 0; i < 2; i++ {
		if err := b.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce pass %d: %v", i+1, err)
		}
	}

	if len(client.posts) != 1 {
		t.Errorf("posts = %d, want exactly 1 for a replayed mention", len(client.posts))
	}
	if b.processed.Len() != 1 {
		t.Errorf("processed entries = %d, want 1", b.processed.Len())
	}
}

func TestVisibilityFilter(t *testing.T) {
	for _, vis := range []string{"private", "direct"} {
		t.Run(vis, func(t *testing.T) {
			client := &mockClient{mentions: []mastodon.Mention{
				mentionWith("9", vis, "<p>@bot tell me things</p>"),
			}}
			llm := &mockCompleter{reply: "should never be used"}
			b := newTestBot(t, client, llm, defaultSnaps())

			if err := b.RunOnce(context.Background()); err != nil {
				t.Fatalf("RunOnce: %v", err)
			}

			if len(client.posts) != 0 {
				t.Errorf("%s mention produced a post", vis)
			}
			if len(llm.prompts) != 0 {
				t.Errorf("%s mention produced an LLM call", vis)
			}
			if !b.processed.Contains("9") {
				t.Error("dropped mention not recorded as processed")
			}
		})
	}
}

func TestUnlistedEligible(t *testing.T) {
	client := &mockClient{mentions: []mastodon.Mention{
		mentionWith("2", "unlisted", "<p>@bot summarize the new papers</p>"),
	}}
	llm := &mockCompleter{reply: "News."}
	b := newTestBot(t, client, llm, defaultSnaps())

	if err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(client.posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(client.posts))
	}
	if client.vis[0] != mastodon.VisibilityUnlisted {
		t.Errorf("reply visibility = %q, want unlisted", client.vis[0])
	}
}

func TestCategoryRouting(t *testing.T) {
	client := &mockClient{mentions: []mastodon.Mention{
		mentionWith("3", "public", "<p>@bot summarize today's math.CO papers</p>"),
	}}
	llm := &mockCompleter{reply: "Graphs galore."}
	b := newTestBot(t, client, llm, defaultSnaps())

	if err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(llm.prompts) != 1 {
		t.Fatalf("LLM calls = %d, want 1", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[0], "math.CO") {
		t.Error("prompt not grounded in the mentioned category")
	}
	if !strings.Contains(llm.prompts[0], "CO Paper") {
		t.Error("prompt context built from the wrong category's papers")
	}
}

func TestHelpRequest(t *testing.T) {
	client := &mockClient{mentions: []mastodon.Mention{
		mentionWith("4", "public", "<p>@bot help</p>"),
	}}
	llm := &mockCompleter{reply: "unused"}
	b := newTestBot(t, client, llm, defaultSnaps())

	if err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(llm.prompts) != 0 {
		t.Error("help request went to the LLM")
	}
	if len(client.posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(client.posts))
	}
	if !strings.Contains(client.posts[0], "arXiv paper assistant") {
		t.Errorf("help reply = %q", client.posts[0])
	}
}

func TestNoDataReply(t *testing.T) {
	client := &mockClient{mentions: []mastodon.Mention{
		mentionWith("5", "public", "<p>@bot summarize recent math.CO papers</p>"),
	}}
	llm := &mockCompleter{reply: "unused"}
	snaps := &mockSnapshots{papers: map[string][]feed.Paper{
		"cs.LG": {{ID: "1", Title: "t", Abstract: "a."}},
	}}
	b := newTestBot(t, client, llm, snaps)

	if err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(llm.prompts) != 0 {
		t.Error("no-data mention went to the LLM")
	}
	if len(client.posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(client.posts))
	}
	if !strings.Contains(client.posts[0], "don't have recent data") {
		t.Errorf("reply = %q", client.posts[0])
	}
}

func TestEmptyQuestionSkipped(t *testing.T) {
	client := &mockClient{mentions: []mastodon.Mention{
		mentionWith("6", "public", "<p>@bot</p>"),
	}}
	llm := &mockCompleter{reply: "unused"}
	b := newTestBot(t, client, llm, defaultSnaps())

	if err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(client.posts) != 0 || len(llm.prompts) != 0 {
		t.Error("empty question produced activity")
	}
	if !b.processed.Contains("6") {
		t.Error("empty-question mention not recorded")
	}
}

func TestDryRunDoesNotPost(t *testing.T) {
	client := &mockClient{mentions: []mastodon.Mention{
		mentionWith("7", "public", "<p>@bot summarize the latest papers</p>"),
	}}
	llm := &mockCompleter{reply: "News."}
	b := newTestBot(t, client, llm, defaultSnaps())
	b.cfg.DryRun = true

	if err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(client.posts) != 0 {
		t.Error("dry run posted a reply")
	}
	if !b.processed.Contains("7") {
		t.Error("dry run must still record the mention")
	}
}

func TestReplyTruncation(t *testing.T) {
	long := strings.Repeat("x", 6000)
	client := &mockClient{mentions: []mastodon.Mention{
		mentionWith("8", "public", "<p>@bot summarize everything at length</p>"),
	}}
	llm := &mockCompleter{reply: long}
	b := newTestBot(t, client, llm, defaultSnaps())

	if err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(client.posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(client.posts))
	}
	got := client.posts[0]
	if len(got) != 5000-100 {
		t.Errorf("truncated length = %d, want %d", len(got), 5000-100)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated reply missing ellipsis")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 5000, 100); got != "short" {
		t.Errorf("short text modified: %q", got)
	}

	long := strings.Repeat("y", 4901)
	got := Truncate(long, 5000, 100)
	if len(got) != 4900 {
		t.Errorf("len = %d, want 4900", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("missing ellipsis")
	}

	exact := strings.Repeat("y", 4900)
	if got := Truncate(exact, 5000, 100); got != exact {
		t.Error("text exactly at the limit must pass through")
	}
}

func TestTruncateTinyLimit(t *testing.T) {
	tests := []struct {
		max, margin int
		want        string
	}{
		{5, 3, "zz"},
		{3, 3, ""},
		{2, 5, ""},
	}
	for _, tt := range tests {
		got := Truncate("zzzzzzzz", tt.max, tt.margin)
		if got != tt.want {
			t.Errorf("Truncate(max=%d, margin=%d) = %q, want %q", tt.max, tt.margin, got, tt.want)
		}
	}
}

func TestInterReplyDelay(t *testing.T) {
	client := &mockClient{mentions: []mastodon.Mention{
		mentionWith("10", "public", "<p>@bot summarize the news</p>"),
		mentionWith("11", "public", "<p>@bot summarize more news</p>"),
	}}
	llm := &mockCompleter{reply: "News."}
	b := newTestBot(t, client, llm, defaultSnaps())

	var slept []time.Duration
	b.sleep = func(d time.Duration) { slept = append(slept, d) }

	if err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(slept) != 2 {
		t.Fatalf("sleeps = %v, want one per reply", slept)
	}
	for _, d := range slept {
		if d != 5*time.Second {
			t.Errorf("sleep = %v, want reply delay", d)
		}
	}
}
