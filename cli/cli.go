// Package cli is the interactive variant of the reply bot: same retrieval
// and generation path, driven from a terminal with session-local state.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"rag-toxiv/bot"
	"rag-toxiv/prompt"
)

// Streamer generates a completion, emitting chunks as they arrive.
type Streamer interface {
	CompleteStream(ctx context.Context, prompt string, onChunk func(string)) (string, error)
}

// Config holds the initial session state.
type Config struct {
	Category  string
	Mode      prompt.Mode
	FileCount int
	Model     string
}

// Session is one interactive run. Reader and writer are injectable so tests
// can script a conversation.
type Session struct {
	snapshots bot.SnapshotSource
	llm       Streamer
	cfg       Config

	in  io.Reader
	out io.Writer
}

// New creates a Session reading commands from in and printing to out.
func New(cfg Config, snapshots bot.SnapshotSource, llm Streamer, in io.Reader, out io.Writer) *Session {
	return &Session{snapshots: snapshots, llm: llm, cfg: cfg, in: in, out: out}
}

// Run reads lines until /quit or EOF. Interrupting the read loop ends the
// session cleanly.
func (s *Session) Run(ctx context.Context) error {
	s.banner()

	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprintf(s.out, "[%s] >>> ", s.cfg.Category)
		if !scanner.Scan() {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case lower == "/quit" || lower == "/exit" || lower == "/bye":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		case strings.HasPrefix(lower, "/cat "):
			s.switchCategory(strings.TrimSpace(line[5:]))
		case strings.HasPrefix(lower, "/mode "):
			s.switchMode(strings.TrimSpace(line[6:]))
		case strings.HasPrefix(lower, "/files "):
			s.switchFiles(strings.TrimSpace(line[7:]))
		case lower == "/list":
			s.listCategories()
		case lower == "/help":
			cats, _ := s.snapshots.Categories()
			fmt.Fprintln(s.out, prompt.Help(cats))
		default:
			s.answer(ctx, line)
		}
	}
}

func (s *Session) banner() {
	cats, _ := s.snapshots.Categories()
	sep := strings.Repeat("=", 60)
	fmt.Fprintln(s.out, sep)
	fmt.Fprintln(s.out, "arXiv Paper Assistant - CLI Mode")
	fmt.Fprintln(s.out, sep)
	fmt.Fprintf(s.out, "Context mode: %s\n", s.cfg.Mode)
	fmt.Fprintf(s.out, "Current category: %s\n", s.cfg.Category)
	fmt.Fprintf(s.out, "Files to load: %d\n", s.cfg.FileCount)
	fmt.Fprintf(s.out, "LLM model: %s\n", s.cfg.Model)
	fmt.Fprintf(s.out, "Available categories: %s\n", orNone(cats))
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  /cat <category>  - Change category (e.g., /cat math.CO)")
	fmt.Fprintln(s.out, "  /mode <mode>     - Change mode (title, first_sentence, full_abstract)")
	fmt.Fprintln(s.out, "  /files <n>       - Change files to load (e.g., /files 3)")
	fmt.Fprintln(s.out, "  /list            - List available categories")
	fmt.Fprintln(s.out, "  /help            - Show help message")
	fmt.Fprintln(s.out, "  /quit            - Exit")
	fmt.Fprintln(s.out, sep)
	fmt.Fprintln(s.out)
}

func (s *Session) switchCategory(cat string) {
	cats, err := s.snapshots.Categories()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if !contains(cats, cat) {
		fmt.Fprintf(s.out, "Category '%s' not available. Available: %s\n", cat, orNone(cats))
		return
	}
	s.cfg.Category = cat
	papers, err := s.snapshots.LoadRecent(cat, s.cfg.FileCount, true)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Switched to %s (%d papers loaded)\n", cat, len(papers))
}

func (s *Session) switchMode(raw string) {
	mode, err := prompt.ParseMode(raw)
	if err != nil {
		fmt.Fprintln(s.out, "Invalid mode. Choose: title, first_sentence, full_abstract")
		return
	}
	s.cfg.Mode = mode
	fmt.Fprintf(s.out, "Context mode changed to: %s\n", mode)
}

func (s *Session) switchFiles(raw string) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Fprintln(s.out, "Invalid number. Usage: /files 3")
		return
	}
	if n < 1 {
		fmt.Fprintln(s.out, "Files must be at least 1")
		return
	}
	s.cfg.FileCount = n
	papers, err := s.snapshots.LoadRecent(s.cfg.Category, n, true)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Files changed to %d (%d papers loaded)\n", n, len(papers))
}

func (s *Session) listCategories() {
	cats, err := s.snapshots.Categories()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Available categories: %s\n", orNone(cats))
}

func (s *Session) answer(ctx context.Context, question string) {
	// A category mentioned in the question switches the session when data
	// for it exists.
	if detected := bot.ExtractCategory(question, ""); detected != "" && detected != s.cfg.Category {
		if cats, err := s.snapshots.Categories(); err == nil && contains(cats, detected) {
			s.cfg.Category = detected
			fmt.Fprintf(s.out, "(Detected category: %s)\n", detected)
		}
	}

	papers, err := s.snapshots.LoadRecent(s.cfg.Category, s.cfg.FileCount, true)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if len(papers) == 0 {
		cats, _ := s.snapshots.Categories()
		fmt.Fprintf(s.out, "No papers found for %s. Available: %s\n", s.cfg.Category, orNone(cats))
		return
	}

	fmt.Fprintf(s.out, "\n(%d papers, generating response...)\n\n", len(papers))

	contextBlock, err := prompt.BuildContext(papers, s.cfg.Mode)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	_, err = s.llm.CompleteStream(ctx, prompt.Question(s.cfg.Category, contextBlock, question), func(chunk string) {
		fmt.Fprint(s.out, chunk)
	})
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func orNone(cats []string) string {
	if len(cats) == 0 {
		return "none"
	}
	return strings.Join(cats, ", ")
}
