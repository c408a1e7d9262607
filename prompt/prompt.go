// Package prompt renders retrieved papers into LLM context blocks and
// assembles the question and help prompts.
package prompt

import (
	"fmt"
	"strings"

	"rag-toxiv/feed"
)

// Mode selects how much of each paper goes into the context.
type Mode string

const (
	ModeTitle         Mode = "title"
	ModeFirstSentence Mode = "first_sentence"
	ModeFullAbstract  Mode = "full_abstract"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTitle, ModeFirstSentence, ModeFullAbstract:
		return Mode(s), nil
	}
	return "", fmt.Errorf("prompt: unknown mode %q", s)
}

// fallbackChars bounds the excerpt when an abstract has no sentence boundary.
const fallbackChars = 200

// FirstSentence returns text up to and including its first sentence-ending
// period (period-space, period-newline, or period-tab). Without one, the
// first 200 characters plus an ellipsis.
func FirstSentence(text string) string {
	for _, end := range []string{". ", ".\n", ".\t"} {
		if idx := strings.Index(text, end); idx >= 0 {
			return text[:idx] + "."
		}
	}
	r := []rune(text)
	if len(r) > fallbackChars {
		r = r[:fallbackChars]
	}
	return string(r) + "..."
}

// BuildContext renders papers into a single context block under the given
// mode. Title mode joins one line per paper with newlines; the abstract
// modes join paragraphs with blank lines.
func BuildContext(papers []feed.Paper, mode Mode) (string, error) {
	lines := make([]string, 0, len(papers))
	for _, p := range papers {
		switch mode {
		case ModeTitle:
			lines = append(lines, fmt.Sprintf("[%s] %s", p.ID, p.Title))
		case ModeFirstSentence:
			lines = append(lines, fmt.Sprintf("[%s] %s\nAbstract: %s", p.ID, p.Title, FirstSentence(p.Abstract)))
		case ModeFullAbstract:
			lines = append(lines, fmt.Sprintf("[%s] %s\nAbstract: %s", p.ID, p.Title, p.Abstract))
		default:
			return "", fmt.Errorf("prompt: unknown mode %q", mode)
		}
	}

	sep := "\n\n"
	if mode == ModeTitle {
		sep = "\n"
	}
	return strings.Join(lines, sep), nil
}

const questionTemplate = `You are an arXiv paper assistant bot on Mastodon.
Answer the user's question based only on recent %[1]s papers.
Be concise and helpful. Keep response under 4000 characters.

Important: Format paper references as clickable links: https://arxiv.org/abs/ID

Example: Instead of just 2512.21450, write https://arxiv.org/abs/2512.21450

Recent %[1]s papers:
%[2]s

User question: %[3]s

If the question is about the papers above, answer it. If not, politely decline and explain your purpose.`

// Question assembles the single user-role prompt for a category question.
func Question(category, context, question string) string {
	return fmt.Sprintf(questionTemplate, category, context, question)
}

const helpTemplate = `
I'm an arXiv paper assistant. I can help you explore recent arXiv papers.

Things I can help with:
- "summarize today's papers"
- "any papers on transformers?"
- "find papers about diffusion models"
- "explain what paper 2512.xxxxx is about"

Available categories: %s`

// Help renders the static help reply with the available category list.
func Help(categories []string) string {
	list := "none fetched yet"
	if len(categories) > 0 {
		list = strings.Join(categories, ", ")
	}
	return fmt.Sprintf(helpTemplate, list)
}

// NoData renders the reply used when a category has no stored snapshots.
func NoData(category string, categories []string) string {
	list := "none yet"
	if len(categories) > 0 {
		list = strings.Join(categories, ", ")
	}
	return fmt.Sprintf("Sorry, I don't have recent data for %s. Available categories: %s.", category, list)
}
