package bot

import (
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
)

var (
	mentionRe  = regexp.MustCompile(`@\S+`)
	categoryRe = regexp.MustCompile(`\b([a-z]{2,4}\.[A-Z]{2})\b`)
)

var helpTriggers = []string{
	"help",
	"?",
	"how do i use",
	"what can you do",
	"commands",
	"usage",
}

// StripHTML flattens an HTML fragment to its text content with entities
// decoded.
func StripHTML(content string) string {
	tokenizer := xhtml.NewTokenizer(strings.NewReader(content))
	var sb strings.Builder
	for {
		tt := tokenizer.Next()
		switch tt {
		case xhtml.ErrorToken:
			return sb.String()
		case xhtml.TextToken:
			sb.Write(tokenizer.Text())
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			// Block-level breaks keep paragraphs apart after flattening.
			if n := string(name); n == "p" || n == "br" {
				sb.WriteString(" ")
			}
		}
	}
}

// StripMentions removes @handle references and trims the result.
func StripMentions(text string) string {
	return strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
}

// IsHelpRequest reports whether the text is asking for usage help.
func IsHelpRequest(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, trigger := range helpTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

// ExtractCategory returns the first category-shaped token in text
// (e.g. cs.LG), or fallback if none is present.
func ExtractCategory(text, fallback string) string {
	if m := categoryRe.FindString(text); m != "" {
		return m
	}
	return fallback
}
