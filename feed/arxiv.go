package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const BaseURL = "https://rss.arxiv.org/rss"

type arxivRetriever struct {
	client  *http.Client
	baseURL string
}

// NewArxivRetriever creates a Retriever backed by the arXiv RSS endpoint.
func NewArxivRetriever(client *http.Client) Retriever {
	if client == nil {
		client = http.DefaultClient
	}
	return &arxivRetriever{client: client, baseURL: BaseURL}
}

// NewArxivRetrieverWithBaseURL creates a Retriever with a custom base URL (for testing).
func NewArxivRetrieverWithBaseURL(client *http.Client, baseURL string) Retriever {
	if client == nil {
		client = http.DefaultClient
	}
	return &arxivRetriever{client: client, baseURL: baseURL}
}

// RSS structures for the arXiv daily feeds. Field names match local element
// names, so the dc: and arxiv: namespaced elements bind without qualifiers.

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	LastBuildDate string    `xml:"lastBuildDate"`
	PubDate       string    `xml:"pubDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title        string   `xml:"title"`
	Link         string   `xml:"link"`
	Description  string   `xml:"description"`
	Creators     []string `xml:"creator"`
	Categories   []string `xml:"category"`
	AnnounceType string   `xml:"announce_type"`
}

// Retrieve fetches and parses the daily feed for category. A document that
// fails to parse cleanly yields a Feed with Bozo set and whatever entries
// could be extracted, not an error; only transport failures error out.
func (r *arxivRetriever) Retrieve(ctx context.Context, category string, aliases map[string]string) (*Feed, error) {
	feedCat := category
	if alias, ok := aliases[category]; ok {
		feedCat = alias
	}

	url := fmt.Sprintf("%s/%s", r.baseURL, feedCat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating feed request for %s: %w", category, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed for %s: %w", category, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed for %s returned status %d", category, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed for %s: %w", category, err)
	}

	f := &Feed{Category: category}

	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		f.Bozo = true
	}

	f.Updated = doc.Channel.LastBuildDate
	if f.Updated == "" {
		f.Updated = doc.Channel.PubDate
	}

	for _, item := range doc.Channel.Items {
		switch item.AnnounceType {
		case "new":
			f.NewSubmissions = append(f.NewSubmissions, parseItem(item, category))
		case "cross":
			f.CrossLists = append(f.CrossLists, parseItem(item, category))
		case "replace", "replace-cross":
			f.NumReplacements++
		default:
			// Older feed renditions carry no announce type; treat as new.
			f.NewSubmissions = append(f.NewSubmissions, parseItem(item, category))
		}
	}

	return f, nil
}

func parseItem(item rssItem, category string) Paper {
	id := paperID(item.Link)
	absURL := item.Link
	if absURL == "" && id != "" {
		absURL = "https://arxiv.org/abs/" + id
	}

	primary := category
	if len(item.Categories) > 0 {
		primary = item.Categories[0]
	}

	return Paper{
		ID:             id,
		Title:          strings.TrimSpace(item.Title),
		Authors:        item.Creators,
		Abstract:       parseAbstract(item.Description),
		PrimarySubject: primary,
		Label:          item.AnnounceType,
		AbsURL:         absURL,
		PDFURL:         strings.Replace(absURL, "/abs/", "/pdf/", 1),
		HTMLURL:        strings.Replace(absURL, "/abs/", "/html/", 1),
	}
}

// paperID extracts the bare identifier from an abstract-page URL,
// e.g. https://arxiv.org/abs/2501.00001v2 -> 2501.00001.
func paperID(link string) string {
	idx := strings.LastIndex(link, "/abs/")
	if idx < 0 {
		return ""
	}
	id := link[idx+5:]
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if rest := id[vIdx+1:]; rest != "" && allDigits(rest) {
			id = id[:vIdx]
		}
	}
	return id
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseAbstract strips the "arXiv:ID Announce Type: ..." preamble the daily
// feed prepends to each description, leaving the abstract body.
func parseAbstract(desc string) string {
	desc = strings.TrimSpace(desc)
	if idx := strings.Index(desc, "Abstract: "); idx >= 0 {
		return strings.TrimSpace(desc[idx+len("Abstract: "):])
	}
	return desc
}
