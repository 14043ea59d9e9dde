package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/aperturelabs/deepquery/internal/research"
	"golang.org/x/net/html"
)

// FetchTool fetches and extracts readable text from a web page. It treats
// query as the URL to fetch; sourceTarget and limit are ignored beyond the
// Tool interface's shape, since a single fetch always yields at most one
// SearchResult.
type FetchTool struct {
	httpClient *http.Client
}

// NewFetchTool creates a new fetch tool.
func NewFetchTool() *FetchTool {
	return &FetchTool{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (t *FetchTool) Name() string { return "fetch" }

func (t *FetchTool) Execute(ctx context.Context, query, sourceTarget string, limit int) ([]research.SearchResult, error) {
	text, err := t.fetchText(ctx, query)
	if err != nil {
		return nil, err
	}
	return []research.SearchResult{{
		URL:     query,
		Title:   query,
		Snippet: text,
		Domain:  domainOf(query),
	}}, nil
}

func (t *FetchTool) fetchText(ctx context.Context, urlStr string) (string, error) {
	if urlStr == "" {
		return "", fmt.Errorf("fetch: empty url")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; DeepqueryBot/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: error %d for %s", resp.StatusCode, urlStr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch: read body: %w", err)
	}

	text := extractText(string(body))
	if len(text) > 10000 {
		text = text[:10000] + "\n...[truncated]"
	}
	return text, nil
}

// extractText removes HTML tags and extracts readable text.
func extractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		re := regexp.MustCompile(`<[^>]*>`)
		return cleanWhitespace(re.ReplaceAllString(htmlContent, ""))
	}

	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
			text.WriteString(" ")
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(doc)

	return cleanWhitespace(text.String())
}

func cleanWhitespace(s string) string {
	re := regexp.MustCompile(`\s+`)
	return strings.TrimSpace(re.ReplaceAllString(s, " "))
}
