package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aperturelabs/deepquery/internal/research"
)

const braveSearchURL = "https://api.search.brave.com/res/v1/web/search"

// SearchTool implements web search via the Brave Search API, producing
// structured SearchResults directly rather than a formatted string —
// spec.md §4.2/§6 gives Tool.Execute a typed return; see DESIGN.md for the
// redesign note against the teacher's original string-returning tool.
type SearchTool struct {
	apiKey      string
	httpClient  *http.Client
	summarizer  *ContentSummarizer
}

// NewSearchTool creates a new Brave search tool.
func NewSearchTool(apiKey string) *SearchTool {
	return &SearchTool{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetSummarizer attaches an optional LLM-backed summarizer that enriches
// each result's snippet with page content, grounded on the teacher's
// SubResearcherToolRegistry wiring.
func (t *SearchTool) SetSummarizer(s *ContentSummarizer) {
	t.summarizer = s
}

func (t *SearchTool) Name() string { return "web" }

// braveSearchResponse represents the Brave API response shape.
type braveSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (t *SearchTool) Execute(ctx context.Context, query, sourceTarget string, limit int) ([]research.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search: empty query")
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, "GET", braveSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search: API error %d: %s", resp.StatusCode, string(body))
	}

	var searchResp braveSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	results := make([]research.SearchResult, 0, len(searchResp.Web.Results))
	for _, r := range searchResp.Web.Results {
		snippet := r.Description
		if t.summarizer != nil {
			if summary, err := t.summarizer.Summarize(ctx, r.URL, r.Description); err == nil && summary != "" {
				snippet = summary
			}
		}
		results = append(results, research.SearchResult{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: snippet,
			Domain:  domainOf(r.URL),
		})
	}
	return results, nil
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
