package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const webUserAgent = "Mozilla/5.0 (compatible; tinyclaw/1.0)"

var (
	tagRe    = regexp.MustCompile(`(?s)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	htmlRe   = regexp.MustCompile(`<[^>]+>`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
	spaceRe  = regexp.MustCompile(`[ \t]{2,}`)
	resultRe = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>.*?<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
)

// WebSearchTool queries the DuckDuckGo HTML endpoint. Shared limiter keeps
// both web tools under the configured request rate.
type WebSearchTool struct {
	Client     *http.Client
	Limiter    *rate.Limiter
	MaxResults int
}

// NewWebSearchTool builds a search tool with an rps request budget.
func NewWebSearchTool(maxResults int, limiter *rate.Limiter) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{
		Client:     &http.Client{Timeout: 30 * time.Second},
		Limiter:    limiter,
		MaxResults: maxResults,
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Search the web and return titles, URLs, and snippets for the top results."
}
func (t *WebSearchTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"query": prop("string", "Search query"),
		"count": prop("integer", "Number of results to return (default 5)"),
	}, "query")
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, ok := StringArg(args, "query")
	if !ok || strings.TrimSpace(query) == "" {
		return Err("missing required argument: query")
	}
	count := t.MaxResults
	if n, ok := IntArg(args, "count"); ok && n > 0 && n < count {
		count = n
	}

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return Err("search cancelled: " + err.Error())
		}
	}

	endpoint := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Err("search request: " + err.Error())
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := t.Client.Do(req)
	if err != nil {
		return Err("search failed: " + err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Err(fmt.Sprintf("search failed: HTTP %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return Err("search read: " + err.Error())
	}

	matches := resultRe.FindAllStringSubmatch(string(body), count)
	if len(matches) == 0 {
		return Ok("No results found for: " + query)
	}

	var b strings.Builder
	for i, m := range matches {
		title := cleanHTMLText(m[2])
		link := decodeDuckURL(m[1])
		snippet := cleanHTMLText(m[3])
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, title, link, snippet)
	}
	return Ok(strings.TrimRight(b.String(), "\n"))
}

// decodeDuckURL unwraps DuckDuckGo's /l/?uddg= redirect links.
func decodeDuckURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
	}
	return raw
}

// WebFetchTool fetches a URL and returns its text content.
type WebFetchTool struct {
	Client   *http.Client
	Limiter  *rate.Limiter
	MaxBytes int64
}

func NewWebFetchTool(limiter *rate.Limiter) *WebFetchTool {
	return &WebFetchTool{
		Client:   &http.Client{Timeout: 30 * time.Second},
		Limiter:  limiter,
		MaxBytes: 2 << 20,
	}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }
func (t *WebFetchTool) Description() string {
	return "Fetch a URL and return its text content with HTML markup stripped."
}
func (t *WebFetchTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"url": prop("string", "URL to fetch (http or https)"),
	}, "url")
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	rawURL, ok := StringArg(args, "url")
	if !ok {
		return Err("missing required argument: url")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Err("invalid url: " + rawURL)
	}

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return Err("fetch cancelled: " + err.Error())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Err("fetch request: " + err.Error())
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := t.Client.Do(req)
	if err != nil {
		return Err("fetch failed: " + err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Err(fmt.Sprintf("fetch failed: HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.MaxBytes))
	if err != nil {
		return Err("fetch read: " + err.Error())
	}

	contentType := resp.Header.Get("Content-Type")
	text := string(body)
	if strings.Contains(contentType, "text/html") || strings.HasPrefix(strings.TrimSpace(text), "<") {
		text = cleanHTMLText(text)
	}
	return Ok(text)
}

func cleanHTMLText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = htmlRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#x27;", "'", "&#39;", "'", "&nbsp;", " ",
	).Replace(s)
	s = spaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
