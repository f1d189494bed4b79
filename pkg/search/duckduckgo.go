package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/latoulicious/kenny/pkg/music"
)

// DefaultDuckDuckGoURL is the JavaScript-free results page
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DuckDuckGo scrapes the HTML results page. It needs no API key.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client
}

// NewDuckDuckGo creates a scraper. An empty endpoint uses DefaultDuckDuckGoURL.
func NewDuckDuckGo(endpoint string, client *http.Client) *DuckDuckGo {
	if endpoint == "" {
		endpoint = DefaultDuckDuckGoURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DuckDuckGo{endpoint: endpoint, client: client}
}

// Search returns the organic results for query in page order
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]music.SearchResult, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, music.NewProviderError("duckduckgo", "search", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, music.NewProviderError("duckduckgo", "search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, music.NewProviderError("duckduckgo", "search", fmt.Errorf("search request failed with status: %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, music.NewProviderError("duckduckgo", "parse", err)
	}

	var results []music.SearchResult
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		anchor := s.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}
		link := unwrapRedirect(href)
		if link == "" {
			return
		}

		results = append(results, music.SearchResult{
			Title:       strings.TrimSpace(anchor.Text()),
			Link:        link,
			DisplayLink: hostOf(link),
		})
	})
	return results, nil
}

// unwrapRedirect turns DuckDuckGo's //duckduckgo.com/l/?uddg=... links into the target URL
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		return u.Query().Get("uddg")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// hostOf mirrors the display link CSE reports: the bare host name
func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
