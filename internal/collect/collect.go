// Package collect retrieves security-news items from configured RSS/Atom
// feeds and normalizes them into transient feed items.
package collect

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	maxPerFeed     = 20
	defaultTimeout = 10 * time.Second
	maxRedirects   = 5
)

// Item is a normalized feed entry. It is transient: consumed by the
// dedup check and the orchestrator, then discarded.
type Item struct {
	Title       string
	Description string
	Content     string
	URL         string
	PublishedAt time.Time
	Source      string
}

// Source is one configured feed endpoint.
type Source struct {
	Name    string
	URL     string
	Enabled bool
}

// Fetcher fetches all enabled sources concurrently, each with its own
// timeout. A failing source degrades to zero items.
type Fetcher struct {
	sources []Source
	timeout time.Duration
	now     func() time.Time
}

// NewFetcher creates a Fetcher over the given sources.
func NewFetcher(sources []Source, timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{sources: sources, timeout: timeout, now: time.Now}
}

// FetchAll fetches every enabled source in parallel and merges the
// results. Order within a source follows the feed; no cross-source
// order is guaranteed.
func (f *Fetcher) FetchAll(ctx context.Context) []Item {
	var (
		mu  sync.Mutex
		all []Item
		wg  sync.WaitGroup
	)

	for _, src := range f.sources {
		if !src.Enabled {
			continue
		}
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			items, err := f.fetchSource(ctx, src)
			if err != nil {
				log.Printf("Failed to fetch feed %s: %v", src.URL, err)
				return
			}
			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			log.Printf("Fetched %d items from %s", len(items), sourceName(src))
		}(src)
	}
	wg.Wait()

	return all
}

func (f *Fetcher) fetchSource(ctx context.Context, src Source) ([]Item, error) {
	client := &http.Client{
		Timeout: f.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	parser := gofeed.NewParser()
	parser.Client = client

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := parser.ParseURLWithContext(src.URL, fetchCtx)
	if err != nil {
		return nil, err
	}

	name := sourceName(src)
	fetchedAt := f.now()

	var items []Item
	for _, entry := range feed.Items {
		if len(items) >= maxPerFeed {
			break
		}
		item := parseEntry(entry, name, fetchedAt)
		if item == nil {
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

// parseEntry normalizes one feed entry. Entries without a usable link or
// title are dropped.
func parseEntry(entry *gofeed.Item, source string, fetchedAt time.Time) *Item {
	link := entry.Link
	if link == "" {
		link = entry.GUID
	}
	if link == "" {
		return nil
	}

	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return nil
	}

	published := fetchedAt
	if entry.PublishedParsed != nil {
		published = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		published = *entry.UpdatedParsed
	}

	return &Item{
		Title:       title,
		Description: stripHTML(entry.Description),
		Content:     stripHTML(entry.Content),
		URL:         link,
		PublishedAt: published,
		Source:      source,
	}
}

func sourceName(src Source) string {
	if src.Name != "" {
		return src.Name
	}
	return extractSourceName(src.URL)
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
