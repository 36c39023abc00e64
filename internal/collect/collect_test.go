package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Security Feed</title>
<item>
  <title>Ransomware hits logistics firm</title>
  <link>https://example.com/ransomware</link>
  <description>&lt;p&gt;Operations &amp;amp; backups encrypted.&lt;/p&gt;</description>
  <pubDate>Mon, 24 Aug 2026 10:00:00 GMT</pubDate>
</item>
<item>
  <title>Zero-day in popular VPN</title>
  <link>https://example.com/vpn</link>
</item>
<item>
  <title></title>
  <link>https://example.com/untitled</link>
</item>
<item>
  <title>No link entry</title>
</item>
</channel>
</rss>`

func rssServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchAllParsesItems(t *testing.T) {
	srv := rssServer(t, sampleRSS)
	f := NewFetcher([]Source{{Name: "Test Feed", URL: srv.URL, Enabled: true}}, 5*time.Second)

	items := f.FetchAll(context.Background())
	if len(items) != 2 {
		t.Fatalf("expected 2 items (entries without title or link dropped), got %d", len(items))
	}

	// Feed order preserved within a source
	if items[0].Title != "Ransomware hits logistics firm" {
		t.Errorf("unexpected first item: %q", items[0].Title)
	}
	if items[0].Source != "Test Feed" {
		t.Errorf("expected source name, got %q", items[0].Source)
	}
	if items[0].Description == "" || items[0].Description != "Operations & backups encrypted." {
		t.Errorf("expected HTML stripped description, got %q", items[0].Description)
	}

	want := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	if !items[0].PublishedAt.Equal(want) {
		t.Errorf("expected declared pubDate, got %v", items[0].PublishedAt)
	}
}

func TestFetchAllPublishedFallsBackToNow(t *testing.T) {
	srv := rssServer(t, sampleRSS)
	f := NewFetcher([]Source{{URL: srv.URL, Enabled: true}}, 5*time.Second)
	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return fixed }

	items := f.FetchAll(context.Background())
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	// Second entry has no pubDate or updated date
	if !items[1].PublishedAt.Equal(fixed) {
		t.Errorf("expected wall-clock fallback, got %v", items[1].PublishedAt)
	}
}

func TestFetchAllSourceFailureIsolated(t *testing.T) {
	good := rssServer(t, sampleRSS)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)
	garbage := rssServer(t, "this is not xml")

	f := NewFetcher([]Source{
		{Name: "Good", URL: good.URL, Enabled: true},
		{Name: "Bad", URL: bad.URL, Enabled: true},
		{Name: "Garbage", URL: garbage.URL, Enabled: true},
	}, 5*time.Second)

	items := f.FetchAll(context.Background())
	if len(items) != 2 {
		t.Errorf("expected only the good source's items, got %d", len(items))
	}
}

func TestFetchAllSkipsDisabledSources(t *testing.T) {
	srv := rssServer(t, sampleRSS)
	f := NewFetcher([]Source{{Name: "Off", URL: srv.URL, Enabled: false}}, 5*time.Second)

	items := f.FetchAll(context.Background())
	if len(items) != 0 {
		t.Errorf("expected no items from disabled source, got %d", len(items))
	}
}

func TestExtractSourceName(t *testing.T) {
	cases := map[string]string{
		"https://feeds.example.com/rss":   "Example",
		"https://www.krebsonsecurity.com": "Krebsonsecurity",
		"garbage":                         "garbage",
	}
	for in, want := range cases {
		if got := extractSourceName(in); got != want {
			t.Errorf("extractSourceName(%q) = %q, want %q", in, got, want)
		}
	}
}
