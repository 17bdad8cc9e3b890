package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"bamaco-content/internal/extract"
	"bamaco-content/internal/fetch"
)

const rssSample = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>t</title>
    <link>https://ex</link>
    <item>
      <title>Beginner Tips &amp; Tricks</title>
      <link>https://ex/a</link>
      <author>jdc@example.com (JDC)</author>
      <category>Guides</category>
      <pubDate>Fri, 01 Mar 2024 10:00:00 GMT</pubDate>
      <description><![CDATA[<p>Start slow.</p><p>Then speed up.</p>]]></description>
    </item>
    <item><title>マイマイ</title><link>https://ex/jp</link></item>
  </channel>
</rss>`

func newClient(t *testing.T) *fetch.Client {
	t.Helper()
	cl, err := fetch.New(fetch.Options{})
	require.NoError(t, err)
	return cl
}

func TestDiscover_StraightCandidate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssSample))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got, err := Discover(context.Background(), newClient(t), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/index.xml", got)
}

func TestDiscover_FromHTMLLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/custom/feed.rss", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssSample))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" || r.URL.RawQuery != "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><link rel="alternate" type="application/rss+xml" href="/custom/feed.rss"></head></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got, err := Discover(context.Background(), newClient(t), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/custom/feed.rss", got)
}

func TestDiscover_NoFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body>nothing</body></html>`))
	}))
	defer srv.Close()

	_, err := Discover(context.Background(), newClient(t), srv.URL+"/")
	require.ErrorIs(t, err, ErrNoFeed)
}

func TestParseAndImport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssSample))
	}))
	defer srv.Close()

	items, err := Parse(context.Background(), newClient(t), srv.URL, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "JDC", items[0].Author)

	dir := t.TempDir()
	im := &Importer{Dir: dir, Author: "BAMACO Staff", Category: "News"}
	res, err := im.Import(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, res.Written, 2)

	path := filepath.Join(dir, "beginner_tips__tricks.html")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	a, err := extract.Article(string(b), path)
	require.NoError(t, err)
	require.Equal(t, "Beginner Tips & Tricks", a.Title)
	require.Equal(t, "JDC", a.Author)
	require.Equal(t, "Guides", a.Category)
	require.Equal(t, "Start slow.", a.Excerpt)
	require.True(t, a.DateParsed)
	require.Equal(t, "March 1, 2024", a.Date)

	jp, err := os.ReadFile(filepath.Join(dir, Filename(items[1])+".html"))
	require.NoError(t, err)
	a2, err := extract.Article(string(jp), "x.html")
	require.NoError(t, err)
	require.Equal(t, "BAMACO Staff", a2.Author)

	// 再次导入：已存在的文档保持不变
	res, err = im.Import(context.Background(), items)
	require.NoError(t, err)
	require.Empty(t, res.Written)
	require.Len(t, res.Exists, 2)
}
