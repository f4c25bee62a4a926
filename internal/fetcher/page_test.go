package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
	<title>  株式会社サンプル | システム開発  </title>
	<meta name="description" content="福井県のシステム開発会社です。">
	<meta name="keywords" content="システム開発, DX, 福井">
	<style>body { color: red; }</style>
</head>
<body>
	<header>ヘッダーメニュー</header>
	<nav><h2>サイトマップ</h2><a href="/">ホーム</a></nav>
	<h1>事業内容</h1>
	<h2>受託開発</h2>
	<h3>クラウド構築</h3>
	<p>webアプリの受託開発と
	   クラウド構築を行っています。</p>
	<script>console.log("tracking");</script>
	<footer><h3>リンク集</h3>Copyright 2026</footer>
</body>
</html>`

func TestParsePage(t *testing.T) {
	page, err := ParsePage(strings.NewReader(samplePage), "https://example.jp")
	require.NoError(t, err)

	assert.Equal(t, "https://example.jp", page.URL)
	assert.Equal(t, "株式会社サンプル | システム開発", page.Title)
	assert.Equal(t, "福井県のシステム開発会社です。", page.Description)
	assert.Equal(t, "システム開発, DX, 福井", page.MetaKeywords)
	// Navigation and footer headings must not leak into the profile text.
	assert.Equal(t, []string{"事業内容", "受託開発", "クラウド構築"}, page.Headings)
	assert.NotContains(t, page.Headings, "サイトマップ")
	assert.NotContains(t, page.Headings, "リンク集")

	assert.Contains(t, page.Body, "webアプリの受託開発と クラウド構築を行っています。")
	assert.NotContains(t, page.Body, "tracking")
	assert.NotContains(t, page.Body, "color: red")
	assert.NotContains(t, page.Body, "ヘッダーメニュー")
	assert.NotContains(t, page.Body, "ホーム")
	assert.NotContains(t, page.Body, "Copyright")
}

func TestParsePageMissingMeta(t *testing.T) {
	page, err := ParsePage(strings.NewReader(`<html><body><p>本文のみ</p></body></html>`), "https://example.jp")
	require.NoError(t, err)

	assert.Empty(t, page.Title)
	assert.Empty(t, page.Description)
	assert.Empty(t, page.Headings)
	assert.Equal(t, "本文のみ", page.Body)
}

func TestParsePageTruncatesLongBody(t *testing.T) {
	long := strings.Repeat("あ", maxBodyRunes+100)
	page, err := ParsePage(strings.NewReader("<html><body>"+long+"</body></html>"), "https://example.jp")
	require.NoError(t, err)
	assert.Len(t, []rune(page.Body), maxBodyRunes)
}

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	p := NewPageFetcher(NewHTTPFetcher(HTTPOptions{}))
	page, err := p.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, page.URL)
	assert.Equal(t, "株式会社サンプル | システム開発", page.Title)
}

func TestFetchPageRejectsBadScheme(t *testing.T) {
	p := NewPageFetcher(NewHTTPFetcher(HTTPOptions{}))
	_, err := p.FetchPage(context.Background(), "ftp://example.jp/page.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestFetchPageNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p := NewPageFetcher(NewHTTPFetcher(HTTPOptions{
		RateLimiters: map[string]*rate.Limiter{},
	}))
	_, err := p.FetchPage(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}
