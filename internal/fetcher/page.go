package fetcher

import (
	"context"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

// maxBodyRunes bounds the extracted body text. Corporate sites occasionally
// embed whole product catalogs in a single page.
const maxBodyRunes = 50000

// PageFetcher fetches a web page and extracts its text content for analysis.
type PageFetcher struct {
	http *HTTPFetcher
}

// NewPageFetcher creates a PageFetcher on top of the given HTTP fetcher.
func NewPageFetcher(h *HTTPFetcher) *PageFetcher {
	return &PageFetcher{http: h}
}

// FetchPage downloads the URL and extracts its text content.
func (p *PageFetcher) FetchPage(ctx context.Context, rawURL string) (*model.PageContent, error) {
	body, err := p.http.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	page, err := ParsePage(body, rawURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("fetched page",
		zap.String("url", rawURL),
		zap.String("title", page.Title),
		zap.Int("body_len", len(page.Body)),
	)
	return page, nil
}

// ParsePage extracts the analyzable text from an HTML document: title, meta
// description and keywords, h1-h3 headings, and visible body text. Script,
// style, and chrome elements are stripped before text extraction.
func ParsePage(r io.Reader, rawURL string) (*model.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "page: parse html")
	}

	page := &model.PageContent{
		URL:   rawURL,
		Title: collapseSpace(doc.Find("title").First().Text()),
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.Description = collapseSpace(desc)
	}
	if kw, ok := doc.Find(`meta[name="keywords"]`).Attr("content"); ok {
		page.MetaKeywords = collapseSpace(kw)
	}

	// Chrome elements go first so their headings never leak into the profile.
	doc.Find("script, style, noscript, nav, footer, header, iframe").Remove()

	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if h := collapseSpace(s.Text()); h != "" {
			page.Headings = append(page.Headings, h)
		}
	})

	body := collapseSpace(doc.Find("body").Text())
	if runes := []rune(body); len(runes) > maxBodyRunes {
		body = string(runes[:maxBodyRunes])
	}
	page.Body = body

	return page, nil
}

// collapseSpace trims and collapses all whitespace runs to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
