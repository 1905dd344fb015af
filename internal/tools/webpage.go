// internal/tools/webpage.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"syscall"
	"time"

	"code.dny.dev/ssrf"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"go-summarizer/internal/config"
)

// Below this many characters the readability result is treated as a miss
// and the goquery extractor is tried instead.
const minReadableChars = 200

var (
	ErrUnsupportedURL         = errors.New("URL must start with http:// or https://")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrPageTooLarge           = errors.New("page exceeds size limit")
	ErrForbiddenAddress       = errors.New("refusing to fetch a non-public address")
)

var whitespaceRe = regexp.MustCompile(`[ \t\f\v]+`)
var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// WebPageClient fetches HTML pages and reduces them to plain text.
type WebPageClient struct {
	httpClient *http.Client
	userAgent  string
	maxSizeMB  int
}

// PageText is the readable content of a fetched page.
type PageText struct {
	URL       string
	Title     string
	Text      string
	WordCount int
}

// NewWebPageClient creates a client honouring the fetch timeout, user agent
// and size limit in cfg.
func NewWebPageClient(cfg config.FetchConfig) *WebPageClient {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxSizeMB := cfg.MaxPageSizeMB
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}

	return &WebPageClient{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: newTransport(cfg.AllowPrivate),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxSizeMB: maxSizeMB,
	}
}

// newTransport dials only public addresses on ports 80 and 443 unless
// allowPrivate is set. The check runs on the resolved IP of every
// connection, redirects included.
func newTransport(allowPrivate bool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		guard := ssrf.New()
		dialer.Control = func(network, address string, conn syscall.RawConn) error {
			if err := guard.Safe(network, address, conn); err != nil {
				return fmt.Errorf("%w %s: %v", ErrForbiddenAddress, address, err)
			}
			return nil
		}
		// A proxy would be dialed instead of the target.
		t.Proxy = nil
	}
	t.DialContext = dialer.DialContext
	return t
}

// FetchText downloads rawURL and returns its main text content.
func (c *WebPageClient) FetchText(ctx context.Context, rawURL string) (*PageText, error) {
	rawURL = strings.TrimSpace(rawURL)
	pageURL, err := url.Parse(rawURL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") || pageURL.Host == "" {
		return nil, ErrUnsupportedURL
	}

	html, err := c.fetchHTML(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	page := &PageText{URL: rawURL}
	if article, err := readability.FromReader(strings.NewReader(html), pageURL); err == nil {
		page.Title = strings.TrimSpace(article.Title)
		page.Text = cleanText(article.TextContent)
	}

	if len(page.Text) < minReadableChars {
		title, text, err := extractWithGoquery(html)
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML: %w", err)
		}
		if text != "" {
			page.Text = text
		}
		if page.Title == "" {
			page.Title = title
		}
	}

	page.WordCount = len(strings.Fields(page.Text))
	return page, nil
}

// fetchHTML retrieves HTML content from a URL
func (c *WebPageClient) fetchHTML(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// Browser-like headers; some sites answer 403 to bare clients.
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}

	maxBytes := int64(c.maxSizeMB) * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return "", fmt.Errorf("%w of %dMB", ErrPageTooLarge, c.maxSizeMB)
	}

	return string(body), nil
}

// extractWithGoquery strips page chrome and returns the title and the text
// of the main content (article, main, or body).
func extractWithGoquery(html string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, nav, aside, footer, header, iframe, noscript, svg, form, menu").Remove()

	var content *goquery.Selection
	if article := doc.Find("article").First(); article.Length() > 0 {
		content = article
	} else if main := doc.Find("main").First(); main.Length() > 0 {
		content = main
	} else {
		content = doc.Find("body")
	}

	return title, cleanText(extractText(content)), nil
}

// extractText walks a selection keeping block boundaries as blank lines.
func extractText(sel *goquery.Selection) string {
	var builder strings.Builder

	sel.Contents().Each(func(i int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "#text":
			if text := strings.TrimSpace(s.Text()); text != "" {
				builder.WriteString(text)
				builder.WriteString(" ")
			}
		case "br":
			builder.WriteString("\n")
		case "p", "div", "section", "h1", "h2", "h3", "h4", "h5", "h6", "li", "blockquote", "pre":
			if inner := strings.TrimSpace(extractText(s)); inner != "" {
				builder.WriteString(inner)
				builder.WriteString("\n\n")
			}
		default:
			builder.WriteString(extractText(s))
		}
	})

	return builder.String()
}

func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n\n"))
}
