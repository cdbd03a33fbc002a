package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultCatalogURL is the table of contents for the MARC bibliographic
// specification on the Library of Congress site.
const DefaultCatalogURL = "https://www.loc.gov/marc/bibliographic/"

// ErrCrawl is returned when the catalog pages cannot be fetched or do
// not have the expected shape.
var ErrCrawl = errors.New("catalog crawl failed")

var (
	fieldHeadingRe  = regexp.MustCompile(`^(\d{3}) - (.+) \((N?R)\)$`)
	subfieldItemRe  = regexp.MustCompile(`^\$(.) - (.+) \((N?R)\)$`)
	subfieldCellRe  = regexp.MustCompile(`^(.) - (.+) \((N?R)\)$`)
	groupAnchorRe   = regexp.MustCompile(`^\d`)
	whitespaceRunRe = regexp.MustCompile(`\s+`)
)

// CrawlOptions control the catalog crawl.
type CrawlOptions struct {
	// BaseURL overrides DefaultCatalogURL, mainly for tests.
	BaseURL string

	// Limit stops the crawl after this many fields; 0 means all.
	Limit int

	// Client is the HTTP client to use; a 30s-timeout client is used
	// when nil.
	Client *http.Client

	// Progress, when set, is called once per scraped field.
	Progress func(*Field)
}

// Crawl scrapes the MARC bibliographic specification into a Schema. Each
// field group page links to per-field "Full" pages; the field heading
// and subfield lists on those pages carry the tag, label, and
// repeatability attributes. Errors are not retried.
func Crawl(ctx context.Context, opts CrawlOptions) (*Schema, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultCatalogURL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	toc, err := fetchHTML(ctx, client, base)
	if err != nil {
		return nil, err
	}

	var fields []Field
	for _, groupHref := range groupLinks(toc) {
		groupURL, err := resolveURL(base, groupHref)
		if err != nil {
			return nil, err
		}
		groupDoc, err := fetchHTML(ctx, client, groupURL)
		if err != nil {
			return nil, err
		}
		for _, fieldHref := range fullLinks(groupDoc) {
			fieldURL, err := resolveURL(groupURL, fieldHref)
			if err != nil {
				return nil, err
			}
			fieldDoc, err := fetchHTML(ctx, client, fieldURL)
			if err != nil {
				return nil, err
			}
			f, ok := parseFieldPage(fieldDoc, fieldURL)
			if !ok {
				continue
			}
			fields = append(fields, f)
			if opts.Progress != nil {
				opts.Progress(&f)
			}
			if opts.Limit > 0 && len(fields) >= opts.Limit {
				return New(fields)
			}
		}
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no field definitions found at %s", ErrCrawl, base)
	}
	return New(fields)
}

func fetchHTML(ctx context.Context, client *http.Client, rawURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrawl, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrawl, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrCrawl, rawURL, resp.Status)
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrCrawl, rawURL, err)
	}
	return doc, nil
}

func resolveURL(base, href string) (string, error) {
	bu, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCrawl, err)
	}
	hu, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCrawl, err)
	}
	return bu.ResolveReference(hu).String(), nil
}

// groupLinks returns hrefs of the numbered group anchors inside the
// table-of-contents list.
func groupLinks(doc *html.Node) []string {
	var hrefs []string
	for _, list := range findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, "contentslist")
	}) {
		for _, a := range findAll(list, isAnchor) {
			if groupAnchorRe.MatchString(strings.TrimSpace(nodeText(a))) {
				if href, ok := attr(a, "href"); ok {
					hrefs = append(hrefs, href)
				}
			}
		}
	}
	return hrefs
}

// fullLinks returns hrefs of the per-field "Full" anchors on a group
// page.
func fullLinks(doc *html.Node) []string {
	var hrefs []string
	for _, a := range findAll(doc, isAnchor) {
		if strings.TrimSpace(nodeText(a)) == "Full" {
			if href, ok := attr(a, "href"); ok {
				hrefs = append(hrefs, href)
			}
		}
	}
	return hrefs
}

// parseFieldPage extracts one Field from a "Full" field page. Pages that
// do not match the expected heading shape (introductions, appendices)
// are skipped.
func parseFieldPage(doc *html.Node, pageURL string) (Field, bool) {
	h1 := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "h1"
	})
	if h1 == nil {
		return Field{}, false
	}
	m := fieldHeadingRe.FindStringSubmatch(collapseSpace(nodeText(h1)))
	if m == nil {
		return Field{}, false
	}
	f := Field{
		Tag:        m[1],
		Label:      strings.TrimSpace(m[2]),
		Repeatable: m[3] == "R",
		URL:        pageURL,
	}

	// Most pages list subfields as $x items inside a subfields table.
	seen := map[string]bool{}
	for _, table := range findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" && hasClass(n, "subfields")
	}) {
		for _, li := range findAll(table, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "li"
		}) {
			if m := subfieldItemRe.FindStringSubmatch(collapseSpace(nodeText(li))); m != nil && !seen[m[1]] {
				seen[m[1]] = true
				f.Subfields = append(f.Subfields, Subfield{Code: m[1], Label: strings.TrimSpace(m[2]), Repeatable: m[3] == "R"})
			}
		}
	}

	// Some pages use a single-column table cell with $-separated entries.
	if len(f.Subfields) == 0 {
		for _, td := range findAll(doc, func(n *html.Node) bool {
			if n.Type != html.ElementNode || n.Data != "td" {
				return false
			}
			v, ok := attr(n, "colspan")
			return ok && v == "1"
		}) {
			for _, chunk := range strings.Split(nodeText(td), "$") {
				if m := subfieldCellRe.FindStringSubmatch(collapseSpace(chunk)); m != nil && !seen[m[1]] {
					seen[m[1]] = true
					f.Subfields = append(f.Subfields, Subfield{Code: m[1], Label: strings.TrimSpace(m[2]), Repeatable: m[3] == "R"})
				}
			}
		}
	}

	return f, true
}

func isAnchor(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "a"
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRunRe.ReplaceAllString(s, " "))
}
