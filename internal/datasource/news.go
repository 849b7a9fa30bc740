package datasource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/mercadobr/internal/infra"
	"github.com/seenimoa/mercadobr/internal/logging"
	"github.com/seenimoa/mercadobr/internal/provider"
	"github.com/seenimoa/mercadobr/internal/store"
	"github.com/seenimoa/mercadobr/pkg/models"
	"github.com/seenimoa/mercadobr/pkg/utils"
)

const (
	newsProviderName   = "news"
	defaultNewsTimeout = 20 * time.Second
	defaultMinTitle    = 10
)

// NewsOptions configures the scraper. Zero values fall back to defaults.
type NewsOptions struct {
	Sites     []Site
	Keywords  []string
	MinTitle  int
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client
	Logger    *logging.Logger
	Now       func() time.Time
}

// News scrapes headline links from the configured sites.
type News struct {
	provider.BaseProvider
	sites     []Site
	filter    Filter
	userAgent string
	client    *http.Client
	parser    *gofeed.Parser
	log       *logging.Logger
	now       func() time.Time
}

// NewNews creates a news scraper.
func NewNews(opts NewsOptions) *News {
	n := &News{
		BaseProvider: provider.NewBaseProvider(
			newsProviderName,
			"Manchetes de investimento de portais brasileiros",
			"",
			store.FileNews,
			nil,
		),
		sites:     append([]Site(nil), opts.Sites...),
		filter:    Filter{MinTitle: opts.MinTitle},
		userAgent: opts.UserAgent,
		client:    opts.Client,
		parser:    gofeed.NewParser(),
		log:       logging.OrSilent(opts.Logger).With(newsProviderName),
		now:       opts.Now,
	}
	for _, kw := range opts.Keywords {
		n.filter.Keywords = append(n.filter.Keywords, strings.ToLower(kw))
	}
	if n.filter.MinTitle <= 0 {
		n.filter.MinTitle = defaultMinTitle
	}
	if n.userAgent == "" {
		n.userAgent = infra.DefaultUserAgent
	}
	if n.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultNewsTimeout
		}
		n.client = infra.NewHTTPClient(timeout)
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

// Sites returns the configured sites.
func (n *News) Sites() []Site {
	return append([]Site(nil), n.sites...)
}

// Ping fetches the first site's page.
func (n *News) Ping(ctx context.Context) error {
	if len(n.sites) == 0 {
		return fmt.Errorf("news ping: no sites configured")
	}
	if _, err := n.get(ctx, n.sites[0].URL); err != nil {
		return fmt.Errorf("news ping: %w", err)
	}
	return nil
}

// Collect scrapes every site, then removes duplicate (title, link) pairs
// across sites. A site that fails is recorded as skipped.
func (n *News) Collect(ctx context.Context) ([]models.NewsItem, *models.CollectionReport) {
	report := models.NewCollectionReport(newsProviderName)
	var all []models.NewsItem

	for _, site := range n.sites {
		if err := ctx.Err(); err != nil {
			report.Skip(site.Name, err.Error())
			continue
		}
		n.log.Info().Str("site", site.Name).Str("url", site.URL).Msg("collecting headlines")

		items, err := n.FetchSite(ctx, site)
		if err != nil {
			n.log.Warn().Err(err).Str("site", site.Name).Msg("site skipped")
			report.Skip(site.Name, err.Error())
			continue
		}
		n.log.Info().Str("site", site.Name).Int("found", len(items)).Msg("relevant headlines found")
		all = append(all, items...)
		report.OK(site.Name, len(items))
	}

	unique, removed := Dedup(all)
	n.log.Info().Int("removed", removed).Int("total", len(unique)).Msg("duplicates removed")
	report.Rows = len(unique)
	report.Finish()
	return unique, report
}

// FetchSite scrapes one site's page and, when configured, its feed.
func (n *News) FetchSite(ctx context.Context, site Site) ([]models.NewsItem, error) {
	body, err := n.get(ctx, site.URL)
	if err != nil {
		return nil, err
	}
	at := n.now().In(utils.BRT)

	items, err := ExtractHeadlines(bytes.NewReader(body), BaseURL(site.URL), site.Name, n.filter, at)
	if err != nil {
		return nil, err
	}

	if site.FeedURL != "" {
		feedItems, err := n.fetchFeed(ctx, site, at)
		if err != nil {
			n.log.Warn().Err(err).Str("site", site.Name).Str("feed", site.FeedURL).Msg("feed skipped")
		} else {
			items = append(items, feedItems...)
		}
	}
	return items, nil
}

// ExtractHeadlines parses an HTML page and returns every anchor whose text
// passes filter, with its link made absolute against base.
func ExtractHeadlines(r io.Reader, base, source string, filter Filter, at time.Time) ([]models.NewsItem, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var out []models.NewsItem
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		title := strings.TrimSpace(a.Text())
		if !filter.Accept(title) {
			return
		}
		href, _ := a.Attr("href")
		link, ok := NormalizeLink(href, base)
		if !ok {
			return
		}
		out = append(out, models.NewsItem{Title: title, Link: link, Source: source, CollectedAt: at})
	})
	return out, nil
}

// fetchFeed applies the same filter to a site's RSS/Atom items.
func (n *News) fetchFeed(ctx context.Context, site Site, at time.Time) ([]models.NewsItem, error) {
	body, err := n.get(ctx, site.FeedURL)
	if err != nil {
		return nil, err
	}
	feed, err := n.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	base := BaseURL(site.URL)
	var out []models.NewsItem
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if !n.filter.Accept(title) {
			continue
		}
		link, ok := NormalizeLink(item.Link, base)
		if !ok {
			continue
		}
		out = append(out, models.NewsItem{Title: title, Link: link, Source: site.Name, CollectedAt: at})
	}
	return out, nil
}

func (n *News) get(ctx context.Context, url string) ([]byte, error) {
	return infra.DoGet(ctx, n.client, url, map[string]string{
		"User-Agent": n.userAgent,
		"Accept":     "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
}
