// Package datasource scrapes investment headlines from Brazilian news sites.
// Each site's page is fetched with a browser user agent, every anchor is
// filtered by title length and keyword, and links are made absolute.
// Sites may also expose an RSS/Atom feed that is filtered the same way.
package datasource

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/seenimoa/mercadobr/pkg/models"
)

// Site is a news page to scrape. FeedURL is optional.
type Site struct {
	Name    string
	URL     string
	FeedURL string
}

// Filter decides which anchors become headlines.
type Filter struct {
	Keywords []string // lowercase
	MinTitle int      // in characters, after lowercasing
}

// Accept reports whether title passes the length and keyword checks.
// Keywords match as substrings of the lowercased title.
func (f Filter) Accept(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	if lower == "" || utf8.RuneCountInString(lower) < f.MinTitle {
		return false
	}
	for _, kw := range f.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// BaseURL returns scheme://host of a site URL.
func BaseURL(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(siteURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// NormalizeLink makes href absolute against base. It reports false for
// anything that is not an http or https URL afterwards.
func NormalizeLink(href, base string) (string, bool) {
	link := strings.TrimSpace(href)
	switch {
	case strings.HasPrefix(link, "//"):
		scheme := "https"
		if u, err := url.Parse(base); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		link = scheme + ":" + link
	case strings.HasPrefix(link, "/"):
		link = strings.TrimRight(base, "/") + link
	}
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return "", false
	}
	return link, true
}

// Dedup removes items whose (title, link) pair was already seen, keeping
// the first occurrence. It returns the survivors and how many were removed.
func Dedup(items []models.NewsItem) ([]models.NewsItem, int) {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.NewsItem, 0, len(items))
	for _, it := range items {
		k := it.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out, len(items) - len(out)
}
