package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/seenimoa/mercadobr/internal/infra"
	"github.com/seenimoa/mercadobr/internal/logging"
)

// WebSearchTool is the tool name the analyst roles call.
const WebSearchTool = "web_search"

// ErrSearchUnavailable is returned when no search key is configured.
var ErrSearchUnavailable = errors.New("llm: web search unavailable")

// SearchResult is one organic hit from the search API.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
}

type serperRequest struct {
	Q   string `json:"q"`
	GL  string `json:"gl,omitempty"`
	HL  string `json:"hl,omitempty"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	AnswerBox *struct {
		Title   string `json:"title"`
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
	Organic []SearchResult `json:"organic"`
}

// SearchOptions configures the Serper client. Zero values fall back to
// defaults.
type SearchOptions struct {
	APIKey     string
	BaseURL    string
	Country    string
	Language   string
	NumResults int
	RatePerSec float64
	Timeout    time.Duration
	Logger     *logging.Logger
}

// Search is a Google search client backed by serper.dev.
type Search struct {
	client   *resty.Client
	apiKey   string
	country  string
	language string
	num      int
	limiter  *infra.RateLimiter
	log      *logging.Logger
}

// NewSearch creates a search client. A missing key is allowed; every query
// then fails with ErrSearchUnavailable.
func NewSearch(opts SearchOptions) *Search {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://google.serper.dev"
	}
	if opts.NumResults <= 0 {
		opts.NumResults = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-API-KEY", opts.APIKey)
	return &Search{
		client:   client,
		apiKey:   opts.APIKey,
		country:  opts.Country,
		language: opts.Language,
		num:      opts.NumResults,
		limiter:  infra.NewRateLimiter(opts.RatePerSec, 1),
		log:      opts.Logger.With("search"),
	}
}

// Available reports whether a key is configured.
func (s *Search) Available() bool { return s.apiKey != "" }

// Query runs one search and returns the organic results, with the answer
// box first when present.
func (s *Search) Query(ctx context.Context, q string) ([]SearchResult, error) {
	if !s.Available() {
		return nil, ErrSearchUnavailable
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, errors.New("search: empty query")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out serperResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(serperRequest{Q: q, GL: s.country, HL: s.language, Num: s.num}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search: status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	results := make([]SearchResult, 0, len(out.Organic)+1)
	if ab := out.AnswerBox; ab != nil && (ab.Answer != "" || ab.Snippet != "") {
		snippet := ab.Answer
		if snippet == "" {
			snippet = ab.Snippet
		}
		results = append(results, SearchResult{Title: ab.Title, Snippet: snippet})
	}
	results = append(results, out.Organic...)
	s.log.Debug().Str("query", q).Int("results", len(results)).Msg("web search")
	return results, nil
}

// Tool exposes the client as the web_search tool. Failures are reported to
// the model as text so the role can continue without search.
func (s *Search) Tool() Tool {
	return Tool{
		Name:        WebSearchTool,
		Description: "Pesquisa na web (Google) por notícias e dados recentes sobre economia e empresas brasileiras.",
		Parameters: ObjectSchema("Parâmetros da busca", map[string]*JSONSchema{
			"query": StringProp("Termos da busca"),
		}, "query"),
		Handler: s.handle,
	}
}

func (s *Search) handle(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("search: decode arguments: %w", err)
	}
	results, err := s.Query(ctx, in.Query)
	if errors.Is(err, ErrSearchUnavailable) {
		return "Busca na web indisponível: SERPER_API_KEY não configurada.", nil
	}
	if err != nil {
		s.log.Warn().Err(err).Str("query", in.Query).Msg("web search failed")
		return "", err
	}
	return FormatSearchResults(results), nil
}

// FormatSearchResults renders results as a numbered plain-text list.
func FormatSearchResults(results []SearchResult) string {
	if len(results) == 0 {
		return "Nenhum resultado encontrado."
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		if r.Link != "" {
			fmt.Fprintf(&b, "   %s\n", r.Link)
		}
		if r.Date != "" {
			fmt.Fprintf(&b, "   %s\n", r.Date)
		}
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
