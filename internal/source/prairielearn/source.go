package prairielearn

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"prairie_track/internal/domain"
)

const (
	DefaultBaseURL  = "https://us.prairielearn.com"
	DefaultHomePath = "/pl"

	courseLinkSelector = `a[href^='/pl/course_instance/']:not([href$='/'])`
	courseInstanceDir  = "course_instance"
)

// Config holds portal client configuration.
type Config struct {
	BaseURL        string
	HomePath       string
	Cookie         string
	UserAgent      string
	AuxSelector    string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source discovers course instances on the dashboard and scrapes each
// course's assessments page.
type Source struct {
	httpClient     *http.Client
	baseURL        *url.URL
	homePath       string
	cookie         string
	userAgent      string
	auxSelector    string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

// New creates a portal source. A zero Timeout leaves requests bounded only
// by the caller's context.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HomePath == "" {
		cfg.HomePath = DefaultHomePath
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "PrairieTrack/1.0"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        base,
		homePath:       cfg.HomePath,
		cookie:         cfg.Cookie,
		userAgent:      cfg.UserAgent,
		auxSelector:    cfg.AuxSelector,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		now:            time.Now,
		logger:         logger.With("component", "prairielearn"),
	}, nil
}

// Discover lists the course instances linked from the dashboard, in page
// order, plus the auxiliary fragment when a selector is configured.
func (s *Source) Discover(ctx context.Context) (*domain.Discovery, error) {
	homeURL := s.resolve(s.homePath)
	doc, err := s.fetchDocument(ctx, homeURL)
	if err != nil {
		return nil, fmt.Errorf("fetch dashboard: %w", err)
	}

	discovery := &domain.Discovery{Endpoints: DiscoverEndpoints(doc, s.baseURL)}

	if s.auxSelector != "" {
		if sel := doc.Find(s.auxSelector).First(); sel.Length() > 0 {
			html, err := goquery.OuterHtml(sel)
			if err != nil {
				s.logger.Warn("failed to render aux fragment", "selector", s.auxSelector, "error", err)
			} else {
				discovery.Aux = &domain.AuxFragment{HTML: html, CapturedAt: s.now()}
			}
		}
	}

	s.logger.Debug("discovered courses", "count", len(discovery.Endpoints), "aux", discovery.Aux != nil)
	return discovery, nil
}

// FetchAndAdapt scrapes one course's assessments page. A nil record with a
// nil error means the page had no course code or no assessment rows.
func (s *Source) FetchAndAdapt(ctx context.Context, ep domain.Endpoint) (*domain.SourceRecord, error) {
	doc, err := s.fetchDocument(ctx, strings.TrimSuffix(ep.URL, "/")+"/assessments")
	if err != nil {
		return nil, err
	}

	rec := Scrape(doc, ep, s.now())
	if rec == nil {
		s.logger.Warn("no assessments scraped", "source_id", ep.SourceID, "url", ep.URL)
		return nil, nil
	}

	s.logger.Debug("scraped course", "source_id", ep.SourceID, "rows", len(rec.Rows))
	return rec, nil
}

func (s *Source) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return s.baseURL.String() + ref
	}
	return s.baseURL.ResolveReference(u).String()
}

func (s *Source) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		doc, err = s.doRequest(ctx, pageURL)
		if err == nil {
			return doc, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"url", pageURL,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", s.userAgent)
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if s.maxBackoff > 0 && backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}
