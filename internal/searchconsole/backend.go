package searchconsole

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	scapi "google.golang.org/api/searchconsole/v1"
	"google.golang.org/api/webmasters/v3"
)

// Backend is one authenticated session against the two remote API surfaces:
// the legacy webmasters v3 API and the searchconsole v1 API.
type Backend interface {
	QuerySearchAnalytics(ctx context.Context, siteURL string, req *webmasters.SearchAnalyticsQueryRequest) (*webmasters.SearchAnalyticsQueryResponse, error)
	ListSites(ctx context.Context) (*webmasters.SitesListResponse, error)
	ListSitemaps(ctx context.Context, siteURL, sitemapIndex string) (*webmasters.SitemapsListResponse, error)
	GetSitemap(ctx context.Context, siteURL, feedpath string) (*webmasters.WmxSitemap, error)
	SubmitSitemap(ctx context.Context, siteURL, feedpath string) error
	InspectURL(ctx context.Context, req *scapi.InspectUrlIndexRequest) (*scapi.InspectUrlIndexResponse, error)
}

// Connector authenticates and returns a Backend. It is invoked once per operation.
type Connector interface {
	Connect(ctx context.Context) (Backend, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Backend, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Backend, error) {
	return f(ctx)
}

// ErrNoCredentials is returned by GoogleConnector when no service-account
// credentials are configured. Application Default Credentials are never used.
var ErrNoCredentials = errors.New("searchconsole: service-account credentials are required")

// GoogleConnector builds Backends on the official Google API clients.
type GoogleConnector struct {
	Credentials *Credentials
	UserAgent   string

	// Extra options per surface, applied after the credentials.
	WebmastersOptions    []option.ClientOption
	SearchConsoleOptions []option.ClientOption
}

func (c *GoogleConnector) Connect(ctx context.Context) (Backend, error) {
	if c == nil {
		return nil, errors.New("searchconsole: connector is nil")
	}

	ts := c.Credentials.TokenSource()
	if ts == nil {
		return nil, ErrNoCredentials
	}
	base := []option.ClientOption{option.WithTokenSource(ts)}
	if c.UserAgent != "" {
		base = append(base, option.WithUserAgent(c.UserAgent))
	}

	wm, err := webmasters.NewService(ctx, append(append([]option.ClientOption(nil), base...), c.WebmastersOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("create webmasters client: %w", err)
	}
	sc, err := scapi.NewService(ctx, append(append([]option.ClientOption(nil), base...), c.SearchConsoleOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("create search console client: %w", err)
	}
	return &googleBackend{webmasters: wm, searchConsole: sc}, nil
}

type googleBackend struct {
	webmasters    *webmasters.Service
	searchConsole *scapi.Service
}

func (b *googleBackend) QuerySearchAnalytics(ctx context.Context, siteURL string, req *webmasters.SearchAnalyticsQueryRequest) (*webmasters.SearchAnalyticsQueryResponse, error) {
	return b.webmasters.Searchanalytics.Query(siteURL, req).Context(ctx).Do()
}

func (b *googleBackend) ListSites(ctx context.Context) (*webmasters.SitesListResponse, error) {
	return b.webmasters.Sites.List().Context(ctx).Do()
}

func (b *googleBackend) ListSitemaps(ctx context.Context, siteURL, sitemapIndex string) (*webmasters.SitemapsListResponse, error) {
	call := b.webmasters.Sitemaps.List(siteURL)
	if sitemapIndex != "" {
		call = call.SitemapIndex(sitemapIndex)
	}
	return call.Context(ctx).Do()
}

func (b *googleBackend) GetSitemap(ctx context.Context, siteURL, feedpath string) (*webmasters.WmxSitemap, error) {
	return b.webmasters.Sitemaps.Get(siteURL, feedpath).Context(ctx).Do()
}

func (b *googleBackend) SubmitSitemap(ctx context.Context, siteURL, feedpath string) error {
	return b.webmasters.Sitemaps.Submit(siteURL, feedpath).Context(ctx).Do()
}

func (b *googleBackend) InspectURL(ctx context.Context, req *scapi.InspectUrlIndexRequest) (*scapi.InspectUrlIndexResponse, error) {
	return b.searchConsole.UrlInspection.Index.Inspect(req).Context(ctx).Do()
}
