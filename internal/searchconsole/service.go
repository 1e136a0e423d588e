// Package searchconsole is the access layer in front of the Google Search
// Console APIs. Every operation authenticates through its Connector, issues one
// remote call and, for operations keyed by a site identifier, retries once
// with the alternate identifier form when the first attempt is refused for
// lack of permission.
package searchconsole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	scapi "google.golang.org/api/searchconsole/v1"
	"google.golang.org/api/webmasters/v3"
)

const (
	OpSearchAnalytics = "searchAnalytics"
	OpListSites       = "listSites"
	OpListSitemaps    = "listSitemaps"
	OpGetSitemap      = "getSitemap"
	OpSubmitSitemap   = "submitSitemap"
	OpIndexInspect    = "indexInspect"
)

var ErrNilConnector = errors.New("searchconsole: connector is required")

// Options for creating a Service
type Options struct {
	Logger   *slog.Logger
	Observer Observer
	// Timeout bounds each remote attempt; zero disables it.
	Timeout time.Duration
}

// ListSitemapsRequest selects the sitemaps of a site, optionally those listed
// in one sitemap index.
type ListSitemapsRequest struct {
	SiteURL      string
	SitemapIndex string
}

// SitemapRequest addresses a single sitemap of a site.
type SitemapRequest struct {
	SiteURL  string
	Feedpath string
}

type Service struct {
	connector Connector
	logger    *slog.Logger
	observer  Observer
	timeout   time.Duration
}

func NewService(connector Connector, opts Options) (*Service, error) {
	if connector == nil {
		return nil, ErrNilConnector
	}
	s := &Service{
		connector: connector,
		logger:    opts.Logger,
		observer:  opts.Observer,
		timeout:   opts.Timeout,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s, nil
}

func (s *Service) SearchAnalytics(ctx context.Context, siteURL string, req *webmasters.SearchAnalyticsQueryRequest) (resp *webmasters.SearchAnalyticsQueryResponse, err error) {
	ctx, end := s.observer.StartCall(ctx, OpSearchAnalytics, siteURL)
	defer func() { end(err) }()

	backend, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	return withPermissionFallback(ctx, s, OpSearchAnalytics, siteURL,
		func(ctx context.Context, site string) (*webmasters.SearchAnalyticsQueryResponse, error) {
			return backend.QuerySearchAnalytics(ctx, site, req)
		})
}

func (s *Service) ListSites(ctx context.Context) (resp *webmasters.SitesListResponse, err error) {
	ctx, end := s.observer.StartCall(ctx, OpListSites, "")
	defer func() { end(err) }()

	backend, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.attemptContext(ctx)
	defer cancel()
	return backend.ListSites(ctx)
}

func (s *Service) ListSitemaps(ctx context.Context, req ListSitemapsRequest) (resp *webmasters.SitemapsListResponse, err error) {
	ctx, end := s.observer.StartCall(ctx, OpListSitemaps, req.SiteURL)
	defer func() { end(err) }()

	backend, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	return withPermissionFallback(ctx, s, OpListSitemaps, req.SiteURL,
		func(ctx context.Context, site string) (*webmasters.SitemapsListResponse, error) {
			return backend.ListSitemaps(ctx, site, req.SitemapIndex)
		})
}

func (s *Service) GetSitemap(ctx context.Context, req SitemapRequest) (resp *webmasters.WmxSitemap, err error) {
	ctx, end := s.observer.StartCall(ctx, OpGetSitemap, req.SiteURL)
	defer func() { end(err) }()

	backend, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	return withPermissionFallback(ctx, s, OpGetSitemap, req.SiteURL,
		func(ctx context.Context, site string) (*webmasters.WmxSitemap, error) {
			return backend.GetSitemap(ctx, site, req.Feedpath)
		})
}

func (s *Service) SubmitSitemap(ctx context.Context, req SitemapRequest) (err error) {
	ctx, end := s.observer.StartCall(ctx, OpSubmitSitemap, req.SiteURL)
	defer func() { end(err) }()

	backend, err := s.connect(ctx)
	if err != nil {
		return err
	}
	_, err = withPermissionFallback(ctx, s, OpSubmitSitemap, req.SiteURL,
		func(ctx context.Context, site string) (struct{}, error) {
			return struct{}{}, backend.SubmitSitemap(ctx, site, req.Feedpath)
		})
	return err
}

// IndexInspect has no fallback: the site identifier travels in the request
// body alongside the inspected URL.
func (s *Service) IndexInspect(ctx context.Context, req *scapi.InspectUrlIndexRequest) (resp *scapi.InspectUrlIndexResponse, err error) {
	site := ""
	if req != nil {
		site = req.SiteUrl
	}
	ctx, end := s.observer.StartCall(ctx, OpIndexInspect, site)
	defer func() { end(err) }()

	if req == nil {
		return nil, errors.New("searchconsole: inspect request is nil")
	}
	backend, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.attemptContext(ctx)
	defer cancel()
	return backend.InspectURL(ctx, req)
}

func (s *Service) connect(ctx context.Context) (Backend, error) {
	backend, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect search console: %w", err)
	}
	return backend, nil
}

func (s *Service) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// withPermissionFallback runs call with siteURL and, if that fails with a
// permission error, exactly once more with NormalizeSiteURL(siteURL). Errors
// are returned unwrapped.
func withPermissionFallback[T any](ctx context.Context, s *Service, op, siteURL string, call func(ctx context.Context, site string) (T, error)) (T, error) {
	res, err := attemptWith(ctx, s, siteURL, call)
	if err == nil || !IsPermissionError(err) {
		return res, err
	}

	alt := NormalizeSiteURL(siteURL)
	s.logger.Info("permission denied, retrying with alternate site identifier",
		"op", op, "site", siteURL, "domain_property", IsDomainProperty(siteURL), "fallback", alt, "error", err)
	s.observer.RecordFallback(ctx, op, siteURL, alt)

	return attemptWith(ctx, s, alt, call)
}

func attemptWith[T any](ctx context.Context, s *Service, site string, call func(ctx context.Context, site string) (T, error)) (T, error) {
	ctx, cancel := s.attemptContext(ctx)
	defer cancel()
	return call(ctx, site)
}
