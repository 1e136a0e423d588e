package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	scapi "google.golang.org/api/searchconsole/v1"
	"google.golang.org/api/webmasters/v3"

	"github.com/stellarlinkco/gsc-mcp/internal/searchconsole"
)

// Tool names.
const (
	NameSearchAnalytics = "search_analytics"
	NameListSites       = "list_sites"
	NameListSitemaps    = "list_sitemaps"
	NameGetSitemap      = "get_sitemap"
	NameSubmitSitemap   = "submit_sitemap"
	NameIndexInspect    = "index_inspect"
)

const (
	DefaultRowLimit int64 = 1000
	MaxRowLimit     int64 = 25000
	maxStartRow     int64 = 1 << 31
)

var (
	Dimensions       = []string{"query", "page", "country", "device", "searchAppearance"}
	SearchTypes      = []string{"web", "image", "video", "news"}
	AggregationTypes = []string{"auto", "byNewsShowcasePanel", "byProperty", "byPage"}
	DataStates       = []string{"all", "final"}
)

// SearchConsole is the subset of the access service the catalog dispatches to.
type SearchConsole interface {
	SearchAnalytics(ctx context.Context, siteURL string, req *webmasters.SearchAnalyticsQueryRequest) (*webmasters.SearchAnalyticsQueryResponse, error)
	ListSites(ctx context.Context) (*webmasters.SitesListResponse, error)
	ListSitemaps(ctx context.Context, req searchconsole.ListSitemapsRequest) (*webmasters.SitemapsListResponse, error)
	GetSitemap(ctx context.Context, req searchconsole.SitemapRequest) (*webmasters.WmxSitemap, error)
	SubmitSitemap(ctx context.Context, req searchconsole.SitemapRequest) error
	IndexInspect(ctx context.Context, req *scapi.InspectUrlIndexRequest) (*scapi.InspectUrlIndexResponse, error)
}

var _ SearchConsole = (*searchconsole.Service)(nil)

type CatalogOptions struct {
	// AllowWrites registers submit_sitemap.
	AllowWrites bool
}

// NewCatalog builds the registry of Search Console tools backed by svc.
func NewCatalog(svc SearchConsole, opts CatalogOptions) (*Registry, error) {
	c := catalog{svc: svc}
	list := []Tool{
		{
			Name:        NameSearchAnalytics,
			Title:       "Search analytics",
			Description: "Get search performance data (clicks, impressions, CTR, position) from Google Search Console for a site and date range.",
			InputSchema: searchAnalyticsSchema(),
			ReadOnly:    true,
			Handler:     c.searchAnalytics,
		},
		{
			Name:        NameListSites,
			Title:       "List sites",
			Description: "List the Search Console properties the credentials can access.",
			InputSchema: objectSchema(nil),
			ReadOnly:    true,
			NoArguments: true,
			Handler:     c.listSites,
		},
		{
			Name:        NameListSitemaps,
			Title:       "List sitemaps",
			Description: "List the sitemaps submitted for a site, optionally only those within a sitemap index.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"siteUrl":      siteURLProperty(),
				"sitemapIndex": {Type: "string", Description: "URL of a sitemap index; only sitemaps it contains are listed."},
			}, "siteUrl"),
			ReadOnly: true,
			Handler:  c.listSitemaps,
		},
		{
			Name:        NameGetSitemap,
			Title:       "Get sitemap",
			Description: "Get details about one submitted sitemap.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"siteUrl":  siteURLProperty(),
				"feedpath": feedpathProperty(),
			}, "siteUrl", "feedpath"),
			ReadOnly: true,
			Handler:  c.getSitemap,
		},
	}
	if opts.AllowWrites {
		list = append(list, Tool{
			Name:        NameSubmitSitemap,
			Title:       "Submit sitemap",
			Description: "Submit a sitemap for a site.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"siteUrl":  siteURLProperty(),
				"feedpath": feedpathProperty(),
			}, "siteUrl", "feedpath"),
			Handler: c.submitSitemap,
		})
	}
	list = append(list, Tool{
		Name:        NameIndexInspect,
		Title:       "Inspect URL",
		Description: "Inspect the Google index status of a URL within a site.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"siteUrl":       siteURLProperty(),
			"inspectionUrl": {Type: "string", Description: "Fully qualified URL to inspect. Must be under the property in siteUrl."},
			"languageCode":  {Type: "string", Description: "IETF BCP-47 language code for translated issue messages, e.g. en-US."},
		}, "siteUrl", "inspectionUrl"),
		ReadOnly: true,
		Handler:  c.indexInspect,
	})
	return NewRegistry(list...)
}

type catalog struct {
	svc SearchConsole
}

// SearchAnalyticsArgs are the decoded arguments of search_analytics.
type SearchAnalyticsArgs struct {
	SiteURL         string
	StartDate       string
	EndDate         string
	Dimensions      []string
	Type            string
	AggregationType string
	RowLimit        int64
	StartRow        int64
	DataState       string
}

// Request converts the arguments into the API query body.
func (a SearchAnalyticsArgs) Request() *webmasters.SearchAnalyticsQueryRequest {
	return &webmasters.SearchAnalyticsQueryRequest{
		StartDate:       a.StartDate,
		EndDate:         a.EndDate,
		Dimensions:      a.Dimensions,
		SearchType:      a.Type,
		AggregationType: a.AggregationType,
		RowLimit:        a.RowLimit,
		StartRow:        a.StartRow,
		DataState:       a.DataState,
	}
}

// ParseSearchAnalyticsArgs decodes and validates search_analytics arguments.
func ParseSearchAnalyticsArgs(raw json.RawMessage) (SearchAnalyticsArgs, error) {
	r, err := newArgReader(raw)
	if err != nil {
		return SearchAnalyticsArgs{}, err
	}
	args := SearchAnalyticsArgs{
		SiteURL:         r.String("siteUrl", true),
		StartDate:       r.Date("startDate"),
		EndDate:         r.Date("endDate"),
		Type:            r.Enum("type", SearchTypes),
		AggregationType: r.Enum("aggregationType", AggregationTypes),
		RowLimit:        r.Int("rowLimit", DefaultRowLimit, 1, MaxRowLimit),
		StartRow:        r.Int("startRow", 0, 0, maxStartRow),
		DataState:       r.Enum("dataState", DataStates),
	}
	if _, ok := r.present("dimensions"); ok {
		before := len(r.issues)
		s := r.String("dimensions", false)
		if len(r.issues) == before {
			dims, issues := ParseDimensions(s)
			args.Dimensions = dims
			r.issues = append(r.issues, issues...)
		}
	}
	if args.StartDate != "" && args.EndDate != "" && args.EndDate < args.StartDate {
		r.fail("endDate", "must not be before startDate")
	}
	if err := r.err(); err != nil {
		return SearchAnalyticsArgs{}, err
	}
	return args, nil
}

// ParseDimensions splits a comma-separated dimension list, preserving order.
// Each rejected element is reported as dimensions[i].
func ParseDimensions(s string) ([]string, []FieldIssue) {
	if strings.TrimSpace(s) == "" {
		return nil, []FieldIssue{{Path: "dimensions", Message: "must not be empty"}}
	}
	parts := strings.Split(s, ",")
	dims := make([]string, 0, len(parts))
	var issues []FieldIssue
	for i, part := range parts {
		d := strings.TrimSpace(part)
		if !slices.Contains(Dimensions, d) {
			issues = append(issues, FieldIssue{
				Path:    fmt.Sprintf("dimensions[%d]", i),
				Message: fmt.Sprintf("invalid enum value %q, expected one of %s", d, strings.Join(Dimensions, ", ")),
			})
			continue
		}
		dims = append(dims, d)
	}
	return dims, issues
}

func (c catalog) searchAnalytics(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := ParseSearchAnalyticsArgs(raw)
	if err != nil {
		return nil, err
	}
	return c.svc.SearchAnalytics(ctx, args.SiteURL, args.Request())
}

func (c catalog) listSites(ctx context.Context, raw json.RawMessage) (any, error) {
	if _, err := newArgReader(raw); err != nil {
		return nil, err
	}
	return c.svc.ListSites(ctx)
}

func (c catalog) listSitemaps(ctx context.Context, raw json.RawMessage) (any, error) {
	r, err := newArgReader(raw)
	if err != nil {
		return nil, err
	}
	req := searchconsole.ListSitemapsRequest{
		SiteURL:      r.String("siteUrl", true),
		SitemapIndex: r.String("sitemapIndex", false),
	}
	if err := r.err(); err != nil {
		return nil, err
	}
	return c.svc.ListSitemaps(ctx, req)
}

func (c catalog) getSitemap(ctx context.Context, raw json.RawMessage) (any, error) {
	req, err := parseSitemapRequest(raw)
	if err != nil {
		return nil, err
	}
	return c.svc.GetSitemap(ctx, req)
}

type submitResult struct {
	Submitted bool   `json:"submitted"`
	SiteURL   string `json:"siteUrl"`
	Feedpath  string `json:"feedpath"`
}

func (c catalog) submitSitemap(ctx context.Context, raw json.RawMessage) (any, error) {
	req, err := parseSitemapRequest(raw)
	if err != nil {
		return nil, err
	}
	if err := c.svc.SubmitSitemap(ctx, req); err != nil {
		return nil, err
	}
	return submitResult{Submitted: true, SiteURL: req.SiteURL, Feedpath: req.Feedpath}, nil
}

func (c catalog) indexInspect(ctx context.Context, raw json.RawMessage) (any, error) {
	r, err := newArgReader(raw)
	if err != nil {
		return nil, err
	}
	req := &scapi.InspectUrlIndexRequest{
		SiteUrl:       r.String("siteUrl", true),
		InspectionUrl: r.String("inspectionUrl", true),
		LanguageCode:  r.String("languageCode", false),
	}
	if err := r.err(); err != nil {
		return nil, err
	}
	return c.svc.IndexInspect(ctx, req)
}

func parseSitemapRequest(raw json.RawMessage) (searchconsole.SitemapRequest, error) {
	r, err := newArgReader(raw)
	if err != nil {
		return searchconsole.SitemapRequest{}, err
	}
	req := searchconsole.SitemapRequest{
		SiteURL:  r.String("siteUrl", true),
		Feedpath: r.String("feedpath", true),
	}
	return req, r.err()
}
