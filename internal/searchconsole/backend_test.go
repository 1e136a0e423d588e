package searchconsole

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	scapi "google.golang.org/api/searchconsole/v1"
	"google.golang.org/api/webmasters/v3"
)

// fakeAPI serves the subset of both API surfaces used by the backend. Requests
// naming deniedSite get a 403 permission error, brokenSite a 404.
type fakeAPI struct {
	deniedSite string
	brokenSite string

	mu    sync.Mutex
	paths []string
	body  map[string]any
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	if r.Body != nil {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			f.body = body
		}
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.deniedSite != "" && strings.Contains(r.URL.Path, "/sites/"+f.deniedSite+"/") {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"User does not have sufficient permission for site '` + f.deniedSite + `'. See also: https://support.google.com/webmasters/answer/2451999.","errors":[{"message":"denied","domain":"global","reason":"forbidden"}]}}`))
		return
	}

	if f.brokenSite != "" && strings.Contains(r.URL.Path, "/sites/"+f.brokenSite+"/") {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/searchAnalytics/query"):
		_, _ = w.Write([]byte(`{"rows":[{"keys":["golang"],"clicks":10,"impressions":100,"ctr":0.1,"position":3.2}],"responseAggregationType":"byProperty"}`))
	case strings.HasSuffix(r.URL.Path, "/sitemaps") && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"sitemap":[{"path":"https://example.com/sitemap.xml","isPending":false,"errors":"0","warnings":"1"}]}`))
	case strings.Contains(r.URL.Path, "/sitemaps/") && r.Method == http.MethodPut:
		w.WriteHeader(http.StatusNoContent)
	case strings.Contains(r.URL.Path, "/sitemaps/"):
		_, _ = w.Write([]byte(`{"path":"https://example.com/sitemap.xml","type":"sitemap"}`))
	case strings.HasSuffix(r.URL.Path, "/sites"):
		_, _ = w.Write([]byte(`{"siteEntry":[{"siteUrl":"sc-domain:example.com","permissionLevel":"siteOwner"}]}`))
	case strings.Contains(r.URL.Path, "urlInspection/index"):
		_, _ = w.Write([]byte(`{"inspectionResult":{"inspectionResultLink":"https://search.google.com/x","indexStatusResult":{"verdict":"PASS","coverageState":"Submitted and indexed"}}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
	}
}

func (f *fakeAPI) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func newFakeConnector(t *testing.T, api *fakeAPI) *GoogleConnector {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	creds, err := ParseCredentials([]byte(testKeyJSON), "")
	require.NoError(t, err)

	return &GoogleConnector{
		Credentials: creds,
		UserAgent:   "gsc-mcp-test",
		WebmastersOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/webmasters/v3/"),
			option.WithHTTPClient(srv.Client()),
		},
		SearchConsoleOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
	}
}

func TestGoogleBackend_SearchAnalyticsFallback(t *testing.T) {
	api := &fakeAPI{deniedSite: "https://example.com/"}
	svc, err := NewService(newFakeConnector(t, api), Options{})
	require.NoError(t, err)

	resp, err := svc.SearchAnalytics(context.Background(), "https://example.com/", &webmasters.SearchAnalyticsQueryRequest{
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
		Dimensions: []string{"query"},
		RowLimit:   1000,
	})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, []string{"golang"}, resp.Rows[0].Keys)
	assert.Equal(t, "byProperty", resp.ResponseAggregationType)

	reqs := api.requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0], "/sites/https://example.com//searchAnalytics/query")
	assert.Contains(t, reqs[1], "/sites/sc-domain:example.com/searchAnalytics/query")
	assert.Equal(t, "2024-01-01", api.body["startDate"])
	assert.EqualValues(t, 1000, api.body["rowLimit"])
}

func TestGoogleBackend_NonPermissionErrorPropagates(t *testing.T) {
	api := &fakeAPI{brokenSite: "https://example.com/"}
	svc, err := NewService(newFakeConnector(t, api), Options{})
	require.NoError(t, err)

	_, err = svc.GetSitemap(context.Background(), SitemapRequest{
		SiteURL:  "https://example.com/",
		Feedpath: "https://example.com/sitemap.xml",
	})
	var gerr *googleapi.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusNotFound, gerr.Code)
	assert.Len(t, api.requests(), 1)
}

func TestGoogleBackend_ListSites(t *testing.T) {
	api := &fakeAPI{}
	svc, err := NewService(newFakeConnector(t, api), Options{})
	require.NoError(t, err)

	resp, err := svc.ListSites(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.SiteEntry, 1)
	assert.Equal(t, "sc-domain:example.com", resp.SiteEntry[0].SiteUrl)
}

func TestGoogleBackend_Sitemaps(t *testing.T) {
	api := &fakeAPI{deniedSite: "sc-domain:example.com"}
	svc, err := NewService(newFakeConnector(t, api), Options{})
	require.NoError(t, err)
	ctx := context.Background()

	list, err := svc.ListSitemaps(ctx, ListSitemapsRequest{SiteURL: "sc-domain:example.com"})
	require.NoError(t, err)
	require.Len(t, list.Sitemap, 1)
	assert.Equal(t, int64(1), list.Sitemap[0].Warnings)

	got, err := svc.GetSitemap(ctx, SitemapRequest{SiteURL: "https://example.com/", Feedpath: "https://example.com/sitemap.xml"})
	require.NoError(t, err)
	assert.Equal(t, "sitemap", got.Type)

	err = svc.SubmitSitemap(ctx, SitemapRequest{SiteURL: "sc-domain:example.com", Feedpath: "https://example.com/sitemap.xml"})
	require.NoError(t, err)

	reqs := api.requests()
	require.Len(t, reqs, 5)
	assert.Contains(t, reqs[0], "/sites/sc-domain:example.com/sitemaps")
	assert.Contains(t, reqs[1], "/sites/https://sc-domain:example.com/sitemaps")
	assert.True(t, strings.HasPrefix(reqs[4], http.MethodPut))
	assert.Contains(t, reqs[4], "/sites/https://sc-domain:example.com/sitemaps/")
}

func TestGoogleConnector_RequiresCredentials(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	conn := &GoogleConnector{
		WebmastersOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/webmasters/v3/"),
			option.WithHTTPClient(srv.Client()),
		},
	}
	backend, err := conn.Connect(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.Nil(t, backend)

	svc, err := NewService(conn, Options{})
	require.NoError(t, err)
	_, err = svc.ListSites(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.Empty(t, api.requests())
}

func TestGoogleBackend_IndexInspect(t *testing.T) {
	api := &fakeAPI{}
	svc, err := NewService(newFakeConnector(t, api), Options{})
	require.NoError(t, err)

	resp, err := svc.IndexInspect(context.Background(), &scapi.InspectUrlIndexRequest{
		SiteUrl:       "sc-domain:example.com",
		InspectionUrl: "https://example.com/page",
		LanguageCode:  "en-US",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.InspectionResult)
	assert.Equal(t, "PASS", resp.InspectionResult.IndexStatusResult.Verdict)
	assert.Equal(t, "https://example.com/page", api.body["inspectionUrl"])
	assert.Equal(t, "sc-domain:example.com", api.body["siteUrl"])
}
