package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer serves a robots.txt body and counts page requests.
type testServer struct {
	*httptest.Server
	robotsBody   string
	robotsStatus int
	robotsHits   atomic.Int64
	pageHits     atomic.Int64
}

func newTestServer(tb testing.TB, robotsBody string, robotsStatus int) *testServer {
	tb.Helper()

	ts := &testServer{robotsBody: robotsBody, robotsStatus: robotsStatus}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			ts.robotsHits.Add(1)
			w.WriteHeader(ts.robotsStatus)
			_, _ = w.Write([]byte(ts.robotsBody))
		default:
			ts.pageHits.Add(1)
			_, _ = w.Write([]byte("<html><body>ok</body></html>"))
		}
	}))
	tb.Cleanup(ts.Close)
	return ts
}

func newTestFetcher(tb testing.TB) *Fetcher {
	tb.Helper()

	f := New(Config{
		MinDomainDelay: 10 * time.Millisecond,
		Timeout:        5 * time.Second,
		GlobalRate:     10000,
	})
	f.SetSleepFunc(func(time.Duration) {})
	tb.Cleanup(f.Close)
	return f
}

func TestCanFetchDisallowedDomain(t *testing.T) {
	ts := newTestServer(t, "User-agent: *\nDisallow: /", http.StatusOK)
	f := newTestFetcher(t)

	assert.False(t, f.CanFetch(ts.URL+"/species/cattleya.htm"))

	// Get must return nil without issuing the underlying request
	resp := f.Get(context.Background(), ts.URL+"/species/cattleya.htm")
	assert.Nil(t, resp)
	assert.Equal(t, int64(0), ts.pageHits.Load())
}

func TestCanFetchAllowedDomain(t *testing.T) {
	ts := newTestServer(t, "User-agent: *\nDisallow: /admin/", http.StatusOK)
	f := newTestFetcher(t)

	assert.True(t, f.CanFetch(ts.URL+"/species/cattleya.htm"))

	resp := f.Get(context.Background(), ts.URL+"/species/cattleya.htm")
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, int64(1), ts.pageHits.Load())
}

func TestCanFetchRobotsUnavailableDefaultsPermissive(t *testing.T) {
	ts := newTestServer(t, "", http.StatusNotFound)
	f := newTestFetcher(t)

	// Absence of policy is not a reason to block
	assert.True(t, f.CanFetch(ts.URL+"/anything"))
}

func TestRobotsVerdictCachedPerDomain(t *testing.T) {
	ts := newTestServer(t, "User-agent: *\nDisallow: /", http.StatusOK)
	f := newTestFetcher(t)

	for i := 0; i < 5; i++ {
		assert.False(t, f.CanFetch(ts.URL+"/page"))
	}
	assert.Equal(t, int64(1), ts.robotsHits.Load(), "robots.txt should be fetched once per domain")
}

func TestPerDomainRateLimiting(t *testing.T) {
	ts := newTestServer(t, "", http.StatusNotFound)

	const minDelay = 2 * time.Second
	f := New(Config{
		MinDomainDelay: minDelay,
		Timeout:        5 * time.Second,
		GlobalRate:     10000,
	})
	t.Cleanup(f.Close)

	// Fake clock: sleeping advances time, nothing else does
	now := time.Now()
	f.SetNowFunc(func() time.Time { return now })
	var totalSlept time.Duration
	f.SetSleepFunc(func(d time.Duration) {
		totalSlept += d
		now = now.Add(d)
	})

	ctx := context.Background()
	for _, resp := range []*http.Response{
		f.Get(ctx, ts.URL+"/a"),
		f.Get(ctx, ts.URL+"/b"),
	} {
		require.NotNil(t, resp)
		_ = resp.Body.Close()
	}

	// The robots probe plus two page fetches hit one domain three times, so
	// at least two full delay windows must have been slept through.
	assert.GreaterOrEqual(t, totalSlept, 2*minDelay)
}

func TestGetNon2xxReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t)
	assert.Nil(t, f.Get(context.Background(), srv.URL+"/broken"))
}

func TestGetUnreachableHostReturnsNil(t *testing.T) {
	f := newTestFetcher(t)
	// Reserved TEST-NET address, nothing listens there
	assert.Nil(t, f.Get(context.Background(), "http://192.0.2.1:9/page"))
}

func TestGetBody(t *testing.T) {
	ts := newTestServer(t, "", http.StatusNotFound)
	f := newTestFetcher(t)

	body := f.GetBody(context.Background(), ts.URL+"/page")
	require.NotNil(t, body)
	assert.Contains(t, string(body), "ok")
}

func TestUserAgentSentWithRequests(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			gotUA.Store(r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{
		MinDomainDelay: time.Millisecond,
		Timeout:        5 * time.Second,
		GlobalRate:     10000,
		ContactURL:     "https://example.org/crawler",
		Version:        "1.2.3",
	})
	f.SetSleepFunc(func(time.Duration) {})
	t.Cleanup(f.Close)

	resp := f.Get(context.Background(), srv.URL+"/page")
	require.NotNil(t, resp)
	_ = resp.Body.Close()

	ua, _ := gotUA.Load().(string)
	assert.Contains(t, ua, "OrchidNET-Go/1.2.3")
	assert.Contains(t, ua, "https://example.org/crawler")
}

func TestUserAgentUsesConfiguredName(t *testing.T) {
	f := New(Config{
		Name:           "OrchidLab",
		MinDomainDelay: time.Millisecond,
		Timeout:        5 * time.Second,
		GlobalRate:     10000,
		ContactURL:     "https://example.org/crawler",
		Version:        "2.0.0",
	})
	t.Cleanup(f.Close)

	assert.Contains(t, f.UserAgent(), "OrchidLab/2.0.0")
}
