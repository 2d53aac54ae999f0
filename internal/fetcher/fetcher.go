// Package fetcher provides the shared rate-limited, robots.txt-aware HTTP
// fetcher used by every source adapter. Centralizing politeness here
// guarantees all adapters obey the same policy.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/verdantlab/orchidnet-go/internal/logging"
	"github.com/verdantlab/orchidnet-go/internal/observability/metrics"
)

// Package-level logger specific to the fetcher service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "fetcher.log")
	initialLevel := slog.LevelDebug
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "fetcher", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize fetcher file logger at %s: %v. Falling back to discard logger.", logFilePath, err)
		logger = logging.NewDiscardLogger("fetcher", serviceLevelVar)
		closeLogger = func() error { return nil }
	}
}

const (
	// DefaultMinDomainDelay is the minimum spacing between two requests to
	// the same domain when not configured otherwise.
	DefaultMinDomainDelay = 2 * time.Second

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultGlobalRate is the default request-per-second budget across all domains.
	DefaultGlobalRate = 1.0

	userAgentName    = "OrchidNET-Go"
	userAgentLibrary = "Go-HTTP-Client"
	defaultContact   = "https://github.com/verdantlab/orchidnet-go"
)

// Config holds configuration for the rate-limited fetcher.
type Config struct {
	// Name is the client name reported in the User-Agent.
	Name string

	// MinDomainDelay is the minimum spacing between requests to one domain.
	MinDomainDelay time.Duration

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// GlobalRate bounds total requests per second across all domains.
	GlobalRate float64

	// ContactURL is embedded in the User-Agent per courteous-crawling norms.
	ContactURL string

	// Version is the application version reported in the User-Agent.
	Version string

	// Metrics is optional; when nil no metrics are recorded.
	Metrics *metrics.FetcherMetrics
}

// Fetcher wraps outbound HTTP with per-domain rate limiting and robots.txt
// compliance. A single instance is shared by all adapters in a run; the
// per-domain state is mutex-guarded so a second concurrent run cannot
// corrupt it, but throughput guarantees assume sequential use.
type Fetcher struct {
	config     Config
	httpClient *http.Client
	userAgent  string

	// robots.txt verdicts cached per domain for the process lifetime
	robotsCache *cache.Cache

	mu          sync.Mutex
	lastRequest map[string]time.Time

	limiter *rate.Limiter

	// Injectable for tests
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a Fetcher with the given configuration, applying defaults for
// zero values.
func New(config Config) *Fetcher {
	if config.MinDomainDelay == 0 {
		config.MinDomainDelay = DefaultMinDomainDelay
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.GlobalRate == 0 {
		config.GlobalRate = DefaultGlobalRate
	}
	if config.ContactURL == "" {
		config.ContactURL = defaultContact
	}
	if config.Name == "" {
		config.Name = userAgentName
	}

	f := &Fetcher{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		userAgent:   buildUserAgent(config.Name, config.Version, config.ContactURL),
		robotsCache: cache.New(cache.NoExpiration, cache.NoExpiration),
		lastRequest: make(map[string]time.Time),
		limiter:     rate.NewLimiter(rate.Limit(config.GlobalRate), 1),
		sleep:       time.Sleep,
		now:         time.Now,
	}

	logger.Info("Fetcher initialized",
		"min_domain_delay", config.MinDomainDelay,
		"timeout", config.Timeout,
		"global_rate", config.GlobalRate,
		"user_agent", f.userAgent)

	return f
}

// buildUserAgent constructs a descriptive crawler User-Agent with a contact
// URL, following the Wikimedia robot-policy format:
// <client name>/<version> (<contact information>) <library>/<version>
func buildUserAgent(appName, appVersion, contactURL string) string {
	if appVersion == "" {
		appVersion = "unknown"
	}
	return fmt.Sprintf("%s/%s (%s) %s/%s",
		appName, appVersion, contactURL, userAgentLibrary, runtime.Version())
}

// UserAgent returns the User-Agent string sent with every request.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// CanFetch reports whether robots.txt policy permits fetching the given URL.
// The domain's robots.txt is retrieved once per process lifetime and the
// verdict cached. When robots.txt cannot be retrieved the fetcher defaults to
// permissive: absence of policy is not a reason to block.
func (f *Fetcher) CanFetch(rawURL string) bool {
	domain := domainOf(rawURL)
	if domain == "" {
		logger.Warn("Cannot determine domain for robots check", "url", rawURL)
		return false
	}

	if verdict, found := f.robotsCache.Get(domain); found {
		allowed, ok := verdict.(bool)
		return ok && allowed
	}

	allowed := f.fetchRobotsVerdict(rawURL, domain)
	f.robotsCache.Set(domain, allowed, cache.NoExpiration)
	return allowed
}

// fetchRobotsVerdict retrieves and evaluates robots.txt for a domain.
func (f *Fetcher) fetchRobotsVerdict(rawURL, domain string) bool {
	scheme := "https"
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" {
		scheme = u.Scheme
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, domain)

	req, err := http.NewRequest(http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		logger.Warn("Failed to build robots.txt request, defaulting to allow",
			"domain", domain, "error", err)
		return true
	}
	req.Header.Set("User-Agent", f.userAgent)

	f.waitForDomain(domain)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		logger.Warn("Failed to retrieve robots.txt, defaulting to allow",
			"domain", domain, "error", err)
		return true
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		logger.Debug("robots.txt not available, defaulting to allow",
			"domain", domain, "status_code", resp.StatusCode)
		return true
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		logger.Warn("Failed to read robots.txt, defaulting to allow",
			"domain", domain, "error", err)
		return true
	}

	blocked := robotsDisallowsAll(string(body))
	if blocked {
		logger.Info("robots.txt disallows crawling", "domain", domain)
	}
	return !blocked
}

// waitForDomain enforces the minimum inter-request delay for one domain by
// sleeping the remainder since the last request.
func (f *Fetcher) waitForDomain(domain string) {
	f.mu.Lock()
	last, seen := f.lastRequest[domain]
	now := f.now()
	var wait time.Duration
	if seen {
		elapsed := now.Sub(last)
		if elapsed < f.config.MinDomainDelay {
			wait = f.config.MinDomainDelay - elapsed
		}
	}
	// Reserve the slot before sleeping so a concurrent caller spaces off us
	f.lastRequest[domain] = now.Add(wait)
	f.mu.Unlock()

	if wait > 0 {
		if f.config.Metrics != nil {
			f.config.Metrics.RecordRateLimitWait(domain, wait.Seconds())
		}
		f.sleep(wait)
	}
}

// Get performs a polite GET request. It returns nil when the URL is blocked
// by robots.txt policy or when the request fails for any reason; callers must
// treat nil as "skip this item". The caller owns closing the response body on
// a non-nil return.
func (f *Fetcher) Get(ctx context.Context, rawURL string) *http.Response {
	domain := domainOf(rawURL)

	if !f.CanFetch(rawURL) {
		logger.Debug("Skipping URL blocked by robots policy", "url", rawURL)
		if f.config.Metrics != nil {
			f.config.Metrics.RecordRobotsBlock(domain)
			f.config.Metrics.RecordRequest(domain, "blocked")
		}
		return nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		logger.Debug("Global rate limiter wait cancelled", "url", rawURL, "error", err)
		return nil
	}

	f.waitForDomain(domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		logger.Warn("Failed to build request", "url", rawURL, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := f.now()
	resp, err := f.httpClient.Do(req)
	duration := f.now().Sub(start)

	if f.config.Metrics != nil {
		f.config.Metrics.RecordRequestDuration(domain, duration.Seconds())
	}

	if err != nil {
		logger.Warn("Request failed", "url", rawURL, "error", err)
		if f.config.Metrics != nil {
			f.config.Metrics.RecordRequest(domain, "error")
		}
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("Request returned non-2xx status",
			"url", rawURL, "status_code", resp.StatusCode)
		_ = resp.Body.Close()
		if f.config.Metrics != nil {
			f.config.Metrics.RecordRequest(domain, "error")
		}
		return nil
	}

	if f.config.Metrics != nil {
		f.config.Metrics.RecordRequest(domain, "success")
	}
	return resp
}

// GetBody performs a polite GET and returns the response body, or nil when
// the fetch was skipped or failed. Body size is capped at 10 MiB.
func (f *Fetcher) GetBody(ctx context.Context, rawURL string) []byte {
	resp := f.Get(ctx, rawURL)
	if resp == nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		logger.Warn("Failed to read response body", "url", rawURL, "error", err)
		return nil
	}
	return body
}

// Close releases fetcher resources.
func (f *Fetcher) Close() {
	f.httpClient.CloseIdleConnections()
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing fetcher logger: %v", err)
		}
	}
}

// HTTPClient exposes the underlying client so tests can install a mock
// transport.
func (f *Fetcher) HTTPClient() *http.Client {
	return f.httpClient
}

// SetSleepFunc replaces the sleep function. Intended for tests.
func (f *Fetcher) SetSleepFunc(fn func(time.Duration)) {
	f.sleep = fn
}

// SetNowFunc replaces the clock. Intended for tests.
func (f *Fetcher) SetNowFunc(fn func() time.Time) {
	f.now = fn
}

// domainOf extracts the hostname from a URL, empty when unparseable.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
