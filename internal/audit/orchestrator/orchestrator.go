// Package orchestrator drives one audit end to end: it sequences the probes
// under the wall-clock budget and sub-request quota, degrades gracefully when
// the origin blocks or times out, and assembles the final report.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitescan/engine/internal/audit/budget"
	"github.com/sitescan/engine/internal/audit/checks"
	"github.com/sitescan/engine/internal/audit/htmlx"
	"github.com/sitescan/engine/internal/audit/metrics"
	"github.com/sitescan/engine/internal/audit/probe"
	"github.com/sitescan/engine/internal/audit/psi"
	"github.com/sitescan/engine/internal/audit/score"
	"github.com/sitescan/engine/internal/audit/urlnorm"
	"github.com/sitescan/engine/pkg/types"
)

const (
	maxPageBody    = 5 << 20
	maxSitemapBody = 5 << 20

	// psiMinRemaining gates the PSI probe: skip it outright when less than
	// this much of the overall budget remains.
	psiMinRemaining = 2 * time.Second

	maxSitemapCandidates = 8
)

// defaultSitemapPaths are always tried, after any sitemaps robots.txt
// advertises.
var defaultSitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/wp-sitemap.xml",
}

// Config bounds an audit run.
type Config struct {
	BudgetMs       int
	SubRequests    int
	SitemapSamples int
	ImageHeads     int
	Debug          bool
}

// Orchestrator runs audits. Safe for concurrent use; each run owns its own
// budget context.
type Orchestrator struct {
	prober    *probe.Prober
	psiClient *psi.Client
	collector *metrics.Collector
	cfg       Config
	logger    *zap.Logger
}

// New creates an Orchestrator. psiClient may be nil (probe disabled);
// collector may be nil (metrics disabled).
func New(prober *probe.Prober, psiClient *psi.Client, collector *metrics.Collector, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.BudgetMs <= 0 {
		cfg.BudgetMs = int(budget.DefaultOverall / time.Millisecond)
	}
	if cfg.SubRequests <= 0 {
		cfg.SubRequests = budget.DefaultSubRequests
	}
	if cfg.SitemapSamples <= 0 {
		cfg.SitemapSamples = 1
	}
	if cfg.ImageHeads <= 0 {
		cfg.ImageHeads = 2
	}
	return &Orchestrator{
		prober:    prober,
		psiClient: psiClient,
		collector: collector,
		cfg:       cfg,
		logger:    logger,
	}
}

// audit is the per-run state, owned by a single goroutine.
type audit struct {
	o      *Orchestrator
	ctx    context.Context
	bud    *budget.Budget
	report *types.Report
	base   *url.URL
	html   string
	header http.Header
	diag   []types.ProbeTiming
	logger *zap.Logger
}

// Run performs one audit of rawURL. Degraded outcomes (blocked, timeout) are
// returned as reports, not errors; an error means the target was unreachable
// or the input invalid.
func (o *Orchestrator) Run(ctx context.Context, rawURL string, logger *zap.Logger) (*types.Report, error) {
	if logger == nil {
		logger = o.logger
	}

	normalized, err := urlnorm.NormalizeTarget(rawURL)
	if err != nil {
		return nil, err
	}

	overall := time.Duration(o.cfg.BudgetMs) * time.Millisecond
	bud := budget.New(overall, o.cfg.SubRequests)

	runCtx, cancel := context.WithDeadline(ctx, bud.StartedAt().Add(overall))
	defer cancel()

	a := &audit{
		o:   o,
		ctx: runCtx,
		bud: bud,
		report: &types.Report{
			OK:            true,
			URL:           rawURL,
			NormalizedURL: normalized,
			FinalURL:      normalized,
		},
		logger: logger,
	}

	logger.Info("Audit started", zap.String("url", normalized))

	pageRes, err := o.prober.Retry(runCtx, 2, 0, func() (*probe.Result, error) {
		return o.prober.Fetch(runCtx, normalized, probe.Options{
			Redirect: probe.RedirectFollow,
			Timeout:  bud.Within(budget.PageTimeout),
			ReadBody: true,
			MaxBody:  maxPageBody,
		})
	})
	if err != nil {
		if probe.IsAbort(err) {
			logger.Warn("Page fetch timed out, degrading", zap.String("url", normalized))
			return a.timeoutReport(), nil
		}
		return nil, fmt.Errorf("fetch %s: %w", normalized, err)
	}

	if isBlockedStatus(pageRes.StatusCode) {
		logger.Info("Origin rejected default profile, retrying with browser headers",
			zap.Int("status", pageRes.StatusCode))

		retryRes, retryErr := o.prober.Fetch(runCtx, normalized, probe.Options{
			Redirect: probe.RedirectFollow,
			Timeout:  bud.Within(budget.SmallTimeout),
			Headers:  probe.BrowserHeaders(originOf(normalized)),
			ReadBody: true,
			MaxBody:  maxPageBody,
		})
		if retryErr != nil || isBlockedStatus(retryRes.StatusCode) {
			status := pageRes.StatusCode
			if retryErr == nil {
				status = retryRes.StatusCode
			}
			return a.blockedReport(status, pageRes.Elapsed), nil
		}
		pageRes = retryRes
	}

	a.report.FinalURL = pageRes.FinalURL
	a.report.FetchedStatus = pageRes.StatusCode
	a.report.TimingMs = pageRes.Elapsed.Milliseconds()
	a.html = string(pageRes.Body)
	a.header = pageRes.Header
	if parsed, perr := url.Parse(pageRes.FinalURL); perr == nil {
		a.base = parsed
	}

	a.add(checks.HTTPStatus(pageRes.StatusCode))
	a.add(checks.TTFB(a.report.TimingMs))

	a.report.Title = htmlx.Title(a.html)
	a.report.MetaDescription = htmlx.MetaByName(a.html, "description")

	ogTitle := htmlx.MetaByProperty(a.html, "og:title")
	ogImage := htmlx.MetaByProperty(a.html, "og:image")
	iconHref := htmlx.IconHref(a.html)

	a.runProbe("og-image", func() { a.probeOpenGraph(ogTitle, ogImage) })
	a.runProbe("favicon", func() { a.probeFavicon(iconHref) })

	var robotsSitemaps []string
	a.runProbe("robots", func() { robotsSitemaps = a.probeRobots() })
	a.runProbe("sitemap", func() { a.probeSitemap(robotsSitemaps, true) })
	a.runProbe("www-variant", func() { a.probeWWWVariant() })

	a.runProbe("canonical", func() { a.evalCanonical() })
	a.runProbe("noindex", func() { a.evalIndexability() })
	a.runProbe("meta", func() { a.evalMetaChecks() })
	a.runProbe("images", func() { a.probeImages() })
	a.runProbe("psi", func() { a.probePSI() })

	a.addAll(checks.LockedPlaceholders())

	overallScore := score.Compute(a.report.Checks)
	a.report.Score = &overallScore

	if o.cfg.Debug {
		a.report.Diag = a.diag
	}

	logger.Info("Audit completed",
		zap.String("final_url", a.report.FinalURL),
		zap.Int("status", a.report.FetchedStatus),
		zap.Int("score", overallScore),
		zap.Duration("elapsed", bud.Elapsed()))

	return a.report, nil
}

func isBlockedStatus(status int) bool {
	return status == http.StatusUnauthorized ||
		status == http.StatusForbidden ||
		status == http.StatusTooManyRequests
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// add appends a check unless one with the same id already exists.
func (a *audit) add(c types.Check) {
	if a.report.FindCheck(c.ID) != nil {
		return
	}
	a.report.Checks = append(a.report.Checks, c)
}

func (a *audit) addAll(cs []types.Check) {
	for _, c := range cs {
		a.add(c)
	}
}

// runProbe isolates one probe: a panic or failure inside degrades only that
// probe's check, never the audit.
func (a *audit) runProbe(name string, fn func()) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		a.diag = append(a.diag, types.ProbeTiming{Probe: name, Ms: elapsed.Milliseconds()})
		if a.o.collector != nil {
			a.o.collector.ObserveProbe(name, "done", elapsed.Seconds())
		}
		if r := recover(); r != nil {
			a.logger.Error("Probe panicked",
				zap.String("probe", name),
				zap.Any("panic", r))
		}
	}()
	fn()
}

// resolve makes href absolute against the final URL.
func (a *audit) resolve(href string) string {
	if href == "" {
		return ""
	}
	if a.base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return a.base.ResolveReference(ref).String()
}

func (a *audit) origin() string {
	if a.base == nil {
		return strings.TrimSuffix(a.report.NormalizedURL, "/")
	}
	return a.base.Scheme + "://" + a.base.Host
}
