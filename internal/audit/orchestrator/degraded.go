package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/sitescan/engine/internal/audit/checks"
	"github.com/sitescan/engine/pkg/types"
)

// blockedReport assembles the degraded report for an origin that refused
// automated access twice. Best-effort auxiliary probes still run so the
// report is not empty.
func (a *audit) blockedReport(status int, pageElapsed time.Duration) *types.Report {
	a.report.Blocked = true
	a.report.FetchedStatus = status
	a.report.TimingMs = pageElapsed.Milliseconds()
	a.report.Title = ""
	a.report.MetaDescription = ""

	a.add(checks.Blocked(status))

	var robotsSitemaps []string
	a.runProbe("robots", func() { robotsSitemaps = a.probeRobots() })
	a.runProbe("sitemap", func() { a.probeSitemap(robotsSitemaps, false) })
	a.runProbe("favicon", func() { a.probeFavicon("") })

	a.addAll(checks.LockedPlaceholders())

	if a.o.cfg.Debug {
		a.report.Diag = a.diag
	}

	a.logger.Warn("Audit degraded: origin blocked automated access",
		zap.String("url", a.report.NormalizedURL),
		zap.Int("status", status))

	return a.report
}

// timeoutReport assembles the degraded report for a page fetch that exceeded
// its deadline. fetchedStatus is zero and timingMs reflects the whole budget.
func (a *audit) timeoutReport() *types.Report {
	a.report.Timeout = true
	a.report.FetchedStatus = 0
	a.report.TimingMs = int64(a.o.cfg.BudgetMs)
	a.report.Title = ""
	a.report.MetaDescription = ""

	a.add(checks.Timeout())

	a.runProbe("favicon", func() { a.probeFavicon("") })

	var robotsSitemaps []string
	a.runProbe("robots", func() { robotsSitemaps = a.probeRobots() })
	a.runProbe("sitemap", func() { a.probeSitemap(robotsSitemaps, false) })
	a.runProbe("psi", func() { a.probePSI() })

	a.addAll(checks.LockedPlaceholders())

	if a.o.cfg.Debug {
		a.report.Diag = a.diag
	}

	a.logger.Warn("Audit degraded: page fetch timed out",
		zap.String("url", a.report.NormalizedURL))

	return a.report
}
