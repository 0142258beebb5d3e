package orchestrator

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sitescan/engine/internal/audit/budget"
	"github.com/sitescan/engine/internal/audit/checks"
	"github.com/sitescan/engine/internal/audit/htmlx"
	"github.com/sitescan/engine/internal/audit/probe"
	"github.com/sitescan/engine/internal/audit/urlnorm"
)

var redirectStatuses = map[int]bool{
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

// probeOpenGraph verifies the og:image actually loads when quota allows.
func (a *audit) probeOpenGraph(ogTitle, ogImage string) {
	var imageLoads *bool
	if ogImage != "" && a.bud.Spend(1) {
		res, err := a.o.prober.Fetch(a.ctx, a.resolve(ogImage), probe.Options{
			Timeout: a.bud.Within(budget.AssetTimeout),
		})
		loaded := err == nil && res.StatusCode < 400
		imageLoads = &loaded
	}
	a.add(checks.OpenGraph(ogTitle, ogImage, imageLoads))
}

// probeFavicon resolves the declared icon, falling back to /favicon.ico.
func (a *audit) probeFavicon(iconHref string) {
	target := a.origin() + "/favicon.ico"
	if iconHref != "" {
		target = a.resolve(iconHref)
	}

	res, err := a.o.prober.HeadThenGet(a.ctx, target, probe.Options{
		Timeout: a.bud.Within(budget.AssetTimeout),
	})
	if err != nil {
		a.add(checks.Favicon(nil))
		return
	}
	loaded := res.StatusCode < 400
	a.add(checks.Favicon(&loaded))
}

// probeRobots fetches robots.txt, classifies it, and returns any advertised
// sitemap URLs.
func (a *audit) probeRobots() []string {
	res, err := a.o.prober.Fetch(a.ctx, a.origin()+"/robots.txt", probe.Options{
		Timeout:  a.bud.Within(budget.SmallTimeout),
		ReadBody: true,
	})
	if err != nil {
		a.add(checks.Robots(false, false, false))
		return nil
	}

	exists := res.OK()
	disallowAll := false
	var sitemaps []string
	if exists {
		disallowAll, sitemaps = parseRobots(string(res.Body))
	}
	a.add(checks.Robots(true, exists, disallowAll))
	return sitemaps
}

// parseRobots scans robots.txt for a wildcard disallow-all rule and for
// Sitemap: lines.
func parseRobots(body string) (disallowAll bool, sitemaps []string) {
	inWildcardGroup := false
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])

		switch field {
		case "user-agent":
			inWildcardGroup = value == "*"
		case "disallow":
			if inWildcardGroup && value == "/" {
				disallowAll = true
			}
		case "sitemap":
			if value != "" {
				sitemaps = append(sitemaps, value)
			}
		}
	}
	return disallowAll, sitemaps
}

// sitemapCandidates merges robots-advertised URLs (preferred) with the
// conventional locations, deduped.
func (a *audit) sitemapCandidates(robotsListed []string) []string {
	seen := map[string]bool{}
	var out []string
	push := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	for _, u := range robotsListed {
		push(u)
	}
	for _, p := range defaultSitemapPaths {
		push(a.origin() + p)
	}
	if len(out) > maxSitemapCandidates {
		out = out[:maxSitemapCandidates]
	}
	return out
}

// probeSitemap discovers a sitemap and, when fullVerify is set, parses it and
// samples a listed URL. The degraded paths run it with fullVerify=false as a
// plain HEAD sweep.
func (a *audit) probeSitemap(robotsListed []string, fullVerify bool) {
	outcome := checks.SitemapOutcome{}

	var discovered *probe.Result
	for _, candidate := range a.sitemapCandidates(robotsListed) {
		if !a.bud.HasTime(budget.SmallTimeout / 4) {
			break
		}
		res, err := a.o.prober.HeadThenGet(a.ctx, candidate, probe.Options{
			Timeout:         a.bud.Within(budget.SmallTimeout),
			FallbackOnNonOK: true,
		})
		if err == nil && res.OK() {
			outcome.Discovered = true
			outcome.URL = candidate
			discovered = res
			break
		}
	}

	if !outcome.Discovered || !fullVerify {
		a.add(checks.Sitemap(outcome))
		return
	}

	if isGzippedSitemap(outcome.URL, discovered.Header) {
		outcome.Gzipped = true
		a.add(checks.Sitemap(outcome))
		return
	}

	res, err := a.o.prober.Fetch(a.ctx, outcome.URL, probe.Options{
		Timeout:  a.bud.Within(budget.PageTimeout),
		ReadBody: true,
		MaxBody:  maxSitemapBody,
	})
	if err != nil || !res.OK() {
		a.add(checks.Sitemap(outcome))
		return
	}
	if isGzippedSitemap(outcome.URL, res.Header) {
		outcome.Gzipped = true
		a.add(checks.Sitemap(outcome))
		return
	}

	locs := htmlx.Locs(string(res.Body))
	outcome.LocCount = len(locs)

	samples := a.o.cfg.SitemapSamples
	for i := 0; i < len(locs) && i < samples; i++ {
		if !a.bud.Spend(1) {
			break
		}
		outcome.SampledTotal++
		sampleRes, sampleErr := a.o.prober.HeadThenGet(a.ctx, locs[i], probe.Options{
			Timeout: a.bud.Within(budget.AssetTimeout),
		})
		if sampleErr == nil && sampleRes.StatusCode < 400 {
			outcome.SampledOK++
		}
	}

	a.add(checks.Sitemap(outcome))
}

// isGzippedSitemap detects gzip by URL suffix or content type; gzipped
// sitemaps are reported, never parsed.
func isGzippedSitemap(sitemapURL string, header http.Header) bool {
	if strings.HasSuffix(strings.ToLower(sitemapURL), ".gz") {
		return true
	}
	ct := strings.ToLower(header.Get("Content-Type"))
	return strings.Contains(ct, "application/gzip") || strings.Contains(ct, "application/x-gzip")
}

// probeWWWVariant flips the www prefix and expects a redirect back to the
// canonical host.
func (a *audit) probeWWWVariant() {
	if a.base == nil {
		a.add(checks.WWWCanonical(false, false, ""))
		return
	}
	hostname := a.base.Hostname()
	if !strings.Contains(hostname, ".") || net.ParseIP(hostname) != nil {
		a.add(checks.WWWCanonical(false, false, ""))
		return
	}

	variantHost := urlnorm.FlipWWWHost(a.base.Host)
	if !a.bud.Spend(1) {
		a.add(checks.WWWCanonical(false, false, variantHost))
		return
	}

	variantURL := a.base.Scheme + "://" + variantHost + "/"
	res, err := a.o.prober.Fetch(a.ctx, variantURL, probe.Options{
		Redirect: probe.RedirectManual,
		Timeout:  a.bud.Within(budget.SmallTimeout),
	})
	if err != nil {
		a.add(checks.WWWCanonical(false, false, variantHost))
		return
	}

	good := false
	if redirectStatuses[res.StatusCode] {
		if loc, lerr := url.Parse(res.Header.Get("Location")); lerr == nil {
			target := loc
			if !target.IsAbs() {
				if base, berr := url.Parse(variantURL); berr == nil {
					target = base.ResolveReference(loc)
				}
			}
			good = strings.EqualFold(target.Host, a.base.Host)
		}
	}
	a.add(checks.WWWCanonical(true, good, variantHost))
}

// evalCanonical resolves every canonical link against the final URL.
func (a *audit) evalCanonical() {
	raw := htmlx.CanonicalLinks(a.html)
	resolved := make([]string, 0, len(raw))
	for _, href := range raw {
		if href == "" {
			continue
		}
		resolved = append(resolved, a.resolve(href))
	}
	a.add(checks.CanonicalTag(resolved, a.report.FinalURL))
}

// evalIndexability inspects the meta robots triad and the X-Robots-Tag
// header.
func (a *audit) evalIndexability() {
	sources := []checks.DirectiveSource{
		{Name: "meta[robots]", Content: htmlx.MetaByName(a.html, "robots")},
		{Name: "meta[googlebot]", Content: htmlx.MetaByName(a.html, "googlebot")},
		{Name: "meta[bingbot]", Content: htmlx.MetaByName(a.html, "bingbot")},
		{Name: "X-Robots-Tag", Content: a.pageHeader("X-Robots-Tag")},
	}
	a.add(checks.Noindex(sources))
	a.add(checks.MetaRobots(sources))
}

func (a *audit) pageHeader(name string) string {
	if a.header == nil {
		return ""
	}
	return a.header.Get(name)
}

// evalMetaChecks covers the pure on-page checks.
func (a *audit) evalMetaChecks() {
	a.add(checks.MetaDescription(a.report.MetaDescription))
	a.add(checks.TitleLength(a.report.Title))
	a.add(checks.Viewport(htmlx.MetaByName(a.html, "viewport") != ""))
}

// probeImages derives alt/format/lazy stats from the parsed tags and HEADs a
// bounded sample for weight.
func (a *audit) probeImages() {
	imgs := htmlx.ImgTags(a.html)

	withAlt := 0
	modern := 0
	lazy := 0
	var probeable []string
	for _, img := range imgs {
		if img.HasAlt && img.Alt != "" {
			withAlt++
		}
		src := strings.ToLower(img.Src)
		if strings.Contains(src, ".avif") || strings.Contains(src, ".webp") {
			modern++
		}
		if img.Loading == "lazy" {
			lazy++
		}
		if img.Src != "" && !strings.HasPrefix(src, "data:") && !strings.HasPrefix(src, "blob:") {
			probeable = append(probeable, a.resolve(img.Src))
		}
	}

	a.add(checks.ImgAlt(len(imgs), withAlt))
	if len(imgs) > 0 {
		a.add(checks.ImgModern(modern))
		a.add(checks.ImgLazy(lazy))
	}

	if len(probeable) == 0 {
		return
	}

	oversized := 0
	probed := 0
	for i := 0; i < len(probeable) && probed < a.o.cfg.ImageHeads; i++ {
		if !a.bud.Spend(1) {
			break
		}
		probed++
		res, err := a.o.prober.Fetch(a.ctx, probeable[i], probe.Options{
			Method:  http.MethodHead,
			Timeout: a.bud.Within(budget.AssetTimeout),
		})
		if err != nil {
			continue
		}
		if res.ContentLength() > checks.OversizedImageBytes {
			oversized++
		}
	}
	if probed > 0 {
		a.add(checks.ImgSize(oversized))
	}
}

// probePSI asks PageSpeed Insights for the performance score. The probe is
// omitted, not degraded, when the key is missing, the budget is nearly spent,
// or the API errors.
func (a *audit) probePSI() {
	if a.o.psiClient == nil || !a.bud.HasTime(psiMinRemaining) || !a.bud.Spend(1) {
		return
	}

	psiScore, err := a.o.psiClient.PerformanceScore(a.ctx, a.report.FinalURL, a.bud.Within(budget.PSITimeout))
	if err != nil {
		a.logger.Debug("PSI probe failed", zap.Error(err))
		return
	}
	a.report.Speed = &psiScore
	a.add(checks.PSI(psiScore))
}
