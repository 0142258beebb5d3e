// Package checks maps raw probe outcomes to findings using each check's
// thresholds.
package checks

import (
	"fmt"
	"strings"

	"github.com/sitescan/engine/internal/audit/urlnorm"
	"github.com/sitescan/engine/pkg/types"
)

const (
	ttfbWarnMs = 1500

	metaDescriptionMin = 50
	metaDescriptionMax = 160
	titleMin           = 15
	titleMax           = 60

	imgAltPassRatio = 0.90
	imgAltWarnRatio = 0.60

	imgOversizedBytes = 300_000
	imgSizeFailCount  = 3

	psiPassScore = 70
)

func check(id string, status types.CheckStatus, details string) types.Check {
	return types.Check{ID: id, Label: types.CheckLabels[id], Status: status, Details: details}
}

func checkValue(id string, status types.CheckStatus, details string, value interface{}) types.Check {
	c := check(id, status, details)
	c.Value = value
	return c
}

// HTTPStatus classifies the landing response status.
func HTTPStatus(status int) types.Check {
	if status < 400 {
		return checkValue(types.CheckHTTP, types.StatusPass, fmt.Sprintf("Returned %d", status), status)
	}
	return checkValue(types.CheckHTTP, types.StatusFail, fmt.Sprintf("Returned %d", status), status)
}

// TTFB classifies the landing response timing.
func TTFB(timingMs int64) types.Check {
	if timingMs < ttfbWarnMs {
		return checkValue(types.CheckTTFB, types.StatusPass, fmt.Sprintf("%d ms", timingMs), timingMs)
	}
	return checkValue(types.CheckTTFB, types.StatusWarn, fmt.Sprintf("Slow first byte: %d ms", timingMs), timingMs)
}

// OpenGraph classifies Open Graph coverage. imageLoads is nil when the image
// was not probed.
func OpenGraph(ogTitle, ogImage string, imageLoads *bool) types.Check {
	hasTitle := ogTitle != ""
	hasImage := ogImage != ""
	imageOK := imageLoads == nil || *imageLoads

	if hasTitle && hasImage && imageOK {
		return check(types.CheckOpenGraph, types.StatusPass, "og:title and og:image present")
	}
	if hasTitle || hasImage {
		details := "Partial Open Graph coverage"
		if hasImage && imageLoads != nil && !*imageLoads {
			details = "og:image did not load"
		}
		return check(types.CheckOpenGraph, types.StatusWarn, details)
	}
	return check(types.CheckOpenGraph, types.StatusFail, "No Open Graph tags found")
}

// Favicon classifies the favicon probe. loads is nil when no probe outcome
// was obtained at all.
func Favicon(loads *bool) types.Check {
	if loads == nil {
		return check(types.CheckFavicon, types.StatusFail, "Unknown")
	}
	if *loads {
		return check(types.CheckFavicon, types.StatusPass, "Favicon found")
	}
	return check(types.CheckFavicon, types.StatusWarn, "Favicon did not load")
}

// Robots classifies the robots.txt probe. fetched is false when the file could
// not be retrieved at all.
func Robots(fetched, exists, disallowAll bool) types.Check {
	switch {
	case fetched && exists && disallowAll:
		return check(types.CheckRobots, types.StatusFail, "robots.txt disallows all crawling")
	case fetched && exists:
		return check(types.CheckRobots, types.StatusPass, "robots.txt found")
	default:
		return check(types.CheckRobots, types.StatusWarn, "robots.txt not found")
	}
}

// SitemapOutcome captures the sitemap discovery result for classification.
type SitemapOutcome struct {
	Discovered   bool
	URL          string
	Gzipped      bool
	LocCount     int
	SampledOK    int
	SampledTotal int
}

// Sitemap classifies sitemap discovery and verification.
func Sitemap(o SitemapOutcome) types.Check {
	if !o.Discovered {
		return check(types.CheckSitemap, types.StatusFail, "No sitemap discovered")
	}
	if o.Gzipped {
		return check(types.CheckSitemap, types.StatusWarn, fmt.Sprintf("Sitemap at %s is gzipped; not verified", o.URL))
	}
	if o.LocCount > 0 && o.SampledOK > 0 {
		return checkValue(types.CheckSitemap, types.StatusPass,
			fmt.Sprintf("Sitemap at %s with %d URLs", o.URL, o.LocCount), o.LocCount)
	}
	return check(types.CheckSitemap, types.StatusWarn, fmt.Sprintf("Sitemap at %s not fully verified", o.URL))
}

// WWWCanonical classifies the host-variant probe. tested is false when the
// probe was skipped or not applicable.
func WWWCanonical(tested, good bool, variantHost string) types.Check {
	if tested && good {
		return check(types.CheckWWWCanonical, types.StatusPass,
			fmt.Sprintf("%s redirects to the canonical host", variantHost))
	}
	if tested {
		return check(types.CheckWWWCanonical, types.StatusWarn,
			fmt.Sprintf("%s does not redirect to the canonical host", variantHost))
	}
	return check(types.CheckWWWCanonical, types.StatusWarn, "Unknown")
}

// CanonicalTag evaluates <link rel=canonical> tags against the final URL.
// Equality ignores query, fragment, trailing slash, and host case.
func CanonicalTag(canonicals []string, finalURL string) types.Check {
	if len(canonicals) == 0 {
		return check(types.CheckCanonical, types.StatusFail, "No canonical tag")
	}
	if len(canonicals) > 1 {
		return check(types.CheckCanonical, types.StatusWarn,
			fmt.Sprintf("Multiple canonical tags (%d)", len(canonicals)))
	}
	if urlnorm.Equivalent(canonicals[0], finalURL) {
		return check(types.CheckCanonical, types.StatusPass, "Canonical matches the page URL")
	}
	return check(types.CheckCanonical, types.StatusWarn,
		fmt.Sprintf("Canonical points elsewhere: %s", canonicals[0]))
}

// noindexDirective matches noindex/none in a robots directive string.
func noindexDirective(content string) bool {
	lower := strings.ToLower(content)
	for _, part := range strings.FieldsFunc(lower, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';' || r == '\t'
	}) {
		if part == "noindex" || part == "none" {
			return true
		}
	}
	return false
}

// DirectiveSource is one origin of robots directives (a meta tag or the
// X-Robots-Tag header) with its raw content.
type DirectiveSource struct {
	Name    string
	Content string
}

// Noindex classifies indexability from the meta robots triad and the
// X-Robots-Tag header. Empty sources are ignored.
func Noindex(sources []DirectiveSource) types.Check {
	for _, s := range sources {
		if s.Content == "" {
			continue
		}
		if noindexDirective(s.Content) {
			return check(types.CheckNoindex, types.StatusFail,
				fmt.Sprintf("noindex directive in %s", s.Name))
		}
	}
	return check(types.CheckNoindex, types.StatusPass, "Indexing is allowed")
}

// MetaRobots is the informational companion of Noindex: it surfaces directive
// strings without failing the report (noindex already carries the fail).
func MetaRobots(sources []DirectiveSource) types.Check {
	var present []string
	noindex := false
	for _, s := range sources {
		if s.Content == "" {
			continue
		}
		present = append(present, s.Name)
		if noindexDirective(s.Content) {
			noindex = true
		}
	}
	if noindex {
		return check(types.CheckMetaRobots, types.StatusWarn, "Robots directives include noindex")
	}
	if len(present) == 0 {
		return check(types.CheckMetaRobots, types.StatusPass, "No robots directives")
	}
	return check(types.CheckMetaRobots, types.StatusPass, "Robots directives present without noindex")
}

// MetaDescription classifies the meta description length.
func MetaDescription(desc string) types.Check {
	n := len([]rune(desc))
	switch {
	case n == 0:
		return check(types.CheckMetaDescription, types.StatusFail, "No meta description")
	case n >= metaDescriptionMin && n <= metaDescriptionMax:
		return checkValue(types.CheckMetaDescription, types.StatusPass, fmt.Sprintf("%d characters", n), n)
	default:
		return checkValue(types.CheckMetaDescription, types.StatusWarn,
			fmt.Sprintf("%d characters (recommended %d-%d)", n, metaDescriptionMin, metaDescriptionMax), n)
	}
}

// TitleLength classifies the page title length.
func TitleLength(title string) types.Check {
	n := len([]rune(title))
	switch {
	case n == 0:
		return check(types.CheckTitleLength, types.StatusFail, "No title tag")
	case n >= titleMin && n <= titleMax:
		return checkValue(types.CheckTitleLength, types.StatusPass, fmt.Sprintf("%d characters", n), n)
	default:
		return checkValue(types.CheckTitleLength, types.StatusWarn,
			fmt.Sprintf("%d characters (recommended %d-%d)", n, titleMin, titleMax), n)
	}
}

// Viewport classifies presence of the viewport meta tag.
func Viewport(present bool) types.Check {
	if present {
		return check(types.CheckViewport, types.StatusPass, "Viewport meta tag present")
	}
	return check(types.CheckViewport, types.StatusFail, "No viewport meta tag")
}

// ImgAlt classifies alt-text coverage over the sampled image tags.
func ImgAlt(total, withAlt int) types.Check {
	if total == 0 {
		return check(types.CheckImgAlt, types.StatusPass, "No images on the page")
	}
	ratio := float64(withAlt) / float64(total)
	details := fmt.Sprintf("%d of %d images have alt text", withAlt, total)
	switch {
	case ratio >= imgAltPassRatio:
		return checkValue(types.CheckImgAlt, types.StatusPass, details, ratio)
	case ratio >= imgAltWarnRatio:
		return checkValue(types.CheckImgAlt, types.StatusWarn, details, ratio)
	default:
		return checkValue(types.CheckImgAlt, types.StatusFail, details, ratio)
	}
}

// ImgModern classifies use of avif/webp sources.
func ImgModern(modernCount int) types.Check {
	if modernCount > 0 {
		return checkValue(types.CheckImgModern, types.StatusPass,
			fmt.Sprintf("%d modern-format images", modernCount), modernCount)
	}
	return check(types.CheckImgModern, types.StatusWarn, "No avif/webp images found")
}

// ImgLazy classifies use of native lazy loading.
func ImgLazy(lazyCount int) types.Check {
	if lazyCount > 0 {
		return checkValue(types.CheckImgLazy, types.StatusPass,
			fmt.Sprintf("%d lazy-loaded images", lazyCount), lazyCount)
	}
	return check(types.CheckImgLazy, types.StatusWarn, "No lazy-loaded images found")
}

// ImgSize classifies oversized images among the HEAD-probed sample.
func ImgSize(oversized int) types.Check {
	switch {
	case oversized == 0:
		return check(types.CheckImgSize, types.StatusPass, "No oversized images in sample")
	case oversized < imgSizeFailCount:
		return checkValue(types.CheckImgSize, types.StatusWarn,
			fmt.Sprintf("%d images over 300 KB", oversized), oversized)
	default:
		return checkValue(types.CheckImgSize, types.StatusFail,
			fmt.Sprintf("%d images over 300 KB", oversized), oversized)
	}
}

// PSI classifies the PageSpeed Insights performance score (0-100).
func PSI(score int) types.Check {
	if score >= psiPassScore {
		return checkValue(types.CheckPSI, types.StatusPass, fmt.Sprintf("Performance score %d", score), score)
	}
	return checkValue(types.CheckPSI, types.StatusWarn, fmt.Sprintf("Performance score %d", score), score)
}

// Blocked is the finding emitted on the blocked degraded path.
func Blocked(status int) types.Check {
	return checkValue(types.CheckBlocked, types.StatusFail,
		fmt.Sprintf("Origin refused automated access (%d)", status), status)
}

// Timeout is the finding emitted on the timeout degraded path.
func Timeout() types.Check {
	return check(types.CheckTimeout, types.StatusWarn, "The page did not respond in time")
}

// LockedPlaceholders returns the locked findings present in every report.
func LockedPlaceholders() []types.Check {
	out := make([]types.Check, 0, len(types.LockedCheckIDs))
	for _, id := range types.LockedCheckIDs {
		c := check(id, types.StatusLocked, "")
		c.Locked = true
		out = append(out, c)
	}
	return out
}

// OversizedImageBytes is the HEAD-probe threshold for img-size.
const OversizedImageBytes = imgOversizedBytes
