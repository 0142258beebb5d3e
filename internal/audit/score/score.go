// Package score computes the weighted overall score of a report: per-category
// weighted averages aggregated by a weighted harmonic mean, with hard gates
// that cap the result on specific failures.
package score

import (
	"math"

	"github.com/sitescan/engine/pkg/types"
)

// Category identifies a scoring bucket.
type Category string

const (
	CategorySEO         Category = "seo"
	CategoryPerformance Category = "performance"
	CategorySecurity    Category = "security"
)

// categoryWeights aggregate the per-category scores.
var categoryWeights = map[Category]float64{
	CategorySEO:         0.55,
	CategoryPerformance: 0.35,
	CategorySecurity:    0.10,
}

// checkCategories assigns each scorable id to its bucket.
var checkCategories = map[string]Category{
	types.CheckSitemap:         CategorySEO,
	types.CheckCanonical:       CategorySEO,
	types.CheckRobots:          CategorySEO,
	types.CheckWWWCanonical:    CategorySEO,
	types.CheckNoindex:         CategorySEO,
	types.CheckMetaRobots:      CategorySEO,
	types.CheckImgAlt:          CategorySEO,
	types.CheckViewport:        CategorySEO,
	types.CheckMetaDescription: CategorySEO,
	types.CheckTitleLength:     CategorySEO,
	types.CheckOpenGraph:       CategorySEO,
	types.CheckFavicon:         CategorySEO,
	types.CheckStructuredData:  CategorySEO,
	types.CheckH1Structure:     CategorySEO,
	types.CheckLLMs:            CategorySEO,

	types.CheckPSI:       CategoryPerformance,
	types.CheckTTFB:      CategoryPerformance,
	types.CheckImgSize:   CategoryPerformance,
	types.CheckImgModern: CategoryPerformance,
	types.CheckImgLazy:   CategoryPerformance,

	types.CheckHTTP:            CategorySecurity,
	types.CheckHTTPSRedirect:   CategorySecurity,
	types.CheckMixedContent:    CategorySecurity,
	types.CheckSecurityHeaders: CategorySecurity,
	types.CheckCompression:     CategorySecurity,
}

// checkWeights are the relative per-id weights; an absent id weighs 1.
var checkWeights = map[string]float64{
	types.CheckSitemap:         2.2,
	types.CheckCanonical:       2.0,
	types.CheckRobots:          1.6,
	types.CheckWWWCanonical:    1.2,
	types.CheckNoindex:         5.0,
	types.CheckMetaRobots:      1.0,
	types.CheckImgAlt:          1.2,
	types.CheckViewport:        1.1,
	types.CheckMetaDescription: 0.8,
	types.CheckTitleLength:     0.8,
	types.CheckOpenGraph:       0.5,
	types.CheckFavicon:         0.3,

	types.CheckPSI:       2.4,
	types.CheckTTFB:      1.4,
	types.CheckImgSize:   1.2,
	types.CheckImgModern: 0.8,
	types.CheckImgLazy:   0.6,

	types.CheckHTTP:            2.0,
	types.CheckHTTPSRedirect:   1.8,
	types.CheckMixedContent:    1.8,
	types.CheckSecurityHeaders: 1.0,
	types.CheckCompression:     1.2,
	types.CheckStructuredData:  1.4,
}

const (
	minCategoryScore = 0.05

	capHTTPFail      = 40
	capCanonicalFail = 65
	capSitemapRobots = 80
)

func statusValue(s types.CheckStatus) (float64, bool) {
	switch s {
	case types.StatusPass:
		return 1, true
	case types.StatusWarn:
		return 0.5, true
	case types.StatusFail:
		return 0, true
	default:
		return 0, false
	}
}

func weight(id string) float64 {
	if w, ok := checkWeights[id]; ok {
		return w
	}
	return 1
}

// Compute returns the overall score in [0,100] for the given checks. Locked
// placeholders and the blocked/timeout findings never contribute.
func Compute(cs []types.Check) int {
	type accum struct{ weighted, total float64 }
	buckets := map[Category]*accum{}

	failed := map[string]bool{}

	for _, c := range cs {
		if c.Locked || c.ID == types.CheckBlocked || c.ID == types.CheckTimeout {
			continue
		}
		v, scorable := statusValue(c.Status)
		if !scorable {
			continue
		}
		if c.Status == types.StatusFail {
			failed[c.ID] = true
		}
		cat, ok := checkCategories[c.ID]
		if !ok {
			cat = CategorySEO
		}
		b := buckets[cat]
		if b == nil {
			b = &accum{}
			buckets[cat] = b
		}
		w := weight(c.ID)
		b.weighted += w * v
		b.total += w
	}

	// Weighted harmonic mean over non-empty categories, each category score
	// clamped to [0.05, 1].
	var sumW, sumWOverScore float64
	for cat, b := range buckets {
		if b.total == 0 {
			continue
		}
		s := b.weighted / b.total
		if s < minCategoryScore {
			s = minCategoryScore
		}
		if s > 1 {
			s = 1
		}
		w := categoryWeights[cat]
		sumW += w
		sumWOverScore += w / s
	}
	if sumW == 0 || sumWOverScore == 0 {
		return 0
	}

	result := int(math.Round(sumW / sumWOverScore * 100))

	// Gates, applied in order on the integer score.
	if failed[types.CheckNoindex] {
		return 0
	}
	if failed[types.CheckHTTP] && result > capHTTPFail {
		result = capHTTPFail
	}
	if failed[types.CheckCanonical] && result > capCanonicalFail {
		result = capCanonicalFail
	}
	if (failed[types.CheckSitemap] || failed[types.CheckRobots]) && result > capSitemapRobots {
		result = capSitemapRobots
	}

	if result < 0 {
		return 0
	}
	if result > 100 {
		return 100
	}
	return result
}
