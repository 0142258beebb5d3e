package checks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sitescan/engine/pkg/types"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, types.StatusPass, HTTPStatus(200).Status)
	assert.Equal(t, types.StatusPass, HTTPStatus(399).Status)
	assert.Equal(t, types.StatusFail, HTTPStatus(400).Status)
	assert.Equal(t, types.StatusFail, HTTPStatus(500).Status)
}

func TestTTFBBoundary(t *testing.T) {
	assert.Equal(t, types.StatusPass, TTFB(1499).Status)
	assert.Equal(t, types.StatusWarn, TTFB(1500).Status)
	assert.Equal(t, types.StatusWarn, TTFB(4000).Status)
}

func TestOpenGraph(t *testing.T) {
	loaded := true
	broken := false

	assert.Equal(t, types.StatusPass, OpenGraph("Title", "img.png", &loaded).Status)
	assert.Equal(t, types.StatusPass, OpenGraph("Title", "img.png", nil).Status)
	assert.Equal(t, types.StatusWarn, OpenGraph("Title", "img.png", &broken).Status)
	assert.Equal(t, types.StatusWarn, OpenGraph("Title", "", nil).Status)
	assert.Equal(t, types.StatusWarn, OpenGraph("", "img.png", nil).Status)
	assert.Equal(t, types.StatusFail, OpenGraph("", "", nil).Status)
}

func TestFavicon(t *testing.T) {
	loaded := true
	broken := false
	assert.Equal(t, types.StatusPass, Favicon(&loaded).Status)
	assert.Equal(t, types.StatusWarn, Favicon(&broken).Status)

	unknown := Favicon(nil)
	assert.Equal(t, types.StatusFail, unknown.Status)
	assert.Equal(t, "Unknown", unknown.Details)
}

func TestRobots(t *testing.T) {
	assert.Equal(t, types.StatusPass, Robots(true, true, false).Status)
	assert.Equal(t, types.StatusFail, Robots(true, true, true).Status)
	assert.Equal(t, types.StatusWarn, Robots(true, false, false).Status)
	assert.Equal(t, types.StatusWarn, Robots(false, false, false).Status)
}

func TestSitemap(t *testing.T) {
	assert.Equal(t, types.StatusFail, Sitemap(SitemapOutcome{}).Status)

	gz := Sitemap(SitemapOutcome{Discovered: true, URL: "https://example.com/sitemap.xml.gz", Gzipped: true})
	assert.Equal(t, types.StatusWarn, gz.Status)
	assert.Contains(t, gz.Details, "gzipped")
	assert.Contains(t, gz.Details, "sitemap.xml.gz")

	verified := Sitemap(SitemapOutcome{Discovered: true, URL: "u", LocCount: 12, SampledOK: 1, SampledTotal: 1})
	assert.Equal(t, types.StatusPass, verified.Status)

	unverified := Sitemap(SitemapOutcome{Discovered: true, URL: "u", LocCount: 12})
	assert.Equal(t, types.StatusWarn, unverified.Status)

	empty := Sitemap(SitemapOutcome{Discovered: true, URL: "u"})
	assert.Equal(t, types.StatusWarn, empty.Status)
}

func TestCanonicalTag(t *testing.T) {
	final := "https://example.com/page"

	assert.Equal(t, types.StatusFail, CanonicalTag(nil, final).Status)
	assert.Equal(t, types.StatusPass, CanonicalTag([]string{"https://example.com/page"}, final).Status)
	assert.Equal(t, types.StatusPass, CanonicalTag([]string{"https://EXAMPLE.com/page/"}, final).Status)
	assert.Equal(t, types.StatusPass, CanonicalTag([]string{"https://example.com/page?utm=1#x"}, final).Status)
	assert.Equal(t, types.StatusWarn, CanonicalTag([]string{"https://example.com/other"}, final).Status)

	multiple := CanonicalTag([]string{final, final}, final)
	assert.Equal(t, types.StatusWarn, multiple.Status)
	assert.Contains(t, multiple.Details, "Multiple")
}

func TestNoindex(t *testing.T) {
	pass := Noindex([]DirectiveSource{
		{Name: "meta[robots]", Content: "index, follow"},
		{Name: "X-Robots-Tag", Content: ""},
	})
	assert.Equal(t, types.StatusPass, pass.Status)

	fail := Noindex([]DirectiveSource{
		{Name: "meta[robots]", Content: "noindex"},
	})
	assert.Equal(t, types.StatusFail, fail.Status)
	assert.Contains(t, fail.Details, "meta[robots]")

	none := Noindex([]DirectiveSource{
		{Name: "meta[googlebot]", Content: "none"},
	})
	assert.Equal(t, types.StatusFail, none.Status)

	header := Noindex([]DirectiveSource{
		{Name: "X-Robots-Tag", Content: "noindex, nofollow"},
	})
	assert.Equal(t, types.StatusFail, header.Status)

	// "noindex" must match as a directive, not a substring.
	substring := Noindex([]DirectiveSource{
		{Name: "meta[robots]", Content: "nonoindexing"},
	})
	assert.Equal(t, types.StatusPass, substring.Status)
}

func TestMetaRobots(t *testing.T) {
	assert.Equal(t, types.StatusPass, MetaRobots(nil).Status)
	assert.Equal(t, types.StatusPass, MetaRobots([]DirectiveSource{
		{Name: "meta[robots]", Content: "index, follow"},
	}).Status)
	assert.Equal(t, types.StatusWarn, MetaRobots([]DirectiveSource{
		{Name: "meta[robots]", Content: "noindex"},
	}).Status)
}

func TestMetaDescriptionBoundaries(t *testing.T) {
	tests := []struct {
		length int
		want   types.CheckStatus
	}{
		{0, types.StatusFail},
		{49, types.StatusWarn},
		{50, types.StatusPass},
		{160, types.StatusPass},
		{161, types.StatusWarn},
	}
	for _, tt := range tests {
		got := MetaDescription(strings.Repeat("x", tt.length))
		assert.Equal(t, tt.want, got.Status, "length %d", tt.length)
	}
}

func TestTitleLengthBoundaries(t *testing.T) {
	tests := []struct {
		length int
		want   types.CheckStatus
	}{
		{0, types.StatusFail},
		{14, types.StatusWarn},
		{15, types.StatusPass},
		{60, types.StatusPass},
		{61, types.StatusWarn},
	}
	for _, tt := range tests {
		got := TitleLength(strings.Repeat("x", tt.length))
		assert.Equal(t, tt.want, got.Status, "length %d", tt.length)
	}
}

func TestImgAltBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		withAlt int
		want    types.CheckStatus
	}{
		{"no images passes", 0, 0, types.StatusPass},
		{"full coverage", 10, 10, types.StatusPass},
		{"ninety percent", 10, 9, types.StatusPass},
		{"eighty percent", 10, 8, types.StatusWarn},
		{"sixty percent", 10, 6, types.StatusWarn},
		{"below sixty", 10, 5, types.StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ImgAlt(tt.total, tt.withAlt).Status)
		})
	}
}

func TestImgSize(t *testing.T) {
	assert.Equal(t, types.StatusPass, ImgSize(0).Status)
	assert.Equal(t, types.StatusWarn, ImgSize(1).Status)
	assert.Equal(t, types.StatusWarn, ImgSize(2).Status)
	assert.Equal(t, types.StatusFail, ImgSize(3).Status)
}

func TestPSIBoundary(t *testing.T) {
	assert.Equal(t, types.StatusWarn, PSI(69).Status)
	assert.Equal(t, types.StatusPass, PSI(70).Status)
}

func TestLockedPlaceholders(t *testing.T) {
	placeholders := LockedPlaceholders()
	assert.Len(t, placeholders, len(types.LockedCheckIDs))
	for _, c := range placeholders {
		assert.Equal(t, types.StatusLocked, c.Status)
		assert.True(t, c.Locked)
		assert.NotEmpty(t, c.Label)
	}
}

func TestDegradedFindings(t *testing.T) {
	b := Blocked(403)
	assert.Equal(t, types.StatusFail, b.Status)
	assert.Equal(t, types.CheckBlocked, b.ID)

	to := Timeout()
	assert.Equal(t, types.StatusWarn, to.Status)
	assert.Equal(t, types.CheckTimeout, to.ID)
}
