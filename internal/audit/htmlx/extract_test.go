package htmlx

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"simple", "<html><head><title>Hello</title></head></html>", "Hello"},
		{"trimmed", "<title>  Spaced Out  </title>", "Spaced Out"},
		{"first wins", "<title>First</title><title>Second</title>", "First"},
		{"uppercase tag", "<TITLE>Loud</TITLE>", "Loud"},
		{"missing", "<html><body>no title</body></html>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.html))
		})
	}
}

func TestMetaByNameAndProperty(t *testing.T) {
	doc := `<head>
		<meta name="description" content="A fine page">
		<meta name='viewport' content='width=device-width'>
		<meta property="og:title" content="OG Title">
		<meta property=og:image content=https://example.com/og.png>
		<META NAME="ROBOTS" CONTENT="noindex">
	</head>`

	assert.Equal(t, "A fine page", MetaByName(doc, "description"))
	assert.Equal(t, "width=device-width", MetaByName(doc, "viewport"))
	assert.Equal(t, "noindex", MetaByName(doc, "robots"))
	assert.Equal(t, "OG Title", MetaByProperty(doc, "og:title"))
	assert.Equal(t, "https://example.com/og.png", MetaByProperty(doc, "og:image"))
	assert.Equal(t, "", MetaByName(doc, "googlebot"))
}

func TestCanonicalLinks(t *testing.T) {
	doc := `<head>
		<link rel="canonical" href="https://example.com/a">
		<link rel="stylesheet" href="/style.css">
		<link rel=canonical href='https://example.com/b'>
	</head>`

	links := CanonicalLinks(doc)
	require.Len(t, links, 2)
	assert.Equal(t, "https://example.com/a", links[0])
	assert.Equal(t, "https://example.com/b", links[1])

	assert.Empty(t, CanonicalLinks("<head></head>"))
}

func TestIconHref(t *testing.T) {
	assert.Equal(t, "/favicon.png",
		IconHref(`<link rel="icon" href="/favicon.png">`))
	assert.Equal(t, "/apple.png",
		IconHref(`<link rel="apple-touch-icon" href="/apple.png"><link rel="icon" href="/second.png">`))
	assert.Equal(t, "",
		IconHref(`<link rel="stylesheet" href="/style.css">`))
}

func TestImgTags(t *testing.T) {
	doc := `<body>
		<img src="/a.jpg" alt="First image">
		<img src="/b.webp" alt="" loading="lazy">
		<img src="/c.png">
	</body>`

	imgs := ImgTags(doc)
	require.Len(t, imgs, 3)

	assert.Equal(t, "/a.jpg", imgs[0].Src)
	assert.Equal(t, "First image", imgs[0].Alt)
	assert.True(t, imgs[0].HasAlt)

	assert.True(t, imgs[1].HasAlt)
	assert.Equal(t, "", imgs[1].Alt)
	assert.Equal(t, "lazy", imgs[1].Loading)

	assert.False(t, imgs[2].HasAlt)
}

func TestImgTagsTruncatesAtForty(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, `<img src="/img-%d.jpg">`, i)
	}
	imgs := ImgTags(b.String())
	assert.Len(t, imgs, 40)
	assert.Equal(t, "/img-0.jpg", imgs[0].Src)
	assert.Equal(t, "/img-39.jpg", imgs[39].Src)
}

func TestJSONLDBlocks(t *testing.T) {
	doc := `<head>
		<script type="application/ld+json">{"@type":"Organization"}</script>
		<script>var x = 1;</script>
		<script type="APPLICATION/LD+JSON">{"@type":"Product"}</script>
	</head>`

	blocks := JSONLDBlocks(doc)
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[0], "Organization")
	assert.Contains(t, blocks[1], "Product")
}

func TestJSONLDBlocksTruncatesAtFive(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, `<script type="application/ld+json">{"n":%d}</script>`, i)
	}
	assert.Len(t, JSONLDBlocks(b.String()), 5)
}

func TestLocs(t *testing.T) {
	urlset := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>https://example.com/</loc></url>
	<url><loc>  https://example.com/about  </loc></url>
</urlset>`

	locs := Locs(urlset)
	require.Len(t, locs, 2)
	assert.Equal(t, "https://example.com/", locs[0])
	assert.Equal(t, "https://example.com/about", locs[1])
}

func TestLocsSitemapIndex(t *testing.T) {
	index := `<sitemapindex>
	<sitemap><loc>https://example.com/sitemap-1.xml</loc></sitemap>
	<sitemap><loc>https://example.com/sitemap-2.xml</loc></sitemap>
</sitemapindex>`

	locs := Locs(index)
	require.Len(t, locs, 2)
	assert.Equal(t, "https://example.com/sitemap-1.xml", locs[0])
}

func TestLocsEmpty(t *testing.T) {
	assert.Empty(t, Locs("<urlset></urlset>"))
	assert.Empty(t, Locs("not xml at all"))
}
