// Package htmlx provides side-effect-free extraction helpers over raw HTML and
// sitemap XML text. All inputs are unvalidated strings and all outputs may be
// empty; matching is case-insensitive and tolerant of malformed markup.
package htmlx

import (
	"strings"

	"golang.org/x/net/html"
)

const (
	maxImgTags = 40
	maxJSONLD  = 5
)

// ImgTag is the subset of <img> attributes the audit cares about.
type ImgTag struct {
	Src     string
	Alt     string
	HasAlt  bool
	Loading string
}

func attrVal(attrs []html.Attribute, name string) (string, bool) {
	for _, a := range attrs {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// walkTags tokenizes doc and invokes fn for every start or self-closing tag.
// fn returns false to stop the walk.
func walkTags(doc string, fn func(tag string, attrs []html.Attribute, z *html.Tokenizer) bool) {
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			var attrs []html.Attribute
			if hasAttr {
				for {
					key, val, more := z.TagAttr()
					attrs = append(attrs, html.Attribute{Key: string(key), Val: string(val)})
					if !more {
						break
					}
				}
			}
			if !fn(strings.ToLower(string(name)), attrs, z) {
				return
			}
		}
	}
}

// Title returns the first <title> text, trimmed.
func Title(doc string) string {
	var title string
	walkTags(doc, func(tag string, _ []html.Attribute, z *html.Tokenizer) bool {
		if tag != "title" {
			return true
		}
		if z.Next() == html.TextToken {
			title = strings.TrimSpace(string(z.Text()))
		}
		return false
	})
	return title
}

// MetaByName returns the content of the first <meta name=...> match.
func MetaByName(doc, name string) string {
	return metaBy(doc, "name", name)
}

// MetaByProperty returns the content of the first <meta property=...> match.
func MetaByProperty(doc, property string) string {
	return metaBy(doc, "property", property)
}

func metaBy(doc, attr, want string) string {
	var content string
	walkTags(doc, func(tag string, attrs []html.Attribute, _ *html.Tokenizer) bool {
		if tag != "meta" {
			return true
		}
		v, ok := attrVal(attrs, attr)
		if !ok || !strings.EqualFold(strings.TrimSpace(v), want) {
			return true
		}
		content, _ = attrVal(attrs, "content")
		content = strings.TrimSpace(content)
		return false
	})
	return content
}

// CanonicalLinks returns the hrefs of all <link rel="canonical"> tags in
// document order. Duplicates are preserved so callers can detect them.
func CanonicalLinks(doc string) []string {
	var hrefs []string
	walkTags(doc, func(tag string, attrs []html.Attribute, _ *html.Tokenizer) bool {
		if tag != "link" {
			return true
		}
		rel, _ := attrVal(attrs, "rel")
		if !strings.EqualFold(strings.TrimSpace(rel), "canonical") {
			return true
		}
		href, _ := attrVal(attrs, "href")
		hrefs = append(hrefs, strings.TrimSpace(href))
		return true
	})
	return hrefs
}

// IconHref returns the href of the first <link> whose rel contains "icon".
func IconHref(doc string) string {
	var href string
	walkTags(doc, func(tag string, attrs []html.Attribute, _ *html.Tokenizer) bool {
		if tag != "link" {
			return true
		}
		rel, _ := attrVal(attrs, "rel")
		if !strings.Contains(strings.ToLower(rel), "icon") {
			return true
		}
		h, _ := attrVal(attrs, "href")
		h = strings.TrimSpace(h)
		if h == "" {
			return true
		}
		href = h
		return false
	})
	return href
}

// ImgTags returns the first 40 <img> tags in document order.
func ImgTags(doc string) []ImgTag {
	var imgs []ImgTag
	walkTags(doc, func(tag string, attrs []html.Attribute, _ *html.Tokenizer) bool {
		if tag != "img" {
			return true
		}
		src, _ := attrVal(attrs, "src")
		alt, hasAlt := attrVal(attrs, "alt")
		loading, _ := attrVal(attrs, "loading")
		imgs = append(imgs, ImgTag{
			Src:     strings.TrimSpace(src),
			Alt:     strings.TrimSpace(alt),
			HasAlt:  hasAlt,
			Loading: strings.ToLower(strings.TrimSpace(loading)),
		})
		return len(imgs) < maxImgTags
	})
	return imgs
}

// JSONLDBlocks returns the raw bodies of the first 5
// <script type="application/ld+json"> blocks.
func JSONLDBlocks(doc string) []string {
	var blocks []string
	walkTags(doc, func(tag string, attrs []html.Attribute, z *html.Tokenizer) bool {
		if tag != "script" {
			return true
		}
		typ, _ := attrVal(attrs, "type")
		if !strings.EqualFold(strings.TrimSpace(typ), "application/ld+json") {
			return true
		}
		if z.Next() == html.TextToken {
			blocks = append(blocks, string(z.Text()))
		}
		return len(blocks) < maxJSONLD
	})
	return blocks
}

// Locs returns all trimmed <loc> values from sitemap XML. It works for both
// urlset and sitemapindex documents and tolerates namespaced markup.
func Locs(xmlText string) []string {
	var locs []string
	z := html.NewTokenizer(strings.NewReader(xmlText))
	inLoc := false
	var buf strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return locs
		case html.StartTagToken:
			name, _ := z.TagName()
			if strings.EqualFold(string(name), "loc") {
				inLoc = true
				buf.Reset()
			}
		case html.TextToken:
			if inLoc {
				buf.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if strings.EqualFold(string(name), "loc") {
				inLoc = false
				if v := strings.TrimSpace(buf.String()); v != "" {
					locs = append(locs, v)
				}
			}
		}
	}
}
