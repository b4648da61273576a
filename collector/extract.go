package collector

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"auto_newsletter_digest/models"
)

// Elements whose text is chrome rather than news.
const noiseSelector = "script, style, noscript, nav, footer, header"

const (
	minLinkTitle = 10
	maxLinkTitle = 200
)

// extract parses an HTML page into collapsed plain text and candidate headline links.
func extract(r io.Reader, pageURL string, maxText, maxLinks int) (string, []models.Link, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	doc.Find(noiseSelector).Remove()
	links := extractLinks(doc, base, maxLinks)
	var parts []string
	collectText(doc.Selection, &parts)
	return truncate(strings.Join(parts, " "), maxText), links, nil
}

// collectText appends every text node under s in document order. Adjacent
// block elements carry no whitespace between them, so each node is its own word run.
func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			if words := strings.Fields(child.Text()); len(words) > 0 {
				*parts = append(*parts, strings.Join(words, " "))
			}
			return
		}
		collectText(child, parts)
	})
}

func extractLinks(doc *goquery.Document, base *url.URL, limit int) []models.Link {
	var links []models.Link
	if limit <= 0 {
		return links
	}
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.Join(strings.Fields(s.Text()), " ")
		n := utf8.RuneCountInString(title)
		if n <= minLinkTitle || n >= maxLinkTitle {
			return true
		}
		href, _ := s.Attr("href")
		resolved := resolveHref(strings.TrimSpace(href), base)
		if resolved == "" {
			return true
		}
		links = append(links, models.Link{Title: title, URL: resolved})
		return len(links) < limit
	})
	return links
}

func resolveHref(href string, base *url.URL) string {
	lower := strings.ToLower(href)
	switch {
	case href == "",
		strings.HasPrefix(lower, "#"),
		strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"):
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil || ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
