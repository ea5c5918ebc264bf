package extract

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultMaxChars = 4000

	minParagraphChars = 50
	truncationMarker  = "..."
)

// Candidate containers for the main article text, most specific first.
var contentSelectors = []string{ //nolint:gochecknoglobals // Immutable lookup.
	"article",
	"[role='article']",
	".article-content",
	".post-content",
	".entry-content",
	".content",
	"main",
	"#content",
	"#main",
}

type Article struct {
	Title string
	Text  string
}

// Extract turns an HTML document into a title and bounded plain text.
func Extract(r io.Reader, maxChars int) (Article, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Article{}, fmt.Errorf("create document from reader: %w", err)
	}

	doc.Find("script, style, noscript, template").Remove()

	return Article{
		Title: title(doc),
		Text:  truncate(mainText(doc), maxChars),
	}, nil
}

func title(doc *goquery.Document) string {
	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		if content = collapseSpaces(content); content != "" {
			return content
		}
	}

	return collapseSpaces(doc.Find("title").First().Text())
}

func mainText(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		matches := doc.Find(selector)
		if matches.Length() == 0 {
			continue
		}

		best := ""
		matches.Each(func(_ int, s *goquery.Selection) {
			if text := collapseSpaces(s.Text()); len(text) > len(best) {
				best = text
			}
		})

		if best != "" {
			return best
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := collapseSpaces(s.Text()); utf8.RuneCountInString(text) > minParagraphChars {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}

	return collapseSpaces(doc.Find("body").Text())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}

	runes := []rune(s)

	return string(runes[:maxChars]) + truncationMarker
}
