package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Each field is resolved by an ordered list of independent extractors;
// the first non-nil result wins.

type stringExtractor func(*goquery.Document) *string

type intExtractor func(*goquery.Document) *int

func firstString(doc *goquery.Document, extractors ...stringExtractor) *string {
	for _, extract := range extractors {
		if v := extract(doc); v != nil {
			return v
		}
	}
	return nil
}

func firstInt(doc *goquery.Document, extractors ...intExtractor) *int {
	for _, extract := range extractors {
		if v := extract(doc); v != nil {
			return v
		}
	}
	return nil
}

var (
	digitsRe     = regexp.MustCompile(`(\d+)`)
	videoLabelRe = regexp.MustCompile(`(?i)^\d+\s*videos?$`)
	joinDateRe   = regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}`)
	logoClassRe  = regexp.MustCompile(`(?i)logo|avatar|profile`)
)

func nameFromHeading(doc *goquery.Document) *string {
	return nonEmptyText(doc.Find("h1").First().Text())
}

func nameFromTitle(doc *goquery.Document) *string {
	return nonEmptyText(doc.Find("title").First().Text())
}

// videoCountFromCounter reads the explicit counter element.
func videoCountFromCounter(doc *goquery.Document) *int {
	text := strings.TrimSpace(doc.Find("div.video-count").First().Text())
	return parseFirstNumber(text)
}

// videoCountFromText scans paragraph blocks for a standalone
// "<number> video(s)" label.
func videoCountFromText(doc *goquery.Document) *int {
	var count *int
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if !videoLabelRe.MatchString(text) {
			return true
		}
		count = parseFirstNumber(text)
		return count == nil
	})
	return count
}

// joinDateFromText scans all visible text for a long-form
// month-day-year date; the first match wins. The value is kept as free
// text, no calendar validation.
func joinDateFromText(doc *goquery.Document) *string {
	if match := joinDateRe.FindString(doc.Text()); match != "" {
		return &match
	}
	return nil
}

func logoFromImageClass(doc *goquery.Document) *string {
	var src *string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, ok := s.Attr("class")
		if !ok || !logoClassRe.MatchString(class) {
			return true
		}
		if v, ok := s.Attr("src"); ok {
			src = &v
			return false
		}
		return true
	})
	return src
}

func descriptionFromMeta(doc *goquery.Document) *string {
	return metaContent(doc, `meta[name="description"]`)
}

func descriptionFromOpenGraph(doc *goquery.Document) *string {
	return metaContent(doc, `meta[property="og:description"]`)
}

func metaContent(doc *goquery.Document, selector string) *string {
	content, ok := doc.Find(selector).First().Attr("content")
	if !ok {
		return nil
	}
	return nonEmptyText(content)
}

func nonEmptyText(text string) *string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseFirstNumber(text string) *int {
	match := digitsRe.FindString(text)
	if match == "" {
		return nil
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &n
}
