package prairielearn

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"prairie_track/internal/domain"
)

const (
	courseCodeSelector = "#main-nav > li:first-child"
	rowSelector        = "#content table > tbody > tr:has(td)"

	dueColumn   = 2
	scoreColumn = 3
)

var leadingNumber = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)`)

// DiscoverEndpoints collects course instance links, keyed by the path
// segment after /pl/course_instance/. Duplicates keep their first position.
func DiscoverEndpoints(doc *goquery.Document, base *url.URL) []domain.Endpoint {
	seen := map[string]struct{}{}
	var endpoints []domain.Endpoint

	doc.Find(courseLinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		id, coursePath := courseInstance(ref.Path)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}

		endpoints = append(endpoints, domain.Endpoint{
			SourceID: id,
			URL:      base.ResolveReference(&url.URL{Path: coursePath}).String(),
		})
	})

	return endpoints
}

// courseInstance returns the instance id and the canonical course path for
// /pl/course_instance/<id>[/...].
func courseInstance(path string) (string, string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == courseInstanceDir && parts[i+1] != "" {
			return parts[i+1], "/" + strings.Join(parts[:i+2], "/")
		}
	}
	return "", ""
}

// Scrape extracts the incomplete assessments that still have an "until"
// deadline. It returns nil when the page has no course code or no rows.
func Scrape(doc *goquery.Document, ep domain.Endpoint, now time.Time) *domain.SourceRecord {
	code := CourseCode(doc)
	if code == "" {
		return nil
	}

	rows := doc.Find(rowSelector)
	if rows.Length() == 0 {
		return nil
	}

	base, _ := url.Parse(ep.URL)
	rec := &domain.SourceRecord{
		SourceID:   ep.SourceID,
		Rows:       []domain.RowEntry{},
		CapturedAt: now,
	}

	rows.Each(func(_ int, tr *goquery.Selection) {
		row, ok := adaptRow(tr, base)
		if !ok {
			return
		}
		row.SourceID = ep.SourceID
		row.SourceLabel = code
		row.SourceLink = ep.URL
		rec.Rows = append(rec.Rows, row)
	})

	return rec
}

// CourseCode is the first comma-separated part of the first nav item,
// e.g. "CS 225" from "CS 225, Spring 2025".
func CourseCode(doc *goquery.Document) string {
	text := strings.TrimSpace(doc.Find(courseCodeSelector).First().Text())
	code, _, _ := strings.Cut(text, ",")
	return collapseSpace(code)
}

func adaptRow(tr *goquery.Selection, base *url.URL) (domain.RowEntry, bool) {
	cells := tr.Children()
	if cells.Length() <= scoreColumn {
		return domain.RowEntry{}, false
	}

	dueText := collapseSpace(cells.Eq(dueColumn).Text())
	if !strings.Contains(dueText, "until") {
		return domain.RowEntry{}, false
	}

	scoreText := collapseSpace(cells.Eq(scoreColumn).Text())
	if grade, ok := leadingFloat(scoreText); ok && grade >= 100 {
		return domain.RowEntry{}, false
	}

	due, ok := NormalizeDue(dueText)
	if !ok {
		return domain.RowEntry{}, false
	}

	row := domain.RowEntry{
		Badge:  collapseSpace(cells.Eq(0).Text()),
		Title:  collapseSpace(cells.Eq(1).Text()),
		DueRaw: due,
	}
	if row.Title == "" {
		row.Title = row.Badge
	}
	if href, ok := tr.Find("a[href]").First().Attr("href"); ok {
		row.Link = resolveLink(base, href)
	}
	if scoreText != "" {
		row.ScoreRaw = &scoreText
	}
	return row, true
}

// NormalizeDue rewrites the deadline that follows "until", e.g.
// "100% until 11:59pm, Mon, Mar 3 (CST)", into "Mon, Mar 3, 11:59pm".
func NormalizeDue(text string) (string, bool) {
	_, rest, found := strings.Cut(collapseSpace(text), "until ")
	if !found {
		return "", false
	}
	if i := strings.IndexByte(rest, '('); i >= 0 {
		rest = rest[:i]
	}
	parts := strings.Split(strings.TrimSpace(rest), ", ")
	if len(parts) < 3 {
		return "", false
	}
	for i := range parts[:3] {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return "", false
		}
	}
	clock, weekday, monthDay := parts[0], parts[1], parts[2]
	if f := strings.Fields(monthDay); len(f) > 2 {
		monthDay = f[0] + " " + f[1]
	}
	return weekday + ", " + monthDay + ", " + clock, true
}

// leadingFloat parses the numeric prefix of s, so "42.5%" yields 42.5.
func leadingFloat(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
