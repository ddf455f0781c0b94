package browser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/probelab/webprobe/internal/quality"
)

// Snapshot is a static analysis of a page's HTML, built without script
// execution. It covers the checks that are visible in markup alone, which
// makes it usable against saved pages and in tests where no browser runs.
type Snapshot struct {
	Title         string
	MetaTags      map[string]string
	Headings      []Heading
	Images        []Image
	Links         []Link
	Forms         []Form
	LandmarkCount int
}

// ParseSnapshot parses raw HTML into a Snapshot. baseURL decides which links
// count as internal; an empty baseURL treats relative hrefs as internal and
// absolute ones as external.
func ParseSnapshot(html, baseURL string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	snap := &Snapshot{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		MetaTags: map[string]string{},
	}

	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		snap.MetaTags[name] = content
	})

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		level, err := strconv.Atoi(goquery.NodeName(s)[1:])
		if err != nil {
			return
		}
		snap.Headings = append(snap.Headings, Heading{
			Level:    level,
			Text:     strings.TrimSpace(s.Text()),
			Selector: goquery.NodeName(s),
		})
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		alt, hasAlt := s.Attr("alt")
		snap.Images = append(snap.Images, Image{
			Src:    src,
			Alt:    alt,
			HasAlt: hasAlt && alt != "",
		})
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		snap.Links = append(snap.Links, Link{
			Href:     href,
			Text:     strings.TrimSpace(s.Text()),
			Selector: linkSelector(s, href),
			Internal: isInternalHref(href, baseURL),
		})
	})

	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		action, _ := s.Attr("action")
		method, _ := s.Attr("method")
		if method == "" {
			method = "get"
		}
		form := Form{
			Selector: formSelector(s, i),
			Action:   action,
			Method:   method,
		}
		s.Find("input, textarea, select").Each(func(_ int, f *goquery.Selection) {
			typ, _ := f.Attr("type")
			if typ == "button" || typ == "submit" {
				return
			}
			if typ == "" {
				typ = goquery.NodeName(f)
			}
			name, _ := f.Attr("name")
			_, required := f.Attr("required")
			form.Fields = append(form.Fields, FormField{
				Type:     typ,
				Name:     name,
				Selector: fieldSelector(f),
				Required: required,
			})
		})
		if submit := s.Find("button[type='submit'], input[type='submit']").First(); submit.Length() > 0 {
			form.SubmitSelector = fieldSelector(submit)
		}
		snap.Forms = append(snap.Forms, form)
	})

	snap.LandmarkCount = doc.Find("main, nav, header, footer, aside, section, article").Length()

	return snap, nil
}

func isInternalHref(href, baseURL string) bool {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return baseURL != "" && strings.HasPrefix(href, baseURL)
	}
	if strings.HasPrefix(href, "//") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return false
	}
	return true
}

func formSelector(s *goquery.Selection, index int) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	return fmt.Sprintf("form:nth-of-type(%d)", index+1)
}

func linkSelector(s *goquery.Selection, href string) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if href != "" {
		return fmt.Sprintf("a[href='%s']", href)
	}
	return ""
}

func fieldSelector(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if name, ok := s.Attr("name"); ok && name != "" {
		return fmt.Sprintf("%s[name='%s']", goquery.NodeName(s), name)
	}
	return goquery.NodeName(s)
}

// SEOMeasurements converts the snapshot into the raw SEO payload so static
// HTML can be scored with the same engine as live pages.
func (s *Snapshot) SEOMeasurements() *quality.SEOMeasurements {
	m := &quality.SEOMeasurements{MetaTags: s.MetaTags}
	for _, h := range s.Headings {
		m.HeadingLevels = append(m.HeadingLevels, h.Level)
	}
	for _, img := range s.Images {
		m.Images = append(m.Images, quality.ImageCheck{Src: img.Src, HasAlt: img.HasAlt})
	}
	for _, l := range s.Links {
		m.Links = append(m.Links, quality.LinkCheck{Href: l.Href, Internal: l.Internal})
	}
	return m
}

// AccessibilityMeasurements converts the markup-visible accessibility checks.
// The focusable count requires the rendered DOM and stays zero here.
func (s *Snapshot) AccessibilityMeasurements() *quality.AccessibilityMeasurements {
	m := &quality.AccessibilityMeasurements{LandmarkCount: s.LandmarkCount}
	for _, img := range s.Images {
		m.Images = append(m.Images, quality.ImageCheck{Src: img.Src, HasAlt: img.HasAlt})
	}
	for _, h := range s.Headings {
		m.HeadingLevels = append(m.HeadingLevels, h.Level)
	}
	return m
}
