package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/probelab/webprobe/internal/quality"
)

// Heading is one heading element in document order.
type Heading struct {
	Level    int    `json:"level"`
	Text     string `json:"text"`
	Selector string `json:"selector"`
}

// Image is one img element found during analysis.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	HasAlt bool   `json:"hasAlt"`
}

// Link is one anchor found during analysis.
type Link struct {
	Href     string `json:"href"`
	Text     string `json:"text"`
	Selector string `json:"selector"`
	Internal bool   `json:"internal"`
}

// Clickable is one element a user could click.
type Clickable struct {
	Tag      string `json:"tag"`
	Text     string `json:"text"`
	Selector string `json:"selector"`
	Visible  bool   `json:"visible"`
}

// FormField is one input inside a form.
type FormField struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Selector string `json:"selector"`
	Required bool   `json:"required"`
}

// Form is one form element with its fields and submit control.
type Form struct {
	Selector       string      `json:"selector"`
	Action         string      `json:"action"`
	Method         string      `json:"method"`
	Fields         []FormField `json:"fields"`
	SubmitSelector string      `json:"submitSelector"`
}

// PageAnalysis is the structural snapshot of a loaded page that test
// generation works from.
type PageAnalysis struct {
	Title          string      `json:"title"`
	URL            string      `json:"url"`
	Headings       []Heading   `json:"headings"`
	ParagraphCount int         `json:"paragraphCount"`
	Images         []Image     `json:"images"`
	Links          []Link      `json:"links"`
	Clickables     []Clickable `json:"clickables"`
	Forms          []Form      `json:"forms"`
	FocusableCount int         `json:"focusableCount"`
}

// Analyzer inspects the page currently loaded in a RemoteClient. It collects
// the structural analysis used for test generation and implements
// quality.Measurer for scoring.
type Analyzer struct {
	client RemoteClient
	log    *logrus.Logger
}

func NewAnalyzer(client RemoteClient, log *logrus.Logger) *Analyzer {
	if log == nil {
		log = logrus.New()
	}
	return &Analyzer{client: client, log: log}
}

// cssPath builds a selector preferring id, then name, then a tag with class
// chain. Mirrors what the in-page scripts emit for elements they report.
const selectorHelperJS = `
	const sel = (el) => {
		if (el.id) return '#' + el.id;
		if (el.name) return el.tagName.toLowerCase() + "[name='" + el.name + "']";
		let s = el.tagName.toLowerCase();
		if (el.className && typeof el.className === 'string') {
			const cls = el.className.trim().split(/\s+/).filter(Boolean);
			if (cls.length) s += '.' + cls.join('.');
		}
		return s;
	};`

// Analyze runs the structural analysis script against the current page.
func (a *Analyzer) Analyze(ctx context.Context) (*PageAnalysis, error) {
	script := `(() => {` + selectorHelperJS + `
		const analysis = {
			title: document.title,
			url: window.location.href,
			headings: [],
			paragraphCount: document.querySelectorAll('p').length,
			images: [],
			links: [],
			clickables: [],
			forms: [],
			focusableCount: document.querySelectorAll('a, button, input, textarea, select, [tabindex]').length
		};

		for (let i = 1; i <= 6; i++) {
			document.querySelectorAll('h' + i).forEach(h => {
				analysis.headings.push({ level: i, text: h.textContent.trim(), selector: sel(h) });
			});
		}

		document.querySelectorAll('img').forEach(img => {
			analysis.images.push({ src: img.src, alt: img.alt || '', hasAlt: !!img.alt });
		});

		document.querySelectorAll('a[href]').forEach(link => {
			analysis.links.push({
				href: link.href,
				text: link.textContent.trim(),
				selector: sel(link),
				internal: link.href.startsWith(window.location.origin)
			});
		});

		document.querySelectorAll('a, button, input[type="button"], input[type="submit"], [onclick], [role="button"]').forEach(el => {
			analysis.clickables.push({
				tag: el.tagName.toLowerCase(),
				text: (el.textContent || el.value || '').trim(),
				selector: sel(el),
				visible: el.offsetParent !== null
			});
		});

		document.querySelectorAll('form').forEach(form => {
			const f = {
				selector: sel(form),
				action: form.action || '',
				method: form.method || 'get',
				fields: [],
				submitSelector: ''
			};
			form.querySelectorAll('input:not([type="button"]):not([type="submit"]), textarea, select').forEach(field => {
				f.fields.push({
					type: field.type || field.tagName.toLowerCase(),
					name: field.name || '',
					selector: sel(field),
					required: !!field.required
				});
			});
			const submit = form.querySelector('button[type="submit"], input[type="submit"]');
			if (submit) f.submitSelector = sel(submit);
			analysis.forms.push(f);
		});

		return analysis;
	})()`

	var analysis PageAnalysis
	if err := a.client.ExecuteScript(ctx, script, &analysis); err != nil {
		return nil, fmt.Errorf("page analysis failed: %w", err)
	}
	a.log.WithFields(logrus.Fields{
		"url":        analysis.URL,
		"headings":   len(analysis.Headings),
		"links":      len(analysis.Links),
		"clickables": len(analysis.Clickables),
		"forms":      len(analysis.Forms),
	}).Debug("page analyzed")
	return &analysis, nil
}

// MeasurePerformance reads the Navigation Timing and paint entries. Time
// metrics are reported in seconds to align with the configured thresholds;
// cumulative layout shift is unitless.
func (a *Analyzer) MeasurePerformance(ctx context.Context) (*quality.PerformanceMeasurements, error) {
	script := `(() => {
		const nav = performance.getEntriesByType('navigation')[0];
		const paint = performance.getEntriesByType('paint');
		const fcp = paint.find(p => p.name === 'first-contentful-paint');
		const lcpEntries = performance.getEntriesByType('largest-contentful-paint');
		const shifts = performance.getEntriesByType('layout-shift');
		return {
			page_load_time: nav ? Math.max(0, nav.loadEventEnd - nav.startTime) : 0,
			first_contentful_paint: fcp ? fcp.startTime : 0,
			largest_contentful_paint: lcpEntries.length ? lcpEntries[lcpEntries.length - 1].startTime : 0,
			cumulative_layout_shift: shifts.reduce((sum, s) => sum + s.value, 0)
		};
	})()`

	var ms map[string]float64
	if err := a.client.ExecuteScript(ctx, script, &ms); err != nil {
		return nil, fmt.Errorf("performance collection failed: %w", err)
	}

	timings := make(map[string]float64, len(ms))
	for name, v := range ms {
		if name == "cumulative_layout_shift" {
			timings[name] = v
			continue
		}
		timings[name] = v / 1000
	}
	return &quality.PerformanceMeasurements{Timings: timings}, nil
}

// MeasureAccessibility collects the raw accessibility checks.
func (a *Analyzer) MeasureAccessibility(ctx context.Context) (*quality.AccessibilityMeasurements, error) {
	script := `(() => {
		const out = { images: [], heading_levels: [], landmark_count: 0, focusable_count: 0, aria_elements: [] };
		document.querySelectorAll('img').forEach(img => {
			out.images.push({ src: img.src, has_alt: !!img.alt });
		});
		for (let i = 1; i <= 6; i++) {
			document.querySelectorAll('h' + i).forEach(() => out.heading_levels.push(i));
		}
		out.landmark_count = document.querySelectorAll('main, nav, header, footer, aside, section, article').length;
		out.focusable_count = document.querySelectorAll('a, button, input, textarea, select, [tabindex]').length;
		document.querySelectorAll('a, button, input, select, textarea, [role]').forEach(el => {
			out.aria_elements.push({
				tag: el.tagName.toLowerCase(),
				labeled: !!(el.getAttribute('aria-label') || el.getAttribute('aria-labelledby') || el.labels?.length || el.textContent.trim())
			});
		});
		return out;
	})()`

	var m quality.AccessibilityMeasurements
	if err := a.client.ExecuteScript(ctx, script, &m); err != nil {
		return nil, fmt.Errorf("accessibility collection failed: %w", err)
	}
	return &m, nil
}

// MeasureSEO collects the raw SEO checks.
func (a *Analyzer) MeasureSEO(ctx context.Context) (*quality.SEOMeasurements, error) {
	script := `(() => {
		const out = { meta_tags: {}, heading_levels: [], images: [], links: [] };
		document.querySelectorAll('meta[name]').forEach(meta => {
			out.meta_tags[meta.getAttribute('name')] = meta.getAttribute('content') || '';
		});
		for (let i = 1; i <= 6; i++) {
			document.querySelectorAll('h' + i).forEach(() => out.heading_levels.push(i));
		}
		document.querySelectorAll('img').forEach(img => {
			out.images.push({ src: img.src, has_alt: !!img.alt });
		});
		document.querySelectorAll('a[href]').forEach(link => {
			out.links.push({
				href: link.href,
				internal: link.href.startsWith(window.location.origin),
				broken: false
			});
		});
		return out;
	})()`

	var m quality.SEOMeasurements
	if err := a.client.ExecuteScript(ctx, script, &m); err != nil {
		return nil, fmt.Errorf("seo collection failed: %w", err)
	}
	return &m, nil
}

// MeasureFunctionality collects form validity and link health from the page
// and folds in the JS error count from the console log.
func (a *Analyzer) MeasureFunctionality(ctx context.Context) (*quality.FunctionalityMeasurements, error) {
	script := `(() => {
		const out = { links: [], forms: [] };
		document.querySelectorAll('a[href]').forEach(link => {
			const href = link.getAttribute('href') || '';
			out.links.push({
				href: link.href,
				internal: link.href.startsWith(window.location.origin),
				broken: href === '' || href === '#' || href.startsWith('javascript:')
			});
		});
		document.querySelectorAll('form').forEach(form => {
			const inputs = [];
			form.querySelectorAll('input, textarea, select').forEach(input => {
				inputs.push({
					name: input.name || '',
					required: !!input.required,
					valid: input.validity ? input.validity.valid : true
				});
			});
			out.forms.push({ inputs: inputs });
		});
		return out;
	})()`

	var m quality.FunctionalityMeasurements
	if err := a.client.ExecuteScript(ctx, script, &m); err != nil {
		return nil, fmt.Errorf("functionality collection failed: %w", err)
	}
	m.JSErrorCount = countJSErrors(a.client.ConsoleLogs())
	return &m, nil
}

// countJSErrors counts console error entries and uncaught exceptions.
func countJSErrors(logs []string) int {
	n := 0
	for _, line := range logs {
		if strings.HasPrefix(line, "[error]") || strings.HasPrefix(line, "[exception]") {
			n++
		}
	}
	return n
}

var _ quality.Measurer = (*Analyzer)(nil)
