package quality

import (
	"github.com/sirupsen/logrus"

	"github.com/probelab/webprobe/internal/config"
)

// Engine scores pages from raw measurements. Assess is a pure function of
// its input and the engine's configured thresholds and weights, so the same
// measurements always produce the same Metrics.
type Engine struct {
	thresholds map[string]float64
	perfWeight map[string]float64
	catWeight  map[Category]float64
	log        *logrus.Logger
}

// keyboardNavScore stands in for keyboard navigation support until it is
// measured directly. Screen-reader compatibility defaults to this baseline
// when no ARIA data was collected.
const (
	keyboardNavScore     = 85
	screenReaderBaseline = 80
)

func NewEngine(cfg config.QualityConfig, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	catWeight := make(map[Category]float64, len(cfg.CategoryWeights))
	for k, v := range cfg.CategoryWeights {
		catWeight[Category(k)] = v
	}
	return &Engine{
		thresholds: cfg.PerformanceThresholds,
		perfWeight: cfg.PerformanceWeights,
		catWeight:  catWeight,
		log:        log,
	}
}

// Assess computes category scores for every measured category in raw and
// combines them into a weighted overall score. Categories missing from raw
// are left out of both the scores map and the overall weighting; the
// remaining weights are renormalized so the overall stays on a 0-100 scale.
func (e *Engine) Assess(raw Raw) Metrics {
	scores := make(map[Category]float64)

	if s, ok := e.scorePerformance(raw.Performance); ok {
		scores[CategoryPerformance] = s
	}
	if raw.Accessibility != nil {
		scores[CategoryAccessibility] = e.scoreAccessibility(raw.Accessibility)
	}
	if raw.SEO != nil {
		scores[CategorySEO] = e.scoreSEO(raw.SEO)
	}
	if raw.Functionality != nil {
		scores[CategoryFunctionality] = e.scoreFunctionality(raw.Functionality)
	}

	return Metrics{
		Overall: e.overall(scores),
		Scores:  scores,
		Raw:     raw,
	}
}

func (e *Engine) overall(scores map[Category]float64) float64 {
	var sum, weightSum float64
	for cat, score := range scores {
		w, ok := e.catWeight[cat]
		if !ok {
			continue
		}
		sum += score * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

// scorePerformance converts each timing to a threshold-relative score and
// combines them with the per-metric weights. Metrics without a configured
// threshold are skipped; a metric without a configured weight counts at
// weight 1. Returns ok=false when nothing scoreable was measured.
func (e *Engine) scorePerformance(m *PerformanceMeasurements) (float64, bool) {
	if m == nil {
		return 0, false
	}
	var sum, weightSum float64
	for name, value := range m.Timings {
		threshold, ok := e.thresholds[name]
		if !ok || threshold <= 0 {
			continue
		}
		score := 100 - (value/threshold)*100
		if score < 0 {
			score = 0
		}
		w, ok := e.perfWeight[name]
		if !ok {
			w = 1
		}
		sum += score * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0, false
	}
	return sum / weightSum, true
}

func (e *Engine) scoreAccessibility(m *AccessibilityMeasurements) float64 {
	wcag := e.scoreWCAG(m)
	screenReader := float64(screenReaderBaseline)
	if len(m.AriaElements) > 0 {
		labeled := 0
		for _, el := range m.AriaElements {
			if el.Labeled {
				labeled++
			}
		}
		screenReader = float64(labeled) / float64(len(m.AriaElements)) * 100
	}
	return (wcag + keyboardNavScore + screenReader) / 3
}

// scoreWCAG is the ratio of passed checks to applicable checks: one check
// per image (alt text), one for heading structure counted only when the
// page has headings, and one for landmark presence counted only when the
// page declares landmarks. A check with nothing to examine is skipped, not
// failed.
func (e *Engine) scoreWCAG(m *AccessibilityMeasurements) float64 {
	passed, total := 0, 0
	for _, img := range m.Images {
		total++
		if img.HasAlt {
			passed++
		}
	}
	if len(m.HeadingLevels) > 0 {
		total++
		if scoreHeadingStructure(m.HeadingLevels) == 100 {
			passed++
		}
	}
	if m.LandmarkCount > 0 {
		total++
		passed++
	}
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}

// scoreHeadingStructure grades the document outline: exactly one H1 and no
// level skips greater than one is a clean outline.
func scoreHeadingStructure(levels []int) float64 {
	if len(levels) == 0 {
		return 0
	}
	h1s := 0
	for _, l := range levels {
		if l == 1 {
			h1s++
		}
	}
	if h1s != 1 {
		return 50
	}
	for i := 1; i < len(levels); i++ {
		if levels[i]-levels[i-1] > 1 {
			return 75
		}
	}
	return 100
}

func (e *Engine) scoreSEO(m *SEOMeasurements) float64 {
	present := 0
	for _, name := range []string{"description", "keywords", "viewport"} {
		if _, ok := m.MetaTags[name]; ok {
			present++
		}
	}
	meta := float64(present) / 3 * 100

	heading := scoreHeadingStructure(m.HeadingLevels)

	alt := 100.0
	if len(m.Images) > 0 {
		withAlt := 0
		for _, img := range m.Images {
			if img.HasAlt {
				withAlt++
			}
		}
		alt = float64(withAlt) / float64(len(m.Images)) * 100
	}

	internal := 0.0
	if len(m.Links) > 0 {
		n := 0
		for _, l := range m.Links {
			if l.Internal {
				n++
			}
		}
		internal = float64(n) / float64(len(m.Links)) * 100
	}

	return (meta + heading + alt + internal) / 4
}

func (e *Engine) scoreFunctionality(m *FunctionalityMeasurements) float64 {
	links := 100.0
	if len(m.Links) > 0 {
		broken := 0
		for _, l := range m.Links {
			if l.Broken {
				broken++
			}
		}
		links = (1 - float64(broken)/float64(len(m.Links))) * 100
	}

	jsErrors := 100 - 10*float64(m.JSErrorCount)
	if jsErrors < 0 {
		jsErrors = 0
	}

	forms := 100.0
	if len(m.Forms) > 0 {
		valid := 0
		for _, f := range m.Forms {
			if formValid(f) {
				valid++
			}
		}
		forms = float64(valid) / float64(len(m.Forms)) * 100
	}

	return (links + jsErrors + forms) / 3
}

func formValid(f FormCheck) bool {
	for _, in := range f.Inputs {
		if !in.Valid {
			return false
		}
	}
	return true
}
