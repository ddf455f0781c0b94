package quality

import (
	"math"
	"reflect"
	"testing"

	"github.com/probelab/webprobe/internal/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(config.DefaultConfig().Quality, nil)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreHeadingStructure(t *testing.T) {
	tests := []struct {
		name   string
		levels []int
		want   float64
	}{
		{"empty", nil, 0},
		{"clean outline", []int{1, 2, 3}, 100},
		{"h1 then h2 h2", []int{1, 2, 2}, 100},
		{"level skip", []int{1, 3}, 75},
		{"multiple h1", []int{1, 1, 2}, 50},
		{"no h1", []int{2, 3}, 50},
		{"skip after clean start", []int{1, 2, 4}, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreHeadingStructure(tt.levels); got != tt.want {
				t.Errorf("scoreHeadingStructure(%v) = %v, want %v", tt.levels, got, tt.want)
			}
		})
	}
}

func TestScorePerformance(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name    string
		timings map[string]float64
		want    float64
		ok      bool
	}{
		{
			name: "all at threshold scores zero",
			timings: map[string]float64{
				"page_load_time":           3.0,
				"first_contentful_paint":   1.8,
				"largest_contentful_paint": 2.5,
				"cumulative_layout_shift":  0.1,
			},
			want: 0, ok: true,
		},
		{
			name: "half of threshold scores fifty",
			timings: map[string]float64{
				"page_load_time":           1.5,
				"first_contentful_paint":   0.9,
				"largest_contentful_paint": 1.25,
				"cumulative_layout_shift":  0.05,
			},
			want: 50, ok: true,
		},
		{
			name:    "value far past threshold clamps at zero",
			timings: map[string]float64{"page_load_time": 30},
			want:    0, ok: true,
		},
		{
			name:    "unknown metric skipped",
			timings: map[string]float64{"time_to_first_byte": 0.2},
			want:    0, ok: false,
		},
		{
			name:    "no timings",
			timings: nil,
			want:    0, ok: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.scorePerformance(&PerformanceMeasurements{Timings: tt.timings})
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}

	if _, ok := e.scorePerformance(nil); ok {
		t.Error("nil measurements should not be scoreable")
	}
}

func TestScoreFunctionality(t *testing.T) {
	e := newTestEngine(t)

	t.Run("three js errors", func(t *testing.T) {
		m := &FunctionalityMeasurements{
			Links:        []LinkCheck{{Href: "/a"}, {Href: "/b", Broken: true}},
			JSErrorCount: 3,
			Forms: []FormCheck{
				{Inputs: []InputCheck{{Name: "email", Valid: true}}},
			},
		}
		// links (1 of 2 broken) = 50, js = 100-30 = 70, forms = 100
		want := (50.0 + 70.0 + 100.0) / 3
		if got := e.scoreFunctionality(m); !almostEqual(got, want) {
			t.Errorf("score = %v, want %v", got, want)
		}
	})

	t.Run("no links scores full", func(t *testing.T) {
		m := &FunctionalityMeasurements{JSErrorCount: 0}
		if got := e.scoreFunctionality(m); !almostEqual(got, 100) {
			t.Errorf("score = %v, want 100", got)
		}
	})

	t.Run("js errors clamp at zero", func(t *testing.T) {
		m := &FunctionalityMeasurements{JSErrorCount: 25}
		want := (100.0 + 0.0 + 100.0) / 3
		if got := e.scoreFunctionality(m); !almostEqual(got, want) {
			t.Errorf("score = %v, want %v", got, want)
		}
	})

	t.Run("form with invalid input fails the form", func(t *testing.T) {
		m := &FunctionalityMeasurements{
			Forms: []FormCheck{
				{Inputs: []InputCheck{{Name: "ok", Valid: true}}},
				{Inputs: []InputCheck{{Name: "bad", Required: true, Valid: false}}},
			},
		}
		want := (100.0 + 100.0 + 50.0) / 3
		if got := e.scoreFunctionality(m); !almostEqual(got, want) {
			t.Errorf("score = %v, want %v", got, want)
		}
	})
}

func TestScoreSEO(t *testing.T) {
	e := newTestEngine(t)

	m := &SEOMeasurements{
		MetaTags:      map[string]string{"description": "d", "viewport": "width=device-width"},
		HeadingLevels: []int{1, 2},
		Images:        []ImageCheck{{Src: "a.png", HasAlt: true}, {Src: "b.png", HasAlt: false}},
		Links:         []LinkCheck{{Href: "/in", Internal: true}, {Href: "https://other", Internal: false}},
	}
	// meta 2/3, heading 100, alt 50, internal 50
	want := (2.0/3*100 + 100 + 50 + 50) / 4
	if got := e.scoreSEO(m); !almostEqual(got, want) {
		t.Errorf("score = %v, want %v", got, want)
	}

	t.Run("empty meta content still counts as present", func(t *testing.T) {
		m := &SEOMeasurements{
			MetaTags:      map[string]string{"description": "", "keywords": "", "viewport": ""},
			HeadingLevels: []int{1},
		}
		// meta 3/3, heading 100, alt 100 (no images), internal 0 (no links)
		want := (100.0 + 100 + 100 + 0) / 4
		if got := e.scoreSEO(m); !almostEqual(got, want) {
			t.Errorf("score = %v, want %v", got, want)
		}
	})

	t.Run("no images counts as full alt coverage", func(t *testing.T) {
		m := &SEOMeasurements{HeadingLevels: []int{1}}
		// meta 0, heading 100, alt 100, internal 0 (no links)
		want := (0.0 + 100 + 100 + 0) / 4
		if got := e.scoreSEO(m); !almostEqual(got, want) {
			t.Errorf("score = %v, want %v", got, want)
		}
	})
}

func TestScoreAccessibility(t *testing.T) {
	e := newTestEngine(t)

	t.Run("default screen reader baseline without aria data", func(t *testing.T) {
		m := &AccessibilityMeasurements{
			Images:        []ImageCheck{{Src: "a.png", HasAlt: true}},
			HeadingLevels: []int{1, 2},
			LandmarkCount: 2,
		}
		// wcag: image pass + heading pass + landmark pass = 3/3 = 100
		want := (100.0 + keyboardNavScore + screenReaderBaseline) / 3
		if got := e.scoreAccessibility(m); !almostEqual(got, want) {
			t.Errorf("score = %v, want %v", got, want)
		}
	})

	t.Run("aria ratio replaces baseline", func(t *testing.T) {
		m := &AccessibilityMeasurements{
			HeadingLevels: []int{1},
			AriaElements: []AriaCheck{
				{Tag: "button", Labeled: true},
				{Tag: "a", Labeled: false},
			},
		}
		// wcag: heading check only = 1/1 = 100; screen reader = 50
		want := (100.0 + keyboardNavScore + 50.0) / 3
		if got := e.scoreAccessibility(m); !almostEqual(got, want) {
			t.Errorf("score = %v, want %v", got, want)
		}
	})

	t.Run("heading check skipped when page has no headings", func(t *testing.T) {
		m := &AccessibilityMeasurements{
			Images: []ImageCheck{
				{Src: "a.png", HasAlt: true},
				{Src: "b.png", HasAlt: true},
				{Src: "c.png", HasAlt: true},
				{Src: "d.png", HasAlt: true},
				{Src: "e.png", HasAlt: true},
			},
		}
		// wcag: 5/5 image checks, heading and landmark checks not applicable
		want := (100.0 + keyboardNavScore + screenReaderBaseline) / 3
		if got := e.scoreAccessibility(m); !almostEqual(got, want) {
			t.Errorf("score = %v, want %v", got, want)
		}
	})

	t.Run("no applicable wcag checks scores zero", func(t *testing.T) {
		if got := e.scoreWCAG(&AccessibilityMeasurements{}); got != 0 {
			t.Errorf("scoreWCAG = %v, want 0", got)
		}
	})

	t.Run("landmarks only counted when present", func(t *testing.T) {
		m := &AccessibilityMeasurements{
			Images:        []ImageCheck{{Src: "a.png", HasAlt: false}},
			HeadingLevels: []int{2}, // no h1
		}
		// wcag: image fail + heading fail, landmarks not counted = 0/2
		want := (0.0 + keyboardNavScore + screenReaderBaseline) / 3
		if got := e.scoreAccessibility(m); !almostEqual(got, want) {
			t.Errorf("score = %v, want %v", got, want)
		}
	})
}

func TestAssessRenormalizesWeights(t *testing.T) {
	e := newTestEngine(t)

	raw := Raw{
		Performance: &PerformanceMeasurements{
			Timings: map[string]float64{"page_load_time": 1.5}, // 50
		},
		SEO: &SEOMeasurements{
			MetaTags:      map[string]string{"description": "d", "keywords": "k", "viewport": "v"},
			HeadingLevels: []int{1, 2},
			Links:         []LinkCheck{{Href: "/a", Internal: true}},
		}, // (100+100+100+100)/4 = 100
	}

	m := e.Assess(raw)

	perf, ok := m.Score(CategoryPerformance)
	if !ok || !almostEqual(perf, 50) {
		t.Fatalf("performance = %v (ok=%v), want 50", perf, ok)
	}
	seo, ok := m.Score(CategorySEO)
	if !ok || !almostEqual(seo, 100) {
		t.Fatalf("seo = %v (ok=%v), want 100", seo, ok)
	}
	if m.Has(CategoryAccessibility) || m.Has(CategoryFunctionality) {
		t.Fatal("unmeasured categories must be omitted from scores")
	}

	// Overall weights only the measured categories: (50*0.3 + 100*0.2) / 0.5.
	want := (50*0.3 + 100*0.2) / 0.5
	if !almostEqual(m.Overall, want) {
		t.Errorf("overall = %v, want %v", m.Overall, want)
	}
}

func TestAssessIdempotent(t *testing.T) {
	e := newTestEngine(t)
	raw := Raw{
		Performance: &PerformanceMeasurements{
			Timings: map[string]float64{
				"page_load_time":         2.1,
				"first_contentful_paint": 1.2,
			},
		},
		Accessibility: &AccessibilityMeasurements{
			Images:        []ImageCheck{{Src: "a.png", HasAlt: true}},
			HeadingLevels: []int{1, 2, 3},
			LandmarkCount: 1,
		},
		Functionality: &FunctionalityMeasurements{JSErrorCount: 2},
	}

	first := e.Assess(raw)
	for i := 0; i < 5; i++ {
		if got := e.Assess(raw); !reflect.DeepEqual(got, first) {
			t.Fatalf("assessment %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestAssessScoreBounds(t *testing.T) {
	e := newTestEngine(t)
	raws := []Raw{
		{},
		{Performance: &PerformanceMeasurements{Timings: map[string]float64{"page_load_time": 99}}},
		{Functionality: &FunctionalityMeasurements{JSErrorCount: 1000}},
		{
			Accessibility: &AccessibilityMeasurements{
				Images: []ImageCheck{{Src: "a", HasAlt: false}, {Src: "b", HasAlt: false}},
			},
			SEO: &SEOMeasurements{
				Images: []ImageCheck{{Src: "a", HasAlt: false}},
				Links:  []LinkCheck{{Href: "x", Internal: false, Broken: true}},
			},
		},
	}
	for i, raw := range raws {
		m := e.Assess(raw)
		if m.Overall < 0 || m.Overall > 100 {
			t.Errorf("raw %d: overall %v out of range", i, m.Overall)
		}
		for cat, s := range m.Scores {
			if s < 0 || s > 100 {
				t.Errorf("raw %d: %s score %v out of range", i, cat, s)
			}
		}
	}
}

func TestCollectDegradesPerCategory(t *testing.T) {
	raw := Collect(t.Context(), StaticMeasurer{}, nil)
	if raw.Performance != nil || raw.Accessibility != nil || raw.SEO != nil || raw.Functionality != nil {
		t.Error("zero StaticMeasurer should produce an empty Raw")
	}

	full := Raw{
		SEO: &SEOMeasurements{HeadingLevels: []int{1}},
	}
	raw = Collect(t.Context(), StaticMeasurer{Raw: full}, nil)
	if raw.SEO == nil {
		t.Error("measured category lost in Collect")
	}
}
