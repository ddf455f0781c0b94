package quality

// Category identifies one scored quality dimension.
type Category string

const (
	CategoryPerformance   Category = "performance"
	CategoryAccessibility Category = "accessibility"
	CategorySEO           Category = "seo"
	CategoryFunctionality Category = "functionality"
)

// Raw bundles the per-category measurement payloads one assessment works
// from. A nil category was not measured and is excluded from scoring; it is
// never silently scored as zero.
type Raw struct {
	Performance   *PerformanceMeasurements   `json:"performance,omitempty"`
	Accessibility *AccessibilityMeasurements `json:"accessibility,omitempty"`
	SEO           *SEOMeasurements           `json:"seo,omitempty"`
	Functionality *FunctionalityMeasurements `json:"functionality,omitempty"`
}

// PerformanceMeasurements carries the timing metrics collected from the
// page. Time metrics are in seconds; cumulative_layout_shift is unitless.
type PerformanceMeasurements struct {
	Timings map[string]float64 `json:"timings"`
}

// ImageCheck records whether one image carries alt text.
type ImageCheck struct {
	Src    string `json:"src"`
	HasAlt bool   `json:"has_alt"`
}

// AriaCheck records whether one interactive element carries an ARIA label.
type AriaCheck struct {
	Tag     string `json:"tag"`
	Labeled bool   `json:"labeled"`
}

// AccessibilityMeasurements carries the raw accessibility checks.
type AccessibilityMeasurements struct {
	Images         []ImageCheck `json:"images"`
	HeadingLevels  []int        `json:"heading_levels"`
	LandmarkCount  int          `json:"landmark_count"`
	FocusableCount int          `json:"focusable_count"`
	AriaElements   []AriaCheck  `json:"aria_elements"`
}

// LinkCheck records one anchor found on the page.
type LinkCheck struct {
	Href     string `json:"href"`
	Internal bool   `json:"internal"`
	Broken   bool   `json:"broken"`
}

// SEOMeasurements carries the raw SEO checks.
type SEOMeasurements struct {
	MetaTags      map[string]string `json:"meta_tags"`
	HeadingLevels []int             `json:"heading_levels"`
	Images        []ImageCheck      `json:"images"`
	Links         []LinkCheck       `json:"links"`
}

// InputCheck records the validity of one form input.
type InputCheck struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Valid    bool   `json:"valid"`
}

// FormCheck records the inputs of one form.
type FormCheck struct {
	Inputs []InputCheck `json:"inputs"`
}

// FunctionalityMeasurements carries the raw functionality checks.
type FunctionalityMeasurements struct {
	Links        []LinkCheck `json:"links"`
	JSErrorCount int         `json:"js_error_count"`
	Forms        []FormCheck `json:"forms"`
}

// Metrics is one immutable quality assessment: the category scores that
// could be computed, the weighted overall score over those categories, and
// the raw payloads each score was derived from.
type Metrics struct {
	Overall float64              `json:"overall_score"`
	Scores  map[Category]float64 `json:"scores"`
	Raw     Raw                  `json:"raw"`
}

// Has reports whether the category was measured and scored.
func (m Metrics) Has(c Category) bool {
	_, ok := m.Scores[c]
	return ok
}

// Score returns the category score, or 0 with ok=false when the category
// was not measured.
func (m Metrics) Score(c Category) (float64, bool) {
	s, ok := m.Scores[c]
	return s, ok
}
