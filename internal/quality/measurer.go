package quality

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Measurer collects raw quality measurements from a live page. Each method
// measures one category; a method returning an error means that category
// could not be collected, not that the page failed the category.
type Measurer interface {
	MeasurePerformance(ctx context.Context) (*PerformanceMeasurements, error)
	MeasureAccessibility(ctx context.Context) (*AccessibilityMeasurements, error)
	MeasureSEO(ctx context.Context) (*SEOMeasurements, error)
	MeasureFunctionality(ctx context.Context) (*FunctionalityMeasurements, error)
}

// Collect gathers all four categories from m, degrading per category: a
// failed measurement is logged and left nil in the result so Assess omits
// it instead of scoring garbage.
func Collect(ctx context.Context, m Measurer, log *logrus.Logger) Raw {
	if log == nil {
		log = logrus.New()
	}
	var raw Raw
	var err error

	if raw.Performance, err = m.MeasurePerformance(ctx); err != nil {
		log.WithError(err).Warn("performance measurement failed, skipping category")
		raw.Performance = nil
	}
	if raw.Accessibility, err = m.MeasureAccessibility(ctx); err != nil {
		log.WithError(err).Warn("accessibility measurement failed, skipping category")
		raw.Accessibility = nil
	}
	if raw.SEO, err = m.MeasureSEO(ctx); err != nil {
		log.WithError(err).Warn("seo measurement failed, skipping category")
		raw.SEO = nil
	}
	if raw.Functionality, err = m.MeasureFunctionality(ctx); err != nil {
		log.WithError(err).Warn("functionality measurement failed, skipping category")
		raw.Functionality = nil
	}
	return raw
}

// StaticMeasurer is a Measurer with fixed canned measurements. The zero
// value measures nothing, which makes every category come back nil and be
// omitted from scoring. Useful for dry runs and tests.
type StaticMeasurer struct {
	Raw Raw
}

func (s StaticMeasurer) MeasurePerformance(context.Context) (*PerformanceMeasurements, error) {
	return s.Raw.Performance, nil
}

func (s StaticMeasurer) MeasureAccessibility(context.Context) (*AccessibilityMeasurements, error) {
	return s.Raw.Accessibility, nil
}

func (s StaticMeasurer) MeasureSEO(context.Context) (*SEOMeasurements, error) {
	return s.Raw.SEO, nil
}

func (s StaticMeasurer) MeasureFunctionality(context.Context) (*FunctionalityMeasurements, error) {
	return s.Raw.Functionality, nil
}
