package suite

import (
	"fmt"

	"github.com/probelab/webprobe/internal/browser"
)

const (
	maxClickTests = 5
	maxLinkTests  = 3
)

// Input values typed into generated form tests, keyed by field type.
const (
	testEmail    = "test@example.com"
	testPassword = "testpass123"
	testText     = "test text"
)

// Generate turns a page analysis into executable scenarios. It is a pure
// transformation: the same analysis and test type always produce the same
// scenarios. Functional scenarios (load, clicks, forms, links) are always
// emitted; accessibility and performance audit scenarios are added when the
// test type requests them.
func Generate(analysis *browser.PageAnalysis, testType TestType) []Scenario {
	scenarios := []Scenario{loadScenario(analysis)}
	scenarios = append(scenarios, clickScenarios(analysis)...)
	scenarios = append(scenarios, formScenarios(analysis)...)
	scenarios = append(scenarios, linkScenarios(analysis)...)

	if testType == TestTypeAccessibility || testType == TestTypeComprehensive {
		scenarios = append(scenarios, accessibilityScenario(analysis))
	}
	if testType == TestTypePerformance || testType == TestTypeComprehensive {
		scenarios = append(scenarios, performanceScenario(analysis))
	}
	return scenarios
}

func loadScenario(analysis *browser.PageAnalysis) Scenario {
	steps := []Step{
		{Action: ActionNavigate, Value: analysis.URL, Description: "open page"},
		{Action: ActionWait, Description: "wait for page load"},
	}
	if analysis.Title != "" {
		steps = append(steps, Step{
			Action:      ActionAssert,
			Expected:    analysis.Title,
			Description: "page title matches analysis",
		})
	}
	return Scenario{
		ID:          "load-test",
		Name:        "Page load",
		Description: fmt.Sprintf("load %s and verify it renders", analysis.URL),
		Category:    CategoryFunctional,
		Priority:    PriorityHigh,
		Steps:       steps,
	}
}

func clickScenarios(analysis *browser.PageAnalysis) []Scenario {
	var scenarios []Scenario
	for _, el := range analysis.Clickables {
		if len(scenarios) == maxClickTests {
			break
		}
		if el.Selector == "" || !el.Visible {
			continue
		}
		n := len(scenarios) + 1
		scenarios = append(scenarios, Scenario{
			ID:          fmt.Sprintf("click-%d", n),
			Name:        fmt.Sprintf("Click %s", elementLabel(el)),
			Description: fmt.Sprintf("click %s", el.Selector),
			Category:    CategoryFunctional,
			Priority:    PriorityMedium,
			Steps: []Step{
				{Action: ActionNavigate, Value: analysis.URL},
				{Action: ActionClick, Selector: el.Selector, Description: "click element"},
			},
		})
	}
	return scenarios
}

func elementLabel(el browser.Clickable) string {
	if el.Text != "" {
		return fmt.Sprintf("%q", el.Text)
	}
	return el.Selector
}

func formScenarios(analysis *browser.PageAnalysis) []Scenario {
	var scenarios []Scenario
	for i, form := range analysis.Forms {
		steps := []Step{{Action: ActionNavigate, Value: analysis.URL}}
		for _, field := range form.Fields {
			value, ok := fieldValue(field.Type)
			if !ok || field.Selector == "" {
				continue
			}
			steps = append(steps, Step{
				Action:      ActionType,
				Selector:    field.Selector,
				Value:       value,
				Description: fmt.Sprintf("fill %s field", field.Type),
			})
		}
		if form.SubmitSelector != "" {
			steps = append(steps, Step{
				Action:      ActionClick,
				Selector:    form.SubmitSelector,
				Description: "submit form",
			})
		}
		scenarios = append(scenarios, Scenario{
			ID:          fmt.Sprintf("form-%d", i+1),
			Name:        fmt.Sprintf("Form submission %d", i+1),
			Description: fmt.Sprintf("fill and submit form %s", form.Selector),
			Category:    CategoryFunctional,
			Priority:    PriorityHigh,
			Steps:       steps,
		})
	}
	return scenarios
}

func fieldValue(fieldType string) (string, bool) {
	switch fieldType {
	case "email":
		return testEmail, true
	case "password":
		return testPassword, true
	case "text":
		return testText, true
	default:
		return "", false
	}
}

func linkScenarios(analysis *browser.PageAnalysis) []Scenario {
	var scenarios []Scenario
	for _, link := range analysis.Links {
		if len(scenarios) == maxLinkTests {
			break
		}
		if link.Href == "" {
			continue
		}
		n := len(scenarios) + 1
		var steps []Step
		if link.Selector != "" {
			steps = []Step{
				{Action: ActionNavigate, Value: analysis.URL},
				{Action: ActionClick, Selector: link.Selector, Description: "follow link"},
				{Action: ActionWait, Description: "wait for destination"},
			}
		} else {
			steps = []Step{
				{Action: ActionNavigate, Value: link.Href},
				{Action: ActionWait, Description: "wait for destination"},
			}
		}
		scenarios = append(scenarios, Scenario{
			ID:          fmt.Sprintf("link-%d", n),
			Name:        fmt.Sprintf("Follow link %d", n),
			Description: fmt.Sprintf("navigate to %s", link.Href),
			Category:    CategoryFunctional,
			Priority:    PriorityLow,
			Steps:       steps,
		})
	}
	return scenarios
}

func accessibilityScenario(analysis *browser.PageAnalysis) Scenario {
	return Scenario{
		ID:          "accessibility-audit",
		Name:        "Accessibility audit",
		Description: "verify images carry alt text and a heading outline exists",
		Category:    CategoryAccessibility,
		Priority:    PriorityMedium,
		Steps: []Step{
			{Action: ActionNavigate, Value: analysis.URL},
			{
				Action:      ActionExecuteScript,
				Script:      `document.querySelectorAll('img:not([alt])').length === 0 && document.querySelectorAll('h1').length > 0`,
				Expected:    "true",
				Description: "alt text and heading presence",
			},
		},
	}
}

func performanceScenario(analysis *browser.PageAnalysis) Scenario {
	return Scenario{
		ID:          "performance-audit",
		Name:        "Performance audit",
		Description: "verify the page finishes loading within budget",
		Category:    CategoryPerformance,
		Priority:    PriorityMedium,
		Steps: []Step{
			{Action: ActionNavigate, Value: analysis.URL},
			{Action: ActionWait, Description: "wait for full load"},
			{
				Action: ActionExecuteScript,
				Script: `(() => {
					const nav = performance.getEntriesByType('navigation')[0];
					return !nav || nav.loadEventEnd - nav.startTime < 10000;
				})()`,
				Expected:    "true",
				Description: "load time within hard ceiling",
			},
		},
	}
}
