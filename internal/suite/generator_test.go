package suite

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/probelab/webprobe/internal/browser"
)

// richAnalysis builds a page with 2 forms, 6 clickables, and 10 links so the
// generation caps are all exercised.
func richAnalysis() *browser.PageAnalysis {
	a := &browser.PageAnalysis{
		Title: "Dashboard",
		URL:   "https://app.example.com/dashboard",
		Forms: []browser.Form{
			{
				Selector: "#login-form",
				Fields: []browser.FormField{
					{Type: "email", Name: "email", Selector: "#email"},
					{Type: "password", Name: "password", Selector: "#password"},
				},
				SubmitSelector: "#login-submit",
			},
			{
				Selector: "#search-form",
				Fields: []browser.FormField{
					{Type: "text", Name: "q", Selector: "input[name='q']"},
					{Type: "checkbox", Name: "exact", Selector: "input[name='exact']"},
				},
				SubmitSelector: "button[type='submit']",
			},
		},
	}
	for i := 0; i < 6; i++ {
		a.Clickables = append(a.Clickables, browser.Clickable{
			Tag:      "button",
			Text:     fmt.Sprintf("Action %d", i),
			Selector: fmt.Sprintf("#btn-%d", i),
			Visible:  true,
		})
	}
	for i := 0; i < 10; i++ {
		a.Links = append(a.Links, browser.Link{
			Href:     fmt.Sprintf("https://app.example.com/page-%d", i),
			Selector: fmt.Sprintf("a[href='https://app.example.com/page-%d']", i),
			Internal: true,
		})
	}
	return a
}

func countByCategory(scenarios []Scenario) map[Category]int {
	counts := map[Category]int{}
	for _, sc := range scenarios {
		counts[sc.Category]++
	}
	return counts
}

func TestGenerateComprehensiveCounts(t *testing.T) {
	scenarios := Generate(richAnalysis(), TestTypeComprehensive)

	counts := countByCategory(scenarios)
	// 1 load + 5 clicks (capped from 6) + 2 forms + 3 links (capped from 10).
	if counts[CategoryFunctional] != 11 {
		t.Errorf("functional scenarios = %d, want 11", counts[CategoryFunctional])
	}
	if counts[CategoryAccessibility] != 1 {
		t.Errorf("accessibility scenarios = %d, want 1", counts[CategoryAccessibility])
	}
	if counts[CategoryPerformance] != 1 {
		t.Errorf("performance scenarios = %d, want 1", counts[CategoryPerformance])
	}
	if len(scenarios) != 13 {
		t.Errorf("total scenarios = %d, want 13", len(scenarios))
	}
}

func TestGenerateFunctionalOmitsAudits(t *testing.T) {
	scenarios := Generate(richAnalysis(), TestTypeFunctional)
	counts := countByCategory(scenarios)
	if counts[CategoryAccessibility] != 0 || counts[CategoryPerformance] != 0 {
		t.Errorf("functional run got audit scenarios: %v", counts)
	}
	if counts[CategoryFunctional] != 11 {
		t.Errorf("functional scenarios = %d, want 11", counts[CategoryFunctional])
	}
}

func TestGenerateAccessibilityType(t *testing.T) {
	scenarios := Generate(richAnalysis(), TestTypeAccessibility)
	counts := countByCategory(scenarios)
	if counts[CategoryAccessibility] != 1 {
		t.Errorf("accessibility scenarios = %d, want 1", counts[CategoryAccessibility])
	}
	if counts[CategoryPerformance] != 0 {
		t.Errorf("performance scenarios = %d, want 0", counts[CategoryPerformance])
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	analysis := richAnalysis()
	first := Generate(analysis, TestTypeComprehensive)
	for i := 0; i < 3; i++ {
		if got := Generate(analysis, TestTypeComprehensive); !reflect.DeepEqual(got, first) {
			t.Fatalf("generation %d differs from first", i)
		}
	}
}

func TestGenerateFormSteps(t *testing.T) {
	scenarios := Generate(richAnalysis(), TestTypeFunctional)

	var form *Scenario
	for i := range scenarios {
		if scenarios[i].ID == "form-1" {
			form = &scenarios[i]
			break
		}
	}
	if form == nil {
		t.Fatal("form-1 scenario missing")
	}

	// navigate, type email, type password, submit click
	if len(form.Steps) != 4 {
		t.Fatalf("form-1 has %d steps, want 4", len(form.Steps))
	}
	if form.Steps[1].Action != ActionType || form.Steps[1].Value != testEmail {
		t.Errorf("email step = %+v", form.Steps[1])
	}
	if form.Steps[2].Value != testPassword {
		t.Errorf("password step = %+v", form.Steps[2])
	}
	if form.Steps[3].Action != ActionClick || form.Steps[3].Selector != "#login-submit" {
		t.Errorf("submit step = %+v", form.Steps[3])
	}
}

func TestGenerateSkipsUntypableFields(t *testing.T) {
	scenarios := Generate(richAnalysis(), TestTypeFunctional)
	for _, sc := range scenarios {
		if sc.ID != "form-2" {
			continue
		}
		// navigate, type text, submit; checkbox is skipped.
		if len(sc.Steps) != 3 {
			t.Fatalf("form-2 has %d steps, want 3", len(sc.Steps))
		}
		if sc.Steps[1].Value != testText {
			t.Errorf("text step = %+v", sc.Steps[1])
		}
		return
	}
	t.Fatal("form-2 scenario missing")
}

func TestGenerateLinkSteps(t *testing.T) {
	a := &browser.PageAnalysis{
		URL: "https://example.com",
		Links: []browser.Link{
			{Href: "https://example.com/about", Selector: "#about-link", Internal: true},
			{Href: "https://example.com/bare", Internal: true},
		},
	}
	scenarios := Generate(a, TestTypeFunctional)

	var links []Scenario
	for _, sc := range scenarios {
		if sc.Category == CategoryFunctional && sc.ID != "load-test" {
			links = append(links, sc)
		}
	}
	if len(links) != 2 {
		t.Fatalf("got %d link scenarios, want 2", len(links))
	}

	// A link with a selector is followed by clicking the anchor itself.
	withSelector := links[0]
	if len(withSelector.Steps) != 3 {
		t.Fatalf("link-1 has %d steps, want 3", len(withSelector.Steps))
	}
	if withSelector.Steps[0].Action != ActionNavigate || withSelector.Steps[0].Value != a.URL {
		t.Errorf("link-1 must start on the analyzed page, got %+v", withSelector.Steps[0])
	}
	if withSelector.Steps[1].Action != ActionClick || withSelector.Steps[1].Selector != "#about-link" {
		t.Errorf("link-1 click step = %+v", withSelector.Steps[1])
	}

	// Without a selector the test falls back to direct navigation.
	bare := links[1]
	if len(bare.Steps) != 2 {
		t.Fatalf("link-2 has %d steps, want 2", len(bare.Steps))
	}
	if bare.Steps[0].Action != ActionNavigate || bare.Steps[0].Value != "https://example.com/bare" {
		t.Errorf("link-2 fallback step = %+v", bare.Steps[0])
	}
}

func TestGenerateSkipsInvisibleClickables(t *testing.T) {
	a := &browser.PageAnalysis{
		URL: "https://example.com",
		Clickables: []browser.Clickable{
			{Selector: "#hidden", Visible: false},
			{Selector: "#shown", Visible: true},
		},
	}
	scenarios := Generate(a, TestTypeFunctional)

	var clicks []Scenario
	for _, sc := range scenarios {
		if sc.Category == CategoryFunctional && len(sc.Steps) == 2 && sc.Steps[1].Action == ActionClick {
			clicks = append(clicks, sc)
		}
	}
	if len(clicks) != 1 {
		t.Fatalf("got %d click scenarios, want 1", len(clicks))
	}
	if clicks[0].Steps[1].Selector != "#shown" {
		t.Errorf("click targets %q, want #shown", clicks[0].Steps[1].Selector)
	}
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		passed, total int
		want          float64
	}{
		{0, 0, 0},
		{3, 4, 75},
		{4, 4, 100},
		{0, 5, 0},
	}
	for _, tt := range tests {
		if got := SuccessRate(tt.passed, tt.total); got != tt.want {
			t.Errorf("SuccessRate(%d, %d) = %v, want %v", tt.passed, tt.total, got, tt.want)
		}
	}
}
