package healing

import (
	"fmt"
	"strings"
)

// AlternativeSelectors generates fallback selectors for a CSS selector whose
// target could not be found. ID and class selectors map to attribute lookups
// that survive id/class renames; anything else falls back to common
// accessibility attributes. Best effort only, the candidates are not
// guaranteed to match an equivalent element.
func AlternativeSelectors(selector string) []string {
	switch {
	case strings.HasPrefix(selector, "#"):
		name := selector[1:]
		return []string{
			fmt.Sprintf("[id='%s']", name),
			fmt.Sprintf("[data-testid='%s']", name),
			fmt.Sprintf("[name='%s']", name),
		}
	case strings.HasPrefix(selector, "."):
		name := selector[1:]
		return []string{
			fmt.Sprintf("[class*='%s']", name),
			fmt.Sprintf("[data-testid*='%s']", name),
			fmt.Sprintf("[aria-label*='%s']", name),
		}
	default:
		return []string{
			fmt.Sprintf("[data-testid='%s']", selector),
			fmt.Sprintf("[aria-label='%s']", selector),
			fmt.Sprintf("[title='%s']", selector),
		}
	}
}
