package healing

import (
	"reflect"
	"testing"
)

func TestAlternativeSelectors(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		want     []string
	}{
		{
			name:     "id selector",
			selector: "#login-btn",
			want: []string{
				"[id='login-btn']",
				"[data-testid='login-btn']",
				"[name='login-btn']",
			},
		},
		{
			name:     "class selector",
			selector: ".submit",
			want: []string{
				"[class*='submit']",
				"[data-testid*='submit']",
				"[aria-label*='submit']",
			},
		},
		{
			name:     "plain selector",
			selector: "main-nav",
			want: []string{
				"[data-testid='main-nav']",
				"[aria-label='main-nav']",
				"[title='main-nav']",
			},
		},
		{
			name:     "tag selector treated as plain",
			selector: "button",
			want: []string{
				"[data-testid='button']",
				"[aria-label='button']",
				"[title='button']",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AlternativeSelectors(tt.selector)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AlternativeSelectors(%q) = %v, want %v", tt.selector, got, tt.want)
			}
		})
	}
}
