package hybrid

import (
	"strings"
	"testing"
)

func TestParseRenderMode(t *testing.T) {
	tests := map[string]RenderMode{
		"never":     RenderNever,
		"ALWAYS":    RenderAlways,
		" auto ":    RenderAuto,
		"":          RenderAuto,
		"sometimes": RenderAuto,
	}
	for in, want := range tests {
		if got := ParseRenderMode(in); got != want {
			t.Errorf("ParseRenderMode(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestShouldRender(t *testing.T) {
	shell := `<div id="app"></div>`
	full := "<html><body>" + strings.Repeat("paragraph text ", 100) + "</body></html>"

	tests := []struct {
		name         string
		haveRenderer bool
		mode         RenderMode
		screenshot   bool
		html         string
		want         bool
	}{
		{"no renderer even for screenshot", false, RenderAlways, true, shell, false},
		{"screenshot forces render", true, RenderAuto, true, full, true},
		{"screenshot overrides never", true, RenderNever, true, full, true},
		{"always renders full page", true, RenderAlways, false, full, true},
		{"auto renders shell", true, RenderAuto, false, shell, true},
		{"auto keeps full page static", true, RenderAuto, false, full, false},
		{"shell renders whenever a renderer exists", true, RenderNever, false, shell, true},
		{"never keeps full page static", true, RenderNever, false, full, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRender(tt.haveRenderer, tt.mode, tt.screenshot, tt.html); got != tt.want {
				t.Errorf("ShouldRender() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecide_Reason(t *testing.T) {
	d := Decide(true, RenderAuto, false, "")
	if !d.Render || d.Reason == "" {
		t.Errorf("expected render with reason for empty HTML, got %+v", d)
	}
}
