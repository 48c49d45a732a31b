// internal/engine/hybrid/strategy.go
package hybrid

import "strings"

// RenderMode controls when the browser renderer is used
type RenderMode string

const (
	// RenderNever keeps every request on the static path. It is applied by
	// not building a renderer at all; Decide treats it like RenderAuto.
	RenderNever RenderMode = "never"
	// RenderAuto renders only when the static page looks like a shell
	RenderAuto RenderMode = "auto"
	// RenderAlways renders every page that passed the static fetch
	RenderAlways RenderMode = "always"
)

// String returns the string representation of the mode
func (m RenderMode) String() string {
	return string(m)
}

// ParseRenderMode converts a config value into a RenderMode.
// Unknown values resolve to RenderAuto.
func ParseRenderMode(s string) RenderMode {
	switch RenderMode(strings.ToLower(strings.TrimSpace(s))) {
	case RenderNever:
		return RenderNever
	case RenderAlways:
		return RenderAlways
	default:
		return RenderAuto
	}
}

// Decision explains why a render pass was or wasn't chosen
type Decision struct {
	Render bool
	Reason string
}

// Decide picks between keeping the static result and rendering. With a
// renderer present it renders for a screenshot, in RenderAlways mode, or
// when the static page looks like a shell.
func Decide(haveRenderer bool, mode RenderMode, wantScreenshot bool, html string) Decision {
	if !haveRenderer {
		return Decision{Reason: "renderer unavailable"}
	}
	if wantScreenshot {
		return Decision{Render: true, Reason: "screenshot requested"}
	}

	if mode == RenderAlways {
		return Decision{Render: true, Reason: "render mode always"}
	}

	if LooksLikeEmptyShell(html) {
		return Decision{Render: true, Reason: "static page looks like a shell"}
	}
	return Decision{Reason: "static content sufficient"}
}

// ShouldRender is Decide without the reason
func ShouldRender(haveRenderer bool, mode RenderMode, wantScreenshot bool, html string) bool {
	return Decide(haveRenderer, mode, wantScreenshot, html).Render
}
