package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// HTML writes surface views as HTML fragments.
type HTML struct {
	tmpl *template.Template
}

// NewHTML parses the embedded surface templates.
func NewHTML() (*HTML, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse surface templates: %w", err)
	}
	return &HTML{tmpl: tmpl}, nil
}

// WriteSurface renders the given surface of view to w. A surface that is not
// present in view writes nothing.
func (h *HTML) WriteSurface(w io.Writer, s Surface, view View) error {
	var (
		name string
		data any
	)
	switch s {
	case Drawer:
		if view.Drawer == nil {
			return nil
		}
		name, data = "drawer", view.Drawer
	case Page:
		if view.Page == nil {
			return nil
		}
		name, data = "page", view.Page
	case Checkout:
		if view.Checkout == nil {
			return nil
		}
		name, data = "checkout", view.Checkout
	case Badge:
		if view.Badge == nil {
			return nil
		}
		name, data = "badge", view.Badge
	default:
		return fmt.Errorf("write surface: %s is not a single surface", s)
	}

	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}
