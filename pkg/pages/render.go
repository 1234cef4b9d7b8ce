// Package pages contains the page models of the site and the renderer they hand their view
// data to.
package pages

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"go.uber.org/zap"
)

// ViewData is the data a page model hands to the renderer.
type ViewData map[string]any

// Renderer renders a named page with its view data.
type Renderer interface {
	Render(w io.Writer, name string, data ViewData) error
}

// TemplateRenderer renders html/template pages parsed from a filesystem.
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses every file in fsys matching patterns. Each page is a template
// defined by name, e.g. {{define "index"}}.
func NewTemplateRenderer(fsys fs.FS, patterns ...string) (*TemplateRenderer, error) {
	if len(patterns) == 0 {
		patterns = []string{"*.html"}
	}
	t, err := template.ParseFS(fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &TemplateRenderer{templates: t}, nil
}

// Render executes the template called name.
func (tr *TemplateRenderer) Render(w io.Writer, name string, data ViewData) error {
	if tr.templates.Lookup(name) == nil {
		return fmt.Errorf("template %q not found", name)
	}
	return tr.templates.ExecuteTemplate(w, name, data)
}

// writePage renders into a buffer first so a failing template never leaves a half written
// page behind, then sends it with status.
func writePage(w http.ResponseWriter, r *http.Request, renderer Renderer, logger *zap.Logger, name string, status int, data ViewData) {
	var buf bytes.Buffer
	if err := renderer.Render(&buf, name, data); err != nil {
		logger.Error("Failed to render page",
			zap.Error(err),
			zap.String("page", name),
			zap.String("path", r.URL.Path),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Debug("Failed to write page", zap.Error(err), zap.String("page", name))
	}
}
