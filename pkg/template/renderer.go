package template

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates/*.html
var files embed.FS

var ErrUnknownTemplate = errors.New("unknown email template")

// Renderer turns a template id and its data into an HTML email body.
type Renderer struct {
	templates map[string]*template.Template
	globals   map[string]any
}

// NewRenderer parses every embedded email template against the shared
// layout. globals are visible to all templates unless the job data sets
// the same key.
func NewRenderer(globals map[string]any) (*Renderer, error) {
	layout, err := template.New("layout").Funcs(sprig.FuncMap()).ParseFS(files, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email layout: %w", err)
	}

	entries, err := files.ReadDir("templates")
	if err != nil {
		return nil, err
	}

	r := &Renderer{templates: make(map[string]*template.Template), globals: globals}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".html")
		if name == "layout" {
			continue
		}

		tmpl, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := tmpl.ParseFS(files, "templates/"+entry.Name()); err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Has reports whether id names a known template.
func (r *Renderer) Has(id string) bool {
	_, ok := r.templates[id]
	return ok
}

func (r *Renderer) Render(id string, data map[string]any) (string, error) {
	tmpl, ok := r.templates[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
	}

	merged := make(map[string]any, len(r.globals)+len(data))
	for k, v := range r.globals {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", merged); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", id, err)
	}
	return buf.String(), nil
}

// RenderString renders a plain-text inline template such as a subject
// line. Data is not HTML escaped.
func RenderString(templateStr string, data interface{}) (string, error) {
	if !strings.Contains(templateStr, "{{") {
		return templateStr, nil
	}

	tmpl, err := texttemplate.New("inline").Funcs(sprig.TxtFuncMap()).Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
