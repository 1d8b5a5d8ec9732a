// Package render turns view models into HTML. Templates are embedded and
// parsed once; rendering is a pure function of the page model.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"metaexplorer/internal/view"
)

//go:embed templates
var templateFS embed.FS

// Renderer holds one template set per page name.
type Renderer struct {
	pages map[string]*template.Template
}

// document is the data handed to the layout.
type document struct {
	Name string
	Page view.Page
}

// New parses the layout and every page template.
func New() (*Renderer, error) {
	base, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		set, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout for %s: %w", name, err)
		}
		if _, err := set.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		r.pages[name] = set
	}
	return r, nil
}

// Document renders a page inside the full shell.
func (r *Renderer) Document(w io.Writer, p view.Page) error {
	set, err := r.lookup(p)
	if err != nil {
		return err
	}
	return set.ExecuteTemplate(w, "layout", document{Name: p.PageName(), Page: p})
}

// Fragment renders a partial update without the shell.
func (r *Renderer) Fragment(w io.Writer, p view.Page) error {
	set, err := r.lookup(p)
	if err != nil {
		return err
	}
	return set.ExecuteTemplate(w, "fragment", p)
}

func (r *Renderer) lookup(p view.Page) (*template.Template, error) {
	if p == nil {
		return nil, fmt.Errorf("render: nil page")
	}
	set, ok := r.pages[p.PageName()]
	if !ok {
		return nil, fmt.Errorf("render: no template for page %q", p.PageName())
	}
	return set, nil
}
