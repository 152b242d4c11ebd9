// Package web wires the public HTTP surface: the pages, the loader
// artifact, and the view ajax API, behind the shared middleware chain.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sjando/jolecule/internal/user"
	"github.com/sjando/jolecule/pkg/logger"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Pages renders the index and viewer pages from embedded templates.
type Pages struct {
	tmpl   *template.Template
	logger *slog.Logger
}

func NewPages() (*Pages, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing page templates: %w", err)
	}
	return &Pages{
		tmpl:   tmpl,
		logger: slog.Default().With("component", "pages"),
	}, nil
}

// Index handles GET /.
func (p *Pages) Index(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "index.html.tmpl", map[string]any{
		"Nickname": user.FromRequest(r),
	})
}

// Structure handles GET /pdb/{file} for non-script paths: the viewer page
// for one structure.
func (p *Pages) Structure(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "structure.html.tmpl", map[string]any{
		"StructureID": r.PathValue("file"),
		"Nickname":    user.FromRequest(r),
	})
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := p.tmpl.ExecuteTemplate(w, name, data); err != nil {
		logger.FromContext(r.Context()).Error("rendering page failed",
			"template", name,
			"error", err,
		)
	}
}
