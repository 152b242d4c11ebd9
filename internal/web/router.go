package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/sjando/jolecule/internal/structure"
	"github.com/sjando/jolecule/internal/view"
	webmw "github.com/sjando/jolecule/internal/web/middleware"
	"github.com/sjando/jolecule/pkg/health"
	"github.com/sjando/jolecule/pkg/metrics"
	pkgmw "github.com/sjando/jolecule/pkg/middleware"
	"github.com/sjando/jolecule/pkg/ratelimit"
)

// RouterConfig carries the optional cross-cutting pieces of the HTTP stack.
// Nil fields disable the corresponding middleware.
type RouterConfig struct {
	Metrics        *metrics.Metrics
	Limiter        *ratelimit.Limiter
	RateLimit      int
	RequestTimeout time.Duration
}

// Router assembles the HTTP surface:
//
//	GET  /                    home page
//	GET  /pdb/{id}            structure page
//	GET  /pdb/{id}.js         structure loader script
//	GET  /ajax/pdb/{pdb_id}   list views for a structure
//	POST /ajax/new_view       save or update a view
//	POST /ajax/pdb/delete     delete a view
//	GET  /ajax/user           current user nickname
//	GET  /health/live         liveness probe
//	GET  /health/ready        readiness probe
//
// Middleware order (outermost first): request ID, CORS, rate limiting,
// metrics, timeout.
func Router(pages *Pages, structures *structure.Handler, views *view.Handler, checker *health.Checker, opts RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", pages.Index)
	// Loader scripts and structure pages share the /pdb/ prefix; the .js
	// suffix picks between them.
	mux.HandleFunc("GET /pdb/{file}", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.PathValue("file"), ".js") {
			structures.Artifact(w, r)
			return
		}
		pages.Structure(w, r)
	})
	mux.HandleFunc("GET /ajax/pdb/{pdb_id}", views.List)
	mux.HandleFunc("POST /ajax/new_view", views.Save)
	mux.HandleFunc("POST /ajax/pdb/delete", views.Delete)
	mux.HandleFunc("GET /ajax/user", views.User)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if opts.RequestTimeout > 0 {
		chain = pkgmw.Timeout(opts.RequestTimeout)(chain)
	}
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	if opts.Limiter != nil {
		chain = webmw.RateLimit(opts.Limiter, opts.RateLimit)(chain)
	}
	chain = webmw.CORS(webmw.DefaultCORSConfig())(chain)
	chain = pkgmw.RequestID(chain)
	return chain
}
