// Package server implements the read-only job preview server behind
// "pcbforge serve". It renders the classified artwork of every layer
// a job references and summarizes the outputs the job would build.
package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/artwork/drill"
	"github.com/pcbforge/pcbforge/pkg/artwork/gerber"
	"github.com/pcbforge/pcbforge/pkg/cache"
	"github.com/pcbforge/pcbforge/pkg/config"
	"github.com/pcbforge/pcbforge/pkg/contour"
	"github.com/pcbforge/pcbforge/pkg/observability"
	"github.com/pcbforge/pcbforge/pkg/render"
)

// renderTTL bounds how long rendered layer previews stay cached.
const renderTTL = 24 * time.Hour

// Server serves a read-only preview of one resolved job.
type Server struct {
	job    *config.Job
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger

	// layers maps the URL-safe layer name to its absolute path.
	layers map[string]layerRef
}

type layerRef struct {
	Path  string
	Drill bool
}

// New creates a preview server for a resolved job. A nil cache
// disables preview caching; a nil keyer uses the default key scheme.
func New(job *config.Job, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Server {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}

	layers := map[string]layerRef{}
	for _, out := range job.Outputs {
		for _, st := range out.Stages {
			name := filepath.Base(st.ArtworkPath)
			layers[name] = layerRef{Path: st.ArtworkPath, Drill: st.DrillSource}
		}
	}

	return &Server{job: job, cache: c, keyer: keyer, logger: logger, layers: layers}
}

// Handler builds the HTTP routing tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/", s.handleIndex)
	r.Get("/api/job", s.handleJob)
	r.Get("/layers/{layer}", s.handleLayer)

	return r
}

// observe reports requests to the logger and the server hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hooks := observability.Server()
		hooks.OnRequest(req.Context(), req.Method, req.URL.Path)
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		duration := time.Since(start)
		hooks.OnResponse(req.Context(), req.Method, req.URL.Path, ww.Status(), duration)
		s.logger.Debug("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"duration", duration)
	})
}

// LayerNames returns the served layer names in sorted order.
func (s *Server) LayerNames() []string {
	names := make([]string, 0, len(s.layers))
	for name := range s.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// handleLayer renders one referenced artwork file as an SVG board
// view. Renders are cached by file content, so edits to the artwork
// show up on reload.
func (s *Server) handleLayer(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "layer")
	ref, ok := s.layers[name]
	if !ok {
		// Both edge.gbr and edge.gbr.svg address the same layer.
		trimmed := strings.TrimSuffix(name, ".svg")
		if ref, ok = s.layers[trimmed]; !ok {
			http.NotFound(w, req)
			return
		}
		name = trimmed
	}

	data, err := os.ReadFile(ref.Path)
	if err != nil {
		s.logger.Error("reading layer", "layer", name, "err", err)
		http.Error(w, "layer unreadable", http.StatusInternalServerError)
		return
	}

	ctx := req.Context()
	hooks := observability.Cache()
	key := s.keyer.RenderKey(name, cache.Digest(data))

	svg, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("render cache read failed", "layer", name, "err", err)
	}
	if hit {
		hooks.OnCacheHit(ctx, "render")
	} else {
		hooks.OnCacheMiss(ctx, "render")
		svg, err = renderLayer(name, data, ref.Drill)
		if err != nil {
			s.logger.Error("rendering layer", "layer", name, "err", err)
			http.Error(w, "layer render failed", http.StatusUnprocessableEntity)
			return
		}
		if err := s.cache.Set(ctx, key, svg, renderTTL); err != nil {
			s.logger.Warn("render cache write failed", "layer", name, "err", err)
		} else {
			hooks.OnCacheSet(ctx, "render", len(svg))
		}
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(svg)
}

// renderLayer interprets and classifies artwork bytes into the SVG
// board view.
func renderLayer(name string, data []byte, drillSource bool) ([]byte, error) {
	var parser artwork.Parser
	if drillSource {
		parser = drill.Parser{}
	} else {
		parser = gerber.Parser{}
	}
	art, err := parser.Parse(name, data, artwork.Options{})
	if err != nil {
		return nil, err
	}
	polys, err := contour.Build(art.Primitives, contour.Options{})
	if err != nil {
		return nil, err
	}
	forest, err := contour.Classify(polys)
	if err != nil {
		return nil, err
	}
	return render.ForestSVG(forest, render.SVGOptions{Outlines: true}), nil
}

// handleIndex serves a minimal HTML overview with inline layer
// previews.
func (s *Server) handleIndex(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%s</title>", htmlEscape(s.job.ProjectName))
	fmt.Fprint(w, `<style>
body { font-family: system-ui, sans-serif; margin: 2rem; background: #111; color: #ddd; }
h1 { color: #6cc; }
table { border-collapse: collapse; margin-bottom: 2rem; }
td, th { padding: 0.3rem 0.8rem; border-bottom: 1px solid #333; text-align: left; }
img { max-width: 26rem; border: 1px solid #333; margin: 0.5rem; }
</style></head><body>`)

	fmt.Fprintf(w, "<h1>%s</h1>", htmlEscape(s.job.ProjectName))
	if s.job.BoardVersion != "" {
		fmt.Fprintf(w, "<p>board version %s</p>", htmlEscape(s.job.BoardVersion))
	}

	fmt.Fprint(w, "<table><tr><th>Output</th><th>Stage</th><th>Operation</th><th>Artwork</th></tr>")
	for _, out := range s.job.Outputs {
		for _, st := range out.Stages {
			fmt.Fprintf(w, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				htmlEscape(out.File), htmlEscape(st.Name),
				htmlEscape(string(st.Operation)), htmlEscape(filepath.Base(st.ArtworkPath)))
		}
	}
	fmt.Fprint(w, "</table>")

	for _, name := range s.LayerNames() {
		fmt.Fprintf(w, `<a href="/layers/%s"><img src="/layers/%s" alt="%s"></a>`,
			name, name, htmlEscape(name))
	}
	fmt.Fprint(w, "</body></html>")
}

// jobSummary is the /api/job response document.
type jobSummary struct {
	ProjectName   string          `json:"project_name"`
	BoardVersion  string          `json:"board_version,omitempty"`
	AlignBackside bool            `json:"align_backside"`
	Layers        []string        `json:"layers"`
	Outputs       []outputSummary `json:"outputs"`
}

type outputSummary struct {
	File   string         `json:"file"`
	Stages []stageSummary `json:"stages"`
}

type stageSummary struct {
	Name      string `json:"name"`
	Operation string `json:"operation"`
	Artwork   string `json:"artwork"`
	Machine   string `json:"machine"`
	Tool      string `json:"tool"`
	Backside  bool   `json:"backside,omitempty"`
}

// handleJob serves the job summary as JSON.
func (s *Server) handleJob(w http.ResponseWriter, req *http.Request) {
	doc := jobSummary{
		ProjectName:   s.job.ProjectName,
		BoardVersion:  s.job.BoardVersion,
		AlignBackside: s.job.AlignBackside,
		Layers:        s.LayerNames(),
	}
	for _, out := range s.job.Outputs {
		o := outputSummary{File: out.File}
		for _, st := range out.Stages {
			o.Stages = append(o.Stages, stageSummary{
				Name:      st.Name,
				Operation: string(st.Operation),
				Artwork:   filepath.Base(st.ArtworkPath),
				Machine:   st.MachineName,
				Tool:      st.Tool.Name,
				Backside:  st.Backside,
			})
		}
		doc.Outputs = append(doc.Outputs, o)
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		s.logger.Error("encoding job summary", "err", err)
	}
}

// htmlEscape escapes text for HTML element content.
func htmlEscape(s string) string {
	return template.HTMLEscapeString(s)
}
