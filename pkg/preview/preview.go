// Package preview turns scene scripts and live room graphs into JSON meshes
// for browser viewers.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/golang/glog"

	"github.com/philpax/exoform-sub000/pkg/engine"
	"github.com/philpax/exoform-sub000/pkg/graph"
	"github.com/philpax/exoform-sub000/pkg/kernel"
	"github.com/philpax/exoform-sub000/pkg/tessellate"
)

// maxScriptSize bounds the body of a script preview request.
const maxScriptSize = 1 << 20

// MeshData is the JSON mesh format sent to viewers.
type MeshData struct {
	Vertices  []float32 `json:"vertices"`
	Normals   []float32 `json:"normals"`
	Colours   []float32 `json:"colours"`
	Indices   []uint32  `json:"indices"`
	Triangles int       `json:"triangles"`
}

// ErrorData is a JSON-serializable script or meshing error.
type ErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// Result is what a preview request returns. Mesh is nil when the scene is
// empty or could not be meshed.
type Result struct {
	Nodes  int         `json:"nodes"`
	Mesh   *MeshData   `json:"mesh"`
	Errors []ErrorData `json:"errors"`
}

// GraphSource looks up a running room's graph. It returns a nil graph for
// rooms that are not running.
type GraphSource func(ctx context.Context, room string) (*graph.Graph, error)

// Previewer evaluates scripts and meshes graphs with one kernel.
type Previewer struct {
	// mu serialises evaluations; the engine treats an overlapping call as
	// superseding the one in flight.
	mu     sync.Mutex
	engine *engine.Engine
	kernel kernel.Kernel
}

// New creates a previewer meshing with k.
func New(k kernel.Kernel) *Previewer {
	return &Previewer{engine: engine.NewEngine(), kernel: k}
}

// Evaluate runs a scene script and meshes the resulting graph.
func (p *Previewer) Evaluate(source string) Result {
	p.mu.Lock()
	g, evalErrs, err := p.engine.Evaluate(source)
	p.mu.Unlock()
	if err != nil {
		glog.Warningf("preview: evaluate: %v", err)
		return Result{Errors: []ErrorData{{Message: err.Error()}}}
	}
	if len(evalErrs) > 0 {
		res := Result{Errors: make([]ErrorData, len(evalErrs))}
		for i, e := range evalErrs {
			res.Errors[i] = ErrorData{Line: e.Line, Col: e.Col, Message: e.Message}
		}
		return res
	}
	return p.Graph(g)
}

// Graph meshes g. A root with no children is an empty scene, not an error.
func (p *Previewer) Graph(g *graph.Graph) Result {
	res := Result{Nodes: g.NodeCount(), Errors: []ErrorData{}}
	if root := g.Root(); root != nil && len(root.ChildIDs()) == 0 {
		return res
	}

	m, err := tessellate.Tessellate(g, p.kernel)
	if err != nil {
		if errors.Is(err, tessellate.ErrBackend) {
			glog.Warningf("preview: tessellate: %v", err)
		} else {
			glog.V(1).Infof("preview: tessellate: %v", err)
		}
		res.Errors = append(res.Errors, ErrorData{Message: err.Error()})
		return res
	}
	res.Mesh = &MeshData{
		Vertices:  m.Vertices,
		Normals:   m.Normals,
		Colours:   m.Colours,
		Indices:   m.Indices,
		Triangles: m.TriangleCount(),
	}
	return res
}

// Handler serves
//
//	POST /preview            mesh the script in the request body
//	GET  /rooms/{name}/mesh  mesh a running room's graph
func Handler(p *Previewer, rooms GraphSource) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /preview", func(w http.ResponseWriter, r *http.Request) {
		src, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxScriptSize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "script too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, p.Evaluate(string(src)))
	})
	mux.HandleFunc("GET /rooms/{name}/mesh", func(w http.ResponseWriter, r *http.Request) {
		g, err := rooms(r.Context(), r.PathValue("name"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if g == nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, p.Graph(g))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("preview: writing response: %v", err)
	}
}
