package preview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/philpax/exoform-sub000/pkg/graph"
	"github.com/philpax/exoform-sub000/pkg/kernel/sdfx"
)

func newPreviewer() *Previewer {
	return New(sdfx.NewWithResolution(24))
}

// TestMugExample exercises the full pipeline: script, engine, graph,
// tessellation, JSON mesh.
func TestMugExample(t *testing.T) {
	source, err := os.ReadFile("../../examples/mug.lisp")
	if err != nil {
		t.Fatalf("reading mug.lisp: %v", err)
	}

	res := newPreviewer().Evaluate(string(source))
	for _, e := range res.Errors {
		t.Errorf("error (line %d): %s", e.Line, e.Message)
	}
	if res.Mesh == nil {
		t.Fatal("expected a mesh")
	}
	assert.Equal(t, res.Nodes > 5, true)
	assert.Equal(t, res.Mesh.Triangles > 0, true)
	assert.Equal(t, len(res.Mesh.Vertices), len(res.Mesh.Normals))
	assert.Equal(t, len(res.Mesh.Vertices), len(res.Mesh.Colours))
	assert.Equal(t, len(res.Mesh.Indices), 3*res.Mesh.Triangles)
}

func TestEmptySource(t *testing.T) {
	for _, src := range []string{"", "   \n\t ", "; just a comment\n"} {
		res := newPreviewer().Evaluate(src)
		assert.Equal(t, len(res.Errors), 0)
		assert.Equal(t, res.Mesh, (*MeshData)(nil))
		assert.Equal(t, res.Nodes, 1)
	}
}

func TestSyntaxError(t *testing.T) {
	res := newPreviewer().Evaluate("(+ 1 2)\n(scene (sphere 1)")
	if len(res.Errors) == 0 {
		t.Fatal("expected an error for unmatched parens")
	}
	assert.Equal(t, res.Mesh, (*MeshData)(nil))
	assert.NotEqual(t, res.Errors[0].Message, "")
}

func TestMeshingError(t *testing.T) {
	res := newPreviewer().Evaluate("(scene (union (sphere 0)))")
	assert.Equal(t, res.Mesh, (*MeshData)(nil))
	assert.Equal(t, len(res.Errors), 1)
	assert.Equal(t, res.Errors[0].Line, 0)
}

func TestRapidEvaluation(t *testing.T) {
	p := newPreviewer()
	sources := []string{
		"(scene (union (sphere 1)))",
		"(+ 1 2)",
		"",
		"(scene (union (box (vec3 1 1 1))))",
		"(scene (union",
		"(scene (union (torus 1 0.2)))",
	}
	for i, src := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked: %v", i, r)
				}
			}()
			p.Evaluate(src)
		}()
	}
}

func TestHandler(t *testing.T) {
	room := graph.NewDefault()
	if _, err := room.AddChild(room.RootNodeID, nil, graph.Sphere{Radius: 1}); err != nil {
		t.Fatal(err)
	}
	rooms := func(_ context.Context, name string) (*graph.Graph, error) {
		switch name {
		case "R":
			return room, nil
		case "down":
			return nil, errors.New("coordinator stopped")
		}
		return nil, nil
	}
	srv := httptest.NewServer(Handler(newPreviewer(), rooms))
	defer srv.Close()

	decode := func(resp *http.Response) Result {
		t.Helper()
		defer resp.Body.Close()
		assert.Equal(t, resp.StatusCode, http.StatusOK)
		assert.Equal(t, resp.Header.Get("Content-Type"), "application/json")
		var res Result
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatal(err)
		}
		return res
	}

	resp, err := http.Get(srv.URL + "/rooms/R/mesh")
	assert.Equal(t, err, nil)
	res := decode(resp)
	assert.Equal(t, res.Nodes, 2)
	assert.Equal(t, res.Mesh != nil && res.Mesh.Triangles > 0, true)

	resp, err = http.Post(srv.URL+"/preview", "text/plain", strings.NewReader("(scene (union (cone 1 2)))"))
	assert.Equal(t, err, nil)
	res = decode(resp)
	assert.Equal(t, res.Nodes, 2)
	assert.Equal(t, res.Mesh != nil, true)

	for path, code := range map[string]int{
		"/rooms/missing/mesh": http.StatusNotFound,
		"/rooms/down/mesh":    http.StatusServiceUnavailable,
	} {
		resp, err := http.Get(srv.URL + path)
		assert.Equal(t, err, nil)
		resp.Body.Close()
		assert.Equal(t, resp.StatusCode, code)
	}

	resp, err = http.Post(srv.URL+"/preview", "text/plain", strings.NewReader(strings.Repeat(" ", maxScriptSize+1)))
	assert.Equal(t, err, nil)
	resp.Body.Close()
	assert.Equal(t, resp.StatusCode, http.StatusRequestEntityTooLarge)
}
