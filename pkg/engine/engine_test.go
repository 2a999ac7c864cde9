package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/philpax/exoform-sub000/pkg/graph"
)

// Scripts that build nothing fall back to the default scene.
func TestEvaluateDefaultScene(t *testing.T) {
	for name, src := range map[string]string{
		"empty":       "",
		"whitespace":  "   \n\t  \n  ",
		"comment":     "; nothing here yet\n",
		"number":      "(+ 1 2)",
		"definitions": "(def r 2)\n(def h (* r 3))\nh",
	} {
		t.Run(name, func(t *testing.T) {
			g, evalErrs, err := NewEngine().Evaluate(src)
			if err != nil || len(evalErrs) > 0 {
				t.Fatalf("Evaluate: %v %v", evalErrs, err)
			}
			if !g.Equal(graph.NewDefault()) {
				t.Errorf("expected the default scene, got %d nodes", g.NodeCount())
			}
		})
	}
}

func TestEvaluateSceneShapes(t *testing.T) {
	tests := []struct {
		src   string
		nodes int
		root  graph.DataKind
	}{
		{"(scene (union (sphere 1)))", 2, graph.KindUnion},
		{"(scene (subtract (box) (sphere 0.6) (cylinder)))", 4, graph.KindSubtract},
		{"(def part (torus 1 0.2))\n(scene (union part (cone)))", 3, graph.KindUnion},
		// Without scene the last shape becomes the root.
		{"(+ 1 2)\n(intersect (sphere) (box))", 3, graph.KindIntersect},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			g, evalErrs, err := NewEngine().Evaluate(tt.src)
			if err != nil || len(evalErrs) > 0 {
				t.Fatalf("Evaluate: %v %v", evalErrs, err)
			}
			if g.NodeCount() != tt.nodes {
				t.Errorf("nodes = %d, want %d", g.NodeCount(), tt.nodes)
			}
			if k := g.Root().Data.Kind(); k != tt.root {
				t.Errorf("root = %s, want %s", k, tt.root)
			}
			if errs := graph.Errors(graph.Validate(g)); len(errs) > 0 {
				t.Errorf("Validate: %v", errs)
			}
		})
	}
}

// Script mistakes come back as EvalErrors with no graph and no fatal error.
func TestEvaluateScriptErrors(t *testing.T) {
	for name, src := range map[string]string{
		"unclosed scene":    "(scene (union (sphere 1)",
		"unknown shape":     "(scene (union (blob 1)))",
		"undefined symbol":  "(scene (union (sphere radius)))",
		"negative radius":   "(scene (union (sphere -1)))",
		"unclosed 2nd line": "(def r 1)\n(scene (union (sphere r)",
	} {
		t.Run(name, func(t *testing.T) {
			g, evalErrs, err := NewEngine().Evaluate(src)
			if err != nil {
				t.Fatalf("expected eval errors, got fatal: %v", err)
			}
			if g != nil {
				t.Errorf("expected no graph, got %d nodes", g.NodeCount())
			}
			if len(evalErrs) == 0 || evalErrs[0].Message == "" {
				t.Fatalf("expected a described eval error, got %v", evalErrs)
			}
		})
	}
}

func TestEvalErrorString(t *testing.T) {
	if got := (EvalError{Line: 5, Message: "unknown shape blob"}).Error(); got != "line 5: unknown shape blob" {
		t.Errorf("got %q", got)
	}
	if got := (EvalError{Message: "radius must not be negative"}).Error(); got != "radius must not be negative" {
		t.Errorf("got %q", got)
	}
}

// Evaluating the same script twice builds equal scenes, so rooms seeded
// from it start identical.
func TestEvaluateDeterministic(t *testing.T) {
	const src = "(scene (union :factor 0.2 (sphere 1 :at (vec3 1 0 0)) (box :rgb (vec3 1 0 0))))"
	eng := NewEngine()
	first, evalErrs, err := eng.Evaluate(src)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("Evaluate: %v %v", evalErrs, err)
	}
	for i := 0; i < 3; i++ {
		g, _, err := eng.Evaluate(src)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if !g.Equal(first) {
			t.Errorf("iteration %d: scene differs", i)
		}
	}
}

func TestAwaitTimeout(t *testing.T) {
	eng := &Engine{Timeout: 20 * time.Millisecond}
	gen := eng.generation.Add(1)

	start := time.Now()
	_, _, err := eng.await(gen, make(chan outcome))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want %v", err, ErrTimeout)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

// A scene finished after a newer Evaluate started is never returned.
func TestAwaitSuperseded(t *testing.T) {
	eng := NewEngine()
	stale := eng.generation.Add(1)
	out := eng.run("(scene (union (sphere 1)))")

	if _, _, err := eng.Evaluate("(scene (union (box)))"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	g, _, err := eng.await(stale, out)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want %v", err, ErrSuperseded)
	}
	if g != nil {
		t.Error("superseded evaluation returned a scene")
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		msg      string
		wantLine int
		wantMsg  string
	}{
		{"Error on line 5: unexpected token\n", 5, "unexpected token"},
		{"error on line 12: missing paren", 12, "missing paren"},
		{"line 3: unknown shape blob", 3, "unknown shape blob"},
		{"radius must not be negative", 0, "radius must not be negative"},
	}
	for _, tt := range tests {
		errs := parseZygomysError(errors.New(tt.msg))
		if len(errs) != 1 {
			t.Fatalf("%q: got %d errors", tt.msg, len(errs))
		}
		if errs[0].Line != tt.wantLine || errs[0].Message != tt.wantMsg {
			t.Errorf("%q: got line %d %q, want line %d %q", tt.msg, errs[0].Line, errs[0].Message, tt.wantLine, tt.wantMsg)
		}
	}
}

func TestEvaluateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.lisp")
	src := "; a lone sphere\n(scene (union (sphere 1)))\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := NewEngine().EvaluateFile(path)
	if err != nil {
		t.Fatalf("EvaluateFile: %v", err)
	}
	if g.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.NodeCount())
	}

	if err := os.WriteFile(path, []byte("(scene (sphere -1))"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = NewEngine().EvaluateFile(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("expected an error naming %s, got %v", path, err)
	}
	if _, err := NewEngine().EvaluateFile(filepath.Join(dir, "missing.lisp")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
