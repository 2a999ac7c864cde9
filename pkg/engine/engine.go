// Package engine evaluates scene scripts into a seed graph. Scripts are
// zygomys Lisp run in a sandbox with one builtin per node variant, e.g.
//
//	(scene
//	  (subtract
//	    (box (vec3 1 1 1) :rounding 0.1)
//	    (translate (vec3 0 0 0.5) (sphere 0.8))))
package engine

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/philpax/exoform-sub000/pkg/graph"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandboxed environment.
type Engine struct {
	// Timeout bounds a single evaluation. Zero means EvalTimeout.
	Timeout time.Duration

	// generation numbers Evaluate calls; only the latest may return a scene.
	generation atomic.Uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{Timeout: EvalTimeout}
}

// Evaluate takes Lisp source code and produces a new scene graph.
//
// Return semantics:
//   - On success: returns graph + nil errors + nil error
//   - On parse/eval failure: returns nil graph + eval errors + nil error
//   - On fatal failure (ErrTimeout, ErrSuperseded, panic): returns nil + nil + error
//
// A script that never calls scene and whose last value is not a shape
// yields the default graph.
func (e *Engine) Evaluate(source string) (*graph.Graph, []EvalError, error) {
	gen := e.generation.Add(1)
	return e.await(gen, e.run(source))
}

// EvaluateFile reads a scene script from disk and evaluates it. Eval
// errors are folded into the returned error.
func (e *Engine) EvaluateFile(path string) (*graph.Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene script: %w", err)
	}
	g, evalErrs, err := e.Evaluate(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		msgs := make([]string, len(evalErrs))
		for i, ee := range evalErrs {
			msgs[i] = ee.Error()
		}
		return nil, fmt.Errorf("%s: %s", path, strings.Join(msgs, "; "))
	}
	glog.V(1).Infof("evaluated scene script %s: %d nodes", path, g.NodeCount())
	return g, nil
}

func (e *Engine) evaluate(source string) (*graph.Graph, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return graph.NewDefault(), nil, nil
	}

	// Sandbox mode prevents scripts from touching the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	sc := &sceneBuilder{}
	registerBuiltins(env, sc)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	last, err := env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	root := sc.root
	if root == nil {
		if s, ok := last.(*sexpShape); ok {
			root = s
		}
	}
	if root == nil {
		return graph.NewDefault(), nil, nil
	}
	g, err := root.build()
	if err != nil {
		return nil, []EvalError{{Message: err.Error()}}, nil
	}
	return g, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
