package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/philpax/exoform-sub000/pkg/graph"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a script runs past the engine's Timeout.
	ErrTimeout = errors.New("engine: evaluation timed out")
	// ErrSuperseded is returned to a caller whose script finished after a
	// later Evaluate on the same engine had started.
	ErrSuperseded = errors.New("engine: evaluation superseded")
)

// outcome is what one evaluation goroutine hands back.
type outcome struct {
	scene *graph.Graph
	errs  []EvalError
	err   error
}

// run evaluates source on its own goroutine. An interpreter panic becomes
// a fatal error on the returned channel.
func (e *Engine) run(source string) <-chan outcome {
	out := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- outcome{err: fmt.Errorf("engine: panic during evaluation: %v", r)}
			}
		}()
		g, errs, err := e.evaluate(source)
		out <- outcome{scene: g, errs: errs, err: err}
	}()
	return out
}

// await waits for evaluation gen to finish. A scene from a generation that
// is no longer current is dropped. On timeout the interpreter is left to
// finish in the background and its result is discarded.
func (e *Engine) await(gen uint64, out <-chan outcome) (*graph.Graph, []EvalError, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-out:
		if e.generation.Load() != gen {
			return nil, nil, ErrSuperseded
		}
		return o.scene, o.errs, o.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
