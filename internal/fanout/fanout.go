// Package fanout runs independent section loads in parallel. Every branch
// has its own timeout and reports its own outcome; one failing branch never
// cancels or fails the others.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "fansite/internal/log"
)

// Outcome is the settled state of one branch.
type Outcome struct {
	Name     string        `json:"name"`
	Err      error         `json:"-"`
	Elapsed  time.Duration `json:"elapsed"`
	TimedOut bool          `json:"timed_out"`
}

func (o Outcome) OK() bool { return o.Err == nil }

// Group collects branches started with Go.
type Group struct {
	ctx     context.Context
	timeout time.Duration

	eg errgroup.Group

	mu       sync.Mutex
	outcomes []Outcome
}

// New returns a Group whose branches derive from ctx. timeout <= 0 means
// branches only end with ctx.
func New(ctx context.Context, timeout time.Duration) *Group {
	return &Group{ctx: ctx, timeout: timeout}
}

type result[T any] struct {
	v   T
	err error
}

// Go starts fn as a named branch. On success the value is stored in dst;
// on error or timeout dst keeps its current value. A branch that outlives
// its timeout is abandoned and its late result dropped.
func Go[T any](g *Group, name string, dst *T, fn func(ctx context.Context) (T, error)) {
	g.mu.Lock()
	idx := len(g.outcomes)
	g.outcomes = append(g.outcomes, Outcome{Name: name})
	g.mu.Unlock()

	g.eg.Go(func() error {
		ctx := g.ctx
		cancel := context.CancelFunc(func() {})
		if g.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
		}
		defer cancel()

		started := time.Now()
		ch := make(chan result[T], 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					ch <- result[T]{err: fmt.Errorf("section %s panicked: %v", name, r)}
				}
			}()
			v, err := fn(ctx)
			ch <- result[T]{v: v, err: err}
		}()

		out := Outcome{Name: name}
		select {
		case r := <-ch:
			out.Err = r.err
			if r.err == nil {
				*dst = r.v
			}
		case <-ctx.Done():
			out.Err = ctx.Err()
		}
		out.Elapsed = time.Since(started)
		out.TimedOut = errors.Is(out.Err, context.DeadlineExceeded)

		if out.Err != nil {
			appLog.Warn("section failed", "section", name, "timed_out", out.TimedOut,
				"elapsed_ms", out.Elapsed.Milliseconds(), "error", out.Err.Error())
		}

		g.mu.Lock()
		g.outcomes[idx] = out
		g.mu.Unlock()
		return nil
	})
}

// Wait blocks until every branch has settled and returns the outcomes in
// the order the branches were started.
func (g *Group) Wait() []Outcome {
	_ = g.eg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Outcome, len(g.outcomes))
	copy(out, g.outcomes)
	return out
}
