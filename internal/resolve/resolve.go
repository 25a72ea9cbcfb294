// Package resolve implements ordered-candidate lookup: walk a priority list,
// skip candidates that are not available, and return the first one that can
// be turned into a value. The speaker audio chain and the viseme image chain
// are both instances of it.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when no candidate was both valid and materializable.
// Chains that end in a guaranteed tier never produce it.
var ErrExhausted = errors.New("resolve: all candidates exhausted")

// Observer receives tier decisions. The metrics package provides the
// prometheus-backed implementation.
type Observer interface {
	Selected(resolver, subject, tier string)
	Failed(resolver, tier string, err error)
}

// Attempt records what happened to a candidate that was not selected.
type Attempt struct {
	Index int
	Tier  string
	// Err is nil when the candidate was skipped as unavailable.
	Err error
}

// Skipped reports whether the candidate failed its validity check.
func (a Attempt) Skipped() bool { return a.Err == nil }

// Selection is the outcome of a successful Resolve.
type Selection[C, R any] struct {
	Index     int
	Tier      string
	Candidate C
	Value     R
	Attempts  []Attempt
}

// Resolver walks candidates of type C and produces a value of type R.
type Resolver[C, R any] struct {
	// Name identifies the chain in logs and metrics ("audio", "viseme").
	Name string

	Valid       func(C) bool
	Materialize func(ctx context.Context, c C) (R, error)
	Tier        func(C) string

	Observer Observer
	Logger   *slog.Logger
}

// Resolve returns the first candidate, in declaration order, that passes Valid
// and whose Materialize succeeds. Invalid candidates are skipped silently;
// materialization failures are logged and the walk continues. A cancelled
// context stops the walk and its error is returned.
func (r *Resolver[C, R]) Resolve(ctx context.Context, subject string, candidates []C) (Selection[C, R], error) {
	var sel Selection[C, R]
	logger := r.logger().With("resolver", r.Name, "subject", subject)

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return sel, err
		}

		tier := r.Tier(c)
		if !r.Valid(c) {
			logger.Debug("tier unavailable", "tier", tier, "index", i)
			sel.Attempts = append(sel.Attempts, Attempt{Index: i, Tier: tier})
			continue
		}

		v, err := r.Materialize(ctx, c)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sel, ctxErr
			}
			logger.Warn("tier failed, descending", "tier", tier, "index", i, "error", err)
			sel.Attempts = append(sel.Attempts, Attempt{Index: i, Tier: tier, Err: err})
			if r.Observer != nil {
				r.Observer.Failed(r.Name, tier, err)
			}
			continue
		}

		sel.Index = i
		sel.Tier = tier
		sel.Candidate = c
		sel.Value = v
		logger.Info("tier selected", "tier", tier, "index", i, "skipped", len(sel.Attempts))
		if r.Observer != nil {
			r.Observer.Selected(r.Name, subject, tier)
		}
		return sel, nil
	}

	return sel, fmt.Errorf("%w: %s %q tried %d candidates", ErrExhausted, r.Name, subject, len(candidates))
}

func (r *Resolver[C, R]) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
