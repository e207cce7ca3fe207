// Package filter implements the safety checks run on a pool before buying.
package filter

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

// Check is one predicate over a pool.
type Check interface {
	// Name identifies the check in logs.
	Name() string
	// Check reports whether the pool passes.
	Check(ctx context.Context, keys *domain.PoolKeys) (bool, error)
}

// Pool evaluates a set of checks concurrently. The pool passes when every
// check passes; an empty set always passes.
type Pool struct {
	checks []Check
	logger zerolog.Logger
}

// NewPool creates a Pool over checks.
func NewPool(logger zerolog.Logger, checks ...Check) *Pool {
	return &Pool{
		checks: checks,
		logger: logger.With().Str("component", "filter").Logger(),
	}
}

// Options selects the checks New enables.
type Options struct {
	CheckBurned    bool
	CheckRenounced bool
	CheckFreezable bool
	CheckMutable   bool
	MinPoolSize    decimal.Decimal
	MaxPoolSize    decimal.Decimal
}

// New builds the Pool for opts.
func New(rpc solana.RPCClient, opts Options, logger zerolog.Logger) *Pool {
	var checks []Check
	if opts.CheckBurned {
		checks = append(checks, NewBurn(rpc))
	}
	if opts.CheckRenounced || opts.CheckFreezable {
		checks = append(checks, NewMintAuthority(rpc, opts.CheckRenounced, opts.CheckFreezable))
	}
	if opts.CheckMutable {
		checks = append(checks, NewMutable(rpc))
	}
	if opts.MinPoolSize.IsPositive() || opts.MaxPoolSize.IsPositive() {
		checks = append(checks, NewPoolSize(rpc, opts.MinPoolSize, opts.MaxPoolSize))
	}
	return NewPool(logger, checks...)
}

// Len returns the number of checks.
func (p *Pool) Len() int {
	return len(p.checks)
}

// Evaluate runs all checks. The first check error is returned.
func (p *Pool) Evaluate(ctx context.Context, keys *domain.PoolKeys) (bool, error) {
	if len(p.checks) == 0 {
		return true, nil
	}

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range p.checks {
		g.Go(func() error {
			ok, err := c.Check(gctx, keys)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Name(), err)
			}
			if !ok {
				failed.Add(1)
				p.logger.Debug().
					Str("mint", keys.BaseMint.String()).
					Str("check", c.Name()).
					Msg("check failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return failed.Load() == 0, nil
}
