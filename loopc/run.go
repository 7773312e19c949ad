package loopc

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sieveir/sievekit/ir"
)

// Run drives every iteration of loop through iterate, in the order
// Classify(loop) permits: concurrently (bounded by the host's GOMAXPROCS
// via errgroup) for Shortcut, strictly sequential otherwise. iterate
// must be safe to call concurrently when Classify returns Shortcut — the
// caller is responsible for giving each iteration its own isolated
// state (e.g. a separate wire.Scope), since loopc has no visibility into
// whatever iterate closes over.
func (b *Builder) Run(ctx context.Context, loop *ir.ForLoop, iterate func(ctx context.Context, i int64) error) error {
	if b.Classify(loop) != Shortcut {
		for i := loop.First; i <= loop.Last; i++ {
			if err := iterate(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := loop.First; i <= loop.Last; i++ {
		i := i
		g.Go(func() error { return iterate(gctx, i) })
	}
	return g.Wait()
}
