package derived

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
)

const (
	recomputeBatchSize = 200
	recomputeWorkers   = 4
)

// RecomputeAll brings every contact stamped with an older locale version up
// to the active one. It runs in the background after a locale change: each
// contact gets its own short transaction so the pass never blocks concurrent
// single-contact mutations, and a cancelled context stops it between
// batches.
func (c *Computer) RecomputeAll(ctx context.Context) (int, error) {
	snap := c.locales.Active()
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		ids, err := c.contactRows.ListStaleLocaleIDs(ctx, nil, snap.Version, recomputeBatchSize)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			c.log.Info("locale recompute pass finished", "version", snap.Version, "contacts", total)
			return total, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(recomputeWorkers)
		for _, id := range ids {
			id := id
			g.Go(func() error {
				return c.db.WithContext(gctx).Transaction(func(tx *gorm.DB) error {
					_, err := c.Recompute(dbctx.Context{Ctx: gctx, Tx: tx}, id, snap)
					return err
				})
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}
		total += len(ids)
	}
}
