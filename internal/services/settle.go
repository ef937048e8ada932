package services

import (
	"context"
	"sort"

	"github.com/openfolk/contacts-backend/internal/modules/aggregation"
	"github.com/openfolk/contacts-backend/internal/modules/derived"
	"github.com/openfolk/contacts-backend/internal/modules/lookup"
	"github.com/openfolk/contacts-backend/internal/observability"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
	"github.com/openfolk/contacts-backend/internal/platform/locale"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
	"github.com/openfolk/contacts-backend/internal/realtime"
	"github.com/openfolk/contacts-backend/internal/realtime/bus"
)

// settleAggregation finishes a mutation inside its transaction: derived
// attributes and lookup keys for every affected contact, then the change
// events the caller publishes after commit.
func settleAggregation(
	dbc dbctx.Context,
	res *aggregation.Result,
	computer *derived.Computer,
	resolver *lookup.Resolver,
	snap *locale.Snapshot,
) ([]realtime.ChangeEvent, error) {
	observability.Current().ObserveAggregation(len(res.Changed), len(res.Deleted))

	changed := make(map[int64]struct{}, len(res.Changed))
	for _, id := range res.Changed {
		changed[id] = struct{}{}
	}
	for _, id := range res.Affected {
		derivedChanged, err := computer.Recompute(dbc, id, snap)
		if err != nil {
			return nil, err
		}
		if derivedChanged {
			changed[id] = struct{}{}
		}
		if _, err := resolver.RefreshKey(dbc, id); err != nil {
			return nil, err
		}
	}

	ids := make([]int64, 0, len(changed))
	for id := range changed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	events := make([]realtime.ChangeEvent, 0, len(ids)+len(res.Deleted))
	for _, id := range ids {
		events = append(events, realtime.NewChangeEvent(realtime.EventContactChanged, id))
	}
	for _, id := range res.Deleted {
		events = append(events, realtime.NewChangeEvent(realtime.EventContactDeleted, id))
	}
	return events, nil
}

func publishEvents(ctx context.Context, b bus.Bus, log *logger.Logger, events []realtime.ChangeEvent) {
	if b == nil {
		return
	}
	for _, e := range events {
		if err := b.Publish(ctx, e); err != nil {
			log.Warn("change event publish failed", "error", err, "contact_id", e.ContactID, "type", string(e.Type))
		}
	}
}
