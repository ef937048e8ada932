package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/modules/aggregation"
	"github.com/openfolk/contacts-backend/internal/modules/derived"
	"github.com/openfolk/contacts-backend/internal/modules/lookup"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
	"github.com/openfolk/contacts-backend/internal/platform/locale"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
	"github.com/openfolk/contacts-backend/internal/realtime"
	"github.com/openfolk/contacts-backend/internal/realtime/bus"
)

// SyncService is the surface sync adapters drive: the dirty feed, the
// deleted-contacts feed, and tombstone purging.
type SyncService interface {
	ListDirty(ctx context.Context, accountID int64) ([]*types.RawContact, error)
	ClearDirty(ctx context.Context, rawContactIDs []int64) error
	DeletedSince(ctx context.Context, since int64) ([]*types.DeleteLog, error)
	PurgeRawContact(ctx context.Context, rawContactID int64) error
}

type syncService struct {
	db       *gorm.DB
	log      *logger.Logger
	repos    *repos.Bundle
	engine   *aggregation.Engine
	derived  *derived.Computer
	resolver *lookup.Resolver
	locales  *locale.Settings
	bus      bus.Bus
}

func NewSyncService(
	db *gorm.DB,
	log *logger.Logger,
	b *repos.Bundle,
	engine *aggregation.Engine,
	computer *derived.Computer,
	resolver *lookup.Resolver,
	locales *locale.Settings,
	changeBus bus.Bus,
) SyncService {
	return &syncService{
		db:       db,
		log:      log.With("service", "SyncService"),
		repos:    b,
		engine:   engine,
		derived:  computer,
		resolver: resolver,
		locales:  locales,
		bus:      changeBus,
	}
}

func (ss *syncService) ListDirty(ctx context.Context, accountID int64) ([]*types.RawContact, error) {
	if _, err := ss.repos.Accounts.GetByID(ctx, nil, accountID); err != nil {
		return nil, err
	}
	return ss.repos.RawContacts.ListDirty(ctx, nil, accountID)
}

func (ss *syncService) ClearDirty(ctx context.Context, rawContactIDs []int64) error {
	return ss.repos.RawContacts.ClearDirty(ctx, nil, rawContactIDs)
}

func (ss *syncService) DeletedSince(ctx context.Context, since int64) ([]*types.DeleteLog, error) {
	return ss.repos.DeleteLogs.ListSince(ctx, nil, since)
}

// PurgeRawContact hard-deletes a raw contact with its rows, lookup entries,
// usage stats and exceptions, then reaggregates whatever aggregate it was
// still a member of. Sync adapters call this after syncing a tombstone, or
// directly when the remote side deleted the entry first.
func (ss *syncService) PurgeRawContact(ctx context.Context, rawContactID int64) error {
	var events []realtime.ChangeEvent
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		rc, err := ss.repos.RawContacts.GetByID(dbc.Ctx, dbc.Tx, rawContactID)
		if err != nil {
			return err
		}
		oldContactID := rc.ContactID

		rows, err := ss.repos.DataRows.ListByRawContactIDs(dbc.Ctx, dbc.Tx, []int64{rc.ID})
		if err != nil {
			return err
		}
		rowIDs := make([]int64, 0, len(rows))
		for _, row := range rows {
			rowIDs = append(rowIDs, row.ID)
		}
		if err := ss.repos.UsageStats.DeleteForDataRows(dbc.Ctx, dbc.Tx, rowIDs); err != nil {
			return err
		}
		if err := ss.repos.Exceptions.DeleteForRawContact(dbc.Ctx, dbc.Tx, rc.ID); err != nil {
			return err
		}
		if err := ss.repos.DataRows.DeleteByRawContactIDs(dbc.Ctx, dbc.Tx, []int64{rc.ID}); err != nil {
			return err
		}
		if err := ss.repos.RawContacts.HardDelete(dbc.Ctx, dbc.Tx, rc.ID); err != nil {
			return err
		}
		if oldContactID == 0 {
			return nil
		}
		res, err := ss.engine.Reaggregate(dbc, nil, []int64{oldContactID})
		if err != nil {
			return err
		}
		evs, err := settleAggregation(dbc, res, ss.derived, ss.resolver, ss.locales.Active())
		if err != nil {
			return err
		}
		events = evs
		return nil
	})
	if err != nil {
		return err
	}
	publishEvents(ctx, ss.bus, ss.log, events)
	return nil
}
