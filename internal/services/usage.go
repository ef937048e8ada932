package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/modules/usage"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

// UsageService records contact interactions and serves the ranked lists
// built from them. Usage writes never touch aggregation, so they run in
// their own short transactions.
type UsageService interface {
	Record(ctx context.Context, dataRowIDs []int64, kind types.UsageKind, at int64) error
	Frequent(ctx context.Context, limit int) ([]*types.Contact, error)
	Starred(ctx context.Context) ([]*types.Contact, error)
	Combined(ctx context.Context, limit int) ([]*types.Contact, error)
	Decayed(ctx context.Context, kind types.UsageKind, now time.Time) ([]usage.DecayedEntry, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type usageService struct {
	db      *gorm.DB
	log     *logger.Logger
	repos   *repos.Bundle
	tracker *usage.Tracker
}

func NewUsageService(db *gorm.DB, log *logger.Logger, b *repos.Bundle, tracker *usage.Tracker) UsageService {
	return &usageService{
		db:      db,
		log:     log.With("service", "UsageService"),
		repos:   b,
		tracker: tracker,
	}
}

func (us *usageService) Record(ctx context.Context, dataRowIDs []int64, kind types.UsageKind, at int64) error {
	if at == 0 {
		at = time.Now().UnixMilli()
	}
	return us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return us.tracker.Record(dbctx.Context{Ctx: ctx, Tx: tx}, dataRowIDs, kind, at)
	})
}

func (us *usageService) Frequent(ctx context.Context, limit int) ([]*types.Contact, error) {
	return us.tracker.Frequent(dbctx.Context{Ctx: ctx}, limit)
}

func (us *usageService) Starred(ctx context.Context) ([]*types.Contact, error) {
	return us.repos.Contacts.ListStarred(ctx, nil)
}

func (us *usageService) Combined(ctx context.Context, limit int) ([]*types.Contact, error) {
	return us.tracker.Combined(dbctx.Context{Ctx: ctx}, limit)
}

func (us *usageService) Decayed(ctx context.Context, kind types.UsageKind, now time.Time) ([]usage.DecayedEntry, error) {
	if now.IsZero() {
		now = time.Now()
	}
	return us.tracker.Decayed(dbctx.Context{Ctx: ctx}, kind, now)
}

// DeleteAll wipes every usage counter. The reported count is never zero on
// success so callers can tell "ran against an empty store" apart from a
// failed call.
func (us *usageService) DeleteAll(ctx context.Context) (int64, error) {
	var affected int64
	err := us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := us.tracker.DeleteAll(dbctx.Context{Ctx: ctx, Tx: tx})
		if err != nil {
			return err
		}
		affected = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
