package contacts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

type UsageStatRepo interface {
	Increment(ctx context.Context, tx *gorm.DB, dataRowID int64, kind types.UsageKind, at int64) error
	ListActiveByKind(ctx context.Context, tx *gorm.DB, kind types.UsageKind, since int64) ([]*types.DataUsageStat, error)
	ZeroAll(ctx context.Context, tx *gorm.DB) (int64, error)
	DeleteForDataRows(ctx context.Context, tx *gorm.DB, dataRowIDs []int64) error
}

type usageStatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageStatRepo(db *gorm.DB, baseLog *logger.Logger) UsageStatRepo {
	repoLog := baseLog.With("repo", "UsageStatRepo")
	return &usageStatRepo{db: db, log: repoLog}
}

func (ur *usageStatRepo) Increment(ctx context.Context, tx *gorm.DB, dataRowID int64, kind types.UsageKind, at int64) error {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	var existing types.DataUsageStat
	err := transaction.WithContext(ctx).
		Where("data_row_id = ? AND kind = ?", dataRowID, kind).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return transaction.WithContext(ctx).Create(&types.DataUsageStat{
			DataRowID:  dataRowID,
			Kind:       kind,
			TimesUsed:  1,
			LastUsedAt: at,
		}).Error
	}
	updates := map[string]any{
		"times_used": gorm.Expr("times_used + 1"),
	}
	if at > existing.LastUsedAt {
		updates["last_used_at"] = at
	}
	return transaction.WithContext(ctx).
		Model(&types.DataUsageStat{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error
}

// ListActiveByKind returns kind-filtered stats with a last use at or after
// since, ordered for bucketed ranking: usage desc, recency desc, row id asc.
func (ur *usageStatRepo) ListActiveByKind(ctx context.Context, tx *gorm.DB, kind types.UsageKind, since int64) ([]*types.DataUsageStat, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	var results []*types.DataUsageStat
	if err := transaction.WithContext(ctx).
		Where("kind = ? AND last_used_at >= ? AND times_used > 0", kind, since).
		Order("times_used DESC").
		Order("last_used_at DESC").
		Order("data_row_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *usageStatRepo) ZeroAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.DataUsageStat{}).
		Where("times_used > 0 OR last_used_at > 0").
		Updates(map[string]any{"times_used": 0, "last_used_at": 0})
	return res.RowsAffected, res.Error
}

func (ur *usageStatRepo) DeleteForDataRows(ctx context.Context, tx *gorm.DB, dataRowIDs []int64) error {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	if len(dataRowIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("data_row_id IN ?", dataRowIDs).
		Delete(&types.DataUsageStat{}).Error
}
