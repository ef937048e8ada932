package contacts

import (
	"context"

	"gorm.io/gorm"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

type DeleteLogRepo interface {
	Append(ctx context.Context, tx *gorm.DB, contactID int64, deletedAt int64) error
	ListSince(ctx context.Context, tx *gorm.DB, since int64) ([]*types.DeleteLog, error)
}

type deleteLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeleteLogRepo(db *gorm.DB, baseLog *logger.Logger) DeleteLogRepo {
	repoLog := baseLog.With("repo", "DeleteLogRepo")
	return &deleteLogRepo{db: db, log: repoLog}
}

func (dl *deleteLogRepo) Append(ctx context.Context, tx *gorm.DB, contactID int64, deletedAt int64) error {
	transaction := tx
	if transaction == nil {
		transaction = dl.db
	}
	return transaction.WithContext(ctx).Create(&types.DeleteLog{
		ContactID: contactID,
		DeletedAt: deletedAt,
	}).Error
}

func (dl *deleteLogRepo) ListSince(ctx context.Context, tx *gorm.DB, since int64) ([]*types.DeleteLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = dl.db
	}
	var results []*types.DeleteLog
	if err := transaction.WithContext(ctx).
		Where("deleted_at >= ?", since).
		Order("deleted_at ASC").
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
