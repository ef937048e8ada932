package contacts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

type ExceptionRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, typ types.ExceptionType, id1, id2 int64) error
	Delete(ctx context.Context, tx *gorm.DB, id1, id2 int64) error
	ListForRawContacts(ctx context.Context, tx *gorm.DB, rawContactIDs []int64) ([]*types.AggregationException, error)
	DeleteForRawContact(ctx context.Context, tx *gorm.DB, rawContactID int64) error
}

type exceptionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExceptionRepo(db *gorm.DB, baseLog *logger.Logger) ExceptionRepo {
	repoLog := baseLog.With("repo", "ExceptionRepo")
	return &exceptionRepo{db: db, log: repoLog}
}

// Upsert stores the normalized pair, replacing any previous exception for it.
// Callers normalize the pair before calling; this keeps the replace-by-pair
// logic in one place regardless.
func (er *exceptionRepo) Upsert(ctx context.Context, tx *gorm.DB, typ types.ExceptionType, id1, id2 int64) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	var existing types.AggregationException
	err := transaction.WithContext(ctx).
		Where("raw_contact_id1 = ? AND raw_contact_id2 = ?", id1, id2).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return transaction.WithContext(ctx).Create(&types.AggregationException{
			Type:          typ,
			RawContactID1: id1,
			RawContactID2: id2,
		}).Error
	}
	if existing.Type == typ {
		return nil
	}
	existing.Type = typ
	return transaction.WithContext(ctx).Save(&existing).Error
}

func (er *exceptionRepo) Delete(ctx context.Context, tx *gorm.DB, id1, id2 int64) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	return transaction.WithContext(ctx).
		Where("raw_contact_id1 = ? AND raw_contact_id2 = ?", id1, id2).
		Delete(&types.AggregationException{}).Error
}

func (er *exceptionRepo) ListForRawContacts(ctx context.Context, tx *gorm.DB, rawContactIDs []int64) ([]*types.AggregationException, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	var results []*types.AggregationException
	if len(rawContactIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("raw_contact_id1 IN ? OR raw_contact_id2 IN ?", rawContactIDs, rawContactIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (er *exceptionRepo) DeleteForRawContact(ctx context.Context, tx *gorm.DB, rawContactID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	return transaction.WithContext(ctx).
		Where("raw_contact_id1 = ? OR raw_contact_id2 = ?", rawContactID, rawContactID).
		Delete(&types.AggregationException{}).Error
}
