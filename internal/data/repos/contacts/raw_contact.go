package contacts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

type RawContactRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rc *types.RawContact) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.RawContact, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.RawContact, error)
	Save(ctx context.Context, tx *gorm.DB, rc *types.RawContact) error
	ListByContactIDs(ctx context.Context, tx *gorm.DB, contactIDs []int64) ([]*types.RawContact, error)
	SetContactID(ctx context.Context, tx *gorm.DB, rawContactIDs []int64, contactID int64) error
	BumpVersion(ctx context.Context, tx *gorm.DB, id int64) error
	SetStarred(ctx context.Context, tx *gorm.DB, id int64, starred bool) error
	SetStarredByContact(ctx context.Context, tx *gorm.DB, contactID int64, starred bool) error
	SetPinned(ctx context.Context, tx *gorm.DB, id int64, position int, forcedStar bool) error
	SetDisplayName(ctx context.Context, tx *gorm.DB, id int64, displayName string) error
	MarkDeleted(ctx context.Context, tx *gorm.DB, id int64) error
	HardDelete(ctx context.Context, tx *gorm.DB, id int64) error
	ListByAccount(ctx context.Context, tx *gorm.DB, accountID int64) ([]*types.RawContact, error)
	ListDirty(ctx context.Context, tx *gorm.DB, accountID int64) ([]*types.RawContact, error)
	ClearDirty(ctx context.Context, tx *gorm.DB, ids []int64) error
	FindBySource(ctx context.Context, tx *gorm.DB, accountID *int64, sourceID string) ([]*types.RawContact, error)
}

type rawContactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRawContactRepo(db *gorm.DB, baseLog *logger.Logger) RawContactRepo {
	repoLog := baseLog.With("repo", "RawContactRepo")
	return &rawContactRepo{db: db, log: repoLog}
}

func (rr *rawContactRepo) Create(ctx context.Context, tx *gorm.DB, rc *types.RawContact) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).Create(rc).Error
}

func (rr *rawContactRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.RawContact, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var rc types.RawContact
	if err := transaction.WithContext(ctx).First(&rc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contacts.NewError(contacts.CodeNotFound, "RawContactRepo.GetByID", "raw contact not found", err)
		}
		return nil, err
	}
	return &rc, nil
}

func (rr *rawContactRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.RawContact, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var results []*types.RawContact
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *rawContactRepo) Save(ctx context.Context, tx *gorm.DB, rc *types.RawContact) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).Save(rc).Error
}

func (rr *rawContactRepo) ListByContactIDs(ctx context.Context, tx *gorm.DB, contactIDs []int64) ([]*types.RawContact, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var results []*types.RawContact
	if len(contactIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("contact_id IN ? AND deleted = ?", contactIDs, false).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *rawContactRepo) SetContactID(ctx context.Context, tx *gorm.DB, rawContactIDs []int64, contactID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	if len(rawContactIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.RawContact{}).
		Where("id IN ?", rawContactIDs).
		Update("contact_id", contactID).Error
}

func (rr *rawContactRepo) BumpVersion(ctx context.Context, tx *gorm.DB, id int64) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.RawContact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"version": gorm.Expr("version + 1"),
			"dirty":   true,
		}).Error
}

func (rr *rawContactRepo) SetStarred(ctx context.Context, tx *gorm.DB, id int64, starred bool) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.RawContact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"starred": starred,
			"version": gorm.Expr("version + 1"),
			"dirty":   true,
		}).Error
}

func (rr *rawContactRepo) SetStarredByContact(ctx context.Context, tx *gorm.DB, contactID int64, starred bool) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.RawContact{}).
		Where("contact_id = ? AND deleted = ?", contactID, false).
		Updates(map[string]any{
			"starred": starred,
			"version": gorm.Expr("version + 1"),
			"dirty":   true,
		}).Error
}

func (rr *rawContactRepo) SetPinned(ctx context.Context, tx *gorm.DB, id int64, position int, forcedStar bool) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.RawContact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"pinned_position": position,
			"pin_forced_star": forcedStar,
			"version":         gorm.Expr("version + 1"),
			"dirty":           true,
		}).Error
}

func (rr *rawContactRepo) SetDisplayName(ctx context.Context, tx *gorm.DB, id int64, displayName string) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.RawContact{}).
		Where("id = ?", id).
		Update("display_name", displayName).Error
}

func (rr *rawContactRepo) MarkDeleted(ctx context.Context, tx *gorm.DB, id int64) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.RawContact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"deleted":    true,
			"contact_id": 0,
			"version":    gorm.Expr("version + 1"),
			"dirty":      true,
		}).Error
}

func (rr *rawContactRepo) HardDelete(ctx context.Context, tx *gorm.DB, id int64) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Delete(&types.RawContact{}, "id = ?", id).Error
}

func (rr *rawContactRepo) ListByAccount(ctx context.Context, tx *gorm.DB, accountID int64) ([]*types.RawContact, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var results []*types.RawContact
	if err := transaction.WithContext(ctx).
		Where("account_id = ? AND deleted = ?", accountID, false).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *rawContactRepo) ListDirty(ctx context.Context, tx *gorm.DB, accountID int64) ([]*types.RawContact, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var results []*types.RawContact
	if err := transaction.WithContext(ctx).
		Where("account_id = ? AND dirty = ?", accountID, true).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *rawContactRepo) ClearDirty(ctx context.Context, tx *gorm.DB, ids []int64) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.RawContact{}).
		Where("id IN ?", ids).
		Update("dirty", false).Error
}

func (rr *rawContactRepo) FindBySource(ctx context.Context, tx *gorm.DB, accountID *int64, sourceID string) ([]*types.RawContact, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var results []*types.RawContact
	q := transaction.WithContext(ctx).Where("source_id = ? AND deleted = ?", sourceID, false)
	if accountID != nil {
		q = q.Where("account_id = ?", *accountID)
	} else {
		q = q.Where("account_id IS NULL")
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
