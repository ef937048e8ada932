package contacts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

type ContactRepo interface {
	Create(ctx context.Context, tx *gorm.DB, c *types.Contact) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Contact, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Contact, error)
	Save(ctx context.Context, tx *gorm.DB, c *types.Contact) error
	Delete(ctx context.Context, tx *gorm.DB, id int64) error
	AddUsage(ctx context.Context, tx *gorm.DB, id int64, delta int64, at int64) error
	ZeroAllUsage(ctx context.Context, tx *gorm.DB) (int64, error)
	ListFrequent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Contact, error)
	ListStarred(ctx context.Context, tx *gorm.DB) ([]*types.Contact, error)
	ListStaleLocaleIDs(ctx context.Context, tx *gorm.DB, version int64, limit int) ([]int64, error)
	FindByLookupKey(ctx context.Context, tx *gorm.DB, key string) ([]*types.Contact, error)
}

type contactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContactRepo(db *gorm.DB, baseLog *logger.Logger) ContactRepo {
	repoLog := baseLog.With("repo", "ContactRepo")
	return &contactRepo{db: db, log: repoLog}
}

func (cr *contactRepo) Create(ctx context.Context, tx *gorm.DB, c *types.Contact) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).Create(c).Error
}

func (cr *contactRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Contact, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var c types.Contact
	if err := transaction.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contacts.NewError(contacts.CodeNotFound, "ContactRepo.GetByID", "contact not found", err)
		}
		return nil, err
	}
	return &c, nil
}

func (cr *contactRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Contact, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var results []*types.Contact
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

func (cr *contactRepo) Save(ctx context.Context, tx *gorm.DB, c *types.Contact) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).Save(c).Error
}

func (cr *contactRepo) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).Delete(&types.Contact{}, "id = ?", id).Error
}

func (cr *contactRepo) AddUsage(ctx context.Context, tx *gorm.DB, id int64, delta int64, at int64) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Contact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"times_used":   gorm.Expr("times_used + ?", delta),
			"last_used_at": gorm.Expr("CASE WHEN last_used_at < ? THEN ? ELSE last_used_at END", at, at),
		}).Error
}

func (cr *contactRepo) ZeroAllUsage(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Contact{}).
		Where("times_used > 0 OR last_used_at > 0").
		Updates(map[string]any{"times_used": 0, "last_used_at": 0})
	return res.RowsAffected, res.Error
}

// ListFrequent orders by total usage, then recency, then id — a total order.
func (cr *contactRepo) ListFrequent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Contact, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var results []*types.Contact
	q := transaction.WithContext(ctx).
		Where("times_used > 0").
		Order("times_used DESC").
		Order("last_used_at DESC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListStarred orders pinned contacts by explicit position first, then the
// rest of the starred set by id.
func (cr *contactRepo) ListStarred(ctx context.Context, tx *gorm.DB) ([]*types.Contact, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var results []*types.Contact
	if err := transaction.WithContext(ctx).
		Where("starred = ?", true).
		Order("CASE WHEN pinned_position > 0 THEN 0 ELSE 1 END").
		Order("pinned_position ASC").
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *contactRepo) ListStaleLocaleIDs(ctx context.Context, tx *gorm.DB, version int64, limit int) ([]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var ids []int64
	q := transaction.WithContext(ctx).
		Model(&types.Contact{}).
		Where("locale_version < ?", version).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (cr *contactRepo) FindByLookupKey(ctx context.Context, tx *gorm.DB, key string) ([]*types.Contact, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var results []*types.Contact
	if err := transaction.WithContext(ctx).
		Where("lookup_key = ?", key).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
