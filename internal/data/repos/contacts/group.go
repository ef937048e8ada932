package contacts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

type GroupRepo interface {
	Create(ctx context.Context, tx *gorm.DB, g *types.Group) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Group, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Group, error)
	Save(ctx context.Context, tx *gorm.DB, g *types.Group) error
	Delete(ctx context.Context, tx *gorm.DB, id int64) error
	VisibleGroupIDs(ctx context.Context, tx *gorm.DB) (map[int64]struct{}, error)
	AutoAddGroupForAccount(ctx context.Context, tx *gorm.DB, accountID int64) (*types.Group, error)
}

type groupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupRepo(db *gorm.DB, baseLog *logger.Logger) GroupRepo {
	repoLog := baseLog.With("repo", "GroupRepo")
	return &groupRepo{db: db, log: repoLog}
}

func (gr *groupRepo) Create(ctx context.Context, tx *gorm.DB, g *types.Group) error {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	return transaction.WithContext(ctx).Create(g).Error
}

func (gr *groupRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Group, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var g types.Group
	if err := transaction.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contacts.NewError(contacts.CodeNotFound, "GroupRepo.GetByID", "group not found", err)
		}
		return nil, err
	}
	return &g, nil
}

func (gr *groupRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Group, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var results []*types.Group
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

func (gr *groupRepo) Save(ctx context.Context, tx *gorm.DB, g *types.Group) error {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	return transaction.WithContext(ctx).Save(g).Error
}

func (gr *groupRepo) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	return transaction.WithContext(ctx).Delete(&types.Group{}, "id = ?", id).Error
}

func (gr *groupRepo) VisibleGroupIDs(ctx context.Context, tx *gorm.DB) (map[int64]struct{}, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var ids []int64
	if err := transaction.WithContext(ctx).
		Model(&types.Group{}).
		Where("visible = ?", true).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (gr *groupRepo) AutoAddGroupForAccount(ctx context.Context, tx *gorm.DB, accountID int64) (*types.Group, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var g types.Group
	err := transaction.WithContext(ctx).
		Where("account_id = ? AND auto_add = ?", accountID, true).
		Order("id ASC").
		First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}
