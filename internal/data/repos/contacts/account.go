package contacts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

type AccountRepo interface {
	Create(ctx context.Context, tx *gorm.DB, account *types.Account) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Account, error)
	GetByKey(ctx context.Context, tx *gorm.DB, name, typ, dataSet string) (*types.Account, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Account, error)
	SetUngroupedVisible(ctx context.Context, tx *gorm.DB, id int64, visible bool) error
}

type accountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccountRepo(db *gorm.DB, baseLog *logger.Logger) AccountRepo {
	repoLog := baseLog.With("repo", "AccountRepo")
	return &accountRepo{db: db, log: repoLog}
}

func (ar *accountRepo) Create(ctx context.Context, tx *gorm.DB, account *types.Account) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	return transaction.WithContext(ctx).Create(account).Error
}

func (ar *accountRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Account, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var account types.Account
	if err := transaction.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contacts.NewError(contacts.CodeNotFound, "AccountRepo.GetByID", "account not found", err)
		}
		return nil, err
	}
	return &account, nil
}

func (ar *accountRepo) GetByKey(ctx context.Context, tx *gorm.DB, name, typ, dataSet string) (*types.Account, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var account types.Account
	err := transaction.WithContext(ctx).
		Where("name = ? AND type = ? AND data_set = ?", name, typ, dataSet).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contacts.NewError(contacts.CodeNotFound, "AccountRepo.GetByKey", "account not found", err)
		}
		return nil, err
	}
	return &account, nil
}

func (ar *accountRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Account, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var results []*types.Account
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

func (ar *accountRepo) SetUngroupedVisible(ctx context.Context, tx *gorm.DB, id int64, visible bool) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Account{}).
		Where("id = ?", id).
		Update("ungrouped_visible", visible).Error
}
