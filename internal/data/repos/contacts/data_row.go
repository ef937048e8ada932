package contacts

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

type DataRowRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.DataRow) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.DataRow, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.DataRow, error)
	Save(ctx context.Context, tx *gorm.DB, row *types.DataRow) error
	Delete(ctx context.Context, tx *gorm.DB, id int64) error
	DeleteByRawContactIDs(ctx context.Context, tx *gorm.DB, rawContactIDs []int64) error
	ListByRawContactIDs(ctx context.Context, tx *gorm.DB, rawContactIDs []int64, kinds ...types.DataKind) ([]*types.DataRow, error)
	ClearSuperPrimary(ctx context.Context, tx *gorm.DB, rawContactID int64, kind types.DataKind, exceptID int64) error

	ReplacePhoneLookup(ctx context.Context, tx *gorm.DB, entry *types.PhoneLookup) error
	DeletePhoneLookup(ctx context.Context, tx *gorm.DB, dataRowID int64) error
	PhoneMatches(ctx context.Context, tx *gorm.DB, minMatches []string) ([]*types.PhoneLookup, error)
	PhoneLookupByNumber(ctx context.Context, tx *gorm.DB, normalized, minMatch string) ([]*types.PhoneLookup, error)

	ReplaceNameLookup(ctx context.Context, tx *gorm.DB, dataRowID, rawContactID int64, tokens []string) error
	DeleteNameLookup(ctx context.Context, tx *gorm.DB, dataRowID int64) error
	NameTokenMatches(ctx context.Context, tx *gorm.DB, tokens []string) ([]*types.NameLookup, error)

	EmailMatches(ctx context.Context, tx *gorm.DB, normalized []string) ([]*types.DataRow, error)
	GroupMembershipRows(ctx context.Context, tx *gorm.DB, groupID int64) ([]*types.DataRow, error)

	IncrementUsage(ctx context.Context, tx *gorm.DB, id int64, at int64) error
	ZeroAllUsage(ctx context.Context, tx *gorm.DB) (int64, error)
}

type dataRowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDataRowRepo(db *gorm.DB, baseLog *logger.Logger) DataRowRepo {
	repoLog := baseLog.With("repo", "DataRowRepo")
	return &dataRowRepo{db: db, log: repoLog}
}

func (dr *dataRowRepo) Create(ctx context.Context, tx *gorm.DB, row *types.DataRow) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return contacts.NewError(contacts.CodeConflict, "DataRowRepo.Create", "data row conflicts with an existing row", err)
		}
		return err
	}
	return nil
}

func (dr *dataRowRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.DataRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var row types.DataRow
	if err := transaction.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contacts.NewError(contacts.CodeNotFound, "DataRowRepo.GetByID", "data row not found", err)
		}
		return nil, err
	}
	return &row, nil
}

func (dr *dataRowRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.DataRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.DataRow
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

func (dr *dataRowRepo) Save(ctx context.Context, tx *gorm.DB, row *types.DataRow) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).Save(row).Error
}

func (dr *dataRowRepo) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).Delete(&types.DataRow{}, "id = ?", id).Error
}

func (dr *dataRowRepo) DeleteByRawContactIDs(ctx context.Context, tx *gorm.DB, rawContactIDs []int64) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if len(rawContactIDs) == 0 {
		return nil
	}
	if err := transaction.WithContext(ctx).
		Where("raw_contact_id IN ?", rawContactIDs).
		Delete(&types.PhoneLookup{}).Error; err != nil {
		return err
	}
	if err := transaction.WithContext(ctx).
		Where("raw_contact_id IN ?", rawContactIDs).
		Delete(&types.NameLookup{}).Error; err != nil {
		return err
	}
	return transaction.WithContext(ctx).
		Where("raw_contact_id IN ?", rawContactIDs).
		Delete(&types.DataRow{}).Error
}

func (dr *dataRowRepo) ListByRawContactIDs(ctx context.Context, tx *gorm.DB, rawContactIDs []int64, kinds ...types.DataKind) ([]*types.DataRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.DataRow
	if len(rawContactIDs) == 0 {
		return results, nil
	}
	q := transaction.WithContext(ctx).Where("raw_contact_id IN ?", rawContactIDs)
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}
	if err := q.Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ClearSuperPrimary enforces the at-most-one-super-primary-per-kind invariant
// before a row is promoted.
func (dr *dataRowRepo) ClearSuperPrimary(ctx context.Context, tx *gorm.DB, rawContactID int64, kind types.DataKind, exceptID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.DataRow{}).
		Where("raw_contact_id = ? AND kind = ? AND id <> ?", rawContactID, kind, exceptID).
		Update("is_super_primary", false).Error
}

func (dr *dataRowRepo) ReplacePhoneLookup(ctx context.Context, tx *gorm.DB, entry *types.PhoneLookup) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if err := transaction.WithContext(ctx).
		Where("data_row_id = ?", entry.DataRowID).
		Delete(&types.PhoneLookup{}).Error; err != nil {
		return err
	}
	return transaction.WithContext(ctx).Create(entry).Error
}

func (dr *dataRowRepo) DeletePhoneLookup(ctx context.Context, tx *gorm.DB, dataRowID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).
		Where("data_row_id = ?", dataRowID).
		Delete(&types.PhoneLookup{}).Error
}

func (dr *dataRowRepo) PhoneMatches(ctx context.Context, tx *gorm.DB, minMatches []string) ([]*types.PhoneLookup, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.PhoneLookup
	if len(minMatches) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("min_match IN ?", minMatches).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *dataRowRepo) PhoneLookupByNumber(ctx context.Context, tx *gorm.DB, normalized, minMatch string) ([]*types.PhoneLookup, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.PhoneLookup
	if err := transaction.WithContext(ctx).
		Where("normalized = ? OR min_match = ?", normalized, minMatch).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *dataRowRepo) ReplaceNameLookup(ctx context.Context, tx *gorm.DB, dataRowID, rawContactID int64, tokens []string) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if err := transaction.WithContext(ctx).
		Where("data_row_id = ?", dataRowID).
		Delete(&types.NameLookup{}).Error; err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	entries := make([]*types.NameLookup, 0, len(tokens))
	for _, tok := range tokens {
		entries = append(entries, &types.NameLookup{
			DataRowID:    dataRowID,
			RawContactID: rawContactID,
			Token:        tok,
		})
	}
	return transaction.WithContext(ctx).Create(&entries).Error
}

func (dr *dataRowRepo) DeleteNameLookup(ctx context.Context, tx *gorm.DB, dataRowID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).
		Where("data_row_id = ?", dataRowID).
		Delete(&types.NameLookup{}).Error
}

func (dr *dataRowRepo) NameTokenMatches(ctx context.Context, tx *gorm.DB, tokens []string) ([]*types.NameLookup, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.NameLookup
	if len(tokens) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("token IN ?", tokens).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *dataRowRepo) EmailMatches(ctx context.Context, tx *gorm.DB, normalized []string) ([]*types.DataRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.DataRow
	if len(normalized) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("kind = ? AND normalized_value IN ?", types.KindEmail, normalized).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *dataRowRepo) GroupMembershipRows(ctx context.Context, tx *gorm.DB, groupID int64) ([]*types.DataRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.DataRow
	if err := transaction.WithContext(ctx).
		Where("kind = ? AND value = ?", types.KindGroupMembership, strconv.FormatInt(groupID, 10)).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// IncrementUsage bumps the kind-blind counters on one data row. The
// last_used_at CASE keeps the max without a dialect-specific GREATEST.
func (dr *dataRowRepo) IncrementUsage(ctx context.Context, tx *gorm.DB, id int64, at int64) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.DataRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"times_used":   gorm.Expr("times_used + 1"),
			"last_used_at": gorm.Expr("CASE WHEN last_used_at < ? THEN ? ELSE last_used_at END", at, at),
		}).Error
}

func (dr *dataRowRepo) ZeroAllUsage(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.DataRow{}).
		Where("times_used > 0 OR last_used_at > 0").
		Updates(map[string]any{"times_used": 0, "last_used_at": 0})
	return res.RowsAffected, res.Error
}
