package contacts

import (
	"time"

	"gorm.io/datatypes"
)

// DataKind tags the typed payload of a data row.
type DataKind string

const (
	KindName            DataKind = "name"
	KindNickname        DataKind = "nickname"
	KindPhone           DataKind = "phone"
	KindEmail           DataKind = "email"
	KindOrganization    DataKind = "organization"
	KindPhoto           DataKind = "photo"
	KindNote            DataKind = "note"
	KindIM              DataKind = "im"
	KindPostal          DataKind = "postal"
	KindGroupMembership DataKind = "group_membership"
)

var knownDataKinds = map[DataKind]struct{}{
	KindName: {}, KindNickname: {}, KindPhone: {}, KindEmail: {},
	KindOrganization: {}, KindPhoto: {}, KindNote: {}, KindIM: {},
	KindPostal: {}, KindGroupMembership: {},
}

func ValidDataKind(k DataKind) bool {
	_, ok := knownDataKinds[k]
	return ok
}

// DataRow is one typed attribute owned by a raw contact. Value carries the
// principal field (formatted name, dialable number, address, group id);
// kind-specific structure lives in Meta.
//
// Meta keys in use: name rows use given_name, family_name, phonetic_name;
// organization rows use company, job_title; phone/email/im/postal rows use
// label.
type DataRow struct {
	ID           int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	RawContactID int64    `gorm:"not null;index;column:raw_contact_id" json:"raw_contact_id"`
	Kind         DataKind `gorm:"not null;index;column:kind" json:"kind"`

	Value           string         `gorm:"column:value" json:"value"`
	NormalizedValue string         `gorm:"column:normalized_value;index" json:"-"`
	Meta            datatypes.JSON `gorm:"column:meta" json:"meta,omitempty"`

	IsPrimary      bool `gorm:"not null;default:false;column:is_primary" json:"is_primary"`
	IsSuperPrimary bool `gorm:"not null;default:false;column:is_super_primary" json:"is_super_primary"`

	TimesUsed  int64 `gorm:"not null;default:0;column:times_used" json:"times_used"`
	LastUsedAt int64 `gorm:"not null;default:0;column:last_used_at" json:"last_used_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DataRow) TableName() string { return "data_rows" }

// PhoneLookup is the normalized phone-number index: one entry per phone data
// row, keyed both by the full normalized number and by the loose min-match
// suffix. Maintained on every phone-row write and delete.
type PhoneLookup struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	DataRowID    int64  `gorm:"not null;uniqueIndex;column:data_row_id" json:"data_row_id"`
	RawContactID int64  `gorm:"not null;index;column:raw_contact_id" json:"raw_contact_id"`
	Normalized   string `gorm:"not null;index;column:normalized" json:"normalized"`
	MinMatch     string `gorm:"not null;index;column:min_match" json:"min_match"`
}

func (PhoneLookup) TableName() string { return "phone_lookup" }

// NameLookup indexes folded structured-name tokens for candidate search.
type NameLookup struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	DataRowID    int64  `gorm:"not null;index;column:data_row_id" json:"data_row_id"`
	RawContactID int64  `gorm:"not null;index;column:raw_contact_id" json:"raw_contact_id"`
	Token        string `gorm:"not null;index;column:token" json:"token"`
}

func (NameLookup) TableName() string { return "name_lookup" }
