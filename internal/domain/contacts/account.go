package contacts

import "time"

// Account identifies an external data source. Raw contacts belong to exactly
// one account or to none (device-local).
type Account struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string `gorm:"not null;column:name;uniqueIndex:uniq_account" json:"name"`
	Type    string `gorm:"not null;column:type;uniqueIndex:uniq_account" json:"type"`
	DataSet string `gorm:"column:data_set;uniqueIndex:uniq_account" json:"data_set,omitempty"`

	// UngroupedVisible makes member raw contacts without any group
	// membership count as visible.
	UngroupedVisible bool `gorm:"not null;default:false;column:ungrouped_visible" json:"ungrouped_visible"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }
