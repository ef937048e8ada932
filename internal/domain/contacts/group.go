package contacts

import "time"

// Group is an account-owned labeled set of raw contacts. Membership is
// carried by group_membership data rows whose Value is the group id.
type Group struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID *int64 `gorm:"index;column:account_id" json:"account_id,omitempty"`
	SourceID  string `gorm:"column:source_id;index" json:"source_id,omitempty"`
	Title     string `gorm:"not null" json:"title"`

	Visible   bool `gorm:"not null;default:false" json:"visible"`
	AutoAdd   bool `gorm:"not null;default:false;column:auto_add" json:"auto_add"`
	Favorites bool `gorm:"not null;default:false" json:"favorites"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Group) TableName() string { return "groups" }
