package contacts

// DeleteLog records one aggregate-contact hard removal. Append-only; exposed
// to sync consumers as a since-timestamp feed and never updated in place.
type DeleteLog struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ContactID int64 `gorm:"not null;index;column:contact_id" json:"contact_id"`
	DeletedAt int64 `gorm:"not null;index;column:deleted_at" json:"deleted_at"`
}

func (DeleteLog) TableName() string { return "delete_log" }
