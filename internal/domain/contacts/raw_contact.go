package contacts

import "time"

type AggregationMode string

const (
	AggregationDefault      AggregationMode = "default"
	AggregationDisabled     AggregationMode = "disabled"
	AggregationKeepSeparate AggregationMode = "keep_separate"
)

// UnpinnedPosition marks a contact or raw contact as not pinned.
const UnpinnedPosition = 0

// RawContact is one account's view of a person. It is owned exclusively by
// its account; deletion is a tombstone until a sync-adapter hard delete.
type RawContact struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID *int64 `gorm:"index;column:account_id" json:"account_id,omitempty"`
	SourceID  string `gorm:"column:source_id;index" json:"source_id,omitempty"`

	AggregationMode AggregationMode `gorm:"not null;default:default;column:aggregation_mode" json:"aggregation_mode"`

	// ContactID is the aggregate this raw contact currently belongs to.
	// Zero only while the raw contact is being inserted or is tombstoned.
	ContactID int64 `gorm:"index;column:contact_id" json:"contact_id"`

	Starred        bool  `gorm:"not null;default:false" json:"starred"`
	PinnedPosition int   `gorm:"not null;default:0;column:pinned_position" json:"pinned_position"`
	PinForcedStar  bool  `gorm:"not null;default:false;column:pin_forced_star" json:"-"`
	CustomRingtone string `gorm:"column:custom_ringtone" json:"custom_ringtone,omitempty"`
	SendToVoicemail bool `gorm:"not null;default:false;column:send_to_voicemail" json:"send_to_voicemail"`

	// DisplayName is denormalized from the structured name row so sync
	// adapters and debugging queries do not need a join.
	DisplayName string `gorm:"column:display_name" json:"display_name,omitempty"`

	Dirty   bool  `gorm:"not null;default:false" json:"dirty"`
	Version int64 `gorm:"not null;default:1" json:"version"`
	Deleted bool  `gorm:"not null;default:false;index" json:"deleted"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (RawContact) TableName() string { return "raw_contacts" }

// Aggregatable reports whether automatic match signals may connect this raw
// contact to others. KEEP_SEPARATE mode still allows forced KEEP_TOGETHER
// exceptions; DISABLED ignores those too.
func (rc *RawContact) Aggregatable() bool {
	return !rc.Deleted && rc.AggregationMode == AggregationDefault
}
