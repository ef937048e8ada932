package contacts

import "time"

// Contact is the aggregate presented to readers: the computed union of one or
// more raw contacts. It has no independent lifecycle — created when the first
// member needing representation is inserted, destroyed when the last member
// is hard-deleted or merged away.
type Contact struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	NameSourceRawContactID int64 `gorm:"column:name_source_raw_contact_id" json:"name_source_raw_contact_id,omitempty"`
	NameSourceDataRowID    int64 `gorm:"column:name_source_data_row_id" json:"-"`

	DisplayNamePrimary     string `gorm:"column:display_name_primary" json:"display_name_primary,omitempty"`
	DisplayNameAlternative string `gorm:"column:display_name_alternative" json:"display_name_alternative,omitempty"`
	PhoneticName           string `gorm:"column:phonetic_name" json:"phonetic_name,omitempty"`

	SortKeyPrimary          string `gorm:"column:sort_key_primary;index" json:"-"`
	SortKeyAlternative      string `gorm:"column:sort_key_alternative" json:"-"`
	PhonebookLabelPrimary   string `gorm:"column:phonebook_label_primary" json:"phonebook_label_primary,omitempty"`
	PhonebookLabelAlternative string `gorm:"column:phonebook_label_alternative" json:"phonebook_label_alternative,omitempty"`

	LookupKey      string `gorm:"column:lookup_key;index" json:"lookup_key"`
	PhotoDataRowID int64  `gorm:"column:photo_data_row_id" json:"-"`

	Starred        bool `gorm:"not null;default:false" json:"starred"`
	PinnedPosition int  `gorm:"not null;default:0;column:pinned_position" json:"pinned_position"`
	InVisibleGroup bool `gorm:"not null;default:false;column:in_visible_group" json:"in_visible_group"`
	HasPhoneNumber bool `gorm:"not null;default:false;column:has_phone_number" json:"has_phone_number"`

	CustomRingtone  string `gorm:"column:custom_ringtone" json:"custom_ringtone,omitempty"`
	SendToVoicemail bool   `gorm:"not null;default:false;column:send_to_voicemail" json:"send_to_voicemail"`

	TimesUsed  int64 `gorm:"not null;default:0;column:times_used" json:"times_used"`
	LastUsedAt int64 `gorm:"not null;default:0;column:last_used_at" json:"last_used_at"`

	// LocaleVersion stamps which locale generation computed the sort keys,
	// so the background pass can skip contacts that are already current.
	LocaleVersion int64 `gorm:"not null;default:0;column:locale_version" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Contact) TableName() string { return "contacts" }
