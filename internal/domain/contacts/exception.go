package contacts

import "time"

type ExceptionType string

const (
	KeepTogether ExceptionType = "keep_together"
	KeepSeparate ExceptionType = "keep_separate"
)

// AggregationException is a durable manual override that dominates automatic
// match signals for one raw-contact pair, in both directions. Pairs are
// stored normalized: RawContactID1 < RawContactID2.
type AggregationException struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Type          ExceptionType `gorm:"not null;column:type" json:"type"`
	RawContactID1 int64         `gorm:"not null;index;column:raw_contact_id1;uniqueIndex:uniq_exception_pair" json:"raw_contact_id1"`
	RawContactID2 int64         `gorm:"not null;index;column:raw_contact_id2;uniqueIndex:uniq_exception_pair" json:"raw_contact_id2"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (AggregationException) TableName() string { return "aggregation_exceptions" }

// NormalizePair orders an exception pair. Reversed duplicates collapse onto
// the same row; a self-referential pair normalizes to (id, id) and is treated
// as a no-op by the writer.
func NormalizePair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
