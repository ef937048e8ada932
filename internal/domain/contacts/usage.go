package contacts

// UsageKind classifies a usage-feedback event. Ranking variants filter on it:
// the calls-only decayed ranking counts only UsageCall events.
type UsageKind string

const (
	UsageCall      UsageKind = "call"
	UsageShortText UsageKind = "short_text"
	UsageLongText  UsageKind = "long_text"
)

func ValidUsageKind(k UsageKind) bool {
	switch k {
	case UsageCall, UsageShortText, UsageLongText:
		return true
	}
	return false
}

// DataUsageStat carries per-kind usage counters for one data row. The
// aggregate totals on DataRow and Contact are kind-blind; kind-filtered
// queries read these rows.
type DataUsageStat struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DataRowID  int64     `gorm:"not null;column:data_row_id;uniqueIndex:uniq_usage_stat" json:"data_row_id"`
	Kind       UsageKind `gorm:"not null;column:kind;uniqueIndex:uniq_usage_stat" json:"kind"`
	TimesUsed  int64     `gorm:"not null;default:0;column:times_used" json:"times_used"`
	LastUsedAt int64     `gorm:"not null;default:0;column:last_used_at" json:"last_used_at"`
}

func (DataUsageStat) TableName() string { return "data_usage_stats" }
