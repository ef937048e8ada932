package usage

import (
	"sort"
	"time"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
)

// Frequent returns contacts ordered by total usage descending, recency
// descending, then id ascending. Zero-usage contacts are excluded.
func (t *Tracker) Frequent(dbc dbctx.Context, limit int) ([]*types.Contact, error) {
	return t.contactRows.ListFrequent(dbc.Ctx, dbc.Tx, limit)
}

// Combined returns starred contacts first (pinned positions ahead, then id),
// followed by non-starred frequent contacts. No contact appears twice.
func (t *Tracker) Combined(dbc dbctx.Context, limit int) ([]*types.Contact, error) {
	starred, err := t.contactRows.ListStarred(dbc.Ctx, dbc.Tx)
	if err != nil {
		return nil, err
	}
	frequent, err := t.contactRows.ListFrequent(dbc.Ctx, dbc.Tx, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(starred))
	out := make([]*types.Contact, 0, len(starred)+len(frequent))
	for _, c := range starred {
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	for _, c := range frequent {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		out = append(out, c)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DecayedEntry is one ranked data row: Bucket indexes the configured
// thresholds, zero being the most recent.
type DecayedEntry struct {
	Bucket     int   `json:"bucket"`
	DataRowID  int64 `json:"data_row_id"`
	TimesUsed  int64 `json:"times_used"`
	LastUsedAt int64 `json:"last_used_at"`
}

// Decayed ranks data rows of one usage kind, bucketed by age of last use.
// Buckets run most-recent first; within a bucket rows order by count
// descending, then recency descending, then row id ascending. Rows older
// than the last threshold are excluded.
func (t *Tracker) Decayed(dbc dbctx.Context, kind types.UsageKind, now time.Time) ([]DecayedEntry, error) {
	if !contacts.ValidUsageKind(kind) {
		return nil, contacts.NewError(contacts.CodeValidation, "usage.Decayed", "unsupported usage kind", nil)
	}
	thresholds := t.cfg.thresholds()
	oldest := now.Add(-thresholds[len(thresholds)-1]).UnixMilli()
	stats, err := t.usageStats.ListActiveByKind(dbc.Ctx, dbc.Tx, kind, oldest)
	if err != nil {
		return nil, err
	}

	nowMs := now.UnixMilli()
	entries := make([]DecayedEntry, 0, len(stats))
	for _, s := range stats {
		age := time.Duration(nowMs-s.LastUsedAt) * time.Millisecond
		bucket := -1
		for i, th := range thresholds {
			if age < th {
				bucket = i
				break
			}
		}
		if bucket < 0 {
			continue
		}
		entries = append(entries, DecayedEntry{
			Bucket:     bucket,
			DataRowID:  s.DataRowID,
			TimesUsed:  s.TimesUsed,
			LastUsedAt: s.LastUsedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Bucket != b.Bucket {
			return a.Bucket < b.Bucket
		}
		if a.TimesUsed != b.TimesUsed {
			return a.TimesUsed > b.TimesUsed
		}
		if a.LastUsedAt != b.LastUsedAt {
			return a.LastUsedAt > b.LastUsedAt
		}
		return a.DataRowID < b.DataRowID
	})
	return entries, nil
}
