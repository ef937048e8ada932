package usage

import (
	"github.com/openfolk/contacts-backend/internal/data/repos"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

// Tracker records usage feedback against data rows and rolls it up to the
// owning aggregates.
type Tracker struct {
	rawContacts repos.RawContactRepo
	dataRows    repos.DataRowRepo
	contactRows repos.ContactRepo
	usageStats  repos.UsageStatRepo
	cfg         Config
	log         *logger.Logger
}

func NewTracker(b *repos.Bundle, cfg Config, baseLog *logger.Logger) *Tracker {
	if len(cfg.ThresholdsDays) == 0 {
		cfg = DefaultConfig()
	}
	return &Tracker{
		rawContacts: b.RawContacts,
		dataRows:    b.DataRows,
		contactRows: b.Contacts,
		usageStats:  b.UsageStats,
		cfg:         cfg,
		log:         baseLog.With("module", "usage"),
	}
}

// Record bumps the counters for each data row, the per-kind stat, and the
// owning contacts, all inside the caller's transaction. Any missing row id
// fails the whole call with no partial effect.
func (t *Tracker) Record(dbc dbctx.Context, dataRowIDs []int64, kind types.UsageKind, at int64) error {
	if !contacts.ValidUsageKind(kind) {
		return contacts.NewError(contacts.CodeValidation, "usage.Record", "unsupported usage kind", nil)
	}
	if len(dataRowIDs) == 0 {
		return nil
	}
	ids := dedupeIDs(dataRowIDs)
	rows, err := t.dataRows.GetByIDs(dbc.Ctx, dbc.Tx, ids)
	if err != nil {
		return err
	}
	if len(rows) != len(ids) {
		return contacts.NewError(contacts.CodeNotFound, "usage.Record", "data row not found", nil)
	}

	rawIDs := make([]int64, 0, len(rows))
	perRaw := make(map[int64]int64)
	for _, row := range rows {
		if err := t.dataRows.IncrementUsage(dbc.Ctx, dbc.Tx, row.ID, at); err != nil {
			return err
		}
		if err := t.usageStats.Increment(dbc.Ctx, dbc.Tx, row.ID, kind, at); err != nil {
			return err
		}
		if perRaw[row.RawContactID] == 0 {
			rawIDs = append(rawIDs, row.RawContactID)
		}
		perRaw[row.RawContactID]++
	}

	owners, err := t.rawContacts.GetByIDs(dbc.Ctx, dbc.Tx, rawIDs)
	if err != nil {
		return err
	}
	perContact := make(map[int64]int64)
	for _, rc := range owners {
		if rc.ContactID == 0 {
			continue
		}
		perContact[rc.ContactID] += perRaw[rc.ID]
	}
	for cid, delta := range perContact {
		if err := t.contactRows.AddUsage(dbc.Ctx, dbc.Tx, cid, delta, at); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAll zeroes every usage counter. The result is never below one so
// callers can tell a completed wipe from a failed one even on an empty
// store.
func (t *Tracker) DeleteAll(dbc dbctx.Context) (int64, error) {
	affected, err := t.dataRows.ZeroAllUsage(dbc.Ctx, dbc.Tx)
	if err != nil {
		return 0, err
	}
	n, err := t.usageStats.ZeroAll(dbc.Ctx, dbc.Tx)
	if err != nil {
		return 0, err
	}
	affected += n
	n, err = t.contactRows.ZeroAllUsage(dbc.Ctx, dbc.Tx)
	if err != nil {
		return 0, err
	}
	affected += n
	if affected < 1 {
		affected = 1
	}
	return affected, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
