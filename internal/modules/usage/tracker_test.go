package usage_test

import (
	"context"
	"testing"
	"time"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	"github.com/openfolk/contacts-backend/internal/data/repos/testutil"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/modules/usage"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
)

func newTracker(t *testing.T) (*usage.Tracker, *repos.Bundle, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	bundle := repos.NewBundle(db, log)
	return usage.NewTracker(bundle, usage.DefaultConfig(), log), bundle, dbctx.Context{Ctx: context.Background(), Tx: tx}
}

func seedMemberWithPhone(t *testing.T, bundle *repos.Bundle, dbc dbctx.Context, number string) (*types.Contact, *types.DataRow) {
	t.Helper()
	contact := testutil.SeedContact(t, dbc.Ctx, dbc.Tx, "")
	rc := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	if err := bundle.RawContacts.SetContactID(dbc.Ctx, dbc.Tx, []int64{rc.ID}, contact.ID); err != nil {
		t.Fatalf("assign member: %v", err)
	}
	row := testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, rc.ID, number)
	return contact, row
}

func TestRecordRollsUpToContact(t *testing.T) {
	tr, bundle, dbc := newTracker(t)
	contact, row := seedMemberWithPhone(t, bundle, dbc, "5551230001")

	at := time.Now().UnixMilli()
	if err := tr.Record(dbc, []int64{row.ID}, types.UsageCall, at); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tr.Record(dbc, []int64{row.ID}, types.UsageCall, at+1000); err != nil {
		t.Fatalf("record: %v", err)
	}

	gotRow, err := bundle.DataRows.GetByID(dbc.Ctx, dbc.Tx, row.ID)
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if gotRow.TimesUsed != 2 || gotRow.LastUsedAt != at+1000 {
		t.Fatalf("row counters = (%d, %d), want (2, %d)", gotRow.TimesUsed, gotRow.LastUsedAt, at+1000)
	}

	gotContact, err := bundle.Contacts.GetByID(dbc.Ctx, dbc.Tx, contact.ID)
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if gotContact.TimesUsed != 2 || gotContact.LastUsedAt != at+1000 {
		t.Fatalf("contact counters = (%d, %d), want (2, %d)", gotContact.TimesUsed, gotContact.LastUsedAt, at+1000)
	}
}

func TestRecordOlderTimestampKeepsLastUsed(t *testing.T) {
	tr, bundle, dbc := newTracker(t)
	_, row := seedMemberWithPhone(t, bundle, dbc, "5551230002")

	at := time.Now().UnixMilli()
	if err := tr.Record(dbc, []int64{row.ID}, types.UsageCall, at); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tr.Record(dbc, []int64{row.ID}, types.UsageCall, at-5000); err != nil {
		t.Fatalf("record older: %v", err)
	}
	gotRow, err := bundle.DataRows.GetByID(dbc.Ctx, dbc.Tx, row.ID)
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if gotRow.LastUsedAt != at {
		t.Fatalf("last_used_at regressed to %d, want %d", gotRow.LastUsedAt, at)
	}
	if gotRow.TimesUsed != 2 {
		t.Fatalf("times_used = %d, want 2", gotRow.TimesUsed)
	}
}

func TestRecordUnknownRowFails(t *testing.T) {
	tr, bundle, dbc := newTracker(t)
	_, row := seedMemberWithPhone(t, bundle, dbc, "5551230003")

	err := tr.Record(dbc, []int64{row.ID, row.ID + 99999}, types.UsageCall, time.Now().UnixMilli())
	if !contacts.IsCode(err, contacts.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	gotRow, err := bundle.DataRows.GetByID(dbc.Ctx, dbc.Tx, row.ID)
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if gotRow.TimesUsed != 0 {
		t.Fatalf("partial effect: times_used = %d", gotRow.TimesUsed)
	}
}

func TestRecordRejectsUnknownKind(t *testing.T) {
	tr, bundle, dbc := newTracker(t)
	_, row := seedMemberWithPhone(t, bundle, dbc, "5551230004")
	err := tr.Record(dbc, []int64{row.ID}, types.UsageKind("carrier_pigeon"), time.Now().UnixMilli())
	if !contacts.IsCode(err, contacts.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecayedBucketsAndKindFilter(t *testing.T) {
	tr, bundle, dbc := newTracker(t)
	_, callRow := seedMemberWithPhone(t, bundle, dbc, "5551230005")
	_, textRow := seedMemberWithPhone(t, bundle, dbc, "5551230006")
	_, staleRow := seedMemberWithPhone(t, bundle, dbc, "5551230007")

	now := time.Now()
	t1 := now.Add(-3 * time.Hour).UnixMilli()
	t2 := now.Add(-2 * time.Hour).UnixMilli()
	t3 := now.Add(-1 * time.Hour).UnixMilli()
	for _, at := range []int64{t1, t2, t3} {
		if err := tr.Record(dbc, []int64{callRow.ID}, types.UsageCall, at); err != nil {
			t.Fatalf("record call: %v", err)
		}
	}
	if err := tr.Record(dbc, []int64{textRow.ID}, types.UsageShortText, t3); err != nil {
		t.Fatalf("record text: %v", err)
	}
	if err := tr.Record(dbc, []int64{staleRow.ID}, types.UsageCall, now.Add(-40*24*time.Hour).UnixMilli()); err != nil {
		t.Fatalf("record stale: %v", err)
	}

	entries, err := tr.Decayed(dbc, types.UsageCall, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("decayed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the call row, got %+v", entries)
	}
	e := entries[0]
	if e.DataRowID != callRow.ID || e.Bucket != 0 || e.TimesUsed != 3 {
		t.Fatalf("entry = %+v, want row %d in bucket 0 with count 3", e, callRow.ID)
	}
}

func TestCombinedDeduplicates(t *testing.T) {
	tr, bundle, dbc := newTracker(t)
	starredAndFrequent, row := seedMemberWithPhone(t, bundle, dbc, "5551230008")
	frequentOnly, row2 := seedMemberWithPhone(t, bundle, dbc, "5551230009")

	at := time.Now().UnixMilli()
	if err := tr.Record(dbc, []int64{row.ID}, types.UsageCall, at); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tr.Record(dbc, []int64{row2.ID}, types.UsageCall, at); err != nil {
		t.Fatalf("record: %v", err)
	}
	starredAndFrequent.Starred = true
	if err := bundle.Contacts.Save(dbc.Ctx, dbc.Tx, starredAndFrequent); err != nil {
		t.Fatalf("star contact: %v", err)
	}

	out, err := tr.Combined(dbc, 0)
	if err != nil {
		t.Fatalf("combined: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0].ID != starredAndFrequent.ID {
		t.Fatalf("starred contact should lead, got %d", out[0].ID)
	}
	if out[1].ID != frequentOnly.ID {
		t.Fatalf("frequent contact missing or duplicated: %+v", out)
	}
}

func TestDeleteAllReportsAtLeastOne(t *testing.T) {
	tr, _, dbc := newTracker(t)
	n, err := tr.DeleteAll(dbc)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n < 1 {
		t.Fatalf("affected = %d, want >= 1", n)
	}
}
