package services_test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	"github.com/openfolk/contacts-backend/internal/data/repos/testutil"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/modules/aggregation"
	"github.com/openfolk/contacts-backend/internal/modules/derived"
	"github.com/openfolk/contacts-backend/internal/modules/lookup"
	"github.com/openfolk/contacts-backend/internal/modules/usage"
	"github.com/openfolk/contacts-backend/internal/platform/locale"
	"github.com/openfolk/contacts-backend/internal/realtime"
	"github.com/openfolk/contacts-backend/internal/realtime/bus"
	"github.com/openfolk/contacts-backend/internal/services"
)

type eventLog struct {
	mu     sync.Mutex
	events []realtime.ChangeEvent
}

func (l *eventLog) add(e realtime.ChangeEvent) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) contactIDs(typ realtime.EventType) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []int64
	for _, e := range l.events {
		if e.Type == typ {
			ids = append(ids, e.ContactID)
		}
	}
	return ids
}

func (l *eventLog) reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

type harness struct {
	bundle   *repos.Bundle
	contacts services.ContactService
	usage    services.UsageService
	lookups  services.LookupService
	sync     services.SyncService
	events   *eventLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	b := repos.NewBundle(db, log)
	locales := locale.NewSettings("en", log)
	engine := aggregation.NewEngine(b, log)
	computer := derived.NewComputer(db, b, locales, log)
	resolver := lookup.NewResolver(b, log)
	tracker := usage.NewTracker(b, usage.DefaultConfig(), log)

	changeBus := bus.NewLocalBus(log)
	events := &eventLog{}
	if err := changeBus.StartForwarder(context.Background(), events.add); err != nil {
		t.Fatalf("start forwarder: %v", err)
	}

	return &harness{
		bundle:   b,
		contacts: services.NewContactService(db, log, b, engine, computer, resolver, locales, changeBus),
		usage:    services.NewUsageService(db, log, b, tracker),
		lookups:  services.NewLookupService(db, log, b, resolver),
		sync:     services.NewSyncService(db, log, b, engine, computer, resolver, locales, changeBus),
		events:   events,
	}
}

func createWithPhone(t *testing.T, h *harness, name, number string) *types.RawContact {
	t.Helper()
	rc, err := h.contacts.CreateRawContact(context.Background(), services.RawContactInput{
		Rows: []services.DataRowInput{
			{Kind: types.KindName, Value: name},
			{Kind: types.KindPhone, Value: number},
		},
	})
	if err != nil {
		t.Fatalf("create raw contact: %v", err)
	}
	return rc
}

func TestCreateRawContactBuildsAggregate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rc := createWithPhone(t, h, "Nora Quist", "+1 212 555 7001")
	if rc.ContactID == 0 {
		t.Fatalf("expected raw contact to get an aggregate")
	}
	view, err := h.contacts.GetContact(ctx, rc.ContactID)
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if view.Contact.DisplayNamePrimary != "Nora Quist" {
		t.Fatalf("display name = %q", view.Contact.DisplayNamePrimary)
	}
	if !view.Contact.HasPhoneNumber {
		t.Fatalf("expected has_phone_number")
	}
	if view.Contact.LookupKey == "" {
		t.Fatalf("expected lookup key to be derived")
	}
	if got := h.events.contactIDs(realtime.EventContactChanged); len(got) == 0 {
		t.Fatalf("expected a contact_changed event")
	}
}

func TestSharedPhoneMergesThroughService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := createWithPhone(t, h, "Ivar Lund", "+1 212 555 7002")
	second := createWithPhone(t, h, "I. Lundqvist", "212 555 7002")

	a, err := h.bundle.RawContacts.GetByID(ctx, nil, first.ID)
	if err != nil {
		t.Fatalf("reload first: %v", err)
	}
	b, err := h.bundle.RawContacts.GetByID(ctx, nil, second.ID)
	if err != nil {
		t.Fatalf("reload second: %v", err)
	}
	if a.ContactID != b.ContactID {
		t.Fatalf("expected one aggregate, got %d and %d", a.ContactID, b.ContactID)
	}
}

func TestExceptionRoundTripThroughService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := createWithPhone(t, h, "Reza Pahl", "+1 212 555 7003")
	second := createWithPhone(t, h, "R. Pahlavi", "212 555 7003")

	if err := h.contacts.SetException(ctx, types.KeepSeparate, first.ID, second.ID); err != nil {
		t.Fatalf("set exception: %v", err)
	}
	a, _ := h.bundle.RawContacts.GetByID(ctx, nil, first.ID)
	b, _ := h.bundle.RawContacts.GetByID(ctx, nil, second.ID)
	if a.ContactID == b.ContactID {
		t.Fatalf("keep-separate left both on contact %d", a.ContactID)
	}

	if err := h.contacts.ClearException(ctx, first.ID, second.ID); err != nil {
		t.Fatalf("clear exception: %v", err)
	}
	a, _ = h.bundle.RawContacts.GetByID(ctx, nil, first.ID)
	b, _ = h.bundle.RawContacts.GetByID(ctx, nil, second.ID)
	if a.ContactID != b.ContactID {
		t.Fatalf("expected remerge, got %d and %d", a.ContactID, b.ContactID)
	}
}

func TestDeleteRawContactEmitsContactDeleted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rc := createWithPhone(t, h, "Sole Member", "+1 212 555 7004")
	oldContact := rc.ContactID
	h.events.reset()

	if err := h.contacts.DeleteRawContact(ctx, rc.ID); err != nil {
		t.Fatalf("delete raw contact: %v", err)
	}
	reloaded, err := h.bundle.RawContacts.GetByID(ctx, nil, rc.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.Deleted || reloaded.ContactID != 0 {
		t.Fatalf("expected tombstone, got deleted=%v contact=%d", reloaded.Deleted, reloaded.ContactID)
	}
	deleted := h.events.contactIDs(realtime.EventContactDeleted)
	if len(deleted) != 1 || deleted[0] != oldContact {
		t.Fatalf("deleted events = %v, want [%d]", deleted, oldContact)
	}
}

func TestPurgeRawContactRemovesEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rc := createWithPhone(t, h, "Purge Target", "+1 212 555 7005")
	oldContact := rc.ContactID

	if err := h.sync.PurgeRawContact(ctx, rc.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := h.bundle.RawContacts.GetByID(ctx, nil, rc.ID); !contacts.IsCode(err, contacts.CodeNotFound) {
		t.Fatalf("expected not found after purge, got %v", err)
	}
	if _, err := h.bundle.Contacts.GetByID(ctx, nil, oldContact); !contacts.IsCode(err, contacts.CodeNotFound) {
		t.Fatalf("expected aggregate gone, got %v", err)
	}
	logs, err := h.sync.DeletedSince(ctx, 0)
	if err != nil {
		t.Fatalf("deleted since: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.ContactID == oldContact {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected delete log entry for contact %d", oldContact)
	}
}

func TestDirtyFeedRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	account, err := h.contacts.CreateAccount(ctx, "sync-feed@example.com", "com.example.carddav", "", true)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	rc, err := h.contacts.CreateRawContact(ctx, services.RawContactInput{
		AccountID: &account.ID,
		SourceID:  "vcard-77",
		Rows: []services.DataRowInput{
			{Kind: types.KindName, Value: "Dirty Feed"},
		},
	})
	if err != nil {
		t.Fatalf("create raw contact: %v", err)
	}

	dirty, err := h.sync.ListDirty(ctx, account.ID)
	if err != nil {
		t.Fatalf("list dirty: %v", err)
	}
	found := false
	for _, d := range dirty {
		if d.ID == rc.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected raw contact %d in dirty feed", rc.ID)
	}

	if err := h.sync.ClearDirty(ctx, []int64{rc.ID}); err != nil {
		t.Fatalf("clear dirty: %v", err)
	}
	dirty, err = h.sync.ListDirty(ctx, account.ID)
	if err != nil {
		t.Fatalf("list dirty again: %v", err)
	}
	for _, d := range dirty {
		if d.ID == rc.ID {
			t.Fatalf("raw contact %d still dirty after clear", rc.ID)
		}
	}
}

func TestByPhoneFindsAggregate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rc := createWithPhone(t, h, "Phone Hit", "+1 212 555 7006")
	results, err := h.lookups.ByPhone(ctx, "2125557006")
	if err != nil {
		t.Fatalf("by phone: %v", err)
	}
	found := false
	for _, c := range results {
		if c.ID == rc.ContactID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected contact %d in phone results", rc.ContactID)
	}

	if _, err := h.lookups.ByPhone(ctx, "no digits"); !contacts.IsCode(err, contacts.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestByPhoneRowsKeepsEveryContribution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := createWithPhone(t, h, "Dag Wirsen", "+1 212 555 7020")
	second := createWithPhone(t, h, "D. Wirsenius", "212 555 7020")

	if err := h.contacts.SetException(ctx, types.KeepSeparate, first.ID, second.ID); err != nil {
		t.Fatalf("set exception: %v", err)
	}
	rows, err := h.lookups.ByPhoneRows(ctx, "2125557020")
	if err != nil {
		t.Fatalf("by phone rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("separated pair: got %d rows, want 2", len(rows))
	}
	if rows[0].ContactID == rows[1].ContactID {
		t.Fatalf("separated pair shares contact %d", rows[0].ContactID)
	}
	dedup, err := h.lookups.ByPhone(ctx, "2125557020")
	if err != nil {
		t.Fatalf("by phone: %v", err)
	}
	if len(dedup) != 2 {
		t.Fatalf("separated pair: got %d contacts, want 2", len(dedup))
	}

	if err := h.contacts.ClearException(ctx, first.ID, second.ID); err != nil {
		t.Fatalf("clear exception: %v", err)
	}
	rows, err = h.lookups.ByPhoneRows(ctx, "2125557020")
	if err != nil {
		t.Fatalf("by phone rows after merge: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("merged pair: got %d rows, want 2", len(rows))
	}
	if rows[0].ContactID != rows[1].ContactID {
		t.Fatalf("merged pair split across contacts %d and %d", rows[0].ContactID, rows[1].ContactID)
	}
	dedup, err = h.lookups.ByPhone(ctx, "2125557020")
	if err != nil {
		t.Fatalf("by phone after merge: %v", err)
	}
	if len(dedup) != 1 {
		t.Fatalf("merged pair: got %d contacts, want 1", len(dedup))
	}
}

func TestSuperPrimaryPromotionDemotesSiblings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rc := createWithPhone(t, h, "Super Primary", "+1 212 555 7007")
	promoted, err := h.contacts.AddDataRow(ctx, rc.ID, services.DataRowInput{
		Kind:           types.KindPhone,
		Value:          "+1 212 555 7107",
		IsSuperPrimary: true,
	})
	if err != nil {
		t.Fatalf("add super primary row: %v", err)
	}

	_, rows, err := h.contacts.GetRawContact(ctx, rc.ID)
	if err != nil {
		t.Fatalf("get raw contact: %v", err)
	}
	for _, row := range rows {
		if row.Kind != types.KindPhone {
			continue
		}
		wantSuper := row.ID == promoted.ID
		if row.IsSuperPrimary != wantSuper {
			t.Fatalf("row %d super primary = %v, want %v", row.ID, row.IsSuperPrimary, wantSuper)
		}
	}
}

func TestUpdateDataRowKindIsImmutable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rc := createWithPhone(t, h, "Kind Lock", "+1 212 555 7008")
	_, rows, err := h.contacts.GetRawContact(ctx, rc.ID)
	if err != nil {
		t.Fatalf("get raw contact: %v", err)
	}
	var phoneRow *types.DataRow
	for _, row := range rows {
		if row.Kind == types.KindPhone {
			phoneRow = row
		}
	}
	if phoneRow == nil {
		t.Fatalf("expected a phone row")
	}
	_, err = h.contacts.UpdateDataRow(ctx, phoneRow.ID, services.DataRowInput{
		Kind:  types.KindEmail,
		Value: "kindlock@example.com",
	})
	if !contacts.IsCode(err, contacts.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGroupVisibilityFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	account, err := h.contacts.CreateAccount(ctx, "groups@example.com", "com.example.carddav", "", false)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	group, err := h.contacts.CreateGroup(ctx, services.GroupInput{
		AccountID: &account.ID,
		Title:     "Coworkers",
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	rc, err := h.contacts.CreateRawContact(ctx, services.RawContactInput{
		AccountID: &account.ID,
		SourceID:  "vcard-88",
		Rows: []services.DataRowInput{
			{Kind: types.KindName, Value: "Grouped Person"},
			{Kind: types.KindGroupMembership, Value: formatGroupID(group.ID)},
		},
	})
	if err != nil {
		t.Fatalf("create raw contact: %v", err)
	}

	contact, err := h.bundle.Contacts.GetByID(ctx, nil, rc.ContactID)
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if contact.InVisibleGroup {
		t.Fatalf("expected invisible before group is made visible")
	}

	if err := h.contacts.SetGroupVisible(ctx, group.ID, true); err != nil {
		t.Fatalf("set group visible: %v", err)
	}
	contact, _ = h.bundle.Contacts.GetByID(ctx, nil, rc.ContactID)
	if !contact.InVisibleGroup {
		t.Fatalf("expected visible after group flip")
	}

	if err := h.contacts.DeleteGroup(ctx, group.ID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	contact, _ = h.bundle.Contacts.GetByID(ctx, nil, rc.ContactID)
	if contact.InVisibleGroup {
		t.Fatalf("expected invisible after group deletion on opted-out account")
	}
}

func TestStarFanOutThroughService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rc := createWithPhone(t, h, "Star Fan", "+1 212 555 7009")
	if err := h.contacts.SetContactStarred(ctx, rc.ContactID, true); err != nil {
		t.Fatalf("star contact: %v", err)
	}
	contact, err := h.bundle.Contacts.GetByID(ctx, nil, rc.ContactID)
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if !contact.Starred {
		t.Fatalf("expected contact starred")
	}
	member, _ := h.bundle.RawContacts.GetByID(ctx, nil, rc.ID)
	if !member.Starred {
		t.Fatalf("expected star fanned out to member")
	}
}

func TestUsageRecordThroughService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rc := createWithPhone(t, h, "Usage Caller", "+1 212 555 7010")
	_, rows, err := h.contacts.GetRawContact(ctx, rc.ID)
	if err != nil {
		t.Fatalf("get raw contact: %v", err)
	}
	var phoneRowID int64
	for _, row := range rows {
		if row.Kind == types.KindPhone {
			phoneRowID = row.ID
		}
	}
	if err := h.usage.Record(ctx, []int64{phoneRowID}, types.UsageCall, 0); err != nil {
		t.Fatalf("record usage: %v", err)
	}
	contact, err := h.bundle.Contacts.GetByID(ctx, nil, rc.ContactID)
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if contact.TimesUsed != 1 {
		t.Fatalf("contact times_used = %d, want 1", contact.TimesUsed)
	}
}

func formatGroupID(id int64) string {
	return strconv.FormatInt(id, 10)
}
