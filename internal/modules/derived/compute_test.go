package derived_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	"github.com/openfolk/contacts-backend/internal/data/repos/testutil"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/modules/derived"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
	"github.com/openfolk/contacts-backend/internal/platform/locale"
)

func newComputer(t *testing.T) (*derived.Computer, *repos.Bundle, dbctx.Context, *locale.Snapshot) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	bundle := repos.NewBundle(db, log)
	locales := locale.NewSettings("en", log)
	comp := derived.NewComputer(db, bundle, locales, log)
	return comp, bundle, dbctx.Context{Ctx: context.Background(), Tx: tx}, locales.Active()
}

func seedAggregate(t *testing.T, bundle *repos.Bundle, dbc dbctx.Context, memberCount int) (*types.Contact, []*types.RawContact) {
	t.Helper()
	contact := testutil.SeedContact(t, dbc.Ctx, dbc.Tx, "")
	var members []*types.RawContact
	for i := 0; i < memberCount; i++ {
		rc := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
		if err := bundle.RawContacts.SetContactID(dbc.Ctx, dbc.Tx, []int64{rc.ID}, contact.ID); err != nil {
			t.Fatalf("assign member: %v", err)
		}
		rc.ContactID = contact.ID
		members = append(members, rc)
	}
	return contact, members
}

func reload(t *testing.T, bundle *repos.Bundle, dbc dbctx.Context, id int64) *types.Contact {
	t.Helper()
	c, err := bundle.Contacts.GetByID(dbc.Ctx, dbc.Tx, id)
	if err != nil {
		t.Fatalf("reload contact: %v", err)
	}
	return c
}

func TestDisplayNamePriority(t *testing.T) {
	comp, bundle, dbc, snap := newComputer(t)
	contact, members := seedAggregate(t, bundle, dbc, 2)

	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, members[0].ID, "5550001234")
	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got := reload(t, bundle, dbc, contact.ID); got.DisplayNamePrimary != "5550001234" {
		t.Fatalf("phone fallback: got %q", got.DisplayNamePrimary)
	}

	testutil.SeedNameRow(t, dbc.Ctx, dbc.Tx, members[1].ID, "Ada Lovelace", "Ada", "Lovelace")
	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	got := reload(t, bundle, dbc, contact.ID)
	if got.DisplayNamePrimary != "Ada Lovelace" {
		t.Fatalf("name should win: got %q", got.DisplayNamePrimary)
	}
	if got.DisplayNameAlternative != "Lovelace, Ada" {
		t.Fatalf("family-first alternative: got %q", got.DisplayNameAlternative)
	}
	if got.NameSourceRawContactID != members[1].ID {
		t.Fatalf("name source member = %d, want %d", got.NameSourceRawContactID, members[1].ID)
	}
	if got.PhonebookLabelPrimary != "A" {
		t.Fatalf("label = %q, want A", got.PhonebookLabelPrimary)
	}
	if got.SortKeyPrimary == "" {
		t.Fatal("empty sort key")
	}
	if !got.HasPhoneNumber {
		t.Fatal("has_phone_number not set")
	}
}

func TestOrganizationCompanyBeatsTitleOnly(t *testing.T) {
	comp, bundle, dbc, snap := newComputer(t)
	contact, members := seedAggregate(t, bundle, dbc, 1)

	titleOnly := &types.DataRow{
		RawContactID: members[0].ID,
		Kind:         types.KindOrganization,
		Meta:         []byte(`{"job_title":"Engineer"}`),
	}
	if err := bundle.DataRows.Create(dbc.Ctx, dbc.Tx, titleOnly); err != nil {
		t.Fatalf("create row: %v", err)
	}
	withCompany := &types.DataRow{
		RawContactID: members[0].ID,
		Kind:         types.KindOrganization,
		Meta:         []byte(`{"company":"Acme","job_title":"Engineer"}`),
	}
	if err := bundle.DataRows.Create(dbc.Ctx, dbc.Tx, withCompany); err != nil {
		t.Fatalf("create row: %v", err)
	}

	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got := reload(t, bundle, dbc, contact.ID); got.DisplayNamePrimary != "Acme" {
		t.Fatalf("company should win over title: got %q", got.DisplayNamePrimary)
	}
}

func TestSuperPrimaryBeatsLowerID(t *testing.T) {
	comp, bundle, dbc, snap := newComputer(t)
	contact, members := seedAggregate(t, bundle, dbc, 1)

	first := testutil.SeedNameRow(t, dbc.Ctx, dbc.Tx, members[0].ID, "First Name", "First", "Name")
	second := testutil.SeedNameRow(t, dbc.Ctx, dbc.Tx, members[0].ID, "Second Name", "Second", "Name")
	second.IsPrimary = true
	second.IsSuperPrimary = true
	if err := bundle.DataRows.Save(dbc.Ctx, dbc.Tx, second); err != nil {
		t.Fatalf("promote row: %v", err)
	}

	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	got := reload(t, bundle, dbc, contact.ID)
	if got.DisplayNamePrimary != "Second Name" {
		t.Fatalf("super-primary should win: got %q", got.DisplayNamePrimary)
	}
	if got.NameSourceDataRowID != second.ID {
		t.Fatalf("name source row = %d, want %d", got.NameSourceDataRowID, second.ID)
	}
	_ = first
}

func TestStarredIsOrOverMembers(t *testing.T) {
	comp, bundle, dbc, snap := newComputer(t)
	contact, members := seedAggregate(t, bundle, dbc, 2)

	if err := comp.SetContactStarred(dbc, contact.ID, true); err != nil {
		t.Fatalf("star contact: %v", err)
	}
	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	for _, m := range members {
		rc, err := bundle.RawContacts.GetByID(dbc.Ctx, dbc.Tx, m.ID)
		if err != nil {
			t.Fatalf("get member: %v", err)
		}
		if !rc.Starred {
			t.Fatalf("member %d not starred after fan-out", m.ID)
		}
	}
	if !reload(t, bundle, dbc, contact.ID).Starred {
		t.Fatal("contact not starred")
	}

	if _, err := comp.SetRawContactStarred(dbc, members[0].ID, false); err != nil {
		t.Fatalf("unstar member: %v", err)
	}
	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !reload(t, bundle, dbc, contact.ID).Starred {
		t.Fatal("contact should stay starred while one member is starred")
	}

	if _, err := comp.SetRawContactStarred(dbc, members[1].ID, false); err != nil {
		t.Fatalf("unstar member: %v", err)
	}
	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if reload(t, bundle, dbc, contact.ID).Starred {
		t.Fatal("contact should be unstarred once no member is starred")
	}
}

func TestPinForceStarRoundTrip(t *testing.T) {
	comp, bundle, dbc, snap := newComputer(t)
	contact, members := seedAggregate(t, bundle, dbc, 2)

	if err := bundle.RawContacts.SetStarred(dbc.Ctx, dbc.Tx, members[0].ID, true); err != nil {
		t.Fatalf("pre-star member: %v", err)
	}

	if err := comp.PinContact(dbc, contact.ID, 3, true); err != nil {
		t.Fatalf("pin: %v", err)
	}
	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	got := reload(t, bundle, dbc, contact.ID)
	if got.PinnedPosition != 3 {
		t.Fatalf("pinned position = %d, want 3", got.PinnedPosition)
	}
	if !got.Starred {
		t.Fatal("force-star pin did not star the contact")
	}

	if err := comp.UnpinContact(dbc, contact.ID); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	got = reload(t, bundle, dbc, contact.ID)
	if got.PinnedPosition != types.UnpinnedPosition {
		t.Fatalf("still pinned at %d", got.PinnedPosition)
	}
	if !got.Starred {
		t.Fatal("independently starred member should keep its star through unpin")
	}
	second, err := bundle.RawContacts.GetByID(dbc.Ctx, dbc.Tx, members[1].ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if second.Starred {
		t.Fatal("unpin should undo force-star for the member it starred")
	}
}

func TestPinRejectsNonPositivePosition(t *testing.T) {
	comp, bundle, dbc, _ := newComputer(t)
	contact, _ := seedAggregate(t, bundle, dbc, 1)
	if err := comp.PinContact(dbc, contact.ID, 0, false); err == nil {
		t.Fatal("expected validation error for position 0")
	}
}

func TestVisibilityFromGroupsAndUngroupedSetting(t *testing.T) {
	comp, bundle, dbc, snap := newComputer(t)

	acct := testutil.SeedAccount(t, dbc.Ctx, dbc.Tx, "gamma")
	if err := bundle.Accounts.SetUngroupedVisible(dbc.Ctx, dbc.Tx, acct.ID, false); err != nil {
		t.Fatalf("hide ungrouped: %v", err)
	}
	group := testutil.SeedGroup(t, dbc.Ctx, dbc.Tx, acct.ID, "friends", true)

	contact := testutil.SeedContact(t, dbc.Ctx, dbc.Tx, "")
	rc := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, testutil.PtrInt64(acct.ID), "v1")
	if err := bundle.RawContacts.SetContactID(dbc.Ctx, dbc.Tx, []int64{rc.ID}, contact.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if reload(t, bundle, dbc, contact.ID).InVisibleGroup {
		t.Fatal("ungrouped member of hidden-ungrouped account should be invisible")
	}

	membership := &types.DataRow{
		RawContactID: rc.ID,
		Kind:         types.KindGroupMembership,
		Value:        strconv.FormatInt(group.ID, 10),
	}
	if err := bundle.DataRows.Create(dbc.Ctx, dbc.Tx, membership); err != nil {
		t.Fatalf("create membership: %v", err)
	}
	if _, err := comp.Recompute(dbc, contact.ID, snap); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !reload(t, bundle, dbc, contact.ID).InVisibleGroup {
		t.Fatal("member of a visible group should be visible")
	}
}

func TestRecomputeReportsNoChangeWhenSettled(t *testing.T) {
	comp, bundle, dbc, snap := newComputer(t)
	contact, members := seedAggregate(t, bundle, dbc, 1)
	testutil.SeedNameRow(t, dbc.Ctx, dbc.Tx, members[0].ID, "Grace Hopper", "Grace", "Hopper")

	changed, err := comp.Recompute(dbc, contact.ID, snap)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !changed {
		t.Fatal("first recompute should report a change")
	}
	changed, err = comp.Recompute(dbc, contact.ID, snap)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if changed {
		t.Fatal("settled recompute should report no change")
	}
}
