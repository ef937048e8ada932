package aggregation_test

import (
	"context"
	"testing"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	"github.com/openfolk/contacts-backend/internal/data/repos/testutil"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/modules/aggregation"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
)

func newEngine(t *testing.T) (*aggregation.Engine, *repos.Bundle, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	bundle := repos.NewBundle(db, log)
	return aggregation.NewEngine(bundle, log), bundle, dbctx.Context{Ctx: context.Background(), Tx: tx}
}

func contactOf(t *testing.T, bundle *repos.Bundle, dbc dbctx.Context, rawContactID int64) int64 {
	t.Helper()
	rc, err := bundle.RawContacts.GetByID(dbc.Ctx, dbc.Tx, rawContactID)
	if err != nil {
		t.Fatalf("get raw contact %d: %v", rawContactID, err)
	}
	if rc.ContactID == 0 {
		t.Fatalf("raw contact %d has no contact", rawContactID)
	}
	return rc.ContactID
}

func TestLoosePhoneMatchAggregates(t *testing.T) {
	eng, bundle, dbc := newEngine(t)

	acctA := testutil.SeedAccount(t, dbc.Ctx, dbc.Tx, "alpha")
	acctB := testutil.SeedAccount(t, dbc.Ctx, dbc.Tx, "beta")

	a := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, testutil.PtrInt64(acctA.ID), "a1")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, a.ID, "+18004664411")
	if _, err := eng.OnRawContactChanged(dbc, a.ID); err != nil {
		t.Fatalf("aggregate a: %v", err)
	}

	b := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, testutil.PtrInt64(acctB.ID), "b1")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, b.ID, "8004664411")
	if _, err := eng.OnRawContactChanged(dbc, b.ID); err != nil {
		t.Fatalf("aggregate b: %v", err)
	}

	if got, want := contactOf(t, bundle, dbc, b.ID), contactOf(t, bundle, dbc, a.ID); got != want {
		t.Fatalf("expected one aggregate, got contacts %d and %d", want, got)
	}
}

func TestKeepSeparateOverridesSharedPhone(t *testing.T) {
	eng, bundle, dbc := newEngine(t)

	a := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	b := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, a.ID, "5551234567")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, b.ID, "5551234567")

	if _, err := eng.SetException(dbc, types.KeepSeparate, b.ID, a.ID); err != nil {
		t.Fatalf("set exception: %v", err)
	}
	if _, err := eng.OnRawContactChanged(dbc, a.ID); err != nil {
		t.Fatalf("aggregate a: %v", err)
	}

	if contactOf(t, bundle, dbc, a.ID) == contactOf(t, bundle, dbc, b.ID) {
		t.Fatal("keep-separate pair ended up in the same contact")
	}
}

func TestKeepSeparateHoldsTransitively(t *testing.T) {
	eng, bundle, dbc := newEngine(t)

	a := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	b := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	c := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, a.ID, "5550001111")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, b.ID, "5550002222")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, c.ID, "5550001111")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, c.ID, "5550002222")

	if _, err := eng.SetException(dbc, types.KeepSeparate, a.ID, b.ID); err != nil {
		t.Fatalf("set exception: %v", err)
	}
	if _, err := eng.OnRawContactChanged(dbc, c.ID); err != nil {
		t.Fatalf("aggregate c: %v", err)
	}

	if contactOf(t, bundle, dbc, a.ID) == contactOf(t, bundle, dbc, b.ID) {
		t.Fatal("separated pair merged through a shared third raw contact")
	}
}

func TestKeepTogetherWithoutSignals(t *testing.T) {
	eng, bundle, dbc := newEngine(t)

	a := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	b := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	testutil.SeedNameRow(t, dbc.Ctx, dbc.Tx, a.ID, "Ada Lovelace", "Ada", "Lovelace")
	testutil.SeedEmailRow(t, dbc.Ctx, dbc.Tx, b.ID, "grace@example.com")
	if _, err := eng.OnRawContactChanged(dbc, a.ID); err != nil {
		t.Fatalf("aggregate a: %v", err)
	}
	if _, err := eng.OnRawContactChanged(dbc, b.ID); err != nil {
		t.Fatalf("aggregate b: %v", err)
	}
	if contactOf(t, bundle, dbc, a.ID) == contactOf(t, bundle, dbc, b.ID) {
		t.Fatal("unrelated raw contacts merged without signals")
	}

	if _, err := eng.SetException(dbc, types.KeepTogether, a.ID, b.ID); err != nil {
		t.Fatalf("set exception: %v", err)
	}
	if contactOf(t, bundle, dbc, a.ID) != contactOf(t, bundle, dbc, b.ID) {
		t.Fatal("keep-together pair did not merge")
	}
}

func TestMergeSurvivorIsSmallestContactID(t *testing.T) {
	eng, bundle, dbc := newEngine(t)

	a := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	testutil.SeedEmailRow(t, dbc.Ctx, dbc.Tx, a.ID, "ada@example.com")
	if _, err := eng.OnRawContactChanged(dbc, a.ID); err != nil {
		t.Fatalf("aggregate a: %v", err)
	}
	first := contactOf(t, bundle, dbc, a.ID)

	b := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	testutil.SeedEmailRow(t, dbc.Ctx, dbc.Tx, b.ID, "other@example.com")
	if _, err := eng.OnRawContactChanged(dbc, b.ID); err != nil {
		t.Fatalf("aggregate b: %v", err)
	}
	second := contactOf(t, bundle, dbc, b.ID)
	if second <= first {
		t.Fatalf("expected later contact id, got %d <= %d", second, first)
	}

	testutil.SeedEmailRow(t, dbc.Ctx, dbc.Tx, b.ID, "ada@example.com")
	res, err := eng.OnRawContactChanged(dbc, b.ID)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := contactOf(t, bundle, dbc, b.ID); got != first {
		t.Fatalf("survivor contact = %d, want %d", got, first)
	}
	found := false
	for _, did := range res.Deleted {
		if did == second {
			found = true
		}
	}
	if !found {
		t.Fatalf("merged-away contact %d missing from deleted list %v", second, res.Deleted)
	}

	logs, err := bundle.DeleteLogs.ListSince(dbc.Ctx, dbc.Tx, 0)
	if err != nil {
		t.Fatalf("list delete log: %v", err)
	}
	logged := false
	for _, entry := range logs {
		if entry.ContactID == second {
			logged = true
		}
	}
	if !logged {
		t.Fatalf("no delete-log entry for contact %d", second)
	}
}

func TestSplitKeepsOriginalOnLargerComponent(t *testing.T) {
	eng, bundle, dbc := newEngine(t)

	a := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	b := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, a.ID, "5559876543")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, b.ID, "5559876543")
	if _, err := eng.OnRawContactChanged(dbc, a.ID); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	merged := contactOf(t, bundle, dbc, a.ID)
	if contactOf(t, bundle, dbc, b.ID) != merged {
		t.Fatal("setup: pair did not merge")
	}

	res, err := eng.SetException(dbc, types.KeepSeparate, a.ID, b.ID)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	ca, cb := contactOf(t, bundle, dbc, a.ID), contactOf(t, bundle, dbc, b.ID)
	if ca == cb {
		t.Fatal("split pair still shares a contact")
	}
	if ca != merged && cb != merged {
		t.Fatalf("neither component kept original contact %d (got %d, %d)", merged, ca, cb)
	}
	if len(res.Deleted) != 0 {
		t.Fatalf("two-way split deleted contacts %v", res.Deleted)
	}
	logs, err := bundle.DeleteLogs.ListSince(dbc.Ctx, dbc.Tx, 0)
	if err != nil {
		t.Fatalf("list delete log: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("delete log written on non-emptying split: %+v", logs)
	}
}

func TestSettledInputIsIdempotent(t *testing.T) {
	eng, _, dbc := newEngine(t)

	a := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	b := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, a.ID, "5551112222")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, b.ID, "5551112222")
	if _, err := eng.OnRawContactChanged(dbc, a.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	res, err := eng.OnRawContactChanged(dbc, a.ID)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(res.Changed) != 0 || len(res.Deleted) != 0 {
		t.Fatalf("settled rerun reported changes: %+v", res)
	}
}

func TestDisabledModeStaysSingleton(t *testing.T) {
	eng, bundle, dbc := newEngine(t)

	a := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	b := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	b.AggregationMode = types.AggregationDisabled
	if err := bundle.RawContacts.Save(dbc.Ctx, dbc.Tx, b); err != nil {
		t.Fatalf("save: %v", err)
	}
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, a.ID, "5553334444")
	testutil.SeedPhoneRow(t, dbc.Ctx, dbc.Tx, b.ID, "5553334444")

	if _, err := eng.OnRawContactChanged(dbc, a.ID); err != nil {
		t.Fatalf("aggregate a: %v", err)
	}
	if _, err := eng.OnRawContactChanged(dbc, b.ID); err != nil {
		t.Fatalf("aggregate b: %v", err)
	}
	if contactOf(t, bundle, dbc, a.ID) == contactOf(t, bundle, dbc, b.ID) {
		t.Fatal("disabled-mode raw contact joined an aggregate")
	}
}

func TestExceptionOnMissingRawContact(t *testing.T) {
	eng, _, dbc := newEngine(t)

	a := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	_, err := eng.SetException(dbc, types.KeepTogether, a.ID, a.ID+100000)
	if !contacts.IsCode(err, contacts.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestSelfPairExceptionIsNoOp(t *testing.T) {
	eng, _, dbc := newEngine(t)

	a := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	res, err := eng.SetException(dbc, types.KeepSeparate, a.ID, a.ID)
	if err != nil {
		t.Fatalf("self pair: %v", err)
	}
	if len(res.Affected) != 0 || len(res.Changed) != 0 {
		t.Fatalf("self pair had effects: %+v", res)
	}
}
