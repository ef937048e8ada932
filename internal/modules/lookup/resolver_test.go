package lookup_test

import (
	"context"
	"testing"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	"github.com/openfolk/contacts-backend/internal/data/repos/testutil"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/modules/lookup"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
)

func newResolver(t *testing.T) (*lookup.Resolver, *repos.Bundle, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	bundle := repos.NewBundle(db, log)
	return lookup.NewResolver(bundle, log), bundle, dbctx.Context{Ctx: context.Background(), Tx: tx}
}

func TestRefreshAndFastPath(t *testing.T) {
	res, bundle, dbc := newResolver(t)

	acct := testutil.SeedAccount(t, dbc.Ctx, dbc.Tx, "sync")
	contact := testutil.SeedContact(t, dbc.Ctx, dbc.Tx, "")
	rc := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, testutil.PtrInt64(acct.ID), "src-1")
	if err := bundle.RawContacts.SetContactID(dbc.Ctx, dbc.Tx, []int64{rc.ID}, contact.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	key, err := res.RefreshKey(dbc, contact.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if key == "" {
		t.Fatal("empty lookup key")
	}
	stored, err := bundle.Contacts.GetByID(dbc.Ctx, dbc.Tx, contact.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.LookupKey != key {
		t.Fatalf("stored key %q != derived %q", stored.LookupKey, key)
	}

	got, err := res.Resolve(dbc, key, contact.ID)
	if err != nil {
		t.Fatalf("resolve fast path: %v", err)
	}
	if got.ID != contact.ID {
		t.Fatalf("resolved %d, want %d", got.ID, contact.ID)
	}
}

func TestResolveSurvivesReaggregation(t *testing.T) {
	res, bundle, dbc := newResolver(t)

	acct := testutil.SeedAccount(t, dbc.Ctx, dbc.Tx, "sync2")
	oldContact := testutil.SeedContact(t, dbc.Ctx, dbc.Tx, "")
	rc := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, testutil.PtrInt64(acct.ID), "src-2")
	if err := bundle.RawContacts.SetContactID(dbc.Ctx, dbc.Tx, []int64{rc.ID}, oldContact.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	key, err := res.RefreshKey(dbc, oldContact.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Simulate a merge: the member moves to another contact and the old one
	// is deleted.
	newContact := testutil.SeedContact(t, dbc.Ctx, dbc.Tx, "")
	if err := bundle.RawContacts.SetContactID(dbc.Ctx, dbc.Tx, []int64{rc.ID}, newContact.ID); err != nil {
		t.Fatalf("move member: %v", err)
	}
	if err := bundle.Contacts.Delete(dbc.Ctx, dbc.Tx, oldContact.ID); err != nil {
		t.Fatalf("delete old: %v", err)
	}

	got, err := res.Resolve(dbc, key, oldContact.ID)
	if err != nil {
		t.Fatalf("resolve slow path: %v", err)
	}
	if got.ID != newContact.ID {
		t.Fatalf("resolved %d, want %d", got.ID, newContact.ID)
	}
}

func TestResolveNotFoundWhenNoTokenSurvives(t *testing.T) {
	res, bundle, dbc := newResolver(t)

	contact := testutil.SeedContact(t, dbc.Ctx, dbc.Tx, "")
	rc := testutil.SeedRawContact(t, dbc.Ctx, dbc.Tx, nil, "")
	if err := bundle.RawContacts.SetContactID(dbc.Ctx, dbc.Tx, []int64{rc.ID}, contact.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	key, err := res.RefreshKey(dbc, contact.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := bundle.RawContacts.MarkDeleted(dbc.Ctx, dbc.Tx, rc.ID); err != nil {
		t.Fatalf("tombstone member: %v", err)
	}
	if err := bundle.Contacts.Delete(dbc.Ctx, dbc.Tx, contact.ID); err != nil {
		t.Fatalf("delete contact: %v", err)
	}

	_, err = res.Resolve(dbc, key, contact.ID)
	if !contacts.IsCode(err, contacts.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestResolveRejectsMalformedKey(t *testing.T) {
	res, _, dbc := newResolver(t)
	if _, err := res.Resolve(dbc, "not base64!!", 0); !contacts.IsCode(err, contacts.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
