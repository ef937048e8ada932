package services

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"gorm.io/gorm"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/modules/aggregation"
	"github.com/openfolk/contacts-backend/internal/modules/derived"
	"github.com/openfolk/contacts-backend/internal/modules/lookup"
	"github.com/openfolk/contacts-backend/internal/normalization"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
	"github.com/openfolk/contacts-backend/internal/platform/locale"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
	"github.com/openfolk/contacts-backend/internal/realtime"
	"github.com/openfolk/contacts-backend/internal/realtime/bus"
)

// DataRowInput is the writable surface of a data row. Kind is immutable once
// the row exists.
type DataRowInput struct {
	Kind           types.DataKind    `json:"kind"`
	Value          string            `json:"value"`
	Meta           map[string]string `json:"meta,omitempty"`
	IsPrimary      bool              `json:"is_primary"`
	IsSuperPrimary bool              `json:"is_super_primary"`
}

type RawContactInput struct {
	AccountID       *int64                `json:"account_id,omitempty"`
	SourceID        string                `json:"source_id,omitempty"`
	AggregationMode types.AggregationMode `json:"aggregation_mode,omitempty"`
	Starred         bool                  `json:"starred"`
	CustomRingtone  string                `json:"custom_ringtone,omitempty"`
	SendToVoicemail bool                  `json:"send_to_voicemail"`
	Rows            []DataRowInput        `json:"rows,omitempty"`
}

type GroupInput struct {
	AccountID *int64 `json:"account_id,omitempty"`
	SourceID  string `json:"source_id,omitempty"`
	Title     string `json:"title"`
	Visible   bool   `json:"visible"`
	AutoAdd   bool   `json:"auto_add"`
	Favorites bool   `json:"favorites"`
}

// ContactView is the read shape handlers return: the aggregate plus its
// members and their data rows.
type ContactView struct {
	Contact *types.Contact     `json:"contact"`
	Members []*types.RawContact `json:"members"`
	Rows    []*types.DataRow   `json:"rows"`
}

type ContactService interface {
	CreateRawContact(ctx context.Context, in RawContactInput) (*types.RawContact, error)
	SetAggregationMode(ctx context.Context, rawContactID int64, mode types.AggregationMode) error
	DeleteRawContact(ctx context.Context, rawContactID int64) error

	AddDataRow(ctx context.Context, rawContactID int64, in DataRowInput) (*types.DataRow, error)
	UpdateDataRow(ctx context.Context, dataRowID int64, in DataRowInput) (*types.DataRow, error)
	DeleteDataRow(ctx context.Context, dataRowID int64) error

	SetException(ctx context.Context, typ types.ExceptionType, rawContactID1, rawContactID2 int64) error
	ClearException(ctx context.Context, rawContactID1, rawContactID2 int64) error

	SetContactStarred(ctx context.Context, contactID int64, starred bool) error
	SetRawContactStarred(ctx context.Context, rawContactID int64, starred bool) error
	PinContact(ctx context.Context, contactID int64, position int, forceStar bool) error
	UnpinContact(ctx context.Context, contactID int64) error

	GetContact(ctx context.Context, contactID int64) (*ContactView, error)
	GetRawContact(ctx context.Context, rawContactID int64) (*types.RawContact, []*types.DataRow, error)

	CreateAccount(ctx context.Context, name, typ, dataSet string, ungroupedVisible bool) (*types.Account, error)
	SetAccountUngroupedVisible(ctx context.Context, accountID int64, visible bool) error

	CreateGroup(ctx context.Context, in GroupInput) (*types.Group, error)
	SetGroupVisible(ctx context.Context, groupID int64, visible bool) error
	DeleteGroup(ctx context.Context, groupID int64) error

	SetActiveLocale(bcp47 string) int64
	RecomputeStale(ctx context.Context) (int, error)
}

type contactService struct {
	db       *gorm.DB
	log      *logger.Logger
	repos    *repos.Bundle
	engine   *aggregation.Engine
	derived  *derived.Computer
	resolver *lookup.Resolver
	locales  *locale.Settings
	bus      bus.Bus
	locks    *keyedLocks
}

func NewContactService(
	db *gorm.DB,
	log *logger.Logger,
	b *repos.Bundle,
	engine *aggregation.Engine,
	computer *derived.Computer,
	resolver *lookup.Resolver,
	locales *locale.Settings,
	changeBus bus.Bus,
) ContactService {
	return &contactService{
		db:       db,
		log:      log.With("service", "ContactService"),
		repos:    b,
		engine:   engine,
		derived:  computer,
		resolver: resolver,
		locales:  locales,
		bus:      changeBus,
		locks:    newKeyedLocks(),
	}
}

// mutate is the write pipeline shared by every mutation: keyed locks, one
// transaction, change events published only after commit.
func (cs *contactService) mutate(ctx context.Context, lockKeys []int64, fn func(dbc dbctx.Context) ([]realtime.ChangeEvent, error)) error {
	release := cs.locks.Acquire(lockKeys...)
	defer release()

	var events []realtime.ChangeEvent
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		evs, err := fn(dbctx.Context{Ctx: ctx, Tx: tx})
		if err != nil {
			return err
		}
		events = evs
		return nil
	})
	if err != nil {
		return err
	}
	cs.publish(ctx, events)
	return nil
}

func (cs *contactService) publish(ctx context.Context, events []realtime.ChangeEvent) {
	publishEvents(ctx, cs.bus, cs.log, events)
}

func (cs *contactService) settle(dbc dbctx.Context, res *aggregation.Result) ([]realtime.ChangeEvent, error) {
	return settleAggregation(dbc, res, cs.derived, cs.resolver, cs.locales.Active())
}

// lockKeysForRawContacts resolves the contact ids the raw contacts currently
// belong to, read outside the transaction. Raw contacts without an aggregate
// yet lock on nothing; the transaction itself still serializes row writes.
func (cs *contactService) lockKeysForRawContacts(ctx context.Context, rawContactIDs ...int64) []int64 {
	rcs, err := cs.repos.RawContacts.GetByIDs(ctx, nil, rawContactIDs)
	if err != nil {
		return nil
	}
	keys := make([]int64, 0, len(rcs))
	for _, rc := range rcs {
		keys = append(keys, rc.ContactID)
	}
	return keys
}

func validAggregationMode(mode types.AggregationMode) bool {
	switch mode {
	case types.AggregationDefault, types.AggregationDisabled, types.AggregationKeepSeparate:
		return true
	}
	return false
}

func (cs *contactService) CreateRawContact(ctx context.Context, in RawContactInput) (*types.RawContact, error) {
	const op = "ContactService.CreateRawContact"
	mode := in.AggregationMode
	if mode == "" {
		mode = types.AggregationDefault
	}
	if !validAggregationMode(mode) {
		return nil, contacts.NewError(contacts.CodeValidation, op, "unknown aggregation mode", nil)
	}
	for _, rowIn := range in.Rows {
		if !contacts.ValidDataKind(rowIn.Kind) {
			return nil, contacts.NewError(contacts.CodeValidation, op, "unknown data kind "+string(rowIn.Kind), nil)
		}
	}

	var out *types.RawContact
	err := cs.mutate(ctx, nil, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		if in.AccountID != nil {
			if _, err := cs.repos.Accounts.GetByID(dbc.Ctx, dbc.Tx, *in.AccountID); err != nil {
				return nil, err
			}
		}
		rc := &types.RawContact{
			AccountID:       in.AccountID,
			SourceID:        in.SourceID,
			AggregationMode: mode,
			Starred:         in.Starred,
			CustomRingtone:  in.CustomRingtone,
			SendToVoicemail: in.SendToVoicemail,
			Dirty:           true,
			Version:         1,
		}
		if err := cs.repos.RawContacts.Create(dbc.Ctx, dbc.Tx, rc); err != nil {
			return nil, err
		}
		hasMembership := false
		for _, rowIn := range in.Rows {
			if _, err := cs.insertDataRow(dbc, rc, rowIn); err != nil {
				return nil, err
			}
			if rowIn.Kind == types.KindGroupMembership {
				hasMembership = true
			}
		}
		if in.AccountID != nil && !hasMembership {
			if err := cs.applyAutoAddGroup(dbc, rc); err != nil {
				return nil, err
			}
		}

		res, err := cs.engine.OnRawContactChanged(dbc, rc.ID)
		if err != nil {
			return nil, err
		}
		events, err := cs.settle(dbc, res)
		if err != nil {
			return nil, err
		}
		fresh, err := cs.repos.RawContacts.GetByID(dbc.Ctx, dbc.Tx, rc.ID)
		if err != nil {
			return nil, err
		}
		out = fresh
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyAutoAddGroup mirrors the sync-adapter convention that new raw
// contacts without explicit memberships join the account's auto-add group.
func (cs *contactService) applyAutoAddGroup(dbc dbctx.Context, rc *types.RawContact) error {
	grp, err := cs.repos.Groups.AutoAddGroupForAccount(dbc.Ctx, dbc.Tx, *rc.AccountID)
	if err != nil || grp == nil {
		return err
	}
	_, err = cs.insertDataRow(dbc, rc, DataRowInput{
		Kind:  types.KindGroupMembership,
		Value: strconv.FormatInt(grp.ID, 10),
	})
	return err
}

func (cs *contactService) SetAggregationMode(ctx context.Context, rawContactID int64, mode types.AggregationMode) error {
	const op = "ContactService.SetAggregationMode"
	if !validAggregationMode(mode) {
		return contacts.NewError(contacts.CodeValidation, op, "unknown aggregation mode", nil)
	}
	lockKeys := cs.lockKeysForRawContacts(ctx, rawContactID)
	return cs.mutate(ctx, lockKeys, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		rc, err := cs.repos.RawContacts.GetByID(dbc.Ctx, dbc.Tx, rawContactID)
		if err != nil {
			return nil, err
		}
		if rc.Deleted {
			return nil, contacts.NewError(contacts.CodeValidation, op, "raw contact is deleted", nil)
		}
		if rc.AggregationMode == mode {
			return nil, nil
		}
		rc.AggregationMode = mode
		if err := cs.repos.RawContacts.Save(dbc.Ctx, dbc.Tx, rc); err != nil {
			return nil, err
		}
		if err := cs.repos.RawContacts.BumpVersion(dbc.Ctx, dbc.Tx, rc.ID); err != nil {
			return nil, err
		}
		res, err := cs.engine.OnRawContactChanged(dbc, rc.ID)
		if err != nil {
			return nil, err
		}
		return cs.settle(dbc, res)
	})
}

// DeleteRawContact tombstones the raw contact so sync adapters can observe
// the deletion. Data rows and the lookup index survive until the adapter
// purges the tombstone.
func (cs *contactService) DeleteRawContact(ctx context.Context, rawContactID int64) error {
	lockKeys := cs.lockKeysForRawContacts(ctx, rawContactID)
	return cs.mutate(ctx, lockKeys, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		rc, err := cs.repos.RawContacts.GetByID(dbc.Ctx, dbc.Tx, rawContactID)
		if err != nil {
			return nil, err
		}
		if rc.Deleted {
			return nil, nil
		}
		oldContactID := rc.ContactID
		if err := cs.repos.RawContacts.MarkDeleted(dbc.Ctx, dbc.Tx, rc.ID); err != nil {
			return nil, err
		}
		if oldContactID == 0 {
			return nil, nil
		}
		res, err := cs.engine.Reaggregate(dbc, nil, []int64{oldContactID})
		if err != nil {
			return nil, err
		}
		return cs.settle(dbc, res)
	})
}

func (cs *contactService) AddDataRow(ctx context.Context, rawContactID int64, in DataRowInput) (*types.DataRow, error) {
	const op = "ContactService.AddDataRow"
	if !contacts.ValidDataKind(in.Kind) {
		return nil, contacts.NewError(contacts.CodeValidation, op, "unknown data kind "+string(in.Kind), nil)
	}
	lockKeys := cs.lockKeysForRawContacts(ctx, rawContactID)
	var out *types.DataRow
	err := cs.mutate(ctx, lockKeys, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		rc, err := cs.repos.RawContacts.GetByID(dbc.Ctx, dbc.Tx, rawContactID)
		if err != nil {
			return nil, err
		}
		if rc.Deleted {
			return nil, contacts.NewError(contacts.CodeValidation, op, "raw contact is deleted", nil)
		}
		row, err := cs.insertDataRow(dbc, rc, in)
		if err != nil {
			return nil, err
		}
		if err := cs.repos.RawContacts.BumpVersion(dbc.Ctx, dbc.Tx, rc.ID); err != nil {
			return nil, err
		}
		res, err := cs.engine.OnRawContactChanged(dbc, rc.ID)
		if err != nil {
			return nil, err
		}
		events, err := cs.settle(dbc, res)
		if err != nil {
			return nil, err
		}
		out = row
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (cs *contactService) UpdateDataRow(ctx context.Context, dataRowID int64, in DataRowInput) (*types.DataRow, error) {
	const op = "ContactService.UpdateDataRow"
	var out *types.DataRow
	err := cs.mutate(ctx, nil, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		row, err := cs.repos.DataRows.GetByID(dbc.Ctx, dbc.Tx, dataRowID)
		if err != nil {
			return nil, err
		}
		if in.Kind != "" && in.Kind != row.Kind {
			return nil, contacts.NewError(contacts.CodeValidation, op, "data row kind is immutable", nil)
		}
		row.Value = in.Value
		row.IsPrimary = in.IsPrimary || in.IsSuperPrimary
		row.IsSuperPrimary = in.IsSuperPrimary
		if err := cs.applyRowMeta(dbc, row, in.Meta); err != nil {
			return nil, err
		}
		cs.normalizeRow(row)
		if err := cs.repos.DataRows.Save(dbc.Ctx, dbc.Tx, row); err != nil {
			return nil, err
		}
		if row.IsSuperPrimary {
			if err := cs.repos.DataRows.ClearSuperPrimary(dbc.Ctx, dbc.Tx, row.RawContactID, row.Kind, row.ID); err != nil {
				return nil, err
			}
		}
		if err := cs.syncRowLookups(dbc, row); err != nil {
			return nil, err
		}
		if err := cs.repos.RawContacts.BumpVersion(dbc.Ctx, dbc.Tx, row.RawContactID); err != nil {
			return nil, err
		}
		res, err := cs.engine.OnRawContactChanged(dbc, row.RawContactID)
		if err != nil {
			return nil, err
		}
		events, err := cs.settle(dbc, res)
		if err != nil {
			return nil, err
		}
		out = row
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (cs *contactService) DeleteDataRow(ctx context.Context, dataRowID int64) error {
	return cs.mutate(ctx, nil, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		row, err := cs.repos.DataRows.GetByID(dbc.Ctx, dbc.Tx, dataRowID)
		if err != nil {
			return nil, err
		}
		switch row.Kind {
		case types.KindPhone:
			if err := cs.repos.DataRows.DeletePhoneLookup(dbc.Ctx, dbc.Tx, row.ID); err != nil {
				return nil, err
			}
		case types.KindName:
			if err := cs.repos.DataRows.DeleteNameLookup(dbc.Ctx, dbc.Tx, row.ID); err != nil {
				return nil, err
			}
		}
		if err := cs.repos.UsageStats.DeleteForDataRows(dbc.Ctx, dbc.Tx, []int64{row.ID}); err != nil {
			return nil, err
		}
		if err := cs.repos.DataRows.Delete(dbc.Ctx, dbc.Tx, row.ID); err != nil {
			return nil, err
		}
		if err := cs.repos.RawContacts.BumpVersion(dbc.Ctx, dbc.Tx, row.RawContactID); err != nil {
			return nil, err
		}
		res, err := cs.engine.OnRawContactChanged(dbc, row.RawContactID)
		if err != nil {
			return nil, err
		}
		return cs.settle(dbc, res)
	})
}

func (cs *contactService) SetException(ctx context.Context, typ types.ExceptionType, rawContactID1, rawContactID2 int64) error {
	lockKeys := cs.lockKeysForRawContacts(ctx, rawContactID1, rawContactID2)
	return cs.mutate(ctx, lockKeys, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		res, err := cs.engine.SetException(dbc, typ, rawContactID1, rawContactID2)
		if err != nil {
			return nil, err
		}
		return cs.settle(dbc, res)
	})
}

func (cs *contactService) ClearException(ctx context.Context, rawContactID1, rawContactID2 int64) error {
	lockKeys := cs.lockKeysForRawContacts(ctx, rawContactID1, rawContactID2)
	return cs.mutate(ctx, lockKeys, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		res, err := cs.engine.ClearException(dbc, rawContactID1, rawContactID2)
		if err != nil {
			return nil, err
		}
		return cs.settle(dbc, res)
	})
}

func (cs *contactService) SetContactStarred(ctx context.Context, contactID int64, starred bool) error {
	return cs.mutate(ctx, []int64{contactID}, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		if err := cs.derived.SetContactStarred(dbc, contactID, starred); err != nil {
			return nil, err
		}
		return cs.settle(dbc, &aggregation.Result{Affected: []int64{contactID}})
	})
}

func (cs *contactService) SetRawContactStarred(ctx context.Context, rawContactID int64, starred bool) error {
	lockKeys := cs.lockKeysForRawContacts(ctx, rawContactID)
	return cs.mutate(ctx, lockKeys, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		contactID, err := cs.derived.SetRawContactStarred(dbc, rawContactID, starred)
		if err != nil {
			return nil, err
		}
		if contactID == 0 {
			return nil, nil
		}
		return cs.settle(dbc, &aggregation.Result{Affected: []int64{contactID}})
	})
}

func (cs *contactService) PinContact(ctx context.Context, contactID int64, position int, forceStar bool) error {
	return cs.mutate(ctx, []int64{contactID}, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		if err := cs.derived.PinContact(dbc, contactID, position, forceStar); err != nil {
			return nil, err
		}
		return cs.settle(dbc, &aggregation.Result{Affected: []int64{contactID}})
	})
}

func (cs *contactService) UnpinContact(ctx context.Context, contactID int64) error {
	return cs.mutate(ctx, []int64{contactID}, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		if err := cs.derived.UnpinContact(dbc, contactID); err != nil {
			return nil, err
		}
		return cs.settle(dbc, &aggregation.Result{Affected: []int64{contactID}})
	})
}

func (cs *contactService) GetContact(ctx context.Context, contactID int64) (*ContactView, error) {
	contact, err := cs.repos.Contacts.GetByID(ctx, nil, contactID)
	if err != nil {
		return nil, err
	}
	members, err := cs.repos.RawContacts.ListByContactIDs(ctx, nil, []int64{contactID})
	if err != nil {
		return nil, err
	}
	memberIDs := make([]int64, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID)
	}
	rows, err := cs.repos.DataRows.ListByRawContactIDs(ctx, nil, memberIDs)
	if err != nil {
		return nil, err
	}
	return &ContactView{Contact: contact, Members: members, Rows: rows}, nil
}

func (cs *contactService) GetRawContact(ctx context.Context, rawContactID int64) (*types.RawContact, []*types.DataRow, error) {
	rc, err := cs.repos.RawContacts.GetByID(ctx, nil, rawContactID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := cs.repos.DataRows.ListByRawContactIDs(ctx, nil, []int64{rc.ID})
	if err != nil {
		return nil, nil, err
	}
	return rc, rows, nil
}

func (cs *contactService) CreateAccount(ctx context.Context, name, typ, dataSet string, ungroupedVisible bool) (*types.Account, error) {
	const op = "ContactService.CreateAccount"
	if name == "" || typ == "" {
		return nil, contacts.NewError(contacts.CodeValidation, op, "account name and type are required", nil)
	}
	account := &types.Account{
		Name:             name,
		Type:             typ,
		DataSet:          dataSet,
		UngroupedVisible: ungroupedVisible,
	}
	if err := cs.repos.Accounts.Create(ctx, nil, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (cs *contactService) SetAccountUngroupedVisible(ctx context.Context, accountID int64, visible bool) error {
	return cs.mutate(ctx, nil, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		if _, err := cs.repos.Accounts.GetByID(dbc.Ctx, dbc.Tx, accountID); err != nil {
			return nil, err
		}
		if err := cs.repos.Accounts.SetUngroupedVisible(dbc.Ctx, dbc.Tx, accountID, visible); err != nil {
			return nil, err
		}
		members, err := cs.repos.RawContacts.ListByAccount(dbc.Ctx, dbc.Tx, accountID)
		if err != nil {
			return nil, err
		}
		return cs.settle(dbc, &aggregation.Result{Affected: contactIDsOf(members)})
	})
}

func (cs *contactService) CreateGroup(ctx context.Context, in GroupInput) (*types.Group, error) {
	const op = "ContactService.CreateGroup"
	if in.Title == "" {
		return nil, contacts.NewError(contacts.CodeValidation, op, "group title is required", nil)
	}
	if in.AccountID != nil {
		if _, err := cs.repos.Accounts.GetByID(ctx, nil, *in.AccountID); err != nil {
			return nil, err
		}
	}
	group := &types.Group{
		AccountID: in.AccountID,
		SourceID:  in.SourceID,
		Title:     in.Title,
		Visible:   in.Visible,
		AutoAdd:   in.AutoAdd,
		Favorites: in.Favorites,
	}
	if err := cs.repos.Groups.Create(ctx, nil, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (cs *contactService) SetGroupVisible(ctx context.Context, groupID int64, visible bool) error {
	return cs.mutate(ctx, nil, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		group, err := cs.repos.Groups.GetByID(dbc.Ctx, dbc.Tx, groupID)
		if err != nil {
			return nil, err
		}
		if group.Visible == visible {
			return nil, nil
		}
		group.Visible = visible
		if err := cs.repos.Groups.Save(dbc.Ctx, dbc.Tx, group); err != nil {
			return nil, err
		}
		affected, err := cs.groupMemberContacts(dbc, group.ID)
		if err != nil {
			return nil, err
		}
		return cs.settle(dbc, &aggregation.Result{Affected: affected})
	})
}

// DeleteGroup removes the group and its membership rows, then recomputes
// visibility for the contacts that were members.
func (cs *contactService) DeleteGroup(ctx context.Context, groupID int64) error {
	return cs.mutate(ctx, nil, func(dbc dbctx.Context) ([]realtime.ChangeEvent, error) {
		group, err := cs.repos.Groups.GetByID(dbc.Ctx, dbc.Tx, groupID)
		if err != nil {
			return nil, err
		}
		rows, err := cs.repos.DataRows.GroupMembershipRows(dbc.Ctx, dbc.Tx, group.ID)
		if err != nil {
			return nil, err
		}
		rawIDs := make(map[int64]struct{}, len(rows))
		for _, row := range rows {
			if err := cs.repos.DataRows.Delete(dbc.Ctx, dbc.Tx, row.ID); err != nil {
				return nil, err
			}
			rawIDs[row.RawContactID] = struct{}{}
		}
		for id := range rawIDs {
			if err := cs.repos.RawContacts.BumpVersion(dbc.Ctx, dbc.Tx, id); err != nil {
				return nil, err
			}
		}
		if err := cs.repos.Groups.Delete(dbc.Ctx, dbc.Tx, group.ID); err != nil {
			return nil, err
		}
		members, err := cs.repos.RawContacts.GetByIDs(dbc.Ctx, dbc.Tx, keysOf(rawIDs))
		if err != nil {
			return nil, err
		}
		return cs.settle(dbc, &aggregation.Result{Affected: contactIDsOf(members)})
	})
}

// SetActiveLocale swaps the collation locale and kicks off the background
// re-sort of every contact's sort keys and phonebook labels.
func (cs *contactService) SetActiveLocale(bcp47 string) int64 {
	version := cs.locales.Set(bcp47)
	go func() {
		n, err := cs.derived.RecomputeAll(context.Background())
		if err != nil {
			cs.log.Warn("locale recompute failed", "error", err, "locale_version", version)
			return
		}
		cs.log.Info("locale recompute finished", "contacts", n, "locale_version", version)
	}()
	return version
}

func (cs *contactService) RecomputeStale(ctx context.Context) (int, error) {
	return cs.derived.RecomputeAll(ctx)
}

// insertDataRow creates one row with its normalized value and lookup-index
// entries, enforcing the one-super-primary-per-kind invariant.
func (cs *contactService) insertDataRow(dbc dbctx.Context, rc *types.RawContact, in DataRowInput) (*types.DataRow, error) {
	const op = "ContactService.AddDataRow"
	row := &types.DataRow{
		RawContactID:   rc.ID,
		Kind:           in.Kind,
		Value:          in.Value,
		IsPrimary:      in.IsPrimary || in.IsSuperPrimary,
		IsSuperPrimary: in.IsSuperPrimary,
	}
	if err := cs.applyRowMeta(dbc, row, in.Meta); err != nil {
		return nil, err
	}
	cs.normalizeRow(row)
	if row.Kind == types.KindGroupMembership {
		groupID, err := strconv.ParseInt(row.Value, 10, 64)
		if err != nil {
			return nil, contacts.NewError(contacts.CodeValidation, op, "group membership value must be a group id", err)
		}
		if _, err := cs.repos.Groups.GetByID(dbc.Ctx, dbc.Tx, groupID); err != nil {
			return nil, err
		}
		// A sync adapter can drop and recreate the group between the check
		// and the insert. Re-resolve the group and retry once before
		// surfacing the conflict.
		if err := cs.repos.DataRows.Create(dbc.Ctx, dbc.Tx, row); err != nil {
			if !contacts.IsCode(err, contacts.CodeConflict) {
				return nil, err
			}
			if _, err := cs.repos.Groups.GetByID(dbc.Ctx, dbc.Tx, groupID); err != nil {
				return nil, err
			}
			if err := cs.repos.DataRows.Create(dbc.Ctx, dbc.Tx, row); err != nil {
				return nil, err
			}
		}
	} else if err := cs.repos.DataRows.Create(dbc.Ctx, dbc.Tx, row); err != nil {
		return nil, err
	}
	if row.IsSuperPrimary {
		if err := cs.repos.DataRows.ClearSuperPrimary(dbc.Ctx, dbc.Tx, rc.ID, row.Kind, row.ID); err != nil {
			return nil, err
		}
	}
	if err := cs.syncRowLookups(dbc, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (cs *contactService) applyRowMeta(_ dbctx.Context, row *types.DataRow, meta map[string]string) error {
	if len(meta) == 0 {
		row.Meta = nil
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	row.Meta = raw
	return nil
}

func (cs *contactService) normalizeRow(row *types.DataRow) {
	switch row.Kind {
	case types.KindPhone:
		row.NormalizedValue = normalization.Phone(row.Value)
	case types.KindEmail:
		row.NormalizedValue = normalization.Email(row.Value)
	default:
		row.NormalizedValue = ""
	}
}

// syncRowLookups keeps the phone and name indexes consistent with the row.
func (cs *contactService) syncRowLookups(dbc dbctx.Context, row *types.DataRow) error {
	switch row.Kind {
	case types.KindPhone:
		if row.NormalizedValue == "" {
			return cs.repos.DataRows.DeletePhoneLookup(dbc.Ctx, dbc.Tx, row.ID)
		}
		return cs.repos.DataRows.ReplacePhoneLookup(dbc.Ctx, dbc.Tx, &types.PhoneLookup{
			DataRowID:    row.ID,
			RawContactID: row.RawContactID,
			Normalized:   row.NormalizedValue,
			MinMatch:     normalization.PhoneMinMatch(row.NormalizedValue),
		})
	case types.KindName:
		return cs.repos.DataRows.ReplaceNameLookup(dbc.Ctx, dbc.Tx, row.ID, row.RawContactID, normalization.NameTokens(row.Value))
	}
	return nil
}

// groupMemberContacts returns the contact ids of the group's member raw
// contacts.
func (cs *contactService) groupMemberContacts(dbc dbctx.Context, groupID int64) ([]int64, error) {
	rows, err := cs.repos.DataRows.GroupMembershipRows(dbc.Ctx, dbc.Tx, groupID)
	if err != nil {
		return nil, err
	}
	rawIDs := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		rawIDs[row.RawContactID] = struct{}{}
	}
	members, err := cs.repos.RawContacts.GetByIDs(dbc.Ctx, dbc.Tx, keysOf(rawIDs))
	if err != nil {
		return nil, err
	}
	return contactIDsOf(members), nil
}

func contactIDsOf(rcs []*types.RawContact) []int64 {
	seen := make(map[int64]struct{}, len(rcs))
	ids := make([]int64, 0, len(rcs))
	for _, rc := range rcs {
		if rc.ContactID == 0 {
			continue
		}
		if _, ok := seen[rc.ContactID]; ok {
			continue
		}
		seen[rc.ContactID] = struct{}{}
		ids = append(ids, rc.ContactID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func keysOf(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
