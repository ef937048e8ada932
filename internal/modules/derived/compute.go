package derived

import (
	"encoding/json"
	"strconv"

	"gorm.io/gorm"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
	"github.com/openfolk/contacts-backend/internal/platform/locale"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

// Computer recomputes the derived attributes of one aggregate after its
// membership or source data changed: display names, sort keys, phonebook
// labels, visibility, starred/pinned rollup, photo and ringtone selection.
type Computer struct {
	db          *gorm.DB
	rawContacts repos.RawContactRepo
	dataRows    repos.DataRowRepo
	contactRows repos.ContactRepo
	groups      repos.GroupRepo
	accounts    repos.AccountRepo
	locales     *locale.Settings
	log         *logger.Logger
}

func NewComputer(db *gorm.DB, b *repos.Bundle, locales *locale.Settings, baseLog *logger.Logger) *Computer {
	return &Computer{
		db:          db,
		rawContacts: b.RawContacts,
		dataRows:    b.DataRows,
		contactRows: b.Contacts,
		groups:      b.Groups,
		accounts:    b.Accounts,
		locales:     locales,
		log:         baseLog.With("module", "derived"),
	}
}

type nameMeta struct {
	GivenName    string `json:"given_name"`
	FamilyName   string `json:"family_name"`
	PhoneticName string `json:"phonetic_name"`
	Company      string `json:"company"`
	JobTitle     string `json:"job_title"`
}

func rowMeta(row *types.DataRow) nameMeta {
	var m nameMeta
	if len(row.Meta) > 0 {
		_ = json.Unmarshal(row.Meta, &m)
	}
	return m
}

// Recompute rebuilds the contact's derived attributes from its current
// members and reports whether anything visible changed. The locale snapshot
// is passed explicitly so the background pass and single-contact writes
// agree on the version being stamped.
func (c *Computer) Recompute(dbc dbctx.Context, contactID int64, snap *locale.Snapshot) (bool, error) {
	contact, err := c.contactRows.GetByID(dbc.Ctx, dbc.Tx, contactID)
	if err != nil {
		return false, err
	}
	members, err := c.rawContacts.ListByContactIDs(dbc.Ctx, dbc.Tx, []int64{contactID})
	if err != nil {
		return false, err
	}
	if len(members) == 0 {
		if contact.LocaleVersion != snap.Version {
			contact.LocaleVersion = snap.Version
			if err := c.contactRows.Save(dbc.Ctx, dbc.Tx, contact); err != nil {
				return false, err
			}
		}
		return false, nil
	}
	memberIDs := make([]int64, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID)
	}
	rows, err := c.dataRows.ListByRawContactIDs(dbc.Ctx, dbc.Tx, memberIDs)
	if err != nil {
		return false, err
	}

	next := *contact
	nameRow := c.applyNames(&next, rows, snap)
	c.applyPhoto(&next, rows)
	c.applyStarPin(&next, members)
	c.applySoundPolicy(&next, members, nameRow)
	if err := c.applyVisibility(dbc, &next, members, rows); err != nil {
		return false, err
	}

	changed := derivedDiffers(contact, &next)
	next.LocaleVersion = snap.Version
	if changed || contact.LocaleVersion != snap.Version {
		if err := c.contactRows.Save(dbc.Ctx, dbc.Tx, &next); err != nil {
			return false, err
		}
	}

	if err := c.syncMemberDisplayNames(dbc, members, rows); err != nil {
		return false, err
	}
	return changed, nil
}

// applyNames picks the display-name source by priority: structured name,
// nickname, organization (company beats title-only), best phone, best email.
// Returns the winning row, if any, for the sound policy.
func (c *Computer) applyNames(next *types.Contact, rows []*types.DataRow, snap *locale.Snapshot) *types.DataRow {
	byKind := make(map[types.DataKind][]*types.DataRow)
	for _, row := range rows {
		byKind[row.Kind] = append(byKind[row.Kind], row)
	}

	var source *types.DataRow
	primary := ""
	alternative := ""
	phonetic := ""

	if row := bestRow(nonEmpty(byKind[types.KindName])); row != nil {
		source = row
		m := rowMeta(row)
		primary = row.Value
		alternative = familyFirst(m, row.Value)
		phonetic = m.PhoneticName
	} else if row := bestRow(nonEmpty(byKind[types.KindNickname])); row != nil {
		source = row
		primary = row.Value
		alternative = row.Value
	} else if row := bestOrganization(byKind[types.KindOrganization]); row != nil {
		source = row
		m := rowMeta(row)
		if m.Company != "" {
			primary = m.Company
		} else {
			primary = m.JobTitle
		}
		alternative = primary
	} else if row := bestRow(nonEmpty(byKind[types.KindPhone])); row != nil {
		source = row
		primary = row.Value
		alternative = row.Value
	} else if row := bestRow(nonEmpty(byKind[types.KindEmail])); row != nil {
		source = row
		primary = row.Value
		alternative = row.Value
	}

	next.DisplayNamePrimary = primary
	next.DisplayNameAlternative = alternative
	next.PhoneticName = phonetic
	next.SortKeyPrimary = snap.SortKey(primary)
	next.SortKeyAlternative = snap.SortKey(alternative)
	next.PhonebookLabelPrimary = snap.Label(primary)
	next.PhonebookLabelAlternative = snap.Label(alternative)
	if source != nil {
		next.NameSourceRawContactID = source.RawContactID
		next.NameSourceDataRowID = source.ID
	} else {
		next.NameSourceRawContactID = 0
		next.NameSourceDataRowID = 0
	}
	return source
}

func (c *Computer) applyPhoto(next *types.Contact, rows []*types.DataRow) {
	var photos []*types.DataRow
	for _, row := range rows {
		if row.Kind == types.KindPhoto {
			photos = append(photos, row)
		}
	}
	if row := bestRow(photos); row != nil {
		next.PhotoDataRowID = row.ID
	} else {
		next.PhotoDataRowID = 0
	}
	has := false
	for _, row := range rows {
		if row.Kind == types.KindPhone {
			has = true
			break
		}
	}
	next.HasPhoneNumber = has
}

// applyStarPin is the one-directional rollup: starred is the OR over
// members, pinned the minimum explicit position or unpinned.
func (c *Computer) applyStarPin(next *types.Contact, members []*types.RawContact) {
	starred := false
	pinned := types.UnpinnedPosition
	for _, m := range members {
		if m.Starred {
			starred = true
		}
		if m.PinnedPosition != types.UnpinnedPosition {
			if pinned == types.UnpinnedPosition || m.PinnedPosition < pinned {
				pinned = m.PinnedPosition
			}
		}
	}
	next.Starred = starred
	next.PinnedPosition = pinned
}

// applySoundPolicy resolves ringtone and voicemail routing across members.
// When members disagree any contributing value is acceptable; this picks the
// name-source member's values, falling back to the first member.
func (c *Computer) applySoundPolicy(next *types.Contact, members []*types.RawContact, nameRow *types.DataRow) {
	chosen := members[0]
	if nameRow != nil {
		for _, m := range members {
			if m.ID == nameRow.RawContactID {
				chosen = m
				break
			}
		}
	}
	next.CustomRingtone = chosen.CustomRingtone
	next.SendToVoicemail = chosen.SendToVoicemail
}

// applyVisibility sets in_visible_group: any member with a visible group
// membership, or a member with no memberships whose account shows ungrouped
// contacts. Device-local members (no account) count as ungrouped-visible.
func (c *Computer) applyVisibility(dbc dbctx.Context, next *types.Contact, members []*types.RawContact, rows []*types.DataRow) error {
	memberships := make(map[int64][]int64)
	for _, row := range rows {
		if row.Kind != types.KindGroupMembership {
			continue
		}
		gid, err := strconv.ParseInt(row.Value, 10, 64)
		if err != nil {
			continue
		}
		memberships[row.RawContactID] = append(memberships[row.RawContactID], gid)
	}

	visibleGroups, err := c.groups.VisibleGroupIDs(dbc.Ctx, dbc.Tx)
	if err != nil {
		return err
	}

	accountIDs := make([]int64, 0, len(members))
	seen := make(map[int64]struct{})
	for _, m := range members {
		if m.AccountID == nil {
			continue
		}
		if _, ok := seen[*m.AccountID]; ok {
			continue
		}
		seen[*m.AccountID] = struct{}{}
		accountIDs = append(accountIDs, *m.AccountID)
	}
	accounts, err := c.accounts.GetByIDs(dbc.Ctx, dbc.Tx, accountIDs)
	if err != nil {
		return err
	}
	ungrouped := make(map[int64]bool, len(accounts))
	for _, a := range accounts {
		ungrouped[a.ID] = a.UngroupedVisible
	}

	visible := false
	for _, m := range members {
		gids := memberships[m.ID]
		if len(gids) == 0 {
			if m.AccountID == nil || ungrouped[*m.AccountID] {
				visible = true
				break
			}
			continue
		}
		for _, gid := range gids {
			if _, ok := visibleGroups[gid]; ok {
				visible = true
				break
			}
		}
		if visible {
			break
		}
	}
	next.InVisibleGroup = visible
	return nil
}

// syncMemberDisplayNames keeps the denormalized per-member display name in
// step with that member's own best name row.
func (c *Computer) syncMemberDisplayNames(dbc dbctx.Context, members []*types.RawContact, rows []*types.DataRow) error {
	names := make(map[int64][]*types.DataRow)
	for _, row := range rows {
		if row.Kind == types.KindName && row.Value != "" {
			names[row.RawContactID] = append(names[row.RawContactID], row)
		}
	}
	for _, m := range members {
		want := ""
		if row := bestRow(names[m.ID]); row != nil {
			want = row.Value
		}
		if m.DisplayName != want {
			if err := c.rawContacts.SetDisplayName(dbc.Ctx, dbc.Tx, m.ID, want); err != nil {
				return err
			}
		}
	}
	return nil
}

func nonEmpty(rows []*types.DataRow) []*types.DataRow {
	out := rows[:0:0]
	for _, row := range rows {
		if row.Value != "" {
			out = append(out, row)
		}
	}
	return out
}

// bestRow applies the deterministic tie-break: super-primary first, then
// primary, then lowest data-row id.
func bestRow(rows []*types.DataRow) *types.DataRow {
	var best *types.DataRow
	for _, row := range rows {
		if best == nil || rowRank(row) < rowRank(best) ||
			(rowRank(row) == rowRank(best) && row.ID < best.ID) {
			best = row
		}
	}
	return best
}

func rowRank(row *types.DataRow) int {
	switch {
	case row.IsSuperPrimary:
		return 0
	case row.IsPrimary:
		return 1
	default:
		return 2
	}
}

// bestOrganization prefers rows carrying a company over title-only rows.
func bestOrganization(rows []*types.DataRow) *types.DataRow {
	var withCompany, titleOnly []*types.DataRow
	for _, row := range rows {
		m := rowMeta(row)
		switch {
		case m.Company != "":
			withCompany = append(withCompany, row)
		case m.JobTitle != "":
			titleOnly = append(titleOnly, row)
		}
	}
	if row := bestRow(withCompany); row != nil {
		return row
	}
	return bestRow(titleOnly)
}

func familyFirst(m nameMeta, formatted string) string {
	switch {
	case m.FamilyName != "" && m.GivenName != "":
		return m.FamilyName + ", " + m.GivenName
	case m.FamilyName != "":
		return m.FamilyName
	default:
		return formatted
	}
}

func derivedDiffers(a, b *types.Contact) bool {
	return a.DisplayNamePrimary != b.DisplayNamePrimary ||
		a.DisplayNameAlternative != b.DisplayNameAlternative ||
		a.PhoneticName != b.PhoneticName ||
		a.SortKeyPrimary != b.SortKeyPrimary ||
		a.SortKeyAlternative != b.SortKeyAlternative ||
		a.PhonebookLabelPrimary != b.PhonebookLabelPrimary ||
		a.PhonebookLabelAlternative != b.PhonebookLabelAlternative ||
		a.NameSourceRawContactID != b.NameSourceRawContactID ||
		a.NameSourceDataRowID != b.NameSourceDataRowID ||
		a.PhotoDataRowID != b.PhotoDataRowID ||
		a.Starred != b.Starred ||
		a.PinnedPosition != b.PinnedPosition ||
		a.InVisibleGroup != b.InVisibleGroup ||
		a.HasPhoneNumber != b.HasPhoneNumber ||
		a.CustomRingtone != b.CustomRingtone ||
		a.SendToVoicemail != b.SendToVoicemail
}
