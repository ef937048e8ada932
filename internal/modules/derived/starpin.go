package derived

import (
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
)

// SetContactStarred fans the flag out to every member. The contact row
// itself is settled by the Recompute that callers run afterwards, so the
// OR-over-members invariant holds no matter which direction the write came
// from.
func (c *Computer) SetContactStarred(dbc dbctx.Context, contactID int64, starred bool) error {
	if _, err := c.contactRows.GetByID(dbc.Ctx, dbc.Tx, contactID); err != nil {
		return err
	}
	return c.rawContacts.SetStarredByContact(dbc.Ctx, dbc.Tx, contactID, starred)
}

// SetRawContactStarred flags one member and returns the owning contact so
// the caller can recompute it.
func (c *Computer) SetRawContactStarred(dbc dbctx.Context, rawContactID int64, starred bool) (int64, error) {
	rc, err := c.rawContacts.GetByID(dbc.Ctx, dbc.Tx, rawContactID)
	if err != nil {
		return 0, err
	}
	if err := c.rawContacts.SetStarred(dbc.Ctx, dbc.Tx, rawContactID, starred); err != nil {
		return 0, err
	}
	return rc.ContactID, nil
}

// PinContact pins every member at the given position. With forceStar the pin
// also stars the members, and the per-member flag records that so a later
// unpin knows to undo it.
func (c *Computer) PinContact(dbc dbctx.Context, contactID int64, position int, forceStar bool) error {
	if position <= types.UnpinnedPosition {
		return contacts.NewError(contacts.CodeValidation, "derived.PinContact", "pinned position must be positive", nil)
	}
	members, err := c.members(dbc, contactID)
	if err != nil {
		return err
	}
	for _, m := range members {
		// Only members the pin actually starred get the flag; a later unpin
		// must not unstar members who were starred on their own.
		forced := forceStar && !m.Starred
		if err := c.rawContacts.SetPinned(dbc.Ctx, dbc.Tx, m.ID, position, forced); err != nil {
			return err
		}
		if forced {
			if err := c.rawContacts.SetStarred(dbc.Ctx, dbc.Tx, m.ID, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// UnpinContact clears every member's pin. Members whose pin force-starred
// them are unstarred again; independently starred members keep their star.
func (c *Computer) UnpinContact(dbc dbctx.Context, contactID int64) error {
	members, err := c.members(dbc, contactID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.PinnedPosition == types.UnpinnedPosition {
			continue
		}
		if err := c.rawContacts.SetPinned(dbc.Ctx, dbc.Tx, m.ID, types.UnpinnedPosition, false); err != nil {
			return err
		}
		if m.PinForcedStar && m.Starred {
			if err := c.rawContacts.SetStarred(dbc.Ctx, dbc.Tx, m.ID, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Computer) members(dbc dbctx.Context, contactID int64) ([]*types.RawContact, error) {
	if _, err := c.contactRows.GetByID(dbc.Ctx, dbc.Tx, contactID); err != nil {
		return nil, err
	}
	return c.rawContacts.ListByContactIDs(dbc.Ctx, dbc.Tx, []int64{contactID})
}
