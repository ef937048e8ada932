package lookup

import (
	"sort"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
)

// Resolve maps a lookup key back to the contact that currently owns it.
//
// Fast path: when lastKnownID still names a contact with a member whose
// token appears in the key, that contact is returned directly. Slow path:
// each token is reverse-resolved to its current raw contact and the
// smallest owning contact id wins. NotFound when no member token survives.
func (r *Resolver) Resolve(dbc dbctx.Context, key string, lastKnownID int64) (*types.Contact, error) {
	tokens, err := decodeKey(key)
	if err != nil || len(tokens) == 0 {
		return nil, contacts.NewError(contacts.CodeValidation, "lookup.Resolve", "malformed lookup key", err)
	}
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = struct{}{}
	}

	if lastKnownID != 0 {
		contact, err := r.contactRows.GetByID(dbc.Ctx, dbc.Tx, lastKnownID)
		if err == nil {
			members, err := r.rawContacts.ListByContactIDs(dbc.Ctx, dbc.Tx, []int64{contact.ID})
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				if _, ok := tokenSet[memberToken(m)]; ok {
					return contact, nil
				}
			}
		} else if !contacts.IsCode(err, contacts.CodeNotFound) {
			return nil, err
		}
	}

	candidates := make(map[int64]struct{})
	for _, tok := range tokens {
		rcs, err := r.tokenRawContacts(dbc, tok)
		if err != nil {
			return nil, err
		}
		for _, rc := range rcs {
			if rc.Deleted || rc.ContactID == 0 {
				continue
			}
			// The token must still belong to this raw contact; a raw token
			// whose owner now syncs under an account no longer matches.
			if memberToken(rc) != tok {
				continue
			}
			candidates[rc.ContactID] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return nil, contacts.NewError(contacts.CodeNotFound, "lookup.Resolve", "no member token survives", nil)
	}
	ids := make([]int64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return r.contactRows.GetByID(dbc.Ctx, dbc.Tx, ids[0])
}
