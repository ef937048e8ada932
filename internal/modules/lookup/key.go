package lookup

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

// Resolver derives and resolves the stable external reference for an
// aggregate. The key is built from the sorted member tokens, so it survives
// merges and splits as long as at least one member token survives.
type Resolver struct {
	rawContacts repos.RawContactRepo
	contactRows repos.ContactRepo
	log         *logger.Logger
}

func NewResolver(b *repos.Bundle, baseLog *logger.Logger) *Resolver {
	return &Resolver{
		rawContacts: b.RawContacts,
		contactRows: b.Contacts,
		log:         baseLog.With("module", "lookup"),
	}
}

// memberToken identifies one raw contact durably: account-scoped source id
// when the account provides one, otherwise the raw contact's own id.
func memberToken(rc *types.RawContact) string {
	if rc.AccountID != nil && rc.SourceID != "" {
		return fmt.Sprintf("a%d:%s", *rc.AccountID, rc.SourceID)
	}
	return fmt.Sprintf("r%d", rc.ID)
}

func encodeKey(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	sort.Strings(tokens)
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(tokens, "|")))
}

func decodeKey(key string) ([]string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(raw), "|"), nil
}

// DeriveKey computes the lookup key for the contact's current membership.
func (r *Resolver) DeriveKey(dbc dbctx.Context, contactID int64) (string, error) {
	members, err := r.rawContacts.ListByContactIDs(dbc.Ctx, dbc.Tx, []int64{contactID})
	if err != nil {
		return "", err
	}
	tokens := make([]string, 0, len(members))
	for _, m := range members {
		tokens = append(tokens, memberToken(m))
	}
	return encodeKey(tokens), nil
}

// RefreshKey re-derives the key after a membership change and stores it when
// it moved. Returns the current key.
func (r *Resolver) RefreshKey(dbc dbctx.Context, contactID int64) (string, error) {
	contact, err := r.contactRows.GetByID(dbc.Ctx, dbc.Tx, contactID)
	if err != nil {
		return "", err
	}
	key, err := r.DeriveKey(dbc, contactID)
	if err != nil {
		return "", err
	}
	if contact.LookupKey != key {
		contact.LookupKey = key
		if err := r.contactRows.Save(dbc.Ctx, dbc.Tx, contact); err != nil {
			return "", err
		}
	}
	return key, nil
}

// tokenRawContacts finds the raw contacts a token currently names. Account
// tokens may match several raw contacts if a source id was reused; raw
// tokens match at most one.
func (r *Resolver) tokenRawContacts(dbc dbctx.Context, token string) ([]*types.RawContact, error) {
	switch {
	case strings.HasPrefix(token, "a"):
		body := token[1:]
		sep := strings.IndexByte(body, ':')
		if sep <= 0 {
			return nil, nil
		}
		accountID, err := strconv.ParseInt(body[:sep], 10, 64)
		if err != nil {
			return nil, nil
		}
		return r.rawContacts.FindBySource(dbc.Ctx, dbc.Tx, &accountID, body[sep+1:])
	case strings.HasPrefix(token, "r"):
		id, err := strconv.ParseInt(token[1:], 10, 64)
		if err != nil {
			return nil, nil
		}
		rcs, err := r.rawContacts.GetByIDs(dbc.Ctx, dbc.Tx, []int64{id})
		if err != nil {
			return nil, err
		}
		return rcs, nil
	default:
		return nil, nil
	}
}
