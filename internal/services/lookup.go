package services

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/modules/lookup"
	"github.com/openfolk/contacts-backend/internal/normalization"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

// PhoneRowMatch is one phone row reachable at a number. Unlike the
// per-contact query it keeps every contributing row, so a number shared by
// two raw contacts yields two entries whether or not they aggregate together.
type PhoneRowMatch struct {
	DataRowID    int64  `json:"data_row_id"`
	RawContactID int64  `json:"raw_contact_id"`
	ContactID    int64  `json:"contact_id"`
	Value        string `json:"value"`
}

// LookupService answers the read paths that survive aggregation churn:
// stable lookup keys and normalized phone-number search, the latter in a
// deduplicated per-contact form and an un-deduplicated per-row form.
type LookupService interface {
	Resolve(ctx context.Context, key string, lastKnownID int64) (*types.Contact, error)
	ByPhone(ctx context.Context, number string) ([]*types.Contact, error)
	ByPhoneRows(ctx context.Context, number string) ([]PhoneRowMatch, error)
}

type lookupService struct {
	db       *gorm.DB
	log      *logger.Logger
	repos    *repos.Bundle
	resolver *lookup.Resolver
}

func NewLookupService(db *gorm.DB, log *logger.Logger, b *repos.Bundle, resolver *lookup.Resolver) LookupService {
	return &lookupService{
		db:       db,
		log:      log.With("service", "LookupService"),
		repos:    b,
		resolver: resolver,
	}
}

func (ls *lookupService) Resolve(ctx context.Context, key string, lastKnownID int64) (*types.Contact, error) {
	return ls.resolver.Resolve(dbctx.Context{Ctx: ctx}, key, lastKnownID)
}

// matchedPhoneEntries pulls candidates from the normalized index and confirms
// loose suffix hits with the full match rule, so an 11-digit number does not
// surface unrelated 7-digit ones.
func (ls *lookupService) matchedPhoneEntries(ctx context.Context, op, number string) ([]*types.PhoneLookup, error) {
	normalized := normalization.Phone(number)
	if normalized == "" {
		return nil, contacts.NewError(contacts.CodeValidation, op, "no dialable characters in number", nil)
	}
	entries, err := ls.repos.DataRows.PhoneLookupByNumber(ctx, nil, normalized, normalization.PhoneMinMatch(normalized))
	if err != nil {
		return nil, err
	}
	matched := entries[:0:0]
	for _, e := range entries {
		if normalization.PhonesMatch(normalized, e.Normalized) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// ByPhone finds the contacts reachable at a dialable number, one entry per
// aggregate no matter how many member rows carry the number.
func (ls *lookupService) ByPhone(ctx context.Context, number string) ([]*types.Contact, error) {
	entries, err := ls.matchedPhoneEntries(ctx, "LookupService.ByPhone", number)
	if err != nil {
		return nil, err
	}
	rawIDs := make([]int64, 0, len(entries))
	for _, e := range entries {
		rawIDs = append(rawIDs, e.RawContactID)
	}
	rcs, err := ls.repos.RawContacts.GetByIDs(ctx, nil, rawIDs)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(rcs))
	contactIDs := make([]int64, 0, len(rcs))
	for _, rc := range rcs {
		if rc.Deleted || rc.ContactID == 0 {
			continue
		}
		if _, ok := seen[rc.ContactID]; ok {
			continue
		}
		seen[rc.ContactID] = struct{}{}
		contactIDs = append(contactIDs, rc.ContactID)
	}
	sort.Slice(contactIDs, func(i, j int) bool { return contactIDs[i] < contactIDs[j] })
	return ls.repos.Contacts.GetByIDs(ctx, nil, contactIDs)
}

// ByPhoneRows is the un-deduplicated variant: one entry per live phone row
// matching the number, in data-row id order.
func (ls *lookupService) ByPhoneRows(ctx context.Context, number string) ([]PhoneRowMatch, error) {
	entries, err := ls.matchedPhoneEntries(ctx, "LookupService.ByPhoneRows", number)
	if err != nil {
		return nil, err
	}
	rowIDs := make(map[int64]struct{}, len(entries))
	rawIDs := make([]int64, 0, len(entries))
	for _, e := range entries {
		rowIDs[e.DataRowID] = struct{}{}
		rawIDs = append(rawIDs, e.RawContactID)
	}
	rcs, err := ls.repos.RawContacts.GetByIDs(ctx, nil, rawIDs)
	if err != nil {
		return nil, err
	}
	owners := make(map[int64]int64, len(rcs))
	liveRawIDs := make([]int64, 0, len(rcs))
	for _, rc := range rcs {
		if rc.Deleted || rc.ContactID == 0 {
			continue
		}
		owners[rc.ID] = rc.ContactID
		liveRawIDs = append(liveRawIDs, rc.ID)
	}
	rows, err := ls.repos.DataRows.ListByRawContactIDs(ctx, nil, liveRawIDs, types.KindPhone)
	if err != nil {
		return nil, err
	}
	matches := make([]PhoneRowMatch, 0, len(rowIDs))
	for _, row := range rows {
		if _, ok := rowIDs[row.ID]; !ok {
			continue
		}
		matches = append(matches, PhoneRowMatch{
			DataRowID:    row.ID,
			RawContactID: row.RawContactID,
			ContactID:    owners[row.RawContactID],
			Value:        row.Value,
		})
	}
	return matches, nil
}
