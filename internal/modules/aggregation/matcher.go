package aggregation

import (
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/normalization"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
)

// node is one live raw contact in the discovered neighborhood, with the
// match signals it contributes.
type node struct {
	rc            *types.RawContact
	phoneMatchKey []string
	emails        []string
	nameTokens    []string
}

type pairKey [2]int64

func makePair(a, b int64) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a, b}
}

// neighborhood is the transitive closure of raw contacts reachable from the
// seeds through match signals, exception partners and shared aggregates.
type neighborhood struct {
	nodes           map[int64]*node
	touchedContacts map[int64]struct{}
	separate        map[pairKey]struct{}
	together        map[pairKey]struct{}
}

func (nb *neighborhood) isSeparated(x, y int64) bool {
	_, ok := nb.separate[makePair(x, y)]
	return ok
}

// discover expands the seed set to a fixpoint. Tombstoned raw contacts are
// visited (so their former aggregates get re-resolved) but never become
// nodes. Signals are only collected for default-mode raw contacts;
// keep-separate ones still surface their exception partners.
func (e *Engine) discover(dbc dbctx.Context, seedRawIDs, seedContactIDs []int64) (*neighborhood, error) {
	nb := &neighborhood{
		nodes:           make(map[int64]*node),
		touchedContacts: make(map[int64]struct{}),
		separate:        make(map[pairKey]struct{}),
		together:        make(map[pairKey]struct{}),
	}

	seenRaw := make(map[int64]struct{})
	seenContacts := make(map[int64]struct{})
	pendingRaw := append([]int64(nil), seedRawIDs...)
	pendingContacts := append([]int64(nil), seedContactIDs...)

	for len(pendingRaw) > 0 || len(pendingContacts) > 0 {
		var contactBatch []int64
		for _, cid := range pendingContacts {
			if cid == 0 {
				continue
			}
			if _, ok := seenContacts[cid]; ok {
				continue
			}
			seenContacts[cid] = struct{}{}
			nb.touchedContacts[cid] = struct{}{}
			contactBatch = append(contactBatch, cid)
		}
		pendingContacts = nil

		if len(contactBatch) > 0 {
			members, err := e.rawContacts.ListByContactIDs(dbc.Ctx, dbc.Tx, contactBatch)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				pendingRaw = append(pendingRaw, m.ID)
			}
		}

		var rawBatch []int64
		for _, id := range pendingRaw {
			if _, ok := seenRaw[id]; ok {
				continue
			}
			seenRaw[id] = struct{}{}
			rawBatch = append(rawBatch, id)
		}
		pendingRaw = nil
		if len(rawBatch) == 0 {
			continue
		}

		rcs, err := e.rawContacts.GetByIDs(dbc.Ctx, dbc.Tx, rawBatch)
		if err != nil {
			return nil, err
		}

		var signalIDs []int64
		var exceptionIDs []int64
		for _, rc := range rcs {
			if rc.ContactID != 0 {
				pendingContacts = append(pendingContacts, rc.ContactID)
			}
			if rc.Deleted {
				continue
			}
			nb.nodes[rc.ID] = &node{rc: rc}
			if rc.AggregationMode != types.AggregationDisabled {
				exceptionIDs = append(exceptionIDs, rc.ID)
			}
			if rc.Aggregatable() {
				signalIDs = append(signalIDs, rc.ID)
			}
		}

		if len(signalIDs) > 0 {
			rows, err := e.dataRows.ListByRawContactIDs(dbc.Ctx, dbc.Tx, signalIDs,
				types.KindPhone, types.KindEmail, types.KindName)
			if err != nil {
				return nil, err
			}
			var minMatches, emails, tokens []string
			for _, row := range rows {
				n := nb.nodes[row.RawContactID]
				if n == nil {
					continue
				}
				switch row.Kind {
				case types.KindPhone:
					if row.NormalizedValue == "" {
						continue
					}
					mm := normalization.PhoneMinMatch(row.NormalizedValue)
					if mm == "" {
						continue
					}
					n.phoneMatchKey = append(n.phoneMatchKey, mm)
					minMatches = append(minMatches, mm)
				case types.KindEmail:
					if row.NormalizedValue == "" {
						continue
					}
					n.emails = append(n.emails, row.NormalizedValue)
					emails = append(emails, row.NormalizedValue)
				case types.KindName:
					toks := normalization.NameTokens(row.Value)
					n.nameTokens = append(n.nameTokens, toks...)
					tokens = append(tokens, toks...)
				}
			}

			if len(minMatches) > 0 {
				pls, err := e.dataRows.PhoneMatches(dbc.Ctx, dbc.Tx, minMatches)
				if err != nil {
					return nil, err
				}
				for _, pl := range pls {
					pendingRaw = append(pendingRaw, pl.RawContactID)
				}
			}
			if len(emails) > 0 {
				ems, err := e.dataRows.EmailMatches(dbc.Ctx, dbc.Tx, emails)
				if err != nil {
					return nil, err
				}
				for _, row := range ems {
					pendingRaw = append(pendingRaw, row.RawContactID)
				}
			}
			if len(tokens) > 0 {
				nls, err := e.dataRows.NameTokenMatches(dbc.Ctx, dbc.Tx, tokens)
				if err != nil {
					return nil, err
				}
				for _, nl := range nls {
					pendingRaw = append(pendingRaw, nl.RawContactID)
				}
			}
		}

		if len(exceptionIDs) > 0 {
			exs, err := e.exceptions.ListForRawContacts(dbc.Ctx, dbc.Tx, exceptionIDs)
			if err != nil {
				return nil, err
			}
			for _, ex := range exs {
				pair := makePair(ex.RawContactID1, ex.RawContactID2)
				switch ex.Type {
				case types.KeepSeparate:
					nb.separate[pair] = struct{}{}
				case types.KeepTogether:
					nb.together[pair] = struct{}{}
				}
				pendingRaw = append(pendingRaw, ex.RawContactID1, ex.RawContactID2)
			}
		}
	}

	return nb, nil
}
