package aggregation

import (
	"sort"
	"time"

	"github.com/openfolk/contacts-backend/internal/data/repos"
	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/dbctx"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

// Result reports what one aggregation pass did.
//
// Affected lists every contact that should get a derived-attribute
// recompute. Changed is the subset whose membership actually changed
// (including freshly created contacts). Deleted lists contacts removed and
// logged to the delete feed. A settled input yields empty Changed and
// Deleted.
type Result struct {
	Affected []int64
	Changed  []int64
	Deleted  []int64
}

// Engine re-resolves aggregate membership incrementally. It never scans the
// whole store: each pass works on the changed raw contact's transitive
// neighborhood only.
type Engine struct {
	rawContacts repos.RawContactRepo
	dataRows    repos.DataRowRepo
	contactRows repos.ContactRepo
	exceptions  repos.ExceptionRepo
	deleteLogs  repos.DeleteLogRepo
	log         *logger.Logger
}

func NewEngine(b *repos.Bundle, baseLog *logger.Logger) *Engine {
	return &Engine{
		rawContacts: b.RawContacts,
		dataRows:    b.DataRows,
		contactRows: b.Contacts,
		exceptions:  b.Exceptions,
		deleteLogs:  b.DeleteLogs,
		log:         baseLog.With("module", "aggregation"),
	}
}

// OnRawContactChanged re-evaluates aggregation after any write touching the
// given raw contact or its data rows.
func (e *Engine) OnRawContactChanged(dbc dbctx.Context, rawContactID int64) (*Result, error) {
	return e.Reaggregate(dbc, []int64{rawContactID}, nil)
}

// Reaggregate runs the full pass from a seed set of raw contacts and,
// optionally, contacts whose membership must be re-resolved even though no
// surviving member points at them anymore (hard and soft deletes).
func (e *Engine) Reaggregate(dbc dbctx.Context, rawContactIDs, contactIDs []int64) (*Result, error) {
	nb, err := e.discover(dbc, rawContactIDs, contactIDs)
	if err != nil {
		return nil, err
	}

	nodeIDs := make([]int64, 0, len(nb.nodes))
	for id := range nb.nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	uf := newUnionFind(nodeIDs)
	e.applyForcedEdges(nb, uf)
	e.applySignalEdges(nb, uf)

	return e.assign(dbc, nb, uf, rawContactIDs)
}

// SetException stores a manual override for the pair and re-aggregates its
// neighborhood. Self pairs are a no-op; reversed duplicates collapse onto
// the ordered pair.
func (e *Engine) SetException(dbc dbctx.Context, typ types.ExceptionType, rc1, rc2 int64) (*Result, error) {
	if typ != types.KeepTogether && typ != types.KeepSeparate {
		return nil, contacts.NewError(contacts.CodeValidation, "aggregation.SetException", "unsupported exception type", nil)
	}
	if rc1 == rc2 {
		return &Result{}, nil
	}
	a, b := contacts.NormalizePair(rc1, rc2)
	if err := e.requireRawContacts(dbc, a, b); err != nil {
		return nil, err
	}
	if err := e.exceptions.Upsert(dbc.Ctx, dbc.Tx, typ, a, b); err != nil {
		return nil, err
	}
	return e.Reaggregate(dbc, []int64{a, b}, nil)
}

// ClearException removes the override for the pair and re-aggregates.
func (e *Engine) ClearException(dbc dbctx.Context, rc1, rc2 int64) (*Result, error) {
	if rc1 == rc2 {
		return &Result{}, nil
	}
	a, b := contacts.NormalizePair(rc1, rc2)
	if err := e.requireRawContacts(dbc, a, b); err != nil {
		return nil, err
	}
	if err := e.exceptions.Delete(dbc.Ctx, dbc.Tx, a, b); err != nil {
		return nil, err
	}
	return e.Reaggregate(dbc, []int64{a, b}, nil)
}

func (e *Engine) requireRawContacts(dbc dbctx.Context, ids ...int64) error {
	rows, err := e.rawContacts.GetByIDs(dbc.Ctx, dbc.Tx, ids)
	if err != nil {
		return err
	}
	if len(rows) != len(ids) {
		return contacts.NewError(contacts.CodeNotFound, "aggregation.requireRawContacts", "raw contact not found", nil)
	}
	return nil
}

// applyForcedEdges unions KEEP_TOGETHER pairs first so overrides win over
// automatic signals. A forced edge that would pull a KEEP_SEPARATE pair into
// one component is skipped; separation dominates transitively.
func (e *Engine) applyForcedEdges(nb *neighborhood, uf *unionFind) {
	for _, pair := range sortedPairs(nb.together) {
		a, b := nb.nodes[pair[0]], nb.nodes[pair[1]]
		if a == nil || b == nil {
			continue
		}
		if a.rc.AggregationMode == types.AggregationDisabled ||
			b.rc.AggregationMode == types.AggregationDisabled {
			continue
		}
		uf.union(pair[0], pair[1], nb.isSeparated)
	}
}

// applySignalEdges unions pairs connected by a shared phone min-match key,
// an exact normalized email, or a shared folded name token. Only
// default-mode raw contacts contribute; the separation guard keeps
// KEEP_SEPARATE pairs apart even through third parties.
func (e *Engine) applySignalEdges(nb *neighborhood, uf *unionFind) {
	byKey := make(map[string][]int64)
	add := func(prefix, key string, id int64) {
		if key == "" {
			return
		}
		byKey[prefix+key] = append(byKey[prefix+key], id)
	}
	for id, n := range nb.nodes {
		if !n.rc.Aggregatable() {
			continue
		}
		for _, mm := range n.phoneMatchKey {
			add("p:", mm, id)
		}
		for _, em := range n.emails {
			add("e:", em, id)
		}
		for _, tok := range n.nameTokens {
			add("n:", tok, id)
		}
	}

	pairs := make(map[pairKey]struct{})
	for _, ids := range byKey {
		if len(ids) < 2 {
			continue
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if ids[i] != ids[j] {
					pairs[makePair(ids[i], ids[j])] = struct{}{}
				}
			}
		}
	}
	for _, pair := range sortedPairs(pairs) {
		uf.union(pair[0], pair[1], nb.isSeparated)
	}
}

// assign maps components back onto contact rows: each previous contact is
// claimed by the component holding most of its former members (ties to the
// component containing the smallest such raw id); a component claiming
// several contacts keeps the smallest id; unclaimed components get fresh
// contacts; contacts left with no component are deleted and logged.
func (e *Engine) assign(dbc dbctx.Context, nb *neighborhood, uf *unionFind, seedRawIDs []int64) (*Result, error) {
	comps := uf.components()
	roots := make([]int64, 0, len(comps))
	for root, members := range comps {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		comps[root] = members
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	oldMembers := make(map[int64][]int64)
	for id, n := range nb.nodes {
		if n.rc.ContactID != 0 {
			oldMembers[n.rc.ContactID] = append(oldMembers[n.rc.ContactID], id)
		}
	}
	oldIDs := make([]int64, 0, len(oldMembers))
	for id, members := range oldMembers {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		oldMembers[id] = members
		oldIDs = append(oldIDs, id)
	}
	sort.Slice(oldIDs, func(i, j int) bool { return oldIDs[i] < oldIDs[j] })

	claims := make(map[int64][]int64)
	for _, oldID := range oldIDs {
		var bestRoot int64
		bestCount := 0
		bestMin := int64(0)
		for _, member := range oldMembers[oldID] {
			root := uf.find(member)
			count := 0
			minMember := int64(0)
			for _, m := range oldMembers[oldID] {
				if uf.find(m) == root {
					count++
					if minMember == 0 || m < minMember {
						minMember = m
					}
				}
			}
			if count > bestCount || (count == bestCount && (bestMin == 0 || minMember < bestMin)) {
				bestRoot, bestCount, bestMin = root, count, minMember
			}
		}
		if bestCount > 0 {
			claims[bestRoot] = append(claims[bestRoot], oldID)
		}
	}

	res := &Result{}
	now := time.Now().UnixMilli()
	assigned := make(map[int64]int64, len(roots))
	usedOld := make(map[int64]struct{})

	for _, root := range roots {
		cl := claims[root]
		if len(cl) == 0 {
			continue
		}
		cid := cl[0]
		for _, id := range cl[1:] {
			if id < cid {
				cid = id
			}
		}
		assigned[root] = cid
		usedOld[cid] = struct{}{}
	}
	for _, root := range roots {
		if _, ok := assigned[root]; ok {
			continue
		}
		c := &types.Contact{}
		if err := e.contactRows.Create(dbc.Ctx, dbc.Tx, c); err != nil {
			return nil, err
		}
		assigned[root] = c.ID
		res.Changed = append(res.Changed, c.ID)
	}

	for _, root := range roots {
		cid := assigned[root]
		var moved []int64
		for _, id := range comps[root] {
			if nb.nodes[id].rc.ContactID != cid {
				moved = append(moved, id)
			}
		}
		if len(moved) > 0 {
			if err := e.rawContacts.SetContactID(dbc.Ctx, dbc.Tx, moved, cid); err != nil {
				return nil, err
			}
		}
		if _, survived := usedOld[cid]; survived && !equalIDs(oldMembers[cid], comps[root]) {
			res.Changed = append(res.Changed, cid)
		}
	}

	var doomed []int64
	for _, oldID := range oldIDs {
		if _, ok := usedOld[oldID]; !ok {
			doomed = append(doomed, oldID)
		}
	}
	touched := make([]int64, 0, len(nb.touchedContacts))
	for cid := range nb.touchedContacts {
		touched = append(touched, cid)
	}
	sort.Slice(touched, func(i, j int) bool { return touched[i] < touched[j] })
	for _, cid := range touched {
		if _, hadMembers := oldMembers[cid]; hadMembers {
			continue
		}
		if _, ok := usedOld[cid]; ok {
			continue
		}
		doomed = append(doomed, cid)
	}
	for _, did := range doomed {
		if err := e.contactRows.Delete(dbc.Ctx, dbc.Tx, did); err != nil {
			return nil, err
		}
		if err := e.deleteLogs.Append(dbc.Ctx, dbc.Tx, did, now); err != nil {
			return nil, err
		}
		res.Deleted = append(res.Deleted, did)
	}

	affected := make(map[int64]struct{})
	for _, cid := range res.Changed {
		affected[cid] = struct{}{}
	}
	for _, seed := range seedRawIDs {
		if n, ok := nb.nodes[seed]; ok {
			affected[assigned[uf.find(n.rc.ID)]] = struct{}{}
		}
	}
	res.Affected = make([]int64, 0, len(affected))
	for cid := range affected {
		res.Affected = append(res.Affected, cid)
	}
	sort.Slice(res.Affected, func(i, j int) bool { return res.Affected[i] < res.Affected[j] })
	sort.Slice(res.Changed, func(i, j int) bool { return res.Changed[i] < res.Changed[j] })
	sort.Slice(res.Deleted, func(i, j int) bool { return res.Deleted[i] < res.Deleted[j] })

	if len(res.Changed) > 0 || len(res.Deleted) > 0 {
		e.log.Debug("aggregation pass applied",
			"changed", len(res.Changed),
			"deleted", len(res.Deleted),
			"nodes", len(nb.nodes))
	}
	return res, nil
}

func sortedPairs(set map[pairKey]struct{}) []pairKey {
	out := make([]pairKey, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
