package strata

import (
	"reflect"

	"github.com/TheBitDrifter/mask"
)

// Query is a fluent, reusable description of which archetypes a view should
// visit: a required component set, a forbidden component set, an optional
// change-tracking set, and an optional filter tree for predicates beyond
// plain structural matching (spec §4.4).
type Query struct {
	required   []TypeKey
	forbidden  []TypeKey
	modified   []TypeKey
	forceWrite []TypeKey
	forceRead  []TypeKey
	filter     QueryNode

	compiled *compiledQuery
}

// Q starts a new, empty Query.
func Q() *Query { return &Query{} }

// With adds component types to the required set, with column access
// determined by the view's overall AccessMode (spec §4.4). Pass zero-value
// component instances, e.g. Q().With(Position{}, Velocity{}).
func (q *Query) With(components ...any) *Query {
	q.required = append(q.required, typesOf(components)...)
	q.compiled = nil
	return q
}

// Write adds component types to the required set and pins their column
// access to Exclusive regardless of the view's overall AccessMode, letting
// one query mix exclusive and shared access per CT (spec §4.4: "access
// mode per CT (shared or exclusive)"), e.g.
// Q().Write(Position{}).Read(Velocity{}) for a view iterating (&mut Pos, &Vel).
func (q *Query) Write(components ...any) *Query {
	types := typesOf(components)
	q.required = append(q.required, types...)
	q.forceWrite = append(q.forceWrite, types...)
	q.compiled = nil
	return q
}

// Read adds component types to the required set and pins their column
// access to Shared regardless of the view's overall AccessMode.
func (q *Query) Read(components ...any) *Query {
	types := typesOf(components)
	q.required = append(q.required, types...)
	q.forceRead = append(q.forceRead, types...)
	q.compiled = nil
	return q
}

// Without adds component types to the forbidden set.
func (q *Query) Without(components ...any) *Query {
	q.forbidden = append(q.forbidden, typesOf(components)...)
	q.compiled = nil
	return q
}

// Modified marks component types for change-tracking: the query also
// requires them structurally, and a view iterating with a baseline epoch
// (spec §8 scenario 2) skips rows whose column epoch is not newer than the
// baseline.
func (q *Query) Modified(components ...any) *Query {
	types := typesOf(components)
	q.modified = append(q.modified, types...)
	q.required = append(q.required, types...)
	q.compiled = nil
	return q
}

// Filter attaches an additional predicate tree built from And/Or/Not, for
// matching beyond the plain required/forbidden structural sets.
func (q *Query) Filter(node QueryNode) *Query {
	q.filter = node
	q.compiled = nil
	return q
}

func typesOf(components []any) []TypeKey {
	out := make([]TypeKey, 0, len(components))
	for _, c := range components {
		out = append(out, reflect.TypeOf(c))
	}
	return out
}

// compile resolves the query against reg's bit assignments, assigning fresh
// bits for any component type not yet seen. Compilation is cached on the
// Query and invalidated by any With/Without/Modified/Filter call.
func (q *Query) compile(reg *registry) *compiledQuery {
	if q.compiled != nil {
		return q.compiled
	}
	cq := &compiledQuery{
		required:      append([]TypeKey(nil), q.required...),
		forbidden:     append([]TypeKey(nil), q.forbidden...),
		modified:      append([]TypeKey(nil), q.modified...),
		forceWrite:    append([]TypeKey(nil), q.forceWrite...),
		forceRead:     append([]TypeKey(nil), q.forceRead...),
		requiredMask:  reg.signature(q.required),
		forbiddenMask: reg.signature(q.forbidden),
		filter:        q.filter,
		reg:           reg,
	}
	q.compiled = cq
	return cq
}

// compiledQuery is a Query resolved against one world's bit assignments,
// plus a match cache over that world's archetype store.
type compiledQuery struct {
	required      []TypeKey
	forbidden     []TypeKey
	modified      []TypeKey
	forceWrite    []TypeKey
	forceRead     []TypeKey
	requiredMask  mask.Mask
	forbiddenMask mask.Mask
	filter        QueryNode
	reg           *registry

	cacheMatched   []*archetype
	cacheWatermark int
}

// selfConflict reports whether ct was pinned both Read and Write within
// this query, a static self-conflict per spec §4.4.
func (cq *compiledQuery) selfConflict() (TypeKey, bool) {
	for _, w := range cq.forceWrite {
		for _, r := range cq.forceRead {
			if w == r {
				return w, true
			}
		}
	}
	return nil, false
}

// modeFor resolves the effective borrow mode for ct within this query:
// an explicit Write/Read pin overrides the view's overall AccessMode.
func (cq *compiledQuery) modeFor(ct TypeKey, viewMode borrowMode) borrowMode {
	for _, w := range cq.forceWrite {
		if w == ct {
			return Exclusive
		}
	}
	for _, r := range cq.forceRead {
		if r == ct {
			return Shared
		}
	}
	return viewMode
}

func (cq *compiledQuery) matches(a *archetype) bool {
	if !a.sig.ContainsAll(cq.requiredMask) {
		return false
	}
	if !a.sig.ContainsNone(cq.forbiddenMask) {
		return false
	}
	if cq.filter != nil && !cq.filter.evaluate(cq.reg, a.sig) {
		return false
	}
	return true
}

// matchedArchetypes returns the archetypes currently matching, rescanning
// only archetypes created since the last call (grounded on the
// lastArchetypeCount invalidation strategy).
func (cq *compiledQuery) matchedArchetypes(store *archetypeStore) []*archetype {
	n := store.count()
	for i := cq.cacheWatermark; i < n; i++ {
		a := store.get(archetypeID(i + 1))
		if cq.matches(a) {
			cq.cacheMatched = append(cq.cacheMatched, a)
		}
	}
	cq.cacheWatermark = n
	return cq.cacheMatched
}

// QueryNode is one node of a filter predicate tree evaluated against an
// archetype's signature, in addition to a Query's plain required/forbidden
// sets (the teacher's boolean-tree idiom, kept as a richer filter layer
// built via And/Or/Not below).
type QueryNode interface {
	evaluate(reg *registry, sig mask.Mask) bool
}

type queryOp int

const (
	opAnd queryOp = iota
	opOr
	opNot
)

type compositeNode struct {
	op         queryOp
	children   []QueryNode
	components []TypeKey
}

func (n *compositeNode) nodeMask(reg *registry) mask.Mask {
	var m mask.Mask
	for _, ct := range n.components {
		m.Mark(reg.bitFor(ct))
	}
	return m
}

func (n *compositeNode) evaluate(reg *registry, sig mask.Mask) bool {
	nodeMask := n.nodeMask(reg)
	switch n.op {
	case opAnd:
		if !sig.ContainsAll(nodeMask) {
			return false
		}
		for _, c := range n.children {
			if !c.evaluate(reg, sig) {
				return false
			}
		}
		return true
	case opOr:
		if len(n.components) > 0 && sig.ContainsAny(nodeMask) {
			return true
		}
		for _, c := range n.children {
			if c.evaluate(reg, sig) {
				return true
			}
		}
		return false
	case opNot:
		if len(n.components) > 0 && !sig.ContainsNone(nodeMask) {
			return false
		}
		for _, c := range n.children {
			if c.evaluate(reg, sig) {
				return false
			}
		}
		return true
	}
	return false
}

// And builds a filter node requiring every item present, recursively.
// Items may be zero-value component instances or other QueryNodes.
func And(items ...any) QueryNode { return buildNode(opAnd, items) }

// Or builds a filter node requiring at least one item present.
func Or(items ...any) QueryNode { return buildNode(opOr, items) }

// Not builds a filter node requiring every item absent.
func Not(items ...any) QueryNode { return buildNode(opNot, items) }

func buildNode(op queryOp, items []any) QueryNode {
	n := &compositeNode{op: op}
	for _, item := range items {
		switch v := item.(type) {
		case QueryNode:
			n.children = append(n.children, v)
		default:
			n.components = append(n.components, reflect.TypeOf(v))
		}
	}
	return n
}
