// Package crdtforest implements the merge/materialization engine named in
// spec.md: a recursive composition of multi-value registers, maps of named
// registers, and observed-remove sets, forming an ownership forest rooted at
// a distinguished root map. It is built against a causalgraph.CausalGraph
// the same way the teacher's egwalker package is built against one, but the
// CRDT it merges is a register/map/set forest rather than a list.
package crdtforest

import "github.com/causalstore/crdtdb/causalgraph"

// LV, RawVersion and AgentID are the causal graph's identifiers, used
// directly rather than wrapped: the value model has no identity concept of
// its own beyond what the causal graph assigns.
type (
	LV         = causalgraph.LV
	RawVersion = causalgraph.RawVersion
	AgentID    = causalgraph.AgentID
)

// RootLV is the reserved local version denoting the root map (spec.md §3).
// It is never produced by the causal graph, which assigns LVs starting at
// 0, so -1 is a safe, never-colliding sentinel — the same convention the
// teacher's egwalker package uses for "no item to the left" (OriginLeft
// -1) and "before the start of history" (retreat target -1).
const RootLV LV = -1

// RootRaw is the RawVersion ROOT maps to (spec.md §3's "ROOT" identifier).
// It is reserved and never returned by the causal graph for a real
// operation, since no agent is permitted to author under this id.
var RootRaw = RawVersion{Agent: AgentID("$root"), Seq: -1}

// Kind enumerates the three CRDT node variants (spec.md §3's table).
type Kind int

const (
	KindMap Kind = iota
	KindRegister
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindRegister:
		return "register"
	case KindSet:
		return "set"
	default:
		return "unknown"
	}
}

// PrimitiveKind fixes the leaf-value domain left open by spec.md §9
// ("an implementation SHOULD fix the primitive domain explicitly... for
// cross-replica serialization determinism").
type PrimitiveKind int

const (
	PrimitiveNull PrimitiveKind = iota
	PrimitiveBool
	PrimitiveInt64
	PrimitiveFloat64
	PrimitiveString
)

// Primitive is an opaque leaf value drawn from the fixed primitive domain.
type Primitive struct {
	Kind    PrimitiveKind
	Bool    bool
	Int64   int64
	Float64 float64
	String  string
}

// Null, Bool, Int64, Float64 and Str construct the five Primitive variants.
func Null() Primitive                  { return Primitive{Kind: PrimitiveNull} }
func Bool(b bool) Primitive            { return Primitive{Kind: PrimitiveBool, Bool: b} }
func Int64(i int64) Primitive          { return Primitive{Kind: PrimitiveInt64, Int64: i} }
func Float64(f float64) Primitive      { return Primitive{Kind: PrimitiveFloat64, Float64: f} }
func Str(s string) Primitive           { return Primitive{Kind: PrimitiveString, String: s} }

// RegisterValue is either a primitive leaf or an owning reference to a
// nested CRDT node (spec.md §3's RegisterValue sum type).
type RegisterValue struct {
	IsCRDT    bool
	Primitive Primitive
	CRDTID    LV
}

// PrimitiveValue and CRDTRef construct the two RegisterValue variants.
func PrimitiveValue(p Primitive) RegisterValue { return RegisterValue{Primitive: p} }
func CRDTRef(id LV) RegisterValue              { return RegisterValue{IsCRDT: true, CRDTID: id} }

// RegisterPair is one concurrently-surviving write in an MVRegister.
type RegisterPair struct {
	LV    LV
	Value RegisterValue
}

// MVRegister is a non-empty, LV-ascending ordered sequence of pairs
// (invariants 3 and 4). A nil/empty MVRegister models "no prior pairs" for
// a map key that has never been written, per spec.md §4.3.4.
type MVRegister []RegisterPair

// Node is one live CRDT node, identified by the LV of the operation that
// created it (spec.md §3's table, §3's lifecycle rule).
type Node struct {
	Kind Kind

	// Keys holds the map variant's key -> register mapping.
	Keys map[string]MVRegister
	// Register holds the register variant's single MVRegister.
	Register MVRegister
	// Set holds the set variant's insertion-LV -> value mapping.
	Set map[LV]RegisterValue
}

func newMapNode() *Node {
	return &Node{Kind: KindMap, Keys: make(map[string]MVRegister)}
}

func newSetNode() *Node {
	return &Node{Kind: KindSet, Set: make(map[LV]RegisterValue)}
}

// newRegisterNode builds a freshly created register: a single pair whose
// value is primitive(null) and whose LV is the creating operation's LV
// (invariant 3).
func newRegisterNode(id LV) *Node {
	return &Node{Kind: KindRegister, Register: MVRegister{{LV: id, Value: PrimitiveValue(Null())}}}
}

// CreateValue is what a write operation specifies as its new value: either
// a primitive, or a request to create a nested CRDT node of the given kind
// (spec.md §4.3.1's CreateValue sum type).
type CreateValue struct {
	IsCRDT    bool
	Primitive Primitive
	CRDTKind  Kind
}

// PrimitiveCreate and CRDTCreate construct the two CreateValue variants.
func PrimitiveCreate(p Primitive) CreateValue { return CreateValue{Primitive: p} }
func CRDTCreate(kind Kind) CreateValue        { return CreateValue{IsCRDT: true, CRDTKind: kind} }

// ActionKind enumerates the four operation shapes spec.md §4.3.1 defines.
type ActionKind int

const (
	ActionRegisterSet ActionKind = iota
	ActionMap
	ActionSetInsert
	ActionSetDelete
)

// Action is the payload of an Operation: which CRDT-level change it makes.
// Not every field is meaningful for every Kind — Key only applies to
// ActionMap, Target only to ActionSetDelete, LocalParents only to
// ActionRegisterSet/ActionMap (set operations carry no local parents:
// inserts are conflict-free and deletes target a specific insertion by
// RawVersion, per spec.md §4.3.5).
type Action struct {
	Kind         ActionKind
	LocalParents []RawVersion
	Key          string
	Val          CreateValue
	Target       RawVersion
}

// Operation is the wire format named in spec.md §4.3.1/§6.1.
type Operation struct {
	ID            RawVersion
	GlobalParents []RawVersion
	CRDTID        RawVersion
	Action        Action
}

// DBValueKind enumerates what a materialized DBValue holds.
type DBValueKind int

const (
	DBNull DBValueKind = iota
	DBBool
	DBInt64
	DBFloat64
	DBString
	DBMap
	DBSet
)

// DBValue is the plain, conflict-resolved value tree Get produces
// (spec.md §4.4). Map and Set are only populated when Kind is DBMap/DBSet
// respectively; Set is keyed by the RawVersion of the inserting operation
// so that it is stable across replicas (spec.md §4.4's last bullet).
type DBValue struct {
	Kind    DBValueKind
	Bool    bool
	Int64   int64
	Float64 float64
	String  string
	Map     map[string]DBValue
	Set     map[RawVersion]DBValue
}

func primitiveToDBValue(p Primitive) DBValue {
	switch p.Kind {
	case PrimitiveNull:
		return DBValue{Kind: DBNull}
	case PrimitiveBool:
		return DBValue{Kind: DBBool, Bool: p.Bool}
	case PrimitiveInt64:
		return DBValue{Kind: DBInt64, Int64: p.Int64}
	case PrimitiveFloat64:
		return DBValue{Kind: DBFloat64, Float64: p.Float64}
	case PrimitiveString:
		return DBValue{Kind: DBString, String: p.String}
	default:
		return DBValue{Kind: DBNull}
	}
}
