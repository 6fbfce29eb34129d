package crdtforest

import "github.com/causalstore/crdtdb/causalgraph"

// nodeTable is the Value Model's single mutable node table (spec.md §4.2).
// All mutation goes through the Merge Engine; the table itself only knows
// how to get, put and delete by LV.
type nodeTable struct {
	nodes map[LV]*Node
}

func newNodeTable() *nodeTable {
	nt := &nodeTable{nodes: make(map[LV]*Node)}
	nt.nodes[RootLV] = newMapNode()
	return nt
}

func (nt *nodeTable) getNode(id LV) (*Node, bool) {
	n, ok := nt.nodes[id]
	return n, ok
}

func (nt *nodeTable) putNode(id LV, n *Node) {
	nt.nodes[id] = n
}

func (nt *nodeTable) deleteNode(id LV) {
	delete(nt.nodes, id)
}

// Replica bundles a causal graph with the Value Model it governs — the
// embedding interface's concrete type (spec.md §6.3's createDb/Replica).
type Replica struct {
	CG    *causalgraph.CausalGraph
	nodes *nodeTable
}

// CreateDB constructs a fresh Replica: an empty causal graph and a node
// table seeded with ROOT_LV -> empty map (spec.md §4.2, §6.3's createDb()).
func CreateDB() *Replica {
	return &Replica{
		CG:    causalgraph.CreateCG(),
		nodes: newNodeTable(),
	}
}

// lvToRaw resolves id to its RawVersion, special-casing RootLV, which the
// causal graph never assigns (spec.md §3's ROOT/ROOT_LV pair).
func (r *Replica) lvToRaw(id LV) (RawVersion, bool) {
	if id == RootLV {
		return RootRaw, true
	}
	return causalgraph.LVToRaw(r.CG, id)
}

// rawToLV resolves raw to its LV, special-casing RootRaw.
func (r *Replica) rawToLV(raw RawVersion) (LV, error) {
	if raw == RootRaw {
		return RootLV, nil
	}
	return causalgraph.RawToLV(r.CG, raw.Agent, raw.Seq)
}
