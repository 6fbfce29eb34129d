package crdtforest

import (
	"encoding/json"
	"fmt"

	"github.com/causalstore/crdtdb/causalgraph"
)

// snapshot is the on-disk shape of a Replica: the causal graph's own
// state plus the node table, so a reloaded replica can keep admitting new
// operations (spec.md §6.3: "a conforming implementation MAY snapshot the
// node table plus CG state").
type snapshot struct {
	CG    causalgraph.CausalGraph `json:"cg"`
	Nodes map[LV]*Node            `json:"nodes"`
}

// Snapshot serializes the replica's full state. Round-tripping through
// Load and then Get must be identity (spec.md §6.3, §8).
func (r *Replica) Snapshot() ([]byte, error) {
	snap := snapshot{CG: *r.CG, Nodes: r.nodes.nodes}
	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("crdtforest: snapshot: %w", err)
	}
	return data, nil
}

// Load rebuilds a Replica from a Snapshot() payload.
func Load(data []byte) (*Replica, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("crdtforest: load: %w", err)
	}
	cg := snap.CG
	nt := &nodeTable{nodes: snap.Nodes}
	if nt.nodes == nil {
		nt.nodes = make(map[LV]*Node)
	}
	if _, ok := nt.nodes[RootLV]; !ok {
		nt.nodes[RootLV] = newMapNode()
	}
	return &Replica{CG: &cg, nodes: nt}, nil
}
