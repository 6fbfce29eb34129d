package crdtforest

import (
	"fmt"

	"github.com/causalstore/crdtdb/causalgraph"
)

// Get materializes the visible value rooted at crdtID, defaulting to
// RootLV when no id is given (spec.md §4.4's get(crdtId = ROOT_LV)).
// Registers and map keys are resolved via the causal graph's tie-break,
// never local sort order, so every replica that has seen the same
// operations renders the same DBValue tree.
func (r *Replica) Get(crdtID ...LV) (DBValue, error) {
	id := RootLV
	if len(crdtID) > 0 {
		id = crdtID[0]
	}
	return r.getNodeValue(id)
}

func (r *Replica) getNodeValue(id LV) (DBValue, error) {
	node, ok := r.nodes.getNode(id)
	if !ok {
		return DBValue{Kind: DBNull}, nil
	}
	switch node.Kind {
	case KindRegister:
		winner, err := r.tieBreak(node.Register)
		if err != nil {
			return DBValue{}, fmt.Errorf("Get: register %d: %w", id, err)
		}
		return r.materializeValue(winner)

	case KindMap:
		out := make(map[string]DBValue, len(node.Keys))
		for key, reg := range node.Keys {
			winner, err := r.tieBreak(reg)
			if err != nil {
				return DBValue{}, fmt.Errorf("Get: map %d key %q: %w", id, key, err)
			}
			val, err := r.materializeValue(winner)
			if err != nil {
				return DBValue{}, err
			}
			out[key] = val
		}
		return DBValue{Kind: DBMap, Map: out}, nil

	case KindSet:
		out := make(map[RawVersion]DBValue, len(node.Set))
		for lv, val := range node.Set {
			raw, found := causalgraph.LVToRaw(r.CG, lv)
			if !found {
				return DBValue{}, fmt.Errorf("Get: set %d entry lv %d has no RawVersion", id, lv)
			}
			dbVal, err := r.materializeValue(val)
			if err != nil {
				return DBValue{}, err
			}
			out[raw] = dbVal
		}
		return DBValue{Kind: DBSet, Set: out}, nil

	default:
		return DBValue{Kind: DBNull}, nil
	}
}

// tieBreak picks the surviving pair of an MVRegister via the causal
// graph's deterministic, replica-independent ordering (spec.md §4.4,
// §6.2's tieBreakRegisters guarantee).
func (r *Replica) tieBreak(reg MVRegister) (RegisterValue, error) {
	if len(reg) == 0 {
		return RegisterValue{}, nil
	}
	lvs := make([]LV, len(reg))
	byLV := make(map[LV]RegisterValue, len(reg))
	for i, pair := range reg {
		lvs[i] = pair.LV
		byLV[pair.LV] = pair.Value
	}
	winner, err := causalgraph.TieBreakLVs(r.CG, lvs)
	if err != nil {
		return RegisterValue{}, err
	}
	return byLV[winner], nil
}

func (r *Replica) materializeValue(v RegisterValue) (DBValue, error) {
	if !v.IsCRDT {
		return primitiveToDBValue(v.Primitive), nil
	}
	return r.getNodeValue(v.CRDTID)
}
