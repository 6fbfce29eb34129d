package crdtforest

import (
	"fmt"
	"log"
	"sort"

	"github.com/causalstore/crdtdb/causalgraph"
)

// ApplyRemoteOp is the dispatcher named in spec.md §4.3.1: admit op to the
// causal graph, translate its addressing fields to LV form, locate the
// target node, verify the action kind matches its variant, then dispatch
// the merge. It is the single entry point every write — local or
// remote-delivered — passes through (egwalker.Integrate plays the same
// role for the teacher's list CRDT).
//
// A duplicate delivery returns -1 wrapped in ErrAlreadyApplied, a soft
// condition (§7); callers use errors.Is to tell it apart from a malformed
// op and should not quarantine it.
func (r *Replica) ApplyRemoteOp(op Operation) (LV, error) {
	admitParents := op.GlobalParents
	if admitParents == nil {
		// No global parents means the author saw nothing; AddRaw would
		// otherwise read nil as "this replica's current heads".
		admitParents = []RawVersion{}
	}
	lv, isDuplicate, err := causalgraph.AddRawVersion(r.CG, op.ID, admitParents)
	if err != nil {
		return -1, fmt.Errorf("ApplyRemoteOp: admit %s:%d: %w", op.ID.Agent, op.ID.Seq, err)
	}
	if isDuplicate {
		return -1, fmt.Errorf("ApplyRemoteOp: %s:%d: %w", op.ID.Agent, op.ID.Seq, ErrAlreadyApplied)
	}

	globalParentLVs, err := causalgraph.RawToLVList(r.CG, op.GlobalParents)
	if err != nil {
		return -1, fmt.Errorf("ApplyRemoteOp: %w: globalParents: %v", ErrUnknownRawVersion, err)
	}

	crdtTargetLV, err := r.rawToLV(op.CRDTID)
	if err != nil {
		return -1, fmt.Errorf("ApplyRemoteOp: %w: crdtId %s:%d: %v", ErrUnknownRawVersion, op.CRDTID.Agent, op.CRDTID.Seq, err)
	}

	node, ok := r.nodes.getNode(crdtTargetLV)
	if !ok {
		log.Printf("crdtforest: target %s:%d (lv %d) already reclaimed, op %s:%d admitted as a no-op",
			op.CRDTID.Agent, op.CRDTID.Seq, crdtTargetLV, op.ID.Agent, op.ID.Seq)
		return lv, nil
	}

	switch op.Action.Kind {
	case ActionRegisterSet:
		if node.Kind != KindRegister {
			return -1, fmt.Errorf("ApplyRemoteOp: %w: registerSet against a %s node", ErrInvalidTarget, node.Kind)
		}
		newPairs, err := r.mergeIntoRegister(globalParentLVs, node.Register, op.Action.LocalParents, lv, op.Action.Val)
		if err != nil {
			return -1, fmt.Errorf("ApplyRemoteOp: %w", err)
		}
		node.Register = newPairs

	case ActionMap:
		if node.Kind != KindMap {
			return -1, fmt.Errorf("ApplyRemoteOp: %w: map action against a %s node", ErrInvalidTarget, node.Kind)
		}
		newPairs, err := r.mergeIntoRegister(globalParentLVs, node.Keys[op.Action.Key], op.Action.LocalParents, lv, op.Action.Val)
		if err != nil {
			return -1, fmt.Errorf("ApplyRemoteOp: %w", err)
		}
		node.Keys[op.Action.Key] = newPairs

	case ActionSetInsert:
		if node.Kind != KindSet {
			return -1, fmt.Errorf("ApplyRemoteOp: %w: setInsert against a %s node", ErrInvalidTarget, node.Kind)
		}
		value, err := r.materializeCreateValue(lv, op.Action.Val)
		if err != nil {
			return -1, fmt.Errorf("ApplyRemoteOp: %w", err)
		}
		node.Set[lv] = value

	case ActionSetDelete:
		if node.Kind != KindSet {
			return -1, fmt.Errorf("ApplyRemoteOp: %w: setDelete against a %s node", ErrInvalidTarget, node.Kind)
		}
		targetLV, err := causalgraph.RawToLV(r.CG, op.Action.Target.Agent, op.Action.Target.Seq)
		if err != nil {
			return -1, fmt.Errorf("ApplyRemoteOp: %w: setDelete target %s:%d: %v", ErrUnknownRawVersion, op.Action.Target.Agent, op.Action.Target.Seq, err)
		}
		if value, present := node.Set[targetLV]; present {
			r.removeRecursive(value)
			delete(node.Set, targetLV)
		}
		// Absent: already deleted or never inserted here — silent no-op,
		// the observed-remove semantics spec.md §4.3.5 calls for.

	default:
		return -1, fmt.Errorf("ApplyRemoteOp: unknown action kind %d", op.Action.Kind)
	}

	return lv, nil
}

// mergeIntoRegister implements spec.md §4.3.2's mergeRegister exactly:
// materialize the new pair, then for every old pair either reclaim it (its
// LV is named in localParents — the author observed and supersedes it) or
// retain it (it must be concurrent with the new write; if globalParents
// actually dominates it, the op is malformed).
func (r *Replica) mergeIntoRegister(globalParents []LV, oldPairs MVRegister, localParentsRaw []RawVersion, newLV LV, newVal CreateValue) (MVRegister, error) {
	newValue, err := r.materializeCreateValue(newLV, newVal)
	if err != nil {
		return nil, err
	}

	localParents, err := causalgraph.RawToLVList(r.CG, localParentsRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: localParents: %v", ErrUnknownRawVersion, err)
	}
	localParentSet := make(map[LV]struct{}, len(localParents))
	for _, p := range localParents {
		localParentSet[p] = struct{}{}
	}

	newPairs := make(MVRegister, 0, len(oldPairs)+1)
	newPairs = append(newPairs, RegisterPair{LV: newLV, Value: newValue})

	for _, pair := range oldPairs {
		if _, observed := localParentSet[pair.LV]; observed {
			r.removeRecursive(pair.Value)
			continue
		}
		dominated, err := causalgraph.VersionContainsTime(r.CG, globalParents, pair.LV)
		if err != nil {
			return nil, fmt.Errorf("mergeRegister: %w", err)
		}
		if dominated {
			return nil, fmt.Errorf("%w: pair lv=%d is dominated by the operation's globalParents yet was not named in localParents", ErrInvalidParents, pair.LV)
		}
		newPairs = append(newPairs, pair)
	}

	sort.Slice(newPairs, func(i, j int) bool { return newPairs[i].LV < newPairs[j].LV })
	return newPairs, nil
}

// materializeCreateValue turns a CreateValue into a RegisterValue,
// creating a fresh node when the value is a nested CRDT (spec.md §4.3.2
// step 1, §4.3.6).
func (r *Replica) materializeCreateValue(newLV LV, val CreateValue) (RegisterValue, error) {
	if !val.IsCRDT {
		return PrimitiveValue(val.Primitive), nil
	}
	if err := r.createCRDT(newLV, val.CRDTKind); err != nil {
		return RegisterValue{}, err
	}
	return CRDTRef(newLV), nil
}

// createCRDT inserts a freshly created node with the given id and kind
// (spec.md §4.3.6). id must not already be in the node table.
func (r *Replica) createCRDT(id LV, kind Kind) error {
	if _, exists := r.nodes.getNode(id); exists {
		return fmt.Errorf("%w: id %d", ErrDuplicateNode, id)
	}
	var node *Node
	switch kind {
	case KindMap:
		node = newMapNode()
	case KindSet:
		node = newSetNode()
	case KindRegister:
		node = newRegisterNode(id)
	default:
		return fmt.Errorf("createCRDT: unknown kind %d", kind)
	}
	r.nodes.putNode(id, node)
	return nil
}

// removeRecursive reclaims value's owned subtree, if any (spec.md §4.3.7).
// Primitives are no-ops; an already-reclaimed node (absent from the table)
// is also a no-op, since two concurrent overwrites can both attempt to
// reclaim the same subtree.
func (r *Replica) removeRecursive(value RegisterValue) {
	if !value.IsCRDT {
		return
	}
	node, ok := r.nodes.getNode(value.CRDTID)
	if !ok {
		return
	}
	switch node.Kind {
	case KindMap:
		for _, reg := range node.Keys {
			for _, pair := range reg {
				r.removeRecursive(pair.Value)
			}
		}
	case KindRegister:
		for _, pair := range node.Register {
			r.removeRecursive(pair.Value)
		}
	case KindSet:
		for _, v := range node.Set {
			r.removeRecursive(v)
		}
	}
	r.nodes.deleteNode(value.CRDTID)
}
