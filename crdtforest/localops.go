package crdtforest

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/causalstore/crdtdb/causalgraph"
)

// NewAgentID mints a fresh agent identifier for callers with no natural
// agent name of their own (e.g. a demo process spinning up a throwaway
// replica).
func NewAgentID() AgentID {
	return AgentID(uuid.NewString())
}

// LocalMapInsert packages a local write into a map key into an Operation,
// applies it, and hands the Operation back for transport (spec.md §4.5).
func (r *Replica) LocalMapInsert(agent AgentID, mapID LV, key string, val CreateValue) (Operation, LV, error) {
	return r.localWrite(agent, mapID, Action{Kind: ActionMap, Key: key, Val: val})
}

// LocalRegisterSet is registerSet's local-op sibling (§4.5: "MAY be
// exposed; they are not required by the core" — this embedding exposes
// all four for symmetry, see SPEC_FULL.md §4).
func (r *Replica) LocalRegisterSet(agent AgentID, registerID LV, val CreateValue) (Operation, LV, error) {
	return r.localWrite(agent, registerID, Action{Kind: ActionRegisterSet, Val: val})
}

// LocalSetInsert is setInsert's local-op sibling.
func (r *Replica) LocalSetInsert(agent AgentID, setID LV, val CreateValue) (Operation, LV, error) {
	return r.localWrite(agent, setID, Action{Kind: ActionSetInsert, Val: val})
}

// LocalSetDelete is setDelete's local-op sibling.
func (r *Replica) LocalSetDelete(agent AgentID, setID LV, target RawVersion) (Operation, LV, error) {
	return r.localWrite(agent, setID, Action{Kind: ActionSetDelete, Target: target})
}

// localWrite assembles an Operation whose localParents are the current
// LVs of the target register's pairs (translated to RawVersion) and whose
// globalParents are the current causal frontier, then feeds it through
// ApplyRemoteOp exactly as a remote-delivered op would be (spec.md §4.5).
func (r *Replica) localWrite(agent AgentID, targetID LV, action Action) (Operation, LV, error) {
	targetRaw, ok := r.lvToRaw(targetID)
	if !ok {
		return Operation{}, -1, fmt.Errorf("localWrite: target lv %d has no RawVersion (reclaimed or unknown)", targetID)
	}

	globalParents, err := causalgraph.LVToRawList(r.CG, causalgraph.Version(r.CG))
	if err != nil {
		return Operation{}, -1, fmt.Errorf("localWrite: globalParents: %w", err)
	}

	node, ok := r.nodes.getNode(targetID)
	if !ok {
		return Operation{}, -1, fmt.Errorf("localWrite: %w: target %d not found", ErrInvalidTarget, targetID)
	}

	switch action.Kind {
	case ActionRegisterSet:
		if node.Kind != KindRegister {
			return Operation{}, -1, fmt.Errorf("localWrite: %w: expected register, got %s", ErrInvalidTarget, node.Kind)
		}
		action.LocalParents, err = r.registerLVsToRaw(node.Register)
	case ActionMap:
		if node.Kind != KindMap {
			return Operation{}, -1, fmt.Errorf("localWrite: %w: expected map, got %s", ErrInvalidTarget, node.Kind)
		}
		action.LocalParents, err = r.registerLVsToRaw(node.Keys[action.Key])
	case ActionSetInsert, ActionSetDelete:
		if node.Kind != KindSet {
			return Operation{}, -1, fmt.Errorf("localWrite: %w: expected set, got %s", ErrInvalidTarget, node.Kind)
		}
	}
	if err != nil {
		return Operation{}, -1, err
	}

	seq := causalgraph.NextSeqForAgent(r.CG, agent)
	op := Operation{
		ID:            RawVersion{Agent: agent, Seq: seq},
		GlobalParents: globalParents,
		CRDTID:        targetRaw,
		Action:        action,
	}

	lv, err := r.ApplyRemoteOp(op)
	if err != nil {
		return Operation{}, -1, err
	}
	return op, lv, nil
}

func (r *Replica) registerLVsToRaw(reg MVRegister) ([]RawVersion, error) {
	raws := make([]RawVersion, 0, len(reg))
	for _, pair := range reg {
		raw, ok := r.lvToRaw(pair.LV)
		if !ok {
			return nil, fmt.Errorf("registerLVsToRaw: lv %d has no RawVersion", pair.LV)
		}
		raws = append(raws, raw)
	}
	return raws, nil
}
