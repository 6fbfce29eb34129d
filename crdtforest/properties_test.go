package crdtforest

import (
	"testing"

	"github.com/causalstore/crdtdb/causalgraph"
)

// reachableFrom walks every crdt(id) reference starting at RootLV and
// returns the set of node ids actually reached.
func reachableFrom(db *Replica, root LV) map[LV]bool {
	seen := make(map[LV]bool)
	var walk func(id LV)
	walk = func(id LV) {
		if seen[id] {
			return
		}
		seen[id] = true
		node, ok := db.nodes.getNode(id)
		if !ok {
			return
		}
		visit := func(v RegisterValue) {
			if v.IsCRDT {
				walk(v.CRDTID)
			}
		}
		switch node.Kind {
		case KindMap:
			for _, reg := range node.Keys {
				for _, pair := range reg {
					visit(pair.Value)
				}
			}
		case KindRegister:
			for _, pair := range node.Register {
				visit(pair.Value)
			}
		case KindSet:
			for _, v := range node.Set {
				visit(v)
			}
		}
	}
	walk(root)
	return seen
}

// TestInvariant_ForestAndNoDangling covers invariants 1 and 6: every
// live node is reachable from RootLV (the table holds no orphans), and
// every crdt(id) reference resolves to a live node. A node reached twice
// is not detected, since reachableFrom visits each id once.
func TestInvariant_ForestAndNoDangling(t *testing.T) {
	db := CreateDB()
	_, inner, err := db.LocalMapInsert("a", RootLV, "outer", CRDTCreate(KindMap))
	if err != nil {
		t.Fatalf("create outer: %v", err)
	}
	if _, _, err := db.LocalMapInsert("a", inner, "k", PrimitiveCreate(Int64(1))); err != nil {
		t.Fatalf("insert k: %v", err)
	}
	_, setID, err := db.LocalMapInsert("a", RootLV, "tags", CRDTCreate(KindSet))
	if err != nil {
		t.Fatalf("create set: %v", err)
	}
	if _, _, err := db.LocalSetInsert("a", setID, PrimitiveCreate(Str("x"))); err != nil {
		t.Fatalf("set insert: %v", err)
	}

	reached := reachableFrom(db, RootLV)
	if len(reached) != len(db.nodes.nodes) {
		t.Errorf("reachable set has %d nodes, node table has %d: every live node must be reachable from RootLV",
			len(reached), len(db.nodes.nodes))
	}
	for id := range db.nodes.nodes {
		if !reached[id] {
			t.Errorf("node %d present in table but unreachable from RootLV", id)
		}
	}
}

// TestInvariant_PairwiseConcurrency covers invariant 2: every pair of
// surviving entries in an MVRegister is mutually concurrent.
func TestInvariant_PairwiseConcurrency(t *testing.T) {
	db := CreateDB()
	mustApply(t, db, Operation{ID: causalgraph.RawVersion{Agent: "x", Seq: 0}, CRDTID: RootRaw,
		Action: Action{Kind: ActionMap, Key: "k", Val: PrimitiveCreate(Int64(1))}})
	mustApply(t, db, Operation{ID: causalgraph.RawVersion{Agent: "y", Seq: 0}, CRDTID: RootRaw,
		Action: Action{Kind: ActionMap, Key: "k", Val: PrimitiveCreate(Int64(2))}})

	root, _ := db.nodes.getNode(RootLV)
	reg := root.Keys["k"]
	if len(reg) != 2 {
		t.Fatalf("expected 2 concurrent pairs, got %d", len(reg))
	}
	for i := range reg {
		for j := range reg {
			if i == j {
				continue
			}
			iDominatesJ, err := causalgraph.VersionContainsTime(db.CG, []LV{reg[i].LV}, reg[j].LV)
			if err != nil {
				t.Fatalf("VersionContainsTime: %v", err)
			}
			if iDominatesJ {
				t.Errorf("pair lv=%d dominates pair lv=%d; they should be concurrent", reg[i].LV, reg[j].LV)
			}
		}
	}
}

// TestCommutativity covers invariant 4: two concurrent operations applied
// in either order converge to the same materialized state.
func TestCommutativity(t *testing.T) {
	opA := Operation{ID: causalgraph.RawVersion{Agent: "a", Seq: 0}, CRDTID: RootRaw,
		Action: Action{Kind: ActionMap, Key: "k1", Val: PrimitiveCreate(Int64(1))}}
	opB := Operation{ID: causalgraph.RawVersion{Agent: "b", Seq: 0}, CRDTID: RootRaw,
		Action: Action{Kind: ActionMap, Key: "k2", Val: PrimitiveCreate(Int64(2))}}

	forward := CreateDB()
	mustApply(t, forward, opA)
	mustApply(t, forward, opB)

	backward := CreateDB()
	mustApply(t, backward, opB)
	mustApply(t, backward, opA)

	gotForward, err := forward.Get()
	if err != nil {
		t.Fatalf("forward.Get: %v", err)
	}
	gotBackward, err := backward.Get()
	if err != nil {
		t.Fatalf("backward.Get: %v", err)
	}
	assertDBValueEqual(t, gotForward, gotBackward)
}

// TestCausalConvergence covers invariant 5: two replicas that admit the
// same operations, delivered in different (but causally valid) orders,
// produce identical materialized output.
func TestCausalConvergence(t *testing.T) {
	ops := []Operation{
		{ID: causalgraph.RawVersion{Agent: "a", Seq: 0}, CRDTID: RootRaw,
			Action: Action{Kind: ActionMap, Key: "k", Val: PrimitiveCreate(Int64(1))}},
		{ID: causalgraph.RawVersion{Agent: "b", Seq: 0}, CRDTID: RootRaw,
			Action: Action{Kind: ActionMap, Key: "k", Val: PrimitiveCreate(Int64(2))}},
		{ID: causalgraph.RawVersion{Agent: "c", Seq: 0}, CRDTID: RootRaw,
			Action: Action{Kind: ActionMap, Key: "other", Val: PrimitiveCreate(Int64(3))}},
	}

	replicaOrderOne := CreateDB()
	for _, op := range ops {
		mustApply(t, replicaOrderOne, op)
	}

	replicaOrderTwo := CreateDB()
	reordered := []Operation{ops[2], ops[0], ops[1]}
	for _, op := range reordered {
		mustApply(t, replicaOrderTwo, op)
	}

	got1, err := replicaOrderOne.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got2, err := replicaOrderTwo.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	assertDBValueEqual(t, got1, got2)
}

// FuzzConvergence drives two replicas through randomized concurrent local
// writes and a single sync exchange, asserting they converge — patterned
// on a byte-driven operation fuzzer: each input byte selects a replica, a
// map key and a value.
func FuzzConvergence(f *testing.F) {
	f.Add([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0})

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 48 {
			data = data[:48]
		}
		a := CreateDB()
		b := CreateDB()
		keys := []string{"x", "y", "z"}
		var opsFromA, opsFromB []Operation

		for _, raw := range data {
			key := keys[int(raw>>2)%len(keys)]
			val := int64(raw)
			if raw&1 == 0 {
				op, _, err := a.LocalMapInsert("A", RootLV, key, PrimitiveCreate(Int64(val)))
				if err != nil {
					t.Fatalf("a local insert: %v", err)
				}
				opsFromA = append(opsFromA, op)
			} else {
				op, _, err := b.LocalMapInsert("B", RootLV, key, PrimitiveCreate(Int64(val)))
				if err != nil {
					t.Fatalf("b local insert: %v", err)
				}
				opsFromB = append(opsFromB, op)
			}
		}

		for _, op := range opsFromA {
			if _, err := b.ApplyRemoteOp(op); err != nil {
				t.Fatalf("b apply a's op %s:%d: %v", op.ID.Agent, op.ID.Seq, err)
			}
		}
		for _, op := range opsFromB {
			if _, err := a.ApplyRemoteOp(op); err != nil {
				t.Fatalf("a apply b's op %s:%d: %v", op.ID.Agent, op.ID.Seq, err)
			}
		}

		gotA, err := a.Get()
		if err != nil {
			t.Fatalf("a.Get: %v", err)
		}
		gotB, err := b.Get()
		if err != nil {
			t.Fatalf("b.Get: %v", err)
		}
		assertDBValueEqual(t, gotA, gotB)
	})
}
