// Command crdtdemo simulates two replicas of a causal, multi-value CRDT
// database performing concurrent writes and merging them, demonstrating
// the embedding interface end-to-end: createDb, local-op constructors,
// applyRemoteOp and get.
package main

import (
	"encoding/json"
	"log"

	"github.com/causalstore/crdtdb/crdtforest"
)

func main() {
	replicaA := crdtforest.CreateDB()
	replicaB := crdtforest.CreateDB()
	agentA := crdtforest.NewAgentID()
	agentB := crdtforest.NewAgentID()

	log.Printf("replica A is agent %s, replica B is agent %s", agentA, agentB)

	titleOp, _, err := replicaA.LocalMapInsert(agentA, crdtforest.RootLV, "title", crdtforest.PrimitiveCreate(crdtforest.Str("causal-store demo")))
	if err != nil {
		log.Fatalf("replica A: initial insert: %v", err)
	}

	opA, _, err := replicaA.LocalMapInsert(agentA, crdtforest.RootLV, "owner", crdtforest.PrimitiveCreate(crdtforest.Str(string(agentA))))
	if err != nil {
		log.Fatalf("replica A: concurrent write: %v", err)
	}
	opB, _, err := replicaB.LocalMapInsert(agentB, crdtforest.RootLV, "owner", crdtforest.PrimitiveCreate(crdtforest.Str(string(agentB))))
	if err != nil {
		log.Fatalf("replica B: concurrent write: %v", err)
	}

	log.Printf("exchanging operations between replicas")
	if _, err := replicaB.ApplyRemoteOp(titleOp); err != nil {
		log.Fatalf("replica B: merge title op from A: %v", err)
	}
	if _, err := replicaB.ApplyRemoteOp(opA); err != nil {
		log.Fatalf("replica B: merge op from A: %v", err)
	}
	if _, err := replicaA.ApplyRemoteOp(opB); err != nil {
		log.Fatalf("replica A: merge op from B: %v", err)
	}

	createTagsOp, tagsID, err := replicaA.LocalMapInsert(agentA, crdtforest.RootLV, "tags", crdtforest.CRDTCreate(crdtforest.KindSet))
	if err != nil {
		log.Fatalf("replica A: create tags set: %v", err)
	}
	tagOp, _, err := replicaA.LocalSetInsert(agentA, tagsID, crdtforest.PrimitiveCreate(crdtforest.Str("crdt")))
	if err != nil {
		log.Fatalf("replica A: insert tag: %v", err)
	}
	if _, err := replicaB.ApplyRemoteOp(createTagsOp); err != nil {
		log.Fatalf("replica B: merge tags-set creation op: %v", err)
	}
	if _, err := replicaB.ApplyRemoteOp(tagOp); err != nil {
		log.Fatalf("replica B: merge tag op: %v", err)
	}

	valueA, err := replicaA.Get()
	if err != nil {
		log.Fatalf("replica A: get: %v", err)
	}
	valueB, err := replicaB.Get()
	if err != nil {
		log.Fatalf("replica B: get: %v", err)
	}

	printJSON("replica A converged value", valueA)
	printJSON("replica B converged value", valueB)
}

func printJSON(label string, value crdtforest.DBValue) {
	encoded, err := json.MarshalIndent(value.ToPlain(), "", "  ")
	if err != nil {
		log.Fatalf("%s: marshal: %v", label, err)
	}
	log.Printf("%s:\n%s", label, encoded)
}
