package causalgraph

import (
"fmt"
"sort"
)

// CreateCG creates and returns a new, empty CausalGraph.
func CreateCG() *CausalGraph {
return &CausalGraph{
AgentToVersion: make(map[AgentID][]ClientEntry),
// Entries and Heads are initialized as empty slices by default.
// NextLV starts at 0.
}
}

// NextLV returns the next available local version (LV) in the graph.
// It's equivalent to the total number of versions assigned so far.
func NextLV(cg *CausalGraph) LV {
return cg.NextLV
}

// NextSeqForAgent returns the next sequence number for a given agent.
// If the agent is new, it returns 0.
func NextSeqForAgent(cg *CausalGraph, agent AgentID) int {
if entries, ok := cg.AgentToVersion[agent]; ok && len(entries) > 0 {
lastEntry := entries[len(entries)-1]
return lastEntry.SeqEnd // SeqEnd is exclusive, so it's the next seq
}
return 0 // First sequence number for this agent
}

// findEntryContainingRaw finds the CGEntry that contains the given RawVersion (agent, seq).
// It returns the entry, the offset of the RawVersion within that entry's sequence range, and a boolean indicating if found.
func findEntryContainingRaw(cg *CausalGraph, agent AgentID, seq int) (*CGEntry, int, bool) {
clientEntries, ok := cg.AgentToVersion[agent]
if !ok {
return nil, -1, false
}

idx := sort.Search(len(clientEntries), func(i int) bool {
return clientEntries[i].SeqEnd > seq
})

if idx < len(clientEntries) && clientEntries[idx].Seq <= seq {
entryLV := clientEntries[idx].Version
// Find the actual CGEntry in cg.Entries
for i := range cg.Entries {
if cg.Entries[i].Version == entryLV {
offset := seq - cg.Entries[i].Seq
// Check if seq is within the span of this specific CGEntry
if seq >= cg.Entries[i].Seq && seq < (cg.Entries[i].Seq+int(cg.Entries[i].VEnd-cg.Entries[i].Version)) {
return &cg.Entries[i], offset, true
}
}
}
}
return nil, -1, false
}

// findEntryContaining finds the CGEntry that contains the given LV.
// It returns the entry, the offset of the LV within that entry's version range, and a boolean indicating if found.
func findEntryContaining(cg *CausalGraph, v LV) (*CGEntry, int, bool) {
if v < 0 || v >= cg.NextLV {
return nil, -1, false
}

idx := sort.Search(len(cg.Entries), func(i int) bool {
return cg.Entries[i].VEnd > v
})

if idx < len(cg.Entries) && cg.Entries[idx].Version <= v {
entry := &cg.Entries[idx]
offset := int(v - entry.Version)
return entry, offset, true
}
return nil, -1, false
}

// LVToRaw converts an LV to its corresponding RawVersion (agent, seq).
// Returns the RawVersion and true if found, otherwise RawVersion{} and false.
func LVToRaw(cg *CausalGraph, v LV) (RawVersion, bool) {
entry, offset, found := findEntryContaining(cg, v)
if !found {
return RawVersion{}, false
}
return RawVersion{Agent: entry.Agent, Seq: entry.Seq + offset}, true
}

// RawToLV converts a RawVersion (agent, seq) to its corresponding LV.
// Returns the LV and an error if not found or invalid.
func RawToLV(cg *CausalGraph, agent AgentID, seq int) (LV, error) {
entry, offset, found := findEntryContainingRaw(cg, agent, seq)
if !found || entry == nil {
return -1, fmt.Errorf("raw version %s:%d not found in causal graph", agent, seq)
}
return entry.Version + LV(offset), nil
}

// RawToLVList converts a list of RawVersions to a list of LVs.
// If any RawVersion is not found, it returns an error.
func RawToLVList(cg *CausalGraph, raws []RawVersion) ([]LV, error) {
if len(raws) == 0 {
return nil, nil
}
lvs := make([]LV, len(raws))
for i, rv := range raws {
lv, err := RawToLV(cg, rv.Agent, rv.Seq)
if err != nil {
return nil, fmt.Errorf("failed to convert RawVersion %s:%d to LV: %w", rv.Agent, rv.Seq, err)
}
lvs[i] = lv
}
return lvs, nil
}

// LVToRawList converts a list of LVs to a list of RawVersions.
// If any LV is not found, it returns an error.
func LVToRawList(cg *CausalGraph, lvs []LV) ([]RawVersion, error) {
if len(lvs) == 0 {
return nil, nil
}
raws := make([]RawVersion, len(lvs))
for i, lv := range lvs {
rv, found := LVToRaw(cg, lv)
if !found {
return nil, fmt.Errorf("failed to convert LV %d to RawVersion: not found", lv)
}
raws[i] = rv
}
return raws, nil
}

// AddRaw adds a new version span to the causal graph.
func AddRaw(cg *CausalGraph, id RawVersion, length int, rawParents []RawVersion) (*CGEntry, error) {
if length <= 0 {
return nil, fmt.Errorf("length must be positive")
}

if _, err := RawToLV(cg, id.Agent, id.Seq); err == nil {
    return nil, nil // Duplicate
}

var parentLVs []LV
if rawParents == nil { // If nil, use current graph heads
    parentLVs = make([]LV, len(cg.Heads))
    copy(parentLVs, cg.Heads)
} else { // If not nil (could be empty slice or have elements), process them
    parentLVs = make([]LV, 0, len(rawParents))
    for _, rp := range rawParents {
        parentLV, err := RawToLV(cg, rp.Agent, rp.Seq)
        if err != nil {
            return nil, fmt.Errorf("parent %s:%d not found: %w", rp.Agent, rp.Seq, err)
        }
        parentLVs = append(parentLVs, parentLV)
    }
}
parentLVs = sortLVsAndDedup(parentLVs)

startLV := cg.NextLV
endLV := startLV + LV(length)

newEntry := CGEntry{
Agent:   id.Agent,
Seq:     id.Seq,
Version: startLV,
VEnd:    endLV,
Parents: parentLVs,
}
cg.Entries = append(cg.Entries, newEntry)
sort.Slice(cg.Entries, func(i, j int) bool {
    return cg.Entries[i].Version < cg.Entries[j].Version
})

cg.NextLV = endLV

clientEntries, _ := cg.AgentToVersion[id.Agent]
clientEntries = append(clientEntries, ClientEntry{
Seq:     id.Seq,
SeqEnd:  id.Seq + length,
Version: startLV,
})
sort.Slice(clientEntries, func(i, j int) bool {
return clientEntries[i].Seq < clientEntries[j].Seq
})
cg.AgentToVersion[id.Agent] = clientEntries

newHeads := make([]LV, 0, len(cg.Heads)+length) // Max capacity
for _, h := range cg.Heads {
isParent := false
for _, p := range parentLVs {
if h == p {
isParent = true
break
}
}
if !isParent {
newHeads = append(newHeads, h)
}
}
for i := 0; i < length; i++ {
    newHeads = append(newHeads, startLV+LV(i))
}
cg.Heads = sortLVsAndDedup(newHeads)

idx := sort.Search(len(cg.Entries), func(i int) bool {
    return cg.Entries[i].Version >= startLV
})
if idx < len(cg.Entries) && cg.Entries[idx].Version == startLV && cg.Entries[idx].Agent == id.Agent {
    return &cg.Entries[idx], nil
}

return nil, fmt.Errorf("internal error: added entry not found after sorting (target LV %d)", startLV)
}

// AddRawVersion is AddRaw specialized to a single-version op (length 1),
// returning a result shape that distinguishes "newly admitted" from
// "already known" without overloading a sentinel LV value, per spec.md
// §9's guidance to "expose a distinct result variant rather than
// overloading a numeric range." This is the entry point crdtforest's
// applyRemoteOp uses (spec.md §4.3.1 step 1).
func AddRawVersion(cg *CausalGraph, id RawVersion, rawParents []RawVersion) (lv LV, isDuplicate bool, err error) {
entry, err := AddRaw(cg, id, 1, rawParents)
if err != nil {
return -1, false, err
}
if entry == nil {
return -1, true, nil
}
return entry.Version, false, nil
}

// sortLVsAndDedup sorts a slice of LVs and removes duplicates, returning the new slice.
func sortLVsAndDedup(lvs []LV) []LV {
    if len(lvs) <= 1 {
        return lvs
    }
    sort.Slice(lvs, func(i, j int) bool { return lvs[i] < lvs[j] })

    j := 1
    for i := 1; i < len(lvs); i++ {
        if lvs[i] != lvs[i-1] {
            lvs[j] = lvs[i]
            j++
        }
    }
    return lvs[:j]
}

// VersionContainsLV checks if targetLV is an ancestor of (or equal to) any LV in frontier.
func VersionContainsLV(cg *CausalGraph, frontier []LV, targetLV LV) (bool, error) {
if targetLV < 0 || targetLV >= cg.NextLV {
    // Allow targetLV == cg.NextLV if cg.NextLV is 0 (empty graph), effectively targetLV is 0.
    // But if cg.NextLV > 0, then targetLV >= cg.NextLV is out of bounds.
    // A simpler check: if targetLV is negative, it's invalid. If positive or zero,
    // it must be < cg.NextLV unless cg.NextLV is 0.
    // If cg.NextLV is 0, any non-negative targetLV is out of bounds.
    // If targetLV is negative, it's always out of bounds.
    if targetLV < 0 || (cg.NextLV == 0 && targetLV >= 0) || (cg.NextLV > 0 && targetLV >= cg.NextLV) {
        return false, fmt.Errorf("targetLV %d is out of bounds for graph with %d LVs", targetLV, cg.NextLV)
    }
}

for _, fv := range frontier {
    if fv < 0 || fv >= cg.NextLV {
        return false, fmt.Errorf("frontier LV %d is out of bounds for graph with %d LVs", fv, cg.NextLV)
    }
    if fv == targetLV {
        return true, nil
    }
}
// If targetLV was valid but not found directly in frontier, and frontier is empty, it cannot be an ancestor.
if len(frontier) == 0 {
    return false, nil
}


queue := make([]LV, len(frontier))
copy(queue, frontier)
visited := make(map[LV]struct{})

for len(queue) > 0 {
curr := queue[0]
queue = queue[1:]

if _, ok := visited[curr]; ok {
continue
}
visited[curr] = struct{}{}

if curr < 0 {
continue
}
if curr == targetLV {
return true, nil
}

entry, offset, found := findEntryContaining(cg, curr)
if !found {
return false, fmt.Errorf("LV %d in frontier not found in graph during VersionContainsLV", curr)
}

var parents []LV
if offset == 0 {
parents = entry.Parents
} else {
parents = []LV{curr - 1}
}

for _, p := range parents {
if p == targetLV {
return true, nil
}
if _, vstd := visited[p]; !vstd && p >= 0 {
queue = append(queue, p)
}
}
}
return false, nil
}

// Version returns the current causal frontier: the LVs not dominated by any
// other known LV. Callers must not mutate the returned slice.
func Version(cg *CausalGraph) []LV {
return cg.Heads
}

// VersionContainsTime reports whether targetLV is causally included in
// frontier (targetLV <= frontier). It is reflexive (targetLV is always
// contained in a frontier that includes it directly) and consistent with
// the parents recorded by AddRaw, since it walks exactly those parent
// links.
func VersionContainsTime(cg *CausalGraph, frontier []LV, targetLV LV) (bool, error) {
return VersionContainsLV(cg, frontier, targetLV)
}

// TieBreakLVs deterministically picks one LV out of a set of mutually
// concurrent LVs (e.g. the surviving pairs of an MVRegister) and returns it
// as the winner.
//
// The result depends only on each candidate's (agent, seq) RawVersion, not
// on its local LV: two replicas holding the same set of concurrent raw
// versions agree on the winner even though their local LV numbering for
// those versions may differ (spec.md §4.1, §4.4). Ties are broken by
// comparing agent id first, then sequence number, highest wins — the same
// rule the retrieved pack's LWW-register implementations use for their
// tie-break step, adapted here to compare (agent, seq) instead of
// (timestamp, nodeID), since RawVersion is this system's only
// cross-replica-stable ordering key.
func TieBreakLVs(cg *CausalGraph, lvs []LV) (LV, error) {
if len(lvs) == 0 {
return -1, fmt.Errorf("TieBreakLVs: empty candidate set")
}
winner := lvs[0]
winnerRaw, found := LVToRaw(cg, winner)
if !found {
return -1, fmt.Errorf("TieBreakLVs: LV %d not found in graph", winner)
}
for _, candidate := range lvs[1:] {
candidateRaw, found := LVToRaw(cg, candidate)
if !found {
return -1, fmt.Errorf("TieBreakLVs: LV %d not found in graph", candidate)
}
if candidateRaw.Agent > winnerRaw.Agent ||
(candidateRaw.Agent == winnerRaw.Agent && candidateRaw.Seq > winnerRaw.Seq) {
winner = candidate
winnerRaw = candidateRaw
}
}
return winner, nil
}
