package crdtforest

import (
	"fmt"
	"sort"
	"strings"
)

// Dump renders the node table as an indented tree for debugging, starting
// at RootLV. It is read-only and side-effect-free.
func (r *Replica) Dump() string {
	var b strings.Builder
	r.dumpNode(&b, RootLV, 0)
	return b.String()
}

func (r *Replica) dumpNode(b *strings.Builder, id LV, depth int) {
	indent := strings.Repeat("  ", depth)
	node, ok := r.nodes.getNode(id)
	if !ok {
		fmt.Fprintf(b, "%s<missing %d>\n", indent, id)
		return
	}
	switch node.Kind {
	case KindMap:
		fmt.Fprintf(b, "%smap %d {\n", indent, id)
		keys := make([]string, 0, len(node.Keys))
		for k := range node.Keys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "%s  %q:\n", indent, k)
			r.dumpRegister(b, node.Keys[k], depth+2)
		}
		fmt.Fprintf(b, "%s}\n", indent)

	case KindRegister:
		fmt.Fprintf(b, "%sregister %d:\n", indent, id)
		r.dumpRegister(b, node.Register, depth+1)

	case KindSet:
		fmt.Fprintf(b, "%sset %d {\n", indent, id)
		lvs := make([]LV, 0, len(node.Set))
		for lv := range node.Set {
			lvs = append(lvs, lv)
		}
		sort.Slice(lvs, func(i, j int) bool { return lvs[i] < lvs[j] })
		for _, lv := range lvs {
			fmt.Fprintf(b, "%s  [%d]:\n", indent, lv)
			r.dumpValue(b, node.Set[lv], depth+2)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	}
}

func (r *Replica) dumpRegister(b *strings.Builder, reg MVRegister, depth int) {
	for _, pair := range reg {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(b, "%s(lv=%d)\n", indent, pair.LV)
		r.dumpValue(b, pair.Value, depth+1)
	}
}

func (r *Replica) dumpValue(b *strings.Builder, v RegisterValue, depth int) {
	indent := strings.Repeat("  ", depth)
	if !v.IsCRDT {
		fmt.Fprintf(b, "%s%s\n", indent, primitiveString(v.Primitive))
		return
	}
	r.dumpNode(b, v.CRDTID, depth)
}

func primitiveString(p Primitive) string {
	switch p.Kind {
	case PrimitiveNull:
		return "null"
	case PrimitiveBool:
		return fmt.Sprintf("%t", p.Bool)
	case PrimitiveInt64:
		return fmt.Sprintf("%d", p.Int64)
	case PrimitiveFloat64:
		return fmt.Sprintf("%g", p.Float64)
	case PrimitiveString:
		return fmt.Sprintf("%q", p.String)
	default:
		return "?"
	}
}
