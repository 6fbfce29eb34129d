package crdtforest

import "fmt"

// ToPlain converts a DBValue into native Go values (map[string]any,
// primitives) suitable for encoding/json or fmt — mainly useful for demo
// output and debugging, since DBValue's tagged-struct shape isn't
// otherwise JSON-friendly.
func (v DBValue) ToPlain() any {
	switch v.Kind {
	case DBNull:
		return nil
	case DBBool:
		return v.Bool
	case DBInt64:
		return v.Int64
	case DBFloat64:
		return v.Float64
	case DBString:
		return v.String
	case DBMap:
		out := make(map[string]any, len(v.Map))
		for k, val := range v.Map {
			out[k] = val.ToPlain()
		}
		return out
	case DBSet:
		out := make(map[string]any, len(v.Set))
		for raw, val := range v.Set {
			out[fmt.Sprintf("%s:%d", raw.Agent, raw.Seq)] = val.ToPlain()
		}
		return out
	default:
		return nil
	}
}
