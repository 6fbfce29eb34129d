package crdtforest

import "errors"

// Fatal error kinds (spec.md §7). Callers compare with errors.Is; the
// wrapped message carries the offending id for diagnostics.
var (
	ErrDuplicateNode     = errors.New("crdtforest: node already exists")
	ErrInvalidTarget     = errors.New("crdtforest: action kind does not match node variant")
	ErrInvalidParents    = errors.New("crdtforest: retained pair is dominated by the operation's global parents")
	ErrUnknownRawVersion = errors.New("crdtforest: raw version not yet admitted to the causal graph")
)

// ErrAlreadyApplied is the soft duplicate-delivery signal (§4.3.1 step 1,
// §7's AlreadyApplied row). It is not a malformed-operation error: callers
// should treat it as "no-op, already seen" rather than quarantine the op.
var ErrAlreadyApplied = errors.New("crdtforest: operation already applied")
