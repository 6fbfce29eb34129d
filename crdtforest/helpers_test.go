package crdtforest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func assertDBValueEqual(t *testing.T, got, want DBValue) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DBValue mismatch (-want +got):\n%s", diff)
	}
}
