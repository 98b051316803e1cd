package lrs

import (
	"testing"

	"lrsgate/internal/xapi"
)

func TestApplyByIDs_Defaults(t *testing.T) {
	o := ApplyByIDs()
	if o.IgnoreErrors || o.ChunkSize != DefaultByIDsChunk {
		t.Fatalf("defaults = %+v", o)
	}
	o = ApplyByIDs(WithIgnoreErrors(), WithChunkSize(3))
	if !o.IgnoreErrors || o.ChunkSize != 3 {
		t.Fatalf("options = %+v", o)
	}
	if o = ApplyByIDs(WithChunkSize(-1)); o.ChunkSize != DefaultByIDsChunk {
		t.Fatalf("non-positive chunk should fall back: %+v", o)
	}
}

func TestChunks(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	got := Chunks(ids, 2)
	if len(got) != 3 || len(got[0]) != 2 || len(got[2]) != 1 {
		t.Fatalf("chunks = %+v", got)
	}
	if got[2][0] != "e" {
		t.Fatalf("order not preserved: %+v", got)
	}
	if Chunks(nil, 2) != nil {
		t.Fatalf("empty input should yield no chunks")
	}
	if got := Chunks(ids, 0); len(got) != 1 {
		t.Fatalf("zero size should use the default cap: %+v", got)
	}
}

func TestNewResult_EmptyPageDropsCursor(t *testing.T) {
	r := NewResult(nil, "cursor", "pit")
	if !r.Empty() || r.SearchAfter != "" || r.PITID != "" {
		t.Fatalf("empty page should clear cursors: %+v", r)
	}
	r = NewResult([]xapi.Statement{{"id": "a"}}, "cursor", "pit")
	if r.Empty() || r.SearchAfter != "cursor" || r.PITID != "pit" {
		t.Fatalf("populated page should keep cursors: %+v", r)
	}
}
