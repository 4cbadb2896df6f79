package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sapops/rfcmeta/store"
)

func TestExportForRAG(t *testing.T) {
	f := newFakeFetcher("754")
	m, st, _ := newTestManager(t, f, Config{})

	for _, fn := range []string{"RFC_READ_TABLE", "BAPI_USER_GET_DETAIL"} {
		if _, err := m.GetMetadata(context.Background(), fn, "EN"); err != nil {
			t.Fatalf("GetMetadata(%s): %v", fn, err)
		}
	}

	// A stale entry and a negative entry must not export.
	staleDoc := FromRaw(rawFor("Z_STALE_FUNC"), "Z_STALE_FUNC", "EN")
	payload, _ := Encode(staleDoc)
	if err := st.Put(context.Background(), store.NewEntry(
		store.Key{Function: "Z_STALE_FUNC", Language: "EN"}, payload, 0, staleDoc.StructuralVersion)); err != nil {
		t.Fatalf("Put stale: %v", err)
	}
	if err := st.Put(context.Background(), store.NewNegativeEntry(
		store.Key{Function: "Z_MISSING_FUNC", Language: "EN"}, time.Minute)); err != nil {
		t.Fatalf("Put negative: %v", err)
	}

	var buf bytes.Buffer
	n, err := m.ExportForRAG(context.Background(), &buf)
	if err != nil {
		t.Fatalf("ExportForRAG: %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d records, want 2", n)
	}

	var records []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("export is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(records) != 2 {
		t.Fatalf("decoded %d records, want 2", len(records))
	}

	// Deterministic order: sorted by function name.
	if records[0]["function_name"] != "BAPI_USER_GET_DETAIL" || records[1]["function_name"] != "RFC_READ_TABLE" {
		t.Errorf("record order: %v, %v", records[0]["function_name"], records[1]["function_name"])
	}

	// Search text includes the function name and parameter names.
	text, _ := records[1]["search_text"].(string)
	if !strings.Contains(text, "RFC_READ_TABLE") || !strings.Contains(text, "QUERY_TABLE") {
		t.Errorf("search_text incomplete: %q", text)
	}

	for _, r := range records {
		if r["function_name"] == "Z_STALE_FUNC" || r["function_name"] == "Z_MISSING_FUNC" {
			t.Errorf("stale or negative entry exported: %v", r["function_name"])
		}
	}
}

func TestExportForRAG_Empty(t *testing.T) {
	f := newFakeFetcher("754")
	m, _, _ := newTestManager(t, f, Config{})

	var buf bytes.Buffer
	n, err := m.ExportForRAG(context.Background(), &buf)
	if err != nil {
		t.Fatalf("ExportForRAG: %v", err)
	}
	if n != 0 {
		t.Errorf("exported %d records from empty cache", n)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty export = %q, want []", got)
	}
}
