package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sapops/rfcmeta/observe"
)

// ragRecord is one export row: the metadata document flattened for
// retrieval pipelines, with the generated search text attached.
type ragRecord struct {
	FunctionName      string                `json:"function_name"`
	LanguageCode      string                `json:"language_code"`
	Description       string                `json:"description,omitempty"`
	Area              string                `json:"area,omitempty"`
	DevClass          string                `json:"dev_class,omitempty"`
	SearchText        string                `json:"search_text"`
	Parameters        []ParameterDescriptor `json:"parameters"`
	StructuralVersion string                `json:"structural_version"`
}

// ExportForRAG writes every fresh positive entry as one JSON array, each
// record carrying the flattened parameters and the search text the index
// would tokenize. Returns the number of exported records.
//
// Stale and negative entries are skipped: an export is a snapshot of what
// the engine would serve fresh right now.
func (m *Manager) ExportForRAG(ctx context.Context, w io.Writer) (int, error) {
	if m.isClosed() {
		return 0, ErrClosed
	}

	meta := observe.CallMeta{Operation: "export"}
	ctx, span := m.tracer.StartSpan(ctx, meta)
	var err error
	defer func() { m.tracer.EndSpan(span, err) }()

	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("metadata: export: %w", err)
	}

	now := time.Now()
	records := make([]ragRecord, 0, len(keys))
	for _, key := range keys {
		e, gerr := m.store.Get(ctx, key)
		if gerr != nil || e.Negative || !e.Fresh(now) {
			continue
		}
		doc, derr := DecodeEntry(e)
		if derr != nil {
			continue
		}
		records = append(records, ragRecord{
			FunctionName:      doc.FunctionName,
			LanguageCode:      doc.LanguageCode,
			Description:       doc.Description,
			Area:              doc.Area,
			DevClass:          doc.DevClass,
			SearchText:        doc.FunctionName + " " + doc.SearchText(),
			Parameters:        doc.Parameters,
			StructuralVersion: doc.StructuralVersion,
		})
	}

	// Deterministic output regardless of store iteration order.
	sort.Slice(records, func(i, j int) bool {
		if records[i].FunctionName != records[j].FunctionName {
			return records[i].FunctionName < records[j].FunctionName
		}
		return records[i].LanguageCode < records[j].LanguageCode
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err = enc.Encode(records); err != nil {
		return 0, fmt.Errorf("metadata: export: %w", err)
	}

	m.logger.WithCall(meta).Info(ctx, "exported metadata",
		observe.Field{Key: "records", Value: len(records)})
	return len(records), nil
}
