// Package transfer moves the whole record list in and out of the ledger:
// JSON snapshots for export/import and backups, XLSX for spreadsheets.
package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"ledger/internal/core"
)

const filenamePrefix = "accounting_records_"

// Export serializes records as a pretty-printed JSON array. Records are
// written as given, an empty or nil list becomes "[]".
func Export(records []core.Record) ([]byte, error) {
	if records == nil {
		records = []core.Record{}
	}
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return append(out, '\n'), nil
}

// Filename returns the export filename for the calendar date of now.
func Filename(now time.Time) string {
	return filenamePrefix + now.Format(core.DateLayout) + ".json"
}

// Parse decodes a snapshot. The top level must be a JSON array; anything else
// is a *core.FormatError. Elements are decoded leniently and never rejected.
func Parse(payload []byte) ([]core.Record, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return nil, &core.FormatError{Reason: "empty payload"}
	}
	if trimmed[0] != '[' {
		return nil, &core.FormatError{Reason: "top level is not an array"}
	}

	records := []core.Record{}
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &core.FormatError{Reason: "invalid JSON", Err: err}
	}
	return records, nil
}

// Importer parses import payloads. With Strict set every record must decode
// cleanly and pass validation, otherwise the whole import is rejected.
type Importer struct {
	Strict bool
}

func (im Importer) Parse(payload []byte) ([]core.Record, error) {
	records, err := Parse(payload)
	if err != nil {
		return nil, err
	}
	if !im.Strict {
		return records, nil
	}

	seen := make(map[int64]struct{}, len(records))
	for i, r := range records {
		if r.Malformed() {
			return nil, &core.FormatError{Reason: fmt.Sprintf("record %d: undecodable fields %v", i, r.Issues)}
		}
		if err := r.Validate(); err != nil {
			return nil, &core.FormatError{Reason: fmt.Sprintf("record %d", i), Err: err}
		}
		if _, dup := seen[r.ID]; dup {
			return nil, &core.FormatError{Reason: fmt.Sprintf("record %d: duplicate id %d", i, r.ID)}
		}
		seen[r.ID] = struct{}{}
	}
	return records, nil
}
