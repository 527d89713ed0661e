package overview

import (
	"encoding/json"
	"log/slog"
	"os"

	liboverview "storescout/lib/overview"
)

// LoadRecords reads a results file written by a previous run. A
// missing or unreadable file yields an empty slice so runs can always
// append.
func LoadRecords(path string) []liboverview.Record {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var records []liboverview.Record
	err = json.Unmarshal(raw, &records)
	if err != nil {
		slog.Warn("results file is corrupt, starting fresh", "path", path, "err", err)
		return nil
	}
	return records
}

// SaveRecords rewrites the results file with the full record list.
func SaveRecords(path string, records []liboverview.Record) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
