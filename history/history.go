package history

// This file contains shared utilities for loading archived test case
// records from an output root.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lazyqa/lazyqa/model"
	"github.com/lazyqa/lazyqa/store"
)

// Entry is one archived test case found under the output root.
type Entry struct {
	Record   model.CaseRecord
	FullPath string
}

// LoadEntries loads all case records under outputRoot, newest first.
// Directories without a parseable case.json are skipped with a warning;
// an interrupted run may have left a case directory without its record.
func LoadEntries(logger zerolog.Logger, outputRoot string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(outputRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read output root %q: %w", outputRoot, err)
	}

	var entries []Entry
	for _, dirEntry := range dirEntries {
		if !dirEntry.IsDir() {
			continue
		}
		dir := filepath.Join(outputRoot, dirEntry.Name())
		recordPath := filepath.Join(dir, store.RecordFileName)
		if _, err := os.Stat(recordPath); err != nil {
			continue
		}

		record, err := parseRecord(recordPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", recordPath).Msg("Failed to parse case record")
			continue
		}
		entries = append(entries, Entry{Record: record, FullPath: dir})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Record.Timestamp.After(entries[j].Record.Timestamp)
	})
	return entries, nil
}

func parseRecord(path string) (model.CaseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.CaseRecord{}, err
	}

	var record model.CaseRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.CaseRecord{}, err
	}
	return record, nil
}
