package exits

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the dump format changes.
const dumpSchemaVersion uint16 = 1

type dumpPayload struct {
	Schema uint16
	Report *Report
}

// WriteFile serializes a report to path as schema-versioned msgpack.
func WriteFile(path string, report *Report) error {
	data, err := msgpack.Marshal(dumpPayload{Schema: dumpSchemaVersion, Report: report})
	if err != nil {
		return fmt.Errorf("failed to encode exit locations: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a report written by WriteFile, rejecting unknown schema
// versions.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload dumpPayload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if payload.Schema != dumpSchemaVersion {
		return nil, fmt.Errorf("%s: unsupported dump schema %d (want %d)", path, payload.Schema, dumpSchemaVersion)
	}
	if payload.Report == nil {
		return nil, fmt.Errorf("%s: empty dump", path)
	}
	return payload.Report, nil
}
