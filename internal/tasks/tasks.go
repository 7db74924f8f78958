package tasks

import (
	"encoding/json"
	"fmt"
)

// Task types handled by the worker.
const (
	// TypeScan runs a full scan over the store, optionally followed by organize.
	TypeScan = "bookmarks:scan"
)

// QueueDefault is the queue scan tasks are enqueued on.
const QueueDefault = "default"

// ScanPayload is the body of a TypeScan task.
type ScanPayload struct {
	Organize bool `json:"organize"`
}

// EncodeScanPayload serializes p.
func EncodeScanPayload(p ScanPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode scan payload: %w", err)
	}
	return b, nil
}

// DecodeScanPayload parses a TypeScan task body.
func DecodeScanPayload(b []byte) (ScanPayload, error) {
	var p ScanPayload
	if len(b) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode scan payload: %w", err)
	}
	return p, nil
}
