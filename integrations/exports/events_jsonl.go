package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"lendchain/indexer"
)

// EventsJSONL builds a JSON Lines export of indexed events and returns the
// serialised payload alongside a checksum.
func EventsJSONL(records []indexer.Record) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, rec := range records {
		attrs, err := rec.Decoded()
		if err != nil {
			return nil, "", err
		}
		payload := map[string]interface{}{
			"sequence":    rec.Sequence,
			"type":        rec.Type,
			"recorded_at": rec.RecordedAt.UTC().Format(time.RFC3339Nano),
			"attributes":  attrs,
		}
		if rec.TransactionID != 0 {
			payload["transaction_id"] = rec.TransactionID
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

// Format selects an export encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// Encode renders records in format.
func Encode(format Format, records []indexer.Record) ([]byte, string, error) {
	switch format {
	case FormatCSV:
		return EventsCSV(records)
	case FormatJSONL, "":
		return EventsJSONL(records)
	default:
		return nil, "", fmt.Errorf("exports: unknown format %q", format)
	}
}
