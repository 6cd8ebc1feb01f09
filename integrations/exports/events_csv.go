package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"lendchain/indexer"
)

// EventsCSV builds a CSV export of indexed events and returns the serialised
// data alongside a SHA-256 checksum of the payload. Attributes are written as
// one JSON object column.
func EventsCSV(records []indexer.Record) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	header := []string{"sequence", "type", "transaction_id", "recorded_at", "attributes"}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, rec := range records {
		attrs, err := rec.Decoded()
		if err != nil {
			return nil, "", err
		}
		encoded, err := json.Marshal(attrs)
		if err != nil {
			return nil, "", err
		}
		txID := ""
		if rec.TransactionID != 0 {
			txID = fmt.Sprintf("%d", rec.TransactionID)
		}
		row := []string{
			fmt.Sprintf("%d", rec.Sequence),
			rec.Type,
			txID,
			rec.RecordedAt.UTC().Format(time.RFC3339Nano),
			string(encoded),
		}
		if err := writer.Write(row); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
