package exports

import (
	"strings"
	"testing"
	"time"

	"lendchain/indexer"
)

func sampleRecords() []indexer.Record {
	return []indexer.Record{
		{
			Sequence:      1,
			Type:          "escrow.loan.borrowed",
			Attributes:    `{"fee":"100","transactionId":"4"}`,
			TransactionID: 4,
			RecordedAt:    time.Unix(1700, 0).UTC(),
		},
		{
			Sequence:   2,
			Type:       "escrow.item.listed",
			Attributes: `{"itemId":"0xab"}`,
			RecordedAt: time.Unix(1701, 0).UTC(),
		},
	}
}

func TestEventsCSV(t *testing.T) {
	data, checksum, err := EventsCSV(sampleRecords())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(data) == 0 || checksum == "" {
		t.Fatalf("expected data and checksum")
	}
	output := string(data)
	if !strings.Contains(output, "sequence,type,transaction_id,recorded_at,attributes") {
		t.Fatalf("missing header: %s", output)
	}
	if !strings.Contains(output, "escrow.loan.borrowed,4,") {
		t.Fatalf("missing transaction row: %s", output)
	}
}

func TestEventsJSONL(t *testing.T) {
	data, checksum, err := EventsJSONL(sampleRecords())
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if len(data) == 0 || checksum == "" {
		t.Fatalf("expected data and checksum")
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"transaction_id":4`) {
		t.Fatalf("unexpected payload: %s", lines[0])
	}
	if strings.Contains(lines[1], "transaction_id") {
		t.Fatalf("unexpected transaction id: %s", lines[1])
	}
}

func TestEncodeRejectsUnknownFormat(t *testing.T) {
	if _, _, err := Encode("xml", sampleRecords()); err == nil {
		t.Fatalf("expected error")
	}
	a, sumA, err := Encode(FormatCSV, sampleRecords())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, sumB, _ := EventsCSV(sampleRecords())
	if sumA != sumB || len(a) == 0 {
		t.Fatalf("checksum mismatch")
	}
}
