package escrow_test

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	escrowpkg "lendchain/native/escrow"
)

func TestLoanEventsHaveDeterministicPayload(t *testing.T) {
	var itemID [32]byte
	copy(itemID[:], bytes.Repeat([]byte{0xAA}, 32))
	var owner, borrower [20]byte
	copy(owner[:], bytes.Repeat([]byte{0xBB}, 20))
	copy(borrower[:], bytes.Repeat([]byte{0xCC}, 20))

	tx := &escrowpkg.LoanTransaction{
		ID:                       7,
		ItemID:                   itemID,
		ItemOwner:                owner,
		Borrower:                 borrower,
		FeePaid:                  big.NewInt(100),
		DepositPaid:              big.NewInt(2_000),
		Concluded:                true,
		DamageReported:           true,
		AmountPaidToOwner:        big.NewInt(1_000),
		AmountRefundedToBorrower: big.NewInt(1_000),
	}
	evt := escrowpkg.NewLoanOutcomeAppliedEvent(tx, true)
	if evt.Type != escrowpkg.EventTypeLoanOutcomeApplied {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	expected := map[string]string{
		"transactionId":      "7",
		"itemId":             hex.EncodeToString(itemID[:]),
		"owner":              hex.EncodeToString(owner[:]),
		"borrower":           hex.EncodeToString(borrower[:]),
		"fee":                "100",
		"deposit":            "2000",
		"damageReported":     "true",
		"paidToOwner":        "1000",
		"refundedToBorrower": "1000",
		"ownerWon":           "true",
	}
	if len(evt.Attributes) != len(expected) {
		t.Fatalf("unexpected attributes %v", evt.Attributes)
	}
	for k, v := range expected {
		if evt.Attributes[k] != v {
			t.Fatalf("attribute %s: expected %q, got %q", k, v, evt.Attributes[k])
		}
	}
}

func TestEventsTolerateInvalidRecords(t *testing.T) {
	overpaid := &escrowpkg.LoanTransaction{
		ID:                1,
		DepositPaid:       big.NewInt(10),
		AmountPaidToOwner: big.NewInt(11),
	}
	if evt := escrowpkg.NewLoanSettledEvent(overpaid); len(evt.Attributes) != 0 {
		t.Fatalf("expected empty attributes for invalid transaction, got %v", evt.Attributes)
	}
	if evt := escrowpkg.NewItemListedEvent(nil); evt.Type != escrowpkg.EventTypeItemListed || len(evt.Attributes) != 0 {
		t.Fatalf("unexpected nil item event %+v", evt)
	}
}
