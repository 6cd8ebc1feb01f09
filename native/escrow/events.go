package escrow

import (
	"encoding/hex"
	"strconv"

	"lendchain/core/types"
)

const (
	EventTypeItemListed           = "escrow.item.listed"
	EventTypeItemUpdated          = "escrow.item.updated"
	EventTypeItemDelisted         = "escrow.item.delisted"
	EventTypeLoanBorrowed         = "escrow.loan.borrowed"
	EventTypeLoanSettled          = "escrow.loan.settled"
	EventTypeLoanDisputed         = "escrow.loan.disputed"
	EventTypeLoanOutcomeApplied   = "escrow.loan.outcome_applied"
	EventTypeArbitrationRepointed = "escrow.arbitration.updated"
)

// NewItemListedEvent returns the canonical payload for a new listing.
func NewItemListedEvent(i *Item) *types.Event { return newItemEvent(EventTypeItemListed, i) }

// NewItemUpdatedEvent returns the canonical payload for changed listing terms.
func NewItemUpdatedEvent(i *Item) *types.Event { return newItemEvent(EventTypeItemUpdated, i) }

// NewItemDelistedEvent returns the canonical payload for a withdrawn listing.
func NewItemDelistedEvent(i *Item) *types.Event { return newItemEvent(EventTypeItemDelisted, i) }

// NewLoanBorrowedEvent returns the canonical payload for a new loan.
func NewLoanBorrowedEvent(t *LoanTransaction) *types.Event {
	return newLoanEvent(EventTypeLoanBorrowed, t)
}

// NewLoanSettledEvent returns the canonical payload for a settlement that did
// not open a dispute.
func NewLoanSettledEvent(t *LoanTransaction) *types.Event {
	return newLoanEvent(EventTypeLoanSettled, t)
}

// NewLoanDisputedEvent returns the canonical payload for a settlement that
// handed the deposit to arbitration.
func NewLoanDisputedEvent(t *LoanTransaction, incentive string) *types.Event {
	evt := newLoanEvent(EventTypeLoanDisputed, t)
	evt.Attributes["incentivePool"] = incentive
	return evt
}

// NewLoanOutcomeAppliedEvent returns the canonical payload for an applied
// arbitration verdict.
func NewLoanOutcomeAppliedEvent(t *LoanTransaction, ownerWon bool) *types.Event {
	evt := newLoanEvent(EventTypeLoanOutcomeApplied, t)
	evt.Attributes["ownerWon"] = strconv.FormatBool(ownerWon)
	return evt
}

// NewArbitrationRepointedEvent returns the payload for a changed arbitration
// identity.
func NewArbitrationRepointedEvent(addr [20]byte) *types.Event {
	return &types.Event{
		Type:       EventTypeArbitrationRepointed,
		Attributes: map[string]string{"arbitration": hex.EncodeToString(addr[:])},
	}
}

func newItemEvent(eventType string, i *Item) *types.Event {
	attrs := make(map[string]string)
	if i == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeItem(i)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["itemId"] = hex.EncodeToString(sanitized.ID[:])
	attrs["owner"] = hex.EncodeToString(sanitized.Owner[:])
	attrs["fee"] = sanitized.Fee.String()
	attrs["deposit"] = sanitized.Deposit.String()
	attrs["nonce"] = strconv.FormatUint(sanitized.Nonce, 10)
	attrs["minBorrowerReputation"] = strconv.FormatInt(sanitized.MinBorrowerReputation, 10)
	attrs["available"] = strconv.FormatBool(sanitized.Borrowable())
	if sanitized.MetadataRef != "" {
		attrs["metadataRef"] = sanitized.MetadataRef
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newLoanEvent(eventType string, t *LoanTransaction) *types.Event {
	attrs := make(map[string]string)
	if t == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeTransaction(t)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["transactionId"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["itemId"] = hex.EncodeToString(sanitized.ItemID[:])
	attrs["owner"] = hex.EncodeToString(sanitized.ItemOwner[:])
	attrs["borrower"] = hex.EncodeToString(sanitized.Borrower[:])
	attrs["fee"] = sanitized.FeePaid.String()
	attrs["deposit"] = sanitized.DepositPaid.String()
	if sanitized.Concluded {
		attrs["damageReported"] = strconv.FormatBool(sanitized.DamageReported)
		attrs["paidToOwner"] = sanitized.AmountPaidToOwner.String()
		attrs["refundedToBorrower"] = sanitized.AmountRefundedToBorrower.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
