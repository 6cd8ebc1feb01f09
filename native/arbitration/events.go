package arbitration

import (
	"encoding/hex"
	"strconv"
	"strings"

	"lendchain/core/types"
)

const (
	EventTypeDisputeOpened    = "arbitration.dispute.opened"
	EventTypeVoteCast         = "arbitration.vote.cast"
	EventTypeDisputeFinalized = "arbitration.dispute.finalized"
	EventTypeIncentivesUnused = "arbitration.incentives_unused"
	EventTypePanelUpdated     = "arbitration.panel.updated"
	EventTypeParamsUpdated    = "arbitration.params.updated"
	EventTypeLedgerUpdated    = "arbitration.ledger.updated"
	EventTypeStrayWithdrawn   = "arbitration.stray.withdrawn"
)

type arbitrationEvent struct {
	evt *types.Event
}

func (a arbitrationEvent) EventType() string {
	if a.evt == nil {
		return ""
	}
	return a.evt.Type
}

func (a arbitrationEvent) Event() *types.Event { return a.evt }

func disputeAttributes(d *Dispute) map[string]string {
	attrs := make(map[string]string)
	if d == nil {
		return attrs
	}
	attrs["transactionId"] = strconv.FormatUint(d.TransactionID, 10)
	attrs["owner"] = hex.EncodeToString(d.ItemOwner[:])
	attrs["borrower"] = hex.EncodeToString(d.Borrower[:])
	attrs["deposit"] = cloneBigInt(d.DepositAtStake).String()
	attrs["incentivePool"] = cloneBigInt(d.IncentivePool).String()
	return attrs
}

func newDisputeOpenedEvent(d *Dispute) *types.Event {
	attrs := disputeAttributes(d)
	if d != nil {
		attrs["deadline"] = strconv.FormatInt(d.Deadline, 10)
		attrs["panel"] = joinAddresses(d.Panel)
	}
	return &types.Event{Type: EventTypeDisputeOpened, Attributes: attrs}
}

func newVoteCastEvent(v *Vote) *types.Event {
	attrs := make(map[string]string)
	if v != nil {
		attrs["transactionId"] = strconv.FormatUint(v.TransactionID, 10)
		attrs["arbitrator"] = hex.EncodeToString(v.Arbitrator[:])
		attrs["favorOwner"] = strconv.FormatBool(v.FavorOwner)
		attrs["severity"] = strconv.FormatUint(uint64(v.Severity), 10)
	}
	return &types.Event{Type: EventTypeVoteCast, Attributes: attrs}
}

func newDisputeFinalizedEvent(d *Dispute, verdict Verdict) *types.Event {
	attrs := disputeAttributes(d)
	attrs["outcome"] = string(verdict.Outcome)
	attrs["ownerWon"] = strconv.FormatBool(verdict.OwnerWon)
	attrs["penalty"] = cloneBigInt(verdict.Penalty).String()
	attrs["refund"] = cloneBigInt(verdict.Refund).String()
	attrs["ownerVotes"] = strconv.FormatUint(verdict.OwnerVotes, 10)
	attrs["borrowerVotes"] = strconv.FormatUint(verdict.BorrowerVotes, 10)
	if d != nil {
		attrs["finalizer"] = hex.EncodeToString(d.FinalizedBy[:])
	}
	return &types.Event{Type: EventTypeDisputeFinalized, Attributes: attrs}
}

func newIncentivesUnusedEvent(d *Dispute) *types.Event {
	return &types.Event{Type: EventTypeIncentivesUnused, Attributes: disputeAttributes(d)}
}

func newPanelUpdatedEvent(panel [][20]byte) *types.Event {
	return &types.Event{
		Type:       EventTypePanelUpdated,
		Attributes: map[string]string{"panel": joinAddresses(panel)},
	}
}

func newParamsUpdatedEvent(votingPeriod int64) *types.Event {
	return &types.Event{
		Type:       EventTypeParamsUpdated,
		Attributes: map[string]string{"votingPeriod": strconv.FormatInt(votingPeriod, 10)},
	}
}

func newLedgerUpdatedEvent(ledger [20]byte) *types.Event {
	return &types.Event{
		Type:       EventTypeLedgerUpdated,
		Attributes: map[string]string{"ledger": hex.EncodeToString(ledger[:])},
	}
}

func newStrayWithdrawnEvent(to [20]byte, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeStrayWithdrawn,
		Attributes: map[string]string{
			"to":     hex.EncodeToString(to[:]),
			"amount": amount,
		},
	}
}

func joinAddresses(addrs [][20]byte) string {
	parts := make([]string, len(addrs))
	for i, addr := range addrs {
		parts[i] = hex.EncodeToString(addr[:])
	}
	return strings.Join(parts, ",")
}
