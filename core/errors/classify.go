package errors

import (
	stderrors "errors"

	"lendchain/native/arbitration"
	"lendchain/native/bank"
	"lendchain/native/common"
	"lendchain/native/escrow"
	"lendchain/native/reputation"
)

// Class groups failures by who has to act on them.
type Class string

const (
	ClassNone          Class = ""
	ClassAuthorization Class = "authorization"
	ClassValidation    Class = "validation"
	ClassState         Class = "state"
	ClassInvariant     Class = "invariant"
	ClassUnknown       Class = "unknown"
)

// JSON-RPC error codes per class.
const (
	CodeUnknown       = -32000
	CodeAuthorization = -32001
	CodeValidation    = -32602
	CodeState         = -32010
	CodeInvariant     = -32011
)

type sentinel struct {
	err   error
	class Class
	name  string
}

var sentinels = []sentinel{
	{escrow.ErrUnauthorized, ClassAuthorization, "ErrUnauthorized"},
	{arbitration.ErrUnauthorized, ClassAuthorization, "ErrUnauthorized"},
	{common.ErrModulePaused, ClassAuthorization, "ErrModulePaused"},

	{escrow.ErrInvalidSignature, ClassValidation, "ErrInvalidSignature"},
	{escrow.ErrPaymentMismatch, ClassValidation, "ErrPaymentMismatch"},
	{escrow.ErrReputationTooLow, ClassValidation, "ErrReputationTooLow"},
	{escrow.ErrInvalidParty, ClassValidation, "ErrInvalidParty"},
	{escrow.ErrInvalidParam, ClassValidation, "ErrInvalidParam"},
	{arbitration.ErrSeverityOutOfRange, ClassValidation, "ErrSeverityOutOfRange"},
	{arbitration.ErrInvalidParty, ClassValidation, "ErrInvalidParty"},
	{arbitration.ErrInvalidParam, ClassValidation, "ErrInvalidParam"},
	{arbitration.ErrEmptyPanel, ClassValidation, "ErrInvalidParam"},
	{bank.ErrNegativeAmount, ClassValidation, "ErrInvalidParam"},
	{reputation.ErrInvalidRole, ClassValidation, "ErrInvalidParam"},

	{escrow.ErrItemUnavailable, ClassState, "ErrItemUnavailable"},
	{escrow.ErrAlreadyConcluded, ClassState, "ErrAlreadyConcluded"},
	{escrow.ErrNotDisputed, ClassState, "ErrNotDisputed"},
	{escrow.ErrNotFound, ClassState, "ErrNotFound"},
	{arbitration.ErrAlreadyDisputed, ClassState, "ErrAlreadyDisputed"},
	{arbitration.ErrAlreadyVoted, ClassState, "ErrAlreadyVoted"},
	{arbitration.ErrNotActive, ClassState, "ErrNotActive"},
	{arbitration.ErrVotingPeriodOver, ClassState, "ErrVotingPeriodOver"},
	{arbitration.ErrVotingPeriodNotOver, ClassState, "ErrVotingPeriodNotOver"},
	{arbitration.ErrNotFound, ClassState, "ErrNotFound"},
	{common.ErrReentrant, ClassState, "ErrReentrant"},

	{escrow.ErrPayoutExceedsDeposit, ClassInvariant, "ErrPayoutExceedsDeposit"},
	{arbitration.ErrInsufficientIncentive, ClassInvariant, "ErrInsufficientIncentive"},
	{arbitration.ErrInsufficientBalance, ClassInvariant, "ErrInsufficientBalance"},
	{bank.ErrInsufficientBalance, ClassInvariant, "ErrInsufficientBalance"},
}

func lookup(err error) (sentinel, bool) {
	for _, s := range sentinels {
		if stderrors.Is(err, s.err) {
			return s, true
		}
	}
	return sentinel{}, false
}

// Classify maps err onto its class. Nil yields ClassNone and unrecognised
// errors ClassUnknown.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if s, ok := lookup(err); ok {
		return s.class
	}
	return ClassUnknown
}

// Name returns the sentinel name carried in the RPC error data field, or ""
// when err wraps no known sentinel.
func Name(err error) string {
	if err == nil {
		return ""
	}
	if s, ok := lookup(err); ok {
		return s.name
	}
	return ""
}

// Code returns the JSON-RPC error code for err.
func Code(err error) int {
	switch Classify(err) {
	case ClassAuthorization:
		return CodeAuthorization
	case ClassValidation:
		return CodeValidation
	case ClassState:
		return CodeState
	case ClassInvariant:
		return CodeInvariant
	default:
		return CodeUnknown
	}
}
