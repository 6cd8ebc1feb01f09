package escrow

import "errors"

var (
	ErrUnauthorized         = errors.New("escrow: unauthorized")
	ErrInvalidSignature     = errors.New("escrow: invalid signature")
	ErrPaymentMismatch      = errors.New("escrow: payment mismatch")
	ErrReputationTooLow     = errors.New("escrow: reputation too low")
	ErrInvalidParty         = errors.New("escrow: invalid party")
	ErrInvalidParam         = errors.New("escrow: invalid parameter")
	ErrItemUnavailable      = errors.New("escrow: item unavailable")
	ErrAlreadyConcluded     = errors.New("escrow: transaction already concluded")
	ErrNotDisputed          = errors.New("escrow: transaction not disputed")
	ErrNotFound             = errors.New("escrow: not found")
	ErrPayoutExceedsDeposit = errors.New("escrow: payout exceeds deposit")

	errNilState      = errors.New("escrow engine: state not configured")
	errNilBank       = errors.New("escrow engine: bank not configured")
	errNilReputation = errors.New("escrow engine: reputation not configured")
	errNilArbitrator = errors.New("escrow engine: arbitrator not configured")
)
