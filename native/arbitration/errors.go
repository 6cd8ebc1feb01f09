package arbitration

import "errors"

var (
	ErrUnauthorized          = errors.New("arbitration: unauthorized")
	ErrInvalidParam          = errors.New("arbitration: invalid parameter")
	ErrInvalidParty          = errors.New("arbitration: invalid party")
	ErrSeverityOutOfRange    = errors.New("arbitration: severity out of range")
	ErrAlreadyDisputed       = errors.New("arbitration: already disputed")
	ErrAlreadyVoted          = errors.New("arbitration: already voted")
	ErrNotActive             = errors.New("arbitration: dispute not active")
	ErrVotingPeriodOver      = errors.New("arbitration: voting period over")
	ErrVotingPeriodNotOver   = errors.New("arbitration: voting period not over")
	ErrNotFound              = errors.New("arbitration: not found")
	ErrInsufficientIncentive = errors.New("arbitration: insufficient incentive")
	ErrInsufficientBalance   = errors.New("arbitration: insufficient balance")
	ErrEmptyPanel            = errors.New("arbitration: empty panel")

	errNilState      = errors.New("arbitration engine: state not configured")
	errNilBank       = errors.New("arbitration engine: bank not configured")
	errNilReputation = errors.New("arbitration engine: reputation not configured")
	errNilSink       = errors.New("arbitration engine: outcome sink not configured")
)
