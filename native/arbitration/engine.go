package arbitration

import (
	"fmt"
	"math/big"
	"time"

	"lendchain/core/events"
	"lendchain/core/types"
	"lendchain/native/common"
)

const opFinalize = "finalize"

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type valueBank interface {
	Balance(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

type reputationBook interface {
	Arbitrator(addr [20]byte) (int64, error)
	RecordParticipation(panel [][20]byte, voted func([20]byte) bool) error
}

// OutcomeSink applies a verdict to the loan it concerns. Address is the
// ledger identity the sink answers to.
type OutcomeSink interface {
	Address() [20]byte
	ApplyArbitrationOutcome(caller [20]byte, txID uint64, ownerWon bool, penalty, refund *big.Int, itemOwner, borrower [20]byte) error
}

// Config carries the identities and the initial parameters of an engine.
type Config struct {
	// Address is the engine identity; its account holds incentive pools.
	Address [20]byte
	// Owner authorises admin operations.
	Owner [20]byte
	// Ledger is the initial trusted ledger identity.
	Ledger          [20]byte
	Panel           [][20]byte
	VotingPeriod    int64
	MinVotingPeriod int64
	MaxVotingPeriod int64
	PanelSize       int
	IncentivePct    uint64
	// FinalizerPct is taken as given; zero disables the finalizer fee.
	FinalizerPct uint64
}

func (c Config) withDefaults() Config {
	if c.PanelSize <= 0 {
		c.PanelSize = DefaultPanelSize
	}
	if c.IncentivePct == 0 {
		c.IncentivePct = DefaultIncentivePct
	}
	if c.MinVotingPeriod <= 0 {
		c.MinVotingPeriod = DefaultMinVotingPeriod
	}
	if c.MaxVotingPeriod <= 0 {
		c.MaxVotingPeriod = DefaultMaxVotingPeriod
	}
	if c.VotingPeriod <= 0 {
		c.VotingPeriod = DefaultVotingPeriod
	}
	c.Panel = append([][20]byte(nil), c.Panel...)
	return c
}

// Engine runs panel votes on damage disputes and hands the verdict back to
// the ledger.
type Engine struct {
	cfg        Config
	state      engineState
	bank       valueBank
	reputation reputationBook
	sinks      map[[20]byte]OutcomeSink
	emitter    events.Emitter
	guard      common.ReentrancyGuard
	nowFn      func() int64
}

// NewEngine creates an arbitration engine with a no-op emitter. Zero values in
// cfg fall back to the package defaults.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg.withDefaults(),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the value transfer backend.
func (e *Engine) SetBank(bank valueBank) { e.bank = bank }

// SetReputation configures the arbitrator reputation ledger.
func (e *Engine) SetReputation(rep reputationBook) { e.reputation = rep }

// SetOutcomeSink registers a ledger that can receive verdicts. Verdicts go to
// the registered sink whose address is the trusted ledger identity.
func (e *Engine) SetOutcomeSink(sink OutcomeSink) {
	if e.sinks == nil {
		e.sinks = make(map[[20]byte]OutcomeSink)
	}
	e.sinks[sink.Address()] = sink
}

// Address returns the engine identity.
func (e *Engine) Address() [20]byte { return e.cfg.Address }

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(arbitrationEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.bank == nil:
		return errNilBank
	case e.reputation == nil:
		return errNilReputation
	}
	return nil
}

func (e *Engine) requiredIncentive(deposit *big.Int) *big.Int {
	pool := new(big.Int).Mul(cloneBigInt(deposit), new(big.Int).SetUint64(e.cfg.IncentivePct))
	return pool.Quo(pool, hundred)
}

// OpenDispute records a dispute for txID. Only the trusted ledger may call it.
// value is the incentive pool the ledger has already moved to the engine
// account.
func (e *Engine) OpenDispute(caller [20]byte, txID uint64, itemOwner, borrower [20]byte, deposit, value *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if params.Ledger == ([20]byte{}) || caller != params.Ledger {
		return ErrUnauthorized
	}
	if len(params.Panel) == 0 {
		return ErrEmptyPanel
	}
	if _, exists, err := e.loadDispute(txID); err != nil {
		return err
	} else if exists {
		return ErrAlreadyDisputed
	}
	if itemOwner == ([20]byte{}) || borrower == ([20]byte{}) {
		return ErrInvalidParty
	}
	if deposit == nil || deposit.Sign() <= 0 {
		return fmt.Errorf("%w: deposit must be positive", ErrInvalidParam)
	}
	required := e.requiredIncentive(deposit)
	if value == nil || value.Cmp(required) < 0 {
		return fmt.Errorf("%w: need %s", ErrInsufficientIncentive, required)
	}
	now := e.now()
	dispute := &Dispute{
		TransactionID:  txID,
		DepositAtStake: cloneBigInt(deposit),
		IncentivePool:  cloneBigInt(value),
		CreatedAt:      now,
		Deadline:       now + int64(params.VotingPeriod),
		ItemOwner:      itemOwner,
		Borrower:       borrower,
		Active:         true,
		Panel:          append([][20]byte(nil), params.Panel...),
		Penalty:        big.NewInt(0),
		Refund:         big.NewInt(0),
	}
	params.Locked = new(big.Int).Add(params.Locked, value)
	if err := e.storeDispute(dispute); err != nil {
		return err
	}
	if err := e.storeParams(params); err != nil {
		return err
	}
	e.emit(newDisputeOpenedEvent(dispute))
	return nil
}

// CastVote records caller's ballot. Only members of the dispute's frozen panel
// may vote, once each, before the deadline. Severity is ignored for votes
// favouring the borrower.
func (e *Engine) CastVote(caller [20]byte, txID uint64, favorOwner bool, severity int) error {
	if err := e.ready(); err != nil {
		return err
	}
	dispute, ok, err := e.loadDispute(txID)
	if err != nil {
		return err
	}
	if !ok || !dispute.Active || dispute.Resolved {
		return ErrNotActive
	}
	now := e.now()
	if now >= dispute.Deadline {
		return ErrVotingPeriodOver
	}
	if !dispute.OnPanel(caller) {
		return ErrUnauthorized
	}
	if _, voted, err := e.loadVote(txID, caller); err != nil {
		return err
	} else if voted {
		return ErrAlreadyVoted
	}
	var stored uint8
	if favorOwner {
		if severity < 1 || severity > MaxSeverity {
			return fmt.Errorf("%w: %d", ErrSeverityOutOfRange, severity)
		}
		stored = uint8(severity)
	}
	vote := &Vote{
		TransactionID: txID,
		Arbitrator:    caller,
		FavorOwner:    favorOwner,
		Severity:      stored,
		HasVoted:      true,
		CastAt:        now,
	}
	dispute.VotesCast++
	if err := e.storeVote(vote); err != nil {
		return err
	}
	if err := e.storeDispute(dispute); err != nil {
		return err
	}
	e.emit(newVoteCastEvent(vote))
	return nil
}

// Finalize closes a dispute once its deadline passed or every panel member
// voted, computes the verdict, applies it on the ledger and pays the
// incentive pool. Anyone may call it; the caller earns the finalizer fee.
func (e *Engine) Finalize(caller [20]byte, txID uint64) (*Dispute, Verdict, error) {
	if err := e.ready(); err != nil {
		return nil, Verdict{}, err
	}
	if len(e.sinks) == 0 {
		return nil, Verdict{}, errNilSink
	}
	release, err := e.guard.Enter(opFinalize)
	if err != nil {
		return nil, Verdict{}, err
	}
	defer release()

	dispute, ok, err := e.loadDispute(txID)
	if err != nil {
		return nil, Verdict{}, err
	}
	if !ok || !dispute.Active || dispute.Resolved {
		return nil, Verdict{}, ErrNotActive
	}
	now := e.now()
	if now < dispute.Deadline && dispute.VotesCast < uint64(len(dispute.Panel)) {
		return nil, Verdict{}, ErrVotingPeriodNotOver
	}

	votes := make([]*Vote, 0, len(dispute.Panel))
	voters := make([][20]byte, 0, len(dispute.Panel))
	voted := make(map[[20]byte]bool, len(dispute.Panel))
	for _, member := range dispute.Panel {
		vote, ok, err := e.loadVote(txID, member)
		if err != nil {
			return nil, Verdict{}, err
		}
		if !ok {
			continue
		}
		votes = append(votes, vote)
		voters = append(voters, member)
		voted[member] = true
	}
	verdict := ComputeVerdict(dispute.DepositAtStake, votes)
	payout := SplitIncentives(dispute.IncentivePool, e.cfg.FinalizerPct, voters)

	params, err := e.loadParams()
	if err != nil {
		return nil, Verdict{}, err
	}
	sink, ok := e.sinks[params.Ledger]
	if !ok {
		return nil, Verdict{}, errNilSink
	}
	params.Locked = new(big.Int).Sub(params.Locked, dispute.IncentivePool)
	if params.Locked.Sign() < 0 {
		params.Locked = big.NewInt(0)
	}
	dispute.Active = false
	dispute.Resolved = true
	dispute.OwnerWon = verdict.OwnerWon
	dispute.Penalty = cloneBigInt(verdict.Penalty)
	dispute.Refund = cloneBigInt(verdict.Refund)
	dispute.FinalizedBy = caller
	dispute.FinalizedAt = now
	if err := e.storeDispute(dispute); err != nil {
		return nil, Verdict{}, err
	}
	if err := e.storeParams(params); err != nil {
		return nil, Verdict{}, err
	}
	if err := e.reputation.RecordParticipation(dispute.Panel, func(addr [20]byte) bool { return voted[addr] }); err != nil {
		return nil, Verdict{}, err
	}
	if err := sink.ApplyArbitrationOutcome(e.cfg.Address, txID, verdict.OwnerWon, verdict.Penalty, verdict.Refund, dispute.ItemOwner, dispute.Borrower); err != nil {
		return nil, Verdict{}, err
	}

	if payout.Unused.Sign() > 0 || len(voters) == 0 {
		if err := e.transfer(dispute.Borrower, payout.Unused); err != nil {
			return nil, Verdict{}, err
		}
		e.emit(newIncentivesUnusedEvent(dispute))
	}
	if err := e.transfer(caller, payout.FinalizerFee); err != nil {
		return nil, Verdict{}, err
	}
	for _, share := range payout.Shares {
		if err := e.transfer(share.Arbitrator, share.Amount); err != nil {
			return nil, Verdict{}, err
		}
	}
	e.emit(newDisputeFinalizedEvent(dispute, verdict))
	return dispute.Clone(), verdict, nil
}

func (e *Engine) transfer(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return e.bank.Transfer(e.cfg.Address, to, amount)
}

func (e *Engine) requireOwner(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.cfg.Owner == ([20]byte{}) || caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	return nil
}

// SetVotingPeriod changes the voting window of disputes opened from now on.
func (e *Engine) SetVotingPeriod(caller [20]byte, period int64) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if period < e.cfg.MinVotingPeriod || period > e.cfg.MaxVotingPeriod {
		return fmt.Errorf("%w: voting period %d outside [%d,%d]", ErrInvalidParam, period, e.cfg.MinVotingPeriod, e.cfg.MaxVotingPeriod)
	}
	params, err := e.loadParams()
	if err != nil {
		return err
	}
	params.VotingPeriod = uint64(period)
	if err := e.storeParams(params); err != nil {
		return err
	}
	e.emit(newParamsUpdatedEvent(period))
	return nil
}

// SetPanel replaces the global panel. Open disputes keep their own snapshot.
func (e *Engine) SetPanel(caller [20]byte, panel [][20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := ValidatePanel(panel, e.cfg.PanelSize); err != nil {
		return err
	}
	params, err := e.loadParams()
	if err != nil {
		return err
	}
	params.Panel = append([][20]byte(nil), panel...)
	if err := e.storeParams(params); err != nil {
		return err
	}
	e.emit(newPanelUpdatedEvent(panel))
	return nil
}

// ValidatePanel checks that panel has exactly size distinct non-zero members.
func ValidatePanel(panel [][20]byte, size int) error {
	if len(panel) != size {
		return fmt.Errorf("%w: panel needs %d members, got %d", ErrInvalidParam, size, len(panel))
	}
	seen := make(map[[20]byte]struct{}, len(panel))
	for _, member := range panel {
		if member == ([20]byte{}) {
			return fmt.Errorf("%w: zero panel member", ErrInvalidParam)
		}
		if _, dup := seen[member]; dup {
			return fmt.Errorf("%w: duplicate panel member %x", ErrInvalidParam, member)
		}
		seen[member] = struct{}{}
	}
	return nil
}

// WithdrawStray sends funds held by the engine that are not locked in open
// incentive pools.
func (e *Engine) WithdrawStray(caller, to [20]byte, amount *big.Int) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.bank == nil {
		return errNilBank
	}
	if to == ([20]byte{}) {
		return fmt.Errorf("%w: recipient required", ErrInvalidParam)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidParam)
	}
	stray, err := e.StrayBalance()
	if err != nil {
		return err
	}
	if stray.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s available", ErrInsufficientBalance, stray)
	}
	if err := e.transfer(to, amount); err != nil {
		return err
	}
	e.emit(newStrayWithdrawnEvent(to, amount.String()))
	return nil
}

// SetLedger repoints the trusted ledger identity. The target must be a
// registered outcome sink so that verdicts follow the new identity.
func (e *Engine) SetLedger(caller, ledger [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if ledger == ([20]byte{}) {
		return fmt.Errorf("%w: ledger address required", ErrInvalidParam)
	}
	if _, ok := e.sinks[ledger]; !ok {
		return fmt.Errorf("%w: no ledger registered at %x", ErrInvalidParam, ledger)
	}
	params, err := e.loadParams()
	if err != nil {
		return err
	}
	params.Ledger = ledger
	if err := e.storeParams(params); err != nil {
		return err
	}
	e.emit(newLedgerUpdatedEvent(ledger))
	return nil
}

// Dispute returns the dispute for txID.
func (e *Engine) Dispute(txID uint64) (*Dispute, error) {
	dispute, ok, err := e.loadDispute(txID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: dispute %d", ErrNotFound, txID)
	}
	return dispute, nil
}

// Vote returns arbitrator's ballot on txID. A missing ballot is reported with
// HasVoted false.
func (e *Engine) Vote(txID uint64, arbitrator [20]byte) (*Vote, error) {
	vote, ok, err := e.loadVote(txID, arbitrator)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Vote{TransactionID: txID, Arbitrator: arbitrator}, nil
	}
	return vote, nil
}

// Panel returns the current global panel.
func (e *Engine) Panel() ([][20]byte, error) {
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	return params.Panel, nil
}

// Params returns the current parameters.
func (e *Engine) Params() (Params, error) {
	params, err := e.loadParams()
	if err != nil {
		return Params{}, err
	}
	return Params{
		VotingPeriod:    int64(params.VotingPeriod),
		MinVotingPeriod: e.cfg.MinVotingPeriod,
		MaxVotingPeriod: e.cfg.MaxVotingPeriod,
		PanelSize:       e.cfg.PanelSize,
		IncentivePct:    e.cfg.IncentivePct,
		FinalizerPct:    e.cfg.FinalizerPct,
		Ledger:          params.Ledger,
		Owner:           e.cfg.Owner,
	}, nil
}

// ArbitratorReputation returns the reputation of addr.
func (e *Engine) ArbitratorReputation(addr [20]byte) (int64, error) {
	if e == nil || e.reputation == nil {
		return 0, errNilReputation
	}
	return e.reputation.Arbitrator(addr)
}

// LockedIncentives returns the sum of incentive pools of open disputes.
func (e *Engine) LockedIncentives() (*big.Int, error) {
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(params.Locked), nil
}

// StrayBalance returns the engine balance not locked in open disputes.
func (e *Engine) StrayBalance() (*big.Int, error) {
	if e == nil || e.bank == nil {
		return nil, errNilBank
	}
	balance, err := e.bank.Balance(e.cfg.Address)
	if err != nil {
		return nil, err
	}
	locked, err := e.LockedIncentives()
	if err != nil {
		return nil, err
	}
	stray := new(big.Int).Sub(balance, locked)
	if stray.Sign() < 0 {
		stray.SetInt64(0)
	}
	return stray, nil
}
