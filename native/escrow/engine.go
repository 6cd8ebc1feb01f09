package escrow

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"lendchain/core/events"
	"lendchain/core/types"
	"lendchain/native/common"
)

const (
	// DefaultIncentivePct is the share of a disputed deposit forwarded to
	// arbitration as the incentive pool.
	DefaultIncentivePct = 5

	opApplyOutcome = "applyOutcome"
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

type valueBank interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

type reputationBook interface {
	Owner(addr [20]byte) (int64, error)
	Borrower(addr [20]byte) (int64, error)
	RewardAmicable(owner, borrower [20]byte, fee *big.Int) error
	ApplyUndepositedDamage(owner, borrower [20]byte) error
	ApplyOutcome(owner, borrower [20]byte, ownerWon bool, amountLost *big.Int) error
}

// Arbitrator receives disputes opened by the ledger. The incentive value has
// already been moved to the arbitrator's account when OpenDispute runs.
// Address is the identity the ledger trusts the arbitrator under.
type Arbitrator interface {
	Address() [20]byte
	OpenDispute(caller [20]byte, txID uint64, itemOwner, borrower [20]byte, deposit, value *big.Int) error
}

// Config carries the static identities and parameters of a ledger instance.
type Config struct {
	// Address is the ledger identity; its account holds escrowed funds.
	Address [20]byte
	// Admin may repoint the trusted arbitration identity.
	Admin [20]byte
	// Reserve funds incentive pools for disputes.
	Reserve [20]byte
	// Arbitration is the initial trusted arbitration identity.
	Arbitration  [20]byte
	IncentivePct uint64
	ChainID      *big.Int
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine is the escrow ledger: it owns item listings, loan transactions and
// the custody of fees and deposits.
type Engine struct {
	cfg         Config
	state       engineState
	bank        valueBank
	reputation  reputationBook
	arbitrators map[[20]byte]Arbitrator
	emitter     events.Emitter
	guard       common.ReentrancyGuard
	nowFn       func() int64
}

// NewEngine creates a ledger with a no-op emitter.
func NewEngine(cfg Config) *Engine {
	if cfg.IncentivePct == 0 {
		cfg.IncentivePct = DefaultIncentivePct
	}
	if cfg.ChainID == nil {
		cfg.ChainID = big.NewInt(1)
	}
	return &Engine{
		cfg:     cfg,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the value transfer backend.
func (e *Engine) SetBank(bank valueBank) { e.bank = bank }

// SetReputation configures the owner and borrower reputation ledgers.
func (e *Engine) SetReputation(rep reputationBook) { e.reputation = rep }

// SetArbitrator registers a component that can receive disputes. Disputes go
// to the registered arbitrator whose address is the trusted identity.
func (e *Engine) SetArbitrator(arb Arbitrator) {
	if e.arbitrators == nil {
		e.arbitrators = make(map[[20]byte]Arbitrator)
	}
	e.arbitrators[arb.Address()] = arb
}

// Address returns the ledger identity.
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

// Config returns the static configuration.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.ChainID = cloneBigInt(e.cfg.ChainID)
	return cfg
}

// Domain returns the signing domain of borrow authorizations.
func (e *Engine) Domain() Domain {
	return Domain{ChainID: cloneBigInt(e.cfg.ChainID), VerifyingContract: e.cfg.Address}
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
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

func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return e.bank.Transfer(from, to, amount)
}

func validAmount(v *big.Int) bool {
	return v != nil && v.Sign() >= 0
}

// IncentiveFor returns deposit × IncentivePct / 100.
func (e *Engine) IncentiveFor(deposit *big.Int) *big.Int {
	pool := new(big.Int).Mul(cloneBigInt(deposit), new(big.Int).SetUint64(e.cfg.IncentivePct))
	return pool.Quo(pool, big.NewInt(100))
}

// ListItem creates a listing owned by caller. A zero itemID derives the id
// from caller and metadataRef. Listing an id the caller already owns updates
// its terms and relists it if it was delisted.
func (e *Engine) ListItem(caller [20]byte, itemID [32]byte, fee, deposit *big.Int, metadataRef string, minRep int64) (*Item, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller == ([20]byte{}) {
		return nil, ErrUnauthorized
	}
	if !validAmount(fee) || !validAmount(deposit) {
		return nil, fmt.Errorf("%w: fee and deposit must be non-negative", ErrInvalidParam)
	}
	metadataRef = strings.TrimSpace(metadataRef)
	if itemID == ([32]byte{}) {
		if metadataRef == "" {
			return nil, fmt.Errorf("%w: item id or metadata reference required", ErrInvalidParam)
		}
		itemID = ItemIDFromMetadata(caller, metadataRef)
	}
	existing, ok, err := e.loadItem(itemID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if ok {
		if existing.Owner != caller {
			return nil, ErrUnauthorized
		}
		relisted := existing.Delisted
		applyTerms(existing, fee, deposit, metadataRef, minRep)
		existing.Delisted = false
		existing.UpdatedAt = now
		if err := e.storeItem(existing); err != nil {
			return nil, err
		}
		if relisted {
			e.emit(NewItemListedEvent(existing))
		} else {
			e.emit(NewItemUpdatedEvent(existing))
		}
		return existing.Clone(), nil
	}
	item := &Item{
		ID:        itemID,
		Owner:     caller,
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyTerms(item, fee, deposit, metadataRef, minRep)
	if err := e.storeItem(item); err != nil {
		return nil, err
	}
	if err := e.state.KVAppend(ownerItemsKey(caller), itemID[:]); err != nil {
		return nil, err
	}
	e.emit(NewItemListedEvent(item))
	return item.Clone(), nil
}

func applyTerms(item *Item, fee, deposit *big.Int, metadataRef string, minRep int64) {
	item.Fee = cloneBigInt(fee)
	item.Deposit = cloneBigInt(deposit)
	if metadataRef != "" {
		item.MetadataRef = metadataRef
	}
	item.MinBorrowerReputation = minRep
}

// UpdateItem changes the terms of an existing listing. Availability and the
// nonce are left untouched.
func (e *Engine) UpdateItem(caller [20]byte, itemID [32]byte, fee, deposit *big.Int, metadataRef string, minRep int64) (*Item, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !validAmount(fee) || !validAmount(deposit) {
		return nil, fmt.Errorf("%w: fee and deposit must be non-negative", ErrInvalidParam)
	}
	item, ok, err := e.loadItem(itemID)
	if err != nil {
		return nil, err
	}
	if !ok || item.Owner != caller {
		return nil, ErrUnauthorized
	}
	applyTerms(item, fee, deposit, strings.TrimSpace(metadataRef), minRep)
	item.UpdatedAt = e.now()
	if err := e.storeItem(item); err != nil {
		return nil, err
	}
	e.emit(NewItemUpdatedEvent(item))
	return item.Clone(), nil
}

// DelistItem withdraws a listing. The record and its nonce are kept so old
// authorizations stay unusable if the item is listed again.
func (e *Engine) DelistItem(caller [20]byte, itemID [32]byte) (*Item, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	item, ok, err := e.loadItem(itemID)
	if err != nil {
		return nil, err
	}
	if !ok || item.Owner != caller {
		return nil, ErrUnauthorized
	}
	if item.Delisted {
		return item.Clone(), nil
	}
	item.Delisted = true
	item.UpdatedAt = e.now()
	if err := e.storeItem(item); err != nil {
		return nil, err
	}
	e.emit(NewItemDelistedEvent(item))
	return item.Clone(), nil
}

// Borrow escrows fee and deposit from caller and opens a loan on itemID. The
// owner's signature must cover the item's current nonce and the caller as
// borrower. value is the amount caller sends along and must equal fee+deposit.
func (e *Engine) Borrow(caller [20]byte, itemID [32]byte, fee, deposit *big.Int, signature []byte, value *big.Int) (*LoanTransaction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	item, ok, err := e.loadItem(itemID)
	if err != nil {
		return nil, err
	}
	if !ok || !item.Borrowable() {
		return nil, ErrItemUnavailable
	}
	if caller == ([20]byte{}) || caller == item.Owner {
		return nil, ErrInvalidParty
	}
	if fee == nil || deposit == nil || item.Fee.Cmp(fee) != 0 || item.Deposit.Cmp(deposit) != 0 {
		return nil, fmt.Errorf("%w: terms differ from listing", ErrPaymentMismatch)
	}
	total := new(big.Int).Add(item.Fee, item.Deposit)
	if value == nil || value.Cmp(total) != 0 {
		return nil, fmt.Errorf("%w: expected value %s", ErrPaymentMismatch, total)
	}
	auth := BorrowAuthorization{
		ItemID:   item.ID,
		Fee:      item.Fee,
		Deposit:  item.Deposit,
		Nonce:    item.Nonce,
		Borrower: caller,
	}
	signer, err := RecoverBorrowSigner(e.Domain(), auth, signature)
	if err != nil {
		return nil, err
	}
	if signer != item.Owner {
		return nil, ErrInvalidSignature
	}
	rep, err := e.reputation.Borrower(caller)
	if err != nil {
		return nil, err
	}
	if rep < item.MinBorrowerReputation {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrReputationTooLow, rep, item.MinBorrowerReputation)
	}
	stats, err := e.loadStats()
	if err != nil {
		return nil, err
	}
	now := e.now()
	tx := &LoanTransaction{
		ID:                       stats.NextTransactionID,
		ItemID:                   item.ID,
		Borrower:                 caller,
		ItemOwner:                item.Owner,
		FeePaid:                  cloneBigInt(item.Fee),
		DepositPaid:              cloneBigInt(item.Deposit),
		AmountPaidToOwner:        big.NewInt(0),
		AmountRefundedToBorrower: big.NewInt(0),
		CreatedAt:                now,
	}
	item.Available = false
	item.Nonce++
	item.UpdatedAt = now
	stats.NextTransactionID++
	stats.ActiveLoans++
	if err := e.storeItem(item); err != nil {
		return nil, err
	}
	if err := e.storeTransaction(tx); err != nil {
		return nil, err
	}
	if err := e.storeStats(stats); err != nil {
		return nil, err
	}
	if err := e.transfer(caller, e.cfg.Address, total); err != nil {
		return nil, err
	}
	e.emit(NewLoanBorrowedEvent(tx))
	return tx.Clone(), nil
}

// restoreAvailability makes the item borrowable again unless it was delisted
// or changed hands while on loan.
func (e *Engine) restoreAvailability(tx *LoanTransaction) error {
	item, ok, err := e.loadItem(tx.ItemID)
	if err != nil || !ok {
		return err
	}
	if item.Owner != tx.ItemOwner || item.Delisted {
		return nil
	}
	item.Available = true
	item.UpdatedAt = e.now()
	return e.storeItem(item)
}

// Settle concludes a loan. Without reported damage the deposit returns to the
// borrower. Reported damage on a loan without deposit only touches
// reputation. Reported damage on a deposit opens a dispute with the
// arbitrator, funded from the incentive reserve.
func (e *Engine) Settle(caller [20]byte, txID uint64, damageReported bool) (*LoanTransaction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	tx, ok, err := e.loadTransaction(txID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, txID)
	}
	if caller != tx.ItemOwner && caller != tx.Borrower {
		return nil, ErrUnauthorized
	}
	if tx.Concluded {
		return nil, ErrAlreadyConcluded
	}
	stats, err := e.loadStats()
	if err != nil {
		return nil, err
	}
	tx.Concluded = true
	tx.DamageReported = damageReported
	tx.ConcludedAt = e.now()
	if stats.ActiveLoans > 0 {
		stats.ActiveLoans--
	}

	if damageReported && tx.DepositPaid.Sign() > 0 {
		if err := e.openDispute(tx, stats); err != nil {
			return nil, err
		}
		return tx.Clone(), nil
	}

	if !damageReported {
		tx.AmountRefundedToBorrower = cloneBigInt(tx.DepositPaid)
	}
	if err := e.storeTransaction(tx); err != nil {
		return nil, err
	}
	if err := e.storeStats(stats); err != nil {
		return nil, err
	}
	if err := e.restoreAvailability(tx); err != nil {
		return nil, err
	}
	if damageReported {
		err = e.reputation.ApplyUndepositedDamage(tx.ItemOwner, tx.Borrower)
	} else {
		err = e.reputation.RewardAmicable(tx.ItemOwner, tx.Borrower, tx.FeePaid)
	}
	if err != nil {
		return nil, err
	}
	if err := e.transfer(e.cfg.Address, tx.Borrower, tx.AmountRefundedToBorrower); err != nil {
		return nil, err
	}
	if err := e.transfer(e.cfg.Address, tx.ItemOwner, tx.FeePaid); err != nil {
		return nil, err
	}
	e.emit(NewLoanSettledEvent(tx))
	return tx.Clone(), nil
}

func (e *Engine) openDispute(tx *LoanTransaction, stats *Stats) error {
	arbitration, err := e.arbitrationAddress()
	if err != nil {
		return err
	}
	arbitrator, ok := e.arbitrators[arbitration]
	if !ok {
		return errNilArbitrator
	}
	stats.ActiveDisputes++
	if err := e.storeTransaction(tx); err != nil {
		return err
	}
	if err := e.storeStats(stats); err != nil {
		return err
	}
	incentive := e.IncentiveFor(tx.DepositPaid)
	if err := e.transfer(e.cfg.Address, tx.ItemOwner, tx.FeePaid); err != nil {
		return err
	}
	if err := e.transfer(e.cfg.Reserve, arbitration, incentive); err != nil {
		return fmt.Errorf("escrow: fund incentive pool: %w", err)
	}
	if err := arbitrator.OpenDispute(e.cfg.Address, tx.ID, tx.ItemOwner, tx.Borrower, cloneBigInt(tx.DepositPaid), incentive); err != nil {
		return err
	}
	e.emit(NewLoanDisputedEvent(tx, incentive.String()))
	return nil
}

// ApplyArbitrationOutcome pays out a disputed deposit according to the
// verdict. Only the trusted arbitration identity may call it and only once
// per transaction.
func (e *Engine) ApplyArbitrationOutcome(caller [20]byte, txID uint64, ownerWon bool, penalty, refund *big.Int, itemOwner, borrower [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	release, err := e.guard.Enter(opApplyOutcome)
	if err != nil {
		return err
	}
	defer release()

	arbitration, err := e.arbitrationAddress()
	if err != nil {
		return err
	}
	if arbitration == ([20]byte{}) || caller != arbitration {
		return ErrUnauthorized
	}
	tx, ok, err := e.loadTransaction(txID)
	if err != nil {
		return err
	}
	if !ok || !tx.Disputed() {
		return ErrNotDisputed
	}
	if itemOwner == ([20]byte{}) || itemOwner != tx.ItemOwner || borrower != tx.Borrower {
		return ErrInvalidParty
	}
	if !validAmount(penalty) || !validAmount(refund) {
		return fmt.Errorf("%w: negative payout", ErrInvalidParam)
	}
	payout := new(big.Int).Add(penalty, refund)
	if payout.Cmp(tx.DepositPaid) > 0 {
		return fmt.Errorf("%w: %s > %s", ErrPayoutExceedsDeposit, payout, tx.DepositPaid)
	}
	stats, err := e.loadStats()
	if err != nil {
		return err
	}
	tx.OutcomeApplied = true
	tx.AmountPaidToOwner = cloneBigInt(penalty)
	tx.AmountRefundedToBorrower = cloneBigInt(refund)
	if stats.ActiveDisputes > 0 {
		stats.ActiveDisputes--
	}
	if err := e.storeTransaction(tx); err != nil {
		return err
	}
	if err := e.storeStats(stats); err != nil {
		return err
	}
	if err := e.restoreAvailability(tx); err != nil {
		return err
	}
	lost := refund
	if ownerWon {
		lost = penalty
	}
	if err := e.reputation.ApplyOutcome(tx.ItemOwner, tx.Borrower, ownerWon, lost); err != nil {
		return err
	}
	remainder := new(big.Int).Sub(tx.DepositPaid, payout)
	if err := e.transfer(e.cfg.Address, tx.ItemOwner, penalty); err != nil {
		return err
	}
	if err := e.transfer(e.cfg.Address, tx.Borrower, refund); err != nil {
		return err
	}
	if err := e.transfer(e.cfg.Address, e.cfg.Reserve, remainder); err != nil {
		return err
	}
	e.emit(NewLoanOutcomeAppliedEvent(tx, ownerWon))
	return nil
}

// SetArbitration repoints the trusted arbitration identity. The target must be
// a registered arbitrator so that disputes and outcomes follow the new identity.
func (e *Engine) SetArbitration(caller, addr [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.cfg.Admin == ([20]byte{}) || caller != e.cfg.Admin {
		return ErrUnauthorized
	}
	if addr == ([20]byte{}) {
		return fmt.Errorf("%w: arbitration address required", ErrInvalidParam)
	}
	if _, ok := e.arbitrators[addr]; !ok {
		return fmt.Errorf("%w: no arbitrator registered at %x", ErrInvalidParam, addr)
	}
	if err := e.state.KVPut(paramsKey, &storedParams{Arbitration: addr}); err != nil {
		return err
	}
	e.emit(NewArbitrationRepointedEvent(addr))
	return nil
}

// Arbitration returns the trusted arbitration identity.
func (e *Engine) Arbitration() ([20]byte, error) {
	return e.arbitrationAddress()
}

// Item returns the listing stored under id.
func (e *Engine) Item(id [32]byte) (*Item, error) {
	item, ok, err := e.loadItem(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: item %x", ErrNotFound, id)
	}
	return item, nil
}

// Transaction returns the loan stored under id.
func (e *Engine) Transaction(id uint64) (*LoanTransaction, error) {
	tx, ok, err := e.loadTransaction(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
	}
	return tx, nil
}

// Stats returns the ledger counters.
func (e *Engine) Stats() (*Stats, error) {
	return e.loadStats()
}

// OwnerReputation returns the owner reputation of addr.
func (e *Engine) OwnerReputation(addr [20]byte) (int64, error) {
	if e == nil || e.reputation == nil {
		return 0, errNilReputation
	}
	return e.reputation.Owner(addr)
}

// BorrowerReputation returns the borrower reputation of addr.
func (e *Engine) BorrowerReputation(addr [20]byte) (int64, error) {
	if e == nil || e.reputation == nil {
		return 0, errNilReputation
	}
	return e.reputation.Borrower(addr)
}

// ItemsByOwner returns every item ever listed by owner, delisted ones
// included, in listing order.
func (e *Engine) ItemsByOwner(owner [20]byte) ([]*Item, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var ids [][]byte
	if err := e.state.KVGetList(ownerItemsKey(owner), &ids); err != nil {
		return nil, err
	}
	items := make([]*Item, 0, len(ids))
	for _, raw := range ids {
		var id [32]byte
		copy(id[:], raw)
		item, ok, err := e.loadItem(id)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, item.Clone())
		}
	}
	return items, nil
}

// BorrowDigest returns the digest the owner of itemID must sign to let
// borrower take the item at its current terms.
func (e *Engine) BorrowDigest(itemID [32]byte, borrower [20]byte) ([32]byte, *Item, error) {
	item, err := e.Item(itemID)
	if err != nil {
		return [32]byte{}, nil, err
	}
	digest, err := BorrowDigest(e.Domain(), BorrowAuthorization{
		ItemID:   item.ID,
		Fee:      item.Fee,
		Deposit:  item.Deposit,
		Nonce:    item.Nonce,
		Borrower: borrower,
	})
	if err != nil {
		return [32]byte{}, nil, err
	}
	return digest, item, nil
}
