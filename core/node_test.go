package core

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"lendchain/core/events"
	"lendchain/core/genesis"
	"lendchain/native/arbitration"
	"lendchain/native/common"
	"lendchain/native/escrow"
	"lendchain/native/reputation"
	"lendchain/storage"
)

type fixture struct {
	t        *testing.T
	node     *Node
	rec      *events.Recorder
	ownerKey *ecdsa.PrivateKey
	owner    [20]byte
	borrower [20]byte
	ledger   [20]byte
	arb      [20]byte
	reserve  [20]byte
	admin    [20]byte
	panel    [][20]byte
	now      int64
}

func addr(fill byte) [20]byte {
	var out [20]byte
	copy(out[:], bytes.Repeat([]byte{fill}, 20))
	return out
}

func newFixture(t *testing.T, panel [][20]byte) *fixture {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	f := &fixture{
		t:        t,
		rec:      &events.Recorder{},
		ownerKey: key,
		owner:    ethcrypto.PubkeyToAddress(key.PublicKey),
		borrower: addr(0xB0),
		ledger:   addr(0x1E),
		arb:      addr(0xA7),
		reserve:  addr(0x5E),
		admin:    addr(0xAD),
		panel:    panel,
		now:      1_700_000_000,
	}
	node, err := NewNode(storage.NewMemDB(), Config{
		Ledger: escrow.Config{
			Address:      f.ledger,
			Admin:        f.admin,
			Reserve:      f.reserve,
			IncentivePct: 5,
			ChainID:      big.NewInt(31337),
		},
		Arbitration: arbitration.Config{
			Address:      f.arb,
			Owner:        f.admin,
			Panel:        panel,
			FinalizerPct: arbitration.DefaultFinalizerPct,
		},
		Reputation: reputation.DefaultBounds(),
		Genesis: []genesis.Entry{
			{Address: f.borrower, Balance: big.NewInt(10_000)},
			{Address: f.reserve, Balance: big.NewInt(1_000)},
		},
	})
	require.NoError(t, err)
	node.SetNowFunc(func() int64 { return f.now })
	node.Subscribe(f.rec)
	f.node = node
	return f
}

func (f *fixture) balance(a [20]byte) int64 {
	f.t.Helper()
	bal, err := f.node.Balance(a)
	require.NoError(f.t, err)
	return bal.Int64()
}

func (f *fixture) listAndBorrow() (*escrow.Item, *escrow.LoanTransaction) {
	f.t.Helper()
	ctx := context.Background()
	item, err := f.node.ListItem(ctx, f.owner, [32]byte{}, big.NewInt(100), big.NewInt(1_000), "ipfs://tent", 0)
	require.NoError(f.t, err)
	sig, err := escrow.SignBorrow(f.ownerKey, f.node.Domain(), escrow.BorrowAuthorization{
		ItemID:   item.ID,
		Fee:      item.Fee,
		Deposit:  item.Deposit,
		Nonce:    item.Nonce,
		Borrower: f.borrower,
	})
	require.NoError(f.t, err)
	tx, err := f.node.Borrow(ctx, f.borrower, item.ID, item.Fee, item.Deposit, sig, big.NewInt(1_100))
	require.NoError(f.t, err)
	return item, tx
}

func (f *fixture) total(addrs ...[20]byte) int64 {
	var sum int64
	for _, a := range addrs {
		sum += f.balance(a)
	}
	return sum
}

func TestNodeDisputeFlowEndToEnd(t *testing.T) {
	panel := [][20]byte{addr(0x01), addr(0x02), addr(0x03)}
	f := newFixture(t, panel)
	ctx := context.Background()
	finalizer := addr(0xF1)
	everyone := append([][20]byte{f.owner, f.borrower, f.ledger, f.arb, f.reserve, finalizer}, panel...)
	require.EqualValues(t, 11_000, f.total(everyone...))

	item, tx := f.listAndBorrow()
	require.EqualValues(t, 1_100, f.balance(f.ledger))

	settled, err := f.node.Settle(ctx, f.owner, tx.ID, true)
	require.NoError(t, err)
	require.True(t, settled.Disputed())
	require.EqualValues(t, 100, f.balance(f.owner))
	require.EqualValues(t, 950, f.balance(f.reserve))
	require.EqualValues(t, 50, f.balance(f.arb))

	locked, err := f.node.LockedIncentives()
	require.NoError(t, err)
	require.EqualValues(t, 50, locked.Int64())

	require.NoError(t, f.node.CastVote(ctx, panel[0], tx.ID, true, 70))
	require.NoError(t, f.node.CastVote(ctx, panel[1], tx.ID, true, 50))
	require.NoError(t, f.node.CastVote(ctx, panel[2], tx.ID, false, 0))
	err = f.node.CastVote(ctx, panel[2], tx.ID, true, 10)
	require.ErrorIs(t, err, arbitration.ErrAlreadyVoted)

	dispute, verdict, err := f.node.Finalize(ctx, finalizer, tx.ID)
	require.NoError(t, err)
	require.Equal(t, arbitration.OutcomeOwnerMajority, verdict.Outcome)
	require.EqualValues(t, 600, verdict.Penalty.Int64())
	require.EqualValues(t, 400, verdict.Refund.Int64())
	require.True(t, dispute.Resolved)

	require.EqualValues(t, 700, f.balance(f.owner))
	require.EqualValues(t, 9_300, f.balance(f.borrower))
	require.EqualValues(t, 0, f.balance(f.ledger))
	require.EqualValues(t, 0, f.balance(f.arb))
	require.EqualValues(t, 5, f.balance(finalizer))
	for _, member := range panel {
		require.EqualValues(t, 15, f.balance(member))
	}
	require.EqualValues(t, 11_000, f.total(everyone...))

	final, err := f.node.Transaction(tx.ID)
	require.NoError(t, err)
	require.True(t, final.OutcomeApplied)
	require.EqualValues(t, 600, final.AmountPaidToOwner.Int64())
	require.EqualValues(t, 400, final.AmountRefundedToBorrower.Int64())

	stats, err := f.node.Stats()
	require.NoError(t, err)
	require.Zero(t, stats.ActiveLoans)
	require.Zero(t, stats.ActiveDisputes)

	ownerRep, err := f.node.Reputation(reputation.RoleOwner, f.owner)
	require.NoError(t, err)
	require.EqualValues(t, 101, ownerRep)
	borrowerRep, err := f.node.Reputation(reputation.RoleBorrower, f.borrower)
	require.NoError(t, err)
	require.EqualValues(t, 94, borrowerRep)
	arbRep, err := f.node.Reputation(reputation.RoleArbitrator, panel[0])
	require.NoError(t, err)
	require.EqualValues(t, 1, arbRep)

	relisted, err := f.node.Item(item.ID)
	require.NoError(t, err)
	require.True(t, relisted.Borrowable())

	_, _, err = f.node.Finalize(ctx, finalizer, tx.ID)
	require.ErrorIs(t, err, arbitration.ErrNotActive)

	seen := f.rec.Types()
	require.Contains(t, seen, escrow.EventTypeLoanDisputed)
	require.Contains(t, seen, arbitration.EventTypeDisputeOpened)
	require.Contains(t, seen, arbitration.EventTypeDisputeFinalized)
	require.Contains(t, seen, escrow.EventTypeLoanOutcomeApplied)
	require.Contains(t, seen, reputation.EventTypeReputationAdjusted)
}

func TestNodeFailedDisputeRollsBackSettlement(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, tx := f.listAndBorrow()
	before := len(f.rec.Events())

	_, err := f.node.Settle(ctx, f.owner, tx.ID, true)
	require.ErrorIs(t, err, arbitration.ErrEmptyPanel)

	stored, err := f.node.Transaction(tx.ID)
	require.NoError(t, err)
	require.False(t, stored.Concluded)
	require.False(t, stored.DamageReported)
	require.EqualValues(t, 1_100, f.balance(f.ledger))
	require.EqualValues(t, 0, f.balance(f.owner))
	require.EqualValues(t, 1_000, f.balance(f.reserve))
	require.EqualValues(t, 0, f.balance(f.arb))

	stats, err := f.node.Stats()
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.ActiveLoans)
	require.Zero(t, stats.ActiveDisputes)
	require.Len(t, f.rec.Events(), before, "no events may escape a rolled back transition")

	settled, err := f.node.Settle(ctx, f.owner, tx.ID, false)
	require.NoError(t, err)
	require.True(t, settled.Concluded)
	require.EqualValues(t, 100, f.balance(f.owner))
	require.EqualValues(t, 9_900, f.balance(f.borrower))
}

func TestNodeAmicableSettlementIsTerminal(t *testing.T) {
	f := newFixture(t, [][20]byte{addr(0x01), addr(0x02), addr(0x03)})
	ctx := context.Background()
	_, tx := f.listAndBorrow()

	_, err := f.node.Settle(ctx, f.borrower, tx.ID, false)
	require.NoError(t, err)
	require.EqualValues(t, 100, f.balance(f.owner))
	require.EqualValues(t, 9_900, f.balance(f.borrower))

	_, err = f.node.Settle(ctx, f.owner, tx.ID, true)
	require.ErrorIs(t, err, escrow.ErrAlreadyConcluded)
	require.EqualValues(t, 9_900, f.balance(f.borrower))
}

func TestNodePauseBlocksModule(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.node.SetPaused(ModuleLedger, true)
	_, err := f.node.ListItem(ctx, f.owner, [32]byte{}, big.NewInt(1), big.NewInt(1), "ipfs://x", 0)
	if !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if !f.node.IsPaused(ModuleLedger) || f.node.IsPaused(ModuleArbitration) {
		t.Fatalf("unexpected pause state")
	}
	f.node.SetPaused(ModuleLedger, false)
	if _, err := f.node.ListItem(ctx, f.owner, [32]byte{}, big.NewInt(1), big.NewInt(1), "ipfs://x", 0); err != nil {
		t.Fatalf("list after resume: %v", err)
	}
}

func TestNodePauseRequiresController(t *testing.T) {
	f := newFixture(t, nil)
	err := f.node.Pause(f.owner, ModuleLedger, true)
	require.ErrorIs(t, err, escrow.ErrUnauthorized)
	require.False(t, f.node.IsPaused(ModuleLedger))

	require.NoError(t, f.node.Pause(f.admin, ModuleLedger, true))
	require.True(t, f.node.IsPaused(ModuleLedger))
	require.NoError(t, f.node.Pause(f.admin, ModuleArbitration, true))
	require.True(t, f.node.IsPaused(ModuleArbitration))

	require.ErrorIs(t, f.node.Pause(f.admin, "bank", true), escrow.ErrInvalidParam)
}

func TestNodeRepointRequiresWiredPeer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.ErrorIs(t, f.node.SetArbitration(ctx, f.admin, addr(0xA8)), escrow.ErrInvalidParam)
	require.ErrorIs(t, f.node.SetLedger(ctx, f.admin, addr(0x2E)), arbitration.ErrInvalidParam)

	require.NoError(t, f.node.SetArbitration(ctx, f.admin, f.arb))
	require.NoError(t, f.node.SetLedger(ctx, f.admin, f.ledger))
	arb, err := f.node.ledger.Arbitration()
	require.NoError(t, err)
	require.Equal(t, f.arb, arb)
}

func TestNodeGenesisAppliedOnce(t *testing.T) {
	db := storage.NewMemDB()
	cfg := Config{
		Ledger:      escrow.Config{Address: addr(0x1E), Reserve: addr(0x5E)},
		Arbitration: arbitration.Config{Address: addr(0xA7)},
		Genesis:     []genesis.Entry{{Address: addr(0x5E), Balance: big.NewInt(500)}},
	}
	first, err := NewNode(db, cfg)
	require.NoError(t, err)
	second, err := NewNode(db, cfg)
	require.NoError(t, err)
	bal, err := second.Balance(addr(0x5E))
	require.NoError(t, err)
	require.EqualValues(t, 500, bal.Int64())
	_ = first
}

func TestNodeRequiresAddresses(t *testing.T) {
	if _, err := NewNode(storage.NewMemDB(), Config{}); err == nil {
		t.Fatalf("expected error without addresses")
	}
	if _, err := NewNode(nil, Config{}); err == nil {
		t.Fatalf("expected error without database")
	}
}
