package core

import (
	"context"
	"math/big"

	"lendchain/native/escrow"
)

// ListItem lists or relists an item owned by caller.
func (n *Node) ListItem(ctx context.Context, caller [20]byte, itemID [32]byte, fee, deposit *big.Int, metadataRef string, minRep int64) (*escrow.Item, error) {
	var item *escrow.Item
	err := n.apply(ctx, ModuleLedger, "list_item", func() error {
		var err error
		item, err = n.ledger.ListItem(caller, itemID, fee, deposit, metadataRef, minRep)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem changes the terms of an existing listing.
func (n *Node) UpdateItem(ctx context.Context, caller [20]byte, itemID [32]byte, fee, deposit *big.Int, metadataRef string, minRep int64) (*escrow.Item, error) {
	var item *escrow.Item
	err := n.apply(ctx, ModuleLedger, "update_item", func() error {
		var err error
		item, err = n.ledger.UpdateItem(caller, itemID, fee, deposit, metadataRef, minRep)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DelistItem withdraws a listing.
func (n *Node) DelistItem(ctx context.Context, caller [20]byte, itemID [32]byte) (*escrow.Item, error) {
	var item *escrow.Item
	err := n.apply(ctx, ModuleLedger, "delist_item", func() error {
		var err error
		item, err = n.ledger.DelistItem(caller, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Borrow opens a loan. value is what caller attaches and must equal fee plus
// deposit.
func (n *Node) Borrow(ctx context.Context, caller [20]byte, itemID [32]byte, fee, deposit *big.Int, signature []byte, value *big.Int) (*escrow.LoanTransaction, error) {
	var tx *escrow.LoanTransaction
	err := n.apply(ctx, ModuleLedger, "borrow", func() error {
		var err error
		tx, err = n.ledger.Borrow(caller, itemID, fee, deposit, signature, value)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.IncBorrowed()
	return tx, nil
}

// Settle concludes a loan. A damage report on a deposited loan opens a
// dispute in the same transition; if the arbitration side refuses it the
// whole settlement rolls back.
func (n *Node) Settle(ctx context.Context, caller [20]byte, txID uint64, damageReported bool) (*escrow.LoanTransaction, error) {
	var tx *escrow.LoanTransaction
	err := n.apply(ctx, ModuleLedger, "settle", func() error {
		var err error
		tx, err = n.ledger.Settle(caller, txID, damageReported)
		return err
	})
	if err != nil {
		return nil, err
	}
	switch {
	case tx.Disputed():
		n.metrics.IncSettled("disputed")
		n.metrics.IncDisputeOpened()
	case tx.DamageReported:
		n.metrics.IncSettled("undeposited")
	default:
		n.metrics.IncSettled("amicable")
	}
	return tx, nil
}

// SetArbitration repoints the trusted arbitration identity of the ledger.
func (n *Node) SetArbitration(ctx context.Context, caller, addr [20]byte) error {
	return n.apply(ctx, ModuleLedger, "set_arbitration", func() error {
		return n.ledger.SetArbitration(caller, addr)
	})
}

// Item returns a listing.
func (n *Node) Item(id [32]byte) (*escrow.Item, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Item(id)
}

// ItemsByOwner returns every listing created by owner.
func (n *Node) ItemsByOwner(owner [20]byte) ([]*escrow.Item, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.ItemsByOwner(owner)
}

// Transaction returns a loan.
func (n *Node) Transaction(id uint64) (*escrow.LoanTransaction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Transaction(id)
}

// Stats returns the ledger counters.
func (n *Node) Stats() (*escrow.Stats, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Stats()
}

// BorrowDigest returns the digest an item owner signs to authorize borrower.
func (n *Node) BorrowDigest(itemID [32]byte, borrower [20]byte) ([32]byte, *escrow.Item, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.BorrowDigest(itemID, borrower)
}

// Arbitration returns the ledger's current trusted arbitration identity.
func (n *Node) Arbitration() ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Arbitration()
}
