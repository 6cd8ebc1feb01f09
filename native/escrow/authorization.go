package escrow

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const (
	// DomainName and DomainVersion identify borrow authorizations.
	DomainName    = "LendLedger"
	DomainVersion = "1"
)

var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	domainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	// Borrow(bytes32 itemId,uint256 fee,uint256 deposit,uint256 nonce,address borrower)
	borrowTypeHash = ethcrypto.Keccak256(
		[]byte("Borrow(bytes32 itemId,uint256 fee,uint256 deposit,uint256 nonce,address borrower)"),
	)
)

// Domain binds a borrow authorization to one ledger instance.
type Domain struct {
	ChainID           *big.Int
	VerifyingContract [20]byte
}

// BorrowAuthorization is the message an item owner signs to let a specific
// borrower take the item at the listed terms.
type BorrowAuthorization struct {
	ItemID   [32]byte
	Fee      *big.Int
	Deposit  *big.Int
	Nonce    uint64
	Borrower [20]byte
}

func word(v *big.Int) ([]byte, error) {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("escrow: negative uint256 value %s", v)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("escrow: value %s overflows uint256", v)
	}
	out := u.Bytes32()
	return out[:], nil
}

// Separator returns keccak256(abi.encode(typeHash, name, version, chainId, verifyingContract)).
func (d Domain) Separator() ([]byte, error) {
	chainID, err := word(d.ChainID)
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256(
		domainTypeHash,
		ethcrypto.Keccak256([]byte(DomainName)),
		ethcrypto.Keccak256([]byte(DomainVersion)),
		chainID,
		common.LeftPadBytes(d.VerifyingContract[:], 32),
	), nil
}

func (a BorrowAuthorization) structHash() ([]byte, error) {
	fee, err := word(a.Fee)
	if err != nil {
		return nil, err
	}
	deposit, err := word(a.Deposit)
	if err != nil {
		return nil, err
	}
	nonce := uint256.NewInt(a.Nonce).Bytes32()
	return ethcrypto.Keccak256(
		borrowTypeHash,
		a.ItemID[:],
		fee,
		deposit,
		nonce[:],
		common.LeftPadBytes(a.Borrower[:], 32),
	), nil
}

// BorrowDigest computes keccak256("\x19\x01" || domainSeparator || structHash).
func BorrowDigest(domain Domain, auth BorrowAuthorization) ([32]byte, error) {
	sep, err := domain.Separator()
	if err != nil {
		return [32]byte{}, err
	}
	hash, err := auth.structHash()
	if err != nil {
		return [32]byte{}, err
	}
	var digest [32]byte
	copy(digest[:], ethcrypto.Keccak256([]byte{0x19, 0x01}, sep, hash))
	return digest, nil
}

// SignBorrow produces a 65-byte r||s||v signature with v in {27,28}.
func SignBorrow(key *ecdsa.PrivateKey, domain Domain, auth BorrowAuthorization) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("escrow: signing key required")
	}
	digest, err := BorrowDigest(domain, auth)
	if err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("escrow: signing: %w", err)
	}
	// go-ethereum returns v in {0,1}; EIP-712 wallets produce {27,28}.
	sig[64] += 27
	return sig, nil
}

// RecoverBorrowSigner returns the address that signed auth. Both {0,1} and
// {27,28} recovery ids are accepted.
func RecoverBorrowSigner(domain Domain, auth BorrowAuthorization, signature []byte) ([20]byte, error) {
	if len(signature) != 65 {
		return [20]byte{}, fmt.Errorf("%w: expected 65 bytes, got %d", ErrInvalidSignature, len(signature))
	}
	sig := append([]byte(nil), signature...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return [20]byte{}, fmt.Errorf("%w: bad recovery id", ErrInvalidSignature)
	}
	digest, err := BorrowDigest(domain, auth)
	if err != nil {
		return [20]byte{}, err
	}
	pub, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
