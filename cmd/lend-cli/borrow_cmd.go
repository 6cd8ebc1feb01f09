package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"

	"lendchain/crypto"
	"lendchain/native/escrow"
)

type borrowDigest struct {
	Digest            string `json:"digest"`
	ItemID            string `json:"itemId"`
	Fee               string `json:"fee"`
	Deposit           string `json:"deposit"`
	Nonce             uint64 `json:"nonce"`
	Borrower          string `json:"borrower"`
	ChainID           string `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

type signedBorrow struct {
	ItemID    string `json:"itemId"`
	Borrower  string `json:"borrower"`
	Fee       string `json:"fee"`
	Deposit   string `json:"deposit"`
	Nonce     uint64 `json:"nonce"`
	Digest    string `json:"digest"`
	Signature string `json:"signature"`
}

func parseItemID(value string) ([32]byte, error) {
	var id [32]byte
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return id, fmt.Errorf("--item must be a 0x-prefixed 32-byte hex string")
	}
	raw, err := hex.DecodeString(trimmed[2:])
	if err != nil || len(raw) != len(id) {
		return id, fmt.Errorf("--item must be a 0x-prefixed 32-byte hex string")
	}
	copy(id[:], raw)
	return id, nil
}

func parseDecimal(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative decimal integer", field)
	}
	return amount, nil
}

// fetchBorrowTerms asks the node for the current terms and domain of an item.
func fetchBorrowTerms(itemID [32]byte, borrower [20]byte) (escrow.Domain, escrow.BorrowAuthorization, [32]byte, error) {
	var (
		domain escrow.Domain
		auth   escrow.BorrowAuthorization
		digest [32]byte
	)
	params := map[string]interface{}{
		"itemId":   "0x" + hex.EncodeToString(itemID[:]),
		"borrower": crypto.FromBytes(borrower).String(),
	}
	result, rpcErr, err := rpcCall("lend_borrowDigest", params, false)
	if err != nil {
		return domain, auth, digest, err
	}
	if rpcErr != nil {
		return domain, auth, digest, fmt.Errorf("lend_borrowDigest: %d %s", rpcErr.Code, rpcErr.Message)
	}
	var resp borrowDigest
	if err := json.Unmarshal(result, &resp); err != nil {
		return domain, auth, digest, fmt.Errorf("decode lend_borrowDigest: %w", err)
	}
	fee, err := parseDecimal("fee", resp.Fee)
	if err != nil {
		return domain, auth, digest, err
	}
	deposit, err := parseDecimal("deposit", resp.Deposit)
	if err != nil {
		return domain, auth, digest, err
	}
	chainID, err := parseDecimal("chainId", resp.ChainID)
	if err != nil {
		return domain, auth, digest, err
	}
	contract, err := crypto.ParseAddress(resp.VerifyingContract)
	if err != nil {
		return domain, auth, digest, err
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(resp.Digest, "0x"))
	if err != nil || len(raw) != len(digest) {
		return domain, auth, digest, fmt.Errorf("node returned malformed digest %q", resp.Digest)
	}
	copy(digest[:], raw)
	domain = escrow.Domain{ChainID: chainID, VerifyingContract: contract}
	auth = escrow.BorrowAuthorization{ItemID: itemID, Fee: fee, Deposit: deposit, Nonce: resp.Nonce, Borrower: borrower}
	return domain, auth, digest, nil
}

func runSignBorrow(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("sign-borrow", stderr)
	var (
		keyPath  string
		item     string
		borrower string
		offline  bool
		fee      string
		deposit  string
		nonce    uint64
		chainID  string
		contract string
	)
	fs.StringVar(&keyPath, "key", "", "owner keystore path")
	fs.StringVar(&item, "item", "", "item identifier")
	fs.StringVar(&borrower, "borrower", "", "borrower address")
	fs.BoolVar(&offline, "offline", false, "sign the terms given on the command line without asking the node")
	fs.StringVar(&fee, "fee", "", "fee (offline)")
	fs.StringVar(&deposit, "deposit", "", "deposit (offline)")
	fs.Uint64Var(&nonce, "nonce", 0, "item nonce (offline)")
	fs.StringVar(&chainID, "chain-id", "", "chain id (offline)")
	fs.StringVar(&contract, "contract", "", "ledger address (offline)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		return printError(stderr, "unexpected positional arguments")
	}
	itemID, err := parseItemID(item)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if strings.TrimSpace(borrower) == "" {
		return printError(stderr, "--borrower is required")
	}
	borrowerAddr, err := crypto.ParseAddress(borrower)
	if err != nil {
		return printError(stderr, err.Error())
	}

	var (
		domain escrow.Domain
		auth   escrow.BorrowAuthorization
		remote *[32]byte
	)
	if offline {
		feeVal, err := parseDecimal("--fee", fee)
		if err != nil {
			return printError(stderr, err.Error())
		}
		depositVal, err := parseDecimal("--deposit", deposit)
		if err != nil {
			return printError(stderr, err.Error())
		}
		chain, err := parseDecimal("--chain-id", chainID)
		if err != nil {
			return printError(stderr, err.Error())
		}
		verifying, err := crypto.ParseAddress(contract)
		if err != nil {
			return printError(stderr, "--contract: "+err.Error())
		}
		domain = escrow.Domain{ChainID: chain, VerifyingContract: verifying}
		auth = escrow.BorrowAuthorization{ItemID: itemID, Fee: feeVal, Deposit: depositVal, Nonce: nonce, Borrower: borrowerAddr}
	} else {
		var digest [32]byte
		domain, auth, digest, err = fetchBorrowTerms(itemID, borrowerAddr)
		if err != nil {
			return printError(stderr, err.Error())
		}
		remote = &digest
	}

	digest, err := escrow.BorrowDigest(domain, auth)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if remote != nil && *remote != digest {
		return printError(stderr, "node digest does not match the locally computed digest; refusing to sign")
	}
	key, err := loadKey(keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	sig, err := escrow.SignBorrow(key.PrivateKey, domain, auth)
	if err != nil {
		return printError(stderr, err.Error())
	}
	out := signedBorrow{
		ItemID:    "0x" + hex.EncodeToString(itemID[:]),
		Borrower:  crypto.FromBytes(borrowerAddr).String(),
		Fee:       auth.Fee.String(),
		Deposit:   auth.Deposit.String(),
		Nonce:     auth.Nonce,
		Digest:    "0x" + hex.EncodeToString(digest[:]),
		Signature: "0x" + hex.EncodeToString(sig),
	}
	if err := writeJSON(stdout, out); err != nil {
		return printError(stderr, err.Error())
	}
	return 0
}
