package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lendchain/core/types"
	"lendchain/crypto"
	"lendchain/indexer"
	"lendchain/native/escrow"
	"lendchain/rpc"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func withPassphrase(t *testing.T, value string) {
	t.Helper()
	original := passphraseFrom
	passphraseFrom = func(string) func() (string, error) {
		return func() (string, error) { return value, nil }
	}
	t.Cleanup(func() { passphraseFrom = original })
}

func withRPC(t *testing.T, fn func(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error)) {
	t.Helper()
	original := rpcCall
	rpcCall = fn
	t.Cleanup(func() { rpcCall = original })
}

func TestUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "frobnicate")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Unknown command: frobnicate")
}

func TestGlobalFlagsAreStripped(t *testing.T) {
	origEndpoint, origToken := rpcEndpoint, rpcAuthToken
	defer func() { rpcEndpoint, rpcAuthToken = origEndpoint, origToken }()

	rest, err := applyGlobalFlags([]string{"--rpc", "http://node/rpc", "call", "--token=abc", "lend_getStats"})
	require.NoError(t, err)
	require.Equal(t, []string{"call", "lend_getStats"}, rest)
	require.Equal(t, "http://node/rpc", rpcEndpoint)
	require.Equal(t, "abc", rpcAuthToken)

	_, err = applyGlobalFlags([]string{"--rpc"})
	require.Error(t, err)
}

func TestGenerateKeyAndAddress(t *testing.T) {
	withPassphrase(t, "correct horse")
	path := filepath.Join(t.TempDir(), "owner.json")

	code, stdout, stderr := runCLI(t, "generate-key", "--out", path, "--light")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "Address: lend1")

	code, _, stderr = runCLI(t, "generate-key", "--out", path, "--light")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "already exists")

	code, addrOut, stderr := runCLI(t, "address", "--key", path)
	require.Equal(t, 0, code, stderr)
	lines := strings.Split(strings.TrimSpace(addrOut), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, stdout, lines[0])
}

func TestTokenIsAcceptedByAuthenticator(t *testing.T) {
	const secret = "cli-test-secret-cli-test-secret!"
	t.Setenv(EnvJWTSecret, secret)
	caller := crypto.FromBytes([20]byte{0xAB})

	code, stdout, stderr := runCLI(t, "token", "--caller", caller.String(), "--issuer", "lendchain")
	require.Equal(t, 0, code, stderr)

	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(stdout))
	got, err := rpc.NewAuthenticator(secret, "lendchain").Caller(req)
	require.NoError(t, err)
	require.Equal(t, caller.Array(), got)
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")
	code, _, stderr := runCLI(t, "token", "--caller", crypto.FromBytes([20]byte{1}).String())
	require.Equal(t, 1, code)
	require.Contains(t, stderr, EnvJWTSecret)
}

func TestSignBorrowUsesNodeTerms(t *testing.T) {
	withPassphrase(t, "pw")
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "owner.json")
	require.NoError(t, crypto.SaveKeystore(keyPath, key, "pw", crypto.LightKeystore))

	itemID := [32]byte{0x42}
	borrower := [20]byte{0xB0}
	domain := escrow.Domain{ChainID: big.NewInt(31337), VerifyingContract: [20]byte{0x1E}}
	auth := escrow.BorrowAuthorization{ItemID: itemID, Fee: big.NewInt(100), Deposit: big.NewInt(1000), Nonce: 3, Borrower: borrower}
	digest, err := escrow.BorrowDigest(domain, auth)
	require.NoError(t, err)

	withRPC(t, func(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		require.Equal(t, "lend_borrowDigest", method)
		require.False(t, requireAuth)
		return json.RawMessage(`{
			"digest": "0x` + hex.EncodeToString(digest[:]) + `",
			"itemId": "0x` + hex.EncodeToString(itemID[:]) + `",
			"fee": "100", "deposit": "1000", "nonce": 3,
			"borrower": "` + crypto.FromBytes(borrower).String() + `",
			"chainId": "31337",
			"verifyingContract": "0x` + hex.EncodeToString(domain.VerifyingContract[:]) + `"
		}`), nil, nil
	})

	code, stdout, stderr := runCLI(t, "sign-borrow", "--key", keyPath,
		"--item", "0x"+hex.EncodeToString(itemID[:]),
		"--borrower", crypto.FromBytes(borrower).String())
	require.Equal(t, 0, code, stderr)

	var out signedBorrow
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	sig, err := hex.DecodeString(strings.TrimPrefix(out.Signature, "0x"))
	require.NoError(t, err)
	signer, err := escrow.RecoverBorrowSigner(domain, auth, sig)
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address().Array(), signer)
}

func TestSignBorrowRefusesMismatchedDigest(t *testing.T) {
	withPassphrase(t, "pw")
	withRPC(t, func(string, interface{}, bool) (json.RawMessage, *rpcError, error) {
		return json.RawMessage(`{"digest":"0x` + strings.Repeat("00", 32) + `","fee":"1","deposit":"1","nonce":1,"chainId":"1","verifyingContract":"0x` + strings.Repeat("11", 20) + `"}`), nil, nil
	})
	code, _, stderr := runCLI(t, "sign-borrow", "--key", "unused.json",
		"--item", "0x"+strings.Repeat("22", 32),
		"--borrower", crypto.FromBytes([20]byte{9}).String())
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "refusing to sign")
}

func TestSignBorrowValidatesItem(t *testing.T) {
	withRPC(t, func(method string, _ interface{}, _ bool) (json.RawMessage, *rpcError, error) {
		t.Fatalf("unexpected RPC call for method %s", method)
		return nil, nil, nil
	})
	code, _, stderr := runCLI(t, "sign-borrow", "--item", "0x1234", "--borrower", crypto.FromBytes([20]byte{9}).String())
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "32-byte hex")
}

func TestCallSendsBearerForMutatingMethods(t *testing.T) {
	var gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotMethod = req.Method
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))
	}))
	defer srv.Close()

	origEndpoint, origToken := rpcEndpoint, rpcAuthToken
	defer func() { rpcEndpoint, rpcAuthToken = origEndpoint, origToken }()
	rpcEndpoint = srv.URL
	rpcAuthToken = ""

	code, _, stderr := runCLI(t, "call", "lend_settle", `{"transactionId":1}`)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "requires a bearer token")

	code, stdout, stderr := runCLI(t, "--token", "tok", "call", "lend_settle", `{"transactionId":1}`)
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "lend_settle", gotMethod)
	require.Contains(t, stdout, `"ok": true`)
}

func TestCallReportsDialErrors(t *testing.T) {
	origEndpoint := rpcEndpoint
	rpcEndpoint = "http://test.invalid/rpc"
	defer func() { rpcEndpoint = origEndpoint }()

	originalClient := http.DefaultClient
	http.DefaultClient = &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused (test stub)")
	})}
	defer func() { http.DefaultClient = originalClient }()

	code, _, stderr := runCLI(t, "call", "lend_getStats")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "POST http://test.invalid/rpc")
	require.Contains(t, stderr, "connection refused (test stub)")
}

func TestExportWritesCSV(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "events.db")
	store, err := indexer.Open(dsn)
	require.NoError(t, err)
	store.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0).UTC() })
	ctx := context.Background()
	_, err = store.Append(ctx, &types.Event{Type: "escrow.loan.created", Attributes: map[string]string{"transactionId": "1"}})
	require.NoError(t, err)
	_, err = store.Append(ctx, &types.Event{Type: "escrow.loan.settled", Attributes: map[string]string{"transactionId": "1"}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	code, stdout, stderr := runCLI(t, "export", "--dsn", dsn, "--format", "csv", "--type", "escrow.loan.settled")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stderr, "exported 1 events")
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "sequence,type"))
	require.Contains(t, lines[1], "escrow.loan.settled")
}
