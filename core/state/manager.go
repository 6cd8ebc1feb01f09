package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"lendchain/core/types"
	"lendchain/storage"
)

var (
	// ErrTxActive is returned by Begin when a transition is already open.
	ErrTxActive = errors.New("state: transaction already active")
	// ErrNoTx is returned by Commit when no transition is open.
	ErrNoTx = errors.New("state: no active transaction")

	accountPrefix = []byte("account:")
)

// Manager exposes RLP-encoded key/value state and native account balances on
// top of a storage.Database. Writes made between Begin and Commit are held in
// a journal and reach the database in a single batch; Rollback drops them.
type Manager struct {
	mu      sync.RWMutex
	db      storage.Database
	journal map[string]*[]byte
	order   []string
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

// Begin opens a journaled transition.
func (m *Manager) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.journal != nil {
		return ErrTxActive
	}
	m.journal = make(map[string]*[]byte)
	m.order = nil
	return nil
}

// InTransaction reports whether a journaled transition is open.
func (m *Manager) InTransaction() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.journal != nil
}

// Commit flushes the journal to the database atomically.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.journal == nil {
		return ErrNoTx
	}
	batch := storage.NewBatch()
	for _, key := range m.order {
		value := m.journal[key]
		if value == nil {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), *value)
	}
	m.journal = nil
	m.order = nil
	return m.db.Write(batch)
}

// Rollback discards every write made since Begin.
func (m *Manager) Rollback() {
	m.mu.Lock()
	m.journal = nil
	m.order = nil
	m.mu.Unlock()
}

func (m *Manager) rawGet(key []byte) ([]byte, error) {
	m.mu.RLock()
	if m.journal != nil {
		if value, ok := m.journal[string(key)]; ok {
			m.mu.RUnlock()
			if value == nil {
				return nil, nil
			}
			return append([]byte(nil), (*value)...), nil
		}
	}
	m.mu.RUnlock()
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) rawPut(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.journal == nil {
		return m.db.Put(key, value)
	}
	k := string(key)
	if _, seen := m.journal[k]; !seen {
		m.order = append(m.order, k)
	}
	copied := append([]byte(nil), value...)
	m.journal[k] = &copied
	return nil
}

func (m *Manager) rawDelete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.journal == nil {
		return m.db.Delete(key)
	}
	k := string(key)
	if _, seen := m.journal[k]; !seen {
		m.order = append(m.order, k)
	}
	m.journal[k] = nil
	return nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.rawPut(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.rawGet(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.rawDelete(kvKey(key))
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.rawGet(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.rawPut(hashed, encoded)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice to avoid nil
// surprises for callers.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.rawGet(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

type storedAccount struct {
	Balance *big.Int
}

// GetAccount loads the account stored under addr. Unknown addresses yield a
// zero-balance account.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("address must not be empty")
	}
	data, err := m.rawGet(accountKey(addr))
	if err != nil {
		return nil, err
	}
	account := &types.Account{Balance: big.NewInt(0)}
	if len(data) == 0 {
		return account, nil
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	if stored.Balance != nil {
		account.Balance = stored.Balance
	}
	return account, nil
}

// PutAccount persists the account under addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if account == nil {
		return fmt.Errorf("account must not be nil")
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		if account.Balance.Sign() < 0 {
			return fmt.Errorf("account balance must not be negative")
		}
		balance = new(big.Int).Set(account.Balance)
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Balance: balance})
	if err != nil {
		return err
	}
	return m.rawPut(accountKey(addr), encoded)
}
