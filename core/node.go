package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"lendchain/core/events"
	"lendchain/core/genesis"
	"lendchain/core/state"
	"lendchain/native/arbitration"
	"lendchain/native/bank"
	"lendchain/native/escrow"
	"lendchain/native/reputation"
	"lendchain/observability/metrics"
	"lendchain/storage"
)

// Module names accepted by SetPaused.
const (
	ModuleLedger      = "ledger"
	ModuleArbitration = "arbitration"
)

// Config wires the native engines together.
type Config struct {
	Ledger      escrow.Config
	Arbitration arbitration.Config
	Reputation  reputation.Bounds
	Genesis     []genesis.Entry
}

// Node is the central controller. It owns the state journal and runs every
// ledger and arbitration operation as one atomic transition.
type Node struct {
	mu          sync.Mutex
	db          storage.Database
	state       *state.Manager
	bank        *bank.Bank
	reputation  *reputation.Engine
	ledger      *escrow.Engine
	arbitration *arbitration.Engine
	buffer      *events.Buffer
	logger      *slog.Logger
	metrics     *metrics.LendingMetrics

	subMu       sync.RWMutex
	subscribers []events.Emitter

	pauseMu sync.RWMutex
	paused  map[string]bool
}

type dispatcher struct{ node *Node }

func (d dispatcher) Emit(evt events.Event) {
	d.node.subMu.RLock()
	subs := d.node.subscribers
	d.node.subMu.RUnlock()
	for _, sub := range subs {
		sub.Emit(evt)
	}
}

// NewNode opens the ledger over db, wires the engines to each other and
// applies genesis allocations on first start.
func NewNode(db storage.Database, cfg Config) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	if cfg.Ledger.Address == ([20]byte{}) || cfg.Arbitration.Address == ([20]byte{}) {
		return nil, fmt.Errorf("node: ledger and arbitration addresses required")
	}
	if cfg.Ledger.Arbitration == ([20]byte{}) {
		cfg.Ledger.Arbitration = cfg.Arbitration.Address
	}
	if cfg.Arbitration.Ledger == ([20]byte{}) {
		cfg.Arbitration.Ledger = cfg.Ledger.Address
	}

	manager := state.NewManager(db)
	n := &Node{
		db:      db,
		state:   manager,
		bank:    bank.New(manager),
		logger:  slog.Default().With(slog.String("component", "node")),
		metrics: metrics.Lending(),
		paused:  make(map[string]bool),
	}
	n.buffer = events.NewBuffer(dispatcher{node: n})

	n.reputation = reputation.NewEngine(manager, cfg.Reputation)
	n.reputation.SetEmitter(n.buffer)

	n.ledger = escrow.NewEngine(cfg.Ledger)
	n.ledger.SetState(manager)
	n.ledger.SetBank(n.bank)
	n.ledger.SetReputation(n.reputation)
	n.ledger.SetEmitter(n.buffer)

	n.arbitration = arbitration.NewEngine(cfg.Arbitration)
	n.arbitration.SetState(manager)
	n.arbitration.SetBank(n.bank)
	n.arbitration.SetReputation(n.reputation)
	n.arbitration.SetEmitter(n.buffer)

	n.ledger.SetArbitrator(n.arbitration)
	n.arbitration.SetOutcomeSink(n.ledger)

	if len(cfg.Genesis) > 0 {
		var applied bool
		err := n.apply(context.Background(), "", "genesis", func() error {
			var err error
			applied, err = genesis.Apply(manager, n.bank, cfg.Genesis)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("node: genesis: %w", err)
		}
		if applied {
			n.logger.Info("genesis allocations applied", slog.Int("accounts", len(cfg.Genesis)))
		}
	}
	return n, nil
}

// SetLogger replaces the node logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	n.logger = logger.With(slog.String("component", "node"))
}

// SetNowFunc overrides the clock of both engines. Tests use it to move time.
func (n *Node) SetNowFunc(now func() int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ledger.SetNowFunc(now)
	n.arbitration.SetNowFunc(now)
}

// Subscribe registers an emitter that receives events after their
// transition commits. Subscribers run under the node lock and must not call
// back into the node.
func (n *Node) Subscribe(emitter events.Emitter) {
	if emitter == nil {
		return
	}
	n.subMu.Lock()
	n.subscribers = append(n.subscribers, emitter)
	n.subMu.Unlock()
}

// SetPaused halts or resumes every mutating operation of module.
func (n *Node) SetPaused(module string, paused bool) {
	n.pauseMu.Lock()
	n.paused[module] = paused
	n.pauseMu.Unlock()
	n.logger.Warn("module pause toggled", slog.String("module", module), slog.Bool("paused", paused))
}

// IsPaused implements common.PauseView.
func (n *Node) IsPaused(module string) bool {
	n.pauseMu.RLock()
	defer n.pauseMu.RUnlock()
	return n.paused[module]
}

// Pause toggles module on behalf of caller. The ledger admin controls the
// ledger and the arbitration owner controls arbitration.
func (n *Node) Pause(caller [20]byte, module string, paused bool) error {
	var controller [20]byte
	switch module {
	case ModuleLedger:
		controller = n.ledger.Config().Admin
	case ModuleArbitration:
		params, err := n.ArbitrationParams()
		if err != nil {
			return err
		}
		controller = params.Owner
	default:
		return fmt.Errorf("%w: unknown module %q", escrow.ErrInvalidParam, module)
	}
	if controller == ([20]byte{}) || caller != controller {
		return fmt.Errorf("%w: %x cannot pause %s", escrow.ErrUnauthorized, caller, module)
	}
	n.SetPaused(module, paused)
	return nil
}

// LedgerAddress returns the ledger's escrow account.
func (n *Node) LedgerAddress() [20]byte { return n.ledger.Config().Address }

// Domain returns the borrow authorization domain.
func (n *Node) Domain() escrow.Domain { return n.ledger.Domain() }

// Close releases the underlying database.
func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.db.Close()
}

func (n *Node) publishGauges() {
	if stats, err := n.ledger.Stats(); err == nil {
		n.metrics.SetActive(stats.ActiveLoans, stats.ActiveDisputes)
	}
	if locked, err := n.arbitration.LockedIncentives(); err == nil {
		n.metrics.SetLockedIncentives(locked)
	}
}

// Balance returns the native balance of addr.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bank.Balance(addr)
}

func elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
