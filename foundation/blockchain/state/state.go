// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/genesis"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/mempool"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/strategy"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and transaction sharing.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(tx database.SignedTx)
}

// Transport interface represents the behavior required to exchange frames
// with other nodes. Broadcast frames get no reply.
type Transport interface {
	Broadcast(ctx context.Context, peers []peer.Peer, frame []byte) error
	Request(ctx context.Context, pr peer.Peer, frame []byte) ([]byte, error)
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerKey       *ecdsa.PrivateKey
	Host           string
	Genesis        genesis.Genesis
	ChainTree      *database.ChainTree
	SelectStrategy string
	Strategy       strategy.Kind
	Mining         bool
	MineEmpty      bool
	KnownPeers     *peer.PeerSet
	Registry       peer.Registry
	Transport      Transport
	EvHandler      EventHandler
}

// State manages the blockchain database.
type State struct {
	mu sync.RWMutex

	minerKey  *ecdsa.PrivateKey
	minerID   database.AccountID
	host      string
	evHandler EventHandler

	allowMining bool
	mineEmpty   bool
	kind        strategy.Kind
	adv         adversary

	knownPeers *peer.PeerSet
	registry   peer.Registry
	transport  Transport
	genesis    genesis.Genesis
	mempool    *mempool.Mempool
	chain      *database.ChainTree

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.MinerKey == nil {
		return nil, errors.New("miner key is required")
	}

	if cfg.ChainTree == nil {
		return nil, errors.New("chain tree is required")
	}

	kind := cfg.Strategy
	if kind == "" {
		kind = strategy.Honest
	}
	if _, err := strategy.Retrieve(string(kind)); err != nil {
		return nil, err
	}

	selectStrategy := cfg.SelectStrategy
	if selectStrategy == "" {
		selectStrategy = "nonce"
	}

	// Construct a mempool with the specified select strategy.
	mempool, err := mempool.NewWithStrategy(selectStrategy)
	if err != nil {
		return nil, err
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	// Create the State to provide support for managing the blockchain.
	state := State{
		minerKey:  cfg.MinerKey,
		minerID:   database.PublicKeyToAccountID(cfg.MinerKey.PublicKey),
		host:      cfg.Host,
		evHandler: ev,

		allowMining: cfg.Mining,
		mineEmpty:   cfg.MineEmpty,
		kind:        kind,

		knownPeers: knownPeers,
		registry:   cfg.Registry,
		transport:  cfg.Transport,
		genesis:    cfg.ChainTree.Genesis(),
		mempool:    mempool,
		chain:      cfg.ChainTree,

		Worker: nopWorker{},
	}

	// A selfish miner withholds from the start, its private branch begins
	// at the resolved tip.
	if kind == strategy.Selfish {
		tip := state.chain.Resolve().Hash()
		state.adv = adversary{active: true, hiddenTip: tip, publicTip: tip}
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	// Make sure the database file is properly closed.
	return s.chain.Close()
}

// IsMiningAllowed identifies if this node is configured to mine.
func (s *State) IsMiningAllowed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.allowMining
}

// SetMining turns mining on or off.
func (s *State) SetMining(on bool) {
	s.mu.Lock()
	s.allowMining = on
	s.mu.Unlock()

	if on {
		s.Worker.SignalStartMining()
	}
}

// MineEmpty identifies if this node mines blocks when the mempool is empty.
func (s *State) MineEmpty() bool {
	return s.mineEmpty
}

// =============================================================================

// nopWorker is used until a worker registers itself.
type nopWorker struct{}

func (nopWorker) Shutdown()                          {}
func (nopWorker) Sync()                              {}
func (nopWorker) SignalStartMining()                 {}
func (nopWorker) SignalCancelMining() (done func())  { return func() {} }
func (nopWorker) SignalShareTx(tx database.SignedTx) {}
