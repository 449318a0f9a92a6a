// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"sort"
	"sync"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/metrics"
)

// Mempool represents a cache of transactions keyed by signature, which is
// the identity of a signed transaction.
type Mempool struct {
	mu       sync.RWMutex
	pool     map[string]database.SignedTx
	selectFn selector.Func
}

// New constructs a new mempool using the default select strategy.
func New() *Mempool {
	mp, _ := NewWithStrategy(selector.StrategyNonce)
	return mp
}

// NewWithStrategy constructs a new mempool with specified select strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.SignedTx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Contains reports if the transaction is already in the pool.
func (mp *Mempool) Contains(tx database.SignedTx) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[tx.Signature]
	return exists
}

// Upsert adds or replaces a transaction in the mempool. It reports if the
// transaction was new.
func (mp *Mempool) Upsert(tx database.SignedTx) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	_, exists := mp.pool[tx.Signature]
	mp.pool[tx.Signature] = tx
	metrics.MempoolSize.Set(float64(len(mp.pool)))

	return !exists
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.SignedTx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, tx.Signature)
	metrics.MempoolSize.Set(float64(len(mp.pool)))
}

// DeleteAll removes every specified transaction under one lock.
func (mp *Mempool) DeleteAll(txs []database.SignedTx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, tx := range txs {
		delete(mp.pool, tx.Signature)
	}
	metrics.MempoolSize.Set(float64(len(mp.pool)))
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.SignedTx)
	metrics.MempoolSize.Set(0)
}

// Copy returns a snapshot of the pool ordered by sender then nonce.
func (mp *Mempool) Copy() []database.SignedTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.SignedTx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		txs = append(txs, tx)
	}

	sort.Slice(txs, func(i, j int) bool {
		switch {
		case txs[i].FromID != txs[j].FromID:
			return txs[i].FromID < txs[j].FromID
		case txs[i].Nonce != txs[j].Nonce:
			return txs[i].Nonce < txs[j].Nonce
		default:
			return txs[i].Signature < txs[j].Signature
		}
	})

	return txs
}

// PendingFrom returns the transactions in the pool sent by the account.
func (mp *Mempool) PendingFrom(accountID database.AccountID) []database.SignedTx {
	var txs []database.SignedTx
	for _, tx := range mp.Copy() {
		if tx.FromID == accountID {
			txs = append(txs, tx)
		}
	}

	return txs
}

// PickBest uses the configured select strategy to return the next set
// of transactions for the next block. Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []database.SignedTx {

	// Group the transactions by account. Copy orders them so the strategy
	// sees the same input on every call.
	m := make(map[database.AccountID][]database.SignedTx)
	for _, tx := range mp.Copy() {
		m[tx.FromID] = append(m[tx.FromID], tx)
	}

	return mp.selectFn(m, howMany)
}
