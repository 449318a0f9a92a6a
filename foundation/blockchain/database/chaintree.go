package database

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/genesis"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/merkle"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/metrics"
	lru "github.com/hashicorp/golang-lru"
)

// defaultCacheSize is the number of branch replays kept in memory.
const defaultCacheSize = 128

// chainNode is an entry in the arena. The parent is a key into the arena and
// the children are owned by the tree.
type chainNode struct {
	block    Block
	hash     string
	parent   string
	children []string
}

// ledger is the result of replaying a branch.
type ledger struct {
	balances map[AccountID]int64
	nonces   map[AccountID]int64
}

// Config represents the configuration required to construct a chain tree.
type Config struct {
	Genesis    genesis.Genesis
	Serializer Serializer
	CacheSize  int
	EvHandler  func(v string, args ...any)
}

// ChainTree maintains every known block as a tree rooted at genesis. The set
// of tips, nodes without children, is the frontier of all coexisting forks.
// Exported methods take the lock, unexported helpers expect it to be held.
type ChainTree struct {
	mu sync.RWMutex

	genesis     genesis.Genesis
	genesisHash string
	nodes       map[string]*chainNode
	tips        map[string]struct{}
	cache       *lru.Cache
	serializer  Serializer
	evHandler   func(v string, args ...any)
}

// NewChainTree constructs a tree holding the genesis block and replays any
// blocks already persisted by the serializer.
func NewChainTree(cfg Config) (*ChainTree, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}

	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("balance cache: %w", err)
	}

	gb := GenesisBlock(cfg.Genesis)
	gHash := gb.Hash()

	ct := ChainTree{
		genesis:     cfg.Genesis,
		genesisHash: gHash,
		nodes:       map[string]*chainNode{gHash: {block: gb, hash: gHash}},
		tips:        map[string]struct{}{gHash: {}},
		cache:       cache,
		serializer:  cfg.Serializer,
		evHandler:   ev,
	}

	if cfg.Serializer == nil {
		return &ct, nil
	}

	// Read all the blocks from storage. The iterator hands out parents
	// before children so each block links on arrival.
	var replayed int
	iter := cfg.Serializer.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		if _, exists := ct.nodes[blockData.Hash]; exists {
			continue
		}

		block, err := ToBlock(blockData)
		if err != nil {
			return nil, err
		}

		if _, err := ct.insert(block, blockData.Hash, false); err != nil {
			return nil, fmt.Errorf("replaying block %s: %w", short(blockData.Hash), err)
		}

		replayed++
	}

	metrics.BlocksAccepted.WithLabelValues("storage").Add(float64(replayed))
	ev("database: NewChainTree: replayed[%d]: tips[%d]", replayed, len(ct.tips))

	return &ct, nil
}

// Close releases the serializer.
func (ct *ChainTree) Close() error {
	if ct.serializer == nil {
		return nil
	}

	return ct.serializer.Close()
}

// Genesis returns the genesis settings for this chain.
func (ct *ChainTree) Genesis() genesis.Genesis {
	return ct.genesis
}

// GenesisBlock returns the root of the tree.
func (ct *ChainTree) GenesisBlock() Block {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	return ct.nodes[ct.genesisHash].block
}

// =============================================================================

// Add inserts the block after checking the proof is its hash, the proof is
// below the target, the parent is known and the merkle root matches. A block
// may extend any known node, not only a tip. The returned block carries its
// height. Every failure wraps ErrChainInsertion.
func (ct *ChainTree) Add(block Block, proof string) (Block, error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	return ct.insert(block, proof, true)
}

// insert performs the checks and the linking for Add.
func (ct *ChainTree) insert(block Block, proof string, persist bool) (Block, error) {
	hash := block.Hash()

	if _, exists := ct.nodes[hash]; exists {
		return Block{}, fmt.Errorf("%w: block %s already known", ErrChainInsertion, short(hash))
	}

	if proof != hash {
		return Block{}, fmt.Errorf("%w: proof %s does not match hash %s", ErrChainInsertion, short(proof), short(hash))
	}

	if !IsHashSolved(ct.genesis.Target, proof) {
		return Block{}, fmt.Errorf("%w: proof %s is not below the target", ErrChainInsertion, short(proof))
	}

	parent, exists := ct.nodes[block.Header.PrevBlockHash]
	if !exists {
		return Block{}, fmt.Errorf("%w: parent %s unknown", ErrChainInsertion, short(block.Header.PrevBlockHash))
	}

	if err := block.ValidateRoot(); err != nil {
		return Block{}, fmt.Errorf("%w: %s", ErrChainInsertion, err)
	}

	block.Number = parent.block.Number + 1

	if persist && ct.serializer != nil {
		if err := ct.serializer.Write(NewBlockData(block)); err != nil {
			return Block{}, fmt.Errorf("persisting block %s: %w", short(hash), err)
		}
	}

	before := ct.resolve()

	ct.nodes[hash] = &chainNode{
		block:  block,
		hash:   hash,
		parent: parent.hash,
	}
	parent.children = append(parent.children, hash)

	delete(ct.tips, parent.hash)
	ct.tips[hash] = struct{}{}

	after := ct.resolve()
	if after.hash != before.hash && after.parent != before.hash {
		depth := before.block.Number - ct.ancestor(before.hash, after.hash).block.Number
		metrics.Reorgs.Inc()
		metrics.ReorgDepth.Observe(float64(depth))
		ct.evHandler("database: Add: REORG: from[%s] to[%s] depth[%d]", short(before.hash), short(after.hash), depth)
	}

	metrics.ChainHeight.Set(float64(after.block.Number))
	metrics.ChainTips.Set(float64(len(ct.tips)))

	return block, nil
}

// ancestor finds the deepest node shared by the two branches.
func (ct *ChainTree) ancestor(a string, b string) *chainNode {
	seen := make(map[string]struct{})
	for n := ct.nodes[a]; n != nil; n = ct.nodes[n.parent] {
		seen[n.hash] = struct{}{}
	}

	for n := ct.nodes[b]; n != nil; n = ct.nodes[n.parent] {
		if _, exists := seen[n.hash]; exists {
			return n
		}
	}

	return ct.nodes[ct.genesisHash]
}

// =============================================================================

// Resolve returns the tip with the greatest height. Tips of equal height are
// ordered by the lowest hash so every node picks the same one.
func (ct *ChainTree) Resolve() Block {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	return ct.resolve().block
}

func (ct *ChainTree) resolve() *chainNode {
	var best *chainNode
	for hash := range ct.tips {
		n := ct.nodes[hash]
		switch {
		case best == nil:
			best = n
		case n.block.Number > best.block.Number:
			best = n
		case n.block.Number == best.block.Number && n.hash < best.hash:
			best = n
		}
	}

	return best
}

// Tips returns every tip ordered by height, tallest first, then by hash.
func (ct *ChainTree) Tips() []Block {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	nodes := make([]*chainNode, 0, len(ct.tips))
	for hash := range ct.tips {
		nodes = append(nodes, ct.nodes[hash])
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].block.Number != nodes[j].block.Number {
			return nodes[i].block.Number > nodes[j].block.Number
		}
		return nodes[i].hash < nodes[j].hash
	})

	blocks := make([]Block, len(nodes))
	for i, n := range nodes {
		blocks[i] = n.block
	}

	return blocks
}

// ChainFrom returns the blocks of the branch ending at the specified tip,
// genesis first. An empty tip means the resolved tip.
func (ct *ChainTree) ChainFrom(tip string) ([]Block, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	nodes, err := ct.branch(tip)
	if err != nil {
		return nil, err
	}

	blocks := make([]Block, len(nodes))
	for i, n := range nodes {
		blocks[i] = n.block
	}

	return blocks, nil
}

// branch walks from the tip back to genesis and returns the nodes genesis
// first.
func (ct *ChainTree) branch(tip string) ([]*chainNode, error) {
	n, err := ct.node(tip)
	if err != nil {
		return nil, err
	}

	nodes := make([]*chainNode, n.block.Number+1)
	for ; n != nil; n = ct.nodes[n.parent] {
		nodes[n.block.Number] = n
	}

	return nodes, nil
}

// node returns the node for the hash, or the resolved tip for an empty hash.
func (ct *ChainTree) node(hash string) (*chainNode, error) {
	if hash == "" {
		return ct.resolve(), nil
	}

	n, exists := ct.nodes[hash]
	if !exists {
		return nil, fmt.Errorf("block %s: %w", short(hash), ErrNotFound)
	}

	return n, nil
}

// =============================================================================

// Balances replays the branch ending at the specified tip and returns the
// balance of every account that appears on it. An empty tip means the
// resolved tip. The result is a copy the caller owns.
func (ct *ChainTree) Balances(tip string) (map[AccountID]int64, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	l, err := ct.ledger(tip)
	if err != nil {
		return nil, err
	}

	return maps.Clone(l.balances), nil
}

// NonceOf returns the highest nonce the account used on the branch ending at
// the specified tip, or -1 if it never sent a transaction there.
func (ct *ChainTree) NonceOf(accountID AccountID, tip string) (int64, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	l, err := ct.ledger(tip)
	if err != nil {
		return 0, err
	}

	return nonceOf(l.nonces, accountID), nil
}

// ledger returns the replay of the branch, from the cache when possible.
// Blocks never change once inserted so a replay keyed by tip hash never goes
// stale.
func (ct *ChainTree) ledger(tip string) (ledger, error) {
	n, err := ct.node(tip)
	if err != nil {
		return ledger{}, err
	}

	if v, ok := ct.cache.Get(n.hash); ok {
		metrics.BalanceCache.WithLabelValues("hit").Inc()
		return v.(ledger), nil
	}
	metrics.BalanceCache.WithLabelValues("miss").Inc()

	l := ledger{
		balances: make(map[AccountID]int64),
		nonces:   make(map[AccountID]int64),
	}

	// Start from the closest cached ancestor when there is one.
	var path []*chainNode
	for cur := n; cur != nil; cur = ct.nodes[cur.parent] {
		if v, ok := ct.cache.Get(cur.hash); ok {
			base := v.(ledger)
			l.balances = maps.Clone(base.balances)
			l.nonces = maps.Clone(base.nonces)
			break
		}
		path = append(path, cur)
	}

	for i := len(path) - 1; i >= 0; i-- {
		ct.apply(l, path[i].block)
	}

	ct.cache.Add(n.hash, l)

	return l, nil
}

// apply credits the miner reward and applies every transaction of the block.
// The genesis block carries neither.
func (ct *ChainTree) apply(l ledger, block Block) {
	if block.Number == 0 {
		return
	}

	l.balances[block.MinerID] += int64(ct.genesis.MiningReward)

	for _, tx := range block.Values() {
		l.balances[tx.FromID] -= int64(tx.Value)
		l.balances[tx.ToID] += int64(tx.Value)

		if int64(tx.Nonce) > nonceOf(l.nonces, tx.FromID) {
			l.nonces[tx.FromID] = int64(tx.Nonce)
		}
	}
}

func nonceOf(nonces map[AccountID]int64, accountID AccountID) int64 {
	nonce, exists := nonces[accountID]
	if !exists {
		return -1
	}

	return nonce
}

// =============================================================================

// ValidateTransactions replays the batch as a block mined by the specified
// miner on top of the parent. Every signature must verify, every nonce must be
// greater than the sender's high-water mark and no sender balance may go below
// zero at any point in the batch once the reward has been credited.
func (ct *ChainTree) ValidateTransactions(parent string, minerID AccountID, txs []SignedTx) error {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	base, err := ct.ledger(parent)
	if err != nil {
		return err
	}

	balances := maps.Clone(base.balances)
	nonces := maps.Clone(base.nonces)
	balances[minerID] += int64(ct.genesis.MiningReward)

	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("tx %s: %w", tx, err)
		}

		if high := nonceOf(nonces, tx.FromID); int64(tx.Nonce) <= high {
			return fmt.Errorf("tx %s: nonce %d, high-water %d: %w", tx, tx.Nonce, high, ErrReplay)
		}
		nonces[tx.FromID] = int64(tx.Nonce)

		// A sender may only spend what it holds at this point in the batch.
		balances[tx.FromID] -= int64(tx.Value)
		if balance := balances[tx.FromID]; balance < 0 {
			return fmt.Errorf("tx %s: account %s balance %d: %w", tx, tx.FromID.Short(), balance, ErrBalanceInfeasible)
		}
		balances[tx.ToID] += int64(tx.Value)
	}

	return nil
}

// SelectTransactions walks the candidates in order and keeps every
// transaction that can be added to a block mined on the parent without
// breaking the ledger rules. Candidates whose nonce is already used on the
// parent branch can never be mined there and are returned as stale. Others
// that do not fit are left out and may fit a later block.
func (ct *ChainTree) SelectTransactions(parent string, minerID AccountID, candidates []SignedTx, max int) (selected []SignedTx, stale []SignedTx, err error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	base, err := ct.ledger(parent)
	if err != nil {
		return nil, nil, err
	}

	balances := maps.Clone(base.balances)
	nonces := maps.Clone(base.nonces)
	balances[minerID] += int64(ct.genesis.MiningReward)

	for _, tx := range candidates {
		if max > 0 && len(selected) == max {
			break
		}

		if err := tx.Validate(); err != nil {
			stale = append(stale, tx)
			continue
		}

		if int64(tx.Nonce) <= nonceOf(base.nonces, tx.FromID) {
			stale = append(stale, tx)
			continue
		}

		if int64(tx.Nonce) <= nonceOf(nonces, tx.FromID) {
			continue
		}

		if balances[tx.FromID] < int64(tx.Value) {
			continue
		}

		balances[tx.FromID] -= int64(tx.Value)
		balances[tx.ToID] += int64(tx.Value)
		nonces[tx.FromID] = int64(tx.Nonce)

		selected = append(selected, tx)
	}

	return selected, stale, nil
}

// =============================================================================

// ProofForTransaction walks the branch ending at the tip back toward genesis
// and returns the merkle proof for the transaction with the block holding it.
func (ct *ChainTree) ProofForTransaction(tx SignedTx, tip string) ([]merkle.ProofStep, Block, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	n, err := ct.node(tip)
	if err != nil {
		return nil, Block{}, err
	}

	for ; n != nil; n = ct.nodes[n.parent] {
		if n.block.Trans == nil {
			continue
		}

		proof, err := n.block.Trans.Proof(tx)
		switch {
		case errors.Is(err, merkle.ErrNotFound):
			continue
		case err != nil:
			return nil, Block{}, err
		}

		return proof, n.block, nil
	}

	return nil, Block{}, fmt.Errorf("tx %s: %w", tx, ErrNotFound)
}

// HeaderOf returns the header of the block with the specified hash.
func (ct *ChainTree) HeaderOf(hash string) (BlockHeader, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	n, exists := ct.nodes[hash]
	if !exists {
		return BlockHeader{}, fmt.Errorf("block %s: %w", short(hash), ErrNotFound)
	}

	return n.block.Header, nil
}

// Headers returns the header of every known block keyed by block hash.
func (ct *ChainTree) Headers() map[string]BlockHeader {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	headers := make(map[string]BlockHeader, len(ct.nodes))
	for hash, n := range ct.nodes {
		headers[hash] = n.block.Header
	}

	return headers
}

// QueryBlock returns the block with the specified hash.
func (ct *ChainTree) QueryBlock(hash string) (Block, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	n, exists := ct.nodes[hash]
	if !exists {
		return Block{}, fmt.Errorf("block %s: %w", short(hash), ErrNotFound)
	}

	return n.block, nil
}

// Contains reports if the block is already in the tree.
func (ct *ChainTree) Contains(hash string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	_, exists := ct.nodes[hash]
	return exists
}

// Height returns the height of the block with the specified hash.
func (ct *ChainTree) Height(hash string) (uint64, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	n, exists := ct.nodes[hash]
	if !exists {
		return 0, fmt.Errorf("block %s: %w", short(hash), ErrNotFound)
	}

	return n.block.Number, nil
}

// Count returns the number of blocks in the tree, genesis included.
func (ct *ChainTree) Count() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	return len(ct.nodes)
}

// Reset drops every block except genesis and clears the storage.
func (ct *ChainTree) Reset() error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if ct.serializer != nil {
		if err := ct.serializer.Reset(); err != nil {
			return err
		}
	}

	g := ct.nodes[ct.genesisHash]
	g.children = nil

	ct.nodes = map[string]*chainNode{ct.genesisHash: g}
	ct.tips = map[string]struct{}{ct.genesisHash: {}}
	ct.cache.Purge()

	return nil
}
