package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/metrics"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are not enough transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain. The block is added to the local tree but it is
// not announced, see PublishMinedBlock.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: pick parent and transactions")

	parent, candidates := s.miningCandidates()

	if len(candidates) == 0 && !s.mineEmpty {
		return database.Block{}, ErrNoTransactions
	}

	// Keep what the parent branch can take. Transactions whose nonce is
	// already used on the branch can never be mined there.
	trans, stale, err := s.chain.SelectTransactions(parent, s.minerID, candidates, int(s.genesis.TransPerBlock))
	if err != nil {
		return database.Block{}, err
	}

	if len(stale) > 0 {
		s.evHandler("state: MineNewBlock: MINING: dropping stale[%d]", len(stale))
		s.mempool.DeleteAll(stale)
	}

	if len(trans) == 0 && !s.mineEmpty {
		return database.Block{}, ErrNoTransactions
	}

	// The batch is replayed once more against the branch before any work
	// is spent on it.
	if err := s.chain.ValidateTransactions(parent, s.minerID, trans); err != nil {
		return database.Block{}, fmt.Errorf("%w: %w", database.ErrAbnormalTransaction, err)
	}

	prevBlock, err := s.chain.QueryBlock(parent)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: parent[%s] trans[%d]", parent, len(trans))

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	start := time.Now()
	powArgs := database.POWArgs{
		MinerID:   s.minerID,
		Target:    s.genesis.Target,
		PrevBlock: prevBlock,
		Trans:     trans,
		EvHandler: s.evHandler,
	}

	block, err := database.POW(ctx, powArgs)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			metrics.MiningCancelled.Inc()
		}
		return database.Block{}, err
	}
	metrics.MiningDuration.Observe(time.Since(start).Seconds())

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		metrics.MiningCancelled.Inc()
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	block, err = s.chain.Add(block, block.Hash())
	if err != nil {
		metrics.BlocksRejected.WithLabelValues(rejectReason(err)).Inc()
		return database.Block{}, err
	}
	metrics.BlocksAccepted.WithLabelValues("mined").Inc()

	s.mempool.DeleteAll(trans)

	// Send an event about this new block.
	s.blockEvent(block)

	return block, nil
}

// PublishMinedBlock decides, based on the mining strategy, which blocks must
// be announced now that the specified block has been mined and sends them to
// the known peers.
func (s *State) PublishMinedBlock(ctx context.Context, block database.Block) error {
	s.mu.Lock()

	var blocks []database.Block
	switch {
	case s.kind.Withholds() && s.adv.active:
		blocks = s.withhold(block)
	default:
		blocks = []database.Block{block}
	}

	s.mu.Unlock()

	return s.NetSendBlocksToPeers(ctx, blocks)
}

// =============================================================================

// miningCandidates returns the block to mine on and the transactions to
// consider. A withholding miner with a private branch mines on its hidden
// tip with its replacements first and never with the payments they replace.
func (s *State) miningCandidates() (string, []database.SignedTx) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.kind.Withholds() || !s.adv.active {
		return s.chain.Resolve().Hash(), s.mempool.PickBest(-1)
	}

	candidates := append([]database.SignedTx(nil), s.adv.replacements...)
	for _, tx := range s.mempool.PickBest(-1) {
		if _, exists := s.adv.originals[tx.Signature]; !exists {
			candidates = append(candidates, tx)
		}
	}

	return s.adv.hiddenTip, candidates
}
