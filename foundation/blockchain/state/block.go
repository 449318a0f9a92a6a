package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/metrics"
)

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local tree. The block may extend any
// known block so competing branches are kept.
func (s *State) ProcessProposedBlock(ctx context.Context, blockData database.BlockData, proof string) error {
	block, err := database.ToBlock(blockData)
	if err != nil {
		metrics.BlocksRejected.WithLabelValues("decode").Inc()
		return fmt.Errorf("%w: %w", database.ErrChainInsertion, err)
	}
	hash := block.Hash()

	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", block.Header.PrevBlockHash, hash, len(block.Values()))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", hash)

	// Every node broadcasts what it mines to everyone so the same block
	// arrives more than once when blocks are republished.
	if s.chain.Contains(hash) {
		metrics.BlocksRejected.WithLabelValues("duplicate").Inc()
		return fmt.Errorf("%w: block %s already known", database.ErrChainInsertion, hash)
	}

	if !s.chain.Contains(block.Header.PrevBlockHash) {
		metrics.BlocksRejected.WithLabelValues("orphan").Inc()
		return fmt.Errorf("%w: parent %s unknown", database.ErrChainInsertion, block.Header.PrevBlockHash)
	}

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from the
	// function until done is called. That allows this function to complete
	// its state changes before a new mining operation takes place.
	done := s.Worker.SignalCancelMining()
	defer func() {
		s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
		done()
	}()

	// The transactions are replayed against the branch the block extends.
	if err := s.chain.ValidateTransactions(block.Header.PrevBlockHash, block.MinerID, block.Values()); err != nil {
		metrics.BlocksRejected.WithLabelValues(rejectReason(err)).Inc()
		return fmt.Errorf("%w: %w", database.ErrChainInsertion, err)
	}

	block, err = s.chain.Add(block, proof)
	if err != nil {
		metrics.BlocksRejected.WithLabelValues(rejectReason(err)).Inc()
		return err
	}
	metrics.BlocksAccepted.WithLabelValues("peer").Inc()

	s.evHandler("state: ProcessProposedBlock: remove from mempool: trans[%d]", len(block.Values()))
	s.mempool.DeleteAll(block.Values())

	// A withholding miner reacts to the public branch growing.
	s.mu.Lock()
	blocks := s.reactToPeerBlock(block)
	s.mu.Unlock()

	// Send an event about this new block.
	s.blockEvent(block)

	// Mining restarts on top of the new block.
	s.Worker.SignalStartMining()

	return s.NetSendBlocksToPeers(ctx, blocks)
}

// =============================================================================

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockHeaderJSON, err := json.Marshal(block.Header)
	if err != nil {
		blockHeaderJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	blockTransJSON, err := json.Marshal(block.Values())
	if err != nil {
		blockTransJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"height":%d,"miner":%q,"header":%s,"trans":%s}`, block.Hash(), block.Number, block.MinerID, string(blockHeaderJSON), string(blockTransJSON))
}
