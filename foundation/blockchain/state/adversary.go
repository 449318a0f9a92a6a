package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/metrics"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/strategy"
)

// ErrNotAdversary is returned when an attack operation is called on a node
// running a strategy that does not support it.
var ErrNotAdversary = errors.New("operation not supported by the mining strategy")

// adversary tracks the private branch of a withholding miner. The hidden tip
// is where this node mines and the public tip is the best branch the rest of
// the network has seen.
type adversary struct {
	active       bool
	forkHash     string
	hiddenTip    string
	publicTip    string
	unpublished  []database.Block
	privateLen   int
	replacements []database.SignedTx
	originals    map[string]struct{}
}

// AdversaryStatus is a snapshot of the private branch.
type AdversaryStatus struct {
	Strategy     string   `json:"strategy"`
	Active       bool     `json:"active"`
	ForkHash     string   `json:"fork_hash"`
	HiddenTip    string   `json:"hidden_tip"`
	HiddenHeight uint64   `json:"hidden_height"`
	PublicTip    string   `json:"public_tip"`
	PublicHeight uint64   `json:"public_height"`
	Unpublished  []string `json:"unpublished"`
	Replacements int      `json:"replacements"`
}

// =============================================================================

// ForkAt starts a private branch at the specified block. The node mines on
// the private branch until it is published.
func (s *State) ForkAt(hash string) error {
	if !s.kind.Withholds() {
		return fmt.Errorf("fork: %s: %w", s.kind, ErrNotAdversary)
	}

	if !s.chain.Contains(hash) {
		return fmt.Errorf("fork at block %s: %w", hash, database.ErrNotFound)
	}

	done := s.Worker.SignalCancelMining()
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.adv = adversary{
		active:    true,
		forkHash:  hash,
		hiddenTip: hash,
		publicTip: s.chain.Resolve().Hash(),
		originals: make(map[string]struct{}),
	}
	metrics.WithheldBlocks.Set(0)

	s.evHandler("state: ForkAt: fork[%s] public[%s]", hash, s.adv.publicTip)

	return nil
}

// RetargetOwnTransactions rewrites the payments this node made after the
// fork point so they pay the node itself on the private branch. Each
// replacement keeps the nonce of the payment it replaces so only one of the
// two can ever be part of a branch. The replaced payments are never mined
// on the private branch.
func (s *State) RetargetOwnTransactions() ([]database.SignedTx, error) {
	if !s.kind.Retargets() {
		return nil, fmt.Errorf("retarget: %s: %w", s.kind, ErrNotAdversary)
	}

	done := s.Worker.SignalCancelMining()
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.adv.active {
		return nil, errors.New("retarget: no fork in progress")
	}

	forkHeight, err := s.chain.Height(s.adv.forkHash)
	if err != nil {
		return nil, err
	}

	// Payments still waiting in the mempool.
	own := s.mempool.PendingFrom(s.minerID)

	// Payments already mined on the public branch after the fork.
	blocks, err := s.chain.ChainFrom(s.adv.publicTip)
	if err != nil {
		return nil, err
	}
	for _, block := range blocks {
		if block.Number <= forkHeight {
			continue
		}
		for _, tx := range block.Values() {
			if tx.FromID == s.minerID {
				own = append(own, tx)
			}
		}
	}

	var retargeted []database.SignedTx
	for _, orig := range own {
		if _, exists := s.adv.originals[orig.Signature]; exists {
			continue
		}
		if orig.ToID == s.minerID {
			continue
		}

		tx, err := database.NewTx(s.minerID, s.minerID, orig.Value, orig.Comment, orig.Nonce)
		if err != nil {
			return nil, err
		}

		signedTx, err := tx.Sign(s.minerKey)
		if err != nil {
			return nil, err
		}

		s.adv.originals[orig.Signature] = struct{}{}
		s.adv.replacements = append(s.adv.replacements, signedTx)
		retargeted = append(retargeted, signedTx)

		s.evHandler("state: RetargetOwnTransactions: tx[%s] to[%s] now to[%s]", orig, orig.ToID.Short(), s.minerID.Short())
	}

	return retargeted, nil
}

// ShouldPublish reports if the private branch is taller than the public one.
func (s *State) ShouldPublish() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.shouldPublish()
}

// Publish broadcasts every withheld block in order and ends the fork.
func (s *State) Publish(ctx context.Context) error {
	if !s.kind.Withholds() {
		return fmt.Errorf("publish: %s: %w", s.kind, ErrNotAdversary)
	}

	s.mu.Lock()
	blocks := s.publishAll()
	s.mu.Unlock()

	s.evHandler("state: Publish: blocks[%d]", len(blocks))

	return s.NetSendBlocksToPeers(ctx, blocks)
}

// AdversaryStatus returns a snapshot of the private branch.
func (s *State) AdversaryStatus() AdversaryStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hidden := make([]string, len(s.adv.unpublished))
	for i, block := range s.adv.unpublished {
		hidden[i] = block.Hash()
	}

	return AdversaryStatus{
		Strategy:     string(s.kind),
		Active:       s.adv.active,
		ForkHash:     s.adv.forkHash,
		HiddenTip:    s.adv.hiddenTip,
		HiddenHeight: s.height(s.adv.hiddenTip),
		PublicTip:    s.adv.publicTip,
		PublicHeight: s.height(s.adv.publicTip),
		Unpublished:  hidden,
		Replacements: len(s.adv.replacements),
	}
}

// =============================================================================

// These helpers expect s.mu to be held.

// height returns the height of a known block or zero.
func (s *State) height(hash string) uint64 {
	if hash == "" {
		return 0
	}

	h, err := s.chain.Height(hash)
	if err != nil {
		return 0
	}

	return h
}

// lead returns the private height minus the public height.
func (s *State) lead() int64 {
	return int64(s.height(s.adv.hiddenTip)) - int64(s.height(s.adv.publicTip))
}

// shouldPublish reports if the private branch is ready to be released.
func (s *State) shouldPublish() bool {
	if !s.adv.active || len(s.adv.unpublished) == 0 {
		return false
	}

	return strategy.ShouldPublish(s.height(s.adv.hiddenTip), s.height(s.adv.publicTip))
}

// publishAll releases every withheld block. A double-spend attack is over
// once the branch is out, a selfish miner keeps mining from the new tip.
func (s *State) publishAll() []database.Block {
	blocks := s.adv.unpublished

	switch s.kind {
	case strategy.Selfish:
		s.adv.unpublished = nil
		s.adv.privateLen = 0
		s.adv.publicTip = s.adv.hiddenTip

	default:
		s.adv = adversary{}
	}

	metrics.WithheldBlocks.Set(0)

	return blocks
}

// withhold records a block mined on the private branch and returns the
// blocks that must be released now.
func (s *State) withhold(block database.Block) []database.Block {
	lead := s.lead()

	s.adv.hiddenTip = block.Hash()
	s.adv.unpublished = append(s.adv.unpublished, block)
	s.adv.privateLen++
	metrics.WithheldBlocks.Set(float64(len(s.adv.unpublished)))

	// The replacements that made it into the block are done.
	if len(s.adv.replacements) > 0 {
		mined := make(map[string]struct{})
		for _, tx := range block.Values() {
			mined[tx.Signature] = struct{}{}
		}

		var left []database.SignedTx
		for _, tx := range s.adv.replacements {
			if _, exists := mined[tx.Signature]; !exists {
				left = append(left, tx)
			}
		}
		s.adv.replacements = left
	}

	switch s.kind {
	case strategy.Selfish:
		action := strategy.ReactToOwnBlock(lead, s.adv.privateLen)
		s.evHandler("state: withhold: SELFISH: lead[%d] private[%d] action[%s]", lead, s.adv.privateLen, action)

		if action == strategy.Override {
			return s.publishAll()
		}

	case strategy.DoubleSpend:
		s.evHandler("state: withhold: DOUBLESPEND: hidden[%d] public[%d]", s.height(s.adv.hiddenTip), s.height(s.adv.publicTip))

		if s.shouldPublish() {
			return s.publishAll()
		}
	}

	return nil
}

// reactToPeerBlock moves the public tip when a peer block makes the public
// branch taller and returns the blocks that must be released now.
func (s *State) reactToPeerBlock(block database.Block) []database.Block {
	if !s.adv.active || block.Number <= s.height(s.adv.publicTip) {
		return nil
	}

	lead := s.lead()
	s.adv.publicTip = block.Hash()

	if s.kind != strategy.Selfish {
		return nil
	}

	action := strategy.ReactToPeerBlock(lead)
	s.evHandler("state: reactToPeerBlock: SELFISH: lead[%d] action[%s]", lead, action)

	switch action {
	case strategy.Adopt:
		s.adv.hiddenTip = s.adv.publicTip
		s.adv.unpublished = nil
		s.adv.privateLen = 0
		metrics.WithheldBlocks.Set(0)

	case strategy.Race:
		blocks := s.adv.unpublished
		s.adv.unpublished = nil
		metrics.WithheldBlocks.Set(0)
		return blocks

	case strategy.Override:
		return s.publishAll()

	case strategy.PublishOldest:
		if len(s.adv.unpublished) > 0 {
			oldest := s.adv.unpublished[0]
			s.adv.unpublished = s.adv.unpublished[1:]
			metrics.WithheldBlocks.Set(float64(len(s.adv.unpublished)))
			return []database.Block{oldest}
		}
	}

	return nil
}

// HiddenMine mines one block on the private branch and hands it to the
// strategy, which only broadcasts when the branch is ready to be released.
func (s *State) HiddenMine(ctx context.Context) (database.Block, error) {
	s.mu.RLock()
	active := s.adv.active
	s.mu.RUnlock()

	if !s.kind.Withholds() || !active {
		return database.Block{}, fmt.Errorf("hidden mine: %s: %w", s.kind, ErrNotAdversary)
	}

	block, err := s.MineNewBlock(ctx)
	if err != nil {
		return database.Block{}, err
	}

	if err := s.PublishMinedBlock(ctx, block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}
