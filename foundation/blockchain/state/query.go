package state

import (
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/genesis"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/merkle"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
)

// Host returns the host this node is reachable on.
func (s *State) Host() string {
	return s.host
}

// MinerID returns the account that collects this node's mining rewards.
func (s *State) MinerID() database.AccountID {
	return s.minerID
}

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// Resolve returns the tip of the branch this node considers canonical.
func (s *State) Resolve() database.Block {
	return s.chain.Resolve()
}

// Tips returns every tip in the tree, tallest first.
func (s *State) Tips() []database.Block {
	return s.chain.Tips()
}

// ChainFrom returns the branch ending at the tip ordered from genesis. An
// empty tip means the resolved tip.
func (s *State) ChainFrom(tip string) ([]database.Block, error) {
	return s.chain.ChainFrom(tip)
}

// Balances returns the balance of every account on the branch ending at the
// tip. An empty tip means the resolved tip.
func (s *State) Balances(tip string) (map[database.AccountID]int64, error) {
	return s.chain.Balances(tip)
}

// Balance returns the balance of the account on the resolved branch.
func (s *State) Balance(accountID database.AccountID) (int64, error) {
	balances, err := s.chain.Balances("")
	if err != nil {
		return 0, err
	}

	return balances[accountID], nil
}

// NonceOf returns the highest nonce the account used on the resolved branch
// or -1 when it never sent a transaction.
func (s *State) NonceOf(accountID database.AccountID) (int64, error) {
	return s.chain.NonceOf(accountID, "")
}

// ProofForTransaction returns the merkle proof of the transaction on the
// resolved branch and the block holding it.
func (s *State) ProofForTransaction(tx database.SignedTx) ([]merkle.ProofStep, database.Block, error) {
	return s.chain.ProofForTransaction(tx, "")
}

// Headers returns the header of every known block keyed by block hash.
func (s *State) Headers() map[string]database.BlockHeader {
	return s.chain.Headers()
}

// QueryBlock returns the block with the specified hash.
func (s *State) QueryBlock(hash string) (database.Block, error) {
	return s.chain.QueryBlock(hash)
}

// QueryBlocksByAccount returns the blocks on the resolved branch holding a
// transaction sent or received by the account. If the account is empty, the
// whole branch is returned.
func (s *State) QueryBlocksByAccount(accountID database.AccountID) ([]database.Block, error) {
	blocks, err := s.chain.ChainFrom("")
	if err != nil {
		return nil, err
	}

	if accountID == "" {
		return blocks, nil
	}

	var out []database.Block
	for _, block := range blocks {
		if block.MinerID == accountID {
			out = append(out, block)
			continue
		}

		for _, tx := range block.Values() {
			if tx.FromID == accountID || tx.ToID == accountID {
				out = append(out, block)
				break
			}
		}
	}

	return out, nil
}

// =============================================================================

// Mempool returns a copy of the mempool.
func (s *State) Mempool() []database.SignedTx {
	return s.mempool.Copy()
}

// MempoolLength returns the current length of the mempool.
func (s *State) MempoolLength() int {
	return s.mempool.Count()
}

// =============================================================================

// KnownPeers retrieves a copy of the known peer list, leaving out this node.
func (s *State) KnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// AddKnownPeer provides the ability to add a new peer to
// the known peer list.
func (s *State) AddKnownPeer(peer peer.Peer) bool {
	if peer.Match(s.host) {
		return false
	}

	return s.knownPeers.Add(peer)
}

// RemoveKnownPeer provides the ability to remove a peer from
// the known peer list.
func (s *State) RemoveKnownPeer(peer peer.Peer) {
	s.knownPeers.Remove(peer)
}

// Status returns what this node reports to other nodes.
func (s *State) Status() peer.PeerStatus {
	tip := s.chain.Resolve()

	return peer.PeerStatus{
		Host:       s.host,
		Mode:       string(s.kind),
		TipHash:    tip.Hash(),
		TipHeight:  tip.Number,
		Tips:       len(s.chain.Tips()),
		Mempool:    s.mempool.Count(),
		KnownPeers: s.KnownPeers(),
	}
}

// Registry returns the address service the node registers with.
func (s *State) Registry() peer.Registry {
	return s.registry
}
