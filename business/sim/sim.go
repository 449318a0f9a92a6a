// Package sim runs a network of nodes in process on the in-memory hub and
// drives one mining round at a time, so honest, double-spend and selfish
// runs can be replayed from a seed.
package sim

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/rand/v2"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database/storage"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/p2p"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/state"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/strategy"
	"github.com/ethereum/go-ethereum/crypto"
)

// Attacker is the host name of the adversarial node.
const Attacker = "attacker"

// Node is a member of the simulated network.
type Node struct {
	Host  string
	Kind  strategy.Kind
	State *state.State
}

// Network is a set of nodes wired to the same hub and address registry.
type Network struct {
	cfg       Config
	rnd       *rand.Rand
	evHandler func(v string, args ...any)

	hub      *p2p.Hub
	registry *peer.MemoryRegistry
	Nodes    []*Node
	attacker *Node
	victim   *Node
	payment  *database.SignedTx
	forked   bool
}

// Result summarizes a finished run.
type Result struct {
	Scenario     strategy.Kind
	Rounds       int
	Height       uint64
	Tips         int
	Agreed       bool
	AttackerWins int
	AttackerPct  float64
	Payment      *database.SignedTx
	Confirmed    bool
	VictimFunds  int64
}

// New builds the network. Keys are derived from the seed so a run can be
// replayed.
func New(cfg Config, evHandler func(v string, args ...any)) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	n := Network{
		cfg:       cfg,
		rnd:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		evHandler: ev,
		hub:       p2p.NewHub(),
		registry:  peer.NewMemoryRegistry(),
	}

	for i := range cfg.HonestNodes {
		host := fmt.Sprintf("node%d", i+1)
		if _, err := n.add(host, strategy.Honest); err != nil {
			return nil, err
		}
	}

	if kind := cfg.Kind(); kind != strategy.Honest {
		node, err := n.add(Attacker, kind)
		if err != nil {
			return nil, err
		}
		n.attacker = node
	}

	// The last honest node is the merchant the attacker pays.
	n.victim = n.Nodes[cfg.HonestNodes-1]

	// Every node learns the others through the registry, the way a node
	// started from configuration does.
	all, err := n.registry.ListPeers()
	if err != nil {
		return nil, err
	}
	for _, node := range n.Nodes {
		for _, pr := range all {
			node.State.AddKnownPeer(pr)
		}
	}

	return &n, nil
}

func (n *Network) add(host string, kind strategy.Kind) (*Node, error) {
	privateKey, err := n.key()
	if err != nil {
		return nil, err
	}

	ev := func(v string, args ...any) {
		n.evHandler(host+": "+v, args...)
	}

	chain, err := database.NewChainTree(database.Config{
		Genesis:    n.cfg.GenesisConfig(),
		Serializer: storage.NewMemory(),
		EvHandler:  ev,
	})
	if err != nil {
		return nil, err
	}

	st, err := state.New(state.Config{
		MinerKey:   privateKey,
		Host:       host,
		ChainTree:  chain,
		Strategy:   kind,
		Mining:     true,
		MineEmpty:  true,
		KnownPeers: peer.NewPeerSet(),
		Registry:   n.registry,
		Transport:  n.hub,
		EvHandler:  ev,
	})
	if err != nil {
		return nil, err
	}

	n.hub.Register(host, st.HandleMessage)
	if err := n.registry.Register(peer.New(host)); err != nil {
		return nil, err
	}

	node := Node{Host: host, Kind: kind, State: st}
	n.Nodes = append(n.Nodes, &node)

	return &node, nil
}

// key derives a private key from the run's random source.
func (n *Network) key() (*ecdsa.PrivateKey, error) {
	for {
		var seed [32]byte
		for i := 0; i < len(seed); i += 8 {
			v := n.rnd.Uint64()
			for j := range 8 {
				seed[i+j] = byte(v >> (8 * j))
			}
		}

		pk, err := crypto.ToECDSA(seed[:])
		if err == nil {
			return pk, nil
		}
	}
}

// =============================================================================

// Run plays every round and returns the summary. Each round some traffic is
// generated and one node, picked by hash power, finds a block.
func (n *Network) Run(ctx context.Context) (Result, error) {
	for round := 1; round <= n.cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if err := n.round(ctx, round); err != nil {
			return Result{}, fmt.Errorf("round %d: %w", round, err)
		}
	}

	// A withholding miner releases what is left so every node sees the
	// same tree at the end.
	if n.attacker != nil && n.attacker.State.ShouldPublish() {
		if err := n.attacker.State.Publish(ctx); err != nil {
			return Result{}, err
		}
	}

	return n.result(), nil
}

func (n *Network) round(ctx context.Context, round int) error {
	if n.attacker != nil && n.attacker.Kind == strategy.DoubleSpend && !n.forked && round >= n.cfg.ForkRound {
		if err := n.startDoubleSpend(ctx); err != nil {
			return err
		}
	}

	if n.rnd.Float64() < n.cfg.TrafficRate {
		n.traffic(ctx)
	}

	miner := n.pickMiner()

	n.evHandler("sim: round[%d]: miner[%s]", round, miner.Host)

	block, err := miner.State.MineNewBlock(ctx)
	if err != nil {
		return err
	}

	return miner.State.PublishMinedBlock(ctx, block)
}

// pickMiner draws the node that finds the next block. The attacker holds its
// configured share of the hash power, the honest nodes split the rest.
func (n *Network) pickMiner() *Node {
	if n.attacker != nil && n.rnd.Float64() < n.cfg.AttackerShare {
		return n.attacker
	}

	return n.Nodes[n.rnd.IntN(n.cfg.HonestNodes)]
}

// traffic makes a random honest node with funds pay another one.
func (n *Network) traffic(ctx context.Context) {
	from := n.Nodes[n.rnd.IntN(n.cfg.HonestNodes)]
	to := n.Nodes[n.rnd.IntN(n.cfg.HonestNodes)]
	if from == to {
		return
	}

	balance, err := from.State.Balance(from.State.MinerID())
	if err != nil || balance <= 0 {
		return
	}

	value := uint64(n.rnd.Int64N(min(balance, 10)) + 1)
	tx, err := from.State.CreateTransaction(to.State.MinerID(), value, "traffic")
	if err != nil {
		n.evHandler("sim: traffic: WARNING: %s", err)
		return
	}

	from.State.NetSendTxToPeers(ctx, tx)
}

// startDoubleSpend forks at the attacker's tip, pays the victim on the
// public branch and rewrites the payment on the private one. The attack waits
// for a later round while the attacker can not afford the payment.
func (n *Network) startDoubleSpend(ctx context.Context) error {
	st := n.attacker.State

	balance, err := st.Balance(st.MinerID())
	if err != nil {
		return err
	}
	if balance < int64(n.cfg.Payment) {
		n.evHandler("sim: startDoubleSpend: WARNING: balance[%d] payment[%d]: waiting", balance, n.cfg.Payment)
		return nil
	}

	if err := st.ForkAt(st.Resolve().Hash()); err != nil {
		return err
	}
	n.forked = true

	tx, err := st.CreateTransaction(n.victim.State.MinerID(), n.cfg.Payment, "goods")
	if err != nil {
		return err
	}
	st.NetSendTxToPeers(ctx, tx)
	n.payment = &tx

	if _, err := st.RetargetOwnTransactions(); err != nil {
		return err
	}

	n.evHandler("sim: startDoubleSpend: paid[%s] value[%d]", n.victim.Host, n.cfg.Payment)

	return nil
}

// =============================================================================

func (n *Network) result() Result {
	ref := n.Nodes[0].State
	tip := ref.Resolve()

	res := Result{
		Scenario: n.cfg.Kind(),
		Rounds:   n.cfg.Rounds,
		Height:   tip.Number,
		Tips:     len(ref.Tips()),
		Agreed:   true,
		Payment:  n.payment,
	}

	for _, node := range n.Nodes {
		if node.State.Resolve().Hash() != tip.Hash() {
			res.Agreed = false
		}
	}

	if n.attacker != nil {
		blocks, err := ref.ChainFrom("")
		if err == nil && len(blocks) > 1 {
			for _, block := range blocks[1:] {
				if block.MinerID == n.attacker.State.MinerID() {
					res.AttackerWins++
				}
			}
			res.AttackerPct = float64(res.AttackerWins) / float64(len(blocks)-1)
		}
	}

	if n.payment != nil {
		_, _, err := n.victim.State.ProofForTransaction(*n.payment)
		res.Confirmed = err == nil
		res.VictimFunds, _ = n.victim.State.Balance(n.victim.State.MinerID())
	}

	return res
}

// NameOf returns the host of the node mining for the account.
func (n *Network) NameOf(accountID database.AccountID) string {
	for _, node := range n.Nodes {
		if node.State.MinerID() == accountID {
			return node.Host
		}
	}

	return accountID.Short()
}
