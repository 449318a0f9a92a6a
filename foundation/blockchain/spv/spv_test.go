package spv_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database/storage"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/genesis"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/merkle"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/message"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/p2p"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/spv"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var keys = map[string]string{
	"miner1": "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959",
	"miner2": "aed31b6b5a341af8f27e66fb0b7633cf20fc27049e3eb7f6f623a4655b719ebb",
	"miner3": "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93",
}

var gen = genesis.Genesis{
	Date:          time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC),
	TransPerBlock: 10,
	Target:        "7fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	MiningReward:  100,
}

func Test_Verify(t *testing.T) {
	t.Log("Given the need to verify payments holding headers only.")
	{
		ctx := context.Background()
		hub := p2p.NewHub()

		// The light client is a peer of the nodes so it gets the header
		// announcements. The nodes are the peers of the light client.
		nodePeers := peer.NewPeerSet()
		clientPeers := peer.NewPeerSet()

		var ev []string
		client := spv.New(spv.Config{
			Transport: hub,
			Peers:     clientPeers,
			EvHandler: func(v string, args ...any) { ev = append(ev, v) },
		})
		hub.Register("light", client.HandleMessage)
		nodePeers.Add(peer.New("light"))

		nodes := make(map[string]*state.State)
		for _, host := range []string{"miner1", "miner2", "miner3"} {
			st := newNode(t, host, nodePeers, hub)
			nodes[host] = st
			clientPeers.Add(peer.New(host))
		}

		miner := nodes["miner1"]
		mine(t, ctx, miner)

		tx, err := miner.CreateTransaction(nodes["miner2"].MinerID(), 25, "coffee")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create the transaction: %s", failed, err)
		}
		block := mine(t, ctx, miner)

		testID := 0
		t.Logf("\tTest %d:\tWhen the transaction is on the chain.", testID)
		{
			if client.HeaderCount() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould have received both headers, got %d.", failed, testID, client.HeaderCount())
			}
			t.Logf("\t%s\tTest %d:\tShould have received both headers.", success, testID)

			v, err := client.VerifyTransaction(ctx, tx)
			if err != nil || v.BlockHash != block.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould verify the payment: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould verify the payment.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the transaction is unknown.", testID)
		{
			unknown := signTx(t, keys["miner3"], miner.MinerID(), 5, 0)
			if _, err := client.VerifyTransaction(ctx, unknown); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould report not found: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report not found.", success, testID)
		}

		testID = 2
		t.Logf("\tTest %d:\tWhen asking about accounts.", testID)
		{
			balance, err := client.Balance(ctx, nodes["miner2"].MinerID())
			if err != nil || balance != 25 {
				t.Fatalf("\t%s\tTest %d:\tShould get the balance: %d %v", failed, testID, balance, err)
			}
			nonce, err := client.Nonce(ctx, miner.MinerID())
			if err != nil || nonce != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould get the nonce: %d %v", failed, testID, nonce, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get the balance and the nonce.", success, testID)
		}

		testID = 3
		t.Logf("\tTest %d:\tWhen a majority of peers lie about the proof.", testID)
		{
			honest := nodes["miner1"]
			liar := func(ctx context.Context, frame []byte) ([]byte, error) {
				if message.Tag(frame[0]) == message.TagProofRequest {
					fake := message.ProofReply{
						Path: []merkle.ProofStep{{Hash: strings.Repeat("ab", 32)}},
						Hash: block.Hash(),
					}
					return message.EncodeReply(fake)
				}
				return honest.HandleMessage(ctx, frame)
			}
			hub.Register("liar1", liar)
			hub.Register("liar2", liar)

			peers := peer.NewPeerSet()
			peers.Add(peer.New("miner1"))
			peers.Add(peer.New("liar1"))
			peers.Add(peer.New("liar2"))

			ev = nil
			fresh := spv.New(spv.Config{
				Transport: hub,
				Peers:     peers,
				EvHandler: func(v string, args ...any) { ev = append(ev, v) },
			})

			if _, err := fresh.VerifyTransaction(ctx, tx); !errors.Is(err, spv.ErrProofVerification) {
				t.Fatalf("\t%s\tTest %d:\tShould raise a proof verification fault: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould raise a proof verification fault.", success, testID)

			var logged bool
			for _, v := range ev {
				if strings.Contains(v, "ERROR") {
					logged = true
				}
			}
			if !logged {
				t.Fatalf("\t%s\tTest %d:\tShould log the fault at error level.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould log the fault at error level.", success, testID)
		}

		testID = 4
		t.Logf("\tTest %d:\tWhen the peers are split.", testID)
		{
			peers := peer.NewPeerSet()
			peers.Add(peer.New("miner1"))
			peers.Add(peer.New("liar1"))

			split := spv.New(spv.Config{Transport: hub, Peers: peers})
			if _, err := split.VerifyTransaction(ctx, tx); !errors.Is(err, spv.ErrNoQuorum) {
				t.Fatalf("\t%s\tTest %d:\tShould refuse to pick a side: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse to pick a side.", success, testID)
		}
	}
}

// =============================================================================

func newNode(t *testing.T, host string, peers *peer.PeerSet, hub *p2p.Hub) *state.State {
	chain, err := database.NewChainTree(database.Config{
		Genesis:    gen,
		Serializer: storage.NewMemory(),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the chain tree: %s", failed, err)
	}

	peers.Add(peer.New(host))

	st, err := state.New(state.Config{
		MinerKey:   privateKey(t, keys[host]),
		Host:       host,
		ChainTree:  chain,
		Mining:     true,
		MineEmpty:  true,
		KnownPeers: peers,
		Transport:  hub,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %s", failed, err)
	}

	hub.Register(host, st.HandleMessage)

	return st
}

func mine(t *testing.T, ctx context.Context, st *state.State) database.Block {
	block, err := st.MineNewBlock(ctx)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %s", failed, err)
	}

	if err := st.PublishMinedBlock(ctx, block); err != nil {
		t.Fatalf("\t%s\tShould be able to publish the block: %s", failed, err)
	}

	return block
}

func privateKey(t *testing.T, hexKey string) *ecdsa.PrivateKey {
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %s", failed, err)
	}

	return pk
}

func signTx(t *testing.T, hexKey string, to database.AccountID, value uint64, nonce uint64) database.SignedTx {
	pk := privateKey(t, hexKey)

	tx, err := database.NewTx(database.PublicKeyToAccountID(pk.PublicKey), to, value, "", nonce)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build the transaction: %s", failed, err)
	}

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %s", failed, err)
	}

	return signedTx
}
