package worker_test

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database/storage"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/genesis"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/state"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/worker"
	"github.com/ardanlabs/nakamoto/foundation/logger"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap/zaptest"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const minerHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

var gen = genesis.Genesis{
	Date:          time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC),
	TransPerBlock: 10,
	Target:        "3fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	MiningReward:  100,
}

func Test_Mining(t *testing.T) {
	t.Log("Given the need to mine in the background.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen empty blocks are allowed.", testID)
		{
			st := newState(t, true)
			worker.Run(st, logger.EvHandler(zaptest.NewLogger(t).Sugar(), "test", nil))

			deadline := time.Now().Add(10 * time.Second)
			for st.Resolve().Number < 3 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}

			if err := st.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould shut down cleanly: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould shut down cleanly.", success, testID)

			if st.Resolve().Number < 3 {
				t.Fatalf("\t%s\tTest %d:\tShould keep mining, got height %d.", failed, testID, st.Resolve().Number)
			}
			t.Logf("\t%s\tTest %d:\tShould keep mining.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen only transactions trigger mining.", testID)
		{
			st := newState(t, false)
			worker.Run(st, logger.EvHandler(zaptest.NewLogger(t).Sugar(), "test", nil))
			defer st.Shutdown()

			time.Sleep(50 * time.Millisecond)
			if st.Resolve().Number != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould not mine without transactions.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not mine without transactions.", success, testID)

			// The miner has no funds so the transaction waits. Turning empty
			// blocks off means nothing is mined for it.
			to := database.PublicKeyToAccountID(privateKey(t, "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93").PublicKey)
			if _, err := st.CreateTransaction(to, 10, ""); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the transaction: %s", failed, testID, err)
			}

			time.Sleep(50 * time.Millisecond)
			if st.Resolve().Number != 0 || st.MempoolLength() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep an unaffordable transaction waiting.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep an unaffordable transaction waiting.", success, testID)
		}
	}
}

// =============================================================================

func newState(t *testing.T, mineEmpty bool) *state.State {
	chain, err := database.NewChainTree(database.Config{
		Genesis:    gen,
		Serializer: storage.NewMemory(),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the chain tree: %s", failed, err)
	}

	st, err := state.New(state.Config{
		MinerKey:  privateKey(t, minerHexKey),
		Host:      "node",
		ChainTree: chain,
		Mining:    true,
		MineEmpty: mineEmpty,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %s", failed, err)
	}

	return st
}

func privateKey(t *testing.T, hexKey string) *ecdsa.PrivateKey {
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %s", failed, err)
	}

	return pk
}
