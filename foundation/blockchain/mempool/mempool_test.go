package mempool_test

import (
	"testing"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/mempool"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	fromKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	toKey   = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
)

func sign(t *testing.T, nonce uint64, value uint64) database.SignedTx {
	t.Helper()

	pk, err := crypto.HexToECDSA(fromKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the key: %s", failed, err)
	}

	to, err := crypto.HexToECDSA(toKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the key: %s", failed, err)
	}

	tx, err := database.NewTx(database.PublicKeyToAccountID(pk.PublicKey), database.PublicKeyToAccountID(to.PublicKey), value, "", nonce)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the transaction: %s", failed, err)
	}

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %s", failed, err)
	}

	return signedTx
}

func TestCRUD(t *testing.T) {
	t.Log("Given the need to validate mempool api.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
		{
			mp := mempool.New()

			txs := []database.SignedTx{sign(t, 2, 10), sign(t, 0, 50), sign(t, 1, 100), sign(t, 3, 10)}
			for _, tx := range txs {
				if !mp.Upsert(tx) {
					t.Fatalf("\t%s\tTest %d:\tShould be able to add new transaction: %s", failed, testID, tx)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to add new transactions.", success, testID)

			if mp.Upsert(txs[0]) || mp.Count() != 4 {
				t.Fatalf("\t%s\tTest %d:\tShould treat the same signature as the same transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould treat the same signature as the same transaction.", success, testID)

			for i, tx := range mp.Copy() {
				if tx.Nonce != uint64(i) {
					t.Fatalf("\t%s\tTest %d:\tShould get back transactions in nonce order, got %d at %d.", failed, testID, tx.Nonce, i)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould get back transactions in nonce order.", success, testID)

			best := mp.PickBest(2)
			if len(best) != 2 || best[0].Nonce != 0 || best[1].Nonce != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould pick the lowest nonces first: %v", failed, testID, best)
			}
			t.Logf("\t%s\tTest %d:\tShould pick the lowest nonces first.", success, testID)

			if !mp.Contains(txs[2]) {
				t.Fatalf("\t%s\tTest %d:\tShould find a pending transaction.", failed, testID)
			}
			mp.Delete(txs[2])
			if mp.Contains(txs[2]) || mp.Count() != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould be able to remove a transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to remove a transaction.", success, testID)

			if got := len(mp.PendingFrom(txs[0].FromID)); got != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould list the pending transactions of a sender, got %d.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould list the pending transactions of a sender.", success, testID)

			mp.DeleteAll(txs[:2])
			if mp.Count() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould be able to remove a batch.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to remove a batch.", success, testID)

			mp.Truncate()
			if mp.Count() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould be able to truncate mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to truncate mempool.", success, testID)
		}
	}
}

func TestStrategy(t *testing.T) {
	t.Log("Given the need to construct a mempool with a select strategy.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen asking for strategies by name.", testID)
		{
			if _, err := mempool.NewWithStrategy("amount"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to use the amount strategy: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to use the amount strategy.", success, testID)

			if _, err := mempool.NewWithStrategy("unknown"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not accept an unknown strategy.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not accept an unknown strategy.", success, testID)
		}
	}
}
