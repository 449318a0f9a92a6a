package selector_test

import (
	"testing"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/mempool/selector"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	signPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	signBill  = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
	signEd    = "aed31b6b5a341af8f27e66fb0b7633cf20fc27049e3eb7f6f623a4655b719ebb"
)

func sign(t *testing.T, hexKey string, nonce uint64, value uint64) database.SignedTx {
	t.Helper()

	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the key: %s", failed, err)
	}

	to, err := crypto.HexToECDSA(signPavel)
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

type pick struct {
	hexKey string
	nonce  uint64
}

func TestSelect(t *testing.T) {
	type test struct {
		name     string
		strategy string
		howMany  int
		best     []pick
	}

	tt := []test{
		{
			name:     "nonce first row",
			strategy: selector.StrategyNonce,
			howMany:  3,
			best:     []pick{{signPavel, 0}, {signBill, 0}, {signEd, 0}},
		},
		{
			name:     "nonce whole two rows",
			strategy: selector.StrategyNonce,
			howMany:  6,
			best:     []pick{{signPavel, 0}, {signPavel, 1}, {signBill, 0}, {signBill, 1}, {signEd, 0}, {signEd, 1}},
		},
		{
			name:     "amount one from second row",
			strategy: selector.StrategyAmount,
			howMany:  4,
			best:     []pick{{signPavel, 0}, {signPavel, 1}, {signBill, 0}, {signEd, 0}},
		},
		{
			name:     "amount first two",
			strategy: selector.StrategyAmount,
			howMany:  2,
			best:     []pick{{signPavel, 0}, {signBill, 0}},
		},
		{
			name:     "amount take all",
			strategy: selector.StrategyAmount,
			howMany:  -1,
			best: []pick{
				{signPavel, 0}, {signPavel, 1}, {signPavel, 2},
				{signBill, 0}, {signBill, 1}, {signBill, 2},
				{signEd, 0}, {signEd, 1}, {signEd, 2},
			},
		},
		{
			name:     "advanced stuck behind low amount",
			strategy: selector.StrategyAdvanced,
			howMany:  3,
			best:     []pick{{signBill, 0}, {signBill, 1}, {signBill, 2}},
		},
	}

	t.Log("Given the need to pick the next transactions from the mempool.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling the %s strategy.", testID, tst.strategy)
			{
				f := func(t *testing.T) {
					txs := []database.SignedTx{
						sign(t, signPavel, 0, 25),
						sign(t, signPavel, 1, 75),
						sign(t, signPavel, 2, 50),

						sign(t, signBill, 0, 10),
						sign(t, signBill, 1, 5),
						sign(t, signBill, 2, 275),

						sign(t, signEd, 0, 5),
						sign(t, signEd, 1, 50),
						sign(t, signEd, 2, 25),
					}

					m := make(map[database.AccountID][]database.SignedTx)
					for i := len(txs) - 1; i >= 0; i-- {
						m[txs[i].FromID] = append(m[txs[i].FromID], txs[i])
					}

					fn, err := selector.Retrieve(tst.strategy)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get the strategy function: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to get the strategy function.", success, testID)

					got := fn(m, tst.howMany)
					if len(got) != len(tst.best) {
						t.Fatalf("\t%s\tTest %d:\tShould get %d transactions, got %d.", failed, testID, len(tst.best), len(got))
					}
					t.Logf("\t%s\tTest %d:\tShould get %d transactions.", success, testID, len(tst.best))

					nonces := make(map[database.AccountID]int64)
					for _, tx := range got {
						found := false
						for _, exp := range tst.best {
							pk, _ := crypto.HexToECDSA(exp.hexKey)
							if database.PublicKeyToAccountID(pk.PublicKey) == tx.FromID && exp.nonce == tx.Nonce {
								found = true
								break
							}
						}
						if !found {
							t.Fatalf("\t%s\tTest %d:\tShould get back the right from/nonce: %s/%d", failed, testID, tx.FromID.Short(), tx.Nonce)
						}

						last, seen := nonces[tx.FromID]
						if seen && int64(tx.Nonce) < last {
							t.Fatalf("\t%s\tTest %d:\tShould keep nonce order for %s.", failed, testID, tx.FromID.Short())
						}
						nonces[tx.FromID] = int64(tx.Nonce)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right from/nonce in nonce order.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}

	t.Log("Given the need to reject unknown strategies.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen asking for a strategy that does not exist.", testID)
		{
			if _, err := selector.Retrieve("tip"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould get an error.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get an error.", success, testID)
		}
	}
}
