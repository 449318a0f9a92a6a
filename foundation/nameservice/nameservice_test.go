package nameservice_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_NameService(t *testing.T) {
	t.Log("Given the need to name accounts from key files.")
	{
		dir := t.TempDir()

		pk, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %s", failed, err)
		}
		if err := crypto.SaveECDSA(filepath.Join(dir, "miner1.ecdsa"), pk); err != nil {
			t.Fatalf("\t%s\tShould be able to save the key: %s", failed, err)
		}
		accountID := database.PublicKeyToAccountID(pk.PublicKey)

		ns, err := nameservice.New(dir)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the folder: %s", failed, err)
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen looking up a known account.", testID)
		{
			if name := ns.Lookup(accountID); name != "miner1" {
				t.Fatalf("\t%s\tTest %d:\tShould get the file name, got %q.", failed, testID, name)
			}
			got, err := ns.Resolve("miner1")
			if err != nil || got != accountID {
				t.Fatalf("\t%s\tTest %d:\tShould resolve the name: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould map names and accounts both ways.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the name is unknown.", testID)
		{
			if _, err := ns.Resolve("nobody"); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould report not found: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report not found.", success, testID)
		}
	}
}
