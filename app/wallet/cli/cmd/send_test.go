package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Send(t *testing.T) {
	t.Log("Given the need to sign and submit a payment.")
	{
		privateKey, err := crypto.HexToECDSA("fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the private key: %s", failed, err)
		}
		receiver, err := crypto.HexToECDSA("aed31b6b5a341af8f27e66fb0b7633cf20fc27049e3eb7f6f623a4655b719ebb")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the private key: %s", failed, err)
		}

		var submitted database.SignedTx
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasPrefix(r.URL.Path, "/v1/accounts/nonce/"):
				w.Write([]byte(`{"nonce":4}`))
			case r.URL.Path == "/v1/tx/submit":
				json.NewDecoder(r.Body).Decode(&submitted)
				w.Write([]byte(`{"status":"ok"}`))
			default:
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"no route"}`))
			}
		}))
		defer srv.Close()

		url = srv.URL
		accountPath = t.TempDir()
		to = string(database.PublicKeyToAccountID(receiver.PublicKey))
		value = 25
		nonce = -1

		testID := 0
		t.Logf("\tTest %d:\tWhen the nonce is not given.", testID)
		{
			signedTx, err := sendWithDetails(privateKey)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould submit the payment: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould submit the payment.", success, testID)

			if signedTx.Nonce != 5 || submitted.Signature != signedTx.Signature {
				t.Fatalf("\t%s\tTest %d:\tShould use the next nonce, got %d.", failed, testID, signedTx.Nonce)
			}
			t.Logf("\t%s\tTest %d:\tShould use the next nonce.", success, testID)

			if err := submitted.Validate(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould send a valid signature: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould send a valid signature.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the node refuses the call.", testID)
		{
			if err := get("/v1/unknown", nil); err == nil || !strings.Contains(err.Error(), "no route") {
				t.Fatalf("\t%s\tTest %d:\tShould surface the node error: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould surface the node error.", success, testID)
		}
	}
}
