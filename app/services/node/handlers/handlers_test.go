package handlers_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/nakamoto/app/services/node/handlers"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database/storage"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/genesis"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/state"
	"github.com/ardanlabs/nakamoto/foundation/events"
	"github.com/ardanlabs/nakamoto/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap/zaptest"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var keys = map[string]string{
	"miner1": "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959",
	"miner2": "aed31b6b5a341af8f27e66fb0b7633cf20fc27049e3eb7f6f623a4655b719ebb",
}

var gen = genesis.Genesis{
	Date:          time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC),
	TransPerBlock: 10,
	Target:        "7fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	MiningReward:  100,
}

func Test_Routes(t *testing.T) {
	t.Log("Given the need to serve the node over HTTP.")
	{
		ctx := context.Background()
		log := zaptest.NewLogger(t).Sugar()

		dir := t.TempDir()
		for name, hexKey := range keys {
			if err := crypto.SaveECDSA(filepath.Join(dir, name+".ecdsa"), privateKey(t, hexKey)); err != nil {
				t.Fatalf("\t%s\tShould be able to save the key: %s", failed, err)
			}
		}
		ns, err := nameservice.New(dir)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the name service: %s", failed, err)
		}

		chain, err := database.NewChainTree(database.Config{Genesis: gen, Serializer: storage.NewMemory()})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the chain tree: %s", failed, err)
		}

		st, err := state.New(state.Config{
			MinerKey:  privateKey(t, keys["miner1"]),
			Host:      "node",
			ChainTree: chain,
			MineEmpty: true,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %s", failed, err)
		}

		cfg := handlers.MuxConfig{
			Shutdown: make(chan os.Signal, 1),
			Log:      log,
			State:    st,
			NS:       ns,
			Evts:     events.New(),
		}
		public := handlers.PublicMux(cfg)
		private := handlers.PrivateMux(cfg)
		debug := handlers.DebugMux("test", log, st)

		if _, err := st.MineNewBlock(ctx); err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %s", failed, err)
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen reading the chain.", testID)
		{
			w := call(public, http.MethodGet, "/v1/genesis/list", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get the genesis, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould get the genesis.", success, testID)

			var bal struct {
				Name    string `json:"name"`
				Balance int64  `json:"balance"`
			}
			w = call(public, http.MethodGet, "/v1/accounts/balance/miner1", nil)
			if err := json.NewDecoder(w.Body).Decode(&bal); err != nil || bal.Balance != 100 || bal.Name != "miner1" {
				t.Fatalf("\t%s\tTest %d:\tShould see the reward by name: %d %+v %v", failed, testID, w.Code, bal, err)
			}
			t.Logf("\t%s\tTest %d:\tShould see the reward by name.", success, testID)

			var tips []struct {
				Number   uint64 `json:"number"`
				Resolved bool   `json:"resolved"`
			}
			w = call(public, http.MethodGet, "/v1/chain/tips", nil)
			if err := json.NewDecoder(w.Body).Decode(&tips); err != nil || len(tips) != 1 || tips[0].Number != 1 || !tips[0].Resolved {
				t.Fatalf("\t%s\tTest %d:\tShould list a single tip: %+v %v", failed, testID, tips, err)
			}
			t.Logf("\t%s\tTest %d:\tShould list a single tip.", success, testID)

			w = call(public, http.MethodGet, "/v1/accounts/balance/nobody", nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould refuse an unknown name, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse an unknown name.", success, testID)

			w = call(public, http.MethodGet, "/v1/headers/abc", nil)
			if w.Code != http.StatusNotFound {
				t.Fatalf("\t%s\tTest %d:\tShould not find an unknown header, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould not find an unknown header.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen paying through the API.", testID)
		{
			w := call(public, http.MethodPost, "/v1/tx/create", map[string]any{"to": "miner2", "value": 30})
			if w.Code != http.StatusCreated {
				t.Fatalf("\t%s\tTest %d:\tShould create the payment, got %d: %s", failed, testID, w.Code, w.Body)
			}
			var signedTx database.SignedTx
			if err := json.NewDecoder(w.Body).Decode(&signedTx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould decode the payment: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould create the payment.", success, testID)

			w = call(public, http.MethodPost, "/v1/tx/create", map[string]any{"to": "miner2"})
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould refuse a zero value, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse a zero value.", success, testID)

			tampered := signedTx
			tampered.Value = 90
			w = call(public, http.MethodPost, "/v1/tx/submit", tampered)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould refuse a tampered payment, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse a tampered payment.", success, testID)

			blk, err := st.MineNewBlock(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine the payment: %s", failed, testID, err)
			}

			var proof struct {
				BlockHash string `json:"blk_hash"`
			}
			w = call(public, http.MethodPost, "/v1/tx/proof", signedTx)
			if err := json.NewDecoder(w.Body).Decode(&proof); err != nil || proof.BlockHash != blk.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould get the proof: %d %v", failed, testID, w.Code, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get the proof.", success, testID)

			w = call(public, http.MethodPost, "/v1/tx/submit", signedTx)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould refuse a replayed payment, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse a replayed payment.", success, testID)
		}

		testID = 2
		t.Logf("\tTest %d:\tWhen calling the private and debug routes.", testID)
		{
			w := call(private, http.MethodGet, "/v1/node/status", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get the status, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould get the status.", success, testID)

			w = call(private, http.MethodPost, "/v1/node/attack/fork", nil)
			if w.Code != http.StatusConflict {
				t.Fatalf("\t%s\tTest %d:\tShould refuse to fork an honest node, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse to fork an honest node.", success, testID)

			w = call(debug, http.MethodGet, "/metrics", nil)
			if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("nakamoto_blocks_accepted_total")) {
				t.Fatalf("\t%s\tTest %d:\tShould expose the chain metrics, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould expose the chain metrics.", success, testID)
		}
	}
}

// =============================================================================

func call(h http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	return w
}

func privateKey(t *testing.T, hexKey string) *ecdsa.PrivateKey {
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %s", failed, err)
	}

	return pk
}
