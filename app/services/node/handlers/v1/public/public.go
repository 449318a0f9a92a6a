// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ardanlabs/nakamoto/business/web/errs"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/state"
	"github.com/ardanlabs/nakamoto/foundation/events"
	"github.com/ardanlabs/nakamoto/foundation/nameservice"
	"github.com/ardanlabs/nakamoto/foundation/validate"
	"github.com/ardanlabs/nakamoto/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Genesis(), http.StatusOK)
}

// =============================================================================

// SubmitWalletTransaction adds a transaction signed by a wallet to the
// mempool and shares it with the network.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	h.Log.Infow("add user tran", "traceid", v.TraceID, "from:nonce", signedTx, "to", signedTx.ToID, "value", signedTx.Value)
	if err := h.State.UpsertWalletTransaction(signedTx); err != nil {
		return errs.FromChain(err)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// CreateTransaction builds a payment from the node's own account. The node
// picks the nonce and signs it.
func (h Handlers) CreateTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ns newSubmit
	if err := web.Decode(r, &ns); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(ns); err != nil {
		return err
	}

	toID, err := h.NS.Resolve(ns.To)
	if err != nil {
		return errs.FromChain(err)
	}

	signedTx, err := h.State.CreateTransaction(toID, ns.Value, ns.Comment)
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, signedTx, http.StatusCreated)
}

// Proof returns the merkle proof of a transaction on the resolved branch.
func (h Handlers) Proof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	path, blk, err := h.State.ProofForTransaction(signedTx)
	if err != nil {
		return errs.FromChain(err)
	}

	resp := proof{
		Path:      path,
		BlockHash: blk.Hash(),
		Header:    blk.Header,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	acct := database.AccountID(web.Param(r, "account"))

	trans := []tx{}
	for _, tran := range h.State.Mempool() {
		if acct != "" && acct != tran.FromID && acct != tran.ToID {
			continue
		}
		trans = append(trans, h.toTx(tran))
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// =============================================================================

// Tips returns every tip of the chain tree, tallest first.
func (h Handlers) Tips(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resolved := h.State.Resolve().Hash()

	blocks := h.State.Tips()
	tips := make([]tip, len(blocks))
	for i, blk := range blocks {
		hash := blk.Hash()
		tips[i] = tip{
			Hash:     hash,
			Number:   blk.Number,
			Resolved: hash == resolved,
		}
	}

	return web.Respond(ctx, w, tips, http.StatusOK)
}

// Chain returns the branch ending at the specified tip, or the resolved
// branch when no tip is given.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	dbBlocks, err := h.State.ChainFrom(web.Param(r, "tip"))
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, h.toBlocks(dbBlocks), http.StatusOK)
}

// BlocksByAccount returns the blocks of the resolved branch the account
// took part in.
func (h Handlers) BlocksByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := h.account(web.Param(r, "account"))
	if err != nil {
		return err
	}

	dbBlocks, err := h.State.QueryBlocksByAccount(accountID)
	if err != nil {
		return errs.FromChain(err)
	}

	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, h.toBlocks(dbBlocks), http.StatusOK)
}

// Headers returns every known block header keyed by block hash.
func (h Handlers) Headers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Headers(), http.StatusOK)
}

// Header returns the header of a single block.
func (h Handlers) Header(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blk, err := h.State.QueryBlock(web.Param(r, "hash"))
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, blk.Header, http.StatusOK)
}

// =============================================================================

// Balances returns the balances on the branch ending at the tip query
// parameter, or on the resolved branch.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tipHash := r.URL.Query().Get("tip")

	ledger, err := h.State.Balances(tipHash)
	if err != nil {
		return errs.FromChain(err)
	}

	if tipHash == "" {
		tipHash = h.State.Resolve().Hash()
	}

	bals := make([]balance, 0, len(ledger))
	for accountID, value := range ledger {
		bals = append(bals, balance{
			Account: accountID,
			Name:    h.NS.Lookup(accountID),
			Balance: value,
		})
	}
	sort.Slice(bals, func(i, j int) bool { return bals[i].Account < bals[j].Account })

	resp := balances{
		Tip:         tipHash,
		Uncommitted: h.State.MempoolLength(),
		Balances:    bals,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Balance returns the balance of a single account.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := h.account(web.Param(r, "account"))
	if err != nil {
		return err
	}

	ledger, err := h.State.Balances(r.URL.Query().Get("tip"))
	if err != nil {
		return errs.FromChain(err)
	}

	resp := balance{
		Account: accountID,
		Name:    h.NS.Lookup(accountID),
		Balance: ledger[accountID],
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Nonce returns the highest nonce the account used on the resolved branch.
func (h Handlers) Nonce(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := h.account(web.Param(r, "account"))
	if err != nil {
		return err
	}

	n, err := h.State.NonceOf(accountID)
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, nonce{Account: accountID, Nonce: n}, http.StatusOK)
}

// =============================================================================

// account accepts either a name known to the name service or an account.
func (h Handlers) account(s string) (database.AccountID, error) {
	if s == "" {
		return "", nil
	}

	accountID, err := h.NS.Resolve(s)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", errs.NewTrusted(err, http.StatusBadRequest)
		}
		return "", err
	}

	return accountID, nil
}

func (h Handlers) toTx(tran database.SignedTx) tx {
	return tx{
		FromAccount: tran.FromID,
		FromName:    h.NS.Lookup(tran.FromID),
		To:          tran.ToID,
		ToName:      h.NS.Lookup(tran.ToID),
		Value:       tran.Value,
		Nonce:       tran.Nonce,
		Comment:     tran.Comment,
		Sig:         tran.Signature,
	}
}

func (h Handlers) toBlocks(dbBlocks []database.Block) []block {
	blocks := make([]block, len(dbBlocks))
	for j, blk := range dbBlocks {
		values := blk.Values()
		trans := make([]tx, len(values))
		for i, tran := range values {
			trans[i] = h.toTx(tran)
		}

		blocks[j] = block{
			Hash:         blk.Hash(),
			Number:       blk.Number,
			PrevHash:     blk.Header.PrevBlockHash,
			MerkleRoot:   blk.Header.MerkleRoot,
			TimeStamp:    blk.Header.TimeStamp,
			Nonce:        blk.Header.Nonce,
			MinerAccount: blk.MinerID,
			MinerName:    h.NS.Lookup(blk.MinerID),
			Transactions: trans,
		}
	}

	return blocks
}
