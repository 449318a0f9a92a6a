package private

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ardanlabs/nakamoto/business/web/errs"
	"github.com/ardanlabs/nakamoto/foundation/web"
)

// The attack endpoints drive a withholding miner by hand. They answer 409
// on a node running the honest strategy.

// AttackStatus returns the state of the private branch.
func (h Handlers) AttackStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.AdversaryStatus(), http.StatusOK)
}

// Fork starts a private branch at the block given in the body, or at the
// resolved tip.
func (h Handlers) Fork(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Hash string `json:"hash"`
	}
	if r.ContentLength > 0 {
		if err := web.Decode(r, &req); err != nil {
			return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
		}
	}

	if req.Hash == "" {
		req.Hash = h.State.Resolve().Hash()
	}

	if err := h.State.ForkAt(req.Hash); err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, h.State.AdversaryStatus(), http.StatusOK)
}

// Retarget rewrites the node's own payments after the fork point so they pay
// the node itself on the private branch.
func (h Handlers) Retarget(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs, err := h.State.RetargetOwnTransactions()
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}

// Mine mines a single block on the private branch.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.HiddenMine(ctx)
	if err != nil {
		return errs.FromChain(err)
	}

	resp := struct {
		Hash   string `json:"hash"`
		Number uint64 `json:"number"`
	}{
		Hash:   block.Hash(),
		Number: block.Number,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Publish releases every withheld block.
func (h Handlers) Publish(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.Publish(ctx); err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, h.State.AdversaryStatus(), http.StatusOK)
}
