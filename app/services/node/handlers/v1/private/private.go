// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ardanlabs/nakamoto/business/web/errs"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/p2p"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/state"
	"github.com/ardanlabs/nakamoto/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
}

// P2P upgrades the connection to a websocket and feeds every frame to the
// node. Request frames get their reply on the same socket.
func (h Handlers) P2P(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	ev := func(s string, args ...any) {
		h.Log.Infow(fmt.Sprintf(s, args...), "traceid", v.TraceID)
	}

	if err := p2p.Serve(ctx, h.WS, w, r, h.State.HandleMessage, ev); err != nil {
		h.Log.Infow("p2p", "traceid", v.TraceID, "status", "connection closed", "ERROR", err)
	}

	return nil
}

// SubmitPeer is called by a node so it can be added to the known peer list.
func (h Handlers) SubmitPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var pr peer.Peer
	if err := web.Decode(r, &pr); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if h.State.AddKnownPeer(pr) {
		h.Log.Infow("adding peer", "traceid", v.TraceID, "host", pr.Host)
	}

	return web.Respond(ctx, w, nil, http.StatusOK)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Status(), http.StatusOK)
}

// Blocks returns every block the node knows, fork blocks included, in
// height order so a peer can insert them one by one.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.KnownBlocks(), http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Mempool(), http.StatusOK)
}

// Mining turns mining on or off.
func (h Handlers) Mining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	switch web.Param(r, "mode") {
	case "on":
		h.State.SetMining(true)
	case "off":
		h.State.SetMining(false)
	default:
		return errs.NewTrusted(fmt.Errorf("mining mode %q, want on or off", web.Param(r, "mode")), http.StatusBadRequest)
	}

	resp := struct {
		Mining bool `json:"mining"`
	}{
		Mining: h.State.IsMiningAllowed(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
