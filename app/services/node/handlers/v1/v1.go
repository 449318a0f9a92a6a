// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/nakamoto/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/nakamoto/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/state"
	"github.com/ardanlabs/nakamoto/foundation/events"
	"github.com/ardanlabs/nakamoto/foundation/nameservice"
	"github.com/ardanlabs/nakamoto/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/chain/tips", pbl.Tips)
	app.Handle(http.MethodGet, version, "/chain/list", pbl.Chain)
	app.Handle(http.MethodGet, version, "/chain/list/:tip", pbl.Chain)
	app.Handle(http.MethodGet, version, "/blocks/list", pbl.BlocksByAccount)
	app.Handle(http.MethodGet, version, "/blocks/list/:account", pbl.BlocksByAccount)
	app.Handle(http.MethodGet, version, "/headers/list", pbl.Headers)
	app.Handle(http.MethodGet, version, "/headers/:hash", pbl.Header)
	app.Handle(http.MethodGet, version, "/accounts/list", pbl.Balances)
	app.Handle(http.MethodGet, version, "/accounts/balance/:account", pbl.Balance)
	app.Handle(http.MethodGet, version, "/accounts/nonce/:account", pbl.Nonce)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", pbl.Mempool)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list/:account", pbl.Mempool)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitWalletTransaction)
	app.Handle(http.MethodPost, version, "/tx/create", pbl.CreateTransaction)
	app.Handle(http.MethodPost, version, "/tx/proof", pbl.Proof)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		WS:    websocket.Upgrader{},
	}

	app.Handle(http.MethodGet, version, "/node/p2p", prv.P2P)
	app.Handle(http.MethodPost, version, "/node/peers", prv.SubmitPeer)
	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/block/list", prv.Blocks)
	app.Handle(http.MethodGet, version, "/node/tx/list", prv.Mempool)
	app.Handle(http.MethodPost, version, "/node/mining/:mode", prv.Mining)
	app.Handle(http.MethodGet, version, "/node/attack/status", prv.AttackStatus)
	app.Handle(http.MethodPost, version, "/node/attack/fork", prv.Fork)
	app.Handle(http.MethodPost, version, "/node/attack/retarget", prv.Retarget)
	app.Handle(http.MethodPost, version, "/node/attack/mine", prv.Mine)
	app.Handle(http.MethodPost, version, "/node/attack/publish", prv.Publish)
}
