package worker

import (
	"context"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
)

// peerOperations handles finding new peers.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation updates the peer list from the registry and the peers
// themselves, then pushes the result to every peer.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	w.registerPeers()

	for _, pr := range w.state.KnownPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: runPeersOperation: queryPeerStatus: %s: ERROR: %s", pr.Host, err)
			w.state.RemoveKnownPeer(pr)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)
	}

	// Let the peers know about each other and this node.
	if err := w.state.NetSendPeers(context.Background()); err != nil {
		w.evHandler("worker: runPeersOperation: sendPeers: WARNING: %s", err)
	}
}

// registerPeers registers this node with the registry and adds every node
// the registry knows about.
func (w *Worker) registerPeers() {
	registry := w.state.Registry()
	if registry == nil {
		return
	}

	if err := registry.Register(peer.New(w.state.Host())); err != nil {
		w.evHandler("worker: registerPeers: register: ERROR: %s", err)
		return
	}

	peers, err := registry.ListPeers()
	if err != nil {
		w.evHandler("worker: registerPeers: listPeers: ERROR: %s", err)
		return
	}

	w.addNewPeers(peers)
}

// addNewPeers takes the list of known peers and makes sure they are included
// in the nodes list of know peers.
func (w *Worker) addNewPeers(knownPeers []peer.Peer) {
	w.evHandler("worker: runPeerUpdatesOperation: addNewPeers: started")
	defer w.evHandler("worker: runPeerUpdatesOperation: addNewPeers: completed")

	for _, pr := range knownPeers {
		if w.state.AddKnownPeer(pr) {
			w.evHandler("worker: runPeerUpdatesOperation: addNewPeers: add peer nodes: adding peer-node %s", pr)
		}
	}
}
