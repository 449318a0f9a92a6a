package worker

import "context"

// Sync updates the peer list, mempool and blocks.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	w.registerPeers()

	for _, pr := range w.state.KnownPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: sync: queryPeerStatus: %s: ERROR: %s", pr.Host, err)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)

		// If this peer has blocks we don't have, we need to add them.
		if peerStatus.TipHeight > w.state.Resolve().Number {
			w.evHandler("worker: sync: retrievePeerBlocks: %s: tipHeight[%d]", pr.Host, peerStatus.TipHeight)

			if err := w.state.NetRequestPeerBlocks(context.Background(), pr); err != nil {
				w.evHandler("worker: sync: retrievePeerBlocks: %s: ERROR %s", pr.Host, err)
			}
		}

		// Retrieve the mempool from the peer.
		pool, err := w.state.NetRequestPeerMempool(pr)
		if err != nil {
			w.evHandler("worker: sync: retrievePeerMempool: %s: ERROR: %s", pr.Host, err)
			continue
		}
		for _, tx := range pool {
			if err := w.state.UpsertNodeTransaction(tx); err != nil {
				w.evHandler("worker: sync: retrievePeerMempool: %s: tx[%s]: WARNING: %s", pr.Host, tx, err)
			}
		}
	}
}
