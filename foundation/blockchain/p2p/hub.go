package p2p

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/message"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
)

// Hub delivers frames between handlers living in the same process. Delivery
// is synchronous and in peer order, which makes a whole network replayable
// in tests and simulations.
type Hub struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	offline  map[string]bool
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{
		handlers: make(map[string]Handler),
		offline:  make(map[string]bool),
	}
}

// Register attaches the handler to the host.
func (h *Hub) Register(host string, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.handlers[host] = handler
}

// SetOffline stops or resumes delivery to the host.
func (h *Hub) SetOffline(host string, offline bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.offline[host] = offline
}

// Request delivers the frame to the peer and returns its reply.
func (h *Hub) Request(ctx context.Context, pr peer.Peer, frame []byte) ([]byte, error) {
	h.mu.RLock()
	handler, exists := h.handlers[pr.Host]
	offline := h.offline[pr.Host]
	h.mu.RUnlock()

	if !exists || offline {
		return nil, fmt.Errorf("peer %s: unreachable", pr.Host)
	}

	reply, err := handler(ctx, frame)
	if err != nil {
		if len(frame) > 0 && message.Tag(frame[0]).IsRequest() {
			return nil, fmt.Errorf("peer %s: %w", pr.Host, err)
		}
		return nil, nil
	}

	return reply, nil
}

// Broadcast delivers the frame to every peer in order. Every peer is tried
// and the failures are joined.
func (h *Hub) Broadcast(ctx context.Context, peers []peer.Peer, frame []byte) error {
	var errs []error
	for _, pr := range peers {
		if _, err := h.Request(ctx, pr, frame); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
