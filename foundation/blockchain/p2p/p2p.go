// Package p2p moves frames between nodes. Every frame travels on its own
// websocket connection and every frame gets a reply, empty for broadcasts,
// so a sender knows the receiver processed it before sending the next one.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/message"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Path is the route nodes accept frames on.
const Path = "/v1/node/p2p"

// maxInFlight bounds the number of peers a broadcast talks to at once.
const maxInFlight = 5

// Handler processes a frame and returns the reply body. Broadcast frames
// return a nil reply.
type Handler func(ctx context.Context, frame []byte) ([]byte, error)

// =============================================================================

// Client sends frames to peers over websockets.
type Client struct {
	dialer    websocket.Dialer
	evHandler func(v string, args ...any)
}

// NewClient constructs a client for sending frames.
func NewClient(evHandler func(v string, args ...any)) *Client {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Client{
		dialer: websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		evHandler: ev,
	}
}

// Request sends the frame to the peer and waits for the reply.
func (c *Client) Request(ctx context.Context, pr peer.Peer, frame []byte) ([]byte, error) {
	url := fmt.Sprintf("ws://%s%s", pr.Host, Path)

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", pr.Host, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return nil, fmt.Errorf("write %s: %w", pr.Host, err)
	}

	_, reply, err := conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, fmt.Errorf("peer %s: %s", pr.Host, closeErr.Text)
		}
		return nil, fmt.Errorf("read %s: %w", pr.Host, err)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	return reply, nil
}

// Broadcast sends the frame to every peer. Every peer is tried and the first
// failure is returned.
func (c *Client) Broadcast(ctx context.Context, peers []peer.Peer, frame []byte) error {
	var g errgroup.Group
	g.SetLimit(maxInFlight)

	for _, pr := range peers {
		g.Go(func() error {
			if _, err := c.Request(ctx, pr, frame); err != nil {
				c.evHandler("p2p: Broadcast: WARNING: %s", err)
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// =============================================================================

// Serve upgrades the request to a websocket and answers every frame that
// arrives on it until the peer closes the connection. Errors processing a
// broadcast are logged, errors answering a request close the connection
// with the error text.
func Serve(ctx context.Context, ws websocket.Upgrader, w http.ResponseWriter, r *http.Request, handler Handler, evHandler func(v string, args ...any)) error {
	ws.CheckOrigin = func(r *http.Request) bool { return true }

	conn, err := ws.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			// The peer hung up, normally after reading the reply.
			return nil
		}

		reply, err := handler(ctx, frame)
		if err != nil {
			if evHandler != nil {
				evHandler("p2p: Serve: WARNING: %s", err)
			}

			if len(frame) > 0 && message.Tag(frame[0]).IsRequest() {
				msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error())
				conn.WriteMessage(websocket.CloseMessage, msg)
				return nil
			}
		}

		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			return err
		}
	}
}
