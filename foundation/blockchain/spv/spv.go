// Package spv implements a light client that keeps only block headers and
// checks transactions with merkle proofs supplied by full nodes. Every answer
// it relies on is asked of all known peers and the most common reply wins.
package spv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/merkle"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/message"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/signature"
	"golang.org/x/sync/errgroup"
)

// Set of errors returned by the client.
var (
	// ErrProofVerification means a proof agreed on by the peers does not
	// fold to the merkle root of the header. The peers that answered can
	// not be trusted and the client must stop relying on them.
	ErrProofVerification = errors.New("merkle proof does not match the block header")

	// ErrNoQuorum means no reply was given by more than half of the peers
	// that answered.
	ErrNoQuorum = errors.New("peers do not agree")

	// ErrNoPeers means there is nobody to ask.
	ErrNoPeers = errors.New("no peers to ask")
)

// maxInFlight bounds the number of peers asked at once.
const maxInFlight = 5

// Requester sends a request frame to a peer and returns the reply.
type Requester interface {
	Request(ctx context.Context, pr peer.Peer, frame []byte) ([]byte, error)
}

// Config represents what the client needs to talk to the network.
type Config struct {
	Transport Requester
	Peers     *peer.PeerSet
	EvHandler func(v string, args ...any)
}

// Client is a light client holding headers only.
type Client struct {
	transport Requester
	peers     *peer.PeerSet
	evHandler func(v string, args ...any)

	mu      sync.RWMutex
	headers map[string]database.BlockHeader
}

// Verification is the result of a successful inclusion check.
type Verification struct {
	BlockHash string               `json:"blk_hash"`
	Header    database.BlockHeader `json:"blk_header"`
}

// New constructs a light client.
func New(cfg Config) *Client {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	peers := cfg.Peers
	if peers == nil {
		peers = peer.NewPeerSet()
	}

	return &Client{
		transport: cfg.Transport,
		peers:     peers,
		evHandler: ev,
		headers:   make(map[string]database.BlockHeader),
	}
}

// =============================================================================

// HandleMessage processes frames pushed by full nodes. Only header
// announcements and peer lists matter to a light client.
func (c *Client) HandleMessage(ctx context.Context, data []byte) ([]byte, error) {
	frame, err := message.Decode(data)
	if err != nil {
		return nil, err
	}

	switch frame.Tag {
	case message.TagHeader:
		var msg message.Header
		if err := frame.Unmarshal(&msg); err != nil {
			return nil, err
		}
		return nil, c.AddHeader(msg.Hash, msg.Header)

	case message.TagPeers:
		var msg message.Peers
		if err := frame.Unmarshal(&msg); err != nil {
			return nil, err
		}
		for _, pr := range msg.Peers {
			c.peers.Add(pr)
		}
		return nil, nil
	}

	if frame.Tag.IsRequest() {
		return nil, fmt.Errorf("light client does not answer %s", frame.Tag)
	}

	return nil, nil
}

// AddHeader stores the header after checking the hash is its own.
func (c *Client) AddHeader(hash string, header database.BlockHeader) error {
	if got := signature.Hash(header); got != hash {
		return fmt.Errorf("header hash %s does not match %s", got, hash)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.headers[hash] = header

	return nil
}

// HeaderOf returns the stored header with the specified hash.
func (c *Client) HeaderOf(hash string) (database.BlockHeader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	header, exists := c.headers[hash]
	return header, exists
}

// HeaderCount returns the number of stored headers.
func (c *Client) HeaderCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.headers)
}

// SyncHeaders asks every peer for its headers. Only headers whose hash
// matches their content are kept so a peer can not invent a root.
func (c *Client) SyncHeaders(ctx context.Context) error {
	frame, err := message.Encode(message.TagHeaders, message.HeadersRequest{})
	if err != nil {
		return err
	}

	replies, err := c.ask(ctx, frame)
	if err != nil {
		return err
	}

	var added int
	for _, reply := range replies {
		var msg message.HeadersReply
		if err := json.Unmarshal(reply, &msg); err != nil {
			c.evHandler("spv: SyncHeaders: WARNING: %s", err)
			continue
		}

		for hash, header := range msg.Headers {
			if _, exists := c.HeaderOf(hash); exists {
				continue
			}
			if err := c.AddHeader(hash, header); err != nil {
				c.evHandler("spv: SyncHeaders: WARNING: %s", err)
				continue
			}
			added++
		}
	}

	c.evHandler("spv: SyncHeaders: added[%d] total[%d]", added, c.HeaderCount())

	return nil
}

// =============================================================================

// VerifyTransaction asks the peers where the transaction was mined and checks
// the agreed proof against the stored header. A proof that does not fold to
// the header's merkle root returns ErrProofVerification.
func (c *Client) VerifyTransaction(ctx context.Context, tx database.SignedTx) (Verification, error) {
	frame, err := message.Encode(message.TagProofRequest, message.ProofRequest{Tx: tx})
	if err != nil {
		return Verification{}, err
	}

	reply, err := c.quorum(ctx, frame)
	if err != nil {
		return Verification{}, err
	}

	proof, err := message.DecodeProofReply(reply)
	if err != nil {
		if errors.Is(err, message.ErrNoProof) {
			return Verification{}, fmt.Errorf("tx %s: %w", tx, database.ErrNotFound)
		}
		return Verification{}, err
	}

	header, exists := c.HeaderOf(proof.Hash)
	if !exists {
		if err := c.SyncHeaders(ctx); err != nil {
			return Verification{}, err
		}

		header, exists = c.HeaderOf(proof.Hash)
		if !exists {
			return Verification{}, fmt.Errorf("header %s: %w", proof.Hash, database.ErrNotFound)
		}
	}

	root, err := signature.HexDigest(header.MerkleRoot)
	if err != nil {
		return Verification{}, fmt.Errorf("decoding merkle root: %w", err)
	}

	ok, err := merkle.VerifyProof(tx, proof.Path, root)
	if err != nil {
		return Verification{}, err
	}

	if !ok {
		c.evHandler("spv: VerifyTransaction: ERROR: tx[%s] blk[%s]: %s", tx, proof.Hash, ErrProofVerification)
		return Verification{}, fmt.Errorf("tx %s blk %s: %w", tx, proof.Hash, ErrProofVerification)
	}

	c.evHandler("spv: VerifyTransaction: tx[%s] blk[%s]: verified", tx, proof.Hash)

	return Verification{BlockHash: proof.Hash, Header: header}, nil
}

// Balance asks the peers for the balance of the account.
func (c *Client) Balance(ctx context.Context, accountID database.AccountID) (int64, error) {
	return c.accountQuery(ctx, message.TagBalance, accountID)
}

// Nonce asks the peers for the highest nonce the account used.
func (c *Client) Nonce(ctx context.Context, accountID database.AccountID) (int64, error) {
	return c.accountQuery(ctx, message.TagNonce, accountID)
}

// =============================================================================

// accountQuery sends a c or m frame and decodes the agreed number.
func (c *Client) accountQuery(ctx context.Context, tag message.Tag, accountID database.AccountID) (int64, error) {
	frame, err := message.Encode(tag, message.AccountQuery{Identifier: accountID})
	if err != nil {
		return 0, err
	}

	reply, err := c.quorum(ctx, frame)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := json.Unmarshal(reply, &n); err != nil {
		return 0, fmt.Errorf("decoding %s reply: %w", tag, err)
	}

	return n, nil
}

// quorum asks every peer and returns the reply given by more than half of
// the peers that answered.
func (c *Client) quorum(ctx context.Context, frame []byte) ([]byte, error) {
	replies, err := c.ask(ctx, frame)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	var best string
	for _, reply := range replies {
		key := string(bytes.TrimSpace(reply))
		counts[key]++
		if counts[key] > counts[best] || (counts[key] == counts[best] && key < best) {
			best = key
		}
	}

	if counts[best]*2 <= len(replies) {
		return nil, fmt.Errorf("%d replies, best %d: %w", len(replies), counts[best], ErrNoQuorum)
	}

	return []byte(best), nil
}

// ask sends the frame to every known peer and collects the replies of the
// peers that answered.
func (c *Client) ask(ctx context.Context, frame []byte) ([][]byte, error) {
	peers := c.peers.Copy("")
	if len(peers) == 0 {
		return nil, ErrNoPeers
	}

	var mu sync.Mutex
	var replies [][]byte

	var g errgroup.Group
	g.SetLimit(maxInFlight)

	for _, pr := range peers {
		g.Go(func() error {
			reply, err := c.transport.Request(ctx, pr, frame)
			if err != nil {
				c.evHandler("spv: ask: %s: WARNING: %s", pr.Host, err)
				return nil
			}

			mu.Lock()
			replies = append(replies, reply)
			mu.Unlock()

			return nil
		})
	}
	g.Wait()

	if len(replies) == 0 {
		return nil, ErrNoPeers
	}

	return replies, nil
}
