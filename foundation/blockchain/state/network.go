package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/message"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
)

const baseURL = "http://%s/v1/node"

// HandleMessage processes a frame received from another node or a light
// client. Request frames get a reply body, broadcast frames get nil.
func (s *State) HandleMessage(ctx context.Context, data []byte) ([]byte, error) {
	frame, err := message.Decode(data)
	if err != nil {
		return nil, err
	}

	switch frame.Tag {
	case message.TagTx:
		var msg message.Tx
		if err := frame.Unmarshal(&msg); err != nil {
			return nil, err
		}
		return nil, s.UpsertNodeTransaction(msg.Tx)

	case message.TagBlock:
		var msg message.Block
		if err := frame.Unmarshal(&msg); err != nil {
			return nil, err
		}
		return nil, s.ProcessProposedBlock(ctx, msg.Block, msg.Proof)

	case message.TagHeader:
		// Headers are for light clients. A full node gets the whole block.
		return nil, nil

	case message.TagProofRequest:
		var msg message.ProofRequest
		if err := frame.Unmarshal(&msg); err != nil {
			return nil, err
		}

		path, block, err := s.ProofForTransaction(msg.Tx)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return message.NilReply(), nil
			}
			return nil, err
		}

		return message.EncodeReply(message.ProofReply{Path: path, Hash: block.Hash()})

	case message.TagHeaders:
		return message.EncodeReply(message.HeadersReply{Headers: s.Headers()})

	case message.TagNonce:
		var msg message.AccountQuery
		if err := frame.Unmarshal(&msg); err != nil {
			return nil, err
		}

		nonce, err := s.NonceOf(msg.Identifier)
		if err != nil {
			return nil, err
		}

		return message.EncodeReply(nonce)

	case message.TagBalance:
		var msg message.AccountQuery
		if err := frame.Unmarshal(&msg); err != nil {
			return nil, err
		}

		balance, err := s.Balance(msg.Identifier)
		if err != nil {
			return nil, err
		}

		return message.EncodeReply(balance)

	case message.TagPeers:
		var msg message.Peers
		if err := frame.Unmarshal(&msg); err != nil {
			return nil, err
		}

		for _, pr := range msg.Peers {
			if s.AddKnownPeer(pr) {
				s.evHandler("state: HandleMessage: add peer[%s]", pr)
			}
		}
		return nil, nil
	}

	return nil, fmt.Errorf("unhandled tag %s", frame.Tag)
}

// =============================================================================

// NetSendBlocksToPeers announces the blocks in order. Every block goes out as
// a full block for nodes and as a header for light clients.
func (s *State) NetSendBlocksToPeers(ctx context.Context, blocks []database.Block) error {
	for _, block := range blocks {
		if err := s.NetSendBlockToPeers(ctx, block); err != nil {
			return err
		}
	}

	return nil
}

// NetSendBlockToPeers takes the new mined block and sends it to all know peers.
func (s *State) NetSendBlockToPeers(ctx context.Context, block database.Block) error {
	if s.transport == nil {
		return nil
	}

	s.evHandler("state: NetSendBlockToPeers: started: blk[%s]", block.Hash())
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	hash := block.Hash()

	blk, err := message.Encode(message.TagBlock, message.Block{Block: database.NewBlockData(block), Proof: hash})
	if err != nil {
		return err
	}

	hdr, err := message.Encode(message.TagHeader, message.Header{Hash: hash, Header: block.Header})
	if err != nil {
		return err
	}

	peers := s.KnownPeers()

	if err := s.transport.Broadcast(ctx, peers, blk); err != nil {
		return fmt.Errorf("sending block %s: %w", hash, err)
	}

	if err := s.transport.Broadcast(ctx, peers, hdr); err != nil {
		return fmt.Errorf("sending header %s: %w", hash, err)
	}

	return nil
}

// NetSendTxToPeers shares a new transaction with the known peers.
func (s *State) NetSendTxToPeers(ctx context.Context, tx database.SignedTx) {
	if s.transport == nil {
		return
	}

	s.evHandler("state: NetSendTxToPeers: started")
	defer s.evHandler("state: NetSendTxToPeers: completed")

	frame, err := message.Encode(message.TagTx, message.Tx{Tx: tx})
	if err != nil {
		s.evHandler("state: NetSendTxToPeers: WARNING: %s", err)
		return
	}

	if err := s.transport.Broadcast(ctx, s.KnownPeers(), frame); err != nil {
		s.evHandler("state: NetSendTxToPeers: WARNING: %s", err)
	}
}

// NetSendPeers pushes the current list of peers, this node included, to
// every known peer.
func (s *State) NetSendPeers(ctx context.Context) error {
	if s.transport == nil {
		return nil
	}

	peers := append(s.KnownPeers(), peer.New(s.host))

	frame, err := message.Encode(message.TagPeers, message.Peers{Peers: peers})
	if err != nil {
		return err
	}

	return s.transport.Broadcast(ctx, s.KnownPeers(), frame)
}

// =============================================================================

// NetRequestPeerStatus asks the peer for its status.
func (s *State) NetRequestPeerStatus(pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr)

	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps peer.PeerStatus
	if err := send(http.MethodGet, url, nil, &ps); err != nil {
		return peer.PeerStatus{}, err
	}

	s.evHandler("state: NetRequestPeerStatus: peer-node[%s]: tip[%s]: height[%d]: peer-list[%s]", pr, ps.TipHash, ps.TipHeight, ps.KnownPeers)

	return ps, nil
}

// NetRequestPeerMempool asks the peer for the transactions in their mempool.
func (s *State) NetRequestPeerMempool(pr peer.Peer) ([]database.SignedTx, error) {
	s.evHandler("state: NetRequestPeerMempool: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerMempool: completed: %s", pr)

	url := fmt.Sprintf("%s/tx/list", fmt.Sprintf(baseURL, pr.Host))

	var mempool []database.SignedTx
	if err := send(http.MethodGet, url, nil, &mempool); err != nil {
		return nil, err
	}

	s.evHandler("state: NetRequestPeerMempool: len[%d]", len(mempool))

	return mempool, nil
}

// NetRequestPeerBlocks asks the peer for every block it knows, in height
// order, and adds the ones this node does not have.
func (s *State) NetRequestPeerBlocks(ctx context.Context, pr peer.Peer) error {
	s.evHandler("state: NetRequestPeerBlocks: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerBlocks: completed: %s", pr)

	url := fmt.Sprintf("%s/block/list", fmt.Sprintf(baseURL, pr.Host))

	var blocks []database.BlockData
	if err := send(http.MethodGet, url, nil, &blocks); err != nil {
		return err
	}

	s.evHandler("state: NetRequestPeerBlocks: found blocks[%d]", len(blocks))

	for _, blockData := range blocks {
		if s.chain.Contains(blockData.Hash) {
			continue
		}

		if err := s.ProcessProposedBlock(ctx, blockData, blockData.Hash); err != nil {
			return err
		}
	}

	return nil
}

// KnownBlocks returns every block in the tree in height order. This is what
// a peer downloads to catch up.
func (s *State) KnownBlocks() []database.BlockData {
	var out []database.BlockData

	seen := make(map[string]struct{})
	tips := s.chain.Tips()
	for i := len(tips) - 1; i >= 0; i-- {
		blocks, err := s.chain.ChainFrom(tips[i].Hash())
		if err != nil {
			continue
		}

		for _, block := range blocks {
			hash := block.Hash()
			if _, exists := seen[hash]; exists || block.Number == 0 {
				continue
			}
			seen[hash] = struct{}{}
			out = append(out, database.NewBlockData(block))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].Hash < out[j].Hash
	})

	return out
}

// =============================================================================

// send is a helper function to send an HTTP request to a node.
func send(method string, url string, dataSend any, dataRecv any) error {
	var req *http.Request

	switch {
	case dataSend != nil:
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		req, err = http.NewRequest(method, url, bytes.NewReader(data))
		if err != nil {
			return err
		}

	default:
		var err error
		req, err = http.NewRequest(method, url, nil)
		if err != nil {
			return err
		}
	}

	var client http.Client
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return errors.New(string(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
