// Package message defines the frames nodes exchange. A frame is a one
// character tag followed by a JSON body. Replies to request frames are a
// plain JSON body without a tag.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/merkle"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
)

// Tag identifies the kind of frame.
type Tag byte

// Set of frame tags.
const (
	TagTx           Tag = 't' // Broadcast a new transaction.
	TagBlock        Tag = 'b' // Broadcast a new block with its proof.
	TagHeader       Tag = 'h' // Broadcast a header for light clients.
	TagProofRequest Tag = 'r' // Ask for the merkle proof of a transaction.
	TagHeaders      Tag = 'x' // Ask for every known header.
	TagNonce        Tag = 'c' // Ask for the nonce of an account.
	TagBalance      Tag = 'm' // Ask for the balance of an account.
	TagPeers        Tag = 'n' // Push the current list of peers.
)

// String implements the fmt.Stringer interface for logging.
func (t Tag) String() string {
	return string(rune(t))
}

// Valid reports if the tag is one of the known tags.
func (t Tag) Valid() bool {
	switch t {
	case TagTx, TagBlock, TagHeader, TagProofRequest, TagHeaders, TagNonce, TagBalance, TagPeers:
		return true
	}
	return false
}

// IsRequest reports if a frame with this tag expects a reply.
func (t Tag) IsRequest() bool {
	switch t {
	case TagProofRequest, TagHeaders, TagNonce, TagBalance:
		return true
	}
	return false
}

// =============================================================================

// ErrNoProof is returned when decoding the reply of a node that does not
// hold the requested transaction.
var ErrNoProof = errors.New("no proof")

// nilReply is the reply body when a proof request has no answer.
var nilReply = []byte(`"nil"`)

// Frame is a decoded frame.
type Frame struct {
	Tag  Tag
	Body json.RawMessage
}

// Encode builds a frame for the tag and payload.
func Encode(tag Tag, payload any) ([]byte, error) {
	if !tag.Valid() {
		return nil, fmt.Errorf("unknown tag %q", tag)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", tag, err)
	}

	return append([]byte{byte(tag)}, body...), nil
}

// Decode splits a frame into its tag and body.
func Decode(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, errors.New("empty frame")
	}

	tag := Tag(data[0])
	if !tag.Valid() {
		return Frame{}, fmt.Errorf("unknown tag %q", tag)
	}

	return Frame{Tag: tag, Body: json.RawMessage(data[1:])}, nil
}

// Unmarshal decodes the body into the payload.
func (f Frame) Unmarshal(payload any) error {
	if err := json.Unmarshal(f.Body, payload); err != nil {
		return fmt.Errorf("decoding %s: %w", f.Tag, err)
	}
	return nil
}

// EncodeReply builds the body of a reply.
func EncodeReply(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

// NilReply returns the reply for a proof request with no answer.
func NilReply() []byte {
	return append([]byte(nil), nilReply...)
}

// DecodeProofReply decodes the reply to a proof request. A nil reply
// returns ErrNoProof.
func DecodeProofReply(data []byte) (ProofReply, error) {
	if bytes.Equal(bytes.TrimSpace(data), nilReply) {
		return ProofReply{}, ErrNoProof
	}

	var reply ProofReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return ProofReply{}, fmt.Errorf("decoding proof reply: %w", err)
	}

	return reply, nil
}

// =============================================================================

// Tx is the body of a t frame.
type Tx struct {
	Tx database.SignedTx `json:"tx_json"`
}

// Block is the body of a b frame.
type Block struct {
	Block database.BlockData `json:"blk_json"`
	Proof string             `json:"blk_proof"`
}

// Header is the body of an h frame.
type Header struct {
	Hash   string               `json:"blk_hash"`
	Header database.BlockHeader `json:"blk_header"`
}

// ProofRequest is the body of an r frame.
type ProofRequest struct {
	Tx database.SignedTx `json:"tx_json"`
}

// ProofReply is the reply to an r frame when the transaction is found.
type ProofReply struct {
	Path []merkle.ProofStep `json:"merkle_path"`
	Hash string             `json:"blk_hash"`
}

// HeadersRequest is the body of an x frame.
type HeadersRequest struct{}

// HeadersReply is the reply to an x frame.
type HeadersReply struct {
	Headers map[string]database.BlockHeader `json:"headers"`
}

// AccountQuery is the body of c and m frames. The reply is a JSON number.
type AccountQuery struct {
	Identifier database.AccountID `json:"identifier"`
}

// Peers is the body of an n frame.
type Peers struct {
	Peers []peer.Peer `json:"peers"`
}
