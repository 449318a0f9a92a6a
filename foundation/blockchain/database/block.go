package database

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/genesis"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/merkle"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/signature"
)

// GenesisParentHash is the previous hash recorded in the genesis block.
const GenesisParentHash = "0"

// =============================================================================

// BlockHeader represents common information required for each block. The
// hash of the block is the hash of this header only, so a client holding
// headers can check proofs without the transactions.
type BlockHeader struct {
	PrevBlockHash string `json:"prev_hash"` // Hash of the previous block in the chain.
	MerkleRoot    string `json:"root"`      // Merkle root of the transactions, empty when there are none.
	TimeStamp     uint64 `json:"timestamp"` // Time the block was mined in milliseconds.
	Nonce         uint64 `json:"nonce"`     // Value identified to solve the hash solution.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header  BlockHeader
	Number  uint64    // Height of the block, set when the block is linked.
	MinerID AccountID // The account who is receiving the mining reward.
	Trans   *merkle.Tree[SignedTx]
}

// GenesisBlock constructs the root block every chain starts with.
func GenesisBlock(gen genesis.Genesis) Block {
	return Block{
		Header: BlockHeader{
			PrevBlockHash: GenesisParentHash,
			TimeStamp:     uint64(gen.Date.UTC().UnixMilli()),
		},
	}
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	MinerID   AccountID
	Target    string
	PrevBlock Block
	Trans     []SignedTx
	EvHandler func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzel.
func POW(ctx context.Context, args POWArgs) (Block, error) {

	// Construct a merkle tree from the transaction for this block. The root
	// of this tree will be part of the block to be mined. A block with no
	// transactions only pays the mining reward and has no root.
	var tree *merkle.Tree[SignedTx]
	var root string
	if len(args.Trans) > 0 {
		var err error
		if tree, err = merkle.NewTree(args.Trans); err != nil {
			return Block{}, err
		}
		root = tree.RootHex()
	}

	// Construct the block to be mined.
	nb := Block{
		Header: BlockHeader{
			PrevBlockHash: args.PrevBlock.Hash(),
			MerkleRoot:    root,
			TimeStamp:     uint64(time.Now().UTC().UnixMilli()),
			Nonce:         0, // Will be identified by the POW algorithm.
		},
		Number:  args.PrevBlock.Number + 1,
		MinerID: args.MinerID,
		Trans:   tree,
	}

	ev := args.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	// Peform the proof of work mining operation.
	if err := nb.performPOW(ctx, args.Target, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
// Cancellation is checked on every attempt.
func (b *Block) performPOW(ctx context.Context, target string, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started")
	defer ev("database: PerformPOW: MINING: completed")

	// Log the transactions that are a part of this potential block.
	for _, tx := range b.Values() {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	// Loop until we or another node finds a solution for the next block.
	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Did we get cancelled trying to solve the problem.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		// Every attempt uses a fresh random nonce.
		b.Header.Nonce = rand.Uint64()

		// Hash the block and check if we have solved the puzzle.
		hash := b.Hash()
		if !IsHashSolved(target, hash) {
			continue
		}

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", short(b.Header.PrevBlockHash), short(hash))
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// Hash returns the unique hash for the Block.
func (b Block) Hash() string {

	// Hashing the block header and not the whole block so the blockchain
	// can be cryptographically checked by only needing block headers and not
	// full blocks with the transaction data.
	return signature.Hash(b.Header)
}

// Values returns the transactions in the block.
func (b Block) Values() []SignedTx {
	if b.Trans == nil {
		return nil
	}

	return b.Trans.Values()
}

// ValidateRoot checks the merkle root in the header matches the transactions.
func (b Block) ValidateRoot() error {
	var root string
	if b.Trans != nil {
		root = b.Trans.RootHex()
	}

	if b.Header.MerkleRoot != root {
		return fmt.Errorf("merkle root does not match transactions, got %s, exp %s", root, b.Header.MerkleRoot)
	}

	return nil
}

// IsHashSolved checks the hash is below the target. Both are fixed length
// lowercase hex strings so a string comparison is a numeric comparison.
func IsHashSolved(target string, hash string) bool {
	if len(hash) != len(target) {
		return false
	}

	return hash < target
}

// short trims a hash for logging.
func short(hash string) string {
	if len(hash) <= 12 {
		return hash
	}

	return hash[:12]
}

// =============================================================================

// BlockData represents what is written to the DB file and sent over the
// network.
type BlockData struct {
	Hash    string      `json:"hash"`
	Number  uint64      `json:"height"`
	MinerID AccountID   `json:"miner"`
	Header  BlockHeader `json:"header"`
	Trans   []SignedTx  `json:"trans"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	blockData := BlockData{
		Hash:    block.Hash(),
		Number:  block.Number,
		MinerID: block.MinerID,
		Header:  block.Header,
		Trans:   block.Values(),
	}

	return blockData
}

// ToBlock converts a BlockData into a Block. The merkle tree is rebuilt from
// the transactions.
func ToBlock(blockData BlockData) (Block, error) {
	block := Block{
		Header:  blockData.Header,
		Number:  blockData.Number,
		MinerID: blockData.MinerID,
	}

	if len(blockData.Trans) > 0 {
		tree, err := merkle.NewTree(blockData.Trans)
		if err != nil {
			return Block{}, err
		}
		block.Trans = tree
	}

	return block, nil
}
