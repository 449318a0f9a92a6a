package public

import (
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/merkle"
)

type tx struct {
	FromAccount database.AccountID `json:"from"`
	FromName    string             `json:"from_name"`
	To          database.AccountID `json:"to"`
	ToName      string             `json:"to_name"`
	Value       uint64             `json:"value"`
	Nonce       uint64             `json:"nonce"`
	Comment     string             `json:"comment,omitempty"`
	Sig         string             `json:"sig"`
}

type block struct {
	Hash         string             `json:"hash"`
	Number       uint64             `json:"number"`
	PrevHash     string             `json:"prev_hash"`
	MerkleRoot   string             `json:"merkle_root"`
	TimeStamp    uint64             `json:"timestamp"`
	Nonce        uint64             `json:"nonce"`
	MinerAccount database.AccountID `json:"miner"`
	MinerName    string             `json:"miner_name"`
	Transactions []tx               `json:"txs"`
}

type tip struct {
	Hash     string `json:"hash"`
	Number   uint64 `json:"number"`
	Resolved bool   `json:"resolved"`
}

type balance struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance int64              `json:"balance"`
}

type balances struct {
	Tip         string    `json:"tip"`
	Uncommitted int       `json:"uncommitted"`
	Balances    []balance `json:"balances"`
}

type nonce struct {
	Account database.AccountID `json:"account"`
	Nonce   int64              `json:"nonce"`
}

type proof struct {
	Path      []merkle.ProofStep   `json:"merkle_path"`
	BlockHash string               `json:"blk_hash"`
	Header    database.BlockHeader `json:"blk_header"`
}

// newSubmit asks the node to pay from its own account. The receiver is a
// name known to the name service or an account.
type newSubmit struct {
	To      string `json:"to" validate:"required"`
	Value   uint64 `json:"value" validate:"gt=0"`
	Comment string `json:"comment" validate:"max=256"`
}
