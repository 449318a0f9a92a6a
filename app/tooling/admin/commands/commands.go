// Package commands contains the admin commands that read a block store.
package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/nameservice"
)

// View prints parts of a chain tree.
type View struct {
	w     io.Writer
	chain *database.ChainTree
	ns    *nameservice.NameService
}

// NewView constructs a view over the chain tree. The name service may be nil.
func NewView(w io.Writer, chain *database.ChainTree, ns *nameservice.NameService) *View {
	return &View{w: w, chain: chain, ns: ns}
}

// Tips prints every tip of the tree, marking the one the node resolves to.
func (v *View) Tips() error {
	resolved := v.chain.Resolve().Hash()

	fmt.Fprintf(v.w, "Blocks: %d\n\n", v.chain.Count())

	for _, tip := range v.chain.Tips() {
		mark := " "
		if tip.Hash() == resolved {
			mark = "*"
		}
		fmt.Fprintf(v.w, "%s Height: %-5d Hash: %s  Miner: %s\n", mark, tip.Number, tip.Hash(), v.ns.Lookup(tip.MinerID))
	}

	return nil
}

// Balances prints the balances on the branch ending at the tip. An empty tip
// means the resolved tip.
func (v *View) Balances(tip string) error {
	balances, err := v.chain.Balances(tip)
	if err != nil {
		return err
	}

	accounts := make([]database.AccountID, 0, len(balances))
	for accountID := range balances {
		accounts = append(accounts, accountID)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	fmt.Fprintf(v.w, "Tip: %s\n\n", v.tipHash(tip))

	for _, accountID := range accounts {
		fmt.Fprintf(v.w, "Account: %s  Balance: %d\n", v.ns.Lookup(accountID), balances[accountID])
	}

	return nil
}

// Chain prints the blocks and transactions of the branch ending at the tip.
func (v *View) Chain(tip string) error {
	blocks, err := v.chain.ChainFrom(tip)
	if err != nil {
		return err
	}

	for _, block := range blocks {
		fmt.Fprintf(v.w, "Block: %-5d Hash: %s  Prev: %s  Miner: %s\n", block.Number, block.Hash(), block.Header.PrevBlockHash, v.ns.Lookup(block.MinerID))

		for _, tx := range block.Values() {
			fmt.Fprintf(v.w, "    Tx: %s  From: %s  To: %s  Value: %d  Comment: %s\n",
				tx, v.ns.Lookup(tx.FromID), v.ns.Lookup(tx.ToID), tx.Value, tx.Comment)
		}
	}

	return nil
}

func (v *View) tipHash(tip string) string {
	if tip == "" {
		return v.chain.Resolve().Hash()
	}
	return tip
}
