// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"
	"sort"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyNonce    = "nonce"
	StrategyAmount   = "amount"
	StrategyAdvanced = "advanced"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyNonce:    nonceSelect,
	StrategyAmount:   amountSelect,
	StrategyAdvanced: advancedAmountSelect,
}

// Func defines a function that takes a mempool of transactions grouped by
// account and selects howMany of them in an order based on the functions
// strategy. All selector functions MUST respect nonce ordering and MUST
// return the same answer for the same input. Receiving -1 for howMany must
// return all the transactions in the strategies ordering.
type Func func(transactions map[database.AccountID][]database.SignedTx, howMany int) []database.SignedTx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// accounts returns the keys of the map in sorted order so every strategy
// walks the senders the same way on every node.
func accounts(m map[database.AccountID][]database.SignedTx) []database.AccountID {
	keys := make([]database.AccountID, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

// sortByNonce orders every sender's transactions by nonce.
func sortByNonce(m map[database.AccountID][]database.SignedTx) {
	for key := range m {
		if len(m[key]) > 1 {
			sort.Stable(byNonce(m[key]))
		}
	}
}

// rows picks the first transaction of each account, in account order, as a
// row. Each following row takes the next transaction of each account until
// every transaction has been placed.
func rows(m map[database.AccountID][]database.SignedTx) [][]database.SignedTx {
	keys := accounts(m)

	var rows [][]database.SignedTx
	for {
		var row []database.SignedTx
		for _, key := range keys {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	return rows
}

// count returns the number of transactions in the map.
func count(m map[database.AccountID][]database.SignedTx) int {
	var n int
	for _, txs := range m {
		n += len(txs)
	}

	return n
}

// =============================================================================

// byNonce provides sorting support by the transaction nonce value.
type byNonce []database.SignedTx

// Len returns the number of transactions in the list.
func (bn byNonce) Len() int {
	return len(bn)
}

// Less helps to sort the list by nonce in ascending order to keep the
// transactions in the right order of processing.
func (bn byNonce) Less(i, j int) bool {
	return bn[i].Nonce < bn[j].Nonce
}

// Swap moves transactions in the order of the nonce value.
func (bn byNonce) Swap(i, j int) {
	bn[i], bn[j] = bn[j], bn[i]
}

// =============================================================================

// byAmount provides sorting support by the transaction amount value.
type byAmount []database.SignedTx

// Len returns the number of transactions in the list.
func (ba byAmount) Len() int {
	return len(ba)
}

// Less helps to sort the list by amount in decending order to move the
// most value first.
func (ba byAmount) Less(i, j int) bool {
	return ba[i].Value > ba[j].Value
}

// Swap moves transactions in the order of the amount value.
func (ba byAmount) Swap(i, j int) {
	ba[i], ba[j] = ba[j], ba[i]
}
