package selector

import (
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
)

// advancedAmountSelect returns transactions moving the most value while
// respecting the nonce for each account. This strategy takes into account
// high-value transactions that happen to be stuck behind a low-nonce
// transaction with a low amount.
var advancedAmountSelect = func(m map[database.AccountID][]database.SignedTx, howMany int) []database.SignedTx {
	if howMany == -1 {
		howMany = count(m)
	}

	// Sort the transactions per account by nonce.
	sortByNonce(m)

	final := []database.SignedTx{}

	aa := newAdvancedAmounts(m, howMany)
	best := aa.findBest()
	for _, from := range aa.groups {
		for i := 0; i < best[from]; i++ {
			final = append(final, m[from][i])
		}
	}

	return final
}

// =============================================================================

type advancedAmounts struct {
	howMany      int
	bestAmount   uint64
	bestPos      map[database.AccountID]int
	groupAmounts map[database.AccountID][]uint64
	groups       []database.AccountID
}

func newAdvancedAmounts(m map[database.AccountID][]database.SignedTx, howMany int) *advancedAmounts {
	groupAmounts := map[database.AccountID][]uint64{}
	groups := accounts(m)

	// Running totals per account: groupAmounts[from][n] is the value moved by
	// taking the first n transactions.
	for _, from := range groups {
		groupAmounts[from] = []uint64{0}
		for i, tx := range m[from] {
			if i >= howMany {
				break
			}
			groupAmounts[from] = append(groupAmounts[from], tx.Value+groupAmounts[from][i])
		}
	}

	return &advancedAmounts{
		howMany:      howMany,
		bestPos:      map[database.AccountID]int{},
		groupAmounts: groupAmounts,
		groups:       groups,
	}
}

func (aa *advancedAmounts) findBest() map[database.AccountID]int {
	aa.findBestTransactions(0, aa.howMany, map[database.AccountID]int{}, 0)
	return aa.bestPos
}

func (aa *advancedAmounts) findBestTransactions(groupID int, left int, currPos map[database.AccountID]int, prevAmount uint64) {
	if prevAmount > aa.bestAmount {
		aa.bestAmount = prevAmount
		aa.bestPos = currPos
	}

	if groupID >= len(aa.groups) {
		return
	}
	from := aa.groups[groupID]

	for pos, amount := range aa.groupAmounts[from] {
		if left-pos < 0 {
			break
		}

		newCurrPos := copyMap(currPos)
		newCurrPos[from] = pos
		aa.findBestTransactions(groupID+1, left-pos, newCurrPos, prevAmount+amount)
	}
}

// =============================================================================

func copyMap(m map[database.AccountID]int) map[database.AccountID]int {
	newCurrPos := map[database.AccountID]int{}
	for from, pos := range m {
		newCurrPos[from] = pos
	}

	return newCurrPos
}
