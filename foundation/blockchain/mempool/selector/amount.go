package selector

import (
	"sort"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
)

// nonceSelect returns transactions round robin across senders while
// respecting the nonce for each account. A row that does not fit whole is
// cut in account order.
var nonceSelect = func(m map[database.AccountID][]database.SignedTx, howMany int) []database.SignedTx {
	if howMany == -1 {
		howMany = count(m)
	}

	sortByNonce(m)

	final := []database.SignedTx{}
	for _, row := range rows(m) {
		need := howMany - len(final)
		if len(row) > need {
			final = append(final, row[:need]...)
			break
		}
		final = append(final, row...)
	}

	return final
}

// amountSelect returns transactions moving the most value while respecting
// the nonce for each account.
var amountSelect = func(m map[database.AccountID][]database.SignedTx, howMany int) []database.SignedTx {
	if howMany == -1 {
		howMany = count(m)
	}

	/*
		Bill: {Nonce: 2, Value: 250},
			  {Nonce: 1, Value: 150},
		Pavl: {Nonce: 2, Value: 200},
			  {Nonce: 1, Value: 75},
		Edua: {Nonce: 2, Value: 75},
			  {Nonce: 1, Value: 100},
	*/

	// Sort the transactions per account by nonce.
	sortByNonce(m)

	/*
		Bill: {Nonce: 1, Value: 150},
		      {Nonce: 2, Value: 250},
		Pavl: {Nonce: 1, Value: 75},
		      {Nonce: 2, Value: 200},
		Edua: {Nonce: 1, Value: 100},
		      {Nonce: 2, Value: 75},
	*/

	// Pick the first transaction in the slice for each account. Each iteration
	// represents a new row of selections. Keep doing that until all the
	// transactions have been selected.
	rows := rows(m)

	/*
		0: Bill: {Nonce: 1, Value: 150},
		0: Pavl: {Nonce: 1, Value: 75},
		0: Edua: {Nonce: 1, Value: 100},
		1: Bill: {Nonce: 2, Value: 250},
		1: Pavl: {Nonce: 2, Value: 200},
		1: Edua: {Nonce: 2, Value: 75},
	*/

	// Sort each row by amount unless we will take all transactions from that
	// row anyway. Then try to select the number of requested transactions.
	// Keep pulling transactions from each row until the amount of fulfilled
	// or there are no more transactions.
	final := []database.SignedTx{}
done:
	for _, row := range rows {
		need := howMany - len(final)
		if len(row) > need {
			sort.Stable(byAmount(row))
			final = append(final, row[:need]...)
			break done
		}
		final = append(final, row...)
	}

	/*
		0: Bill: {Nonce: 1, Value: 150},
		1: Pavl: {Nonce: 1, Value: 75},
		2: Edua: {Nonce: 1, Value: 100},
		3: Bill: {Nonce: 2, Value: 250},
	*/

	return final
}
