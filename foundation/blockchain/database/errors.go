package database

import "errors"

// Set of error variables for the ledger rules. Callers use errors.Is since
// every returned error wraps one of these with context.
var (
	// ErrSignature means a transaction failed cryptographic verification.
	ErrSignature = errors.New("signature verification failed")

	// ErrReplay means a nonce is not greater than the sender's high-water
	// mark on the branch.
	ErrReplay = errors.New("nonce already used on this branch")

	// ErrChainInsertion means a block could not be linked into the chain.
	// The same block and proof must not be retried.
	ErrChainInsertion = errors.New("block not inserted")

	// ErrBalanceInfeasible means a batch of transactions would drive an
	// account below zero.
	ErrBalanceInfeasible = errors.New("balance would become negative")

	// ErrAbnormalTransaction means a batch picked for mining is no longer
	// valid against the branch it is being mined on.
	ErrAbnormalTransaction = errors.New("abnormal transactions")

	// ErrNotFound means the requested block or transaction is not known.
	ErrNotFound = errors.New("not found")
)
