package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/metrics"
)

// UpsertWalletTransaction accepts a transaction from a wallet for inclusion.
// New transactions are shared with the known peers.
func (s *State) UpsertWalletTransaction(signedTx database.SignedTx) error {
	isNew, err := s.admitTransaction(signedTx)
	if err != nil {
		return err
	}

	if isNew {
		s.Worker.SignalShareTx(signedTx)
		s.Worker.SignalStartMining()
	}

	return nil
}

// UpsertNodeTransaction accepts a transaction from a node for inclusion.
// Every node is connected to every other node so it is not shared again.
func (s *State) UpsertNodeTransaction(signedTx database.SignedTx) error {
	isNew, err := s.admitTransaction(signedTx)
	if err != nil {
		return err
	}

	if isNew {
		s.Worker.SignalStartMining()
	}

	return nil
}

// CreateTransaction signs a payment from the miner account with the next
// free nonce, counting what is already waiting in the mempool, and submits
// it like a wallet would.
func (s *State) CreateTransaction(toID database.AccountID, value uint64, comment string) (database.SignedTx, error) {
	nonce, err := s.chain.NonceOf(s.minerID, "")
	if err != nil {
		return database.SignedTx{}, err
	}

	next := uint64(nonce+1) + uint64(len(s.mempool.PendingFrom(s.minerID)))

	tx, err := database.NewTx(s.minerID, toID, value, comment, next)
	if err != nil {
		return database.SignedTx{}, err
	}

	signedTx, err := tx.Sign(s.minerKey)
	if err != nil {
		return database.SignedTx{}, err
	}

	if err := s.UpsertWalletTransaction(signedTx); err != nil {
		return database.SignedTx{}, err
	}

	s.evHandler("state: CreateTransaction: tx[%s] to[%s] value[%d]", signedTx, toID.Short(), value)

	return signedTx, nil
}

// =============================================================================

// admitTransaction verifies the signature and the nonce against the resolved
// branch before adding the transaction to the mempool.
func (s *State) admitTransaction(signedTx database.SignedTx) (bool, error) {
	if err := signedTx.Validate(); err != nil {
		metrics.TransactionsRejected.WithLabelValues("signature").Inc()
		return false, err
	}

	nonce, err := s.chain.NonceOf(signedTx.FromID, "")
	if err != nil {
		return false, err
	}

	if int64(signedTx.Nonce) <= nonce {
		metrics.TransactionsRejected.WithLabelValues("replay").Inc()
		return false, fmt.Errorf("tx %s: nonce %d, high-water %d: %w", signedTx, signedTx.Nonce, nonce, database.ErrReplay)
	}

	isNew := s.mempool.Upsert(signedTx)
	if isNew {
		s.evHandler("state: admitTransaction: tx[%s] from[%s] to[%s] value[%d]", signedTx, signedTx.FromID.Short(), signedTx.ToID.Short(), signedTx.Value)
	}

	return isNew, nil
}

// rejectReason maps ledger errors to a metric label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, database.ErrSignature):
		return "signature"
	case errors.Is(err, database.ErrReplay):
		return "replay"
	case errors.Is(err, database.ErrBalanceInfeasible):
		return "balance"
	case errors.Is(err, database.ErrChainInsertion):
		return "insertion"
	default:
		return "other"
	}
}
