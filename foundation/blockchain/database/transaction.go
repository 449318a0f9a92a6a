package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/signature"
)

// =============================================================================

// Tx is the transactional information between two parties.
type Tx struct {
	FromID  AccountID `json:"sender"`   // Account paying the amount and signing.
	ToID    AccountID `json:"receiver"` // Account receiving the amount.
	Value   uint64    `json:"amount"`   // Monetary value received from this transaction.
	Comment string    `json:"comment"`  // Free text for the parties.
	Nonce   uint64    `json:"nonce"`    // Per sender counter that prevents replays.
}

// NewTx constructs a new transaction.
func NewTx(fromID AccountID, toID AccountID, value uint64, comment string, nonce uint64) (Tx, error) {
	tx := Tx{
		FromID:  fromID,
		ToID:    toID,
		Value:   value,
		Comment: comment,
		Nonce:   nonce,
	}

	if err := tx.check(); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// Sign uses the specified private key to sign the transaction. The key must
// belong to the sender.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {
	if err := tx.check(); err != nil {
		return SignedTx{}, err
	}

	if PublicKeyToAccountID(privateKey.PublicKey) != tx.FromID {
		return SignedTx{}, errors.New("private key does not belong to the sender")
	}

	// Sign the canonical form of every field except the signature.
	sig, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx:        tx,
		Signature: sig,
	}

	return signedTx, nil
}

// check validates the fields that do not depend on the signature.
func (tx Tx) check() error {
	if !tx.FromID.IsAccountID() {
		return errors.New("from account is not properly formatted")
	}

	if !tx.ToID.IsAccountID() {
		return errors.New("to account is not properly formatted")
	}

	if tx.Value == 0 {
		return errors.New("amount must be greater than zero")
	}

	// Balances are signed 64 bit so larger amounts would wrap.
	if tx.Value > math.MaxInt64 {
		return errors.New("amount exceeds the largest possible balance")
	}

	return nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients like
// a wallet provide transactions for inclusion into the blockchain. The
// signature is the identity of the transaction.
type SignedTx struct {
	Tx
	Signature string `json:"signature"`
}

// Validate verifies the transaction has a proper signature from the sender
// over the rest of the fields.
func (tx SignedTx) Validate() error {
	if err := tx.Tx.check(); err != nil {
		return fmt.Errorf("%w: %s", ErrSignature, err)
	}

	if err := signature.Verify(tx.Tx, string(tx.FromID), tx.Signature); err != nil {
		return fmt.Errorf("%w: %s", ErrSignature, err)
	}

	return nil
}

// Hash implements the merkle Hashable interface for providing a hash
// of the serialized signed transaction.
func (tx SignedTx) Hash() ([]byte, error) {
	return signature.Digest(tx)
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two transactions. The signature is the identity.
func (tx SignedTx) Equals(otherTx SignedTx) bool {
	return tx.Signature == otherTx.Signature
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%d", tx.FromID.Short(), tx.Nonce)
}
