package database

import (
	"crypto/ecdsa"
	"encoding/base64"
	"errors"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/signature"
)

// AccountID represents an account id that is used to sign transactions and is
// associated with transactions on the blockchain. It is the base64 encoding
// of the compressed public key.
type AccountID string

// ToAccountID converts a base64 string to an account and validates the
// string is formatted correctly.
func ToAccountID(str string) (AccountID, error) {
	a := AccountID(str)
	if !a.IsAccountID() {
		return "", errors.New("invalid account format")
	}

	return a, nil
}

// PublicKeyToAccountID converts the public key to an account value.
func PublicKeyToAccountID(pk ecdsa.PublicKey) AccountID {
	return AccountID(signature.PublicKeyString(&pk))
}

// IsAccountID verifies whether the underlying data represents a valid
// compressed public key.
func (a AccountID) IsAccountID() bool {
	const keyLength = 33

	data, err := base64.StdEncoding.DecodeString(string(a))
	if err != nil {
		return false
	}

	return len(data) == keyLength && (data[0] == 0x02 || data[0] == 0x03)
}

// Short returns an abbreviated form of the account for logging.
func (a AccountID) Short() string {
	if len(a) <= 8 {
		return string(a)
	}

	return string(a[:8])
}
