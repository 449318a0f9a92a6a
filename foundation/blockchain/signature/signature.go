// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrInvalidSignature is returned when a signature does not match the data
// and the public key it claims to belong to.
var ErrInvalidSignature = errors.New("invalid signature")

// publicKeyLength is the size of a compressed secp256k1 public key.
const publicKeyLength = 33

// =============================================================================

// Hash returns a unique string for the value. The value is marshaled to JSON
// and hashed with sha256. The result is 64 lowercase hex characters.
func Hash(value any) string {
	digest, err := Digest(value)
	if err != nil {
		return ZeroHash
	}

	return hex.EncodeToString(digest)
}

// Digest returns the raw sha256 digest of the JSON representation of the value.
func Digest(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(data)
	return hash[:], nil
}

// Sign uses the specified private key to sign the data. The signature is
// returned base64 encoded in the [R|S] format.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.CompressPubkey(&privateKey.PublicKey), data, rs) {
		return "", ErrInvalidSignature
	}

	return base64.StdEncoding.EncodeToString(rs), nil
}

// Verify checks the signature was produced over the value by the private key
// associated with the specified encoded public key.
func Verify(value any, publicKey string, sig string) error {
	pubKey, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil || len(pubKey) != publicKeyLength {
		return fmt.Errorf("%w: malformed public key", ErrInvalidSignature)
	}

	rs, err := base64.StdEncoding.DecodeString(sig)
	if err != nil || len(rs) != crypto.RecoveryIDOffset {
		return fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}

	data, err := stamp(value)
	if err != nil {
		return err
	}

	if !crypto.VerifySignature(pubKey, data, rs) {
		return ErrInvalidSignature
	}

	return nil
}

// PublicKeyString returns the base64 encoding of the compressed public key.
// This is how accounts are identified on the blockchain.
func PublicKeyString(pk *ecdsa.PublicKey) string {
	return base64.StdEncoding.EncodeToString(crypto.CompressPubkey(pk))
}

// ToPublicKey decodes a base64 encoded compressed public key.
func ToPublicKey(publicKey string) (*ecdsa.PublicKey, error) {
	data, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return nil, err
	}

	if len(data) != publicKeyLength {
		return nil, fmt.Errorf("public key length %d, exp %d", len(data), publicKeyLength)
	}

	return crypto.DecompressPubkey(data)
}

// HexDigest converts a hex encoded hash, as produced by Hash, into its
// raw bytes.
func HexDigest(hash string) ([]byte, error) {
	return hex.DecodeString(hash)
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the Nakamoto stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {

	// Marshal the data.
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	// Hash the data data into a 32 byte array. This will provide
	// a data length consistency with all data.
	txHash := crypto.Keccak256(v)

	// Signatures produced here are only valid for this network.
	stamp := []byte("\x19Nakamoto Signed Message:\n32")

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the data.
	data := crypto.Keccak256(stamp, txHash)

	return data, nil
}
