// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides an implementation of a merkel tree for validation
// support for the blockchain.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
)

// Set of error variables for building and proving.
var (
	ErrNoContent = errors.New("cannot construct tree with no content")
	ErrNotFound  = errors.New("unable to find data in tree")
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// ProofStep is one entry of an inclusion proof. Hash is the hex encoded
// digest of the sibling node and Left reports if that sibling sits on the
// left side of the concatenation.
type ProofStep struct {
	Hash string `json:"hash"`
	Left bool   `json:"left"`
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint.
type Tree[T Hashable[T]] struct {
	Root         *Node[T]
	Leafs        []*Node[T]
	MerkleRoot   []byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	var defaultHashStrategy = sha256.New

	t := Tree[T]{
		hashStrategy: defaultHashStrategy,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch. A single value produces a tree whose root is that leaf.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		return ErrNoContent
	}

	leafs := make([]*Node[T], 0, len(values))
	for _, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return err
		}

		leafs = append(leafs, &Node[T]{
			Hash:  hash,
			Value: value,
			leaf:  true,
			Tree:  t,
		})
	}

	root := leafs[0]
	if len(leafs) > 1 {
		var err error
		if root, err = buildIntermediate(leafs, t); err != nil {
			return err
		}
	}

	t.Root = root
	t.Leafs = leafs
	t.MerkleRoot = root.Hash

	return nil
}

// Rebuild is a helper function that will rebuild the tree reusing only the
// data that it currently holds in the leaves.
func (t *Tree[T]) Rebuild() error {
	return t.Generate(t.Values())
}

// Proof returns the set of sibling hashes from the leaf up to, but excluding,
// the root for the specified data. When the same data appears more than once
// the first matching leaf is used.
//
// Process the proof against the data hash like this, starting with
// current = hash(data):
//
//	step.Left == true:  current = hash(step.Hash ++ current)
//	step.Left == false: current = hash(current ++ step.Hash)
//
// The final value of current should match the merkle root.
func (t *Tree[T]) Proof(data T) ([]ProofStep, error) {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		proof := []ProofStep{}
		for node.Parent != nil {
			parent := node.Parent

			switch {
			case parent.Left == node:
				proof = append(proof, ProofStep{Hash: hex.EncodeToString(parent.Right.Hash), Left: false})
			default:
				proof = append(proof, ProofStep{Hash: hex.EncodeToString(parent.Left.Hash), Left: true})
			}

			node = parent
		}

		return proof, nil
	}

	return nil, ErrNotFound
}

// VerifyProof folds the proof over the data using this tree's hash strategy
// and reports if the result matches this tree's root.
func (t *Tree[T]) VerifyProof(data T, proof []ProofStep) (bool, error) {
	return verifyProof(t.hashStrategy, data, proof, t.MerkleRoot)
}

// Verify validates the hashes at each level of the tree and returns an error
// if the resulting hash at the root of the tree doesn't match the root hash.
func (t *Tree[T]) Verify() error {
	calculatedMerkleRoot, err := t.Root.verify()
	if err != nil {
		return err
	}

	if !bytes.Equal(t.MerkleRoot, calculatedMerkleRoot) {
		return errors.New("root hash invalid")
	}

	return nil
}

// VerifyData indicates whether a given piece of data is in the tree and if the
// hashes are valid for that data on the path to the root.
func (t *Tree[T]) VerifyData(data T) error {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		currentParent := node.Parent
		for currentParent != nil {
			rightBytes, err := currentParent.Right.CalculateHash()
			if err != nil {
				return err
			}

			leftBytes, err := currentParent.Left.CalculateHash()
			if err != nil {
				return err
			}

			h := t.hashStrategy()
			if _, err := h.Write(append(append([]byte{}, leftBytes...), rightBytes...)); err != nil {
				return err
			}

			if !bytes.Equal(h.Sum(nil), currentParent.Hash) {
				return errors.New("merkle root is not equivalent to the merkle root calculated on the critical path")
			}

			currentParent = currentParent.Parent
		}

		return nil
	}

	return ErrNotFound
}

// Values returns a slice of the values stored in the tree in leaf order.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, node := range t.Leafs {
		values = append(values, node.Value)
	}

	return values
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hex.EncodeToString(t.MerkleRoot)
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	s := ""

	for _, l := range t.Leafs {
		s += fmt.Sprint(l)
		s += "\n"
	}

	return s
}

// MarshalText implements the TextMarshaler interface and produces a panic
// if anyone tries to marshal the Merkle tree. I don't want this to happen.
// Use the Values function to return a slice that can be marshaled.
func (t *Tree[T]) MarshalText() (text []byte, err error) {
	panic("do not marshal the merkle tree, use Values")
}

// =============================================================================

// VerifyProof folds the proof over the data using sha256 and reports if the
// result matches the specified root. This is what a client holding only a
// block header uses. An empty proof is only valid when the data is the root.
func VerifyProof[T Hashable[T]](data T, proof []ProofStep, root []byte) (bool, error) {
	return verifyProof(sha256.New, data, proof, root)
}

func verifyProof[T Hashable[T]](hashStrategy func() hash.Hash, data T, proof []ProofStep, root []byte) (bool, error) {
	if len(root) == 0 {
		return false, nil
	}

	current, err := data.Hash()
	if err != nil {
		return false, err
	}

	for _, step := range proof {
		sibling, err := hex.DecodeString(step.Hash)
		if err != nil {
			return false, fmt.Errorf("decoding proof step: %w", err)
		}

		var concat []byte
		switch step.Left {
		case true:
			concat = append(append(concat, sibling...), current...)
		default:
			concat = append(append(concat, current...), sibling...)
		}

		h := hashStrategy()
		if _, err := h.Write(concat); err != nil {
			return false, err
		}
		current = h.Sum(nil)
	}

	return bytes.Equal(current, root), nil
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
// Parent is only used to walk a proof path.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	leaf   bool
}

// IsLeaf reports if the node holds data.
func (n *Node[T]) IsLeaf() bool {
	return n.leaf
}

// IsLeft reports if the node is the left child of its parent. A node paired
// with itself is both children and reports true.
func (n *Node[T]) IsLeft() bool {
	return n.Parent != nil && n.Parent.Left == n
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	rightBytes, err := n.Right.verify()
	if err != nil {
		return nil, err
	}

	leftBytes, err := n.Left.verify()
	if err != nil {
		return nil, err
	}

	h := n.Tree.hashStrategy()
	if _, err := h.Write(append(leftBytes, rightBytes...)); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// CalculateHash is a helper function that calculates the hash of the node.
func (n *Node[T]) CalculateHash() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	h := n.Tree.hashStrategy()
	if _, err := h.Write(append(append([]byte{}, n.Left.Hash...), n.Right.Hash...)); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %x %v", n.leaf, n.Hash, n.Value)
}

// =============================================================================

// buildIntermediate is a helper function that for a given list of nodes,
// constructs the next level up and recurses until a single root remains. The
// last node of an odd sized level is paired with itself.
func buildIntermediate[T Hashable[T]](nl []*Node[T], t *Tree[T]) (*Node[T], error) {
	var nodes []*Node[T]

	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if i+1 == len(nl) {
			right = i
		}

		h := t.hashStrategy()
		chash := append(append([]byte{}, nl[left].Hash...), nl[right].Hash...)
		if _, err := h.Write(chash); err != nil {
			return nil, err
		}

		n := Node[T]{
			Left:  nl[left],
			Right: nl[right],
			Hash:  h.Sum(nil),
			Tree:  t,
		}

		nodes = append(nodes, &n)
		nl[left].Parent = &n
		nl[right].Parent = &n
	}

	if len(nodes) == 1 {
		return nodes[0], nil
	}

	return buildIntermediate(nodes, t)
}
