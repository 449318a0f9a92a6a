// Package database handles all the lower level support for maintaining the
// tree of known blocks, replaying balances and nonces for any branch and
// persisting every accepted block through a Serializer.
package database

import "errors"

// ErrEndOfChain is returned by an Iterator once every block has been read.
var ErrEndOfChain = errors.New("end of chain")

// Serializer interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blocks. Every
// accepted block is written, including blocks on losing forks.
type Serializer interface {
	Write(blockData BlockData) error
	GetBlock(hash string) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks. Blocks must be
// returned in height order so a parent is always seen before its children.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}
