package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/dgraph-io/badger/v3"
)

// Key prefixes. Blocks are stored under their height and hash so a prefix
// scan returns parents before children. The hash index points at the block
// key.
const (
	blockPrefix = "blk/"
	hashPrefix  = "hash/"
)

// Badger represents the serialization implementation for storing blocks in
// a badger key/value store. This implements the database.Serializer
// interface.
type Badger struct {
	db *badger.DB
}

// NewBadger opens the store at the specified path. An empty path keeps the
// store in memory.
func NewBadger(dbPath string) (*Badger, error) {
	opts := badger.DefaultOptions(dbPath).WithLogger(nil)
	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}

	return &Badger{db: db}, nil
}

// Close closes the store.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Write stores the block and its hash index in one transaction.
func (b *Badger) Write(blockData database.BlockData) error {
	data, err := json.Marshal(blockData)
	if err != nil {
		return err
	}

	key := blockKey(blockData.Number, blockData.Hash)

	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}

		return txn.Set([]byte(hashPrefix+blockData.Hash), key)
	})
}

// GetBlock returns the block with the specified hash.
func (b *Badger) GetBlock(hash string) (database.BlockData, error) {
	var blockData database.BlockData

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(hashPrefix + hash))
		if err != nil {
			return err
		}

		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if item, err = txn.Get(key); err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &blockData)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return database.BlockData{}, fmt.Errorf("block %s: %w", hash, database.ErrNotFound)
	}

	return blockData, err
}

// ForEach returns an iterator over the blocks ordered by height. The blocks
// are read in one view transaction when the iterator is first used.
func (b *Badger) ForEach() database.Iterator {
	return &badgerIterator{db: b.db}
}

// Reset drops every key in the store.
func (b *Badger) Reset() error {
	return b.db.DropAll()
}

func blockKey(height uint64, hash string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", blockPrefix, height, hash))
}

// =============================================================================

// badgerIterator walks the blocks read from the store.
type badgerIterator struct {
	db     *badger.DB
	loaded bool
	slice  sliceIterator
}

// Next returns the next block.
func (bi *badgerIterator) Next() (database.BlockData, error) {
	if !bi.loaded {
		blocks, err := bi.load()
		if err != nil {
			return database.BlockData{}, err
		}
		bi.slice.blocks = blocks
		bi.loaded = true
	}

	return bi.slice.Next()
}

// Done returns the end of chain value.
func (bi *badgerIterator) Done() bool {
	return bi.slice.Done()
}

func (bi *badgerIterator) load() ([]database.BlockData, error) {
	var blocks []database.BlockData

	err := bi.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(blockPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var blockData database.BlockData
				if err := json.Unmarshal(val, &blockData); err != nil {
					return err
				}
				blocks = append(blocks, blockData)
				return nil
			})
			if err != nil {
				return err
			}
		}

		return nil
	})

	return blocks, err
}
