// Package storage provides the Serializer implementations used to persist
// every block accepted into the chain tree.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
)

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// database.Serializer interface.
type Disk struct {
	dbPath string
}

// NewDisk constructs a Disk value for use.
func NewDisk(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each now block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write takes the specified database blocks and stores it on disk in a
// file labeled with the block height and hash. Forks produce several files
// at the same height.
func (d *Disk) Write(blockData database.BlockData) error {

	// Marshal the block for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(blockData, "", "  ")
	if err != nil {
		return err
	}

	// Create a new file for this block and name it based on the block height.
	f, err := os.OpenFile(d.getPath(blockData.Number, blockData.Hash), os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	// Write the new block to disk.
	if _, err := f.Write(data); err != nil {
		return err
	}

	return nil
}

// GetBlock searches the blocks on disk to locate and return the contents of
// the specified block by hash.
func (d *Disk) GetBlock(hash string) (database.BlockData, error) {
	matches, err := filepath.Glob(path.Join(d.dbPath, fmt.Sprintf("*-%s.json", hash)))
	if err != nil {
		return database.BlockData{}, err
	}

	if len(matches) == 0 {
		return database.BlockData{}, fmt.Errorf("block %s: %w", hash, database.ErrNotFound)
	}

	return d.readFile(matches[0])
}

// ForEach returns an iterator to walk through all the blocks ordered by
// height.
func (d *Disk) ForEach() database.Iterator {
	return &DiskIterator{disk: d}
}

// Reset will clear out the blocks on disk.
func (d *Disk) Reset() error {
	if err := os.RemoveAll(d.dbPath); err != nil {
		return err
	}

	return os.MkdirAll(d.dbPath, 0755)
}

// getPath forms the path to the specified block. The height is zero padded
// so the file names sort in height order.
func (d *Disk) getPath(height uint64, hash string) string {
	return path.Join(d.dbPath, fmt.Sprintf("%020d-%s.json", height, hash))
}

// readFile decodes a block file.
func (d *Disk) readFile(name string) (database.BlockData, error) {
	f, err := os.Open(name)
	if err != nil {
		return database.BlockData{}, err
	}
	defer f.Close()

	var blockData database.BlockData
	if err := json.NewDecoder(f).Decode(&blockData); err != nil {
		return database.BlockData{}, fmt.Errorf("decoding %s: %w", filepath.Base(name), err)
	}

	return blockData, nil
}

// list returns the block files sorted by name.
func (d *Disk) list() ([]string, error) {
	entries, err := os.ReadDir(d.dbPath)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, path.Join(d.dbPath, entry.Name()))
	}
	sort.Strings(names)

	return names, nil
}

// =============================================================================

// DiskIterator represents the iteration implementation for walking
// through and reading blocks on disk. This implements the database
// Iterator interface.
type DiskIterator struct {
	disk    *Disk    // Access to the disk storage API.
	names   []string // Block files captured on the first call to Next.
	loaded  bool     // Represents the directory has been listed.
	current int      // Current file being iterated over.
	eoc     bool     // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from disk.
func (di *DiskIterator) Next() (database.BlockData, error) {
	if di.eoc {
		return database.BlockData{}, database.ErrEndOfChain
	}

	if !di.loaded {
		names, err := di.disk.list()
		if err != nil {
			return database.BlockData{}, err
		}
		di.names = names
		di.loaded = true
	}

	if di.current >= len(di.names) {
		di.eoc = true
		return database.BlockData{}, database.ErrEndOfChain
	}

	name := di.names[di.current]
	di.current++

	return di.disk.readFile(name)
}

// Done returns the end of chain value.
func (di *DiskIterator) Done() bool {
	return di.eoc
}
