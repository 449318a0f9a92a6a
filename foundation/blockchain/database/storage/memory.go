package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
)

// Memory keeps blocks in a map. It is used by tests and by the simulation
// tool where nothing needs to survive the process. This implements the
// database.Serializer interface.
type Memory struct {
	mu     sync.RWMutex
	blocks map[string]database.BlockData
}

// NewMemory constructs a Memory value for use.
func NewMemory() *Memory {
	return &Memory{
		blocks: make(map[string]database.BlockData),
	}
}

// Close has nothing to release.
func (m *Memory) Close() error {
	return nil
}

// Write stores the block by hash.
func (m *Memory) Write(blockData database.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks[blockData.Hash] = blockData
	return nil
}

// GetBlock returns the block with the specified hash.
func (m *Memory) GetBlock(hash string) (database.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blockData, exists := m.blocks[hash]
	if !exists {
		return database.BlockData{}, fmt.Errorf("block %s: %w", hash, database.ErrNotFound)
	}

	return blockData, nil
}

// ForEach returns an iterator over a snapshot of the blocks ordered by
// height then hash.
func (m *Memory) ForEach() database.Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocks := make([]database.BlockData, 0, len(m.blocks))
	for _, blockData := range m.blocks {
		blocks = append(blocks, blockData)
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Number != blocks[j].Number {
			return blocks[i].Number < blocks[j].Number
		}
		return blocks[i].Hash < blocks[j].Hash
	})

	return &sliceIterator{blocks: blocks}
}

// Reset drops every block.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = make(map[string]database.BlockData)
	return nil
}

// =============================================================================

// sliceIterator walks a slice of blocks already in height order.
type sliceIterator struct {
	blocks  []database.BlockData
	current int
	eoc     bool
}

// Next returns the next block.
func (si *sliceIterator) Next() (database.BlockData, error) {
	if si.current >= len(si.blocks) {
		si.eoc = true
		return database.BlockData{}, database.ErrEndOfChain
	}

	blockData := si.blocks[si.current]
	si.current++

	return blockData, nil
}

// Done returns the end of chain value.
func (si *sliceIterator) Done() bool {
	return si.eoc
}
