// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time `json:"date"`
	TransPerBlock uint16    `json:"trans_per_block"` // The maximum number of transactions that can be in a block.
	Target        string    `json:"target"`          // Fixed length hex value a block hash must be below.
	MiningReward  uint64    `json:"mining_reward"`   // Reward for mining a block.
}

// Default returns the settings used when no genesis file is provided. The
// target is easy enough for a laptop to find a block in well under a second.
func Default() Genesis {
	return Genesis{
		Date:          time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC),
		TransPerBlock: 10,
		Target:        "0000ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		MiningReward:  100,
	}
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the genesis values can run a chain.
func (g Genesis) Validate() error {
	if len(g.Target) != 64 {
		return errors.New("target must be 64 hex characters")
	}

	for _, c := range []byte(g.Target) {
		if !('0' <= c && c <= '9') && !('a' <= c && c <= 'f') {
			return errors.New("target must be lowercase hex")
		}
	}

	if g.TransPerBlock == 0 {
		return errors.New("trans_per_block must be greater than zero")
	}

	return nil
}
