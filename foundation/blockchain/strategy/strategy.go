// Package strategy provides the mining strategies a node can run. Every
// strategy shares the same mining engine and differs only in which branch it
// extends and when it releases the blocks it finds.
package strategy

import (
	"fmt"
	"sort"
)

// Kind names a mining strategy.
type Kind string

// List of different mining strategies.
const (
	Honest      Kind = "honest"
	DoubleSpend Kind = "doublespend"
	Selfish     Kind = "selfish"
)

// Map of different mining strategies.
var kinds = map[string]Kind{
	string(Honest):      Honest,
	string(DoubleSpend): DoubleSpend,
	string(Selfish):     Selfish,
}

// Retrieve returns the specified mining strategy.
func Retrieve(name string) (Kind, error) {
	kind, exists := kinds[name]
	if !exists {
		return "", fmt.Errorf("strategy %q does not exist", name)
	}
	return kind, nil
}

// Names returns the known strategies in sorted order.
func Names() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Withholds reports if the strategy mines blocks on a private branch and
// decides later when to release them.
func (k Kind) Withholds() bool {
	return k == DoubleSpend || k == Selfish
}

// Retargets reports if the strategy rewrites its own pending transactions
// to pay itself on the private branch.
func (k Kind) Retargets() bool {
	return k == DoubleSpend
}

// =============================================================================

// Action is what a withholding miner does with the blocks it has not
// published yet.
type Action int

// Set of actions a withholding miner can take.
const (
	Wait          Action = iota // Keep withholding.
	Adopt                       // Drop the private branch and mine on the public tip.
	Race                        // Publish everything to tie the public branch.
	Override                    // Publish everything and win, the private branch restarts.
	PublishOldest               // Release the oldest unpublished block.
)

// String implements the fmt.Stringer interface for logging.
func (a Action) String() string {
	switch a {
	case Wait:
		return "wait"
	case Adopt:
		return "adopt"
	case Race:
		return "race"
	case Override:
		return "override"
	case PublishOldest:
		return "publish-oldest"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// PublishesAll reports if the action releases every withheld block.
func (a Action) PublishesAll() bool {
	return a == Race || a == Override
}

// ReactToPeerBlock decides what a selfish miner does when a competing block
// arrives. The lead is the private height minus the public height measured
// before the block arrived.
func ReactToPeerBlock(lead int64) Action {
	switch {
	case lead <= 0:
		return Adopt
	case lead == 1:
		return Race
	case lead == 2:
		return Override
	default:
		return PublishOldest
	}
}

// ReactToOwnBlock decides what a selfish miner does after finding a block.
// The lead is measured before the block was found and the private length
// counts the new block. Winning a tie race releases the whole branch.
func ReactToOwnBlock(lead int64, privateLen int) Action {
	if lead == 0 && privateLen == 2 {
		return Override
	}

	return Wait
}

// ShouldPublish decides if a double-spend miner releases its hidden branch.
// The branch is only released once it is strictly taller than the public one
// so honest nodes reorg onto it.
func ShouldPublish(hiddenHeight uint64, publicHeight uint64) bool {
	return hiddenHeight > publicHeight
}
