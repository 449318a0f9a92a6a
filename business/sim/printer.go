package sim

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/strategy"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Printer renders the block tree of a node and the result of a run.
type Printer struct {
	w        io.Writer
	resolved *color.Color
	stale    *color.Color
	attacker *color.Color
	title    *color.Color
}

// NewPrinter constructs a printer. The mode is auto, always or never; auto
// colors only when stdout is a terminal.
func NewPrinter(w io.Writer, mode string) *Printer {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	}

	return &Printer{
		w:        w,
		resolved: color.New(color.FgGreen),
		stale:    color.New(color.FgHiBlack),
		attacker: color.New(color.FgRed, color.Bold),
		title:    color.New(color.FgCyan, color.Bold),
	}
}

// Tree prints the resolved branch of the node followed by every branch that
// lost, each starting at the block after the fork point.
func (p *Printer) Tree(n *Network, node *Node) error {
	st := node.State

	main, err := st.ChainFrom("")
	if err != nil {
		return err
	}

	onMain := make(map[string]struct{}, len(main))
	for _, block := range main {
		onMain[block.Hash()] = struct{}{}
	}

	p.title.Fprintf(p.w, "blocks seen by %s\n", node.Host)
	for _, block := range main {
		p.block(n, block, p.resolved, "")
	}

	tip := st.Resolve().Hash()
	for _, other := range st.Tips() {
		if other.Hash() == tip {
			continue
		}

		branch, err := st.ChainFrom(other.Hash())
		if err != nil {
			return err
		}

		var lost []database.Block
		for _, block := range branch {
			if _, exists := onMain[block.Hash()]; !exists {
				lost = append(lost, block)
			}
		}
		if len(lost) == 0 {
			continue
		}

		p.title.Fprintf(p.w, "  stale branch from #%d\n", lost[0].Number-1)
		for _, block := range lost {
			p.block(n, block, p.stale, "  ")
		}
	}

	return nil
}

func (p *Printer) block(n *Network, block database.Block, c *color.Color, indent string) {
	if n.attacker != nil && block.MinerID == n.attacker.State.MinerID() {
		c = p.attacker
	}

	miner := "genesis"
	if block.Number > 0 {
		miner = n.NameOf(block.MinerID)
	}

	c.Fprintf(p.w, "%s#%-4d %s  %-9s trans[%d]\n", indent, block.Number, block.Hash()[:16], miner, len(block.Values()))
}

// Result prints the summary of a run.
func (p *Printer) Result(res Result) {
	p.title.Fprintf(p.w, "scenario %s, %d rounds\n", res.Scenario, res.Rounds)

	lines := []string{
		fmt.Sprintf("height      %d", res.Height),
		fmt.Sprintf("tips        %d", res.Tips),
		fmt.Sprintf("agreed      %t", res.Agreed),
	}

	if res.AttackerWins > 0 || res.Scenario != strategy.Honest {
		lines = append(lines, fmt.Sprintf("attacker    %d blocks, %.0f%% of the chain", res.AttackerWins, res.AttackerPct*100))
	}

	if res.Payment != nil {
		lines = append(lines,
			fmt.Sprintf("payment     %s value[%d]", res.Payment, res.Payment.Value),
			fmt.Sprintf("victim      %d", res.VictimFunds),
		)
	}

	fmt.Fprintln(p.w, strings.Join(lines, "\n"))

	if res.Payment == nil {
		return
	}

	switch res.Confirmed {
	case true:
		p.resolved.Fprintln(p.w, "payment     confirmed")
	default:
		p.attacker.Fprintln(p.w, "payment     reversed")
	}
}
