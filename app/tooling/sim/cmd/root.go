// Package cmd contains the simulator commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/nakamoto/business/sim"
	"github.com/ardanlabs/nakamoto/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	watch      bool
	showNode   int
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the scenario file, scenario.yaml in the working directory by default.")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Run again every time the scenario file changes.")
	rootCmd.Flags().IntVarP(&showNode, "node", "n", 1, "Honest node whose view of the tree is printed.")
}

var rootCmd = &cobra.Command{
	Use:          "sim",
	Short:        "Replay honest, double-spend and selfish mining runs",
	SilenceUsage: true,
	RunE:         runE,
}

// Execute runs the simulator.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runE(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := sim.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := play(ctx, cfg, log); err != nil {
		return err
	}

	if !watch {
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nwatching %s\n", configPath)

	rerun := func(cfg sim.Config) {
		fmt.Fprintln(cmd.OutOrStdout())
		if err := play(ctx, cfg, log); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "run:", err)
		}
	}
	onErr := func(err error) {
		fmt.Fprintln(cmd.ErrOrStderr(), "config:", err)
	}

	if err := sim.WatchConfig(ctx, configPath, rerun, onErr); err != nil {
		return err
	}

	<-ctx.Done()

	return nil
}

// play runs one scenario and prints the tree and the summary.
func play(ctx context.Context, cfg sim.Config, log *zap.SugaredLogger) error {
	network, err := sim.New(cfg, logger.EvHandler(log, "sim", nil))
	if err != nil {
		return err
	}

	res, err := network.Run(ctx)
	if err != nil {
		return err
	}

	idx := showNode - 1
	if idx < 0 || idx >= cfg.HonestNodes {
		return fmt.Errorf("node %d, want 1 to %d", showNode, cfg.HonestNodes)
	}

	p := sim.NewPrinter(os.Stdout, cfg.Color)
	if err := p.Tree(network, network.Nodes[idx]); err != nil {
		return err
	}
	fmt.Println()
	p.Result(res)

	return nil
}

// newLogger writes the node events to the configured file. Without one the
// events are dropped so only the tree reaches the terminal.
func newLogger(cfg sim.Config) (*zap.SugaredLogger, error) {
	if cfg.LogPath == "" {
		return zap.NewNop().Sugar(), nil
	}

	return logger.New("SIM", cfg.LogPath)
}
