// This program reads a node's block store while the node is down and prints
// what the chain tree rebuilt from it looks like.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/nakamoto/app/tooling/admin/commands"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/database/storage"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/genesis"
	"github.com/ardanlabs/nakamoto/foundation/logger"
	"github.com/ardanlabs/nakamoto/foundation/nameservice"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger. Only failures are worth a line,
	// the command output goes to stdout.
	log, err := logger.New("ADMIN", "stderr")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg := struct {
		conf.Version
		Args        conf.Args
		GenesisPath string `conf:"default:zblock/genesis.json"`
		DBPath      string `conf:"default:zblock/miner1/"`
		Storage     string `conf:"default:badger,help:badger|disk"`
		Accounts    string `conf:"default:zblock/accounts/"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "commands: tips | bals [tip] | chain [tip]",
		},
	}

	const prefix = "ADMIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	gen, err := genesis.Load(cfg.GenesisPath)
	if err != nil {
		return err
	}

	var store database.Serializer
	switch cfg.Storage {
	case "badger":
		store, err = storage.NewBadger(cfg.DBPath)
	case "disk":
		store, err = storage.NewDisk(cfg.DBPath)
	default:
		err = fmt.Errorf("unknown storage %q", cfg.Storage)
	}
	if err != nil {
		return err
	}

	chain, err := database.NewChainTree(database.Config{
		Genesis:    gen,
		Serializer: store,
		EvHandler:  logger.EvHandler(log, "admin", nil),
	})
	if err != nil {
		store.Close()
		return err
	}
	defer chain.Close()

	// Names are a convenience, the raw accounts are printed without them.
	ns, err := nameservice.New(cfg.Accounts)
	if err != nil {
		log.Warnw("startup", "status", "nameservice", "WARNING", err)
		ns = nil
	}

	return processCommands(cfg.Args, chain, ns)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args conf.Args, chain *database.ChainTree, ns *nameservice.NameService) error {
	view := commands.NewView(os.Stdout, chain, ns)

	switch args.Num(0) {
	case "tips":
		if err := view.Tips(); err != nil {
			return fmt.Errorf("getting tips: %w", err)
		}
	case "bals":
		if err := view.Balances(args.Num(1)); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}
	case "chain":
		if err := view.Chain(args.Num(1)); err != nil {
			return fmt.Errorf("getting chain: %w", err)
		}
	default:
		return fmt.Errorf("unknown command %q, want tips, bals or chain", args.Num(0))
	}

	return nil
}
