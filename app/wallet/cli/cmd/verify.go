package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/p2p"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/spv"
	"github.com/ardanlabs/nakamoto/foundation/logger"
	"github.com/spf13/cobra"
)

var (
	txFile  string
	peers   []string
	timeout time.Duration
	verbose bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a payment is on the chain holding block headers only",
	Run:   verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVarP(&txFile, "tx", "x", "", "File holding the signed payment, see send --out.")
	verifyCmd.Flags().StringSliceVar(&peers, "peers", []string{"0.0.0.0:9080", "0.0.0.0:9180"}, "Private hosts of the nodes to ask.")
	verifyCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Time allowed for the nodes to answer.")
	verifyCmd.Flags().BoolVar(&verbose, "verbose", false, "Print what the light client does.")
	verifyCmd.MarkFlagRequired("tx")
}

func verifyRun(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(txFile)
	if err != nil {
		log.Fatal(err)
	}

	var signedTx database.SignedTx
	if err := json.Unmarshal(data, &signedTx); err != nil {
		log.Fatal(err)
	}

	ev := func(v string, args ...any) {}
	if verbose {
		evLog, err := logger.New("WALLET", "stderr")
		if err != nil {
			log.Fatal(err)
		}
		defer evLog.Sync()

		ev = logger.EvHandler(evLog, "verify", nil)
	}

	peerSet := peer.NewPeerSet()
	for _, host := range peers {
		peerSet.Add(peer.New(host))
	}

	client := spv.New(spv.Config{
		Transport: p2p.NewClient(ev),
		Peers:     peerSet,
		EvHandler: ev,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.SyncHeaders(ctx); err != nil {
		log.Fatal(err)
	}

	v, err := client.VerifyTransaction(ctx, signedTx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("payment %s is in block %s\n", signedTx, v.BlockHash)
}
