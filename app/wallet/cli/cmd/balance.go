package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var tip string

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&tip, "tip", "t", "", "Branch to read, the resolved tip when empty.")
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	accountID := database.PublicKeyToAccountID(privateKey.PublicKey)
	fmt.Println("For Account:", accountID)

	path := fmt.Sprintf("/v1/accounts/balance/%s", accountID)
	if tip != "" {
		path += "?tip=" + tip
	}

	var bal struct {
		Balance int64 `json:"balance"`
	}
	if err := get(path, &bal); err != nil {
		log.Fatal(err)
	}

	fmt.Println(bal.Balance)
}
