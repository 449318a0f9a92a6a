package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var nonceCmd = &cobra.Command{
	Use:   "nonce",
	Short: "Print the highest nonce your account used",
	Run:   nonceRun,
}

func init() {
	rootCmd.AddCommand(nonceCmd)
}

func nonceRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	n, err := nonceOf(database.PublicKeyToAccountID(privateKey.PublicKey))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(n)
}

// nonceOf asks the node for the highest nonce used by the account, -1 when
// it never sent anything.
func nonceOf(accountID database.AccountID) (int64, error) {
	var resp struct {
		Nonce int64 `json:"nonce"`
	}
	if err := get(fmt.Sprintf("/v1/accounts/nonce/%s", accountID), &resp); err != nil {
		return 0, err
	}

	return resp.Nonce, nil
}
