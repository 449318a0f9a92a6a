package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var overwrite bool

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a new private key to the account file",
	Run:   generateRun,
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the account id of the private key",
	Run:   accountRun,
}

func init() {
	generateCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing key file.")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(accountCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	path := getPrivateKeyPath()

	// Losing a key loses the funds of the account.
	if _, err := os.Stat(path); err == nil && !overwrite {
		log.Fatalf("%s already exists, use --overwrite to replace it", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal(err)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s\n%s\n", path, database.PublicKeyToAccountID(privateKey.PublicKey))
}

func accountRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(database.PublicKeyToAccountID(privateKey.PublicKey))
}
