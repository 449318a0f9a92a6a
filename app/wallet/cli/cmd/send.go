package cmd

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	to      string
	value   uint64
	comment string
	nonce   int64
	out     string
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a payment",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		signedTx, err := sendWithDetails(privateKey)
		if err != nil {
			log.Fatal(err)
		}

		data, err := json.MarshalIndent(signedTx, "", "  ")
		if err != nil {
			log.Fatal(err)
		}

		if out != "" {
			if err := os.WriteFile(out, data, 0644); err != nil {
				log.Fatal(err)
			}
		}

		fmt.Println(string(data))
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Name or account receiving the payment.")
	sendCmd.Flags().Uint64VarP(&value, "value", "v", 0, "Value to send.")
	sendCmd.Flags().StringVarP(&comment, "comment", "c", "", "Comment for the receiver.")
	sendCmd.Flags().Int64VarP(&nonce, "nonce", "n", -1, "Nonce to use, the next free one when negative.")
	sendCmd.Flags().StringVarP(&out, "out", "o", "", "File to keep the signed payment in for verify.")
}

func sendWithDetails(privateKey *ecdsa.PrivateKey) (database.SignedTx, error) {
	fromID := database.PublicKeyToAccountID(privateKey.PublicKey)

	toID, err := resolve(to)
	if err != nil {
		return database.SignedTx{}, err
	}

	n := nonce
	if n < 0 {
		used, err := nonceOf(fromID)
		if err != nil {
			return database.SignedTx{}, err
		}
		n = used + 1
	}

	tx, err := database.NewTx(fromID, toID, value, comment, uint64(n))
	if err != nil {
		return database.SignedTx{}, err
	}

	signedTx, err := tx.Sign(privateKey)
	if err != nil {
		return database.SignedTx{}, err
	}

	if err := post("/v1/tx/submit", signedTx, nil); err != nil {
		return database.SignedTx{}, err
	}

	return signedTx, nil
}
