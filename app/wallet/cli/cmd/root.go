// Package cmd contains the wallet commands.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/nameservice"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
	url         string
)

const (
	keyExtension = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Path to the private key.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet for the nakamoto network",
}

// Execute runs the wallet.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	if !strings.HasSuffix(accountName, keyExtension) {
		accountName += keyExtension
	}

	return filepath.Join(accountPath, accountName)
}

// resolve accepts a name from the key folder or an account.
func resolve(nameOrAccount string) (database.AccountID, error) {
	ns, err := nameservice.New(accountPath)
	if err != nil {
		return database.ToAccountID(nameOrAccount)
	}

	return ns.Resolve(nameOrAccount)
}

// =============================================================================

// errorResponse is what the node answers with when a call fails.
type errorResponse struct {
	Error string `json:"error"`
}

func get(path string, dataRecv any) error {
	resp, err := http.Get(url + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, dataRecv)
}

func post(path string, dataSend any, dataRecv any) error {
	data, err := json.Marshal(dataSend)
	if err != nil {
		return err
	}

	resp, err := http.Post(url+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, dataRecv)
}

func decode(resp *http.Response, dataRecv any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		var er errorResponse
		body, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(body, &er); err != nil || er.Error == "" {
			return fmt.Errorf("%s: %s", resp.Status, string(body))
		}
		return fmt.Errorf("%s: %s", resp.Status, er.Error)
	}

	if dataRecv == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(dataRecv)
}
