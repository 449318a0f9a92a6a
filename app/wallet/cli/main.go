package main

import "github.com/ardanlabs/nakamoto/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
