// This program runs a network of nodes in process and prints how the chain
// turned out under the chosen mining strategy.
package main

import "github.com/ardanlabs/nakamoto/app/tooling/sim/cmd"

func main() {
	cmd.Execute()
}
