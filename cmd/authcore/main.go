// Command authcore is the operator CLI for the authcore engine: schema
// migrations, signing key generation and a local login simulation.
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
