package main

import (
	"os"

	"github.com/crosslane-network/mailbox/cmd/mbx/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
