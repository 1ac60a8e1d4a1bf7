package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "chanserv",
		Short:        "Chat channel server with membership and moderation",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newChatCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
