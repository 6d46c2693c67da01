package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cobblechat/cobblechat/cmd/cobblechat/internal"
	"github.com/cobblechat/cobblechat/cmd/cobblechat/internal/auth"
	"github.com/cobblechat/cobblechat/cmd/cobblechat/internal/console"
	"github.com/cobblechat/cobblechat/cmd/cobblechat/internal/gateway"
	"github.com/cobblechat/cobblechat/cmd/cobblechat/internal/version"
)

func NewCobblechatCommand() *cobra.Command {
	short := fmt.Sprintf("%s cobblechat - Minecraft chat relay v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "cobblechat",
		Short:   short,
		Example: "cobblechat gateway",
	}

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		auth.NewAuthCommand(),
		console.NewConsoleCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewCobblechatCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
