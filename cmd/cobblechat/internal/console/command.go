package console

import (
	"github.com/spf13/cobra"
)

func NewConsoleCommand() *cobra.Command {
	var gatewayURL string
	var subscribe bool

	cmd := &cobra.Command{
		Use:   "console <sessionId>",
		Short: "Interactive terminal viewer for a relayed session",
		Args:  cobra.ExactArgs(1),
		Example: `  cobblechat console Alice:mc.example.net
  cobblechat console Alice:mc.example.net --gateway http://relay.local:3500
  cobblechat console Alice:mc.example.net --subscribe`,
		RunE: func(_ *cobra.Command, args []string) error {
			return consoleCmd(gatewayURL, args[0], subscribe)
		},
	}

	cmd.Flags().StringVarP(&gatewayURL, "gateway", "g", "http://127.0.0.1:3500", "Gateway base URL")
	cmd.Flags().BoolVarP(&subscribe, "subscribe", "s", false, "Only show chat from this session (default: all sessions)")

	return cmd
}
