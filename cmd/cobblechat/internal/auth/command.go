package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cobblechat/cobblechat/cmd/cobblechat/internal"
	"github.com/cobblechat/cobblechat/pkg/auth"
)

func NewAuthCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "auth <owner>",
		Short: "Sign in a Minecraft account via Microsoft device code",
		Args:  cobra.ExactArgs(1),
		Example: `  cobblechat auth Alice
  cobblechat auth Alice --config /path/to/config.json`,
		RunE: func(_ *cobra.Command, args []string) error {
			return authCmd(configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (default: ~/.cobblechat/config.json)")

	return cmd
}

func authCmd(configPath, owner string) error {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	store := auth.NewStore(cfg.Auth.CacheDir)
	flow := auth.NewFlow(cfg.Auth.ClientID, store)

	da, err := flow.BeginDeviceAuth(context.Background(), owner)
	if err != nil {
		return fmt.Errorf("device authorization failed: %w", err)
	}

	if da.AlreadyCached {
		fmt.Printf("✓ %s already signed in (cached token)\n", owner)
		return nil
	}

	fmt.Printf("To sign in %s, open:\n\n  %s\n\nand enter code: %s\n\n", owner, da.VerificationURI, da.UserCode)
	fmt.Println("Waiting for approval...")

	// BeginDeviceAuth polls in the background; block here until the token
	// lands in the cache or the code expires.
	deadline := time.Now().Add(time.Duration(da.ExpiresIn) * time.Second)
	for time.Now().Before(deadline) {
		if tok, err := store.Load(owner); err == nil && tok.Valid() {
			fmt.Printf("✓ %s signed in\n", owner)
			return nil
		}
		time.Sleep(2 * time.Second)
	}
	return fmt.Errorf("device code expired before approval")
}
