package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cobblechat/cobblechat/cmd/cobblechat/internal"
	"github.com/cobblechat/cobblechat/pkg/auth"
	"github.com/cobblechat/cobblechat/pkg/bridge"
	"github.com/cobblechat/cobblechat/pkg/bus"
	"github.com/cobblechat/cobblechat/pkg/config"
	"github.com/cobblechat/cobblechat/pkg/gateway"
	"github.com/cobblechat/cobblechat/pkg/keepalive"
	"github.com/cobblechat/cobblechat/pkg/mc"
	"github.com/cobblechat/cobblechat/pkg/relay"
	"github.com/cobblechat/cobblechat/pkg/session"
)

func gatewayCmd(configPath string, debug bool) error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		fmt.Println("🔍 Debug mode enabled")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	connector, err := buildConnector(cfg)
	if err != nil {
		return err
	}

	msgBus := bus.NewMessageBus()
	registry := session.NewRegistry(connector, mc.AuthMode(cfg.Connector.AuthMode), msgBus)

	hub, err := relay.NewHub(registry, msgBus)
	if err != nil {
		return fmt.Errorf("error creating relay hub: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridges := buildBridges(cfg)
	for _, b := range bridges {
		if err := b.Start(ctx); err != nil {
			fmt.Printf("⚠ Bridge %s failed to start: %v\n", b.Name(), err)
			continue
		}
		hub.AddSink(b)
		fmt.Printf("✓ Bridge enabled: %s\n", b.Name())
	}

	var keepaliveSvc *keepalive.Service
	if len(cfg.Keepalive) > 0 {
		keepaliveSvc, err = keepalive.NewService(cfg.Keepalive, hub)
		if err != nil {
			return fmt.Errorf("error creating keepalive service: %w", err)
		}
		keepaliveSvc.Start(ctx)
		fmt.Printf("✓ Keepalive service started (%d jobs)\n", len(cfg.Keepalive))
	}

	var flow *auth.Flow
	if cfg.Connector.AuthMode == "microsoft" {
		flow = auth.NewFlow(cfg.Auth.ClientID, auth.NewStore(cfg.Auth.CacheDir))
		fmt.Println("✓ Microsoft device-code authentication enabled")
	}

	go hub.Run(ctx)

	srv := gateway.NewServer(
		cfg.Gateway,
		registry,
		hub,
		msgBus,
		flow,
		time.Duration(cfg.Connector.ConnectTimeoutSeconds)*time.Second,
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(ctx, cfg.Addr())
	}()

	fmt.Printf("✓ Gateway started on %s\n", cfg.Addr())
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	select {
	case <-sigChan:
		fmt.Println("\nShutting down...")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("gateway server: %w", err)
		}
	}

	cancel()
	if keepaliveSvc != nil {
		keepaliveSvc.Stop()
	}
	for _, b := range bridges {
		if b.IsRunning() {
			_ = b.Stop(context.Background())
		}
	}
	registry.CloseAll()
	msgBus.Close()
	fmt.Println("✓ Gateway stopped")

	return nil
}

func buildConnector(cfg *config.Config) (mc.Connector, error) {
	switch cfg.Connector.Backend {
	case "loopback":
		return mc.NewLoopbackConnector(), nil
	default:
		return nil, fmt.Errorf("unknown connector backend %q", cfg.Connector.Backend)
	}
}

func buildBridges(cfg *config.Config) []bridge.Bridge {
	var bridges []bridge.Bridge
	if cfg.Bridges.Discord.Enabled {
		bridges = append(bridges, bridge.NewDiscordBridge(cfg.Bridges.Discord.DiscordConfig))
	}
	if cfg.Bridges.Slack.Enabled {
		bridges = append(bridges, bridge.NewSlackBridge(cfg.Bridges.Slack.SlackConfig))
	}
	if cfg.Bridges.Telegram.Enabled {
		bridges = append(bridges, bridge.NewTelegramBridge(cfg.Bridges.Telegram.TelegramConfig))
	}
	return bridges
}
