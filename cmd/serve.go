package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"amqprpc/internal/broker/zmqbroker"
	"amqprpc/internal/logger"
	"amqprpc/internal/rpcbus"
)

var (
	serveStatusAddr string
	serveIdentity   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host the built-in Echo responder and a live status endpoint",
	Long: `serve connects to the configured broker, registers the Echo
responder, and serves bus statistics over HTTP until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadBusConfiguration()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		identity := serveIdentity
		if identity == "" {
			identity = cfg.Broker.Identity
		}

		if !verbose {
			logger.SetLevel(cfg.Logging.Level)
		}
		log := logger.New()

		log.Info().
			Str("broker_address", cfg.Broker.Address).
			Str("identity", identity).
			Msg("starting rpc responder host")

		client := zmqbroker.New(cfg.Broker.Address, identity)
		if err := client.Start(); err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer client.Close()

		bus := rpcbus.New(client, rpcbus.WithConfig(rpcbus.Config{
			DefaultTimeout:  cfg.DefaultTimeout(),
			DefaultPrefetch: cfg.Bus.DefaultPrefetch,
		}))
		defer bus.Dispose()

		handle, err := rpcbus.Respond(cmd.Context(), bus, echoResponder, nil)
		if err != nil {
			return fmt.Errorf("failed to start echo responder: %w", err)
		}
		defer handle.Close()

		status := rpcbus.NewStatusServer(bus)
		go func() {
			if err := status.Start(serveStatusAddr); err != nil {
				log.Error().Err(err).Msg("status server stopped with error")
			}
		}()
		defer status.Stop()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

		return nil
	},
}

func echoResponder(_ context.Context, req rpcbus.EchoRequest, _ map[string]any) (rpcbus.EchoResponse, error) {
	return rpcbus.EchoResponse{Message: req.Message, Echoed: true}, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveStatusAddr, "status-address", ":8080", "address the status HTTP endpoint listens on")
	serveCmd.Flags().StringVar(&serveIdentity, "identity", "", "ZMQ socket identity (defaults to the value in the config file)")
}
