package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"amqprpc/internal/broker/zmqbroker"
	"amqprpc/internal/rpcbus"
)

var callIdentity string

var callCmd = &cobra.Command{
	Use:   "call [message]",
	Short: "Dispatch a single Echo request and print the response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadBusConfiguration()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		identity := callIdentity
		if identity == "" {
			identity = "rpc-call"
		}

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

		resp, err := rpcbus.Request[rpcbus.EchoRequest, rpcbus.EchoResponse](cmd.Context(), bus, rpcbus.EchoRequest{Message: args[0]}, nil)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		cmd.Printf("echoed=%v message=%q\n", resp.Echoed, resp.Message)
		return nil
	},
}

func init() {
	callCmd.Flags().StringVar(&callIdentity, "identity", "", "ZMQ socket identity (defaults to \"rpc-call\")")
}
