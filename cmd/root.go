package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"amqprpc/internal/logger"
)

var (
	verbose    bool
	configPath string
	log        = logger.New()
)

var rootCmd = &cobra.Command{
	Use:   "rpc",
	Short: "rpc is the correlation and subscription engine CLI",
	Long: `rpc drives request/response traffic over a broker-backed RPC bus.
It can host a responder, dispatch a single request, or report live bus
statistics over HTTP.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetSilentMode(false)
		if verbose {
			logger.SetLevel("debug")
		} else {
			logger.SetLevel("info")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rpc.yml", "path to the bus configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(initCmd)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
