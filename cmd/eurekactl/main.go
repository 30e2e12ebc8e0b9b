// eurekactl - terminal client for the Eureka realtime agent backend.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serverFlag   string
	logLevelFlag string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eurekactl",
	Short: "Terminal client for the Eureka voice agent backend",
	Long: `eurekactl - terminal client for the Eureka voice agent backend.

Requests ephemeral credentials from a running backend and drives a text
conversation with the realtime agent from the terminal.

Environment:
  EUREKA_SERVER           Backend base URL (default: http://localhost:8080)
  OPENAI_REALTIME_URL     Realtime WebSocket endpoint
  OPENAI_REALTIME_MODEL   Realtime model name
  N8N_WEBHOOK_URL         Webhook used by the submit_project tool`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevelFlag)
		if err != nil {
			level = logrus.WarnLevel
		}
		logrus.SetLevel(level)
		logrus.SetOutput(cmd.ErrOrStderr())
	},
}

func init() {
	server := os.Getenv("EUREKA_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", server,
		"Backend base URL")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn",
		"Log level for diagnostics on stderr")

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(chatCmd)
}
