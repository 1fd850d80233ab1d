// Command chatprobe runs manual sanity checks against a running findash server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"findash/internal/probe"
)

var (
	serverURL string
	token     string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "chatprobe",
	Short:         "Sanity checks for the findash chat service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("FINDASH_URL", "http://127.0.0.1:8080"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("FINDASH_TOKEN"), "bearer token for owned conversations")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")

	rootCmd.AddCommand(chatCmd, panelCmd, healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chatprobe:", err)
		os.Exit(1)
	}
}

func newClient() *probe.Client {
	return probe.New(serverURL, token, timeout)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
