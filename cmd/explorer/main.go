// Package main implements the novacode explorer CLI: print a project's tree,
// dump a file, or browse interactively.
package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/novacode/novacode/pkg/client"
	"github.com/novacode/novacode/pkg/logging"
	"github.com/novacode/novacode/pkg/protocol"
)

var (
	serverURL     string
	authToken     string
	listingFormat string
	timeout       time.Duration
	logLevel      string
	version       = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "explorer",
	Short: "Explore novacode projects",
	Long: `explorer reads a project's directory tree and file contents from a
novacode server.

Settings fall back to NOVACODE_SERVER and NOVACODE_TOKEN, read from the
environment or a .env file in the working directory.`,
	Version:       version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.InitCLI()
		logging.SetLevel(logLevel)
		_, err := protocol.ParseListingFormat(listingFormat)
		return err
	},
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("NOVACODE_SERVER", "http://localhost:8080"), "novacode server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("NOVACODE_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().StringVar(&listingFormat, "format", string(protocol.FormatFlat), "listing format to request (flat or nested)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(healthCmd)
}

func newClient() *client.Client {
	format, _ := protocol.ParseListingFormat(listingFormat)
	return client.New(client.Config{
		BaseURL:       serverURL,
		Timeout:       timeout,
		AuthToken:     authToken,
		ListingFormat: format,
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
