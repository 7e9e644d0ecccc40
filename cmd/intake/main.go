// Package main provides the intake CLI: it walks an applicant through the
// application form with autosaved drafts, records their analytics consent,
// submits to the portal API, and reads the customer dashboard.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blockhost-portal/internal/client"
	"blockhost-portal/internal/common/logger"
)

var version = "dev"

// settings are resolved from flags first, then BLOCKHOST_* environment variables.
var settings = viper.New()

func main() {
	rootCmd := &cobra.Command{
		Use:   "intake",
		Short: "Apply for BlockHost creator hosting and inspect your servers",
		Long: `intake is a terminal client for the BlockHost portal.

It fills in and submits creator applications (standard or founding), keeping
a local draft between sessions, and lists the game servers linked to your
dashboard account.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return settings.BindPFlags(cmd.Flags())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("server", "http://localhost:8080", "Portal API base URL")
	flags.String("store", "file", "Local storage for drafts and consent: memory, file or redis")
	flags.String("store-path", defaultStorePath(), "Path of the file store")
	flags.String("redis-addr", "localhost:6379", "Redis address for the redis store")
	flags.String("redis-prefix", "blockhost-intake", "Key prefix for the redis store")
	flags.String("analytics-url", "", "Elasticsearch URL for usage analytics; empty disables sending")
	flags.String("analytics-index", "portal-events", "Elasticsearch index for usage analytics")
	flags.String("log-level", "warn", "Log level: debug, info, warn, error")

	settings.SetEnvPrefix("BLOCKHOST")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newDraftCmd())
	rootCmd.AddCommand(newConsentCmd())
	rootCmd.AddCommand(newServersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() logger.Logger {
	return logger.NewStructured(settings.GetString("log-level"), "console")
}

func newPortalClient() *client.Client {
	return client.New(settings.GetString("server"), client.DefaultTimeout)
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".blockhost-intake.json"
	}
	return fmt.Sprintf("%s/blockhost/intake.json", dir)
}
