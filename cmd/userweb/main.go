package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/userweb/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "userweb",
	Short:   "Serve every user's ~/www over HTTP",
	Long: `Userweb is a multi-user web server. A request for /<username>/<path>
is served from the www directory in that user's home: static files,
executable index and form handlers, and generated directory listings.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg.Env, cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeatable (default: ./userweb.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: USERWEB_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("home-base", "", "directory holding home directories, instead of the user database (env: USERWEB_SITES_HOME_BASE)")
	rootCmd.PersistentFlags().String("site-dir", "", "site directory name inside a home directory (default: www)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
