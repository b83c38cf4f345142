// Package cmd implements the CLI commands for plexbridge.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexbridge/plexbridge/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "plexbridge",
	Short:   "IPTV to Plex bridge emulating an HDHomeRun network tuner",
	Version: version.Short(),
	Long: `plexbridge exposes configured IPTV streams to Plex by emulating a
SiliconDust HDHomeRun tuner. It answers SSDP discovery, serves the
HDHomeRun HTTP surface (discover.json, lineup, live streams), remuxes
upstreams through FFmpeg, and aggregates XMLTV guide data.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ., ./configs, /etc/plexbridge, $HOME/.plexbridge)")
}
