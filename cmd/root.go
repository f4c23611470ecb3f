package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global output flags only
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "go-vhdx",
	Short: "Read-only VHDX image decoder and inspector",
	Long: `go-vhdx is a read-only command-line tool for decoding and validating
VHDX virtual hard disk images: redundant headers, region tables, the
write-ahead log, the metadata table, and the block allocation table.

The decoder replays any pending log into an in-memory view before the
metadata and BAT are read; the image itself is never modified.

Commands:
  inspect     Decode the full image and print a summary
  header      Show the resolved header section
  log         Show the replayed log entries
  metadata    Show the metadata table and derived geometry
  bat         Show the block allocation table`,
	Version: "0.1.0-dev",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		if outputFormat != "table" && outputFormat != "json" {
			return fmt.Errorf("unknown output format %q, want table or json", outputFormat)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json)")
}

// initConfig loads optional defaults from a vhdx-config file.
func initConfig() {
	viper.SetConfigName("vhdx-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.vhdx")
	viper.AddConfigPath("/etc/vhdx")

	viper.SetDefault("output_format", "table")
	viper.SetDefault("bat_entry_limit", 64)

	if err := viper.ReadInConfig(); err == nil {
		logrus.WithField("file", viper.ConfigFileUsed()).Debug("config loaded")
	}
	if !rootCmd.PersistentFlags().Changed("output") {
		outputFormat = viper.GetString("output_format")
	}
}
