package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/convkit/convertor/internal/logging"
)

var cfgFile string
var verbose bool
var logFile string

var rootCmd = &cobra.Command{
	Use:   "convertor",
	Short: "Subscription profile conversion server for Surge and Clash",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose, logFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "convertor.toml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stdout (overwrites file)")
}
