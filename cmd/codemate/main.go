package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "codemate",
	Short: "CodeMate — study-group coding practice from the terminal",
	Long:  "CodeMate is a command-line client for the CodeMate platform: log in with Google, manage study teams, configure problem-recommendation schedules, and browse solved.ac problems.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, env/defaults only)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging and a metrics dump on exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
