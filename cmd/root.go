// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/ngcap/internal/config"
	"firestige.xyz/ngcap/internal/log"
	"firestige.xyz/ngcap/internal/output"
)

var (
	// Global flags
	configFile   string
	logLevel     string
	outputFormat string

	// cfg is loaded before any subcommand runs.
	cfg *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ngcap",
	Short: "ngcap - pcapng capture file toolkit",
	Long: `ngcap reads, checks and rewrites pcapng capture files.

It understands every standard block type, keeps unknown and vendor blocks
intact when copying, and can filter packets with BPF expressions.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override the configured log level")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"output format: table, json or yaml")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(validateCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if err := log.Init(loaded.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg = loaded
	return nil
}

// printer builds the output printer for the --output flag.
func printer(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), format), nil
}
