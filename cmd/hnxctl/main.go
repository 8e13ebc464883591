package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wnxd/hnx/internal/config"
	"github.com/wnxd/hnx/kernel"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hnxctl",
	Short: "Inspect and exercise the hnx syscall ABI",
	Long: `hnxctl drives the hnx syscall dispatch layer outside a guest.

It lists the syscall registry, checks client ABI versions against the kernel,
verifies a published abi.toml and replays CBOR request traces.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = cfg.Logging.Build()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func newKernel(opts ...kernel.Option) (*kernel.Kernel, error) {
	return kernel.NewKernel(cfg, append([]kernel.Option{kernel.WithLogger(logger)}, opts...)...)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "hnx.yaml", "Kernel configuration file")

	versionCmd.Flags().BoolVar(&showHost, "host", false, "Also report host memory")
	runCmd.Flags().StringVar(&runABI, "abi", "", "ABI version the replaying client declares (default: kernel version)")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Write responses as CBOR frames to this file")

	abiCmd.AddCommand(abiDumpCmd)
	abiCmd.AddCommand(abiVerifyCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(syscallsCmd)
	rootCmd.AddCommand(abiCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
