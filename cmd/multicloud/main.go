package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/systmms/multicloud/cmd/multicloud/commands"
	"github.com/systmms/multicloud/internal/backends"
	"github.com/systmms/multicloud/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// SIGINT and SIGTERM cancel the command context; key material is
	// purged once the command has returned.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errorMessage(err))
		memguard.SafeExit(1)
	}
	memguard.Purge()
}

// errorMessage renders err with the vault bootstrap password redacted.
func errorMessage(err error) string {
	return logging.Redact(err.Error(), []string{os.Getenv(backends.BootstrapPasswordEnv)})
}

func run(ctx context.Context) error {
	var (
		noColor bool
		debug   bool
	)

	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:   "multicloud",
		Short: "Read and write secrets and objects through a configured storage backend",
		Long: `multicloud resolves a service's backend from the configuration document
(~/.jaws or $MULTICLOUD_CONFIG) and reads or writes its secrets and objects.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Config file path (default $MULTICLOUD_CONFIG or ~/.jaws)")
	rootCmd.PersistentFlags().StringVarP(&opts.Service, "service", "s", "", "Service section to use")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewSecretCommand(opts),
		commands.NewObjectCommand(opts),
		commands.NewServeCommand(opts),
		commands.NewVaultCommand(opts),
	)

	return rootCmd.ExecuteContext(ctx)
}
