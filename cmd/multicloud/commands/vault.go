package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/multicloud/internal/backends"
	"github.com/systmms/multicloud/internal/logging"
	"github.com/systmms/multicloud/internal/vault"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
	"github.com/systmms/multicloud/pkg/multicloud"
)

// NewVaultCommand groups commands operating directly on a fernet vault file.
func NewVaultCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Inspect fernet vault files",
	}
	cmd.AddCommand(newVaultCheckCommand(opts))
	return cmd
}

func newVaultCheckCommand(opts *Options) *cobra.Command {
	var (
		path    string
		service string
	)

	cmd := &cobra.Command{
		Use:   "check NAME...",
		Short: "Check that secrets decrypt with the bootstrap password",
		Long: fmt.Sprintf(`Open a vault with the password in %s and try to decrypt
each named secret. Nothing is printed for a secret that decrypts; failures
are reported and make the command exit non-zero.`, backends.BootstrapPasswordEnv),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv(backends.BootstrapPasswordEnv)
			if password == "" {
				return mcerrors.ConfigurationError{
					Field:      backends.BootstrapPasswordEnv,
					Message:    "vault password is not set",
					Suggestion: fmt.Sprintf("export %s=...", backends.BootstrapPasswordEnv),
				}
			}
			if path == "" {
				path = backends.DefaultVaultPath()
			}
			if service == "" {
				service = opts.Service
			}
			if service == "" {
				service = multicloud.DefaultService
			}

			opts.logger().Debug("opening %s with password %v", path, logging.Secret(password))
			v, err := vault.Open(password, path)
			if err != nil {
				return err
			}
			defer v.Close()

			failed := 0
			for _, name := range args {
				if _, err := v.Get(service, name); err != nil {
					failed++
					opts.logger().Error("%s/%s: %s", service, name, logging.Redact(err.Error(), []string{password}))
					continue
				}
				opts.logger().Debug("%s/%s: ok", service, name)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d secrets failed to decrypt", failed, len(args))
			}
			opts.logger().Info("%d secrets decrypt with %s", len(args), v.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Vault file (default ~/.multicloud/fernet-keyring.json)")
	cmd.Flags().StringVar(&service, "vault-service", "", "Vault service name (default --service)")
	return cmd
}
