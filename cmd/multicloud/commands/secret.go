package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/multicloud/internal/logging"
	"github.com/systmms/multicloud/pkg/backend"
)

// NewSecretCommand groups the secret get/set subcommands.
func NewSecretCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Read and write secrets",
	}
	cmd.AddCommand(newSecretGetCommand(opts), newSecretSetCommand(opts))
	return cmd
}

func newSecretGetCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Print a secret as JSON",
		Long: `Print the decoded value of a secret as JSON.

Examples:
  multicloud secret get db
  multicloud --service billing secret get api-token`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, err := opts.Context()
			if err != nil {
				return err
			}
			s, err := mc.Secret(args[0])
			if err != nil {
				return err
			}
			value, err := s.Get(cmd.Context())
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(value); err != nil {
				return fmt.Errorf("failed to encode JSON: %w", err)
			}
			return nil
		},
	}
}

func newSecretSetCommand(opts *Options) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Store a secret",
		Long: `Store a secret. VALUE is parsed as JSON unless --raw is given, in which
case it is stored as a plain string.

Examples:
  multicloud secret set db '{"username": "app", "password": "s3cret"}'
  multicloud secret set api-token --raw abc123`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value interface{} = args[1]
			if !raw {
				decoded, err := backend.DecodeValue(args[1])
				if err != nil {
					return fmt.Errorf("value is not valid JSON (use --raw for plain strings): %w", err)
				}
				value = decoded
			}

			mc, err := opts.Context()
			if err != nil {
				return err
			}
			s, err := mc.Secret(args[0])
			if err != nil {
				return err
			}
			if err := s.Set(cmd.Context(), value); err != nil {
				return err
			}
			opts.logger().Debug("secret %s = %v", args[0], logging.Secret(args[1]))
			opts.logger().Info("stored secret %s for service %s", args[0], mc.Service())
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Store VALUE as a plain string")
	return cmd
}
