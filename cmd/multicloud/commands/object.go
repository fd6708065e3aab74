package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/multicloud/pkg/backend"
)

// NewObjectCommand groups the object subcommands.
func NewObjectCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "object",
		Short: "Read and write objects",
	}
	cmd.AddCommand(
		newObjectGetCommand(opts),
		newObjectPutCommand(opts),
		newObjectExistsCommand(opts),
	)
	return cmd
}

func newObjectGetCommand(opts *Options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Stream an object to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, err := opts.Context()
			if err != nil {
				return err
			}
			o, err := mc.Object(args[0])
			if err != nil {
				return err
			}
			r, err := o.GetFile(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
				if err != nil {
					return fmt.Errorf("failed to open output: %w", err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			if _, err := io.Copy(w, r); err != nil {
				return fmt.Errorf("failed to read object %s: %w", args[0], err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newObjectPutCommand(opts *Options) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "put KEY",
		Short: "Store an object from stdin or a file",
		Long: `Store an object. The content is streamed from --file, or stdin when
--file is not given. A failed read leaves the previous object in place.

Examples:
  multicloud object put reports/2024.csv --file 2024.csv
  tar cz . | multicloud object put backups/site.tgz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if input != "" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			mc, err := opts.Context()
			if err != nil {
				return err
			}
			o, err := mc.Object(args[0])
			if err != nil {
				return err
			}
			w, err := o.PutFile(cmd.Context())
			if err != nil {
				return err
			}
			n, err := io.Copy(w, r)
			if err != nil {
				_ = backend.Abort(w)
				return fmt.Errorf("failed to write object %s: %w", args[0], err)
			}
			if err := w.Close(); err != nil {
				return err
			}
			opts.logger().Info("stored %d bytes at %s", n, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "file", "f", "", "Read from this file instead of stdin")
	return cmd
}

func newObjectExistsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "exists KEY",
		Short: "Report whether an object exists",
		Long: `Print "true" or "false". The exit status is non-zero only on errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, err := opts.Context()
			if err != nil {
				return err
			}
			o, err := mc.Object(args[0])
			if err != nil {
				return err
			}
			ok, err := o.Exists(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}
