package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/multicloud/internal/tinyserver"
)

// NewServeCommand runs a tinyserver over the service's backend.
func NewServeCommand(opts *Options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the service's backend over HTTP",
		Long: `Expose the service's backend through the tinyserver protocol so that
containers can use the "tinyserver" backend type. The server shuts down
gracefully when the command context is cancelled (SIGINT or SIGTERM).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, err := opts.Context()
			if err != nil {
				return err
			}
			opts.logger().Debug("service %s: starting tiny server", mc.Service())
			return tinyserver.New(mc.Backend(), opts.logger()).ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", tinyserver.DefaultAddr, "Listen address")
	return cmd
}
