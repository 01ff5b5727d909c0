package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose GET /read and POST /write over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if a.cfg.Gateway.Listen == "" {
				return errListenMissing
			}

			_, exited, stop, err := a.start(cmd.Context())
			if err != nil {
				return
			}

			a.logger.Info("serving", zap.String("listen", a.cfg.Gateway.Listen))
			select {
			case <-cmd.Context().Done():
			case <-exited:
			}

			return stop()
		},
	}

	flags := cmd.Flags()
	flags.String("listen", "", "address for the HTTP endpoints, for example :8080")
	flags.String("policy", "", "second request of a kind: reject or queue")
	flags.Duration("timeout", 0, "request timeout; 0 waits forever")

	return cmd
}
