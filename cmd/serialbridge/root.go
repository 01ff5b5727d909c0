package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ezrec/serialbridge/bridge"
	"github.com/ezrec/serialbridge/config"
	"github.com/ezrec/serialbridge/observability"
)

// app holds what the subcommands share.
type app struct {
	configPath string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "serialbridge",
		Short:         "Blocking read/write calls over an asynchronous serial link",
		SilenceUsage:  true,
		SilenceErrors: false,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			a.cfg, err = config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return
			}
			a.logger, err = observability.SetupLogger(a.cfg.Log)
			return
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "configuration file (default serialbridge.yaml)")
	flags.String("port", "", `serial port, or "auto" for an FT2232`)
	flags.Int("baud", 0, "baud rate")
	flags.Bool("simulate", false, "use a simulated device instead of a serial port")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(a.runCmd(), a.serveCmd(), a.portsCmd())

	return root
}

// start builds the bridge, runs it, and opens the device. exited is closed
// when the bridge stops, whether through stop or on its own failure. The
// returned stop function stops the bridge and reports how it ended.
func (a *app) start(ctx context.Context) (b *bridge.Bridge, exited <-chan struct{}, stop func() error, err error) {
	b, err = bridge.New(a.cfg, nil, a.logger)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	var runErr error
	go func() {
		runErr = b.Run(ctx)
		if runErr != nil {
			a.logger.Error("bridge stopped", zap.Error(runErr))
		}
		close(done)
	}()
	exited = done

	stop = func() error {
		cancel()
		if b.Device != nil {
			_ = b.Device.Close()
		}
		<-done
		return errors.Join(runErr, b.Close())
	}

	err = b.Open(ctx)
	if err != nil {
		err = errors.Join(fmt.Errorf("open: %w", err), stop())
		stop = nil
		return
	}

	return
}
