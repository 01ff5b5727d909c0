package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.starlark.net/starlark"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run SCRIPT [ARG]",
		Short: "Run a Starlark script against the device",
		Long: `Run a Starlark script. If the script defines capture(), it is
called with ARG (or None) and its result is printed.

Builtins: write_serial(str), read_serial(), write(addr, data),
write([addrs], [datas]), read(addr), read([addrs]).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return
			}

			var arg string
			if len(args) > 1 {
				arg = args[1]
			}

			b, exited, stop, err := a.start(cmd.Context())
			if err != nil {
				return
			}
			defer func() { err = errors.Join(err, stop()) }()

			// A bridge that fails under the script cancels it.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				select {
				case <-exited:
					cancel()
				case <-ctx.Done():
				}
			}()

			result, err := b.Runtime().Exec(ctx, args[0], src, arg)
			if err != nil {
				return
			}

			if result != starlark.None {
				if s, ok := result.(starlark.String); ok {
					fmt.Fprintln(cmd.OutOrStdout(), s.GoString())
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), result.String())
				}
			}

			return
		},
	}
}
