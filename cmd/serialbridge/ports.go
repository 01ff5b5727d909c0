package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ezrec/serialbridge/transport"
)

func (a *app) portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			infos, err := transport.ListPorts()
			if err != nil {
				return
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVID:PID\tSERIAL\tPRODUCT")
			for _, info := range infos {
				id := "-"
				if info.USB {
					id = info.VID + ":" + info.PID
				}
				fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", info.Name, id, info.SerialNumber, info.Product)
			}

			return w.Flush()
		},
	}
}
