package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/blesensor/internal/bledb"
	"github.com/srg/blesensor/internal/sensor"
	"github.com/srg/blesensor/pkg/config"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List supported sensor kinds and their preset targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tDEVICE\tSERVICE\tCHARACTERISTIC\tMTU")
			fmt.Fprintln(w, "----\t------\t-------\t--------------\t---")

			for _, kind := range sensor.Kinds() {
				preset, err := config.Preset(kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					kind,
					presetDevice(preset),
					bledb.Describe(preset.Service),
					bledb.Describe(preset.Characteristic),
					preset.MTU,
				)
			}
			return w.Flush()
		},
	}
}

func presetDevice(s config.Session) string {
	var parts []string
	if s.Name != "" {
		parts = append(parts, fmt.Sprintf("%q", s.Name))
	}
	if s.Address != "" {
		parts = append(parts, s.Address)
	}
	return strings.Join(parts, " or ")
}
