package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/blesensor/internal/result"
	"github.com/srg/blesensor/internal/sensor"
	"github.com/srg/blesensor/pkg/config"
)

func newDecodeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "decode <kind> <hex>",
		Short: "Decode a captured characteristic value offline",
		Long: `Decodes one raw characteristic value with a sensor codec and prints the
reading. Bytes may be written as "0046", "00 46", "0x00 0x46" or "00:46".
A frame the codec rejects prints the zero reading and exits with an error.

Examples:
  blesensor decode heart-rate "0x00 0x46"
  blesensor decode heart-rate 0x16,0x48,0x00,0x03,0x04 --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := sensor.ParseKind(args[0])
			if err != nil {
				return err
			}
			data, err := parseHexFrame(args[1])
			if err != nil {
				return err
			}
			render, err := newRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output)
			if err != nil {
				return err
			}
			codec, err := sensor.Lookup(kind)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			reading, decodeErr := codec.Decode(data)
			if err := render.render(string(kind), kind, result.Success(reading)); err != nil {
				return err
			}
			if decodeErr != nil {
				return fmt.Errorf("frame %s rejected: %w", sensor.HexString(data), decodeErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", config.OutputText, "Output format: text or json")
	return cmd
}

// parseHexFrame accepts hex bytes with optional 0x prefixes and space, comma,
// colon or dash separators.
func parseHexFrame(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == ':' || r == '-' || r == '\t'
	})

	var b strings.Builder
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		if len(fields) > 1 && len(f) == 1 {
			f = "0" + f
		}
		b.WriteString(f)
	}

	data, err := hex.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex frame %q: %w", s, err)
	}
	return data, nil
}
