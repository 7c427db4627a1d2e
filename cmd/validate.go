package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/ngcap/internal/config"
	"firestige.xyz/ngcap/pkg/pcapng"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check that a capture file is well formed",
	Long: `Read a capture file to the end in strict mode and report the first error
together with the offset of the offending block.

Examples:
  ngcap validate trace.pcapng`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(args[0], cfg.Reader, cmd.OutOrStdout())
	},
}

// errInvalid marks a file that was read but did not validate.
var errInvalid = errors.New("capture file is invalid")

func runValidate(path string, rc config.ReaderConfig, out io.Writer) error {
	c, err := openCapture(path, rc, func(o *pcapng.ReaderOptions) {
		o.Strict = true
		o.ReturnAllBlocks = true
	})
	if err != nil {
		return invalid(out, err)
	}
	defer c.Close()

	blocks := 0
	for {
		_, err := c.reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return invalid(out, err)
		}
		blocks++
	}

	interfaces := 0
	for _, sec := range c.reader.Sections() {
		interfaces += len(sec.Interfaces)
	}
	fmt.Fprintf(out, "VALID: %s: %d section(s), %d interface(s), %d block(s)\n",
		path, len(c.reader.Sections()), interfaces, blocks)
	return nil
}

func invalid(out io.Writer, err error) error {
	var be *pcapng.BlockError
	if errors.As(err, &be) {
		fmt.Fprintf(out, "INVALID: %s block at offset %d: %v\n", pcapng.BlockTypeName(be.Type), be.Offset, be.Err)
	} else {
		fmt.Fprintf(out, "INVALID: %v\n", err)
	}
	return fmt.Errorf("%w: %w", errInvalid, err)
}
