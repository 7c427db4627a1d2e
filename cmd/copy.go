package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"firestige.xyz/ngcap/internal/config"
	"firestige.xyz/ngcap/internal/filter"
	"firestige.xyz/ngcap/internal/log"
	"firestige.xyz/ngcap/internal/metrics"
	"firestige.xyz/ngcap/pkg/pcapng"
)

var copyCmd = &cobra.Command{
	Use:   "copy IN OUT",
	Short: "Re-encode a capture file, optionally filtering packets",
	Long: `Copy every block of IN to OUT. Blocks of unknown types are copied
unchanged. Packets can be selected with a BPF expression, the output can be
written in another byte order, and blocks or options marked as not to be
copied can be dropped.

Examples:
  ngcap copy in.pcapng out.pcapng
  ngcap copy --filter "host 10.0.0.1" --byte-order big in.pcapng out.pcapng
  ngcap copy --strip-no-copy in.pcapng shared.pcapng`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		res, err := runCopy(cmd.Context(), args[0], args[1], copyOpts, cfg)
		if err != nil {
			return err
		}
		return p.Print(res)
	},
}

type copyOptions struct {
	filter      string
	byteOrder   string
	stripNoCopy bool
}

var copyOpts copyOptions

func init() {
	copyCmd.Flags().StringVar(&copyOpts.filter, "filter", "", "BPF expression selecting the packets to keep")
	copyCmd.Flags().StringVar(&copyOpts.byteOrder, "byte-order", "", "re-encode sections as little or big endian")
	copyCmd.Flags().BoolVar(&copyOpts.stripNoCopy, "strip-no-copy", false,
		"drop custom blocks and custom options that must not be copied")
}

type copyResult struct {
	BlocksRead      int `json:"blocks_read" yaml:"blocks_read"`
	BlocksWritten   int `json:"blocks_written" yaml:"blocks_written"`
	PacketsFiltered int `json:"packets_filtered" yaml:"packets_filtered"`
	BlocksStripped  int `json:"blocks_stripped" yaml:"blocks_stripped"`
}

func (r *copyResult) Headers() []string { return []string{"Blocks read", "Written", "Filtered", "Stripped"} }

func (r *copyResult) Rows() [][]string {
	return [][]string{{
		strconv.Itoa(r.BlocksRead),
		strconv.Itoa(r.BlocksWritten),
		strconv.Itoa(r.PacketsFiltered),
		strconv.Itoa(r.BlocksStripped),
	}}
}

func runCopy(ctx context.Context, in, out string, opts copyOptions, gc *config.GlobalConfig) (*copyResult, error) {
	if same, err := samePath(in, out); err != nil {
		return nil, err
	} else if same {
		return nil, fmt.Errorf("input and output are the same file: %s", in)
	}

	c, err := openCapture(in, gc.Reader, func(o *pcapng.ReaderOptions) { o.ReturnAllBlocks = true })
	if err != nil {
		return nil, err
	}
	defer c.Close()

	wopts := gc.Writer.WriterOptions(log.Entry().WithField("file", out))
	var order *pcapng.ByteOrder
	if opts.byteOrder != "" {
		o, err := pcapng.ParseByteOrder(opts.byteOrder)
		if err != nil {
			return nil, err
		}
		order = &o
		wopts = append(wopts, pcapng.WithByteOrder(o))
	}

	f, err := os.Create(out)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	w, err := pcapng.NewWriter(f, wopts...)
	if err != nil {
		return nil, err
	}

	cp := &copier{w: w, order: order, strip: opts.stripNoCopy, rewrite: opts.filter != "" || opts.stripNoCopy}
	if opts.filter != "" {
		bpfFilter, err := filter.NewBPFFilter(opts.filter)
		if err != nil {
			return nil, err
		}
		cp.chain = filter.NewFilterChain(cp.writePacket, []filter.Filter{bpfFilter})
		log.GetLogger().WithField("filter", opts.filter).Debugf("packets pass %d filters", cp.chain.Len())
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := c.reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		cp.res.BlocksRead++
		if err := cp.copy(b); err != nil {
			return nil, err
		}
	}

	if err := w.Flush(); err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	cp.res.BlocksWritten = w.Blocks()
	log.GetLogger().WithField("file", out).Infof("copied %d of %d blocks", cp.res.BlocksWritten, cp.res.BlocksRead)
	return &cp.res, nil
}

// copier carries per-run state between the reader loop and the filter chain.
type copier struct {
	w       *pcapng.Writer
	order   *pcapng.ByteOrder
	strip   bool
	rewrite bool
	chain   *filter.FilterChain

	res      copyResult
	writeErr error
	kept     bool
}

func (cp *copier) copy(b pcapng.Block) error {
	switch blk := b.(type) {
	case *pcapng.SectionHeader:
		if cp.order != nil {
			blk.ByteOrder = *cp.order
		}
		if cp.rewrite {
			blk.SectionLength = pcapng.SectionLengthUnknown
		}
		blk.Options = cp.options(blk.Options)
	case *pcapng.Packet:
		blk.Options = cp.options(blk.Options)
		if cp.chain != nil {
			cp.kept, cp.writeErr = false, nil
			cp.chain.Filter(blk)
			if !cp.kept {
				cp.res.PacketsFiltered++
				metrics.PacketsFilteredTotal.Inc()
			}
			return cp.writeErr
		}
	case *pcapng.CustomBlock:
		if cp.strip && !blk.Copy {
			cp.res.BlocksStripped++
			return nil
		}
		blk.Options = cp.options(blk.Options)
	case *pcapng.InterfaceDescription:
		blk.Options = cp.options(blk.Options)
	case *pcapng.InterfaceStatistics:
		blk.Options = cp.options(blk.Options)
	case *pcapng.NameResolution:
		blk.Options = cp.options(blk.Options)
	case *pcapng.DecryptionSecrets:
		blk.Options = cp.options(blk.Options)
	case *pcapng.RawBlock:
		if cp.order != nil {
			log.GetLogger().WithField("offset", blk.Offset).
				Warnf("%s block copied verbatim, its content keeps the original byte order", pcapng.BlockTypeName(blk.Type))
		}
	}
	return cp.write(b)
}

func (cp *copier) options(opts pcapng.Options) pcapng.Options {
	if !cp.strip {
		return opts
	}
	return opts.StripNoCopy()
}

func (cp *copier) writePacket(p *pcapng.Packet) {
	cp.kept = true
	cp.writeErr = cp.write(p)
}

func (cp *copier) write(b pcapng.Block) error {
	before := cp.w.Blocks()
	if err := cp.w.WriteBlock(b); err != nil {
		return err
	}
	metrics.BlocksWrittenTotal.WithLabelValues(pcapng.BlockTypeName(b.BlockType())).Add(float64(cp.w.Blocks() - before))
	return nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
