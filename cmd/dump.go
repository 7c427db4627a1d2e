package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/spf13/cobra"

	"firestige.xyz/ngcap/internal/config"
	"firestige.xyz/ngcap/internal/output"
	"firestige.xyz/ngcap/pkg/pcapng"
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "List the packets and custom blocks of a capture file",
	Long: `Print one line per packet or custom block: offset, interface, timestamp,
lengths, flags and comment. With --decode, packets are decoded and the
protocol layers found are listed.

Examples:
  ngcap dump trace.pcapng
  ngcap dump --decode --limit 20 trace.pcapng`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		return runDump(args[0], dumpOpts, cfg.Reader, p)
	},
}

type dumpOptions struct {
	decode bool
	limit  int
}

var dumpOpts dumpOptions

func init() {
	dumpCmd.Flags().BoolVar(&dumpOpts.decode, "decode", false, "decode packets and list their layers")
	dumpCmd.Flags().IntVar(&dumpOpts.limit, "limit", 0, "stop after this many blocks (0 means all)")
}

type dumpRow struct {
	Index     int    `json:"index" yaml:"index"`
	Offset    int64  `json:"offset" yaml:"offset"`
	Type      string `json:"type" yaml:"type"`
	Interface *int   `json:"interface,omitempty" yaml:"interface,omitempty"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	CapLen    uint32 `json:"caplen" yaml:"caplen"`
	OrigLen   uint32 `json:"origlen" yaml:"origlen"`
	Flags     string `json:"flags,omitempty" yaml:"flags,omitempty"`
	Comment   string `json:"comment,omitempty" yaml:"comment,omitempty"`
	Layers    string `json:"layers,omitempty" yaml:"layers,omitempty"`
}

type dumpReport struct {
	Blocks []dumpRow `json:"blocks" yaml:"blocks"`
	decode bool
}

func (r *dumpReport) Headers() []string {
	h := []string{"#", "Offset", "Type", "If", "Timestamp", "Caplen", "Origlen", "Flags", "Comment"}
	if r.decode {
		h = append(h, "Layers")
	}
	return h
}

func (r *dumpReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		iface := "-"
		if b.Interface != nil {
			iface = strconv.Itoa(*b.Interface)
		}
		row := []string{
			strconv.Itoa(b.Index),
			strconv.FormatInt(b.Offset, 10),
			b.Type,
			iface,
			b.Timestamp,
			strconv.FormatUint(uint64(b.CapLen), 10),
			strconv.FormatUint(uint64(b.OrigLen), 10),
			b.Flags,
			b.Comment,
		}
		if r.decode {
			row = append(row, b.Layers)
		}
		rows = append(rows, row)
	}
	return rows
}

func runDump(path string, opts dumpOptions, rc config.ReaderConfig, p *output.Printer) error {
	c, err := openCapture(path, rc, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := dump(c.reader, opts)
	if err != nil {
		return err
	}
	return p.Print(report)
}

func dump(r *pcapng.Reader, opts dumpOptions) (*dumpReport, error) {
	report := &dumpReport{decode: opts.decode}
	for opts.limit <= 0 || len(report.Blocks) < opts.limit {
		b, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := dumpRow{Index: len(report.Blocks) + 1, Type: pcapng.BlockTypeName(b.BlockType())}

		switch blk := b.(type) {
		case *pcapng.Packet:
			id := int(blk.InterfaceID)
			row.Offset = blk.Offset
			row.Interface = &id
			row.Timestamp = formatTimestamp(blk.Timestamp, blk.Interface.Precision)
			row.CapLen = uint32(len(blk.Data))
			row.OrigLen = blk.OriginalLength
			if flags, ok := blk.Flags(); ok {
				row.Flags = fmt.Sprintf("0x%08x", flags)
			}
			row.Comment = strings.Join(blk.Options.Comments(), "; ")
			if opts.decode {
				row.Layers = layerSummary(blk)
			}
		case *pcapng.CustomBlock:
			row.Offset = blk.Offset
			row.CapLen = uint32(len(blk.Data))
			row.Comment = strings.Join(blk.Options.Comments(), "; ")
		case *pcapng.RawBlock:
			row.Offset = blk.Offset
			row.CapLen = uint32(len(blk.Data))
		}
		report.Blocks = append(report.Blocks, row)
	}
	return report, nil
}

func formatTimestamp(t time.Time, prec pcapng.Precision) string {
	layout := "2006-01-02 15:04:05"
	if prec > 0 {
		layout += "." + strings.Repeat("0", int(prec))
	}
	return t.UTC().Format(layout)
}

// layerSummary decodes the packet data and names the layers found, such as
// "Ethernet/IPv4/UDP/Payload". A trailing "!" marks a decoding failure.
func layerSummary(p *pcapng.Packet) string {
	pkt := gopacket.NewPacket(p.Data, p.Interface.LayerDecoder(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	names := make([]string, 0, 4)
	for _, l := range pkt.Layers() {
		if l.LayerType() == gopacket.LayerTypeDecodeFailure {
			names = append(names, "!")
			break
		}
		names = append(names, l.LayerType().String())
	}
	return strings.Join(names, "/")
}
