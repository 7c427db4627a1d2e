package cmd

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/ngcap/internal/config"
	"firestige.xyz/ngcap/internal/log"
	"firestige.xyz/ngcap/internal/metrics"
	"firestige.xyz/ngcap/pkg/pcapng"
)

var statsCmd = &cobra.Command{
	Use:   "stats FILE",
	Short: "Count the blocks and packets of a capture file",
	Long: `Read a capture file and count blocks by type, packets and captured bytes.

With --metrics-listen (or metrics.enabled in the config file) the prometheus
endpoint is served while reading, and for --linger afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		opts := statsOpts
		if opts.listen == "" && cfg.Metrics.Enabled {
			opts.listen = cfg.Metrics.Listen
		}
		res, err := runStats(cmd.Context(), args[0], opts, cfg)
		if err != nil {
			return err
		}
		return p.Print(res)
	},
}

type statsOptions struct {
	listen string
	linger time.Duration
}

var statsOpts statsOptions

func init() {
	statsCmd.Flags().StringVar(&statsOpts.listen, "metrics-listen", "", "serve prometheus metrics on this address")
	statsCmd.Flags().DurationVar(&statsOpts.linger, "linger", 0, "keep serving metrics this long after reading")
}

type blockCount struct {
	Type  string `json:"type" yaml:"type"`
	Count int    `json:"count" yaml:"count"`
}

type statsResult struct {
	Blocks       []blockCount `json:"blocks" yaml:"blocks"`
	Packets      int          `json:"packets" yaml:"packets"`
	CapturedSize uint64       `json:"captured_bytes" yaml:"captured_bytes"`
	OriginalSize uint64       `json:"original_bytes" yaml:"original_bytes"`
	First        *time.Time   `json:"first,omitempty" yaml:"first,omitempty"`
	Last         *time.Time   `json:"last,omitempty" yaml:"last,omitempty"`
	Error        string       `json:"error,omitempty" yaml:"error,omitempty"`
	MetricsAddr  string       `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
}

func (r *statsResult) Headers() []string { return []string{"Block", "Count"} }

func (r *statsResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Blocks)+3)
	for _, b := range r.Blocks {
		rows = append(rows, []string{b.Type, strconv.Itoa(b.Count)})
	}
	rows = append(rows,
		[]string{"packets", strconv.Itoa(r.Packets)},
		[]string{"captured bytes", strconv.FormatUint(r.CapturedSize, 10)},
		[]string{"original bytes", strconv.FormatUint(r.OriginalSize, 10)},
	)
	if r.Error != "" {
		rows = append(rows, []string{"error", r.Error})
	}
	return rows
}

// runStats reads the whole file. A read error ends the count and is
// reported in the result rather than returned.
func runStats(ctx context.Context, path string, opts statsOptions, gc *config.GlobalConfig) (*statsResult, error) {
	res := &statsResult{}
	if opts.listen != "" {
		srv := metrics.NewServer(opts.listen, gc.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return nil, err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				log.GetLogger().WithError(err).Warn("metrics server did not stop cleanly")
			}
		}()
		res.MetricsAddr = srv.Addr()
	}

	c, err := openCapture(path, gc.Reader, func(o *pcapng.ReaderOptions) { o.ReturnAllBlocks = true })
	if err != nil {
		return nil, err
	}
	defer c.Close()

	counts := map[string]int{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := c.reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Error = err.Error()
			break
		}
		counts[pcapng.BlockTypeName(b.BlockType())]++
		if p, ok := b.(*pcapng.Packet); ok {
			res.count(p)
		}
	}

	for typ, n := range counts {
		res.Blocks = append(res.Blocks, blockCount{Type: typ, Count: n})
	}
	sort.Slice(res.Blocks, func(i, j int) bool { return res.Blocks[i].Type < res.Blocks[j].Type })

	if opts.linger > 0 && res.MetricsAddr != "" {
		log.GetLogger().Infof("serving metrics on %s for %s", res.MetricsAddr, opts.linger)
		select {
		case <-time.After(opts.linger):
		case <-ctx.Done():
		}
	}
	return res, nil
}

func (r *statsResult) count(p *pcapng.Packet) {
	r.Packets++
	r.CapturedSize += uint64(len(p.Data))
	r.OriginalSize += uint64(p.OriginalLength)
	ts := p.Timestamp
	if r.First == nil || ts.Before(*r.First) {
		r.First = &ts
	}
	if r.Last == nil || ts.After(*r.Last) {
		r.Last = &ts
	}
}
