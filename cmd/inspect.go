package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/ngcap/internal/config"
	"firestige.xyz/ngcap/internal/output"
	"firestige.xyz/ngcap/pkg/pcapng"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Describe the sections and interfaces of a capture file",
	Long: `Read a capture file to the end and print its sections, interfaces,
name resolution records, decryption secrets and interface statistics.

Examples:
  ngcap inspect trace.pcapng
  ngcap inspect -o json trace.pcapng`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		return runInspect(args[0], cfg.Reader, p)
	},
}

type sectionSummary struct {
	Offset      int64  `json:"offset" yaml:"offset"`
	ByteOrder   string `json:"byte_order" yaml:"byte_order"`
	Version     string `json:"version" yaml:"version"`
	Length      int64  `json:"length" yaml:"length"`
	Hardware    string `json:"hardware,omitempty" yaml:"hardware,omitempty"`
	OS          string `json:"os,omitempty" yaml:"os,omitempty"`
	Application string `json:"application,omitempty" yaml:"application,omitempty"`
	Skipped     bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

type interfaceSummary struct {
	Section        int     `json:"section" yaml:"section"`
	Index          uint32  `json:"index" yaml:"index"`
	Name           string  `json:"name,omitempty" yaml:"name,omitempty"`
	LinkType       uint16  `json:"link_type" yaml:"link_type"`
	LinkTypeName   string  `json:"link_type_name" yaml:"link_type_name"`
	SnapLen        uint32  `json:"snaplen" yaml:"snaplen"`
	UnitsPerSecond uint64  `json:"units_per_second" yaml:"units_per_second"`
	Precision      int     `json:"precision" yaml:"precision"`
	FCSLen         int     `json:"fcs_len" yaml:"fcs_len"`
	TimeOffset     int64   `json:"time_offset,omitempty" yaml:"time_offset,omitempty"`
	Received       *uint64 `json:"received,omitempty" yaml:"received,omitempty"`
	Dropped        *uint64 `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

type secretsSummary struct {
	Type   string `json:"type" yaml:"type"`
	Length int    `json:"length" yaml:"length"`
}

type inspectReport struct {
	File        string             `json:"file" yaml:"file"`
	Sections    []sectionSummary   `json:"sections" yaml:"sections"`
	Interfaces  []interfaceSummary `json:"interfaces" yaml:"interfaces"`
	Names       int                `json:"names" yaml:"names"`
	Secrets     []secretsSummary   `json:"secrets,omitempty" yaml:"secrets,omitempty"`
	Packets     int                `json:"packets" yaml:"packets"`
}

func (r *inspectReport) Headers() []string {
	return []string{"Section", "If", "Name", "Link type", "Snaplen", "Units/s", "Precision", "FCS", "Received", "Dropped"}
}

func (r *inspectReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Interfaces))
	for _, i := range r.Interfaces {
		rows = append(rows, []string{
			strconv.Itoa(i.Section),
			strconv.FormatUint(uint64(i.Index), 10),
			i.Name,
			fmt.Sprintf("%s (%d)", i.LinkTypeName, i.LinkType),
			strconv.FormatUint(uint64(i.SnapLen), 10),
			strconv.FormatUint(i.UnitsPerSecond, 10),
			strconv.Itoa(i.Precision),
			strconv.Itoa(i.FCSLen),
			optionalCount(i.Received),
			optionalCount(i.Dropped),
		})
	}
	return rows
}

func optionalCount(v *uint64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(*v, 10)
}

func linkTypeName(lt uint16) string {
	if lt > 0xFF {
		return "unknown"
	}
	return layers.LinkType(lt).String()
}

func runInspect(path string, rc config.ReaderConfig, p *output.Printer) error {
	c, err := openCapture(path, rc, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := inspect(path, c.reader)
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(report)
	}

	sections := output.NewTableData("Offset", "Byte order", "Version", "Length", "Application", "OS")
	for _, s := range report.Sections {
		sections.AddRow(strconv.FormatInt(s.Offset, 10), s.ByteOrder, s.Version,
			strconv.FormatInt(s.Length, 10), s.Application, s.OS)
	}
	if err := output.PrintTable(p.Writer(), sections); err != nil {
		return err
	}
	p.Printf("\n")
	if err := p.Print(report); err != nil {
		return err
	}
	p.Printf("\npackets: %d, resolved names: %d, secrets blocks: %d\n",
		report.Packets, report.Names, len(report.Secrets))
	return nil
}

// inspect drains r and summarizes what it absorbed.
func inspect(path string, r *pcapng.Reader) (*inspectReport, error) {
	report := &inspectReport{File: path}
	for {
		_, err := r.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		report.Packets++
	}

	for si, sec := range r.Sections() {
		h := sec.Header
		report.Sections = append(report.Sections, sectionSummary{
			Offset:      sec.Offset,
			ByteOrder:   sec.ByteOrder.String(),
			Version:     fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor),
			Length:      h.SectionLength,
			Hardware:    h.Hardware(),
			OS:          h.OS(),
			Application: h.UserApplication(),
			Skipped:     sec.Skipped(),
		})
		for _, iface := range sec.Interfaces {
			s := interfaceSummary{
				Section:        si,
				Index:          iface.Index,
				Name:           iface.Name,
				LinkType:       iface.LinkType,
				LinkTypeName:   linkTypeName(iface.LinkType),
				SnapLen:        iface.SnapLen,
				UnitsPerSecond: iface.UnitsPerSecond,
				Precision:      int(iface.Precision),
				FCSLen:         iface.FCSLen,
				TimeOffset:     iface.TimeOffset,
			}
			if st := iface.Statistics; st != nil {
				if v, ok := st.Received(); ok {
					s.Received = &v
				}
				if v, ok := st.Dropped(); ok {
					s.Dropped = &v
				}
			}
			report.Interfaces = append(report.Interfaces, s)
		}
	}
	for _, names := range r.NameTable() {
		report.Names += len(names)
	}
	for _, s := range r.Secrets() {
		report.Secrets = append(report.Secrets, secretsSummary{
			Type:   pcapng.SecretsTypeName(s.Type),
			Length: len(s.Data),
		})
	}
	return report, nil
}
