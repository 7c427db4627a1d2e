package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ngcap/internal/output"
	"firestige.xyz/ngcap/pkg/pcapng"
)

func TestRunInspect(t *testing.T) {
	path := writeCapture(t)
	gc := testConfig(t)

	var buf bytes.Buffer
	err := runInspect(path, gc.Reader, output.NewPrinter(&buf, output.FormatJSON))
	require.NoError(t, err)

	var report inspectReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, 3, report.Packets)
	assert.Equal(t, 1, report.Names)
	require.Len(t, report.Sections, 1)
	assert.Equal(t, "little-endian", report.Sections[0].ByteOrder)
	assert.Equal(t, "fixture", report.Sections[0].Application)

	require.Len(t, report.Interfaces, 1)
	iface := report.Interfaces[0]
	assert.Equal(t, "eth0", iface.Name)
	assert.Equal(t, "Ethernet", iface.LinkTypeName)
	assert.Equal(t, uint64(1_000_000), iface.UnitsPerSecond)
	assert.Equal(t, 6, iface.Precision)
	require.NotNil(t, iface.Received)
	assert.Equal(t, uint64(10), *iface.Received)
	require.NotNil(t, iface.Dropped)
	assert.Equal(t, uint64(1), *iface.Dropped)
}

func TestRunInspectTable(t *testing.T) {
	path := writeCapture(t)

	var buf bytes.Buffer
	require.NoError(t, runInspect(path, testConfig(t).Reader, output.NewPrinter(&buf, output.FormatTable)))
	out := buf.String()
	assert.Contains(t, out, "little-endian")
	assert.Contains(t, out, "Ethernet (1)")
	assert.Contains(t, out, "packets: 3")
}

func TestRunInspectMissingFile(t *testing.T) {
	err := runInspect(filepath.Join(t.TempDir(), "none.pcapng"), testConfig(t).Reader,
		output.NewPrinter(&bytes.Buffer{}, output.FormatTable))
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	path := writeCapture(t)
	c, err := openCapture(path, testConfig(t).Reader, nil)
	require.NoError(t, err)
	defer c.Close()

	report, err := dump(c.reader, dumpOptions{decode: true})
	require.NoError(t, err)
	require.Len(t, report.Blocks, 5)

	first := report.Blocks[0]
	assert.Equal(t, "EPB", first.Type)
	assert.Equal(t, int64(44+32), first.Offset)
	require.NotNil(t, first.Interface)
	assert.Equal(t, 0, *first.Interface)
	assert.Equal(t, "2023-11-14 22:13:20.250000", first.Timestamp)
	assert.Equal(t, "first", first.Comment)
	assert.Equal(t, "Ethernet/IPv4/UDP/Payload", first.Layers)
	assert.Equal(t, first.CapLen, first.OrigLen)

	assert.Equal(t, "CB", report.Blocks[3].Type)
	assert.Equal(t, "CB-NOCOPY", report.Blocks[4].Type)
	assert.Nil(t, report.Blocks[4].Interface)

	assert.Contains(t, report.Headers(), "Layers")
	assert.Len(t, report.Rows()[4], len(report.Headers()))
}

func TestRunDumpLimit(t *testing.T) {
	path := writeCapture(t)

	var buf bytes.Buffer
	err := runDump(path, dumpOptions{limit: 2}, testConfig(t).Reader, output.NewPrinter(&buf, output.FormatJSON))
	require.NoError(t, err)

	var report dumpReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Len(t, report.Blocks, 2)
	assert.Empty(t, report.Blocks[0].Layers)
}

func TestRunCopy(t *testing.T) {
	in := writeCapture(t)
	out := filepath.Join(t.TempDir(), "out.pcapng")

	res, err := runCopy(context.Background(), in, out, copyOptions{}, testConfig(t))
	require.NoError(t, err)
	assert.Equal(t, 9, res.BlocksRead)
	assert.Equal(t, 9, res.BlocksWritten)
	assert.Zero(t, res.PacketsFiltered)

	want, err := os.ReadFile(in)
	require.NoError(t, err)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunCopyFilter(t *testing.T) {
	in := writeCapture(t)
	out := filepath.Join(t.TempDir(), "out.pcapng")

	res, err := runCopy(context.Background(), in, out, copyOptions{filter: "host 10.0.0.1"}, testConfig(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.PacketsFiltered)
	assert.Equal(t, 8, res.BlocksWritten)

	r, packets := readPackets(t, out)
	assert.Len(t, packets, 2)
	assert.Equal(t, pcapng.SectionLengthUnknown, r.Section().Header.SectionLength)
}

func TestRunCopyInvalidFilter(t *testing.T) {
	in := writeCapture(t)
	out := filepath.Join(t.TempDir(), "out.pcapng")

	_, err := runCopy(context.Background(), in, out, copyOptions{filter: "host and and"}, testConfig(t))
	assert.Error(t, err)
}

func TestRunCopyByteOrder(t *testing.T) {
	in := writeCapture(t)
	out := filepath.Join(t.TempDir(), "out.pcapng")

	_, err := runCopy(context.Background(), in, out, copyOptions{byteOrder: "big"}, testConfig(t))
	require.NoError(t, err)

	_, original := readPackets(t, in)
	r, swapped := readPackets(t, out)
	assert.Equal(t, pcapng.BigEndian, r.Section().ByteOrder)
	require.Len(t, swapped, len(original))
	for i := range original {
		assert.Equal(t, original[i].Data, swapped[i].Data)
		assert.True(t, original[i].Timestamp.Equal(swapped[i].Timestamp))
	}
}

func TestRunCopyStripNoCopy(t *testing.T) {
	in := writeCapture(t)
	out := filepath.Join(t.TempDir(), "out.pcapng")

	res, err := runCopy(context.Background(), in, out, copyOptions{stripNoCopy: true}, testConfig(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.BlocksStripped)
	assert.Equal(t, 8, res.BlocksWritten)

	_, packets := readPackets(t, out)
	require.NotEmpty(t, packets)
	assert.Empty(t, packets[0].Options.Custom())
	assert.Equal(t, []string{"first"}, packets[0].Options.Comments())
}

func TestRunCopySameFile(t *testing.T) {
	in := writeCapture(t)
	_, err := runCopy(context.Background(), in, in, copyOptions{}, testConfig(t))
	assert.Error(t, err)
}

func TestRunCopyCanceled(t *testing.T) {
	in := writeCapture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runCopy(ctx, in, filepath.Join(t.TempDir(), "out.pcapng"), copyOptions{}, testConfig(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunStats(t *testing.T) {
	path := writeCapture(t)

	res, err := runStats(context.Background(), path, statsOptions{listen: "127.0.0.1:0"}, testConfig(t))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Packets)
	assert.NotEmpty(t, res.MetricsAddr)
	assert.Empty(t, res.Error)
	require.NotNil(t, res.First)
	assert.True(t, testStart.Equal(*res.First))

	counts := map[string]int{}
	for _, b := range res.Blocks {
		counts[b.Type] = b.Count
	}
	assert.Equal(t, map[string]int{"SHB": 1, "IDB": 1, "EPB": 3, "NRB": 1, "ISB": 1, "CB": 1, "CB-NOCOPY": 1}, counts)
}

func TestRunStatsTruncated(t *testing.T) {
	path := writeCapture(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-6], 0644))

	res, err := runStats(context.Background(), path, statsOptions{}, testConfig(t))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 3, res.Packets)
}

func TestRunValidate(t *testing.T) {
	path := writeCapture(t)

	var buf bytes.Buffer
	require.NoError(t, runValidate(path, testConfig(t).Reader, &buf))
	assert.Contains(t, buf.String(), "VALID: ")
	assert.Contains(t, buf.String(), "1 section(s), 1 interface(s), 9 block(s)")
}

func TestRunValidateCorrupt(t *testing.T) {
	path := writeCapture(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Break the trailing length of the last block.
	data[len(data)-4]++
	require.NoError(t, os.WriteFile(path, data, 0644))

	var buf bytes.Buffer
	err = runValidate(path, testConfig(t).Reader, &buf)
	assert.ErrorIs(t, err, errInvalid)
	assert.ErrorIs(t, err, pcapng.ErrMalformed)
	assert.Contains(t, buf.String(), "INVALID: ")
	assert.Contains(t, buf.String(), "at offset")
}

func TestRootCommand(t *testing.T) {
	path := writeCapture(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"--log-level", "warn", "validate", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		logLevel = ""
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "VALID: ")
	require.NotNil(t, cfg)
	assert.Equal(t, "warn", cfg.Log.Level)
}
