package cmd

import (
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ngcap/internal/config"
	"firestige.xyz/ngcap/pkg/pcapng"
)

const testPEN = 32473

var testStart = time.Unix(1_700_000_000, 250_000_000)

func udpFrame(t *testing.T, src, dst string) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 9999}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload("hello")))
	return buf.Bytes()
}

// writeCapture writes a small capture: one Ethernet interface, three UDP
// packets, name resolution, statistics and two custom blocks.
func writeCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.pcapng")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := pcapng.NewWriter(f, pcapng.WithApplication("fixture"))
	require.NoError(t, err)

	desc := &pcapng.InterfaceDescription{LinkType: pcapng.LinkTypeEthernet, SnapLen: 65535}
	desc.Options.Add(pcapng.OptIfName, "eth0")
	_, err = w.AddInterface(desc)
	require.NoError(t, err)

	hosts := [][2]string{{"10.0.0.1", "10.0.0.9"}, {"10.0.0.7", "10.0.0.9"}, {"10.0.0.9", "10.0.0.1"}}
	for i, h := range hosts {
		p := &pcapng.Packet{
			Timestamp: testStart.Add(time.Duration(i) * time.Second),
			Data:      udpFrame(t, h[0], h[1]),
		}
		if i == 0 {
			p.Options.Add(pcapng.OptComment, "first")
			p.Options.Add(pcapng.OptCustomBinaryNoCopy, &pcapng.CustomOption{PEN: testPEN, Data: []byte{1, 2, 3, 4}})
		}
		require.NoError(t, w.WritePacket(p))
	}

	require.NoError(t, w.WriteNameResolution(&pcapng.NameResolution{Records: []pcapng.NameRecord{
		{Type: pcapng.NameRecordIPv4, Addr: netip.MustParseAddr("10.0.0.1"), Names: []string{"alpha.example"}},
	}}))

	stats := &pcapng.InterfaceStatistics{Timestamp: testStart.Add(3 * time.Second)}
	stats.Options.Add(pcapng.OptISBIfRecv, uint64(10))
	stats.Options.Add(pcapng.OptISBIfDrop, uint64(1))
	require.NoError(t, w.WriteStatistics(stats))

	require.NoError(t, w.WriteCustom(&pcapng.CustomBlock{Copy: true, PEN: testPEN, Data: []byte("keep")}))
	require.NoError(t, w.WriteCustom(&pcapng.CustomBlock{Copy: false, PEN: testPEN, Data: []byte("drop")}))
	require.NoError(t, w.Flush())
	return path
}

func readPackets(t *testing.T, path string) (*pcapng.Reader, []*pcapng.Packet) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	r, err := pcapng.NewReader(f, pcapng.ReaderOptions{})
	require.NoError(t, err)
	var packets []*pcapng.Packet
	for {
		p, err := r.ReadPacket()
		if err != nil {
			break
		}
		packets = append(packets, p)
	}
	require.NoError(t, r.Err())
	return r, packets
}

func testConfig(t *testing.T) *config.GlobalConfig {
	t.Helper()
	gc, err := config.Load("")
	require.NoError(t, err)
	return gc
}
