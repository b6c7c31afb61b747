package main

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/headosc/internal/osc"
	"github.com/banshee-data/headosc/internal/transform"
)

func udpFrame(t *testing.T, dstPort int, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(127, 0, 0, 1),
		DstIP:    net.IPv4(127, 0, 0, 1),
	}
	udp := &layers.UDP{SrcPort: 50000, DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func writePCAP(t *testing.T, frames ...[]byte) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	w := pcapgo.NewWriter(&out)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	ts := time.Unix(1700000000, 0)
	for i, f := range frames {
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(f), Length: len(f)}
		require.NoError(t, w.WritePacket(ci, f))
	}
	return &out
}

func encodePoint(t *testing.T, addr string, p transform.Point) []byte {
	t.Helper()
	data, err := osc.Encode(osc.NewPointMessage(addr, p))
	require.NoError(t, err)
	return data
}

func TestDumpPCAP(t *testing.T) {
	capture := writePCAP(t,
		udpFrame(t, 9000, encodePoint(t, "/head", transform.Point{X: 1, Y: 2, Z: 3})),
		udpFrame(t, 9001, encodePoint(t, "/other", transform.Point{})),
		udpFrame(t, 9000, []byte("not osc")),
		udpFrame(t, 9000, encodePoint(t, "/head", transform.Point{X: 4, Y: 5, Z: 6})),
	)

	var out bytes.Buffer
	n, err := dumpPCAP(capture, 9000, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, out.String(), "/head")
	assert.NotContains(t, out.String(), "/other")
	assert.Contains(t, out.String(), "undecodable")
}

func TestDumpPCAP_AnyPort(t *testing.T) {
	capture := writePCAP(t,
		udpFrame(t, 9000, encodePoint(t, "/head", transform.Point{})),
		udpFrame(t, 7000, encodePoint(t, "/overhead", transform.Point{})),
	)
	var out bytes.Buffer
	n, err := dumpPCAP(capture, 0, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDumpPCAP_BadHeader(t *testing.T) {
	_, err := dumpPCAP(bytes.NewReader([]byte("nope")), 9000, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestDumpSLIP(t *testing.T) {
	stream := append(osc.SLIPEncode(encodePoint(t, "/head", transform.Point{X: 1})),
		osc.SLIPEncode(encodePoint(t, "/head", transform.Point{X: 2}))...)

	var out bytes.Buffer
	n, err := dumpSLIP(stream, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, out.String(), "#0 /head")
	assert.Contains(t, out.String(), "#1 /head")
}
